package midifabric

import (
	"sync"
	"time"

	"github.com/schollz/looperd/internal/ids"
)

// logCapacity is the raw monitor's circular buffer size (§4.8: "a
// bounded log (circular buffer, capacity ~500)").
const logCapacity = 500

// activityWindow is how long a track is considered "active" after its
// last matching message (§4.8: "~300 ms").
const activityWindow = 300 * time.Millisecond

// LogEntry is one raw monitor record.
type LogEntry struct {
	Trigger  Trigger
	DeviceID string
	At       time.Time
}

// Monitor is the raw-message log plus per-track activity timestamps.
// All methods are safe for concurrent use: the MIDI input callback
// writes, control/UI threads read.
type Monitor struct {
	mu       sync.Mutex
	entries  []LogEntry
	next     int
	filled   bool
	activity map[ids.TrackID]time.Time
}

// NewMonitor returns an empty Monitor.
func NewMonitor() *Monitor {
	return &Monitor{
		entries:  make([]LogEntry, logCapacity),
		activity: make(map[ids.TrackID]time.Time),
	}
}

// Record appends trig to the raw log. matchingTracks is the set of
// tracks whose MIDIInputFilter matches this trigger's device+channel;
// their activity timestamp is bumped to now.
func (m *Monitor) Record(trig Trigger, deviceID string, now time.Time, matchingTracks []ids.TrackID) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries[m.next] = LogEntry{Trigger: trig, DeviceID: deviceID, At: now}
	m.next = (m.next + 1) % logCapacity
	if m.next == 0 {
		m.filled = true
	}

	for _, id := range matchingTracks {
		m.activity[id] = now
	}
}

// Recent returns the log entries in chronological order, oldest first.
func (m *Monitor) Recent() []LogEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.filled {
		out := make([]LogEntry, m.next)
		copy(out, m.entries[:m.next])
		return out
	}
	out := make([]LogEntry, logCapacity)
	copy(out, m.entries[m.next:])
	copy(out[logCapacity-m.next:], m.entries[:m.next])
	return out
}

// ActiveAt reports whether track was active (had a matching message)
// within activityWindow of now.
func (m *Monitor) ActiveAt(track ids.TrackID, now time.Time) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	last, ok := m.activity[track]
	if !ok {
		return false
	}
	return now.Sub(last) <= activityWindow
}
