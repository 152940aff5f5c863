// Package ids defines the stable, opaque identifiers used as map keys
// across ScoreModel snapshots and on disk. Every mutable entity in the
// score gets one of these, assigned once at creation and never reused.
package ids

import (
	"fmt"
	"sync/atomic"
)

// counter is a process-wide monotonic source for fresh IDs. The control
// thread is the only caller, so no lock is needed beyond the atomic add.
var counter uint64

func next(prefix string) string {
	n := atomic.AddUint64(&counter, 1)
	return fmt.Sprintf("%s-%d", prefix, n)
}

// TrackID identifies a Track within a Song.
type TrackID string

// NewTrackID returns a fresh, unique TrackID.
func NewTrackID() TrackID { return TrackID(next("trk")) }

// ContainerID identifies a Container within a Track.
type ContainerID string

// NewContainerID returns a fresh, unique ContainerID.
func NewContainerID() ContainerID { return ContainerID(next("ctr")) }

// SongID identifies a Song within a Project.
type SongID string

// NewSongID returns a fresh, unique SongID.
func NewSongID() SongID { return SongID(next("song")) }

// SourceRecordingID identifies an immutable audio asset.
type SourceRecordingID string

// NewSourceRecordingID returns a fresh, unique SourceRecordingID.
func NewSourceRecordingID() SourceRecordingID { return SourceRecordingID(next("rec")) }

// SectionID identifies a SectionRegion.
type SectionID string

// NewSectionID returns a fresh, unique SectionID.
func NewSectionID() SectionID { return SectionID(next("sec")) }

// CrossfadeID identifies a Crossfade between two sibling containers.
type CrossfadeID string

// NewCrossfadeID returns a fresh, unique CrossfadeID.
func NewCrossfadeID() CrossfadeID { return CrossfadeID(next("xfd")) }

// AutomationLaneID identifies an AutomationLane.
type AutomationLaneID string

// NewAutomationLaneID returns a fresh, unique AutomationLaneID.
func NewAutomationLaneID() AutomationLaneID { return AutomationLaneID(next("lane")) }

// PluginHandle is a stable reference to a plugin instance lent to the RT
// thread across snapshot installs. It outlives any single snapshot.
type PluginHandle string

// NewPluginHandle returns a fresh, unique PluginHandle.
func NewPluginHandle() PluginHandle { return PluginHandle(next("plug")) }
