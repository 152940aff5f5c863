// Command loopermon is a read-only observation dashboard (§9): it
// loads a bundle into its own engine the same way looperd does (it
// does not connect to a separate looperd process) and never issues
// control-surface calls, polling the engine's published-state
// getters on a steady UI tick the way the teacher's TrackerModel
// redraws its waveform at a fixed fps independent of playback advance.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	colorful "github.com/lucasb-eyer/go-colorful"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"

	"github.com/schollz/looperd/internal/audiobridge"
	"github.com/schollz/looperd/internal/bundle"
	"github.com/schollz/looperd/internal/engine"
	"github.com/schollz/looperd/internal/ids"
	"github.com/schollz/looperd/internal/score"
	"github.com/schollz/looperd/internal/sourceaudio"
)

const uiFPS = 10

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42"))
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
)

type tickMsg struct{}

func tick() tea.Cmd {
	return tea.Tick(time.Second/uiFPS, func(time.Time) tea.Msg { return tickMsg{} })
}

// armedContainer names a record-armed container for the meter panel.
type armedContainer struct {
	TrackName string
	ID        ids.ContainerID
}

type monitorModel struct {
	eng      *engine.Engine
	armed    []armedContainer
	transfer progress.Model
	quit     bool
}

func newMonitorModel(eng *engine.Engine, project *score.Project, songID ids.SongID) *monitorModel {
	var armed []armedContainer
	if song, ok := project.FindSong(songID); ok {
		for _, t := range song.Tracks {
			for _, c := range t.Containers {
				if c.IsRecordArmed {
					armed = append(armed, armedContainer{TrackName: t.Name, ID: c.ID})
				}
			}
		}
	}
	p := progress.New(progress.WithDefaultGradient())
	p.Width = 40
	return &monitorModel{eng: eng, armed: armed, transfer: p}
}

func (m *monitorModel) Init() tea.Cmd { return tick() }

func (m *monitorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "q" || msg.String() == "ctrl+c" {
			m.quit = true
			return m, tea.Quit
		}
	case tickMsg:
		return m, tick()
	}
	return m, nil
}

// peakMeter renders a single-row level meter from a peak overview the
// way the teacher's internal/views/mixer.go createVerticalBar renders
// a mixer channel's level: full-block and light-shade cells, colored by blending
// between a low and high colorful.Color across the active terminal's
// color profile.
func peakMeter(peaks []float32, width int) string {
	var peak float32
	for _, v := range peaks {
		if v > peak {
			peak = v
		}
	}
	if peak > 1 {
		peak = 1
	}
	low, _ := colorful.Hex("#2E8B57")
	high, _ := colorful.Hex("#FF4040")
	blended := low.BlendRgb(high, float64(peak))
	profile := termenv.ColorProfile()
	termColor := profile.Color(blended.Hex())

	filled := int(peak * float32(width))
	bar := ""
	for i := 0; i < width; i++ {
		if i < filled {
			bar += "█"
		} else {
			bar += "░"
		}
	}
	return termenv.String(bar).Foreground(termColor).String()
}

func (m *monitorModel) View() string {
	if m.quit {
		return ""
	}
	bar := m.eng.PublishedBar()
	pos := m.eng.PublishedSamplePosition()
	underruns := m.eng.UnderrunCount()

	underrunLine := labelStyle.Render(fmt.Sprintf("underruns: %d", underruns))
	if underruns > 0 {
		underrunLine = warnStyle.Render(fmt.Sprintf("underruns: %d", underruns))
	}

	withinBar := bar - float64(int64(bar))
	lines := []string{
		headerStyle.Render("loopermon — read-only"),
		labelStyle.Render(fmt.Sprintf("bar: %.3f", bar)),
		labelStyle.Render(fmt.Sprintf("sample position: %d", pos)),
		underrunLine,
		labelStyle.Render("bar progress: ") + m.transfer.ViewAs(withinBar),
		"",
	}

	if len(m.armed) > 0 {
		lines = append(lines, headerStyle.Render("armed recordings"))
		for _, a := range m.armed {
			peaks := m.eng.RecordingPeaksFor(a.ID)
			lines = append(lines, labelStyle.Render(fmt.Sprintf("%-12s ", a.TrackName))+peakMeter(peaks, 30))
		}
		lines = append(lines, "")
	}

	for _, entry := range m.eng.RecentMidiLog() {
		lines = append(lines, labelStyle.Render(fmt.Sprintf("midi: device=%s trigger=%s at=%s",
			entry.DeviceID, entry.Trigger.Key(), entry.At.Format(time.RFC3339Nano))))
	}
	lines = append(lines, "", labelStyle.Render("press q to quit"))
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func main() {
	root := &cobra.Command{
		Use:   "loopermon <bundle-dir>",
		Short: "Read-only observation dashboard for a running looperd bundle",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(args[0])
		},
	}
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(dir string) error {
	store := sourceaudio.NewStore()
	project, err := bundle.Load(dir, store)
	if err != nil {
		return fmt.Errorf("load bundle: %w", err)
	}
	if len(project.Songs) == 0 {
		return fmt.Errorf("bundle has no songs")
	}
	songID := project.Songs[0].ID
	host := audiobridge.New("localhost", 0)
	eng, err := engine.New(engine.Config{SampleRate: 48000}, project, songID, store, host)
	if err != nil {
		return fmt.Errorf("engine init: %w", err)
	}

	m := newMonitorModel(eng, project, songID)
	_, err = tea.NewProgram(m, tea.WithAltScreen()).Run()
	return err
}
