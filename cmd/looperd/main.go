// Command looperd is the headless engine process: it loads a project
// bundle, wires the engine to an OSC-addressed renderer the way the
// teacher's main.go wired its SuperCollider client, and drives the
// scheduler on a software-clock loop since actual sound synthesis
// happens out of process on whatever is listening at -osc-host:-osc-port.
package main

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/schollz/looperd/internal/audiobridge"
	"github.com/schollz/looperd/internal/bundle"
	"github.com/schollz/looperd/internal/clock"
	"github.com/schollz/looperd/internal/engine"
	"github.com/schollz/looperd/internal/ids"
	"github.com/schollz/looperd/internal/score"
	"github.com/schollz/looperd/internal/sourceaudio"
)

const defaultBufferFrames = 512

func main() {
	root := &cobra.Command{
		Use:   "looperd",
		Short: "Live-looper DAW playback and recording engine",
	}

	var oscHost string
	var oscPort int
	var sampleRate float64
	var bufferFrames int

	runCmd := &cobra.Command{
		Use:   "run <bundle-dir>",
		Short: "Load a project bundle and run the engine until interrupted",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEngine(args[0], oscHost, oscPort, sampleRate, bufferFrames)
		},
	}
	runCmd.Flags().StringVar(&oscHost, "osc-host", "localhost", "OSC host for the external renderer")
	runCmd.Flags().IntVar(&oscPort, "osc-port", 57120, "OSC port for the external renderer")
	runCmd.Flags().Float64Var(&sampleRate, "sample-rate", 48000, "engine sample rate")
	runCmd.Flags().IntVar(&bufferFrames, "buffer-frames", defaultBufferFrames, "callback buffer size in frames")

	inspectCmd := &cobra.Command{
		Use:   "inspect <bundle-dir>",
		Short: "Print a summary of a project bundle without running it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return inspectBundle(args[0])
		},
	}

	benchCmd := &cobra.Command{
		Use:   "bench <bundle-dir>",
		Short: "Measure average Scheduler.Process latency against a bundle",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return benchEngine(args[0], sampleRate, bufferFrames)
		},
	}
	benchCmd.Flags().Float64Var(&sampleRate, "sample-rate", 48000, "engine sample rate")
	benchCmd.Flags().IntVar(&bufferFrames, "buffer-frames", defaultBufferFrames, "callback buffer size in frames")

	root.AddCommand(runCmd, inspectCmd, benchCmd)
	if err := root.Execute(); err != nil {
		log.Fatal(err)
	}
}

func loadProject(dir string) (*score.Project, *sourceaudio.Store, error) {
	store := sourceaudio.NewStore()
	project, err := bundle.Load(dir, store)
	if err != nil {
		return nil, nil, fmt.Errorf("load bundle: %w", err)
	}
	return project, store, nil
}

func firstSongID(project *score.Project) (ids.SongID, error) {
	if len(project.Songs) == 0 {
		return "", fmt.Errorf("bundle has no songs")
	}
	return project.Songs[0].ID, nil
}

func runEngine(dir, oscHost string, oscPort int, sampleRate float64, bufferFrames int) error {
	project, store, err := loadProject(dir)
	if err != nil {
		return err
	}
	songID, err := firstSongID(project)
	if err != nil {
		return err
	}

	host := audiobridge.New(oscHost, oscPort)
	eng, err := engine.New(engine.Config{SampleRate: sampleRate}, project, songID, store, host)
	if err != nil {
		return fmt.Errorf("engine init: %w", err)
	}

	eng.Play()
	log.Printf("looperd: running song %s at %.0f Hz, %d frame buffers, rendering via osc://%s:%d",
		songID, sampleRate, bufferFrames, oscHost, oscPort)

	period := time.Duration(float64(bufferFrames) / sampleRate * float64(time.Second))
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	out := make([][]float32, 2)
	out[0] = make([]float32, bufferFrames)
	out[1] = make([]float32, bufferFrames)

	for range ticker.C {
		tm := eng.TimeMap()
		eng.Scheduler.Process(bufferFrames, nil, out, tm)
		eng.Transport.PublishBar(tm)

		if underruns := eng.UnderrunCount(); underruns > 0 && underruns%100 == 0 {
			log.Printf("looperd: %d underruns reported so far", underruns)
		}
	}
	return nil
}

func inspectBundle(dir string) error {
	project, _, err := loadProject(dir)
	if err != nil {
		return err
	}
	for _, song := range project.Songs {
		fmt.Printf("song %q (%s): %.1f BPM, %d/%d, %d tracks, %d sections\n",
			song.Name, song.ID, song.TempoBPM, song.TimeSig.BeatsPerBar, song.TimeSig.BeatUnit,
			len(song.Tracks), len(song.Sections))
		for _, t := range song.Tracks {
			fmt.Printf("  track %q (%s): %d containers\n", t.Name, t.ID, len(t.Containers))
		}
	}
	fmt.Printf("%d source recordings\n", len(project.SourceRecordings))
	return nil
}

func benchEngine(dir string, sampleRate float64, bufferFrames int) error {
	project, store, err := loadProject(dir)
	if err != nil {
		return err
	}
	songID, err := firstSongID(project)
	if err != nil {
		return err
	}

	host := audiobridge.New("localhost", 0)
	eng, err := engine.New(engine.Config{SampleRate: sampleRate}, project, songID, store, host)
	if err != nil {
		return fmt.Errorf("engine init: %w", err)
	}
	eng.Play()

	const iterations = 2000
	out := [][]float32{make([]float32, bufferFrames), make([]float32, bufferFrames)}
	var tm clock.TimeMap
	start := time.Now()
	for i := 0; i < iterations; i++ {
		tm = eng.TimeMap()
		eng.Scheduler.Process(bufferFrames, nil, out, tm)
	}
	elapsed := time.Since(start)
	avg := elapsed / iterations
	budget := time.Duration(float64(bufferFrames) / sampleRate * float64(time.Second))
	fmt.Fprintf(os.Stdout, "avg Process latency: %s (budget %s per %d-frame buffer)\n", avg, budget, bufferFrames)
	if avg > budget {
		fmt.Fprintln(os.Stdout, "WARNING: average latency exceeds the real-time budget")
	}
	return nil
}
