// Package bundle persists a Project to disk as a directory: a
// gzip-compressed project.json describing the ScoreModel plus an
// audio/ subdirectory of WAV assets, one per SourceRecording. Grounded
// directly on the teacher's internal/storage (jsoniter +
// compress/gzip for the document, a sibling asset folder for sampler
// files copied in alongside it).
package bundle

import (
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	jsoniter "github.com/json-iterator/go"

	"github.com/schollz/looperd/internal/ids"
	"github.com/schollz/looperd/internal/score"
	"github.com/schollz/looperd/internal/sourceaudio"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	projectFileName = "project.json.gz"
	audioDirName    = "audio"
	bundleBitDepth  = 16
)

// Save writes project's document and every SourceRecording's audio to
// dir, creating it if needed. assets supplies the decoded sample data
// for each recording named in project.SourceRecordings — typically a
// *sourceaudio.Store fronted by AssetsFrom.
func Save(dir string, project *score.Project, assets AssetSource) error {
	if err := os.MkdirAll(filepath.Join(dir, audioDirName), 0o755); err != nil {
		return fmt.Errorf("bundle: create %s: %w", dir, err)
	}

	for id, rec := range project.SourceRecordings {
		channels := assets.Channels(id)
		if channels == nil {
			return fmt.Errorf("bundle: no decoded audio available for recording %s", id)
		}
		path := filepath.Join(dir, audioDirName, string(id)+".wav")
		if err := writeWAV(path, channels, rec.SampleRate); err != nil {
			return fmt.Errorf("bundle: write %s: %w", path, err)
		}
	}

	data, err := json.Marshal(project)
	if err != nil {
		return fmt.Errorf("bundle: marshal project: %w", err)
	}
	file, err := os.Create(filepath.Join(dir, projectFileName))
	if err != nil {
		return fmt.Errorf("bundle: create project file: %w", err)
	}
	defer file.Close()
	gz := gzip.NewWriter(file)
	defer gz.Close()
	if _, err := gz.Write(data); err != nil {
		return fmt.Errorf("bundle: write project file: %w", err)
	}
	return nil
}

// Load reads a bundle written by Save, decoding every referenced WAV
// asset into store so the returned project's SourceRecordings are
// immediately playable through store as a scheduler.AudioSourceStore.
func Load(dir string, store *sourceaudio.Store) (*score.Project, error) {
	file, err := os.Open(filepath.Join(dir, projectFileName))
	if err != nil {
		return nil, fmt.Errorf("bundle: open project file: %w", err)
	}
	defer file.Close()
	gz, err := gzip.NewReader(file)
	if err != nil {
		return nil, fmt.Errorf("bundle: open gzip reader: %w", err)
	}
	defer gz.Close()
	data, err := io.ReadAll(gz)
	if err != nil {
		return nil, fmt.Errorf("bundle: read project file: %w", err)
	}

	var project score.Project
	if err := json.Unmarshal(data, &project); err != nil {
		return nil, fmt.Errorf("bundle: unmarshal project: %w", err)
	}

	// Collect the document's IDs first: the loop below inserts the
	// re-minted IDs into the same map.
	docIDs := make([]ids.SourceRecordingID, 0, len(project.SourceRecordings))
	for id := range project.SourceRecordings {
		docIDs = append(docIDs, id)
	}
	for _, id := range docIDs {
		path := filepath.Join(dir, audioDirName, string(id)+".wav")
		rec, err := store.Load(path)
		if err != nil {
			return nil, fmt.Errorf("bundle: load asset %s: %w", path, err)
		}
		// The asset is re-decoded under a freshly minted
		// SourceRecordingID; repoint the project's reference at it so
		// containers keep resolving correctly after a round trip.
		project.SourceRecordings[rec.ID] = rec
		if rec.ID != id {
			relink(&project, id, rec.ID)
			delete(project.SourceRecordings, id)
		}
	}
	return &project, nil
}

// relink repoints every container's RecordingRef from oldID to newID,
// needed because Store.Load mints a fresh ID per decode rather than
// preserving the one recorded in the document.
func relink(project *score.Project, oldID, newID ids.SourceRecordingID) {
	for si := range project.Songs {
		for ti := range project.Songs[si].Tracks {
			for ci := range project.Songs[si].Tracks[ti].Containers {
				c := &project.Songs[si].Tracks[ti].Containers[ci]
				if c.Payload.Kind == score.PayloadAudio && c.Payload.RecordingRef == oldID {
					c.Payload.RecordingRef = newID
				}
			}
		}
	}
}

// AssetSource supplies decoded channel data for a SourceRecording at
// save time.
type AssetSource interface {
	Channels(id ids.SourceRecordingID) [][]float32
}

func writeWAV(path string, channels [][]float32, sampleRate float64) error {
	if len(channels) == 0 {
		return fmt.Errorf("no channel data")
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	numChans := len(channels)
	frames := len(channels[0])
	enc := wav.NewEncoder(f, int(sampleRate), bundleBitDepth, numChans, 1)

	scale := float32(int(1) << (bundleBitDepth - 1))
	data := make([]int, frames*numChans)
	for i := 0; i < frames; i++ {
		for c := 0; c < numChans; c++ {
			v := channels[c][i] * scale
			if v > scale-1 {
				v = scale - 1
			} else if v < -scale {
				v = -scale
			}
			data[i*numChans+c] = int(v)
		}
	}
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: numChans, SampleRate: int(sampleRate)},
		Data:           data,
		SourceBitDepth: bundleBitDepth,
	}
	if err := enc.Write(buf); err != nil {
		return err
	}
	return enc.Close()
}
