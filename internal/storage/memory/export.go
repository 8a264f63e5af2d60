package memory

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/roboscene/taskenv/pkg/core"
)

// EpisodeExport is the root JSON structure written per episode
type EpisodeExport struct {
	Episode core.EpisodeRecord    `json:"episode"`
	Objects []core.ObjectRecord   `json:"objects"`
	Steps   []core.StepEvaluation `json:"steps"`
	Summary *core.EpisodeSummary  `json:"summary,omitempty"`
}

// exportJSON writes the current episode to a JSON file. Caller holds the lock.
func (b *Backend) exportJSON() error {
	export := EpisodeExport{
		Episode: b.current.Episode,
		Objects: b.current.Objects,
		Steps:   b.current.Steps,
		Summary: b.current.Summary,
	}

	// Build filename
	task := strings.ReplaceAll(b.current.Episode.Task, " ", "_")
	timestamp := b.current.Episode.StartedAt.Format("20060102_150405")

	var filename string
	if b.cfg.CompressOutput {
		filename = fmt.Sprintf("%s_ep%04d_%s.json.gz", task, b.current.Episode.ID, timestamp)
	} else {
		filename = fmt.Sprintf("%s_ep%04d_%s.json", task, b.current.Episode.ID, timestamp)
	}

	outputPath := filepath.Join(b.cfg.OutputDir, filename)

	// Ensure output directory exists
	if err := os.MkdirAll(b.cfg.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	// Write file
	if b.cfg.CompressOutput {
		if err := writeGzipJSON(outputPath, export); err != nil {
			return err
		}
	} else {
		if err := writeJSON(outputPath, export); err != nil {
			return err
		}
	}

	b.lastExportPath = outputPath
	return nil
}

func writeJSON(path string, export EpisodeExport) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create export file: %w", err)
	}
	defer f.Close()

	if err := json.NewEncoder(f).Encode(export); err != nil {
		return fmt.Errorf("failed to encode export: %w", err)
	}
	return nil
}

func writeGzipJSON(path string, export EpisodeExport) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create export file: %w", err)
	}
	defer f.Close()

	gz := gzip.NewWriter(f)
	if err := json.NewEncoder(gz).Encode(export); err != nil {
		gz.Close()
		return fmt.Errorf("failed to encode export: %w", err)
	}
	return gz.Close()
}

// GetExportedFilePath returns the path of the most recent export
func (b *Backend) GetExportedFilePath() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastExportPath
}

// GetExportMetadata describes the session for upload
func (b *Backend) GetExportMetadata() core.UploadMetadata {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return core.UploadMetadata{
		Task:     b.lastTask,
		Episodes: b.completed,
		Started:  b.sessionStart,
	}
}
