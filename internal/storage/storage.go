// Package storage defines the recording backend interface and its
// implementations: in-memory with JSON export, SQLite via GORM, and
// WebSocket streaming.
package storage

import "github.com/roboscene/taskenv/pkg/core"

// Backend is the interface all storage implementations must satisfy
type Backend interface {
	// Lifecycle
	Init() error
	Close() error

	// Episode management
	StartEpisode(ep *core.EpisodeRecord) error
	EndEpisode(sum *core.EpisodeSummary) error

	// Object registration (assigns ID to the passed pointer)
	AddObject(o *core.ObjectRecord) error

	// Step recording
	RecordStepEvaluation(s *core.StepEvaluation) error
}

// Uploadable is an optional interface for storage backends that produce
// files suitable for upload to a results server.
type Uploadable interface {
	GetExportedFilePath() string
	GetExportMetadata() core.UploadMetadata
}
