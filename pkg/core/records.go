package core

import "time"

// EpisodeRecord describes one reset-to-terminal trial. Created at reset,
// closed when the episode ends or the next reset arrives.
type EpisodeRecord struct {
	ID          uint      `json:"id"`
	Task        string    `json:"task"`
	Seed        uint64    `json:"seed"`
	StartedAt   time.Time `json:"startedAt"`
	Reconfigure bool      `json:"reconfigure"`

	ModelIDs []string  `json:"modelIds"`
	Scales   []float64 `json:"scales"`

	// Relocation episodes only.
	SourceIndex int `json:"sourceIndex"`
	TargetIndex int `json:"targetIndex"`

	// Settling diagnostics.
	SettleConverged bool          `json:"settleConverged"`
	SettleDuration  time.Duration `json:"settleDuration"`
}

// ObjectRecord registers one tracked actor inside an episode.
type ObjectRecord struct {
	ID          uint    `json:"id"`
	EpisodeID   uint    `json:"episodeId"`
	Index       int     `json:"index"`
	ModelID     string  `json:"modelId"`
	Scale       float64 `json:"scale"`
	SettledPose Pose    `json:"settledPose"`
	BBoxExtent  Vec3    `json:"bboxExtent"`
}

// StepEvaluation is the per-step output consumed by storage and telemetry.
type StepEvaluation struct {
	EpisodeID uint               `json:"episodeId"`
	Step      int                `json:"step"`
	Time      time.Time          `json:"time"`
	Success   bool               `json:"success"`
	Reward    float64            `json:"reward"`
	Flags     map[string]bool    `json:"flags"`
	Metrics   map[string]float64 `json:"metrics,omitempty"`
	Objects   []Pose             `json:"objects,omitempty"`
}

// EpisodeSummary closes an episode.
type EpisodeSummary struct {
	EpisodeID uint      `json:"episodeId"`
	Steps     int       `json:"steps"`
	Success   bool      `json:"success"`
	Return    float64   `json:"return"`
	EndedAt   time.Time `json:"endedAt"`
}

// UploadMetadata accompanies an exported run file when pushed to the results
// server.
type UploadMetadata struct {
	Task     string    `json:"task"`
	Episodes int       `json:"episodes"`
	Started  time.Time `json:"started"`
	Version  string    `json:"version"`
}
