// Package streaming defines the message envelopes exchanged with a live
// results viewer over WebSocket.
package streaming

import (
	"encoding/json"

	"github.com/roboscene/taskenv/pkg/core"
)

// Message type constants matching the streaming protocol.
const (
	TypeStartEpisode   = "start_episode"
	TypeEndEpisode     = "end_episode"
	TypeAddObject      = "add_object"
	TypeStepEvaluation = "step_evaluation"
)

// Envelope wraps all messages sent over the WebSocket.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// AckMessage is the server's acknowledgement response.
type AckMessage struct {
	Type string `json:"type"` // always "ack"
	For  string `json:"for"`  // the message type being acknowledged
}

// StartEpisodePayload carries the episode header.
type StartEpisodePayload struct {
	Episode *core.EpisodeRecord `json:"episode"`
}

// AddObjectPayload registers a tracked object with the viewer.
type AddObjectPayload struct {
	Object *core.ObjectRecord `json:"object"`
}

// StepEvaluationPayload carries one per-step verdict.
type StepEvaluationPayload struct {
	Evaluation *core.StepEvaluation `json:"evaluation"`
}

// EndEpisodePayload closes the episode on the viewer side.
type EndEpisodePayload struct {
	Summary *core.EpisodeSummary `json:"summary"`
}
