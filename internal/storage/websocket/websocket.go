// Package websocket streams episode data to a live results viewer. It
// implements storage.Backend but not storage.Uploadable; nothing is kept
// locally.
package websocket

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/roboscene/taskenv/pkg/core"
	"github.com/roboscene/taskenv/pkg/streaming"
)

// Config holds WebSocket backend configuration.
type Config struct {
	URL    string
	Secret string
}

// Backend streams episode data over WebSocket.
type Backend struct {
	conn *connection
	cfg  Config
}

// New creates a new WebSocket storage backend.
func New(cfg Config) *Backend {
	return &Backend{
		conn: newConnection(slog.Default()),
		cfg:  cfg,
	}
}

// Init connects to the WebSocket server.
func (b *Backend) Init() error {
	return b.conn.dial(b.cfg.URL, b.cfg.Secret)
}

// Close disconnects from the WebSocket server.
func (b *Backend) Close() error {
	return b.conn.close()
}

// marshalEnvelope builds a JSON-encoded Envelope from a message type and payload.
func marshalEnvelope(msgType string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", msgType, err)
	}
	env := streaming.Envelope{Type: msgType, Payload: raw}
	data, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("marshal %s envelope: %w", msgType, err)
	}
	return data, nil
}

// sendEnvelope marshals the payload into an Envelope and pushes it
// to the write loop (fire-and-forget).
func (b *Backend) sendEnvelope(msgType string, payload any) error {
	data, err := marshalEnvelope(msgType, payload)
	if err != nil {
		return err
	}
	b.conn.send(data)
	return nil
}

// StartEpisode sends the episode header and waits for server ack.
func (b *Backend) StartEpisode(ep *core.EpisodeRecord) error {
	data, err := marshalEnvelope(streaming.TypeStartEpisode, streaming.StartEpisodePayload{Episode: ep})
	if err != nil {
		return err
	}

	// Cache for reconnect replay.
	b.conn.mu.Lock()
	b.conn.cachedStartMsg = data
	b.conn.mu.Unlock()

	return b.conn.sendAndWait(data, streaming.TypeStartEpisode, ackTimeout)
}

// EndEpisode sends the summary and waits for server ack.
func (b *Backend) EndEpisode(sum *core.EpisodeSummary) error {
	data, err := marshalEnvelope(streaming.TypeEndEpisode, streaming.EndEpisodePayload{Summary: sum})
	if err != nil {
		return err
	}
	err = b.conn.sendAndWait(data, streaming.TypeEndEpisode, ackTimeout)

	// Clear cached state regardless of error.
	b.conn.mu.Lock()
	b.conn.cachedStartMsg = nil
	b.conn.mu.Unlock()

	return err
}

// AddObject streams one object registration.
func (b *Backend) AddObject(o *core.ObjectRecord) error {
	return b.sendEnvelope(streaming.TypeAddObject, streaming.AddObjectPayload{Object: o})
}

// RecordStepEvaluation streams one per-step verdict (fire-and-forget).
func (b *Backend) RecordStepEvaluation(s *core.StepEvaluation) error {
	return b.sendEnvelope(streaming.TypeStepEvaluation, streaming.StepEvaluationPayload{Evaluation: s})
}
