package memory

import (
	"fmt"
	"sync"
	"time"

	"github.com/roboscene/taskenv/internal/config"
	"github.com/roboscene/taskenv/pkg/core"
)

// EpisodeData groups an episode with all its recorded time-series data
type EpisodeData struct {
	Episode core.EpisodeRecord
	Objects []core.ObjectRecord
	Steps   []core.StepEvaluation
	Summary *core.EpisodeSummary
}

// Backend stores episode data in memory and exports to JSON
type Backend struct {
	cfg config.MemoryConfig

	current   *EpisodeData
	completed int

	sessionStart   time.Time
	idCounter      uint
	lastExportPath string
	lastTask       string

	mu sync.RWMutex
}

// New creates a new memory backend
func New(cfg config.MemoryConfig) *Backend {
	return &Backend{cfg: cfg}
}

// Init initializes the backend
func (b *Backend) Init() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sessionStart = time.Now()
	return nil
}

// Close finalizes any episode still open
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.current != nil {
		if err := b.exportJSON(); err != nil {
			return err
		}
		b.current = nil
		b.completed++
	}
	return nil
}

// StartEpisode begins recording a new episode. An episode left open by the
// caller is discarded.
func (b *Backend) StartEpisode(ep *core.EpisodeRecord) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.current = &EpisodeData{Episode: *ep}
	b.lastTask = ep.Task
	b.idCounter = 0
	return nil
}

// EndEpisode attaches the summary and exports the episode data
func (b *Backend) EndEpisode(sum *core.EpisodeSummary) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.current == nil {
		return fmt.Errorf("end episode without start")
	}

	s := *sum
	b.current.Summary = &s

	if err := b.exportJSON(); err != nil {
		return err
	}

	b.current = nil
	b.completed++
	return nil
}

// AddObject registers a tracked object in the current episode
func (b *Backend) AddObject(o *core.ObjectRecord) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.current == nil {
		return fmt.Errorf("add object without an active episode")
	}

	b.idCounter++
	o.ID = b.idCounter

	b.current.Objects = append(b.current.Objects, *o)
	return nil
}

// RecordStepEvaluation records one per-step verdict
func (b *Backend) RecordStepEvaluation(s *core.StepEvaluation) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.current == nil {
		return fmt.Errorf("step evaluation without an active episode")
	}

	b.current.Steps = append(b.current.Steps, *s)
	return nil
}

// Completed returns how many episodes were finalized this session
func (b *Backend) Completed() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.completed
}
