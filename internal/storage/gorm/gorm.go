// Package gormstorage implements storage.Backend on a GORM database. It is
// shared by the SQLite backend; step evaluations are written in batches from
// an internal queue so the simulation loop never waits on the database.
package gormstorage

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/roboscene/taskenv/internal/logging"
	"github.com/roboscene/taskenv/pkg/core"
)

const (
	stepQueueSize = 10_000
	stepBatchSize = 500
	flushInterval = time.Second
)

// EpisodeRow is the episodes table.
type EpisodeRow struct {
	ID              uint `gorm:"primarykey"`
	Task            string
	Seed            uint64
	StartedAt       time.Time
	Reconfigure     bool
	ModelIDs        datatypes.JSON
	Scales          datatypes.JSON
	SourceIndex     int
	TargetIndex     int
	SettleConverged bool
	SettleDuration  time.Duration

	// Summary, filled at episode end.
	Steps   int
	Success bool
	Return  float64
	EndedAt *time.Time
}

func (EpisodeRow) TableName() string { return "episodes" }

// ObjectRow is the per-episode tracked object table.
type ObjectRow struct {
	ID          uint `gorm:"primarykey"`
	EpisodeID   uint `gorm:"index"`
	Index       int
	ModelID     string
	Scale       float64
	SettledPose datatypes.JSON
	BBoxExtent  datatypes.JSON
}

func (ObjectRow) TableName() string { return "objects" }

// StepRow is the per-step evaluation table.
type StepRow struct {
	ID        uint `gorm:"primarykey"`
	EpisodeID uint `gorm:"index"`
	Step      int
	Time      time.Time
	Success   bool
	Reward    float64
	Flags     datatypes.JSON
	Metrics   datatypes.JSON
	Objects   datatypes.JSON
}

func (StepRow) TableName() string { return "step_evaluations" }

// Dependencies wires the backend.
type Dependencies struct {
	DB         *gorm.DB
	LogManager *logging.SlogManager
}

// Backend writes episode data through GORM.
type Backend struct {
	db  *gorm.DB
	log *logging.SlogManager

	queue     chan StepRow
	stopChan  chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// New creates a GORM backend.
func New(deps Dependencies) *Backend {
	if deps.LogManager == nil {
		deps.LogManager = logging.NewSlogManager()
	}
	return &Backend{
		db:  deps.DB,
		log: deps.LogManager,
	}
}

// Init migrates the schema and starts the step writer.
func (b *Backend) Init() error {
	if b.db != nil {
		if err := b.db.AutoMigrate(&EpisodeRow{}, &ObjectRow{}, &StepRow{}); err != nil {
			return fmt.Errorf("migrating schema: %w", err)
		}
	}

	b.queue = make(chan StepRow, stepQueueSize)
	b.stopChan = make(chan struct{})

	b.wg.Add(1)
	go b.writeLoop()

	return nil
}

// Close flushes the step queue and stops the writer. Safe to call twice.
func (b *Backend) Close() error {
	b.closeOnce.Do(func() {
		close(b.stopChan)
		b.wg.Wait()
	})
	return nil
}

// writeLoop batches queued step rows into the database.
func (b *Backend) writeLoop() {
	defer b.wg.Done()

	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()

	batch := make([]StepRow, 0, stepBatchSize)

	flush := func() {
		if len(batch) == 0 || b.db == nil {
			batch = batch[:0]
			return
		}
		if err := b.db.CreateInBatches(batch, stepBatchSize).Error; err != nil {
			b.log.WriteLog("gorm:writeLoop", fmt.Sprintf("Error inserting step batch: %v", err), "ERROR")
		}
		batch = batch[:0]
	}

	for {
		select {
		case <-b.stopChan:
			// Drain whatever is still queued.
			for {
				select {
				case row := <-b.queue:
					batch = append(batch, row)
					if len(batch) >= stepBatchSize {
						flush()
					}
				default:
					flush()
					return
				}
			}
		case <-ticker.C:
			flush()
		case row := <-b.queue:
			batch = append(batch, row)
			if len(batch) >= stepBatchSize {
				flush()
			}
		}
	}
}

// StartEpisode inserts the episode header row.
func (b *Backend) StartEpisode(ep *core.EpisodeRecord) error {
	if b.db == nil {
		return nil
	}

	ids, err := json.Marshal(ep.ModelIDs)
	if err != nil {
		return fmt.Errorf("marshal model ids: %w", err)
	}
	scales, err := json.Marshal(ep.Scales)
	if err != nil {
		return fmt.Errorf("marshal scales: %w", err)
	}

	row := EpisodeRow{
		ID:              ep.ID,
		Task:            ep.Task,
		Seed:            ep.Seed,
		StartedAt:       ep.StartedAt,
		Reconfigure:     ep.Reconfigure,
		ModelIDs:        ids,
		Scales:          scales,
		SourceIndex:     ep.SourceIndex,
		TargetIndex:     ep.TargetIndex,
		SettleConverged: ep.SettleConverged,
		SettleDuration:  ep.SettleDuration,
	}
	if err := b.db.Create(&row).Error; err != nil {
		return fmt.Errorf("inserting episode %d: %w", ep.ID, err)
	}
	return nil
}

// EndEpisode writes the summary onto the episode row.
func (b *Backend) EndEpisode(sum *core.EpisodeSummary) error {
	if b.db == nil {
		return nil
	}

	ended := sum.EndedAt
	updates := map[string]any{
		"steps":    sum.Steps,
		"success":  sum.Success,
		"return":   sum.Return,
		"ended_at": &ended,
	}
	if err := b.db.Model(&EpisodeRow{}).Where("id = ?", sum.EpisodeID).Updates(updates).Error; err != nil {
		return fmt.Errorf("closing episode %d: %w", sum.EpisodeID, err)
	}
	return nil
}

// AddObject inserts an object row and assigns its ID.
func (b *Backend) AddObject(o *core.ObjectRecord) error {
	if b.db == nil {
		return nil
	}

	pose, err := json.Marshal(o.SettledPose)
	if err != nil {
		return fmt.Errorf("marshal settled pose: %w", err)
	}
	extent, err := json.Marshal(o.BBoxExtent)
	if err != nil {
		return fmt.Errorf("marshal bbox extent: %w", err)
	}

	row := ObjectRow{
		EpisodeID:   o.EpisodeID,
		Index:       o.Index,
		ModelID:     o.ModelID,
		Scale:       o.Scale,
		SettledPose: pose,
		BBoxExtent:  extent,
	}
	if err := b.db.Create(&row).Error; err != nil {
		return fmt.Errorf("inserting object %d/%d: %w", o.EpisodeID, o.Index, err)
	}
	o.ID = row.ID
	return nil
}

// RecordStepEvaluation queues one step row for batch insertion.
func (b *Backend) RecordStepEvaluation(s *core.StepEvaluation) error {
	flags, err := json.Marshal(s.Flags)
	if err != nil {
		return fmt.Errorf("marshal flags: %w", err)
	}
	metrics, err := json.Marshal(s.Metrics)
	if err != nil {
		return fmt.Errorf("marshal metrics: %w", err)
	}
	objects, err := json.Marshal(s.Objects)
	if err != nil {
		return fmt.Errorf("marshal object poses: %w", err)
	}

	row := StepRow{
		EpisodeID: s.EpisodeID,
		Step:      s.Step,
		Time:      s.Time,
		Success:   s.Success,
		Reward:    s.Reward,
		Flags:     flags,
		Metrics:   metrics,
		Objects:   objects,
	}

	select {
	case b.queue <- row:
		return nil
	default:
		return fmt.Errorf("step queue full, dropping step %d of episode %d", s.Step, s.EpisodeID)
	}
}
