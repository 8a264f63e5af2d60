// Package task composes the environment pieces into runnable manipulation
// tasks. A Task holds its collaborators behind interfaces (engine, scene,
// controller, recorder) rather than subclassing anything; task variants are
// table rows in variants.go.
package task

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/roboscene/taskenv/internal/episode"
	"github.com/roboscene/taskenv/internal/scene"
	"github.com/roboscene/taskenv/internal/settle"
	"github.com/roboscene/taskenv/internal/sim"
	"github.com/roboscene/taskenv/pkg/core"
)

// Recorder receives episode and step records. storage.Backend satisfies it;
// a nil Recorder disables recording.
type Recorder interface {
	StartEpisode(*core.EpisodeRecord) error
	AddObject(*core.ObjectRecord) error
	RecordStepEvaluation(*core.StepEvaluation) error
	EndEpisode(*core.EpisodeSummary) error
}

// Dependencies wires a Task. Engine, Configurator and Scene are required;
// Controller and Recorder are optional.
type Dependencies struct {
	Engine       sim.Engine
	Configurator *episode.Configurator
	Scene        *scene.Scene
	Controller   Controller
	RobotUID     string
	Context      *episode.Context
	Recorder     Recorder
	Logger       *slog.Logger

	Settle     settle.Config
	Relocation EvaluatorParams
	Grasp      GraspParams
}

// Task is one environment instance. Single-threaded: the simulation advances
// only inside Reset and Step, and all mutable state is owned by one caller.
type Task struct {
	deps    Dependencies
	variant Variant

	evalReloc RelocationEvaluator
	evalGrasp GraspEvaluator

	cfg     episode.Config
	actors  []sim.Actor
	objects []core.ObjectState

	episodeSeq uint
	inEpisode  bool
	stepsTaken int
	cumReward  float64
	success    bool
	startedAt  time.Time

	episodes    metric.Int64Counter
	evaluations metric.Int64Counter
	escalations metric.Int64Counter
}

// New creates a Task for the given variant.
func New(variant Variant, deps Dependencies) (*Task, error) {
	if deps.Engine == nil || deps.Configurator == nil || deps.Scene == nil {
		return nil, fmt.Errorf("task %s: engine, configurator and scene are required", variant.Name)
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Context == nil {
		deps.Context = episode.NewContext()
	}

	t := &Task{
		deps:      deps,
		variant:   variant,
		evalReloc: RelocationEvaluator{Params: deps.Relocation},
		evalGrasp: GraspEvaluator{Params: deps.Grasp},
	}

	m := meter()
	var err error
	if t.episodes, err = m.Int64Counter("task.episodes",
		metric.WithDescription("Episodes configured")); err != nil {
		return nil, fmt.Errorf("creating episode counter: %w", err)
	}
	if t.evaluations, err = m.Int64Counter("task.evaluations",
		metric.WithDescription("Step evaluations computed")); err != nil {
		return nil, fmt.Errorf("creating evaluation counter: %w", err)
	}
	if t.escalations, err = m.Int64Counter("task.settle.escalations",
		metric.WithDescription("Settle runs that needed the extended wait")); err != nil {
		return nil, fmt.Errorf("creating escalation counter: %w", err)
	}
	return t, nil
}

// Variant returns the task variant.
func (t *Task) Variant() Variant { return t.variant }

// Objects returns the current object states in episode order.
func (t *Task) Objects() []core.ObjectState {
	out := make([]core.ObjectState, len(t.objects))
	copy(out, t.objects)
	return out
}

// ResetOptions are the caller-supplied reset overrides.
type ResetOptions struct {
	Episode episode.Options `json:"episode"`
	Robot   RobotInit       `json:"robotInitOptions"`
}

// NewResetOptions returns empty options with unset designations.
func NewResetOptions() ResetOptions {
	return ResetOptions{Episode: episode.NewOptions()}
}

// Reset starts a new episode: resolve the configuration, rebuild the scene
// if needed, settle the objects and re-initialize the robot. Returns the
// settled object states.
func (t *Task) Reset(seed uint64, opts ResetOptions) ([]core.ObjectState, error) {
	ctx := context.Background()

	if t.inEpisode {
		t.endEpisode()
	}

	t.variant.ApplyDefaults(&opts.Episode)

	cfg, err := t.deps.Configurator.Configure(seed, opts.Episode)
	if err != nil {
		return nil, err
	}
	t.cfg = cfg

	actors, err := t.deps.Scene.Apply(cfg)
	if err != nil {
		return nil, fmt.Errorf("applying scene: %w", err)
	}
	t.actors = actors

	// Park the robot far away so it cannot collide with falling objects;
	// it is re-placed after settling.
	if t.deps.Controller != nil {
		t.deps.Controller.SetBasePose(core.Pose{
			Position:    core.Vec3{X: -10},
			Orientation: core.QuatIdentity,
		})
	}

	settled := settle.Run(t.deps.Engine, actors, cfg, t.deps.Settle)
	if settled.Escalated {
		t.escalations.Add(ctx, 1, metric.WithAttributes(attribute.String("task", t.variant.Name)))
	}
	if !settled.Converged {
		t.deps.Logger.Warn("objects did not settle within the extended wait",
			"task", t.variant.Name, "seed", seed)
	}

	t.objects = t.objects[:0]
	for i, a := range actors {
		t.objects = append(t.objects, core.ObjectState{
			ModelID:         cfg.ModelIDs[i],
			Scale:           cfg.Scales[i],
			Pose:            a.Pose(),
			LinearVelocity:  a.LinearVelocity(),
			AngularVelocity: a.AngularVelocity(),
			SettledPose:     settled.Objects[i].Pose,
			WorldBBoxExtent: settled.Objects[i].WorldBBoxExtent,
		})
	}

	if t.deps.Controller != nil {
		rng := rand.New(rand.NewSource(int64(seed)))
		if err := InitRobot(t.deps.Controller, t.deps.RobotUID, opts.Robot, rng); err != nil {
			return nil, err
		}
	}

	t.evalGrasp.Reset()
	t.episodeSeq++
	t.inEpisode = true
	t.stepsTaken = 0
	t.cumReward = 0
	t.success = false
	t.startedAt = time.Now()
	t.episodes.Add(ctx, 1, metric.WithAttributes(attribute.String("task", t.variant.Name)))

	record := &core.EpisodeRecord{
		ID:              t.episodeSeq,
		Task:            t.variant.Name,
		Seed:            seed,
		StartedAt:       t.startedAt,
		Reconfigure:     cfg.Reconfigure,
		ModelIDs:        cfg.ModelIDs,
		Scales:          cfg.Scales,
		SourceIndex:     cfg.SourceIndex,
		TargetIndex:     cfg.TargetIndex,
		SettleConverged: settled.Converged,
		SettleDuration: time.Duration(float64(settled.Steps) /
			float64(t.deps.Engine.StepsPerSecond()) * float64(time.Second)),
	}
	t.deps.Context.SetEpisode(record)

	if t.deps.Recorder != nil {
		if err := t.deps.Recorder.StartEpisode(record); err != nil {
			return nil, fmt.Errorf("recording episode start: %w", err)
		}
		for i := range t.objects {
			obj := &core.ObjectRecord{
				EpisodeID:   record.ID,
				Index:       i,
				ModelID:     cfg.ModelIDs[i],
				Scale:       cfg.Scales[i],
				SettledPose: t.objects[i].SettledPose,
				BBoxExtent:  t.objects[i].WorldBBoxExtent,
			}
			if err := t.deps.Recorder.AddObject(obj); err != nil {
				return nil, fmt.Errorf("recording object %d: %w", i, err)
			}
		}
	}

	return t.Objects(), nil
}

// Step advances the simulation one timestep and evaluates the task.
func (t *Task) Step() (core.EvaluationResult, float64, error) {
	if !t.inEpisode {
		return core.EvaluationResult{}, 0, fmt.Errorf("step before reset")
	}

	t.deps.Engine.Step()
	for i, a := range t.actors {
		t.objects[i].Pose = a.Pose()
		t.objects[i].LinearVelocity = a.LinearVelocity()
		t.objects[i].AngularVelocity = a.AngularVelocity()
	}

	var result core.EvaluationResult
	switch t.variant.Kind {
	case KindMoveNear:
		result = t.evalReloc.Evaluate(t.cfg.SourceIndex, t.cfg.TargetIndex, t.objects)
	default:
		grasped := false
		if t.deps.Controller != nil {
			grasped = t.deps.Controller.IsGrasped(t.actors[0].Name())
		}
		result = t.evalGrasp.Evaluate(grasped, t.objects[0], t.actors[0].Name(),
			t.deps.Engine.Contacts(), t.isRobotActor)
	}

	reward := Reward(result)
	t.cumReward += reward
	t.success = result.Success
	t.stepsTaken = t.deps.Context.IncSteps()
	t.evaluations.Add(context.Background(), 1,
		metric.WithAttributes(attribute.String("task", t.variant.Name)))

	if t.deps.Recorder != nil {
		eval := &core.StepEvaluation{
			EpisodeID: t.deps.Context.Episode().ID,
			Step:      t.stepsTaken,
			Time:      time.Now(),
			Success:   result.Success,
			Reward:    reward,
			Flags:     result.Flags,
			Metrics:   result.Metrics,
		}
		for _, o := range t.objects {
			eval.Objects = append(eval.Objects, o.Pose)
		}
		if err := t.deps.Recorder.RecordStepEvaluation(eval); err != nil {
			return result, reward, fmt.Errorf("recording step evaluation: %w", err)
		}
	}

	return result, reward, nil
}

// Close ends the current episode, flushing its summary to the recorder.
func (t *Task) Close() error {
	if t.inEpisode {
		t.endEpisode()
	}
	return nil
}

func (t *Task) endEpisode() {
	t.inEpisode = false
	if t.deps.Recorder == nil {
		return
	}
	summary := &core.EpisodeSummary{
		EpisodeID: t.deps.Context.Episode().ID,
		Steps:     t.stepsTaken,
		Success:   t.success,
		Return:    t.cumReward,
		EndedAt:   time.Now(),
	}
	if err := t.deps.Recorder.EndEpisode(summary); err != nil {
		t.deps.Logger.Error("failed to record episode end", "error", err)
	}
}

// isRobotActor classifies a contact partner: anything the controller lists
// as one of its links. Without a controller, nothing is a robot link.
func (t *Task) isRobotActor(name string) bool {
	if t.deps.Controller == nil {
		return false
	}
	for _, link := range t.deps.Controller.LinkNames() {
		if link == name {
			return true
		}
	}
	return false
}
