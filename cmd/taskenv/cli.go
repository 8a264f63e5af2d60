package main

import (
	"fmt"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/roboscene/taskenv/internal/config"
	"github.com/roboscene/taskenv/internal/dispatcher"
	"github.com/roboscene/taskenv/internal/episode"
	"github.com/roboscene/taskenv/internal/model"
	"github.com/roboscene/taskenv/internal/scene"
	"github.com/roboscene/taskenv/internal/settle"
	"github.com/roboscene/taskenv/internal/sim/simtest"
	"github.com/roboscene/taskenv/internal/storage"
	"github.com/roboscene/taskenv/internal/task"
	"github.com/roboscene/taskenv/pkg/core"
)

func run(args []string) error {
	fs := pflag.NewFlagSet(BinaryName, pflag.ContinueOnError)
	configDir := fs.String("config", ".", "directory containing taskenv.cfg.json")
	taskName := fs.String("task", "move_near", "task variant to run")
	episodes := fs.Int("episodes", 10, "number of episodes")
	steps := fs.Int("steps", 200, "steps per episode")
	seed := fs.Uint64("seed", 0, "seed of the first episode; subsequent episodes increment it")
	storageType := fs.String("storage", "", "override the configured storage backend (memory, sqlite, websocket)")

	if err := fs.Parse(args); err != nil {
		return err
	}

	if len(fs.Args()) > 0 && fs.Args()[0] == "version" {
		fmt.Printf("%s %s (built %s)\n", BinaryName, CurrentVersion, BuildDate)
		return nil
	}

	if err := setup(*configDir); err != nil {
		return err
	}
	defer shutdown()

	if *storageType != "" {
		viper.Set("storage.type", *storageType)
	}

	if err := initStorage(); err != nil {
		return err
	}
	initTelemetry()

	return runEpisodes(*taskName, *episodes, *steps, *seed)
}

// runEpisodes drives the full reset/step/close cycle for one task variant.
// Stepping uses the scripted engine; an external physics binding plugs in
// through the same sim.Engine interface.
func runEpisodes(taskName string, numEpisodes, steps int, seed uint64) error {
	variant, err := task.LookupVariant(taskName)
	if err != nil {
		return err
	}

	catalogue, err := model.Load(viper.GetString("modelCatalogue"))
	if err != nil {
		return err
	}

	tableHeight := viper.GetFloat64("table.height")
	engine := simtest.New(tableHeight)

	configurator, err := episode.New(
		catalogue,
		variant.ModelIDs,
		variant.ObjectCount(),
		variant.Kind == task.KindMoveNear,
		tableHeight,
	)
	if err != nil {
		return err
	}

	builderKind, err := scene.ParseBuilderKind(viper.GetString("scene.builder"))
	if err != nil {
		return err
	}
	builder := scene.NewBuilder(builderKind, viper.GetString("assetRoot"), scene.DefaultMaterial)

	robotUID := viper.GetString("robot.uid")
	preset, ok := task.RobotPresets[robotUID]
	if !ok {
		return fmt.Errorf("unknown robot uid %q", robotUID)
	}

	settleCfg := config.GetSettleConfig()
	evalCfg := config.GetEvaluatorConfig()
	graspCfg := config.GetGraspConfig()

	var recorder task.Recorder
	if storageBackend != nil {
		recorder = &eventRecorder{d: eventDispatcher}
	}

	t, err := task.New(variant, task.Dependencies{
		Engine:       engine,
		Configurator: configurator,
		Scene:        scene.New(engine, builder),
		Controller:   newScriptedController(preset),
		RobotUID:     robotUID,
		Context:      EpisodeContext,
		Recorder:     recorder,
		Logger:       Logger,
		Settle: settle.Config{
			DropHeight:       settleCfg.DropHeight,
			InitialWait:      settleCfg.InitialWait,
			SecondWait:       settleCfg.SecondWait,
			ExtendedWait:     settleCfg.ExtendedWait,
			LinearThreshold:  settleCfg.LinearThreshold,
			AngularThreshold: settleCfg.AngularThreshold,
		},
		Relocation: task.EvaluatorParams{
			HeightDropLimit:   evalCfg.HeightDropLimit,
			MovedFraction:     evalCfg.MovedFraction,
			NearTargetPadding: evalCfg.NearTargetPadding,
			ClosestTolerance:  evalCfg.ClosestTolerance,
		},
		Grasp: task.GraspParams{
			ConsecutiveSteps: graspCfg.ConsecutiveSteps,
			MinImpulse:       graspCfg.MinImpulse,
			SignificantLift:  graspCfg.SignificantLift,
			RequireLifting:   graspCfg.RequireLifting,
		},
	})
	if err != nil {
		return err
	}
	defer func() { _ = t.Close() }()

	Logger.Info("Running episodes",
		"task", taskName, "episodes", numEpisodes, "steps", steps, "seed", seed)

	for ep := 0; ep < numEpisodes; ep++ {
		if _, err := t.Reset(seed+uint64(ep), task.NewResetOptions()); err != nil {
			return fmt.Errorf("episode %d reset: %w", ep, err)
		}

		var episodeReturn float64
		var succeeded bool
		for s := 0; s < steps; s++ {
			result, reward, err := t.Step()
			if err != nil {
				return fmt.Errorf("episode %d step %d: %w", ep, s, err)
			}
			episodeReturn += reward
			if result.Success {
				succeeded = true
				break
			}
		}

		Logger.Info("Episode finished",
			"seed", seed+uint64(ep), "success", succeeded, "return", episodeReturn)
	}

	if err := t.Close(); err != nil {
		return err
	}
	reportExports()
	return nil
}

// reportExports logs the run files an uploadable backend produced.
func reportExports() {
	up, ok := storageBackend.(storage.Uploadable)
	if !ok {
		return
	}
	path := up.GetExportedFilePath()
	if path == "" {
		return
	}
	meta := up.GetExportMetadata()
	Logger.Info("Run exported", "path", path, "task", meta.Task, "episodes", meta.Episodes)
}

// eventRecorder adapts the dispatcher to the task.Recorder interface. Each
// record becomes a routed event; storage and telemetry subscribe.
type eventRecorder struct {
	d *dispatcher.Dispatcher
}

func (r *eventRecorder) StartEpisode(ep *core.EpisodeRecord) error {
	_, err := r.d.Dispatch(dispatcher.NewEvent("start_episode", ep))
	return err
}

func (r *eventRecorder) AddObject(o *core.ObjectRecord) error {
	_, err := r.d.Dispatch(dispatcher.NewEvent("add_object", o))
	return err
}

func (r *eventRecorder) RecordStepEvaluation(s *core.StepEvaluation) error {
	_, err := r.d.Dispatch(dispatcher.NewEvent("step_evaluation", s))
	return err
}

func (r *eventRecorder) EndEpisode(sum *core.EpisodeSummary) error {
	_, err := r.d.Dispatch(dispatcher.NewEvent("end_episode", sum))
	return err
}

// scriptedController satisfies task.Controller without an attached robot:
// the base teleports where it is told and the joints hold the preset rest
// configuration. Control execution belongs to the external binding.
type scriptedController struct {
	preset   task.RobotPreset
	qpos     []float64
	basePose core.Pose
	grasped  bool
}

func newScriptedController(preset task.RobotPreset) *scriptedController {
	return &scriptedController{preset: preset}
}

func (c *scriptedController) Reset(qpos []float64) error {
	c.qpos = append([]float64(nil), qpos...)
	c.grasped = false
	return nil
}

func (c *scriptedController) SetBasePose(p core.Pose) { c.basePose = p }

func (c *scriptedController) JointVelocities() []float64 {
	return make([]float64, len(c.qpos))
}

func (c *scriptedController) IsGrasped(string) bool { return c.grasped }

func (c *scriptedController) LinkNames() []string {
	return []string{
		c.preset.UID + "_gripper_left",
		c.preset.UID + "_gripper_right",
		c.preset.UID + "_arm",
	}
}
