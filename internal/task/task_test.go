package task

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roboscene/taskenv/internal/episode"
	"github.com/roboscene/taskenv/internal/model"
	"github.com/roboscene/taskenv/internal/scene"
	"github.com/roboscene/taskenv/internal/settle"
	"github.com/roboscene/taskenv/internal/sim/simtest"
	"github.com/roboscene/taskenv/pkg/core"
)

const taskTestCatalogue = `{
	"a": {"bbox": {"min": [-0.05, -0.05, -0.05], "max": [0.05, 0.05, 0.05]}},
	"b": {"bbox": {"min": [-0.03, -0.03, -0.06], "max": [0.03, 0.03, 0.06]}},
	"c": {"bbox": {"min": [-0.04, -0.02, -0.04], "max": [0.04, 0.02, 0.04]}}
}`

// fakeController scripts the robot side of the task loop.
type fakeController struct {
	qpos      []float64
	basePoses []core.Pose
	qvel      []float64
	grasped   bool
}

func (f *fakeController) Reset(qpos []float64) error    { f.qpos = qpos; return nil }
func (f *fakeController) SetBasePose(p core.Pose)       { f.basePoses = append(f.basePoses, p) }
func (f *fakeController) JointVelocities() []float64    { return f.qvel }
func (f *fakeController) IsGrasped(string) bool         { return f.grasped }
func (f *fakeController) LinkNames() []string {
	return []string{"gripper_left", "gripper_right", "arm_link"}
}

// captureRecorder collects everything the task records.
type captureRecorder struct {
	episodes  []*core.EpisodeRecord
	objects   []*core.ObjectRecord
	steps     []*core.StepEvaluation
	summaries []*core.EpisodeSummary
}

func (r *captureRecorder) StartEpisode(ep *core.EpisodeRecord) error { r.episodes = append(r.episodes, ep); return nil }
func (r *captureRecorder) AddObject(o *core.ObjectRecord) error      { r.objects = append(r.objects, o); return nil }
func (r *captureRecorder) RecordStepEvaluation(s *core.StepEvaluation) error {
	r.steps = append(r.steps, s)
	return nil
}
func (r *captureRecorder) EndEpisode(s *core.EpisodeSummary) error { r.summaries = append(r.summaries, s); return nil }

type harness struct {
	task     *Task
	engine   *simtest.Engine
	ctrl     *fakeController
	recorder *captureRecorder
}

func newHarness(t *testing.T, variantName string) *harness {
	t.Helper()

	path := filepath.Join(t.TempDir(), "catalogue.json")
	require.NoError(t, os.WriteFile(path, []byte(taskTestCatalogue), 0644))
	db, err := model.Load(path)
	require.NoError(t, err)

	variant, err := LookupVariant(variantName)
	require.NoError(t, err)

	const tableHeight = 0.85
	engine := simtest.New(tableHeight)
	cfgr, err := episode.New(db, []string{"a", "b", "c"}, variant.ObjectCount(),
		variant.Kind == KindMoveNear, tableHeight)
	require.NoError(t, err)

	builder := scene.NewBuilder(scene.BuilderPrimitive, "", scene.DefaultMaterial)
	ctrl := &fakeController{}
	recorder := &captureRecorder{}

	tk, err := New(variant, Dependencies{
		Engine:       engine,
		Configurator: cfgr,
		Scene:        scene.New(engine, builder),
		Controller:   ctrl,
		RobotUID:     "google_robot_static",
		Recorder:     recorder,
		Settle:       settle.DefaultConfig(),
		Relocation:   DefaultEvaluatorParams(),
		Grasp:        DefaultGraspParams(),
	})
	require.NoError(t, err)

	return &harness{task: tk, engine: engine, ctrl: ctrl, recorder: recorder}
}

func TestTask_ResetSettlesObjectsOnTable(t *testing.T) {
	h := newHarness(t, "move_near")

	objs, err := h.task.Reset(7, NewResetOptions())
	require.NoError(t, err)
	require.Len(t, objs, 3)

	for i, o := range objs {
		actor := h.engine.Actors()[i]
		assert.InDelta(t, actor.RestHeight(), o.SettledPose.Position.Z, 1e-9,
			"object %d rests on the table surface", i)
		assert.Zero(t, o.LinearVelocity)
		assert.NotZero(t, o.WorldBBoxExtent.Z)
	}

	require.Len(t, h.recorder.episodes, 1)
	rec := h.recorder.episodes[0]
	assert.True(t, rec.Reconfigure, "first episode always builds the scene")
	assert.True(t, rec.SettleConverged)
	assert.Len(t, rec.ModelIDs, 3)
	assert.NotEqual(t, rec.SourceIndex, rec.TargetIndex)
	assert.Len(t, h.recorder.objects, 3)
}

func TestTask_SecondResetSameSeedReusesScene(t *testing.T) {
	h := newHarness(t, "move_near")

	_, err := h.task.Reset(7, NewResetOptions())
	require.NoError(t, err)
	_, err = h.task.Reset(7, NewResetOptions())
	require.NoError(t, err)

	require.Len(t, h.recorder.episodes, 2)
	assert.False(t, h.recorder.episodes[1].Reconfigure,
		"unchanged model set reuses the built scene")
	assert.Len(t, h.recorder.summaries, 1, "starting a new episode closes the previous one")
}

func TestTask_RobotParkedThenPlaced(t *testing.T) {
	h := newHarness(t, "move_near")

	_, err := h.task.Reset(7, NewResetOptions())
	require.NoError(t, err)

	require.GreaterOrEqual(t, len(h.ctrl.basePoses), 2)
	park := h.ctrl.basePoses[0]
	assert.Less(t, park.Position.X, -5.0, "robot parked away while objects fall")

	final := h.ctrl.basePoses[len(h.ctrl.basePoses)-1]
	preset := RobotPresets["google_robot_static"]
	assert.GreaterOrEqual(t, final.Position.X, preset.XYMin[0])
	assert.LessOrEqual(t, final.Position.X, preset.XYMax[0])
	assert.GreaterOrEqual(t, final.Position.Y, preset.XYMin[1])
	assert.LessOrEqual(t, final.Position.Y, preset.XYMax[1])
	assert.InDelta(t, preset.BaseHeight, final.Position.Z, 1e-9)
	assert.Equal(t, preset.QPos, h.ctrl.qpos)
}

func TestTask_StepBeforeResetFails(t *testing.T) {
	h := newHarness(t, "move_near")

	_, _, err := h.task.Step()
	assert.Error(t, err)
}

func TestTask_MoveNearEpisode(t *testing.T) {
	h := newHarness(t, "move_near")

	_, err := h.task.Reset(7, NewResetOptions())
	require.NoError(t, err)
	rec := h.recorder.episodes[0]

	res, reward, err := h.task.Step()
	require.NoError(t, err)
	assert.False(t, res.Success, "nothing has moved yet")
	assert.Zero(t, reward)

	// Teleport the source onto the target's planar position at its own
	// settled height.
	src := h.engine.Actors()[rec.SourceIndex]
	tgt := h.engine.Actors()[rec.TargetIndex]
	pose := src.Pose()
	pose.Position.X = tgt.Pose().Position.X
	pose.Position.Y = tgt.Pose().Position.Y
	src.SetPose(pose)

	res, reward, err = h.task.Step()
	require.NoError(t, err)
	assert.True(t, res.Flags[core.FlagAllObjKeepHeight])
	assert.True(t, res.Flags[core.FlagMovedCorrectObj])
	assert.True(t, res.Flags[core.FlagNearTarget])
	assert.True(t, res.Flags[core.FlagClosestToTarget])
	assert.True(t, res.Success)
	assert.Equal(t, 1.0, reward)

	require.Len(t, h.recorder.steps, 2)
	assert.Equal(t, 2, h.recorder.steps[1].Step)
	assert.Len(t, h.recorder.steps[1].Objects, 3)

	require.NoError(t, h.task.Close())
	require.Len(t, h.recorder.summaries, 1)
	sum := h.recorder.summaries[0]
	assert.True(t, sum.Success)
	assert.Equal(t, 2, sum.Steps)
	assert.Equal(t, 1.0, sum.Return)
}

func TestTask_GraspEpisode(t *testing.T) {
	h := newHarness(t, "grasp_single")

	objs, err := h.task.Reset(11, NewResetOptions())
	require.NoError(t, err)
	require.Len(t, objs, 1)
	name := h.engine.Actors()[0].Name()

	// Object resting on the table, not grasped.
	h.engine.SetContacts([]core.Contact{
		{ActorA: name, ActorB: "table", Impulse: core.Vec3{Z: 0.02}},
	})
	res, reward, err := h.task.Step()
	require.NoError(t, err)
	assert.False(t, res.Flags[core.FlagIsGrasped])
	assert.False(t, res.Success)
	assert.Zero(t, reward)

	// Grasped and lifted free of the table.
	h.ctrl.grasped = true
	h.engine.SetContacts([]core.Contact{
		{ActorA: "gripper_left", ActorB: name, Impulse: core.Vec3{X: 0.05}},
	})
	actor := h.engine.Actors()[0]
	pose := actor.Pose()
	pose.Position.Z += 0.05
	actor.SetPose(pose)

	res, reward, err = h.task.Step()
	require.NoError(t, err)
	assert.True(t, res.Flags[core.FlagIsGrasped])
	assert.True(t, res.Flags[core.FlagLiftedObject])
	assert.True(t, res.Success)
	assert.Equal(t, 1.0, reward)

	for i := 0; i < 4; i++ {
		pose.Position.Z += 0.001
		actor.SetPose(pose)
		res, _, err = h.task.Step()
		require.NoError(t, err)
	}
	assert.True(t, res.Flags[core.FlagConsecutiveGrasp], "five grasped steps in a row")
	assert.True(t, res.Flags[core.FlagLiftedObjectSig])
}

func TestTask_NilRecorderAndController(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalogue.json")
	require.NoError(t, os.WriteFile(path, []byte(taskTestCatalogue), 0644))
	db, err := model.Load(path)
	require.NoError(t, err)

	variant := Variants["move_near"]
	engine := simtest.New(0.85)
	cfgr, err := episode.New(db, []string{"a", "b", "c"}, 3, true, 0.85)
	require.NoError(t, err)

	tk, err := New(variant, Dependencies{
		Engine:       engine,
		Configurator: cfgr,
		Scene:        scene.New(engine, scene.NewBuilder(scene.BuilderPrimitive, "", scene.DefaultMaterial)),
		Settle:       settle.DefaultConfig(),
		Relocation:   DefaultEvaluatorParams(),
		Grasp:        DefaultGraspParams(),
	})
	require.NoError(t, err)

	_, err = tk.Reset(3, NewResetOptions())
	require.NoError(t, err)
	_, _, err = tk.Step()
	require.NoError(t, err)
	require.NoError(t, tk.Close())
}

func TestTask_MissingDependencies(t *testing.T) {
	_, err := New(Variants["move_near"], Dependencies{Engine: simtest.New(0.85)})
	assert.Error(t, err)
}
