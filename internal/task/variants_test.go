package task

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roboscene/taskenv/internal/episode"
	"github.com/roboscene/taskenv/pkg/core"
)

func TestLookupVariant(t *testing.T) {
	v, err := LookupVariant("grasp_coke_can")
	require.NoError(t, err)
	assert.Equal(t, KindGraspSingle, v.Kind)
	assert.Equal(t, []string{"coke_can"}, v.ModelIDs)
	assert.Equal(t, 1, v.ObjectCount())

	_, err = LookupVariant("juggling")
	assert.Error(t, err)
}

func TestVariant_ObjectCount(t *testing.T) {
	assert.Equal(t, 3, Variants["move_near"].ObjectCount())
	assert.Equal(t, 1, Variants["grasp_single"].ObjectCount())
}

func TestApplyDefaults_OrientationPreset(t *testing.T) {
	v := Variants["grasp_upright_can"]
	opts := episode.NewOptions()
	v.ApplyDefaults(&opts)

	require.Len(t, opts.ObjectInit.RotQuats, 1)
	assert.Equal(t, OrientUpright.Quat(), opts.ObjectInit.RotQuats[0])
	assert.False(t, opts.ObjectInit.RandRotZ, "a fixed orientation disables the random spin")
}

func TestApplyDefaults_KeepsCallerOverrides(t *testing.T) {
	v := Variants["grasp_upright_can"]
	opts := episode.NewOptions()
	want := core.QuatFromZRotation(0.3)
	opts.ObjectInit.RotQuats = []core.Quat{want}
	v.ApplyDefaults(&opts)

	require.Len(t, opts.ObjectInit.RotQuats, 1)
	assert.Equal(t, want, opts.ObjectInit.RotQuats[0])
}

func TestApplyDefaults_RandRotZ(t *testing.T) {
	v := Variants["move_near"]
	opts := episode.NewOptions()
	v.ApplyDefaults(&opts)
	assert.True(t, opts.ObjectInit.RandRotZ)
}

func TestInitRobot_PresetAndOverrides(t *testing.T) {
	ctrl := &fakeController{}
	rng := rand.New(rand.NewSource(1))

	require.NoError(t, InitRobot(ctrl, "widowx", RobotInit{}, rng))
	preset := RobotPresets["widowx"]
	assert.Equal(t, preset.QPos, ctrl.qpos)

	xy := [2]float64{0.5, -0.1}
	h := 0.2
	require.NoError(t, InitRobot(ctrl, "widowx", RobotInit{InitXY: &xy, InitHeight: &h}, rng))
	last := ctrl.basePoses[len(ctrl.basePoses)-1]
	assert.Equal(t, core.Vec3{X: 0.5, Y: -0.1, Z: 0.2}, last.Position)

	err := InitRobot(ctrl, "cyborg", RobotInit{}, rng)
	assert.Error(t, err)
}

func TestCheckRobotStatic(t *testing.T) {
	ctrl := &fakeController{qvel: []float64{0.01, 0.02, 0.01, 5.0, 5.0}}
	assert.True(t, CheckRobotStatic(ctrl, 0.2), "gripper joints are excluded")

	ctrl.qvel = []float64{0.5, 0.02, 0.01, 0, 0}
	assert.False(t, CheckRobotStatic(ctrl, 0.2))
}

func TestOrientationPresetQuats(t *testing.T) {
	up := OrientUpright.Quat()
	assert.InDelta(t, math.Cos(math.Pi/4), up.W, 1e-12)
	assert.InDelta(t, math.Sin(math.Pi/4), up.X, 1e-12)
	assert.Equal(t, core.QuatIdentity, OrientationPreset(99).Quat())
}

func TestReward(t *testing.T) {
	assert.Equal(t, 1.0, Reward(core.EvaluationResult{Success: true}))
	assert.Equal(t, 0.0, Reward(core.EvaluationResult{Success: false}))
	assert.Equal(t, 1.0, NormalizedReward(core.EvaluationResult{Success: true}))
}
