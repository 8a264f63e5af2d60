package task

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/roboscene/taskenv/pkg/core"
)

// Controller is the external robot/controller abstraction. Kinematics and
// control execution live entirely on the other side of this interface.
type Controller interface {
	// Reset re-initializes the robot with the given joint positions.
	Reset(qpos []float64) error
	// SetBasePose places the robot base in the world.
	SetBasePose(core.Pose)
	// JointVelocities returns the current joint velocity vector; the last
	// two entries are assumed to be the gripper.
	JointVelocities() []float64
	// IsGrasped reports whether the named object is currently held.
	IsGrasped(actorName string) bool
	// LinkNames lists the robot's link actor names as they appear in
	// contact records.
	LinkNames() []string
}

// RobotInit carries caller overrides for robot placement at reset.
type RobotInit struct {
	QPos       []float64  `json:"qpos,omitempty"`
	InitXY     *[2]float64 `json:"initXy,omitempty"`
	InitHeight *float64    `json:"initHeight,omitempty"`
	RotQuat    *core.Quat  `json:"initRotQuat,omitempty"`
}

// RobotPreset is the per-robot initialization table: rest joint positions,
// base height and the window the base xy is drawn from. Robot variants are
// rows, not types.
type RobotPreset struct {
	UID        string
	QPos       []float64
	BaseHeight float64
	RotQuat    core.Quat
	XYMin      [2]float64
	XYMax      [2]float64
}

// RobotPresets holds the known robot initializations.
var RobotPresets = map[string]RobotPreset{
	"google_robot_static": {
		UID: "google_robot_static",
		QPos: []float64{
			-0.2639457174606611,
			0.0831913360274175,
			0.5017611504652179,
			1.156859026208673,
			0.028583671314766423,
			1.592598203487462,
			-1.080652960128774,
			0, 0,
			-0.00285961, 0.7851361,
		},
		BaseHeight: 0.06205 + 0.017, // base height + ground offset
		RotQuat:    core.Quat{Z: 1},
		XYMin:      [2]float64{0.30, 0.0},
		XYMax:      [2]float64{0.40, 0.2},
	},
	"widowx": {
		UID:        "widowx",
		QPos:       []float64{0, 0, 0, -math.Pi, math.Pi / 2, 0, 0.037, 0.037},
		BaseHeight: 0,
		RotQuat:    core.QuatIdentity,
		XYMin:      [2]float64{0.30, 0.0},
		XYMax:      [2]float64{0.40, 0.2},
	},
}

// InitRobot applies the preset plus caller overrides to the controller. The
// base xy, when not overridden, is drawn from the preset window using the
// episode random stream.
func InitRobot(ctrl Controller, robotUID string, init RobotInit, rng *rand.Rand) error {
	preset, ok := RobotPresets[robotUID]
	if !ok {
		return fmt.Errorf("unknown robot uid %q", robotUID)
	}

	qpos := preset.QPos
	if init.QPos != nil {
		qpos = init.QPos
	}
	if err := ctrl.Reset(qpos); err != nil {
		return fmt.Errorf("resetting robot %s: %w", robotUID, err)
	}

	height := preset.BaseHeight
	if init.InitHeight != nil {
		height = *init.InitHeight
	}
	rot := preset.RotQuat
	if init.RotQuat != nil {
		rot = *init.RotQuat
	}

	var xy [2]float64
	if init.InitXY != nil {
		xy = *init.InitXY
	} else {
		xy[0] = preset.XYMin[0] + (preset.XYMax[0]-preset.XYMin[0])*rng.Float64()
		xy[1] = preset.XYMin[1] + (preset.XYMax[1]-preset.XYMin[1])*rng.Float64()
	}

	ctrl.SetBasePose(core.Pose{
		Position:    core.Vec3{X: xy[0], Y: xy[1], Z: height},
		Orientation: rot,
	})
	return nil
}

// CheckRobotStatic reports whether all non-gripper joints are slower than
// thresh.
func CheckRobotStatic(ctrl Controller, thresh float64) bool {
	qvel := ctrl.JointVelocities()
	if len(qvel) > 2 {
		qvel = qvel[:len(qvel)-2]
	}
	for _, v := range qvel {
		if math.Abs(v) > thresh {
			return false
		}
	}
	return true
}
