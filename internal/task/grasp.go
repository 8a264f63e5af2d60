package task

import "github.com/roboscene/taskenv/pkg/core"

// GraspParams tune the grasp-single success criteria.
type GraspParams struct {
	// ConsecutiveSteps is how many uninterrupted grasped steps count as a
	// stable grasp.
	ConsecutiveSteps int
	// MinImpulse filters contact noise when checking whether the object
	// still rests on something.
	MinImpulse float64
	// SignificantLift is the height gain over the settled pose that counts
	// as clearly lifted.
	SignificantLift float64
	// RequireLifting switches success from "stable grasp" to "lifted free
	// of everything but the gripper while stably grasped".
	RequireLifting bool
}

// DefaultGraspParams returns the tuned grasp criteria.
func DefaultGraspParams() GraspParams {
	return GraspParams{
		ConsecutiveSteps: 5,
		MinImpulse:       1e-6,
		SignificantLift:  0.02,
		RequireLifting:   true,
	}
}

// GraspEvaluator judges grasp-single episodes. It is stateful across steps
// (consecutive-grasp counter, lifted-while-grasped latch) and must be Reset
// at the start of every episode.
type GraspEvaluator struct {
	Params GraspParams

	consecutive  int
	liftedDuring bool
}

// Reset clears the per-episode state.
func (e *GraspEvaluator) Reset() {
	e.consecutive = 0
	e.liftedDuring = false
}

// Evaluate computes the per-step verdict. grasped comes from the external
// grasp-detection predicate; isRobotActor classifies contact partners.
//
// The object counts as lifted when no contact with a non-robot actor carries
// meaningful impulse: the only thing holding it up is the gripper.
func (e *GraspEvaluator) Evaluate(
	grasped bool,
	obj core.ObjectState,
	objName string,
	contacts []core.Contact,
	isRobotActor func(string) bool,
) core.EvaluationResult {
	if grasped {
		e.consecutive++
	} else {
		e.consecutive = 0
		e.liftedDuring = false
	}

	lifted := true
	for _, c := range contacts {
		other := ""
		switch objName {
		case c.ActorA:
			other = c.ActorB
		case c.ActorB:
			other = c.ActorA
		default:
			continue
		}
		if !isRobotActor(other) && c.Impulse.Norm() > e.Params.MinImpulse {
			lifted = false
			break
		}
	}

	stableGrasp := e.consecutive >= e.Params.ConsecutiveSteps
	if grasped && lifted {
		e.liftedDuring = true
	}

	heightGain := obj.Pose.Position.Z - obj.SettledPose.Position.Z

	success := stableGrasp
	if e.Params.RequireLifting {
		success = e.liftedDuring
	}

	return core.EvaluationResult{
		Success: success,
		Flags: map[string]bool{
			core.FlagIsGrasped:        grasped,
			core.FlagConsecutiveGrasp: stableGrasp,
			core.FlagLiftedObject:     e.liftedDuring,
			core.FlagLiftedObjectSig:  e.liftedDuring && heightGain > e.Params.SignificantLift,
		},
		Metrics: map[string]float64{
			"height_gain": heightGain,
		},
	}
}
