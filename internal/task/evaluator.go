package task

import (
	"github.com/roboscene/taskenv/internal/geo"
	"github.com/roboscene/taskenv/pkg/core"
)

// EvaluatorParams are the relocation tolerances. The half-displacement
// fraction and the closest-to-target slack are empirically tuned values with
// no stated derivation, so they stay configurable rather than hard-coded.
type EvaluatorParams struct {
	// HeightDropLimit is how far below its settled height an object may sit
	// before it counts as fallen.
	HeightDropLimit float64
	// MovedFraction bounds every non-source planar displacement to this
	// fraction of the source displacement.
	MovedFraction float64
	// NearTargetPadding is the clearance added to the two bbox
	// half-diagonals in the proximity test.
	NearTargetPadding float64
	// ClosestTolerance is the slack allowed when requiring the source to
	// end up nearest the target.
	ClosestTolerance float64
}

// DefaultEvaluatorParams returns the tuned relocation tolerances.
func DefaultEvaluatorParams() EvaluatorParams {
	return EvaluatorParams{
		HeightDropLimit:   0.02,
		MovedFraction:     0.5,
		NearTargetPadding: 0.04,
		ClosestTolerance:  0.03,
	}
}

// RelocationEvaluator judges move-near episodes from object states alone.
// All distances are planar; the vertical axis is excluded on purpose so that
// stacking and height variance do not fail the proximity predicates.
type RelocationEvaluator struct {
	Params EvaluatorParams
}

// Evaluate computes the per-step verdict for a relocation episode.
//
// Success requires all four predicates:
//   - every object kept its settled height (nothing fell off the table)
//   - only the source object moved meaningfully (half-displacement proxy
//     for "the robot manipulated the intended object")
//   - the source ended within the padded bbox proximity of the target
//   - the target is the nearest object to the source, within tolerance
func (e RelocationEvaluator) Evaluate(sourceIdx, targetIdx int, objects []core.ObjectState) core.EvaluationResult {
	src := objects[sourceIdx]
	tgt := objects[targetIdx]

	keepHeight := true
	for _, o := range objects {
		if o.Pose.Position.Z < o.SettledPose.Position.Z-e.Params.HeightDropLimit {
			keepHeight = false
			break
		}
	}

	srcMoved := geo.PlanarDisplacement(src.SettledPose, src.Pose)
	movedCorrect := true
	for i, o := range objects {
		if i == sourceIdx {
			continue
		}
		if geo.PlanarDisplacement(o.SettledPose, o.Pose) >= e.Params.MovedFraction*srcMoved {
			movedCorrect = false
			break
		}
	}

	srcToTgt := geo.PlanarDistance(src.Pose.Position, tgt.Pose.Position)
	proximity := geo.HalfDiagonal(src.WorldBBoxExtent) +
		geo.HalfDiagonal(tgt.WorldBBoxExtent) +
		e.Params.NearTargetPadding
	nearTarget := srcToTgt < proximity

	closest := true
	for i, o := range objects {
		if i == sourceIdx || i == targetIdx {
			continue
		}
		if srcToTgt >= geo.PlanarDistance(src.Pose.Position, o.Pose.Position)+e.Params.ClosestTolerance {
			closest = false
			break
		}
	}

	return core.EvaluationResult{
		Success: keepHeight && movedCorrect && nearTarget && closest,
		Flags: map[string]bool{
			core.FlagAllObjKeepHeight: keepHeight,
			core.FlagMovedCorrectObj:  movedCorrect,
			core.FlagNearTarget:       nearTarget,
			core.FlagClosestToTarget:  closest,
		},
		Metrics: map[string]float64{
			"src_displacement": srcMoved,
			"src_to_tgt_dist":  srcToTgt,
			"proximity_radius": proximity,
		},
	}
}
