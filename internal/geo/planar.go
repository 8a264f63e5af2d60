// Package geo provides the planar (x/y) geometry used by task evaluation.
// The vertical axis is deliberately excluded from all distance computations
// so that stacked or tilted objects still compare by tabletop position.
package geo

import (
	"math"

	geom "github.com/peterstace/simplefeatures/geom"

	"github.com/roboscene/taskenv/pkg/core"
)

// PlanarXY projects a world position onto the table plane.
func PlanarXY(v core.Vec3) geom.XY {
	return geom.XY{X: v.X, Y: v.Y}
}

// PlanarDistance returns the x/y distance between two world positions.
func PlanarDistance(a, b core.Vec3) float64 {
	return PlanarXY(a).Sub(PlanarXY(b)).Length()
}

// PlanarDisplacement returns the x/y distance an object moved from its
// settled position to its current one.
func PlanarDisplacement(settled, current core.Pose) float64 {
	return PlanarDistance(settled.Position, current.Position)
}

// HalfDiagonal returns half the planar diagonal of a world-frame bbox extent,
// used as a proximity-tolerance radius.
func HalfDiagonal(extent core.Vec3) float64 {
	return math.Hypot(extent.X, extent.Y) / 2
}

// WorldBBoxExtent rotates a local axis-aligned bbox extent into world frame
// using the given orientation, then takes component-wise absolute values so
// the result is again an axis-aligned extent.
func WorldBBoxExtent(localExtent core.Vec3, orientation core.Quat) core.Vec3 {
	return orientation.Rotate(localExtent).Abs()
}
