package episode

import (
	"github.com/roboscene/taskenv/pkg/core"
)

// ObjectInit carries caller-supplied initial-placement options for the
// tracked objects, mirroring the reset-options wire shape.
type ObjectInit struct {
	// SourceIndex and TargetIndex designate the relocation source/target
	// within the episode object set. -1 means "let the configurator draw".
	SourceIndex int `json:"sourceObjId"`
	TargetIndex int `json:"targetObjId"`

	// XYs fixes the planar spawn positions. Empty means randomized.
	XYs [][2]float64 `json:"initXys,omitempty"`
	// Z overrides the surface height objects are dropped onto.
	Z *float64 `json:"initZ,omitempty"`
	// RotQuats fixes the spawn orientations. Empty means identity (plus any
	// random rotation options below).
	RotQuats []core.Quat `json:"initRotQuats,omitempty"`

	// RandRotZ applies a uniform random rotation about the vertical axis.
	RandRotZ bool `json:"initRandRotZ,omitempty"`
	// RandAxisRotRange applies a small rotation about a random axis, with
	// the angle drawn uniformly from [0, RandAxisRotRange) radians.
	RandAxisRotRange float64 `json:"initRandAxisRotRange,omitempty"`
}

// NewObjectInit returns an ObjectInit with unset designations.
func NewObjectInit() ObjectInit {
	return ObjectInit{SourceIndex: -1, TargetIndex: -1}
}

// Options are the caller-supplied overrides consumed by Configure. Zero
// fields mean "draw from the episode random stream".
type Options struct {
	ModelIDs    []string     `json:"modelIds,omitempty"`
	Scales      []float64    `json:"modelScales,omitempty"`
	Reconfigure bool         `json:"reconfigure,omitempty"`
	ObjectInit  ObjectInit   `json:"objInitOptions"`
}

// NewOptions returns Options with unset object designations.
func NewOptions() Options {
	return Options{ObjectInit: NewObjectInit()}
}

// Config is the fully resolved plan for one episode. Created at reset,
// consumed by the scene builder and the settling procedure, discarded at the
// next reset.
type Config struct {
	Seed uint64

	ModelIDs  []string
	Scales    []float64
	Densities []float64

	// BBoxExtents are the local bbox extents scaled by the resolved scale.
	// Refreshed every episode regardless of Reconfigure.
	BBoxExtents []core.Vec3

	// InitXYs and Orientations are the spawn placements; the settling
	// procedure supplies the drop height above SurfaceZ.
	InitXYs      [][2]float64
	Orientations []core.Quat
	SurfaceZ     float64

	// Reconfigure is true iff the physical scene must be rebuilt: any model
	// id or scale changed since the previous episode, or the caller forced
	// it.
	Reconfigure bool

	// Relocation designations; -1 for single-object tasks.
	SourceIndex int
	TargetIndex int
}
