package task

import (
	"fmt"
	"math"

	"github.com/roboscene/taskenv/internal/episode"
	"github.com/roboscene/taskenv/pkg/core"
)

// Kind selects the task family.
type Kind int

const (
	KindGraspSingle Kind = iota
	KindMoveNear
)

func (k Kind) String() string {
	switch k {
	case KindGraspSingle:
		return "grasp_single"
	case KindMoveNear:
		return "move_near"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// OrientationPreset is a named spawn orientation applied to the first
// tracked object.
type OrientationPreset int

const (
	OrientDefault OrientationPreset = iota
	OrientUpright
	OrientLaidVertically
	OrientLRSwitch
)

// presetQuats maps each preset to its spawn quaternion. Task variants are
// data, not types: a new variant is a new table row.
var presetQuats = map[OrientationPreset]core.Quat{
	OrientDefault:        core.QuatIdentity,
	OrientUpright:        core.QuatFromAxisAngle(core.Vec3{X: 1}, math.Pi/2),
	OrientLaidVertically: core.QuatFromZRotation(math.Pi / 2),
	OrientLRSwitch:       core.QuatFromZRotation(math.Pi),
}

// Quat returns the preset's spawn quaternion.
func (p OrientationPreset) Quat() core.Quat {
	if q, ok := presetQuats[p]; ok {
		return q
	}
	return core.QuatIdentity
}

// Variant describes one registered task configuration: the family, its
// candidate model pool and default placement options.
type Variant struct {
	Name        string
	Kind        Kind
	ModelIDs    []string
	Orientation OrientationPreset
	RandRotZ    bool
}

// Variants is the registered task table. Empty ModelIDs means "every model
// in the catalogue".
var Variants = map[string]Variant{
	"grasp_single": {
		Name:     "grasp_single",
		Kind:     KindGraspSingle,
		RandRotZ: true,
	},
	"grasp_coke_can": {
		Name:     "grasp_coke_can",
		Kind:     KindGraspSingle,
		ModelIDs: []string{"coke_can"},
		RandRotZ: true,
	},
	"grasp_upright_can": {
		Name:        "grasp_upright_can",
		Kind:        KindGraspSingle,
		ModelIDs:    []string{"coke_can", "pepsi_can", "sprite_can", "fanta_can"},
		Orientation: OrientUpright,
	},
	"grasp_cans": {
		Name:     "grasp_cans",
		Kind:     KindGraspSingle,
		ModelIDs: []string{"coke_can", "pepsi_can", "7up_can", "sprite_can", "fanta_can", "redbull_can"},
		RandRotZ: true,
	},
	"move_near": {
		Name:     "move_near",
		Kind:     KindMoveNear,
		RandRotZ: true,
	},
	"move_near_household": {
		Name:     "move_near_household",
		Kind:     KindMoveNear,
		ModelIDs: []string{"apple", "orange", "sponge", "coke_can", "blue_plastic_bottle"},
		RandRotZ: true,
	},
}

// LookupVariant resolves a registered variant by name.
func LookupVariant(name string) (Variant, error) {
	v, ok := Variants[name]
	if !ok {
		return Variant{}, fmt.Errorf("unknown task variant %q", name)
	}
	return v, nil
}

// ObjectCount returns the size of the episode object set for the family.
func (v Variant) ObjectCount() int {
	if v.Kind == KindMoveNear {
		return episode.MinRelocationCandidates
	}
	return 1
}

// ApplyDefaults folds the variant's placement defaults into reset options
// the caller left unset.
func (v Variant) ApplyDefaults(opts *episode.Options) {
	if len(opts.ObjectInit.RotQuats) == 0 && v.Orientation != OrientDefault {
		quats := make([]core.Quat, v.ObjectCount())
		for i := range quats {
			quats[i] = v.Orientation.Quat()
		}
		opts.ObjectInit.RotQuats = quats
	}
	if !opts.ObjectInit.RandRotZ && v.RandRotZ && v.Orientation == OrientDefault {
		opts.ObjectInit.RandRotZ = true
	}
}
