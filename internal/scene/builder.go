// Package scene turns a resolved episode configuration into engine actors.
// Actor construction itself is delegated to the engine; this layer only
// chooses the builder strategy and decides when a rebuild is needed.
package scene

import (
	"fmt"
	"path/filepath"

	"github.com/roboscene/taskenv/internal/episode"
	"github.com/roboscene/taskenv/internal/sim"
)

// BuilderKind is the closed set of actor-construction strategies, resolved
// at configuration time.
type BuilderKind int

const (
	// BuilderMesh builds actors from collision/visual mesh files under the
	// asset root.
	BuilderMesh BuilderKind = iota
	// BuilderPrimitive builds box primitives from the catalogue bbox,
	// useful when mesh assets are unavailable.
	BuilderPrimitive
)

func (k BuilderKind) String() string {
	switch k {
	case BuilderMesh:
		return "mesh"
	case BuilderPrimitive:
		return "primitive"
	default:
		return fmt.Sprintf("BuilderKind(%d)", int(k))
	}
}

// ParseBuilderKind maps a config string onto the closed enumeration.
func ParseBuilderKind(s string) (BuilderKind, error) {
	switch s {
	case "mesh", "":
		return BuilderMesh, nil
	case "primitive":
		return BuilderPrimitive, nil
	default:
		return 0, fmt.Errorf("unknown builder kind %q", s)
	}
}

// DefaultMaterial matches the friction/restitution the manipulation tasks
// were tuned with.
var DefaultMaterial = sim.Material{
	StaticFriction:  0.5,
	DynamicFriction: 0.5,
	Restitution:     0,
}

// Builder constructs actors for one strategy.
type Builder struct {
	kind      BuilderKind
	assetRoot string
	material  sim.Material
}

// NewBuilder creates a builder for the given strategy.
func NewBuilder(kind BuilderKind, assetRoot string, material sim.Material) *Builder {
	return &Builder{kind: kind, assetRoot: assetRoot, material: material}
}

// Kind returns the builder strategy.
func (b *Builder) Kind() BuilderKind { return b.kind }

// Build asks the engine for one rigid body. The actor name carries the
// object index so duplicate model ids stay distinguishable in contact
// records.
func (b *Builder) Build(engine sim.Engine, cfg episode.Config, index int) (sim.Actor, error) {
	id := cfg.ModelIDs[index]
	spec := sim.ActorSpec{
		Name:        fmt.Sprintf("%s.%d", id, index),
		Scale:       cfg.Scales[index],
		Density:     cfg.Densities[index],
		Material:    b.material,
		HalfExtents: cfg.BBoxExtents[index].Scale(0.5),
	}
	if b.kind == BuilderMesh {
		modelDir := filepath.Join(b.assetRoot, "models", id)
		spec.Collision = filepath.Join(modelDir, "collision.obj")
		spec.Visual = filepath.Join(modelDir, "textured.obj")
	}
	actor, err := engine.CreateActor(spec)
	if err != nil {
		return nil, fmt.Errorf("building actor %s: %w", spec.Name, err)
	}
	return actor, nil
}
