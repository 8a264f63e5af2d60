// Package sim defines the capability interface this layer requires from an
// external rigid-body physics engine. Dynamics, collision detection, contact
// solving and mesh loading all live behind these interfaces; nothing in this
// repository implements physics.
package sim

import "github.com/roboscene/taskenv/pkg/core"

// Actor is an opaque handle to one simulated rigid body.
type Actor interface {
	// Name is the identifier used in contact records.
	Name() string

	Pose() core.Pose
	SetPose(core.Pose)

	LinearVelocity() core.Vec3
	AngularVelocity() core.Vec3
	SetLinearVelocity(core.Vec3)
	SetAngularVelocity(core.Vec3)

	// LockRotation freezes rotational motion about the given world axes.
	// Translational freedom is never locked.
	LockRotation(x, y, z bool)
}

// Material describes surface properties for actor construction.
type Material struct {
	StaticFriction  float64
	DynamicFriction float64
	Restitution     float64
}

// ActorSpec tells the engine how to build a rigid body. Either Collision
// names a mesh file, or HalfExtents describes a primitive box.
type ActorSpec struct {
	Name        string
	Scale       float64
	Density     float64
	Material    Material
	Collision   string // collision mesh path; empty for primitives
	Visual      string // visual mesh path; optional
	HalfExtents core.Vec3
}

// Engine is the stepping and query surface of the external simulator. The
// simulation advances only when Step is called; there is no background
// stepping.
type Engine interface {
	// StepsPerSecond is the fixed simulation frequency.
	StepsPerSecond() int

	// Step advances the simulation by one fixed timestep.
	Step()

	CreateActor(ActorSpec) (Actor, error)
	RemoveActor(Actor) error

	// Contacts returns the contact records of the last step.
	Contacts() []core.Contact
}
