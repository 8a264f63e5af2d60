// Package simtest provides a scripted, physics-free engine implementing
// sim.Engine. Actors fall at a constant rate until they reach their rest
// height and stop there. It exists for tests and for the development runner;
// real deployments wire an actual physics engine behind sim.Engine.
package simtest

import (
	"fmt"

	"github.com/roboscene/taskenv/internal/sim"
	"github.com/roboscene/taskenv/pkg/core"
)

// Actor is a scripted rigid body.
type Actor struct {
	name string
	spec sim.ActorSpec

	pose   core.Pose
	linVel core.Vec3
	angVel core.Vec3

	lockX, lockY, lockZ bool

	// UnsettledSteps keeps the actor reporting a small residual velocity for
	// this many steps after it reaches rest, to exercise settle escalation.
	UnsettledSteps int

	engine *Engine
}

func (a *Actor) Name() string                    { return a.name }
func (a *Actor) Pose() core.Pose                 { return a.pose }
func (a *Actor) SetPose(p core.Pose)             { a.pose = p }
func (a *Actor) LinearVelocity() core.Vec3       { return a.linVel }
func (a *Actor) AngularVelocity() core.Vec3      { return a.angVel }
func (a *Actor) SetLinearVelocity(v core.Vec3)   { a.linVel = v }
func (a *Actor) SetAngularVelocity(v core.Vec3)  { a.angVel = v }
func (a *Actor) LockRotation(x, y, z bool)       { a.lockX, a.lockY, a.lockZ = x, y, z }
func (a *Actor) RotationLocks() (x, y, z bool)   { return a.lockX, a.lockY, a.lockZ }
func (a *Actor) Spec() sim.ActorSpec             { return a.spec }

// RestHeight is where the actor comes to rest: the table surface plus the
// vertical half-extent of its collision shape.
func (a *Actor) RestHeight() float64 {
	return a.engine.TableHeight + a.spec.HalfExtents.Z
}

// Engine is a deterministic scripted engine.
type Engine struct {
	// Hz is the fixed stepping frequency.
	Hz int
	// TableHeight is the z of the supporting surface.
	TableHeight float64
	// FallPerStep is how far a falling actor descends each step.
	FallPerStep float64

	actors   []*Actor
	contacts []core.Contact
	steps    int
}

// New creates a scripted engine with a 100 Hz step rate.
func New(tableHeight float64) *Engine {
	return &Engine{
		Hz:          100,
		TableHeight: tableHeight,
		FallPerStep: 0.01,
	}
}

func (e *Engine) StepsPerSecond() int { return e.Hz }

// Step lowers every falling actor by FallPerStep, clamping at its rest
// height. Height never undershoots the rest height (objects fall onto, not
// through, the surface).
func (e *Engine) Step() {
	e.steps++
	for _, a := range e.actors {
		rest := a.RestHeight()
		switch {
		case a.pose.Position.Z > rest:
			z := a.pose.Position.Z - e.FallPerStep
			if z < rest {
				z = rest
			}
			a.pose.Position.Z = z
			a.linVel = core.Vec3{Z: -e.FallPerStep * float64(e.Hz)}
		case a.UnsettledSteps > 0:
			a.UnsettledSteps--
			a.linVel = core.Vec3{X: 0.01}
		default:
			a.linVel = core.Vec3{}
			a.angVel = core.Vec3{}
		}
	}
}

// Steps returns how many times Step has been called.
func (e *Engine) Steps() int { return e.steps }

// CreateActor registers a scripted actor.
func (e *Engine) CreateActor(spec sim.ActorSpec) (sim.Actor, error) {
	if spec.Name == "" {
		return nil, fmt.Errorf("actor spec needs a name")
	}
	a := &Actor{name: spec.Name, spec: spec, engine: e}
	a.pose.Orientation = core.QuatIdentity
	e.actors = append(e.actors, a)
	return a, nil
}

// RemoveActor drops an actor from the scene.
func (e *Engine) RemoveActor(actor sim.Actor) error {
	for i, a := range e.actors {
		if a == actor {
			e.actors = append(e.actors[:i], e.actors[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("actor %s not in scene", actor.Name())
}

// Contacts returns the scripted contact set.
func (e *Engine) Contacts() []core.Contact { return e.contacts }

// SetContacts replaces the scripted contact set returned by Contacts.
func (e *Engine) SetContacts(contacts []core.Contact) { e.contacts = contacts }

// Actors returns all registered actors in creation order.
func (e *Engine) Actors() []*Actor { return e.actors }
