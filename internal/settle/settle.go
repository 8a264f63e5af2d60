// Package settle drops freshly placed objects onto the scene and waits for
// them to reach a stable rest pose before task logic begins. It is
// best-effort: a body that refuses to calm down gets one extended wait and is
// then accepted as-is, flagged in the result.
package settle

import (
	"time"

	"github.com/roboscene/taskenv/internal/episode"
	"github.com/roboscene/taskenv/internal/geo"
	"github.com/roboscene/taskenv/internal/sim"
	"github.com/roboscene/taskenv/pkg/core"
)

// Config holds the settle timings and convergence thresholds.
type Config struct {
	// DropHeight is added above the surface so objects free-fall onto it
	// instead of spawning inside other geometry.
	DropHeight float64

	// InitialWait runs with horizontal rotation locked; SecondWait runs
	// fully unlocked; ExtendedWait is the one-shot escalation for slow
	// settlers.
	InitialWait  time.Duration
	SecondWait   time.Duration
	ExtendedWait time.Duration

	// Speed thresholds above which an object counts as still moving.
	LinearThreshold  float64
	AngularThreshold float64
}

// DefaultConfig returns the timings the tasks were tuned with.
func DefaultConfig() Config {
	return Config{
		DropHeight:       0.5,
		InitialWait:      500 * time.Millisecond,
		SecondWait:       500 * time.Millisecond,
		ExtendedWait:     1500 * time.Millisecond,
		LinearThreshold:  1e-3,
		AngularThreshold: 1e-2,
	}
}

// ObjectResult is the settled snapshot of one object. Write-once per episode.
type ObjectResult struct {
	Pose core.Pose
	// WorldBBoxExtent is the local bbox extent rotated into the settled
	// orientation.
	WorldBBoxExtent core.Vec3
}

// Result is the outcome of one settling run.
type Result struct {
	Objects []ObjectResult

	// Converged is false when objects were still moving after the extended
	// wait. Not an error: evaluation proceeds against whatever pose exists.
	Converged bool
	// Escalated reports whether the extended wait was needed.
	Escalated bool
	// Steps is the number of engine steps consumed.
	Steps int
}

// Run places the actors per cfg and settles them. It never fails.
func Run(engine sim.Engine, actors []sim.Actor, cfg episode.Config, sc Config) Result {
	for i, a := range actors {
		a.SetPose(core.Pose{
			Position: core.Vec3{
				X: cfg.InitXYs[i][0],
				Y: cfg.InitXYs[i][1],
				Z: cfg.SurfaceZ + sc.DropHeight,
			},
			Orientation: cfg.Orientations[i],
		})
		// Lock tipping about the horizontal axes during the drop. A
		// deliberate fidelity trade for a reproducible initial contact.
		a.LockRotation(true, true, false)
	}

	res := Result{}
	res.Steps += stepFor(engine, sc.InitialWait)

	for _, a := range actors {
		a.LockRotation(false, false, false)
		// Re-apply the pose explicitly so the engine does not leave a
		// stationary body dormant, then kill any residual motion.
		a.SetPose(a.Pose())
		a.SetLinearVelocity(core.Vec3{})
		a.SetAngularVelocity(core.Vec3{})
	}
	res.Steps += stepFor(engine, sc.SecondWait)

	// Some objects need longer. One escalation, no retries.
	if !allBelow(actors, sc) {
		res.Escalated = true
		res.Steps += stepFor(engine, sc.ExtendedWait)
	}
	res.Converged = allBelow(actors, sc)

	for i, a := range actors {
		pose := a.Pose()
		res.Objects = append(res.Objects, ObjectResult{
			Pose:            pose,
			WorldBBoxExtent: geo.WorldBBoxExtent(cfg.BBoxExtents[i], pose.Orientation),
		})
	}
	return res
}

func stepFor(engine sim.Engine, d time.Duration) int {
	steps := int(d.Seconds() * float64(engine.StepsPerSecond()))
	for i := 0; i < steps; i++ {
		engine.Step()
	}
	return steps
}

func allBelow(actors []sim.Actor, sc Config) bool {
	for _, a := range actors {
		if a.LinearVelocity().Norm() > sc.LinearThreshold ||
			a.AngularVelocity().Norm() > sc.AngularThreshold {
			return false
		}
	}
	return true
}
