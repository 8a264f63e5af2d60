package scene

import (
	"fmt"
	"sync"

	"github.com/roboscene/taskenv/internal/episode"
	"github.com/roboscene/taskenv/internal/sim"
)

// Scene owns the tracked actors of one environment instance. Actors are
// rebuilt only when the episode configuration says so; otherwise the previous
// episode's bodies are reused and merely repositioned by the settling
// procedure. A stale scene is exactly what the Reconfigure flag guards
// against: callers that change models without setting it keep the old bodies.
type Scene struct {
	engine  sim.Engine
	builder *Builder

	mu       sync.RWMutex
	actors   []sim.Actor
	byName   map[string]sim.Actor
	modelIDs []string
	scales   []float64
}

// New creates an empty scene.
func New(engine sim.Engine, builder *Builder) *Scene {
	return &Scene{
		engine: engine,
		builder: builder,
		byName: make(map[string]sim.Actor),
	}
}

// Apply makes the scene match cfg. When cfg.Reconfigure is false and the
// scene already holds the right number of actors, the existing handles are
// returned unchanged.
func (s *Scene) Apply(cfg episode.Config) ([]sim.Actor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !cfg.Reconfigure && len(s.actors) == len(cfg.ModelIDs) {
		return s.actorsLocked(), nil
	}

	for _, a := range s.actors {
		if err := s.engine.RemoveActor(a); err != nil {
			return nil, fmt.Errorf("removing stale actor %s: %w", a.Name(), err)
		}
	}
	s.actors = s.actors[:0]
	s.byName = make(map[string]sim.Actor, len(cfg.ModelIDs))

	for i := range cfg.ModelIDs {
		actor, err := s.builder.Build(s.engine, cfg, i)
		if err != nil {
			return nil, err
		}
		s.actors = append(s.actors, actor)
		s.byName[actor.Name()] = actor
	}
	s.modelIDs = append([]string(nil), cfg.ModelIDs...)
	s.scales = append([]float64(nil), cfg.Scales...)

	return s.actorsLocked(), nil
}

// Actors returns the current actor handles in object order.
func (s *Scene) Actors() []sim.Actor {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.actorsLocked()
}

// Lookup finds an actor by its contact-record name.
func (s *Scene) Lookup(name string) (sim.Actor, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.byName[name]
	return a, ok
}

// Contains reports whether name belongs to a tracked actor.
func (s *Scene) Contains(name string) bool {
	_, ok := s.Lookup(name)
	return ok
}

func (s *Scene) actorsLocked() []sim.Actor {
	out := make([]sim.Actor, len(s.actors))
	copy(out, s.actors)
	return out
}
