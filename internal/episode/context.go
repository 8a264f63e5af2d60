package episode

import (
	"sync"

	"github.com/roboscene/taskenv/pkg/core"
)

// Context holds the currently running episode, shared between the task loop
// and the storage/telemetry backends that tag records with it.
type Context struct {
	mu      sync.RWMutex
	episode *core.EpisodeRecord
	steps   int
}

// NewContext creates a Context with no episode loaded.
func NewContext() *Context {
	return &Context{episode: &core.EpisodeRecord{Task: "no episode loaded"}}
}

// Episode returns the current episode record.
func (c *Context) Episode() *core.EpisodeRecord {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.episode
}

// Steps returns the number of steps taken in the current episode.
func (c *Context) Steps() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.steps
}

// SetEpisode installs a new episode record and resets the step counter.
func (c *Context) SetEpisode(ep *core.EpisodeRecord) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.episode = ep
	c.steps = 0
}

// IncSteps advances the step counter and returns the new value.
func (c *Context) IncSteps() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.steps++
	return c.steps
}
