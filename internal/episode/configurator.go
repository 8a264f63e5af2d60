// Package episode resolves the per-episode randomization: which models are
// placed, at what scale, where and in what orientation. All draws come from a
// deterministic stream keyed by the episode seed, so a seed fully determines
// the resolved configuration.
package episode

import (
	"errors"
	"fmt"
	"math"
	"math/rand"

	"github.com/roboscene/taskenv/internal/model"
	"github.com/roboscene/taskenv/pkg/core"
)

// ErrConfiguration is the root of all episode-configuration failures. Fatal
// to the episode; never retried.
var ErrConfiguration = errors.New("episode configuration failed")

// MinRelocationCandidates is the smallest candidate pool a relocation task
// accepts.
const MinRelocationCandidates = 3

// Defaults for randomized planar placement, matching the scene workspace.
const (
	defaultCenterX  = -0.2
	defaultCenterY  = 0.2
	defaultJitter   = 0.05
	defaultSpread   = 0.15 // ring radius for multi-object layouts
)

// Configurator draws episode configurations from a registered candidate list.
// One Configurator is owned by one environment instance; it is not safe for
// concurrent use and does not need to be.
type Configurator struct {
	db          *model.Database
	candidates  []string
	objectCount int
	requireBBox bool
	surfaceZ    float64

	prevIDs    []string
	prevScales []float64
}

// New validates the candidate list against the catalogue and returns a
// configurator for objectCount tracked objects. requireBBox makes records
// without bounding boxes a configuration error (relocation tasks need bbox
// geometry for their proximity predicates).
func New(db *model.Database, candidates []string, objectCount int, requireBBox bool, surfaceZ float64) (*Configurator, error) {
	if len(candidates) == 0 {
		candidates = db.IDs()
	}
	if objectCount < 1 {
		return nil, fmt.Errorf("%w: object count %d < 1", ErrConfiguration, objectCount)
	}
	if objectCount >= MinRelocationCandidates && countDistinct(candidates) < MinRelocationCandidates {
		return nil, fmt.Errorf(
			"%w: relocation needs at least %d distinct candidate models, got %d",
			ErrConfiguration, MinRelocationCandidates, countDistinct(candidates))
	}
	for _, id := range candidates {
		if _, err := db.Get(id); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrConfiguration, err)
		}
	}
	return &Configurator{
		db:          db,
		candidates:  candidates,
		objectCount: objectCount,
		requireBBox: requireBBox,
		surfaceZ:    surfaceZ,
	}, nil
}

// ObjectCount returns the size of the episode object set.
func (c *Configurator) ObjectCount() int { return c.objectCount }

// Candidates returns the registered candidate ids.
func (c *Configurator) Candidates() []string { return c.candidates }

// Configure resolves one episode from the seed-keyed random stream, honoring
// the caller's overrides. The same seed with the same options always yields
// the same configuration.
//
// Reconfigure is true iff the resolved model-id or scale list differs from
// the previous episode's (in length or element-wise), or the caller forced
// it.
func (c *Configurator) Configure(seed uint64, opts Options) (Config, error) {
	rng := rand.New(rand.NewSource(int64(seed)))

	ids, err := c.resolveModelIDs(rng, opts.ModelIDs)
	if err != nil {
		return Config{}, err
	}
	scales, err := c.resolveScales(rng, ids, opts.Scales)
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		Seed:        seed,
		ModelIDs:    ids,
		Scales:      scales,
		SourceIndex: -1,
		TargetIndex: -1,
		SurfaceZ:    c.surfaceZ,
	}

	// Bounding boxes and densities are cheap; refresh them every episode
	// independent of reconfigure state.
	for i, id := range ids {
		rec, err := c.db.Get(id)
		if err != nil {
			return Config{}, fmt.Errorf("%w: %v", ErrConfiguration, err)
		}
		cfg.Densities = append(cfg.Densities, rec.EffectiveDensity())
		extent, err := rec.BBoxExtent(scales[i])
		if err != nil {
			if c.requireBBox {
				return Config{}, fmt.Errorf("%w: %v", ErrConfiguration, err)
			}
			extent = core.Vec3{}
		}
		cfg.BBoxExtents = append(cfg.BBoxExtents, extent)
	}

	cfg.InitXYs, err = c.resolvePositions(rng, opts.ObjectInit.XYs)
	if err != nil {
		return Config{}, err
	}
	if opts.ObjectInit.Z != nil {
		cfg.SurfaceZ = *opts.ObjectInit.Z
	}
	cfg.Orientations, err = c.resolveOrientations(rng, opts.ObjectInit)
	if err != nil {
		return Config{}, err
	}

	if c.objectCount >= MinRelocationCandidates {
		cfg.SourceIndex, cfg.TargetIndex, err = c.resolveDesignations(rng, opts.ObjectInit)
		if err != nil {
			return Config{}, err
		}
	}

	cfg.Reconfigure = opts.Reconfigure || listsChanged(c.prevIDs, ids) || scalesChanged(c.prevScales, scales)
	c.prevIDs = ids
	c.prevScales = scales

	return cfg, nil
}

func (c *Configurator) resolveModelIDs(rng *rand.Rand, override []string) ([]string, error) {
	if len(override) > 0 {
		if len(override) != c.objectCount {
			return nil, fmt.Errorf("%w: %d model ids supplied for %d objects",
				ErrConfiguration, len(override), c.objectCount)
		}
		for _, id := range override {
			if _, err := c.db.Get(id); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrConfiguration, err)
			}
		}
		return append([]string(nil), override...), nil
	}
	ids := make([]string, c.objectCount)
	for i := range ids {
		ids[i] = c.candidates[rng.Intn(len(c.candidates))]
	}
	return ids, nil
}

func (c *Configurator) resolveScales(rng *rand.Rand, ids []string, override []float64) ([]float64, error) {
	if len(override) > 0 {
		if len(override) != c.objectCount {
			return nil, fmt.Errorf("%w: %d scales supplied for %d objects",
				ErrConfiguration, len(override), c.objectCount)
		}
		return append([]float64(nil), override...), nil
	}
	scales := make([]float64, c.objectCount)
	for i, id := range ids {
		rec, err := c.db.Get(id)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrConfiguration, err)
		}
		if len(rec.Scales) == 0 {
			scales[i] = 1.0
			continue
		}
		scales[i] = rec.Scales[rng.Intn(len(rec.Scales))]
	}
	return scales, nil
}

// resolvePositions lays the objects out around the workspace center: a single
// object sits at the center, several objects sit on a ring. Every position
// gets independent uniform jitter.
func (c *Configurator) resolvePositions(rng *rand.Rand, override [][2]float64) ([][2]float64, error) {
	if len(override) > 0 {
		if len(override) != c.objectCount {
			return nil, fmt.Errorf("%w: %d positions supplied for %d objects",
				ErrConfiguration, len(override), c.objectCount)
		}
		return append([][2]float64(nil), override...), nil
	}
	out := make([][2]float64, c.objectCount)
	for i := range out {
		x, y := defaultCenterX, defaultCenterY
		if c.objectCount > 1 {
			angle := 2 * math.Pi * float64(i) / float64(c.objectCount)
			x += defaultSpread * math.Cos(angle)
			y += defaultSpread * math.Sin(angle)
		}
		out[i] = [2]float64{
			x + uniform(rng, -defaultJitter, defaultJitter),
			y + uniform(rng, -defaultJitter, defaultJitter),
		}
	}
	return out, nil
}

func (c *Configurator) resolveOrientations(rng *rand.Rand, init ObjectInit) ([]core.Quat, error) {
	if len(init.RotQuats) > 0 && len(init.RotQuats) != c.objectCount {
		return nil, fmt.Errorf("%w: %d orientations supplied for %d objects",
			ErrConfiguration, len(init.RotQuats), c.objectCount)
	}
	out := make([]core.Quat, c.objectCount)
	for i := range out {
		q := core.QuatIdentity
		if len(init.RotQuats) > 0 {
			q = init.RotQuats[i].Normalize()
		}
		if init.RandRotZ {
			q = core.QuatFromZRotation(uniform(rng, 0, 2*math.Pi)).Mul(q)
		}
		if init.RandAxisRotRange > 0 {
			axis := core.Vec3{
				X: uniform(rng, -1, 1),
				Y: uniform(rng, -1, 1),
				Z: uniform(rng, -1, 1),
			}
			angle := uniform(rng, 0, init.RandAxisRotRange)
			q = q.Mul(core.QuatFromAxisAngle(axis, angle))
		}
		out[i] = q
	}
	return out, nil
}

func (c *Configurator) resolveDesignations(rng *rand.Rand, init ObjectInit) (src, tgt int, err error) {
	src, tgt = init.SourceIndex, init.TargetIndex
	if src < 0 {
		src = drawIndexExcluding(rng, c.objectCount, tgt)
	}
	if tgt < 0 {
		tgt = drawIndexExcluding(rng, c.objectCount, src)
	}
	if src >= c.objectCount || tgt >= c.objectCount || src == tgt {
		return 0, 0, fmt.Errorf("%w: invalid source/target designation %d/%d for %d objects",
			ErrConfiguration, src, tgt, c.objectCount)
	}
	return src, tgt, nil
}

// drawIndexExcluding draws uniformly from [0, n) skipping the excluded index.
// An exclusion outside the range means nothing is skipped.
func drawIndexExcluding(rng *rand.Rand, n, exclude int) int {
	if exclude < 0 || exclude >= n {
		return rng.Intn(n)
	}
	i := rng.Intn(n - 1)
	if i >= exclude {
		i++
	}
	return i
}

func uniform(rng *rand.Rand, lo, hi float64) float64 {
	return lo + (hi-lo)*rng.Float64()
}

func listsChanged(prev, next []string) bool {
	if len(prev) != len(next) {
		return true
	}
	for i := range next {
		if prev[i] != next[i] {
			return true
		}
	}
	return false
}

func scalesChanged(prev, next []float64) bool {
	if len(prev) != len(next) {
		return true
	}
	for i := range next {
		if prev[i] != next[i] {
			return true
		}
	}
	return false
}

func countDistinct(ids []string) int {
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		seen[id] = struct{}{}
	}
	return len(seen)
}
