package episode

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roboscene/taskenv/internal/model"
	"github.com/roboscene/taskenv/pkg/core"
)

const testCatalogue = `{
	"a": {"bbox": {"min": [-0.05, -0.05, -0.05], "max": [0.05, 0.05, 0.05]}, "scales": [0.8, 1.0]},
	"b": {"bbox": {"min": [-0.03, -0.03, -0.06], "max": [0.03, 0.03, 0.06]}},
	"c": {"bbox": {"min": [-0.04, -0.02, -0.04], "max": [0.04, 0.02, 0.04]}},
	"nobbox": {"scales": [1.0]}
}`

func loadTestDB(t *testing.T) *model.Database {
	t.Helper()
	path := filepath.Join(t.TempDir(), "catalogue.json")
	require.NoError(t, os.WriteFile(path, []byte(testCatalogue), 0644))
	db, err := model.Load(path)
	require.NoError(t, err)
	return db
}

func TestConfigure_DeterministicForSeed(t *testing.T) {
	db := loadTestDB(t)

	c1, err := New(db, []string{"a", "b", "c"}, 3, true, 0.85)
	require.NoError(t, err)
	c2, err := New(db, []string{"a", "b", "c"}, 3, true, 0.85)
	require.NoError(t, err)

	opts := NewOptions()
	opts.ObjectInit.RandRotZ = true

	one, err := c1.Configure(42, opts)
	require.NoError(t, err)
	two, err := c2.Configure(42, opts)
	require.NoError(t, err)

	assert.Equal(t, one.ModelIDs, two.ModelIDs)
	assert.Equal(t, one.Scales, two.Scales)
	assert.Equal(t, one.InitXYs, two.InitXYs)
	assert.Equal(t, one.Orientations, two.Orientations)
	assert.Equal(t, one.SourceIndex, two.SourceIndex)
	assert.Equal(t, one.TargetIndex, two.TargetIndex)
}

func TestConfigure_Seed42TripletIsReproducible(t *testing.T) {
	db := loadTestDB(t)

	c, err := New(db, []string{"a", "b", "c"}, 3, true, 0.85)
	require.NoError(t, err)

	first, err := c.Configure(42, NewOptions())
	require.NoError(t, err)
	assert.Len(t, first.ModelIDs, 3)
	assert.True(t, first.Reconfigure, "first episode must rebuild the scene")

	// Feeding the resolved triplet back as an explicit override must not
	// trigger another rebuild.
	opts := NewOptions()
	opts.ModelIDs = first.ModelIDs
	opts.Scales = first.Scales
	second, err := c.Configure(42, opts)
	require.NoError(t, err)
	assert.Equal(t, first.ModelIDs, second.ModelIDs)
	assert.Equal(t, first.Scales, second.Scales)
	assert.False(t, second.Reconfigure)
}

func TestConfigure_ReconfigureOnExplicitOverrideRoundTrip(t *testing.T) {
	db := loadTestDB(t)

	c, err := New(db, []string{"a", "b", "c"}, 3, true, 0.85)
	require.NoError(t, err)

	opts := NewOptions()
	opts.ModelIDs = []string{"a", "b", "c"}
	opts.Scales = []float64{1, 1, 1}

	first, err := c.Configure(7, opts)
	require.NoError(t, err)
	assert.True(t, first.Reconfigure)

	second, err := c.Configure(8, opts)
	require.NoError(t, err)
	assert.False(t, second.Reconfigure, "identical overrides twice in a row must not rebuild")

	opts.Scales = []float64{1, 1, 0.8}
	third, err := c.Configure(9, opts)
	require.NoError(t, err)
	assert.True(t, third.Reconfigure, "scale change must rebuild")
}

func TestConfigure_ForcedReconfigure(t *testing.T) {
	db := loadTestDB(t)

	c, err := New(db, []string{"a", "b", "c"}, 3, true, 0.85)
	require.NoError(t, err)

	opts := NewOptions()
	opts.ModelIDs = []string{"a", "b", "c"}
	opts.Scales = []float64{1, 1, 1}
	_, err = c.Configure(1, opts)
	require.NoError(t, err)

	opts.Reconfigure = true
	cfg, err := c.Configure(2, opts)
	require.NoError(t, err)
	assert.True(t, cfg.Reconfigure)
}

func TestConfigure_ScaleDrawsFromCatalogue(t *testing.T) {
	db := loadTestDB(t)

	c, err := New(db, []string{"a"}, 1, false, 0.85)
	require.NoError(t, err)

	for seed := uint64(0); seed < 20; seed++ {
		cfg, err := c.Configure(seed, NewOptions())
		require.NoError(t, err)
		assert.Contains(t, []float64{0.8, 1.0}, cfg.Scales[0])
	}

	// Records without a scale list resolve to 1.0.
	c2, err := New(db, []string{"b"}, 1, false, 0.85)
	require.NoError(t, err)
	cfg, err := c2.Configure(3, NewOptions())
	require.NoError(t, err)
	assert.Equal(t, 1.0, cfg.Scales[0])
}

func TestConfigure_BBoxExtentScalesWithOverride(t *testing.T) {
	db := loadTestDB(t)

	c, err := New(db, []string{"a", "b", "c"}, 3, true, 0.85)
	require.NoError(t, err)

	opts := NewOptions()
	opts.ModelIDs = []string{"a", "a", "a"}
	opts.Scales = []float64{1.0, 2.0, 1.0}
	cfg, err := c.Configure(0, opts)
	require.NoError(t, err)

	assert.InDelta(t, 0.1, cfg.BBoxExtents[0].X, 1e-12)
	assert.InDelta(t, 0.2, cfg.BBoxExtents[1].X, 1e-12)
}

func TestNew_TooFewDistinctCandidates(t *testing.T) {
	db := loadTestDB(t)

	_, err := New(db, []string{"a", "a", "b"}, 3, true, 0.85)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestConfigure_ArrayMismatch(t *testing.T) {
	db := loadTestDB(t)

	c, err := New(db, []string{"a", "b", "c"}, 3, true, 0.85)
	require.NoError(t, err)

	opts := NewOptions()
	opts.ModelIDs = []string{"a", "b"}
	_, err = c.Configure(0, opts)
	assert.ErrorIs(t, err, ErrConfiguration)

	opts = NewOptions()
	opts.Scales = []float64{1.0}
	_, err = c.Configure(0, opts)
	assert.ErrorIs(t, err, ErrConfiguration)

	opts = NewOptions()
	opts.ObjectInit.XYs = [][2]float64{{0, 0}}
	_, err = c.Configure(0, opts)
	assert.ErrorIs(t, err, ErrConfiguration)

	opts = NewOptions()
	opts.ObjectInit.RotQuats = []core.Quat{core.QuatIdentity}
	_, err = c.Configure(0, opts)
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestConfigure_RelocationRequiresBBox(t *testing.T) {
	db := loadTestDB(t)

	c, err := New(db, []string{"a", "b", "nobbox"}, 3, true, 0.85)
	require.NoError(t, err)

	opts := NewOptions()
	opts.ModelIDs = []string{"a", "b", "nobbox"}
	_, err = c.Configure(0, opts)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestConfigure_SourceTargetDistinct(t *testing.T) {
	db := loadTestDB(t)

	c, err := New(db, []string{"a", "b", "c"}, 3, true, 0.85)
	require.NoError(t, err)

	for seed := uint64(0); seed < 50; seed++ {
		cfg, err := c.Configure(seed, NewOptions())
		require.NoError(t, err)
		assert.NotEqual(t, cfg.SourceIndex, cfg.TargetIndex)
		assert.GreaterOrEqual(t, cfg.SourceIndex, 0)
		assert.Less(t, cfg.TargetIndex, 3)
	}
}

func TestConfigure_ExplicitDesignations(t *testing.T) {
	db := loadTestDB(t)

	c, err := New(db, []string{"a", "b", "c"}, 3, true, 0.85)
	require.NoError(t, err)

	opts := NewOptions()
	opts.ObjectInit.SourceIndex = 2
	opts.ObjectInit.TargetIndex = 0
	cfg, err := c.Configure(0, opts)
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.SourceIndex)
	assert.Equal(t, 0, cfg.TargetIndex)

	opts.ObjectInit.TargetIndex = 2
	_, err = c.Configure(0, opts)
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestConfigure_PartialDesignations(t *testing.T) {
	db := loadTestDB(t)

	c, err := New(db, []string{"a", "b", "c"}, 3, true, 0.85)
	require.NoError(t, err)

	// Fixing only one side of the designation must never collide with the
	// drawn side, whatever the seed.
	for seed := uint64(0); seed < 30; seed++ {
		opts := NewOptions()
		opts.ObjectInit.TargetIndex = 1
		cfg, err := c.Configure(seed, opts)
		require.NoError(t, err, "seed %d", seed)
		assert.Equal(t, 1, cfg.TargetIndex)
		assert.NotEqual(t, 1, cfg.SourceIndex)

		opts = NewOptions()
		opts.ObjectInit.SourceIndex = 0
		cfg, err = c.Configure(seed, opts)
		require.NoError(t, err, "seed %d", seed)
		assert.Equal(t, 0, cfg.SourceIndex)
		assert.NotEqual(t, 0, cfg.TargetIndex)
	}
}

func TestConfigure_SurfaceZOverride(t *testing.T) {
	db := loadTestDB(t)

	c, err := New(db, []string{"a"}, 1, false, 0.85)
	require.NoError(t, err)

	z := 0.66
	opts := NewOptions()
	opts.ObjectInit.Z = &z
	cfg, err := c.Configure(0, opts)
	require.NoError(t, err)
	assert.Equal(t, 0.66, cfg.SurfaceZ)
}
