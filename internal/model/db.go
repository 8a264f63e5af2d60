// Package model loads and serves the static model catalogue: per-model
// bounding boxes, allowed scale factors and density overrides. The catalogue
// is read once from disk and immutable afterwards.
package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/roboscene/taskenv/pkg/core"
)

// DefaultDensity is used when a record carries no density override.
const DefaultDensity = 1000.0

var (
	// ErrModelNotFound is returned when a model id is not in the catalogue.
	ErrModelNotFound = errors.New("model id not found in catalogue")

	// ErrNoBBox is returned when a bbox-dependent operation is attempted on
	// a record that has no bounding box.
	ErrNoBBox = errors.New("model record has no bounding box")

	// ErrAssetMissing is returned when a model's collision mesh is absent
	// from the asset root.
	ErrAssetMissing = errors.New("model asset missing")
)

// BBox is an axis-aligned bounding box in the model's local frame.
type BBox struct {
	Min core.Vec3 `json:"min"`
	Max core.Vec3 `json:"max"`
}

// Extent returns max - min.
func (b BBox) Extent() core.Vec3 {
	return b.Max.Sub(b.Min)
}

// Record is one immutable catalogue entry.
type Record struct {
	ID      string
	BBox    *BBox
	Scales  []float64
	Density float64
}

// HasBBox reports whether bbox-dependent predicates can be evaluated for
// this model.
func (r Record) HasBBox() bool {
	return r.BBox != nil
}

// BBoxExtent returns the local bbox extent multiplied by scale.
func (r Record) BBoxExtent(scale float64) (core.Vec3, error) {
	if r.BBox == nil {
		return core.Vec3{}, fmt.Errorf("%w: %s", ErrNoBBox, r.ID)
	}
	return r.BBox.Extent().Scale(scale), nil
}

// EffectiveDensity returns the density override, or DefaultDensity.
func (r Record) EffectiveDensity() float64 {
	if r.Density > 0 {
		return r.Density
	}
	return DefaultDensity
}

// Database is the loaded catalogue. Read-only after Load.
type Database struct {
	records map[string]Record
	ids     []string
}

// jsonVec accepts the on-disk [x,y,z] array form.
type jsonVec [3]float64

func (v jsonVec) vec() core.Vec3 {
	return core.Vec3{X: v[0], Y: v[1], Z: v[2]}
}

type jsonRecord struct {
	BBox *struct {
		Min jsonVec `json:"min"`
		Max jsonVec `json:"max"`
	} `json:"bbox"`
	Scales  []float64 `json:"scales"`
	Density float64   `json:"density"`
}

// Load reads a JSON catalogue keyed by model identifier. A missing file is
// reported with the download step the user needs to run, not a bare stat
// error.
func Load(path string) (*Database, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf(
				"%w: %s is not found; download the corresponding assets with `taskenv download-assets`",
				ErrAssetMissing, path)
		}
		return nil, fmt.Errorf("reading model catalogue: %w", err)
	}

	var entries map[string]jsonRecord
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("parsing model catalogue %s: %w", path, err)
	}

	db := &Database{records: make(map[string]Record, len(entries))}
	for id, e := range entries {
		rec := Record{ID: id, Scales: e.Scales, Density: e.Density}
		if e.BBox != nil {
			rec.BBox = &BBox{Min: e.BBox.Min.vec(), Max: e.BBox.Max.vec()}
		}
		db.records[id] = rec
		db.ids = append(db.ids, id)
	}
	sort.Strings(db.ids)
	return db, nil
}

// Get returns the record for a model id.
func (db *Database) Get(id string) (Record, error) {
	rec, ok := db.records[id]
	if !ok {
		return Record{}, fmt.Errorf("%w: %s", ErrModelNotFound, id)
	}
	return rec, nil
}

// IDs returns all model ids in sorted order.
func (db *Database) IDs() []string {
	out := make([]string, len(db.ids))
	copy(out, db.ids)
	return out
}

// Len returns the number of catalogue entries.
func (db *Database) Len() int {
	return len(db.records)
}

// CheckAssets verifies that every listed model has its collision mesh under
// assetRoot. Checked eagerly at construction so a missing download surfaces
// as one actionable message instead of a mid-episode engine fault.
func (db *Database) CheckAssets(assetRoot string, ids []string) error {
	for _, id := range ids {
		if _, ok := db.records[id]; !ok {
			return fmt.Errorf("%w: %s", ErrModelNotFound, id)
		}
		collision := filepath.Join(assetRoot, "models", id, "collision.obj")
		if _, err := os.Stat(collision); err != nil {
			return fmt.Errorf(
				"%w: %s is not found; download the model assets with `taskenv download-assets`",
				ErrAssetMissing, collision)
		}
	}
	return nil
}
