package search

import (
	"math"

	"github.com/poiesic/atlas/core"
	"github.com/poiesic/atlas/geo"
)

// Weights are the blend coefficients of the hybrid rank. They must be
// non-negative and sum to 1.
type Weights struct {
	Semantic float32
	Spatial  float32
	Temporal float32
}

// DefaultWeights favors semantic similarity while letting the spatial and
// temporal axes break ties between equally relevant texts.
func DefaultWeights() Weights {
	return Weights{Semantic: 0.5, Spatial: 0.25, Temporal: 0.25}
}

// Validate checks the weight invariants.
func (w Weights) Validate() error {
	if w.Semantic < 0 || w.Spatial < 0 || w.Temporal < 0 {
		return ErrInvalidWeights
	}
	sum := float64(w.Semantic) + float64(w.Spatial) + float64(w.Temporal)
	if math.Abs(sum-1) > 1e-6 {
		return ErrInvalidWeights
	}
	return nil
}

// Combine blends the three axis scores.
func (w Weights) Combine(semantic, spatial, temporal float32) float32 {
	return w.Semantic*semantic + w.Spatial*spatial + w.Temporal*temporal
}

// spatialScore rates how central an entity is to the spatial constraint.
// Without a filter every entity scores 1.0. Under a radius filter the score
// decays linearly with distance from the center; polygon containment is
// binary, so any entity that passed the predicate scores 1.0.
func spatialScore(entity *core.GeoEntity, filter *core.GeoFilter) float32 {
	if filter == nil {
		return 1
	}
	if entity.Geometry == nil {
		return 0
	}
	if filter.IsPolygon() {
		return 1
	}
	distance := geo.Distance(filter.Center, geo.RepresentativePoint(entity.Geometry))
	score := 1 - distance/filter.RadiusMeters
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return float32(score)
}

// temporalScore rates how much of the query window an entity's era covers.
// Without a filter, for undated entities, and for unbounded windows the
// score is 1.0 so those records are never penalized.
func temporalScore(entity *core.GeoEntity, window *core.TimeRange) float32 {
	if window == nil || entity.Era == nil {
		return 1
	}
	return entity.Era.OverlapFraction(*window)
}
