package search

import (
	"testing"

	"github.com/poiesic/atlas/core"
	"github.com/stretchr/testify/assert"
)

func TestWeightsValidate(t *testing.T) {
	assert.NoError(t, DefaultWeights().Validate())
	assert.NoError(t, Weights{Semantic: 1}.Validate())
	assert.NoError(t, Weights{Semantic: 0.6, Spatial: 0.3, Temporal: 0.1}.Validate())

	assert.ErrorIs(t, Weights{Semantic: 0.5, Spatial: 0.5, Temporal: 0.5}.Validate(), ErrInvalidWeights)
	assert.ErrorIs(t, Weights{Semantic: 1.5, Spatial: -0.25, Temporal: -0.25}.Validate(), ErrInvalidWeights)
	assert.ErrorIs(t, Weights{}.Validate(), ErrInvalidWeights)
}

func TestWeightsCombine(t *testing.T) {
	w := DefaultWeights()
	assert.InDelta(t, 1.0, float64(w.Combine(1, 1, 1)), 1e-6)
	assert.InDelta(t, 0.5, float64(w.Combine(1, 0, 0)), 1e-6)
	assert.InDelta(t, 0.25, float64(w.Combine(0, 1, 0)), 1e-6)
}

func TestSpatialScore(t *testing.T) {
	center := core.GeoPoint{Lat: 39.9169, Lon: 116.3907}
	atCenter := &core.GeoEntity{Geometry: &core.Geometry{Kind: core.GeometryPoint, Point: center}}
	nearby := &core.GeoEntity{Geometry: &core.Geometry{Kind: core.GeometryPoint, Point: core.GeoPoint{Lat: 39.8822, Lon: 116.4066}}}
	nowhere := &core.GeoEntity{}

	t.Run("no filter scores one", func(t *testing.T) {
		assert.Equal(t, float32(1), spatialScore(nearby, nil))
		assert.Equal(t, float32(1), spatialScore(nowhere, nil))
	})

	t.Run("radius decays with distance", func(t *testing.T) {
		filter := &core.GeoFilter{Center: center, RadiusMeters: 10000}
		assert.Equal(t, float32(1), spatialScore(atCenter, filter))

		// Temple of Heaven sits roughly 4.1km out of a 10km radius
		score := spatialScore(nearby, filter)
		assert.Greater(t, score, float32(0.4))
		assert.Less(t, score, float32(0.7))
	})

	t.Run("polygon containment is binary", func(t *testing.T) {
		filter := &core.GeoFilter{Ring: []core.GeoPoint{
			{Lat: 39, Lon: 116}, {Lat: 39, Lon: 117}, {Lat: 40, Lon: 117}, {Lat: 40, Lon: 116}, {Lat: 39, Lon: 116},
		}}
		assert.Equal(t, float32(1), spatialScore(atCenter, filter))
	})
}

func TestTemporalScore(t *testing.T) {
	ming := &core.TimeRange{Start: 1368, End: 1644}
	mingEntity := &core.GeoEntity{Era: &core.TimeRange{Start: 1406, End: 1912}}
	undated := &core.GeoEntity{}

	assert.Equal(t, float32(1), temporalScore(mingEntity, nil))
	assert.Equal(t, float32(1), temporalScore(undated, ming))

	// 1406..1644 covers (1644-1406)/(1644-1368) of the window
	score := temporalScore(mingEntity, ming)
	assert.InDelta(t, float64(1644-1406)/float64(1644-1368), float64(score), 0.01)

	disjoint := &core.GeoEntity{Era: &core.TimeRange{Start: 2000, End: 2010}}
	assert.Equal(t, float32(0), temporalScore(disjoint, ming))
}
