package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIDFromContent(t *testing.T) {
	t.Run("deterministic", func(t *testing.T) {
		id1 := IDFromContent("forbidden city")
		id2 := IDFromContent("forbidden city")
		assert.Equal(t, id1, id2)
	})

	t.Run("different content different id", func(t *testing.T) {
		id1 := IDFromContent("forbidden city")
		id2 := IDFromContent("summer palace")
		assert.NotEqual(t, id1, id2)
	})

	t.Run("empty content", func(t *testing.T) {
		id := IDFromContent("")
		assert.NotEqual(t, ID(0), id)
	})
}

func TestTimeRangeOverlaps(t *testing.T) {
	ming := TimeRange{Start: 1368, End: 1644}

	assert.True(t, ming.Overlaps(TimeRange{Start: 1368, End: 1644}))
	assert.True(t, ming.Overlaps(TimeRange{Start: 1600, End: 1700}))
	assert.True(t, ming.Overlaps(TimeRange{Start: 1644, End: 1911}), "inclusive endpoints touch")
	assert.False(t, ming.Overlaps(TimeRange{Start: 1645, End: 1911}))
	assert.True(t, ming.Overlaps(TimeRange{Start: TimeMin, End: TimeMax}))
}

func TestTimeRangeOverlapFraction(t *testing.T) {
	ming := TimeRange{Start: 1368, End: 1644}

	t.Run("full coverage", func(t *testing.T) {
		assert.InDelta(t, 1.0, ming.OverlapFraction(TimeRange{Start: 1368, End: 1644}), 1e-6)
	})

	t.Run("half coverage", func(t *testing.T) {
		// window 1506..1644 fully inside the era
		got := ming.OverlapFraction(TimeRange{Start: 1506, End: 1644})
		assert.InDelta(t, 1.0, got, 1e-6)
	})

	t.Run("partial coverage of window", func(t *testing.T) {
		// window 1600..1700, era covers 1600..1644 = 44 of 100
		got := ming.OverlapFraction(TimeRange{Start: 1600, End: 1700})
		assert.InDelta(t, 0.44, got, 1e-6)
	})

	t.Run("no overlap", func(t *testing.T) {
		assert.Equal(t, float32(0), ming.OverlapFraction(TimeRange{Start: 1700, End: 1800}))
	})

	t.Run("unbounded window", func(t *testing.T) {
		got := ming.OverlapFraction(TimeRange{Start: TimeMin, End: TimeMax})
		assert.Equal(t, float32(1), got)
	})

	t.Run("open-ended era does not overflow", func(t *testing.T) {
		era := TimeRange{Start: TimeMin, End: 1644}
		got := era.OverlapFraction(TimeRange{Start: 1600, End: 1700})
		assert.InDelta(t, 0.44, got, 1e-6)
	})
}

func TestEligibleSet(t *testing.T) {
	t.Run("all", func(t *testing.T) {
		s := &EligibleSet{All: true}
		assert.True(t, s.Contains(ID(42)))
		assert.False(t, s.Empty())
	})

	t.Run("explicit ids", func(t *testing.T) {
		s := &EligibleSet{IDs: map[ID]struct{}{1: {}, 2: {}}}
		assert.True(t, s.Contains(1))
		assert.False(t, s.Contains(3))
		assert.Equal(t, 2, s.Len())
		assert.False(t, s.Empty())
	})

	t.Run("empty", func(t *testing.T) {
		s := &EligibleSet{}
		assert.True(t, s.Empty())
		assert.False(t, s.Contains(1))
	})
}

func TestGeoFilterForms(t *testing.T) {
	radius := &GeoFilter{Center: GeoPoint{Lat: 39.917, Lon: 116.397}, RadiusMeters: 3000}
	assert.True(t, radius.IsRadius())
	assert.False(t, radius.IsPolygon())

	ring := &GeoFilter{Ring: []GeoPoint{{0, 0}, {0, 1}, {1, 1}, {0, 0}}}
	assert.False(t, ring.IsRadius())
	assert.True(t, ring.IsPolygon())
}
