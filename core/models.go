package core

import (
	"encoding/binary"
	"math"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// ID is a unique identifier for domain entities.
// It is generated using content-based hashing or assigned by the caller.
type ID uint64

// IDFromContent generates a deterministic ID from text content using BLAKE2b hashing.
// This ensures that identical content produces identical IDs, which gives
// replace-by-id semantics to re-ingested records that carry a stable source key.
func IDFromContent(text string) ID {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	sum := h.Sum(nil)
	return ID(binary.LittleEndian.Uint64(sum))
}

// GeoPoint is a WGS84 coordinate pair.
type GeoPoint struct {
	Lat float64
	Lon float64
}

// GeometryKind identifies the shape of an entity geometry.
type GeometryKind int

const (
	// GeometryPoint represents a single coordinate.
	GeometryPoint GeometryKind = iota + 1
	// GeometryPolygon represents a simple closed ring.
	GeometryPolygon
)

// Geometry is the spatial shape of an entity: a point or a simple polygon.
// For polygons, Point holds a representative location (the ring centroid,
// filled in at ingestion) used for distance scoring and grid indexing.
type Geometry struct {
	Kind  GeometryKind
	Point GeoPoint
	Ring  []GeoPoint // Closed ring: first vertex repeated last, at least 4 vertices, non-self-intersecting
}

// Timeline bounds for open-ended ranges.
const (
	TimeMin int64 = math.MinInt64
	TimeMax int64 = math.MaxInt64
)

// TimeRange is an inclusive interval on an opaque timeline axis.
// Callers may use Unix timestamps or plain year numbers; the engine only
// compares values. Open sides are expressed with TimeMin / TimeMax.
type TimeRange struct {
	Start int64
	End   int64
}

// Bounded reports whether both sides of the range are finite.
func (t TimeRange) Bounded() bool {
	return t.Start != TimeMin && t.End != TimeMax
}

// Overlaps reports whether the two inclusive ranges intersect.
func (t TimeRange) Overlaps(o TimeRange) bool {
	return t.Start <= o.End && o.Start <= t.End
}

// OverlapFraction returns the share of the window covered by t, in [0,1].
// An unbounded window scores 1.0 for any overlapping range.
func (t TimeRange) OverlapFraction(window TimeRange) float32 {
	if !t.Overlaps(window) {
		return 0
	}
	if !window.Bounded() {
		return 1
	}
	start := max(t.Start, window.Start)
	end := min(t.End, window.End)
	// float64 arithmetic avoids int64 overflow on open-ended entity ranges
	windowSpan := float64(window.End) - float64(window.Start)
	if windowSpan <= 0 {
		return 1
	}
	fraction := (float64(end) - float64(start)) / windowSpan
	if fraction > 1 {
		fraction = 1
	}
	return float32(fraction)
}

// GeoEntity is a geographic knowledge record with optional spatial geometry,
// optional temporal extent, and a text payload used for embedding and
// generation context.
type GeoEntity struct {
	Id         ID
	Title      string
	Text       string
	Vector     []float32         // Embedding of Text (populated at ingestion)
	Geometry   *Geometry         // nil = ungeolocated
	Era        *TimeRange        // nil = undated
	Metadata   map[string]string // Opaque to the engine, passed through to attribution
	InsertedAt time.Time
	UpdatedAt  time.Time
}

// GeoFilter restricts a query spatially: either a center with a positive
// radius, or a polygon ring. Exactly one form must be set.
type GeoFilter struct {
	Center       GeoPoint
	RadiusMeters float64
	Ring         []GeoPoint
}

// IsRadius reports whether the filter is the center/radius form.
func (f *GeoFilter) IsRadius() bool {
	return f.RadiusMeters > 0 && len(f.Ring) == 0
}

// IsPolygon reports whether the filter is the polygon form.
func (f *GeoFilter) IsPolygon() bool {
	return len(f.Ring) > 0
}

// Query is a natural-language question with optional spatial and temporal
// constraints.
type Query struct {
	Text       string
	GeoFilter  *GeoFilter
	TimeFilter *TimeRange
	Category   string // Optional exact match against entity metadata "category"
	TopK       int
}

// RankedResult is one scored entry of a hybrid retrieval run. It is
// query-scoped and never persisted.
type RankedResult struct {
	Id            ID
	SemanticScore float32
	SpatialScore  float32
	TemporalScore float32
	CombinedScore float32
}

// SimilarityMatch is an entity hit from nearest-neighbor search.
type SimilarityMatch struct {
	Id    ID
	Score float32
}

// EligibleSet is the set of entity ids passing the spatial and temporal
// predicates of a query. All means every stored entity is eligible
// (identity filter, both predicates absent).
type EligibleSet struct {
	All bool
	IDs map[ID]struct{}
}

// Contains reports whether id is in the set.
func (s *EligibleSet) Contains(id ID) bool {
	if s.All {
		return true
	}
	_, ok := s.IDs[id]
	return ok
}

// Empty reports whether no entity is eligible.
func (s *EligibleSet) Empty() bool {
	return !s.All && len(s.IDs) == 0
}

// Len returns the number of explicitly eligible ids. Meaningless when All.
func (s *EligibleSet) Len() int {
	return len(s.IDs)
}
