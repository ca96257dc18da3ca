// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package core

import "fmt"

// ValidateEntity validates a GeoEntity according to domain rules.
//
// Validation rules:
//   - Text must not be empty
//   - Geometry, if present, must be a valid point or a valid polygon ring
//   - Era, if present, must have Start <= End
//
// NOT validated (populated at ingestion):
//   - Vector (can be empty until the embedding step runs)
//   - ID (0 is valid; ingestion derives one from content)
func ValidateEntity(entity *GeoEntity) error {
	if entity == nil {
		return fmt.Errorf("%w: entity is nil", ErrInvalidEntity)
	}

	if entity.Text == "" {
		return fmt.Errorf("%w: %w", ErrInvalidEntity, ErrEmptyText)
	}

	if entity.Geometry != nil {
		if err := ValidateGeometry(entity.Geometry); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidEntity, err)
		}
	}

	if entity.Era != nil && entity.Era.Start > entity.Era.End {
		return fmt.Errorf("%w: %w", ErrInvalidEntity, ErrInvalidTimeRange)
	}

	return nil
}

// ValidateGeometry validates a point or polygon geometry.
func ValidateGeometry(g *Geometry) error {
	switch g.Kind {
	case GeometryPoint:
		if !validCoordinate(g.Point) {
			return fmt.Errorf("%w: point out of range (%f, %f)", ErrInvalidGeometry, g.Point.Lat, g.Point.Lon)
		}
	case GeometryPolygon:
		if err := ValidateRing(g.Ring); err != nil {
			return err
		}
	default:
		return fmt.Errorf("%w: unknown kind %d", ErrInvalidGeometry, g.Kind)
	}
	return nil
}

// ValidateRing validates a closed polygon ring: at least 4 vertices with the
// first repeated last, all coordinates in range, no self-intersection.
func ValidateRing(ring []GeoPoint) error {
	if len(ring) < 4 {
		return fmt.Errorf("%w: ring needs at least 4 vertices, got %d", ErrInvalidGeometry, len(ring))
	}
	if ring[0] != ring[len(ring)-1] {
		return fmt.Errorf("%w: ring is not closed", ErrInvalidGeometry)
	}
	for _, p := range ring {
		if !validCoordinate(p) {
			return fmt.Errorf("%w: vertex out of range (%f, %f)", ErrInvalidGeometry, p.Lat, p.Lon)
		}
	}
	if ringSelfIntersects(ring) {
		return fmt.Errorf("%w: ring self-intersects", ErrInvalidGeometry)
	}
	return nil
}

// ValidateQuery validates a Query according to engine rules.
// A query with TopK <= 0, empty text, or a malformed filter is rejected
// immediately and is never retried.
func ValidateQuery(query *Query) error {
	if query == nil {
		return fmt.Errorf("%w: query is nil", ErrInvalidQuery)
	}

	if query.Text == "" {
		return fmt.Errorf("%w: %w", ErrInvalidQuery, ErrEmptyText)
	}

	if query.TopK <= 0 {
		return fmt.Errorf("%w: %w (got %d)", ErrInvalidQuery, ErrInvalidTopK, query.TopK)
	}

	if f := query.GeoFilter; f != nil {
		switch {
		case f.IsRadius():
			if !validCoordinate(f.Center) {
				return fmt.Errorf("%w: %w: center out of range", ErrInvalidQuery, ErrInvalidGeoFilter)
			}
		case f.IsPolygon():
			if f.RadiusMeters > 0 {
				return fmt.Errorf("%w: %w: both radius and polygon set", ErrInvalidQuery, ErrInvalidGeoFilter)
			}
			if err := ValidateRing(f.Ring); err != nil {
				return fmt.Errorf("%w: %w: %w", ErrInvalidQuery, ErrInvalidGeoFilter, err)
			}
		default:
			return fmt.Errorf("%w: %w: neither radius nor polygon set", ErrInvalidQuery, ErrInvalidGeoFilter)
		}
	}

	if t := query.TimeFilter; t != nil && t.Start > t.End {
		return fmt.Errorf("%w: %w", ErrInvalidQuery, ErrInvalidTimeRange)
	}

	return nil
}

func validCoordinate(p GeoPoint) bool {
	return p.Lat >= -90 && p.Lat <= 90 && p.Lon >= -180 && p.Lon <= 180
}

// ringSelfIntersects checks every non-adjacent segment pair for proper
// intersection. O(n^2), acceptable for the small rings filters carry.
func ringSelfIntersects(ring []GeoPoint) bool {
	n := len(ring) - 1 // last vertex duplicates the first
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			// Skip adjacent segments (they share an endpoint)
			if j == i+1 || (i == 0 && j == n-1) {
				continue
			}
			if segmentsCross(ring[i], ring[i+1], ring[j], ring[j+1]) {
				return true
			}
		}
	}
	return false
}

func segmentsCross(a, b, c, d GeoPoint) bool {
	d1 := cross(c, d, a)
	d2 := cross(c, d, b)
	d3 := cross(a, b, c)
	d4 := cross(a, b, d)
	return ((d1 > 0 && d2 < 0) || (d1 < 0 && d2 > 0)) &&
		((d3 > 0 && d4 < 0) || (d3 < 0 && d4 > 0))
}

func cross(o, a, b GeoPoint) float64 {
	return (a.Lon-o.Lon)*(b.Lat-o.Lat) - (a.Lat-o.Lat)*(b.Lon-o.Lon)
}
