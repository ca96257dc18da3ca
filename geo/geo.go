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


// Package geo provides the spherical-geometry primitives used by the
// spatial filter: great-circle distance, polygon containment, bounding
// boxes, and the grid cells backing the spatial index.
package geo

import (
	"math"

	"github.com/poiesic/atlas/core"
)

// EarthRadiusMeters is the mean Earth radius used for great-circle distance.
const EarthRadiusMeters = 6371000.0

// Distance returns the great-circle distance between two points in meters,
// computed with the haversine formula.
func Distance(a, b core.GeoPoint) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLon := (b.Lon - a.Lon) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * EarthRadiusMeters * math.Asin(math.Min(1, math.Sqrt(h)))
}

// PointInRing reports whether p lies inside the closed ring, using
// even-odd ray casting in plate-carree coordinates. Points exactly on an
// edge may land on either side; filters at this scale do not care.
func PointInRing(p core.GeoPoint, ring []core.GeoPoint) bool {
	if len(ring) < 4 {
		return false
	}
	inside := false
	n := len(ring) - 1 // last vertex duplicates the first
	for i := 0; i < n; i++ {
		a, b := ring[i], ring[i+1]
		if (a.Lat > p.Lat) == (b.Lat > p.Lat) {
			continue
		}
		lonAtLat := a.Lon + (p.Lat-a.Lat)/(b.Lat-a.Lat)*(b.Lon-a.Lon)
		if p.Lon < lonAtLat {
			inside = !inside
		}
	}
	return inside
}

// BoundingBox is a lat/lon aligned rectangle.
type BoundingBox struct {
	MinLat, MinLon float64
	MaxLat, MaxLon float64
}

// RingBoundingBox returns the bounding box of a ring.
func RingBoundingBox(ring []core.GeoPoint) BoundingBox {
	box := BoundingBox{MinLat: 90, MinLon: 180, MaxLat: -90, MaxLon: -180}
	for _, p := range ring {
		box.MinLat = math.Min(box.MinLat, p.Lat)
		box.MaxLat = math.Max(box.MaxLat, p.Lat)
		box.MinLon = math.Min(box.MinLon, p.Lon)
		box.MaxLon = math.Max(box.MaxLon, p.Lon)
	}
	return box
}

// RadiusBoundingBox returns a box guaranteed to contain the circle of the
// given radius around center. Longitude span widens toward the poles; the
// box is clamped to valid coordinates near them.
func RadiusBoundingBox(center core.GeoPoint, radiusMeters float64) BoundingBox {
	dLat := radiusMeters / EarthRadiusMeters * 180 / math.Pi
	cosLat := math.Cos(center.Lat * math.Pi / 180)
	var dLon float64
	if cosLat < 1e-9 {
		dLon = 180
	} else {
		dLon = dLat / cosLat
	}
	return BoundingBox{
		MinLat: math.Max(-90, center.Lat-dLat),
		MaxLat: math.Min(90, center.Lat+dLat),
		MinLon: math.Max(-180, center.Lon-dLon),
		MaxLon: math.Min(180, center.Lon+dLon),
	}
}

// RingCentroid returns the area centroid of a closed ring. Falls back to
// the vertex mean for degenerate (zero-area) rings.
func RingCentroid(ring []core.GeoPoint) core.GeoPoint {
	var area, cLat, cLon float64
	n := len(ring) - 1
	for i := 0; i < n; i++ {
		a, b := ring[i], ring[i+1]
		f := a.Lon*b.Lat - b.Lon*a.Lat
		area += f
		cLon += (a.Lon + b.Lon) * f
		cLat += (a.Lat + b.Lat) * f
	}
	if math.Abs(area) < 1e-12 {
		var sumLat, sumLon float64
		for i := 0; i < n; i++ {
			sumLat += ring[i].Lat
			sumLon += ring[i].Lon
		}
		return core.GeoPoint{Lat: sumLat / float64(n), Lon: sumLon / float64(n)}
	}
	area *= 0.5
	return core.GeoPoint{Lat: cLat / (6 * area), Lon: cLon / (6 * area)}
}

// RepresentativePoint returns the point used for distance scoring and grid
// indexing of a geometry: the point itself, or the ring centroid when the
// polygon carries no precomputed point.
func RepresentativePoint(g *core.Geometry) core.GeoPoint {
	if g.Kind == core.GeometryPolygon && g.Point == (core.GeoPoint{}) {
		return RingCentroid(g.Ring)
	}
	return g.Point
}
