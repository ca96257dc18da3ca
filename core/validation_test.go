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

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validTestEntity() *GeoEntity {
	return &GeoEntity{
		Id:    IDFromContent("forbidden-city"),
		Title: "Forbidden City",
		Text:  "Imperial palace complex at the heart of Beijing, seat of the Ming and Qing dynasties.",
		Geometry: &Geometry{
			Kind:  GeometryPoint,
			Point: GeoPoint{Lat: 39.917, Lon: 116.397},
		},
		Era: &TimeRange{Start: 1368, End: 1644},
	}
}

func TestValidateEntity(t *testing.T) {
	t.Run("valid entity", func(t *testing.T) {
		assert.NoError(t, ValidateEntity(validTestEntity()))
	})

	t.Run("nil entity", func(t *testing.T) {
		err := ValidateEntity(nil)
		assert.ErrorIs(t, err, ErrInvalidEntity)
	})

	t.Run("empty text", func(t *testing.T) {
		e := validTestEntity()
		e.Text = ""
		err := ValidateEntity(e)
		assert.ErrorIs(t, err, ErrInvalidEntity)
		assert.ErrorIs(t, err, ErrEmptyText)
	})

	t.Run("no geometry is valid", func(t *testing.T) {
		e := validTestEntity()
		e.Geometry = nil
		assert.NoError(t, ValidateEntity(e))
	})

	t.Run("no era is valid", func(t *testing.T) {
		e := validTestEntity()
		e.Era = nil
		assert.NoError(t, ValidateEntity(e))
	})

	t.Run("inverted era", func(t *testing.T) {
		e := validTestEntity()
		e.Era = &TimeRange{Start: 1644, End: 1368}
		err := ValidateEntity(e)
		assert.ErrorIs(t, err, ErrInvalidTimeRange)
	})

	t.Run("point out of range", func(t *testing.T) {
		e := validTestEntity()
		e.Geometry.Point.Lat = 91
		err := ValidateEntity(e)
		assert.ErrorIs(t, err, ErrInvalidGeometry)
	})
}

func TestValidateRing(t *testing.T) {
	square := []GeoPoint{{0, 0}, {0, 1}, {1, 1}, {1, 0}, {0, 0}}

	t.Run("valid ring", func(t *testing.T) {
		assert.NoError(t, ValidateRing(square))
	})

	t.Run("too few vertices", func(t *testing.T) {
		err := ValidateRing([]GeoPoint{{0, 0}, {0, 1}, {0, 0}})
		assert.ErrorIs(t, err, ErrInvalidGeometry)
	})

	t.Run("not closed", func(t *testing.T) {
		err := ValidateRing([]GeoPoint{{0, 0}, {0, 1}, {1, 1}, {1, 0}})
		assert.ErrorIs(t, err, ErrInvalidGeometry)
	})

	t.Run("self-intersecting bowtie", func(t *testing.T) {
		bowtie := []GeoPoint{{0, 0}, {1, 1}, {1, 0}, {0, 1}, {0, 0}}
		err := ValidateRing(bowtie)
		require.ErrorIs(t, err, ErrInvalidGeometry)
		assert.Contains(t, err.Error(), "self-intersects")
	})
}

func TestValidateQuery(t *testing.T) {
	validQuery := func() *Query {
		return &Query{
			Text: "buildings near the Forbidden City built during the Ming dynasty",
			GeoFilter: &GeoFilter{
				Center:       GeoPoint{Lat: 39.917, Lon: 116.397},
				RadiusMeters: 3000,
			},
			TimeFilter: &TimeRange{Start: 1368, End: 1644},
			TopK:       5,
		}
	}

	t.Run("valid query", func(t *testing.T) {
		assert.NoError(t, ValidateQuery(validQuery()))
	})

	t.Run("nil query", func(t *testing.T) {
		assert.ErrorIs(t, ValidateQuery(nil), ErrInvalidQuery)
	})

	t.Run("empty text", func(t *testing.T) {
		q := validQuery()
		q.Text = ""
		assert.ErrorIs(t, ValidateQuery(q), ErrInvalidQuery)
	})

	t.Run("zero top-k", func(t *testing.T) {
		q := validQuery()
		q.TopK = 0
		err := ValidateQuery(q)
		assert.ErrorIs(t, err, ErrInvalidQuery)
		assert.ErrorIs(t, err, ErrInvalidTopK)
	})

	t.Run("negative top-k", func(t *testing.T) {
		q := validQuery()
		q.TopK = -3
		assert.ErrorIs(t, ValidateQuery(q), ErrInvalidTopK)
	})

	t.Run("no filters is valid", func(t *testing.T) {
		q := validQuery()
		q.GeoFilter = nil
		q.TimeFilter = nil
		assert.NoError(t, ValidateQuery(q))
	})

	t.Run("empty geo filter", func(t *testing.T) {
		q := validQuery()
		q.GeoFilter = &GeoFilter{}
		err := ValidateQuery(q)
		assert.ErrorIs(t, err, ErrInvalidGeoFilter)
	})

	t.Run("geo filter with both forms", func(t *testing.T) {
		q := validQuery()
		q.GeoFilter = &GeoFilter{
			RadiusMeters: 1000,
			Ring:         []GeoPoint{{0, 0}, {0, 1}, {1, 1}, {0, 0}},
		}
		assert.ErrorIs(t, ValidateQuery(q), ErrInvalidGeoFilter)
	})

	t.Run("inverted time filter", func(t *testing.T) {
		q := validQuery()
		q.TimeFilter = &TimeRange{Start: 1644, End: 1368}
		assert.ErrorIs(t, ValidateQuery(q), ErrInvalidTimeRange)
	})
}
