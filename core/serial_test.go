package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGeoEntityMUSRoundTrip(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Microsecond)
	entity := GeoEntity{
		Id:     IDFromContent("forbidden-city"),
		Title:  "Forbidden City",
		Text:   "Imperial palace complex in Beijing.",
		Vector: []float32{0.1, -0.2, 0.3},
		Geometry: &Geometry{
			Kind:  GeometryPoint,
			Point: GeoPoint{Lat: 39.917, Lon: 116.397},
		},
		Era:        &TimeRange{Start: 1368, End: 1644},
		Metadata:   map[string]string{"address": "Beijing", "source": "doc-1"},
		InsertedAt: now,
		UpdatedAt:  now,
	}

	bs := make([]byte, GeoEntityMUS.Size(entity))
	n := GeoEntityMUS.Marshal(entity, bs)
	require.Equal(t, len(bs), n)

	decoded, n, err := GeoEntityMUS.Unmarshal(bs)
	require.NoError(t, err)
	assert.Equal(t, len(bs), n)
	assert.Equal(t, entity.Id, decoded.Id)
	assert.Equal(t, entity.Title, decoded.Title)
	assert.Equal(t, entity.Text, decoded.Text)
	assert.Equal(t, entity.Vector, decoded.Vector)
	assert.Equal(t, entity.Geometry, decoded.Geometry)
	assert.Equal(t, entity.Era, decoded.Era)
	assert.Equal(t, entity.Metadata, decoded.Metadata)
	assert.True(t, entity.InsertedAt.Equal(decoded.InsertedAt))
	assert.True(t, entity.UpdatedAt.Equal(decoded.UpdatedAt))
}

func TestGeoEntityMUSOptionalFieldsAbsent(t *testing.T) {
	entity := GeoEntity{
		Id:   1,
		Text: "undated, ungeolocated record",
	}

	bs := make([]byte, GeoEntityMUS.Size(entity))
	GeoEntityMUS.Marshal(entity, bs)

	decoded, _, err := GeoEntityMUS.Unmarshal(bs)
	require.NoError(t, err)
	assert.Nil(t, decoded.Geometry)
	assert.Nil(t, decoded.Era)
	assert.Equal(t, entity.Text, decoded.Text)
}

func TestGeoEntityMUSSkip(t *testing.T) {
	entity := GeoEntity{Id: 7, Text: "skippable"}
	bs := make([]byte, GeoEntityMUS.Size(entity))
	GeoEntityMUS.Marshal(entity, bs)

	n, err := GeoEntityMUS.Skip(bs)
	require.NoError(t, err)
	assert.Equal(t, len(bs), n)
}
