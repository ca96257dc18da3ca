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
	"time"

	"github.com/mus-format/mus-go"
	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/varint"
)

// MUS serializers for the stored domain types. Hand-rolled in the shape the
// mus generator produces so the storage package can stay oblivious to field
// layout. Field order is part of the on-disk format: append, never reorder.
var (
	IDMUS        = idMUS{}
	GeoPointMUS  = geoPointMUS{}
	GeometryMUS  = geometryMUS{}
	TimeRangeMUS = timeRangeMUS{}
	GeoEntityMUS = geoEntityMUS{}
)

var (
	_ mus.Serializer[ID]        = IDMUS
	_ mus.Serializer[GeoPoint]  = GeoPointMUS
	_ mus.Serializer[Geometry]  = GeometryMUS
	_ mus.Serializer[TimeRange] = TimeRangeMUS
	_ mus.Serializer[GeoEntity] = GeoEntityMUS
)

var (
	vectorMUS       = ord.NewSliceSer[float32](varint.Float32)
	ringMUS         = ord.NewSliceSer[GeoPoint](GeoPointMUS)
	metadataMUS     = ord.NewMapSer[string, string](ord.String, ord.String)
	geometryPtrMUS  = ord.NewPtrSer[Geometry](GeometryMUS)
	timeRangePtrMUS = ord.NewPtrSer[TimeRange](TimeRangeMUS)
)

type idMUS struct{}

func (idMUS) Marshal(v ID, bs []byte) int {
	return varint.Uint64.Marshal(uint64(v), bs)
}

func (idMUS) Unmarshal(bs []byte) (ID, int, error) {
	num, n, err := varint.Uint64.Unmarshal(bs)
	return ID(num), n, err
}

func (idMUS) Size(v ID) int {
	return varint.Uint64.Size(uint64(v))
}

func (idMUS) Skip(bs []byte) (int, error) {
	return varint.Uint64.Skip(bs)
}

type geoPointMUS struct{}

func (geoPointMUS) Marshal(v GeoPoint, bs []byte) (n int) {
	n = varint.Float64.Marshal(v.Lat, bs)
	n += varint.Float64.Marshal(v.Lon, bs[n:])
	return n
}

func (geoPointMUS) Unmarshal(bs []byte) (v GeoPoint, n int, err error) {
	v.Lat, n, err = varint.Float64.Unmarshal(bs)
	if err != nil {
		return
	}
	var n1 int
	v.Lon, n1, err = varint.Float64.Unmarshal(bs[n:])
	n += n1
	return
}

func (geoPointMUS) Size(v GeoPoint) int {
	return varint.Float64.Size(v.Lat) + varint.Float64.Size(v.Lon)
}

func (geoPointMUS) Skip(bs []byte) (n int, err error) {
	n, err = varint.Float64.Skip(bs)
	if err != nil {
		return
	}
	var n1 int
	n1, err = varint.Float64.Skip(bs[n:])
	n += n1
	return
}

type geometryMUS struct{}

func (geometryMUS) Marshal(v Geometry, bs []byte) (n int) {
	n = varint.Int.Marshal(int(v.Kind), bs)
	n += GeoPointMUS.Marshal(v.Point, bs[n:])
	n += ringMUS.Marshal(v.Ring, bs[n:])
	return n
}

func (geometryMUS) Unmarshal(bs []byte) (v Geometry, n int, err error) {
	var kind int
	kind, n, err = varint.Int.Unmarshal(bs)
	if err != nil {
		return
	}
	v.Kind = GeometryKind(kind)
	var n1 int
	v.Point, n1, err = GeoPointMUS.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.Ring, n1, err = ringMUS.Unmarshal(bs[n:])
	n += n1
	return
}

func (geometryMUS) Size(v Geometry) int {
	return varint.Int.Size(int(v.Kind)) + GeoPointMUS.Size(v.Point) + ringMUS.Size(v.Ring)
}

func (geometryMUS) Skip(bs []byte) (n int, err error) {
	n, err = varint.Int.Skip(bs)
	if err != nil {
		return
	}
	var n1 int
	n1, err = GeoPointMUS.Skip(bs[n:])
	n += n1
	if err != nil {
		return
	}
	n1, err = ringMUS.Skip(bs[n:])
	n += n1
	return
}

type timeRangeMUS struct{}

func (timeRangeMUS) Marshal(v TimeRange, bs []byte) (n int) {
	n = varint.Int64.Marshal(v.Start, bs)
	n += varint.Int64.Marshal(v.End, bs[n:])
	return n
}

func (timeRangeMUS) Unmarshal(bs []byte) (v TimeRange, n int, err error) {
	v.Start, n, err = varint.Int64.Unmarshal(bs)
	if err != nil {
		return
	}
	var n1 int
	v.End, n1, err = varint.Int64.Unmarshal(bs[n:])
	n += n1
	return
}

func (timeRangeMUS) Size(v TimeRange) int {
	return varint.Int64.Size(v.Start) + varint.Int64.Size(v.End)
}

func (timeRangeMUS) Skip(bs []byte) (n int, err error) {
	n, err = varint.Int64.Skip(bs)
	if err != nil {
		return
	}
	var n1 int
	n1, err = varint.Int64.Skip(bs[n:])
	n += n1
	return
}

type geoEntityMUS struct{}

func (geoEntityMUS) Marshal(v GeoEntity, bs []byte) (n int) {
	n = IDMUS.Marshal(v.Id, bs)
	n += ord.String.Marshal(v.Title, bs[n:])
	n += ord.String.Marshal(v.Text, bs[n:])
	n += vectorMUS.Marshal(v.Vector, bs[n:])
	n += geometryPtrMUS.Marshal(v.Geometry, bs[n:])
	n += timeRangePtrMUS.Marshal(v.Era, bs[n:])
	n += metadataMUS.Marshal(v.Metadata, bs[n:])
	n += varint.Int64.Marshal(v.InsertedAt.UnixMicro(), bs[n:])
	n += varint.Int64.Marshal(v.UpdatedAt.UnixMicro(), bs[n:])
	return n
}

func (geoEntityMUS) Unmarshal(bs []byte) (v GeoEntity, n int, err error) {
	v.Id, n, err = IDMUS.Unmarshal(bs)
	if err != nil {
		return
	}
	var n1 int
	v.Title, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.Text, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.Vector, n1, err = vectorMUS.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.Geometry, n1, err = geometryPtrMUS.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.Era, n1, err = timeRangePtrMUS.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.Metadata, n1, err = metadataMUS.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	var micros int64
	micros, n1, err = varint.Int64.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.InsertedAt = time.UnixMicro(micros).UTC()
	micros, n1, err = varint.Int64.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.UpdatedAt = time.UnixMicro(micros).UTC()
	return
}

func (geoEntityMUS) Size(v GeoEntity) int {
	return IDMUS.Size(v.Id) +
		ord.String.Size(v.Title) +
		ord.String.Size(v.Text) +
		vectorMUS.Size(v.Vector) +
		geometryPtrMUS.Size(v.Geometry) +
		timeRangePtrMUS.Size(v.Era) +
		metadataMUS.Size(v.Metadata) +
		varint.Int64.Size(v.InsertedAt.UnixMicro()) +
		varint.Int64.Size(v.UpdatedAt.UnixMicro())
}

func (geoEntityMUS) Skip(bs []byte) (n int, err error) {
	n, err = IDMUS.Skip(bs)
	if err != nil {
		return
	}
	skips := []func([]byte) (int, error){
		ord.String.Skip,
		ord.String.Skip,
		vectorMUS.Skip,
		geometryPtrMUS.Skip,
		timeRangePtrMUS.Skip,
		metadataMUS.Skip,
		varint.Int64.Skip,
		varint.Int64.Skip,
	}
	var n1 int
	for _, skip := range skips {
		n1, err = skip(bs[n:])
		n += n1
		if err != nil {
			return
		}
	}
	return
}
