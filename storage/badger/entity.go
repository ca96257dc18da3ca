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


package badger

import (
	"bytes"
	"context"
	"slices"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/atlas/core"
	"github.com/poiesic/atlas/geo"
	"github.com/poiesic/atlas/storage"
)

// categoryMetadataKey is the metadata key checked by category filters.
const categoryMetadataKey = "category"

// EntityRepository implements storage.EntityRepository for BadgerDB.
type EntityRepository struct {
	backend *Backend
}

var _ storage.EntityRepository = (*EntityRepository)(nil)

// NewEntityRepository creates a new EntityRepository.
func NewEntityRepository(backend *Backend) (storage.EntityRepository, error) {
	return &EntityRepository{backend: backend}, nil
}

// Close releases repository resources. The backend is owned by the caller
// and stays open.
func (r *EntityRepository) Close() error {
	return nil
}

// PutEntities stores entities with replace-by-id semantics.
func (r *EntityRepository) PutEntities(ctx context.Context, entities ...*core.GeoEntity) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		now := time.Now().UTC()
		for _, entity := range entities {
			key := makeEntityKey(entity.Id)

			// Read old record to clean up its index entries on replace
			old, err := r.readEntity(tx, key)
			if err != nil {
				return err
			}
			if old != nil {
				entity.InsertedAt = old.InsertedAt
				if err := deleteIndexEntries(tx, old); err != nil {
					return err
				}
			} else {
				entity.InsertedAt = now
			}
			entity.UpdatedAt = now

			value := storage.MarshalEntity(entity)
			if err := tx.Set(key, value); err != nil {
				return err
			}
			if err := writeIndexEntries(tx, entity); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
}

// DeleteEntities removes entities and their index entries by id.
func (r *EntityRepository) DeleteEntities(ctx context.Context, ids ...core.ID) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		for _, id := range ids {
			key := makeEntityKey(id)

			entity, err := r.readEntity(tx, key)
			if err != nil {
				return err
			}
			if entity == nil {
				return storage.ErrNotFound
			}

			if err := deleteIndexEntries(tx, entity); err != nil {
				return err
			}
			if err := tx.Delete(key); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
}

// GetEntity retrieves a single entity by id.
func (r *EntityRepository) GetEntity(ctx context.Context, id core.ID) (*core.GeoEntity, error) {
	var result *core.GeoEntity
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		result, err = r.readEntity(tx, makeEntityKey(id))
		if err != nil {
			return err
		}
		if result == nil {
			return storage.ErrNotFound
		}
		return nil
	}, false)
	return result, err
}

// GetEntities retrieves multiple entities by id, skipping missing ones.
func (r *EntityRepository) GetEntities(ctx context.Context, ids ...core.ID) ([]*core.GeoEntity, error) {
	var result []*core.GeoEntity
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		for _, id := range ids {
			entity, err := r.readEntity(tx, makeEntityKey(id))
			if err != nil {
				return err
			}
			if entity != nil {
				result = append(result, entity)
			}
		}
		return nil
	}, false)
	return result, err
}

// Eligible evaluates the spatial-temporal predicate. Candidates come from
// the grid-cell index when a geo filter is present, from the era start
// index when only a time filter is present, and from a full scan when only
// a category filter is present. Every candidate is verified against the
// exact predicate before inclusion.
func (r *EntityRepository) Eligible(ctx context.Context, filter *storage.EligibleFilter) (*core.EligibleSet, error) {
	if filter == nil || (filter.Geo == nil && filter.Time == nil && filter.Category == "") {
		return &core.EligibleSet{All: true}, nil
	}

	set := &core.EligibleSet{IDs: make(map[core.ID]struct{})}
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var candidates []core.ID
		var err error

		switch {
		case filter.Geo != nil:
			candidates, err = r.cellCandidates(tx, filter.Geo)
		case filter.Time != nil:
			candidates, err = r.timeCandidates(tx, filter.Time, filter.ExcludeUndated)
		default:
			candidates, err = r.allIDs(tx)
		}
		if err != nil {
			return err
		}

		for _, id := range candidates {
			if err := ctx.Err(); err != nil {
				return err
			}
			if _, seen := set.IDs[id]; seen {
				continue
			}
			entity, err := r.readEntity(tx, makeEntityKey(id))
			if err != nil {
				return err
			}
			if entity == nil {
				continue
			}
			if matchesFilter(entity, filter) {
				set.IDs[id] = struct{}{}
			}
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}
	return set, nil
}

// Count returns the number of stored entities.
func (r *EntityRepository) Count(ctx context.Context) (int, error) {
	count := 0
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(entityRecordPrefix + ":")
		opts.PrefetchValues = false
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			count++
		}
		return nil
	}, false)
	return count, err
}

// ForEachEntity calls fn for every stored entity in key order.
func (r *EntityRepository) ForEachEntity(ctx context.Context, fn func(*core.GeoEntity) error) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(entityRecordPrefix + ":")
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			var entity *core.GeoEntity
			err := iter.Item().Value(func(val []byte) error {
				var err error
				entity, err = storage.UnmarshalEntity(val)
				return err
			})
			if err != nil {
				return err
			}
			if err := fn(entity); err != nil {
				return err
			}
		}
		return nil
	}, false)
}

// Helper methods

// readEntity reads an entity from the transaction. Returns nil, nil when
// the key does not exist.
func (r *EntityRepository) readEntity(tx *badger.Txn, key []byte) (*core.GeoEntity, error) {
	item, err := tx.Get(key)
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return nil, nil
		}
		return nil, err
	}

	var entity *core.GeoEntity
	err = item.Value(func(val []byte) error {
		var unmarshalErr error
		entity, unmarshalErr = storage.UnmarshalEntity(val)
		return unmarshalErr
	})
	return entity, err
}

// cellCandidates collects entity ids from every grid cell covering the
// filter's bounding box.
func (r *EntityRepository) cellCandidates(tx *badger.Txn, gf *core.GeoFilter) ([]core.ID, error) {
	var box geo.BoundingBox
	if gf.IsRadius() {
		box = geo.RadiusBoundingBox(gf.Center, gf.RadiusMeters)
	} else {
		box = geo.RingBoundingBox(gf.Ring)
	}

	var ids []core.ID
	for _, cell := range geo.CellsCovering(box) {
		startKey := makePartialCellKey(cell)
		iter := tx.NewIterator(badger.DefaultIteratorOptions)
		for iter.Seek(startKey); iter.Valid(); iter.Next() {
			key := iter.Item().Key()
			if len(key) < len(startKey) || !bytes.Equal(key[:len(startKey)], startKey) {
				break
			}
			var id core.ID
			err := iter.Item().Value(func(val []byte) error {
				var err error
				id, err = storage.UnmarshalID(val)
				return err
			})
			if err != nil {
				iter.Close()
				return nil, err
			}
			ids = append(ids, id)
		}
		iter.Close()
	}
	return ids, nil
}

// timeCandidates collects ids of entities whose era starts at or before the
// window end, plus undated entities unless excluded. Era end is verified
// later against the full record.
func (r *EntityRepository) timeCandidates(tx *badger.Txn, window *core.TimeRange, excludeUndated bool) ([]core.ID, error) {
	var ids []core.ID

	startKey := []byte(entityTimePrefix + ":")
	endKey := makePartialTimeKey(window.End)
	iter := tx.NewIterator(badger.DefaultIteratorOptions)
	for iter.Seek(startKey); iter.Valid(); iter.Next() {
		key := iter.Item().Key()
		if len(key) < len(startKey) || !bytes.Equal(key[:len(startKey)], startKey) {
			break
		}
		if slices.Compare(key[:len(endKey)], endKey) > 0 {
			break
		}
		var id core.ID
		err := iter.Item().Value(func(val []byte) error {
			var err error
			id, err = storage.UnmarshalID(val)
			return err
		})
		if err != nil {
			iter.Close()
			return nil, err
		}
		ids = append(ids, id)
	}
	iter.Close()

	if !excludeUndated {
		prefix := []byte(entityUndatedPrefix + ":")
		iter := tx.NewIterator(badger.DefaultIteratorOptions)
		for iter.Seek(prefix); iter.Valid(); iter.Next() {
			key := iter.Item().Key()
			if len(key) < len(prefix) || !bytes.Equal(key[:len(prefix)], prefix) {
				break
			}
			var id core.ID
			err := iter.Item().Value(func(val []byte) error {
				var err error
				id, err = storage.UnmarshalID(val)
				return err
			})
			if err != nil {
				iter.Close()
				return nil, err
			}
			ids = append(ids, id)
		}
		iter.Close()
	}

	return ids, nil
}

// allIDs collects every stored entity id via the primary prefix.
func (r *EntityRepository) allIDs(tx *badger.Txn) ([]core.ID, error) {
	var ids []core.ID
	opts := badger.DefaultIteratorOptions
	opts.Prefix = []byte(entityRecordPrefix + ":")
	iter := tx.NewIterator(opts)
	defer iter.Close()

	for iter.Rewind(); iter.Valid(); iter.Next() {
		var entity *core.GeoEntity
		err := iter.Item().Value(func(val []byte) error {
			var err error
			entity, err = storage.UnmarshalEntity(val)
			return err
		})
		if err != nil {
			return nil, err
		}
		ids = append(ids, entity.Id)
	}
	return ids, nil
}

// writeIndexEntries adds spatial and temporal index entries for an entity.
func writeIndexEntries(tx *badger.Txn, entity *core.GeoEntity) error {
	idValue := storage.MarshalID(entity.Id)

	for _, cell := range entityCells(entity.Geometry) {
		if err := tx.Set(makeCellKey(cell, entity.Id), idValue); err != nil {
			return err
		}
	}

	if entity.Era != nil {
		if err := tx.Set(makeTimeKey(entity.Era.Start, entity.Id), idValue); err != nil {
			return err
		}
	} else {
		if err := tx.Set(makeUndatedKey(entity.Id), idValue); err != nil {
			return err
		}
	}
	return nil
}

// deleteIndexEntries removes spatial and temporal index entries for an entity.
func deleteIndexEntries(tx *badger.Txn, entity *core.GeoEntity) error {
	for _, cell := range entityCells(entity.Geometry) {
		if err := tx.Delete(makeCellKey(cell, entity.Id)); err != nil {
			return err
		}
	}

	if entity.Era != nil {
		if err := tx.Delete(makeTimeKey(entity.Era.Start, entity.Id)); err != nil {
			return err
		}
	} else {
		if err := tx.Delete(makeUndatedKey(entity.Id)); err != nil {
			return err
		}
	}
	return nil
}

// entityCells returns the grid cells an entity's geometry occupies. A point
// occupies one cell, a polygon every cell covering its bounding box.
func entityCells(g *core.Geometry) []geo.Cell {
	if g == nil {
		return nil
	}
	switch g.Kind {
	case core.GeometryPoint:
		return []geo.Cell{geo.CellOf(g.Point.Lat, g.Point.Lon)}
	case core.GeometryPolygon:
		return geo.CellsCovering(geo.RingBoundingBox(g.Ring))
	}
	return nil
}

// matchesFilter verifies an entity against the exact eligibility predicate.
func matchesFilter(entity *core.GeoEntity, filter *storage.EligibleFilter) bool {
	if filter.Geo != nil {
		if entity.Geometry == nil {
			return false
		}
		point := geo.RepresentativePoint(entity.Geometry)
		if filter.Geo.IsRadius() {
			if geo.Distance(filter.Geo.Center, point) > filter.Geo.RadiusMeters {
				return false
			}
		} else {
			if !geo.PointInRing(point, filter.Geo.Ring) {
				return false
			}
		}
	}

	if filter.Time != nil {
		if entity.Era == nil {
			if filter.ExcludeUndated {
				return false
			}
		} else if !entity.Era.Overlaps(*filter.Time) {
			return false
		}
	}

	if filter.Category != "" && entity.Metadata[categoryMetadataKey] != filter.Category {
		return false
	}

	return true
}
