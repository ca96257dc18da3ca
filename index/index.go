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


// Package index provides the in-memory vector similarity index. Vectors are
// normalized on insert so search is a flat dot-product scan, which is exact
// and fast enough for the corpus sizes this engine targets.
package index

import (
	"context"
	"errors"
	"fmt"
	"math"
	"slices"
	"sync"

	"github.com/poiesic/atlas/core"
	"github.com/poiesic/atlas/storage"
)

var (
	// ErrDimensionMismatch indicates a vector whose length differs from the
	// index dimension.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")

	// ErrEmptyVector indicates a zero-length or zero-magnitude vector.
	ErrEmptyVector = errors.New("empty vector")
)

// VectorIndex is a thread-safe brute-force cosine similarity index.
// The dimension is fixed by the first vector inserted.
type VectorIndex struct {
	mu      sync.RWMutex
	dim     int
	closed  bool
	vectors map[core.ID][]float32
}

// NewVectorIndex creates an empty index. The dimension is inferred from the
// first Upsert.
func NewVectorIndex() *VectorIndex {
	return &VectorIndex{vectors: make(map[core.ID][]float32)}
}

// Upsert inserts or replaces the vector for an id. The stored copy is
// normalized to unit length.
func (x *VectorIndex) Upsert(id core.ID, vector []float32) error {
	normalized, err := normalize(vector)
	if err != nil {
		return err
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	if x.closed {
		return fmt.Errorf("index: %w", storage.ErrUnavailable)
	}
	if x.dim == 0 {
		x.dim = len(vector)
	} else if len(vector) != x.dim {
		return fmt.Errorf("%w: got %d, index has %d", ErrDimensionMismatch, len(vector), x.dim)
	}

	x.vectors[id] = normalized
	return nil
}

// Delete removes the vector for an id. Deleting a missing id is a no-op.
func (x *VectorIndex) Delete(id core.ID) {
	x.mu.Lock()
	defer x.mu.Unlock()
	delete(x.vectors, id)
}

// Len returns the number of indexed vectors.
func (x *VectorIndex) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.vectors)
}

// Search returns the k most similar ids by cosine similarity, in descending
// score order. Ties break on ascending id so results are deterministic.
func (x *VectorIndex) Search(query []float32, k int) ([]core.SimilarityMatch, error) {
	if k <= 0 {
		return nil, nil
	}

	normalized, err := normalize(query)
	if err != nil {
		return nil, err
	}

	x.mu.RLock()
	defer x.mu.RUnlock()

	if x.closed {
		return nil, fmt.Errorf("index: %w", storage.ErrUnavailable)
	}
	if x.dim != 0 && len(query) != x.dim {
		return nil, fmt.Errorf("%w: got %d, index has %d", ErrDimensionMismatch, len(query), x.dim)
	}

	matches := make([]core.SimilarityMatch, 0, len(x.vectors))
	for id, vec := range x.vectors {
		matches = append(matches, core.SimilarityMatch{
			Id:    id,
			Score: dotProduct(normalized, vec),
		})
	}

	slices.SortFunc(matches, func(a, b core.SimilarityMatch) int {
		if a.Score != b.Score {
			if a.Score > b.Score {
				return -1
			}
			return 1
		}
		if a.Id < b.Id {
			return -1
		}
		if a.Id > b.Id {
			return 1
		}
		return 0
	})

	if len(matches) > k {
		matches = matches[:k]
	}
	return matches, nil
}

// Rebuild repopulates the index from every stored entity. Entities without
// vectors are skipped. Used at engine open, since the index itself is not
// persisted.
func (x *VectorIndex) Rebuild(ctx context.Context, entities storage.EntityRepository) error {
	return entities.ForEachEntity(ctx, func(entity *core.GeoEntity) error {
		if len(entity.Vector) == 0 {
			return nil
		}
		return x.Upsert(entity.Id, entity.Vector)
	})
}

// Close marks the index unavailable. Subsequent Upsert and Search calls
// fail with storage.ErrUnavailable so callers can apply their retry policy.
func (x *VectorIndex) Close() {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.closed = true
}

// normalize returns a unit-length copy of the vector.
func normalize(vector []float32) ([]float32, error) {
	if len(vector) == 0 {
		return nil, ErrEmptyVector
	}
	var sum float64
	for _, v := range vector {
		sum += float64(v) * float64(v)
	}
	if sum == 0 {
		return nil, ErrEmptyVector
	}
	inv := 1 / math.Sqrt(sum)
	out := make([]float32, len(vector))
	for i, v := range vector {
		out[i] = float32(float64(v) * inv)
	}
	return out, nil
}

// dotProduct calculates the dot product of two vectors.
func dotProduct(a, b []float32) float32 {
	var sum float32
	minLen := len(a)
	if len(b) < minLen {
		minLen = len(b)
	}
	for i := 0; i < minLen; i++ {
		sum += a[i] * b[i]
	}
	return sum
}
