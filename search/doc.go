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


// Package search implements hybrid retrieval: embedding similarity fused
// with hard spatial and temporal predicates into one ranked candidate set.
//
// A query runs as two concurrent branches. The semantic branch embeds the
// question and searches the vector index; the predicate branch evaluates
// the spatial-temporal filter against the entity store. The branches join,
// the semantic hits are intersected with the eligible set, and the index is
// re-searched with doubled k when the intersection falls short of TopK.
// Survivors are scored on three axes (semantic, spatial, temporal) and
// combined with configurable weights into a deterministic ranking.
package search
