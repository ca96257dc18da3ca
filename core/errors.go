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

import "errors"

// Domain validation errors
var (
	// ErrInvalidEntity indicates a GeoEntity failed validation.
	ErrInvalidEntity = errors.New("invalid entity")

	// ErrInvalidQuery indicates a Query failed validation.
	ErrInvalidQuery = errors.New("invalid query")

	// ErrEmptyText indicates the Text field is empty.
	ErrEmptyText = errors.New("text cannot be empty")

	// ErrInvalidGeometry indicates a malformed geometry.
	ErrInvalidGeometry = errors.New("invalid geometry")

	// ErrInvalidTimeRange indicates a time range with start after end.
	ErrInvalidTimeRange = errors.New("time range start must not be after end")

	// ErrInvalidGeoFilter indicates a geo filter that is neither a valid
	// radius form nor a valid polygon form.
	ErrInvalidGeoFilter = errors.New("invalid geo filter")

	// ErrInvalidTopK indicates a non-positive result count.
	ErrInvalidTopK = errors.New("top-k must be positive")
)
