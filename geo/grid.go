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


package geo

import "math"

// CellDegrees is the edge length of one spatial grid cell. 0.25 degrees is
// roughly 28km of latitude, coarse enough to keep the index small and fine
// enough that a city-radius query touches a handful of cells.
const CellDegrees = 0.25

// Cell identifies one grid cell. Coordinates are floor-divided cell indexes,
// offset to stay non-negative so they order naturally in index keys.
type Cell struct {
	Row uint16
	Col uint16
}

// CellOf returns the grid cell containing the given coordinate.
func CellOf(lat, lon float64) Cell {
	return Cell{
		Row: uint16(math.Floor((lat + 90) / CellDegrees)),
		Col: uint16(math.Floor((lon + 180) / CellDegrees)),
	}
}

// CellsCovering returns every cell intersecting the bounding box, in
// row-major order.
func CellsCovering(box BoundingBox) []Cell {
	minCell := CellOf(box.MinLat, box.MinLon)
	maxCell := CellOf(box.MaxLat, box.MaxLon)
	cells := make([]Cell, 0, int(maxCell.Row-minCell.Row+1)*int(maxCell.Col-minCell.Col+1))
	for row := minCell.Row; row <= maxCell.Row; row++ {
		for col := minCell.Col; col <= maxCell.Col; col++ {
			cells = append(cells, Cell{Row: row, Col: col})
		}
	}
	return cells
}
