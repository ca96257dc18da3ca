package badger

import (
	"encoding/binary"
	"fmt"

	"github.com/poiesic/atlas/core"
	"github.com/poiesic/atlas/geo"
)

// Key prefixes for different data types
const (
	entityRecordPrefix  = "geoent"
	entityCellPrefix    = "geocell"
	entityTimePrefix    = "geotime"
	entityUndatedPrefix = "geound"
)

// makeEntityKey generates a key for an entity by ID.
func makeEntityKey(id core.ID) []byte {
	return []byte(fmt.Sprintf("%s:%d", entityRecordPrefix, id))
}

// makeCellKey generates a composite key for the spatial grid index.
// Format: prefix:row:col:id
func makeCellKey(cell geo.Cell, id core.ID) []byte {
	prefix := entityCellPrefix + ":"
	prefixBytes := []byte(prefix)
	buf := make([]byte, len(prefixBytes)+12) // 2+2 bytes for cell + 8 bytes for ID
	offset := copy(buf, prefixBytes)
	// Write in BigEndian order so lexicographic sort works correctly
	binary.BigEndian.PutUint16(buf[offset:], cell.Row)
	offset += 2
	binary.BigEndian.PutUint16(buf[offset:], cell.Col)
	offset += 2
	binary.BigEndian.PutUint64(buf[offset:], uint64(id))
	return buf
}

// makePartialCellKey generates a partial key for iterating one grid cell.
// Format: prefix:row:col
func makePartialCellKey(cell geo.Cell) []byte {
	prefix := entityCellPrefix + ":"
	prefixBytes := []byte(prefix)
	buf := make([]byte, len(prefixBytes)+4)
	offset := copy(buf, prefixBytes)
	binary.BigEndian.PutUint16(buf[offset:], cell.Row)
	offset += 2
	binary.BigEndian.PutUint16(buf[offset:], cell.Col)
	return buf
}

// encodeTimeAxis maps a signed axis value to an unsigned value whose
// big-endian byte order matches the signed order. The sign bit is flipped
// so negative values sort before positive ones.
func encodeTimeAxis(v int64) uint64 {
	return uint64(v) ^ (1 << 63)
}

// makeTimeKey generates a composite key for the era start index.
// Format: prefix:start:id
func makeTimeKey(start int64, id core.ID) []byte {
	prefix := entityTimePrefix + ":"
	prefixBytes := []byte(prefix)
	buf := make([]byte, len(prefixBytes)+16)
	offset := copy(buf, prefixBytes)
	binary.BigEndian.PutUint64(buf[offset:], encodeTimeAxis(start))
	offset += 8
	binary.BigEndian.PutUint64(buf[offset:], uint64(id))
	return buf
}

// makePartialTimeKey generates a partial key for era start range scans.
// Format: prefix:start
func makePartialTimeKey(start int64) []byte {
	prefix := entityTimePrefix + ":"
	prefixBytes := []byte(prefix)
	buf := make([]byte, len(prefixBytes)+8)
	offset := copy(buf, prefixBytes)
	binary.BigEndian.PutUint64(buf[offset:], encodeTimeAxis(start))
	return buf
}

// makeUndatedKey generates a key for the undated-entity index.
// Entities without an era live here so a time-filtered scan can still
// include them when the filter keeps undated records.
func makeUndatedKey(id core.ID) []byte {
	prefix := entityUndatedPrefix + ":"
	prefixBytes := []byte(prefix)
	buf := make([]byte, len(prefixBytes)+8)
	offset := copy(buf, prefixBytes)
	binary.BigEndian.PutUint64(buf[offset:], uint64(id))
	return buf
}
