package badger

import (
	"strconv"

	"github.com/google/uuid"
)

// Key prefixes for different data types
const (
	collectionInfoPrefix = "colinfo"
	recordPrefix         = "colrec"
	checkpointPrefix     = "synccp"
)

// makeCollectionInfoKey generates the key holding a collection descriptor.
// Format: prefix:name
func makeCollectionInfoKey(name string) []byte {
	return []byte(collectionInfoPrefix + ":" + name)
}

// makeRecordPrefix generates the key prefix shared by every record in a collection.
// Format: prefix:name:
func makeRecordPrefix(name string) []byte {
	return []byte(recordPrefix + ":" + name + ":")
}

// makeRecordKey generates a key for a record by collection and ID.
// Format: prefix:name:<16 raw id bytes>
func makeRecordKey(name string, id uuid.UUID) []byte {
	prefix := makeRecordPrefix(name)
	buf := make([]byte, len(prefix)+len(id))
	offset := copy(buf, prefix)
	copy(buf[offset:], id[:])
	return buf
}

// makeCheckpointKey generates the key holding a collection's sync checkpoint
// for one window.
// Format: prefix:name:hours
func makeCheckpointKey(name string, hoursBack int) []byte {
	return []byte(checkpointPrefix + ":" + name + ":" + strconv.Itoa(hoursBack))
}
