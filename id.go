package passage

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// NewID generates a globally unique, time-sortable UUIDv7 (RFC 9562).
// Used for document identifiers.
func NewID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// ChunkID derives a stable chunk identifier from the document ID, the
// chunking generation, and the chunk's sequence index. Fixed-width numeric
// parts keep lexicographic order aligned with document order, which the
// retriever relies on for deterministic tie-breaking.
func ChunkID(docID string, generation, index int) string {
	return fmt.Sprintf("%s#g%03d#c%05d", docID, generation, index)
}

// NowUnix returns current time as Unix seconds.
func NowUnix() int64 {
	return time.Now().Unix()
}
