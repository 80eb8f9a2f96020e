package retriever

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidK          = errors.New("k must be at least 1")
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)

// DegenerateVectorError is returned when a vector has zero norm, which leaves
// its cosine similarity undefined. RecordID is empty for a query vector.
type DegenerateVectorError struct {
	RecordID string
}

func (e *DegenerateVectorError) Error() string {
	if e.RecordID == "" {
		return "degenerate vector: query embedding has zero norm"
	}
	return fmt.Sprintf("degenerate vector: embedding of record %s has zero norm", e.RecordID)
}
