package repository

import (
	"errors"
	"fmt"

	"github.com/pgvector/pgvector-go"
)

// errEmbeddingScanType is returned when Scan receives a type other than []byte.
var errEmbeddingScanType = errors.New("embedding: expected []byte")

// nullableEmbedding scans the embedding column, which may be NULL
// (pgvector.Vector.Scan panics on empty and NULL values).
type nullableEmbedding []float32

func (n *nullableEmbedding) Scan(src any) error {
	if src == nil {
		*n = nil

		return nil
	}

	buf, ok := src.([]byte)
	if !ok {
		return fmt.Errorf("%w: got %T", errEmbeddingScanType, src)
	}

	if len(buf) == 0 {
		*n = nil

		return nil
	}

	var vec pgvector.Vector

	if err := vec.DecodeBinary(buf); err != nil {
		return fmt.Errorf("embedding decode: %w", err)
	}

	*n = vec.Slice()

	return nil
}
