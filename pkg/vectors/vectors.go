// Package vectors provides utilities for embedding vectors (dimension checks, L2 normalization).
package vectors

import (
	"errors"
	"fmt"
	"math"
)

// ErrDimensionMismatch is returned when a vector does not have the expected number of components.
var ErrDimensionMismatch = errors.New("embedding dimension mismatch")

// CheckDimension verifies that vector has exactly want components.
// The returned error wraps ErrDimensionMismatch so callers can test with errors.Is.
func CheckDimension(vector []float32, want int) error {
	if len(vector) != want {
		return fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(vector), want)
	}

	return nil
}

// IsZero reports whether every component of vector is zero.
// Cosine distance is undefined for the zero vector, so callers should reject it before querying.
func IsZero(vector []float32) bool {
	for _, v := range vector {
		if v != 0 {
			return false
		}
	}

	return true
}

// NormalizeL2 takes a raw embedding vector and normalizes it to a length of 1.
// It modifies the slice in-place to save allocations on bulk writes.
func NormalizeL2(vector []float32) {
	var sumSquares float64

	for _, v := range vector {
		sumSquares += float64(v) * float64(v)
	}

	// Avoid division by zero on the all-zeros vector
	if sumSquares == 0 {
		return
	}

	magnitude := math.Sqrt(sumSquares)

	for i := range vector {
		vector[i] = float32(float64(vector[i]) / magnitude)
	}
}
