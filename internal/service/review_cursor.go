package service

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"time"
)

// ErrInvalidCursor is returned when a cursor parameter is malformed or invalid.
var ErrInvalidCursor = errors.New("invalid cursor")

type searchCursorPayload struct {
	D float64 `json:"d"` // cosine distance (embedding <=> query) of last row
	I string  `json:"i"` // id of last row
}

// EncodeSearchCursor returns an opaque cursor for the next page of a similarity
// search. distance is the cosine distance (embedding <=> query) of the last
// result row; id is that row's id.
func EncodeSearchCursor(distance float64, id string) string {
	b, err := json.Marshal(searchCursorPayload{D: distance, I: id})
	if err != nil {
		return ""
	}

	return base64.URLEncoding.EncodeToString(b)
}

// DecodeSearchCursor parses an opaque similarity cursor and returns (distance, id).
// Returns ErrInvalidCursor if the cursor is malformed.
func DecodeSearchCursor(cursor string) (distance float64, id string, err error) {
	if cursor == "" {
		return 0, "", ErrInvalidCursor
	}

	raw, err := base64.URLEncoding.DecodeString(cursor)
	if err != nil {
		return 0, "", ErrInvalidCursor
	}

	var p searchCursorPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return 0, "", ErrInvalidCursor
	}

	if p.I == "" {
		return 0, "", ErrInvalidCursor
	}

	// Cosine distance is bounded to [0, 2].
	if p.D < 0 || p.D > 2 {
		return 0, "", ErrInvalidCursor
	}

	return p.D, p.I, nil
}

type recencyCursorPayload struct {
	T int64  `json:"t"` // created_at of last row, microseconds since epoch
	I string `json:"i"` // id of last row
}

// EncodeRecencyCursor returns an opaque cursor for the next page of a recency
// listing. createdAt and id identify the last row of the page. The timestamp is
// carried at microsecond precision, matching timestamptz resolution, so the
// round trip through a cursor is lossless for database-sourced times.
func EncodeRecencyCursor(createdAt time.Time, id string) string {
	b, err := json.Marshal(recencyCursorPayload{T: createdAt.UnixMicro(), I: id})
	if err != nil {
		return ""
	}

	return base64.URLEncoding.EncodeToString(b)
}

// DecodeRecencyCursor parses an opaque recency cursor and returns (createdAt, id).
// Returns ErrInvalidCursor if the cursor is malformed.
func DecodeRecencyCursor(cursor string) (createdAt time.Time, id string, err error) {
	if cursor == "" {
		return time.Time{}, "", ErrInvalidCursor
	}

	raw, err := base64.URLEncoding.DecodeString(cursor)
	if err != nil {
		return time.Time{}, "", ErrInvalidCursor
	}

	var p recencyCursorPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return time.Time{}, "", ErrInvalidCursor
	}

	if p.I == "" || p.T <= 0 {
		return time.Time{}, "", ErrInvalidCursor
	}

	return time.UnixMicro(p.T).UTC(), p.I, nil
}
