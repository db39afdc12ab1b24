// Package pagination implements opaque keyset cursors over (created_at, id)
// ordered newest first.
package pagination

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Direction selects which side of a cursor a page is read from.
type Direction string

const (
	// Next reads rows older than the cursor.
	Next Direction = "next"
	// Prev reads rows newer than the cursor.
	Prev Direction = "prev"
)

// ErrInvalidCursor is returned for tokens that were not produced by Encode.
var ErrInvalidCursor = errors.New("invalid cursor")

// ParseDirection accepts "next", "prev" or an empty string (next).
func ParseDirection(s string) (Direction, error) {
	switch Direction(strings.ToLower(strings.TrimSpace(s))) {
	case "", Next:
		return Next, nil
	case Prev:
		return Prev, nil
	default:
		return "", fmt.Errorf("direction must be %q or %q, got %q", Next, Prev, s)
	}
}

// Cursor is the ordering key of one row.
type Cursor struct {
	CreatedAt time.Time
	ID        uint
}

type cursorPayload struct {
	CreatedAt string `json:"created_at"`
	ID        uint   `json:"id"`
}

// Encode returns the opaque token for c.
func (c Cursor) Encode() string {
	b, _ := json.Marshal(cursorPayload{
		CreatedAt: c.CreatedAt.UTC().Format(time.RFC3339Nano),
		ID:        c.ID,
	})
	return base64.RawURLEncoding.EncodeToString(b)
}

// Decode parses a token produced by Encode.
func Decode(token string) (Cursor, error) {
	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(token, "="))
	if err != nil {
		return Cursor{}, ErrInvalidCursor
	}
	var p cursorPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return Cursor{}, ErrInvalidCursor
	}
	ts, err := time.Parse(time.RFC3339Nano, p.CreatedAt)
	if err != nil || p.ID == 0 {
		return Cursor{}, ErrInvalidCursor
	}
	return Cursor{CreatedAt: ts.UTC(), ID: p.ID}, nil
}

// Limit clamps a requested page size to (0, ceiling], using def when unset.
func Limit(requested, def, ceiling int) int {
	if requested <= 0 {
		requested = def
	}
	if requested > ceiling {
		requested = ceiling
	}
	return requested
}
