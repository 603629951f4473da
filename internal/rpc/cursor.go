package rpc

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"github.com/01011010/notesum-hybrid/internal/common"
)

// Cursor is a keyset position: the sort timestamp and id of the last row
// returned.
type Cursor struct {
	At time.Time `json:"t"`
	ID string    `json:"id"`
}

// Encode returns the opaque string form of c.
func (c Cursor) Encode() string {
	b, _ := json.Marshal(c)
	return base64.RawURLEncoding.EncodeToString(b)
}

// DecodeCursor parses a string produced by Encode. The empty string yields
// the zero cursor.
func DecodeCursor(s string) (Cursor, error) {
	var c Cursor
	if s == "" {
		return c, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return c, fmt.Errorf("%w: malformed cursor", common.ErrValidation)
	}
	if err := json.Unmarshal(raw, &c); err != nil {
		return c, fmt.Errorf("%w: malformed cursor", common.ErrValidation)
	}
	return c, nil
}
