package domain

import (
	"fmt"

	"github.com/oklog/ulid/v2"
)

// ParseULID parses a string into a ULID
func ParseULID(id string) (ulid.ULID, error) {
	parsed, err := ulid.Parse(id)
	if err != nil {
		return ulid.ULID{}, fmt.Errorf("invalid ULID: %w", err)
	}
	return parsed, nil
}

// NewID generates a new ULID string for server-generated opaque identifiers
// (authorization request ids, codes, auth_req_id, refresh tokens)
func NewID() string {
	return ulid.Make().String()
}
