package app

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ErrInvalidID is returned for malformed identifiers supplied by operators.
var ErrInvalidID = fmt.Errorf("invalid identifier")

func parseUUID(raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w %q: %v", ErrInvalidID, raw, err)
	}
	return id, nil
}
