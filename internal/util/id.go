package util

import (
	"strings"

	"github.com/google/uuid"
)

// NewID returns a random UUIDv4 without dashes, safe for headers and keys.
func NewID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
