package random

import (
	"strings"

	"github.com/google/uuid"
)

// GenerateUUIDString generates a random UUID string.
func GenerateUUIDString() string {
	return uuid.New().String()
}

// GenerateUUID generates a random UUID.
func GenerateUUID() uuid.UUID {
	return uuid.New()
}

// JoinComponentsToID joins multiple strings into a single ID
func JoinComponentsToID(components ...string) string {
	return strings.Join(components, "-")
}
