// Package id generates identifiers for priced entities, history rows and
// bulk runs.
package id

import (
	"github.com/google/uuid"
)

// ID is a UUID. New rows use version 7 so history sorts by creation time.
type ID = uuid.UUID

// seedNamespace scopes name-derived ids to this application.
var seedNamespace = uuid.NewSHA1(uuid.NameSpaceOID, []byte("farmacia"))

// New returns a time-ordered UUIDv7, or a random v4 if the clock source fails.
func New() ID {
	if v, err := uuid.NewV7(); err == nil {
		return v
	}
	return uuid.New()
}

// FromName returns a stable UUIDv5 for name. The same name always yields the
// same id, which keeps seeding and imports idempotent.
func FromName(name string) ID {
	return uuid.NewSHA1(seedNamespace, []byte(name))
}

// Parse converts s to an ID.
func Parse(s string) (ID, error) {
	return uuid.Parse(s)
}

func IsNil(v ID) bool {
	return v == uuid.Nil
}
