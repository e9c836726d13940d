package db

import (
	"errors"

	"sealtrail/internal/infra/idgen"
)

var errDBUnavailable = errors.New("db unavailable")

var newID = idgen.UUIDv7()

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
