package config

import (
	"os"
	"strings"
)

func boolFromEnv(key string) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	return v == "1" || v == "true" || v == "yes" || v == "y"
}

// StrictDocumentNumberLock serializes document number generation per
// kind+year behind a redis lock. The default (off) keeps the historical
// read-then-increment behavior: concurrent creations in the same kind/year
// may collide on the number and fall into the save conflict path.
//
// Set via env:
// - STRICT_DOCUMENT_NUMBER_LOCK=true
func StrictDocumentNumberLock() bool {
	return boolFromEnv("STRICT_DOCUMENT_NUMBER_LOCK")
}

// DocumentSyncDisabled is a kill-switch for quote<->invoice propagation.
// Sync is best-effort anyway; this turns it off entirely (logged).
//
// Set via env:
// - DOCUMENT_SYNC_DISABLED=true
func DocumentSyncDisabled() bool {
	return boolFromEnv("DOCUMENT_SYNC_DISABLED")
}
