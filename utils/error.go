package utils

import (
	"errors"
	"strings"

	"gorm.io/gorm"
)

var ErrorRecordNotFound = errors.New("record not found")

// ErrorDeliveryFailure wraps email transport failures. The failed send is
// recorded in history and the document status stays unchanged, but the
// error still surfaces to the caller.
var ErrorDeliveryFailure = errors.New("delivery failure")

// IsConflictError reports whether err is a store-level write conflict:
// duplicate key, deadlock or lock wait timeout. A conflict does NOT imply
// the write rolled back -- MySQL can report a conflict on an operation
// that actually committed ("phantom insert"), which the save protocol in
// models probes for and heals.
func IsConflictError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "Error 1062"), // MySQL duplicate entry
		strings.Contains(msg, "Error 1213"), // MySQL deadlock
		strings.Contains(msg, "Lock wait timeout"),
		strings.Contains(msg, "Duplicate entry"),
		strings.Contains(msg, "UNIQUE constraint failed"): // sqlite (tests)
		return true
	}
	return false
}

func ErrorPanic(err error) {
	if err != nil {
		panic(err)
	}
}
