package utils

import (
	"strings"

	"github.com/google/uuid"
)

// NewAccessToken returns the opaque token used for unauthenticated public
// document links. It carries no claims; possession is the whole secret.
func NewAccessToken() string {
	return strings.ReplaceAll(uuid.NewString()+uuid.NewString(), "-", "")
}
