// Package identity generates history record identifiers.
package identity

import (
	"crypto/rand"
	"fmt"

	"github.com/mr-tron/base58"
)

// historyIDBytes is the identifier entropy in bytes. 128 bits keeps the
// collision probability negligible under concurrent and rapid-fire snapshot
// calls, with no dependence on clock resolution.
const historyIDBytes = 16

// NewHistoryID returns a new globally unique history identifier:
// 128 random bits, base58 encoded (about 22 characters).
func NewHistoryID() (string, error) {
	buf := make([]byte, historyIDBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	return base58.Encode(buf), nil
}
