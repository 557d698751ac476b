package orders

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
)

const guestTokenBytes = 16

// NewGuestToken returns 128 random bits, hex encoded in upper case.
func NewGuestToken() (string, error) {
	b := make([]byte, guestTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("guest token: %w", err)
	}
	return strings.ToUpper(hex.EncodeToString(b)), nil
}

func FormatOrderNumber(id int64) string {
	return fmt.Sprintf("ORD-%06d", id)
}
