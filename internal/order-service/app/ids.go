package app

import (
	"strings"

	"github.com/google/uuid"
)

const (
	orderIDPrefix   = "order_fake_"
	paymentIDPrefix = "pay_fake_"
)

// newToken renders a random v4 UUID (122 random bits) as bare hex behind prefix.
func newToken(prefix string) string {
	return prefix + strings.ReplaceAll(uuid.NewString(), "-", "")
}
