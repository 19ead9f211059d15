package domain

import (
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

type User struct {
	ID           int64
	Name         string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

// Subscriber is an email address on the newsletter list.
type Subscriber struct {
	Email     string
	CreatedAt time.Time
}

// PlanLabel formats a plan name for display: first letter upper case, the
// rest lower case.
func PlanLabel(plan string) string {
	if plan == "" {
		return ""
	}
	lower := strings.ToLower(plan)
	r, size := utf8.DecodeRuneInString(lower)
	return string(unicode.ToUpper(r)) + lower[size:]
}
