package models

import (
	"fmt"
	"strings"
)

// MaxUserIDLen bounds user ids, which are used as storage key prefixes.
const MaxUserIDLen = 128

// UserIDProblem describes why userID cannot partition storage, or returns
// "" when it can.
func UserIDProblem(userID string) string {
	switch {
	case strings.TrimSpace(userID) == "":
		return "is required"
	case len(userID) > MaxUserIDLen:
		return fmt.Sprintf("is longer than %d bytes", MaxUserIDLen)
	case strings.ContainsAny(userID, "/\x00"):
		return "contains a reserved character"
	}
	return ""
}

// ValidateUserID rejects ids that cannot safely partition storage.
func ValidateUserID(userID string) error {
	if p := UserIDProblem(userID); p != "" {
		return fmt.Errorf("%w: user id %s", ErrValidation, p)
	}
	return nil
}
