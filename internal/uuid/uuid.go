// Package uuid provides id generation and validation for notebooks, pages,
// elements and assets. Ids are UUID v4 rendered as 32 lowercase hex characters
// without dashes, the form the on-disk formats carry.
package uuid

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

var hexIDRegex = regexp.MustCompile(`^[0-9a-f]{32}$`)

// New generates a new 32-character hex id.
func New() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")
}

// IsValid checks if a string is a 32-character lowercase hex id.
func IsValid(s string) bool {
	return hexIDRegex.MatchString(s)
}

// Validate returns an error if the string is not a valid id.
func Validate(s string) error {
	if !IsValid(s) {
		return fmt.Errorf("invalid id format: %q", s)
	}
	return nil
}
