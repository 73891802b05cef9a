package session

import (
	"fmt"
	"regexp"
)

// Session names become directory names under ~/.glotpad/sessions, so the
// accepted alphabet is deliberately narrow.
var namePattern = regexp.MustCompile(`^[a-z0-9_-]{1,64}$`)

// ValidateName rejects names that are empty, too long, or carry characters
// outside [a-z0-9_-].
func ValidateName(name string) error {
	if namePattern.MatchString(name) {
		return nil
	}
	return fmt.Errorf("invalid session name %q: want 1-64 chars of [a-z0-9_-]", name)
}
