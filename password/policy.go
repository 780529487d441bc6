package password

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

const punctuation = "!\"#$%&'()*+,-./:;<=>?@[\\]^_`{|}~"

// PolicyError describes why a password was rejected. Reason is safe to show
// to the user.
type PolicyError struct {
	Reason string
}

func (e *PolicyError) Error() string { return e.Reason }

// Policy is the registration-time password rule set.
type Policy struct {
	MinLength     int
	MaxLength     int
	RequireSymbol bool
}

// DefaultPolicy requires 6 to 18 characters including one ASCII punctuation mark.
func DefaultPolicy() Policy {
	return Policy{MinLength: 6, MaxLength: 18, RequireSymbol: true}
}

// Validate returns a *PolicyError when pw violates the policy. Length is
// measured in characters, not bytes.
func (p Policy) Validate(pw string) error {
	n := utf8.RuneCountInString(pw)
	if n < p.MinLength || (p.MaxLength > 0 && n > p.MaxLength) {
		return &PolicyError{Reason: p.lengthReason()}
	}
	if p.RequireSymbol && !strings.ContainsAny(pw, punctuation) {
		return &PolicyError{Reason: "Password must include at least one special character."}
	}
	return nil
}

func (p Policy) lengthReason() string {
	if p.MaxLength > 0 {
		return fmt.Sprintf("Password must be %d-%d characters long.", p.MinLength, p.MaxLength)
	}
	return fmt.Sprintf("Password must be at least %d characters long.", p.MinLength)
}
