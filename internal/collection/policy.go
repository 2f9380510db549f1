package collection

import (
	"fmt"
	"strings"
)

// Policy controls whether an existing index is trusted, verified or replaced.
type Policy string

const (
	// Always ignores any existing index and rebuilds from the filesystem.
	Always Policy = "always"
	// Test rebuilds only when the recorded members differ from the filesystem.
	Test Policy = "test"
	// Nocheck trusts an existing index without looking at the filesystem.
	Nocheck Policy = "nocheck"
	// Never writes nothing; a missing index is a failure.
	Never Policy = "never"
)

// Policies lists every valid policy, for validation.
var Policies = []any{Always, Test, Nocheck, Never}

// ParsePolicy parses a case-insensitive policy name.
func ParsePolicy(s string) (Policy, error) {
	switch p := Policy(strings.ToLower(strings.TrimSpace(s))); p {
	case Always, Test, Nocheck, Never:
		return p, nil
	}
	return "", fmt.Errorf("collection: unknown update policy %q", s)
}

// Decision is the outcome of applying a policy to one node.
type Decision int

const (
	Keep Decision = iota
	Rebuild
	Verify
	NoIndex
)

func (d Decision) String() string {
	switch d {
	case Keep:
		return "keep"
	case Rebuild:
		return "rebuild"
	case Verify:
		return "verify"
	case NoIndex:
		return "no_index"
	}
	return fmt.Sprintf("decision(%d)", int(d))
}

// MarshalText renders the decision name.
func (d Decision) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText parses a decision name.
func (d *Decision) UnmarshalText(b []byte) error {
	for _, c := range []Decision{Keep, Rebuild, Verify, NoIndex} {
		if c.String() == string(b) {
			*d = c
			return nil
		}
	}
	return fmt.Errorf("collection: unknown decision %q", b)
}

// Decide maps the presence of an index and a policy to a decision.
func Decide(exists bool, p Policy) Decision {
	switch p {
	case Always:
		return Rebuild
	case Never:
		if exists {
			return Keep
		}
		return NoIndex
	case Nocheck:
		if exists {
			return Keep
		}
		return Rebuild
	default:
		if exists {
			return Verify
		}
		return Rebuild
	}
}
