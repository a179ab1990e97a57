package config

import (
	"fmt"
	"strings"
)

// Problem is a single invalid setting or subscription entry.
type Problem struct {
	Field  string
	Reason string
}

// ValidationErrors collects all validation errors
type ValidationErrors struct {
	Problems []Problem
}

func (e *ValidationErrors) add(field, reason string) {
	e.Problems = append(e.Problems, Problem{Field: field, Reason: reason})
}

// HasErrors returns true if any validation errors exist
func (e *ValidationErrors) HasErrors() bool {
	return len(e.Problems) > 0
}

// Error formats all validation errors into a clear message
func (e *ValidationErrors) Error() string {
	var sb strings.Builder
	sb.WriteString("configuration validation failed:\n")

	for _, p := range e.Problems {
		sb.WriteString(fmt.Sprintf("  - %s: %s\n", p.Field, p.Reason))
	}

	return sb.String()
}
