package skill

import (
	"errors"
	"fmt"
)

// Sentinel conditions for frontmatter parsing. Both are wrapped in a
// *ParseError so callers can match either the broad or the narrow cause.
var (
	ErrMissingFrontmatter  = errors.New("missing frontmatter delimiter")
	ErrUnclosedFrontmatter = errors.New("frontmatter closing delimiter not found")
)

// NotFoundError reports a missing definition file or directory.
type NotFoundError struct {
	Path string // location that was probed
	What string // what was expected there, e.g. "SKILL.md"
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found at %s", e.What, e.Path)
}

// ParseError reports malformed metadata or frontmatter.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("parse error: %v", e.Err)
	}
	return fmt.Sprintf("parse error in %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// ValidationError is raised only by the strict load entry points; the
// Validator itself accumulates issues without raising.
type ValidationError struct {
	Name     string
	Messages []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("skill %q failed validation: %v", e.Name, e.Messages)
}
