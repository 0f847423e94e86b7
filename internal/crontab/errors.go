package crontab

import (
	"errors"
	"fmt"
	"strings"
)

// ErrSyntax is matched by every *ParseError via errors.Is.
var ErrSyntax = errors.New("crontab: syntax error")

// ParseError reports a malformed crontab expression or field.
type ParseError struct {
	// Expr is the full expression being compiled. Empty when ParseField
	// is called directly.
	Expr string

	// Field names the offending field ("minute", "hour", "day-of-month",
	// "month", "day-of-week"). Empty for whole-expression errors.
	Field string

	// Value is the offending text.
	Value string

	// Err is the underlying cause, if any.
	Err error
}

func (e *ParseError) Error() string {
	var b strings.Builder
	b.WriteString("crontab: ")
	if e.Field != "" {
		fmt.Fprintf(&b, "%s field ", e.Field)
	}
	fmt.Fprintf(&b, "%q", e.Value)
	if e.Expr != "" && e.Expr != e.Value {
		fmt.Fprintf(&b, " in %q", e.Expr)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

// Unwrap returns the underlying cause.
func (e *ParseError) Unwrap() error { return e.Err }

// Is reports whether target is ErrSyntax.
func (e *ParseError) Is(target error) bool { return target == ErrSyntax }
