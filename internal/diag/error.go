package diag

import (
	"errors"
	"fmt"
	"strings"
)

// Error is a structured internal compiler error.
type Error struct {
	Code   Code
	Loc    Location
	Values []string
	Msg    string
}

// Errorf builds an Error at loc.
func Errorf(code Code, loc Location, format string, args ...any) *Error {
	return &Error{
		Code: code,
		Loc:  loc,
		Msg:  fmt.Sprintf(format, args...),
	}
}

// WithValues attaches rendered operands to the error.
func (e *Error) WithValues(values ...fmt.Stringer) *Error {
	if e == nil {
		return nil
	}
	for _, v := range values {
		e.Values = append(e.Values, v.String())
	}
	return e
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	var sb strings.Builder
	sb.WriteString(e.Loc.String())
	sb.WriteString(": ")
	sb.WriteString(e.Code.ID())
	sb.WriteString(": ")
	if e.Msg != "" {
		sb.WriteString(e.Msg)
	} else {
		sb.WriteString(e.Code.Title())
	}
	if len(e.Values) > 0 {
		sb.WriteString(" [")
		sb.WriteString(strings.Join(e.Values, ", "))
		sb.WriteString("]")
	}
	return sb.String()
}

// Is matches an Error against its Code.
func (e *Error) Is(target error) bool {
	code, ok := target.(Code)
	return ok && e != nil && e.Code == code
}

// Diagnostic converts the error to its reporting form.
func (e *Error) Diagnostic() Diagnostic {
	if e == nil {
		return Diagnostic{}
	}
	d := NewError(e.Code, e.Loc, e.Msg)
	for _, v := range e.Values {
		d = d.WithNote(e.Loc, "value "+v)
	}
	return d
}

// Collect flattens err (including errors.Join trees) into diagnostics.
// Errors that are not *Error become UnknownCode diagnostics.
func Collect(err error) []Diagnostic {
	if err == nil {
		return nil
	}
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		var out []Diagnostic
		for _, e := range joined.Unwrap() {
			out = append(out, Collect(e)...)
		}
		return out
	}
	var ie *Error
	if errors.As(err, &ie) {
		return []Diagnostic{ie.Diagnostic()}
	}
	return []Diagnostic{NewError(UnknownCode, NoLocation, err.Error())}
}
