package serialization

import "fmt"

// ParseError is returned when an envelope cannot be decoded.
type ParseError struct {
	Message string // Human-readable error message
	Cause   error  // Underlying error (if any)
}

func (e *ParseError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("parse error: %s: %v", e.Message, e.Cause)
	}
	return "parse error: " + e.Message
}

func (e *ParseError) Unwrap() error {
	return e.Cause
}
