package components

import "fmt"

// EncodeError is returned when a component cannot be serialized.
type EncodeError struct {
	Group   Group
	Message string
	Cause   error
}

func (e *EncodeError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("encode %s component: %s: %v", e.Group, e.Message, e.Cause)
	}
	return fmt.Sprintf("encode %s component: %s", e.Group, e.Message)
}

func (e *EncodeError) Unwrap() error {
	return e.Cause
}

// DecodeError is returned when component bytes do not parse as the type
// their group requires.
type DecodeError struct {
	Group Group
	Index int
	Cause error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s component %d: %v", e.Group, e.Index, e.Cause)
}

func (e *DecodeError) Unwrap() error {
	return e.Cause
}
