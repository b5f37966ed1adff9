package crypto

import "fmt"

// UnsupportedAlgorithmError is returned when a digest algorithm name is not
// registered.
type UnsupportedAlgorithmError struct {
	Name string
}

func (e *UnsupportedAlgorithmError) Error() string {
	return fmt.Sprintf("unsupported digest algorithm: %s", e.Name)
}

// DuplicateAlgorithmError is returned by Registry.Register when a different
// algorithm already owns the name.
type DuplicateAlgorithmError struct {
	Name string
}

func (e *DuplicateAlgorithmError) Error() string {
	return fmt.Sprintf("digest algorithm %s is already registered", e.Name)
}

// AlgorithmMismatchError is returned when hashes from different algorithms
// are combined.
type AlgorithmMismatchError struct {
	Expected string
	Actual   string
}

func (e *AlgorithmMismatchError) Error() string {
	return fmt.Sprintf("digest algorithm mismatch: expected %s, got %s", e.Expected, e.Actual)
}
