package transactions

import (
	"fmt"

	"github.com/suffix-labs/txmerkle/pkg/components"
	"github.com/suffix-labs/txmerkle/pkg/crypto"
)

// ComponentDecoder turns component bytes into typed components. It is the
// only way this package looks inside a component.
type ComponentDecoder interface {
	Decode(group components.Group, index int, b []byte) (components.Component, error)
	DecodeSigners(b []byte) ([]crypto.Key, error)
}

// Option configures construction of wire and filtered transactions.
type Option func(*options)

type options struct {
	allowZeroSalt bool
	decoder       ComponentDecoder
}

func buildOptions(opts []Option) options {
	o := options{decoder: components.DefaultCodec()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithZeroSaltPermitted accepts an all-zero privacy salt. Only deterministic
// test fixtures should need it.
func WithZeroSaltPermitted() Option {
	return func(o *options) { o.allowZeroSalt = true }
}

// WithDecoder replaces the default CBOR component decoder.
func WithDecoder(d ComponentDecoder) Option {
	return func(o *options) { o.decoder = d }
}

// decodeAll decodes comps as T. positions maps a slice index to the
// component's original index within its group.
func decodeAll[T components.Component](d ComponentDecoder, group components.Group, comps [][]byte, positions func(int) int) ([]T, error) {
	out := make([]T, 0, len(comps))
	for i, b := range comps {
		comp, err := d.Decode(group, positions(i), b)
		if err != nil {
			return nil, err
		}
		v, ok := comp.(T)
		if !ok {
			return nil, &components.DecodeError{Group: group, Index: positions(i), Cause: errUnexpectedType{comp}}
		}
		out = append(out, v)
	}
	return out, nil
}

type errUnexpectedType struct {
	comp components.Component
}

func (e errUnexpectedType) Error() string {
	return fmt.Sprintf("unexpected component type %T", e.comp)
}
