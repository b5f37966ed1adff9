package components

import (
	"fmt"
	"time"

	"github.com/fxamacker/cbor/v2"

	"github.com/suffix-labs/txmerkle/pkg/crypto"
)

// Codec converts components to and from their serialized form.
//
// Encoding uses CBOR core deterministic encoding so that equal components
// always produce equal bytes, and therefore equal leaf hashes. Decoding
// rejects indefinite lengths, duplicate map keys and trailing data.
type Codec struct {
	enc cbor.EncMode
	dec cbor.DecMode
}

// NewCodec returns a codec with the deterministic CBOR settings.
func NewCodec() *Codec {
	enc, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("components: invalid CBOR encoding options: %v", err))
	}
	dec, err := cbor.DecOptions{
		DupMapKey:   cbor.DupMapKeyEnforcedAPF,
		IndefLength: cbor.IndefLengthForbidden,
	}.DecMode()
	if err != nil {
		panic(fmt.Sprintf("components: invalid CBOR decoding options: %v", err))
	}
	return &Codec{enc: enc, dec: dec}
}

var defaultCodec = NewCodec()

// DefaultCodec returns the shared codec. Codecs are stateless.
func DefaultCodec() *Codec {
	return defaultCodec
}

// Wire forms. Every struct is encoded as a CBOR array.

type hashWire struct {
	_         struct{} `cbor:",toarray"`
	Algorithm string
	Digest    []byte
}

type stateRefWire struct {
	_      struct{} `cbor:",toarray"`
	TxHash hashWire
	Index  uint32
}

type partyWire struct {
	_    struct{} `cbor:",toarray"`
	Name string
	Key  []byte
}

type stateWire struct {
	_        struct{} `cbor:",toarray"`
	Contract string
	Data     []byte
	Notary   partyWire
}

type commandWire struct {
	_    struct{} `cbor:",toarray"`
	Name string
	Data []byte
}

type timeWindowWire struct {
	_     struct{} `cbor:",toarray"`
	From  *int64 // unix nanoseconds, nil when open
	Until *int64
}

// Encode serializes c. Command signers are not part of the command bytes;
// use EncodeSigners for the parallel signers entry.
func (c *Codec) Encode(comp Component) ([]byte, error) {
	var v any
	switch x := comp.(type) {
	case StateRef:
		v = toStateRefWire(x)
	case ReferenceStateRef:
		v = toStateRefWire(x.StateRef)
	case TransactionState:
		v = stateWire{Contract: x.Contract, Data: x.Data, Notary: toPartyWire(x.Notary)}
	case Command:
		if x.Name == "" {
			return nil, &EncodeError{Group: CommandsGroup, Message: "command has no name"}
		}
		v = commandWire{Name: x.Name, Data: x.Data}
	case AttachmentID:
		v = toHashWire(x.ID)
	case Notary:
		v = toPartyWire(x.Party)
	case TimeWindow:
		if x.From.IsZero() && x.Until.IsZero() {
			return nil, &EncodeError{Group: TimeWindowGroup, Message: "time window has no bounds"}
		}
		if !x.From.IsZero() && !x.Until.IsZero() && !x.From.Before(x.Until) {
			return nil, &EncodeError{Group: TimeWindowGroup, Message: "time window ends before it starts"}
		}
		v = timeWindowWire{From: toUnixNano(x.From), Until: toUnixNano(x.Until)}
	case NetworkParametersHash:
		v = toHashWire(x.Hash)
	case Signers:
		return c.EncodeSigners(x.Keys)
	case Opaque:
		return append([]byte(nil), x.Bytes...), nil
	case nil:
		return nil, &EncodeError{Message: "nil component"}
	default:
		return nil, &EncodeError{Group: comp.Group(), Message: fmt.Sprintf("unsupported component type %T", comp)}
	}

	b, err := c.enc.Marshal(v)
	if err != nil {
		return nil, &EncodeError{Group: comp.Group(), Message: "cbor encoding failed", Cause: err}
	}
	return b, nil
}

// EncodeSigners serializes one signers entry.
func (c *Codec) EncodeSigners(keys []crypto.Key) ([]byte, error) {
	if len(keys) == 0 {
		return nil, &EncodeError{Group: SignersGroup, Message: "command must have at least one signer"}
	}
	raw := make([][]byte, len(keys))
	for i, k := range keys {
		raw[i] = append([]byte(nil), k[:]...)
	}
	b, err := c.enc.Marshal(raw)
	if err != nil {
		return nil, &EncodeError{Group: SignersGroup, Message: "cbor encoding failed", Cause: err}
	}
	return b, nil
}

// Decode deserializes the component at index within group. Groups this
// version does not know decode as Opaque.
func (c *Codec) Decode(group Group, index int, b []byte) (Component, error) {
	fail := func(err error) (Component, error) {
		return nil, &DecodeError{Group: group, Index: index, Cause: err}
	}

	switch group {
	case InputsGroup, ReferencesGroup:
		var w stateRefWire
		if err := c.dec.Unmarshal(b, &w); err != nil {
			return fail(err)
		}
		ref := StateRef{TxHash: fromHashWire(w.TxHash), Index: w.Index}
		if group == ReferencesGroup {
			return ReferenceStateRef{StateRef: ref}, nil
		}
		return ref, nil

	case OutputsGroup:
		var w stateWire
		if err := c.dec.Unmarshal(b, &w); err != nil {
			return fail(err)
		}
		notary, err := fromPartyWire(w.Notary)
		if err != nil {
			return fail(err)
		}
		return TransactionState{Contract: w.Contract, Data: w.Data, Notary: notary}, nil

	case CommandsGroup:
		var w commandWire
		if err := c.dec.Unmarshal(b, &w); err != nil {
			return fail(err)
		}
		return Command{Name: w.Name, Data: w.Data}, nil

	case AttachmentsGroup:
		var w hashWire
		if err := c.dec.Unmarshal(b, &w); err != nil {
			return fail(err)
		}
		return AttachmentID{ID: fromHashWire(w)}, nil

	case NotaryGroup:
		var w partyWire
		if err := c.dec.Unmarshal(b, &w); err != nil {
			return fail(err)
		}
		party, err := fromPartyWire(w)
		if err != nil {
			return fail(err)
		}
		return Notary{Party: party}, nil

	case TimeWindowGroup:
		var w timeWindowWire
		if err := c.dec.Unmarshal(b, &w); err != nil {
			return fail(err)
		}
		return TimeWindow{From: fromUnixNano(w.From), Until: fromUnixNano(w.Until)}, nil

	case SignersGroup:
		keys, err := c.DecodeSigners(b)
		if err != nil {
			return fail(err)
		}
		return Signers{Keys: keys}, nil

	case ParametersGroup:
		var w hashWire
		if err := c.dec.Unmarshal(b, &w); err != nil {
			return fail(err)
		}
		return NetworkParametersHash{Hash: fromHashWire(w)}, nil
	}

	return Opaque{GroupIndex: group, Index: index, Bytes: append([]byte(nil), b...)}, nil
}

// DecodeSigners deserializes one signers entry.
func (c *Codec) DecodeSigners(b []byte) ([]crypto.Key, error) {
	var raw [][]byte
	if err := c.dec.Unmarshal(b, &raw); err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("empty signer list")
	}
	keys := make([]crypto.Key, len(raw))
	for i, r := range raw {
		k, err := crypto.ParseKey(r)
		if err != nil {
			return nil, fmt.Errorf("signer %d: %w", i, err)
		}
		keys[i] = k
	}
	return keys, nil
}

func toHashWire(h crypto.SecureHash) hashWire {
	return hashWire{Algorithm: h.Algorithm(), Digest: h.Bytes()}
}

func fromHashWire(w hashWire) crypto.SecureHash {
	return crypto.NewSecureHash(w.Algorithm, w.Digest)
}

func toStateRefWire(r StateRef) stateRefWire {
	return stateRefWire{TxHash: toHashWire(r.TxHash), Index: r.Index}
}

func toPartyWire(p Party) partyWire {
	return partyWire{Name: p.Name, Key: append([]byte(nil), p.Key[:]...)}
}

func fromPartyWire(w partyWire) (Party, error) {
	key, err := crypto.ParseKey(w.Key)
	if err != nil {
		return Party{}, fmt.Errorf("party %q: %w", w.Name, err)
	}
	return Party{Name: w.Name, Key: key}, nil
}

func toUnixNano(t time.Time) *int64 {
	if t.IsZero() {
		return nil
	}
	n := t.UnixNano()
	return &n
}

func fromUnixNano(n *int64) time.Time {
	if n == nil {
		return time.Time{}
	}
	return time.Unix(0, *n).UTC()
}
