package components

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/suffix-labs/txmerkle/pkg/crypto"
)

func testKey(t *testing.T, seed byte) crypto.Key {
	t.Helper()
	raw := make([]byte, 32)
	for i := range raw {
		raw[i] = seed
	}
	priv, err := crypto.PrivateKeyFromBytes(raw)
	require.NoError(t, err)
	return priv.PublicKey().Key()
}

func TestCodecRoundTrip(t *testing.T) {
	codec := NewCodec()
	ds := crypto.DefaultDigestService()
	notary := Party{Name: "Notary", Key: testKey(t, 1)}

	tests := []struct {
		name  string
		group Group
		comp  Component
	}{
		{"input", InputsGroup, StateRef{TxHash: ds.Hash([]byte("tx")), Index: 3}},
		{"reference", ReferencesGroup, ReferenceStateRef{StateRef{TxHash: ds.Hash([]byte("ref")), Index: 0}}},
		{"output", OutputsGroup, TransactionState{Contract: "cash", Data: []byte{1, 2}, Notary: notary}},
		{"command", CommandsGroup, Command{Name: "Move", Data: []byte("payload")}},
		{"attachment", AttachmentsGroup, AttachmentID{ID: ds.Hash([]byte("jar"))}},
		{"notary", NotaryGroup, Notary{notary}},
		{"parameters", ParametersGroup, NetworkParametersHash{Hash: ds.Hash([]byte("params"))}},
		{"signers", SignersGroup, Signers{Keys: []crypto.Key{testKey(t, 2), testKey(t, 3)}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.group, tt.comp.Group())

			b, err := codec.Encode(tt.comp)
			require.NoError(t, err)

			again, err := codec.Encode(tt.comp)
			require.NoError(t, err)
			assert.Equal(t, b, again, "encoding must be deterministic")

			decoded, err := codec.Decode(tt.group, 0, b)
			require.NoError(t, err)
			assert.Equal(t, tt.comp, decoded)
		})
	}
}

func TestTimeWindow(t *testing.T) {
	codec := NewCodec()
	from := time.Date(2024, 1, 2, 3, 4, 5, 6, time.UTC)
	until := from.Add(time.Hour)

	for _, w := range []TimeWindow{{From: from}, {Until: until}, {From: from, Until: until}} {
		b, err := codec.Encode(w)
		require.NoError(t, err)
		decoded, err := codec.Decode(TimeWindowGroup, 0, b)
		require.NoError(t, err)

		got := decoded.(TimeWindow)
		assert.True(t, w.From.Equal(got.From))
		assert.True(t, w.Until.Equal(got.Until))
	}

	_, err := codec.Encode(TimeWindow{})
	assert.Error(t, err)
	_, err = codec.Encode(TimeWindow{From: until, Until: from})
	assert.Error(t, err)

	w := TimeWindow{From: from, Until: until}
	assert.True(t, w.Contains(from))
	assert.False(t, w.Contains(until))
	assert.False(t, w.Contains(from.Add(-time.Second)))
	assert.True(t, TimeWindow{Until: until}.Contains(from))
}

func TestUnknownGroupsDecodeAsOpaque(t *testing.T) {
	codec := NewCodec()
	raw := []byte{0xde, 0xad}

	decoded, err := codec.Decode(Group(42), 7, raw)
	require.NoError(t, err)

	opaque, ok := decoded.(Opaque)
	require.True(t, ok)
	assert.Equal(t, Group(42), opaque.Group())
	assert.Equal(t, 7, opaque.Index)
	assert.Equal(t, raw, opaque.Bytes)

	raw[0] = 0
	assert.Equal(t, byte(0xde), opaque.Bytes[0], "opaque bytes are copied")

	b, err := codec.Encode(opaque)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xde, 0xad}, b)
}

func TestDecodeRejectsGarbage(t *testing.T) {
	codec := NewCodec()
	cmd, err := codec.Encode(Command{Name: "Issue"})
	require.NoError(t, err)

	tests := []struct {
		name  string
		group Group
		data  []byte
	}{
		{"not cbor", InputsGroup, []byte{0xff, 0x00}},
		{"trailing bytes", CommandsGroup, append(append([]byte{}, cmd...), 0x00)},
		{"wrong shape", InputsGroup, cmd},
		{"bad signer key", SignersGroup, mustMarshal(t, [][]byte{{1, 2, 3}})},
		{"empty signers", SignersGroup, mustMarshal(t, [][]byte{})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := codec.Decode(tt.group, 1, tt.data)
			var decodeErr *DecodeError
			require.ErrorAs(t, err, &decodeErr)
			assert.Equal(t, tt.group, decodeErr.Group)
			assert.Equal(t, 1, decodeErr.Index)
		})
	}
}

func TestEncodeRejectsInvalid(t *testing.T) {
	codec := NewCodec()

	var encodeErr *EncodeError
	_, err := codec.Encode(Command{})
	assert.ErrorAs(t, err, &encodeErr)

	_, err = codec.EncodeSigners(nil)
	assert.ErrorAs(t, err, &encodeErr)

	_, err = codec.Encode(nil)
	assert.ErrorAs(t, err, &encodeErr)
}

func TestCommandHasSigner(t *testing.T) {
	a, b := testKey(t, 1), testKey(t, 2)
	cmd := Command{Name: "Move", Signers: []crypto.Key{a}}
	assert.True(t, cmd.HasSigner(a))
	assert.False(t, cmd.HasSigner(b))
}

func TestGroupNames(t *testing.T) {
	for i := 0; i < KnownGroupCount; i++ {
		g := Group(i)
		assert.True(t, g.IsKnown())
		parsed, err := ParseGroup(g.String())
		require.NoError(t, err)
		assert.Equal(t, g, parsed)
	}

	assert.False(t, Group(9).IsKnown())
	assert.Equal(t, "group(9)", Group(9).String())

	g, err := ParseGroup("12")
	require.NoError(t, err)
	assert.Equal(t, Group(12), g)

	for _, bad := range []string{"", "-1", "everything"} {
		_, err := ParseGroup(bad)
		assert.Error(t, err, bad)
	}

	assert.True(t, NotaryGroup.IsSingleton())
	assert.False(t, InputsGroup.IsSingleton())
}

func mustMarshal(t *testing.T, v any) []byte {
	t.Helper()
	b, err := NewCodec().enc.Marshal(v)
	require.NoError(t, err)
	return b
}
