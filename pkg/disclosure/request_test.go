package disclosure

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/suffix-labs/txmerkle/pkg/components"
	"github.com/suffix-labs/txmerkle/pkg/crypto"
	"github.com/suffix-labs/txmerkle/pkg/transactions"
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

func TestParse(t *testing.T) {
	alice := testKey(t, 1)

	tests := []struct {
		name string
		uri  string
		want *Request
	}{
		{
			name: "whole groups",
			uri:  "disclose:?group=outputs&group=commands",
			want: &Request{Groups: []components.Group{components.OutputsGroup, components.CommandsGroup}},
		},
		{
			name: "group by index",
			uri:  "disclose:?group=11",
			want: &Request{Groups: []components.Group{11}},
		},
		{
			name: "without scheme",
			uri:  "command=Move&contract=cash",
			want: &Request{Commands: []string{"Move"}, Contracts: []string{"cash"}},
		},
		{
			name: "signer",
			uri:  "disclose:?signer=" + alice.String(),
			want: &Request{Signers: []crypto.Key{alice}},
		},
		{
			name: "positions",
			uri:  "disclose:?group.2=12&index.2=5&group.1=11&index.1=0,2",
			want: &Request{Positions: []Selection{
				{Group: 11, Indices: []int{0, 2}},
				{Group: 12, Indices: []int{5}},
			}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.uri)
			require.NoError(t, err)
			assert.ElementsMatch(t, tt.want.Groups, got.Groups)
			assert.Equal(t, tt.want.Commands, got.Commands)
			assert.Equal(t, tt.want.Contracts, got.Contracts)
			assert.Equal(t, tt.want.Signers, got.Signers)
			assert.Equal(t, tt.want.Positions, got.Positions)
		})
	}
}

func TestParseState(t *testing.T) {
	ds, err := crypto.NewRegistry().Service(crypto.SHA3_256)
	require.NoError(t, err)
	h := ds.Hash([]byte("previous"))

	req, err := Parse("disclose:?state=" + h.String() + ":7")
	require.NoError(t, err)
	require.Len(t, req.States, 1)
	assert.Equal(t, components.StateRef{TxHash: h, Index: 7}, req.States[0])
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		uri  string
	}{
		{"empty", "disclose:?"},
		{"unknown parameter", "disclose:?colour=red"},
		{"signers requested directly", "disclose:?group=signers"},
		{"bad group", "disclose:?group=-1"},
		{"bad signer", "disclose:?signer=zz"},
		{"empty command", "disclose:?command="},
		{"state without index", "disclose:?state=abc"},
		{"positions in known group", "disclose:?group.1=outputs&index.1=0"},
		{"selection missing index", "disclose:?group.1=11"},
		{"selection missing group", "disclose:?index.1=0"},
		{"negative position", "disclose:?group.1=11&index.1=-1"},
		{"unknown indexed parameter", "disclose:?group.1=11&index.1=0&colour.1=red"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.uri)
			assert.Error(t, err)
		})
	}
}

func TestEncodeRoundTrip(t *testing.T) {
	uri := "disclose:?group=outputs&group=11&command=Move&command=Issue&contract=cash&group.1=12&index.1=3,1"
	req, err := Parse(uri)
	require.NoError(t, err)

	again, err := Parse(req.Encode())
	require.NoError(t, err)
	assert.Equal(t, req, again)
	assert.Equal(t, req.Encode(), again.Encode())
}

func TestExtractIndex(t *testing.T) {
	assert.Equal(t, 1, extractIndex("group.1"))
	assert.Equal(t, 42, extractIndex("index.42"))
	assert.Equal(t, -1, extractIndex("group"))
	assert.Equal(t, -1, extractIndex("group.0"))
	assert.Equal(t, -1, extractIndex("group.10000"))
	assert.Equal(t, -1, extractIndex("a.b.1"))
}

func buildTransaction(t *testing.T, alice, bob crypto.Key) *transactions.WireTransaction {
	t.Helper()
	ds := crypto.DefaultDigestService()
	notary := components.Party{Name: "Notary", Key: testKey(t, 3)}

	b := transactions.NewTransactionBuilder()
	require.NoError(t, b.AddInput(components.StateRef{TxHash: ds.Hash([]byte("previous")), Index: 0}))
	require.NoError(t, b.AddInput(components.StateRef{TxHash: ds.Hash([]byte("previous")), Index: 1}))
	require.NoError(t, b.AddOutput(components.TransactionState{Contract: "cash", Data: []byte("100"), Notary: notary}))
	require.NoError(t, b.AddOutput(components.TransactionState{Contract: "bond", Data: []byte("1"), Notary: notary}))
	require.NoError(t, b.AddCommand(components.Command{Name: "Issue", Signers: []crypto.Key{alice}}))
	require.NoError(t, b.AddCommand(components.Command{Name: "Move", Signers: []crypto.Key{bob}}))
	require.NoError(t, b.AddComponent(11, []byte("extension-0")))
	require.NoError(t, b.AddComponent(11, []byte("extension-1")))
	require.NoError(t, b.AddComponent(11, []byte("extension-2")))

	wtx, err := b.Build()
	require.NoError(t, err)
	return wtx
}

func TestPredicateFiltersTransaction(t *testing.T) {
	alice, bob := testKey(t, 1), testKey(t, 2)
	wtx := buildTransaction(t, alice, bob)
	ds := crypto.DefaultDigestService()

	req, err := Parse("disclose:?contract=cash&signer=" + bob.String() +
		"&state=" + ds.Hash([]byte("previous")).String() + ":1&group.1=11&index.1=0,2")
	require.NoError(t, err)

	ftx, err := transactions.BuildFilteredTransaction(wtx, req.Predicate())
	require.NoError(t, err)
	require.NoError(t, ftx.Verify())

	inputs, err := ftx.Inputs()
	require.NoError(t, err)
	require.Len(t, inputs, 1)
	assert.Equal(t, uint32(1), inputs[0].Index)

	outputs, err := ftx.Outputs()
	require.NoError(t, err)
	require.Len(t, outputs, 1)
	assert.Equal(t, "cash", outputs[0].Contract)

	commands, err := ftx.Commands()
	require.NoError(t, err)
	require.Len(t, commands, 1)
	assert.Equal(t, "Move", commands[0].Name)
	require.NoError(t, ftx.CheckCommandVisibility(bob))
	assert.Error(t, ftx.CheckCommandVisibility(alice))

	opaque, err := ftx.Opaque(11)
	require.NoError(t, err)
	require.Len(t, opaque, 2)
	assert.Equal(t, 0, opaque[0].Index)
	assert.Equal(t, 2, opaque[1].Index)
}

func TestPredicateWholeGroup(t *testing.T) {
	alice, bob := testKey(t, 1), testKey(t, 2)
	wtx := buildTransaction(t, alice, bob)

	req, err := Parse("disclose:?group=commands")
	require.NoError(t, err)

	ftx, err := transactions.BuildFilteredTransaction(wtx, req.Predicate())
	require.NoError(t, err)
	require.NoError(t, ftx.CheckAllComponentsVisible(components.CommandsGroup))
	require.NoError(t, ftx.CheckAllComponentsVisible(components.SignersGroup))
	assert.Error(t, ftx.CheckAllComponentsVisible(components.OutputsGroup))
}
