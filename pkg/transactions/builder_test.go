package transactions

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/suffix-labs/txmerkle/pkg/components"
	"github.com/suffix-labs/txmerkle/pkg/crypto"
)

func TestBuilderGeneratesSalt(t *testing.T) {
	ds := crypto.DefaultDigestService()
	build := func() *WireTransaction {
		b := NewTransactionBuilder()
		require.NoError(t, b.AddInput(components.StateRef{TxHash: ds.Hash([]byte("tx")), Index: 0}))
		wtx, err := b.Build()
		require.NoError(t, err)
		return wtx
	}

	a, b := build(), build()
	assert.NotEqual(t, a.PrivacySalt(), b.PrivacySalt())
	assert.NotEqual(t, a.ID(), b.ID(), "the same content under different salts")
}

func TestBuilderSettersReplace(t *testing.T) {
	first := components.Party{Name: "First", Key: key(t, 1)}
	second := components.Party{Name: "Second", Key: key(t, 2)}

	b := NewTransactionBuilder().WithPrivacySalt(fixedSalt())
	require.NoError(t, b.SetNotary(first))
	require.NoError(t, b.SetNotary(second))
	wtx, err := b.Build()
	require.NoError(t, err)

	notary, err := wtx.Notary()
	require.NoError(t, err)
	assert.Equal(t, "Second", notary.Name)
	assert.Len(t, wtx.Group(components.NotaryGroup), 1)
}

func TestBuilderRejectsInvalidComponents(t *testing.T) {
	b := NewTransactionBuilder()

	assert.Error(t, b.AddCommand(components.Command{Name: "Unsigned"}))
	assert.Error(t, b.AddComponent(components.InputsGroup, []byte("raw")))
	assert.Error(t, b.SetTimeWindow(components.TimeWindow{}))
	assert.NoError(t, b.AddComponent(20, []byte("raw")))

	// a rejected command leaves no half-written signers entry
	assert.Nil(t, b.groups[components.SignersGroup])
}

func TestBuilderWithDigestService(t *testing.T) {
	ds, err := crypto.NewRegistry().Service(crypto.SHA384)
	require.NoError(t, err)

	b := NewTransactionBuilder().WithDigestService(ds)
	require.NoError(t, b.AddAttachment(ds.Hash([]byte("attachment"))))
	require.NoError(t, b.SetNetworkParametersHash(ds.Hash([]byte("params"))))
	wtx, err := b.Build()
	require.NoError(t, err)

	assert.Equal(t, crypto.SHA384, wtx.ID().Algorithm())
	assert.Len(t, wtx.PrivacySalt(), 48)

	params, err := wtx.NetworkParametersHash()
	require.NoError(t, err)
	assert.Equal(t, ds.Hash([]byte("params")), params.Hash)
}
