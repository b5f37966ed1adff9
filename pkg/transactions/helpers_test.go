package transactions

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/suffix-labs/txmerkle/pkg/components"
	"github.com/suffix-labs/txmerkle/pkg/crypto"
)

func fixedSalt() PrivacySalt {
	salt := make(PrivacySalt, 32)
	for i := range salt {
		salt[i] = byte(i + 1)
	}
	return salt
}

func key(t *testing.T, seed byte) crypto.Key {
	t.Helper()
	raw := make([]byte, 32)
	for i := range raw {
		raw[i] = seed
	}
	priv, err := crypto.PrivateKeyFromBytes(raw)
	require.NoError(t, err)
	return priv.PublicKey().Key()
}

// rawGroups is three inputs, two outputs and one command with its signers
// entry, as fixed byte strings.
func rawGroups() []ComponentGroup {
	return []ComponentGroup{
		NewComponentGroup(components.InputsGroup, []byte("input-0"), []byte("input-1"), []byte("input-2")),
		NewComponentGroup(components.OutputsGroup, []byte("output-0"), []byte("output-1")),
		NewComponentGroup(components.CommandsGroup, []byte("command-0")),
		NewComponentGroup(components.SignersGroup, []byte("signer-0")),
	}
}

type fixture struct {
	alice, bob, notary crypto.Key
	wtx                *WireTransaction
}

// newFixture builds a typed transaction with inputs, outputs, two commands,
// a notary and a time window. Alice signs both commands, Bob only the
// second. It has no attachments.
func newFixture(t *testing.T) fixture {
	t.Helper()
	f := fixture{alice: key(t, 1), bob: key(t, 2), notary: key(t, 3)}
	ds := crypto.DefaultDigestService()
	notary := components.Party{Name: "Notary", Key: f.notary}

	b := NewTransactionBuilder().WithPrivacySalt(fixedSalt())
	for i := 0; i < 3; i++ {
		require.NoError(t, b.AddInput(components.StateRef{TxHash: ds.Hash([]byte("previous")), Index: uint32(i)}))
	}
	require.NoError(t, b.AddOutput(components.TransactionState{Contract: "cash", Data: []byte("100"), Notary: notary}))
	require.NoError(t, b.AddOutput(components.TransactionState{Contract: "cash", Data: []byte("50"), Notary: notary}))
	require.NoError(t, b.AddCommand(components.Command{Name: "Issue", Signers: []crypto.Key{f.alice}}))
	require.NoError(t, b.AddCommand(components.Command{Name: "Move", Signers: []crypto.Key{f.alice, f.bob}}))
	require.NoError(t, b.SetNotary(notary))
	require.NoError(t, b.SetTimeWindow(components.TimeWindow{Until: time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)}))

	wtx, err := b.Build()
	require.NoError(t, err)
	f.wtx = wtx
	return f
}

func all(components.Component) bool  { return true }
func none(components.Component) bool { return false }

func inGroup(groups ...components.Group) VisibilityPredicate {
	return func(c components.Component) bool {
		for _, g := range groups {
			if c.Group() == g {
				return true
			}
		}
		return false
	}
}
