// Package api provides the high-level public API for building, disclosing
// and checking transactions.
//
// This is the main entry point for applications using the txmerkle library.
// Transactions cross the API as serialized envelopes:
//
//  1. ProposeTransaction - Builds a wire transaction from a proposal
//  2. TransactionID - Recomputes the id of a serialized wire transaction
//  3. FilterTransaction - Tears off the components a disclosure request names
//  4. VerifyFilteredTransaction - Checks a filtered transaction against its id
//  5. CheckCommandVisibility - Checks that every command a key signs is disclosed
//  6. SignAttachment - Adds a signature to an attachment archive
//  7. LoadAttachments - Builds the class loader for a transaction's attachments
package api

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/suffix-labs/txmerkle/pkg/attachments"
	"github.com/suffix-labs/txmerkle/pkg/components"
	"github.com/suffix-labs/txmerkle/pkg/crypto"
	"github.com/suffix-labs/txmerkle/pkg/disclosure"
	"github.com/suffix-labs/txmerkle/pkg/serialization"
	"github.com/suffix-labs/txmerkle/pkg/transactions"
)

// StateRef identifies an output of an earlier transaction.
type StateRef struct {
	TxHash string `yaml:"tx_hash"` // SecureHash string form
	Index  uint32 `yaml:"index"`
}

// Party is a named key, hex encoded.
type Party struct {
	Name string `yaml:"name"`
	Key  string `yaml:"key"`
}

// Output is a new state.
type Output struct {
	Contract string `yaml:"contract"`
	Data     string `yaml:"data"`
	Notary   Party  `yaml:"notary"`
}

// Command is an instruction and the hex keys that must sign it.
type Command struct {
	Name    string   `yaml:"name"`
	Data    string   `yaml:"data"`
	Signers []string `yaml:"signers"`
}

// TimeWindow bounds notarisation. Nil bounds are open.
type TimeWindow struct {
	From  *time.Time `yaml:"from"`
	Until *time.Time `yaml:"until"`
}

// TransactionProposal contains everything that goes into a transaction.
type TransactionProposal struct {
	Algorithm   string      `yaml:"algorithm"` // Digest algorithm, SHA-256 if empty
	Salt        string      `yaml:"salt"`      // Hex privacy salt, random if empty
	Inputs      []StateRef  `yaml:"inputs"`
	References  []StateRef  `yaml:"references"`
	Outputs     []Output    `yaml:"outputs"`
	Commands    []Command   `yaml:"commands"`
	Attachments []string    `yaml:"attachments"`
	Notary      *Party      `yaml:"notary"`
	TimeWindow  *TimeWindow `yaml:"time_window"`
	Parameters  string      `yaml:"network_parameters"`
}

// ============================================================================
// API Function 1: ProposeTransaction
// ============================================================================

// ProposeTransaction builds a wire transaction from a proposal.
//
// Parameters:
//   - registry: Resolves the proposal's digest algorithm (nil = built-ins)
//   - proposal: Transaction components and metadata
//
// Returns:
//   - Serialized wire transaction
//   - Error if any component is malformed or the transaction is invalid
func ProposeTransaction(registry *crypto.Registry, proposal *TransactionProposal) ([]byte, error) {
	registry = orDefault(registry)

	algorithm := proposal.Algorithm
	if algorithm == "" {
		algorithm = crypto.DefaultAlgorithm
	}
	ds, err := registry.Service(algorithm)
	if err != nil {
		return nil, err
	}

	b := transactions.NewTransactionBuilder().WithDigestService(ds)
	if proposal.Salt != "" {
		raw, err := hex.DecodeString(proposal.Salt)
		if err != nil {
			return nil, fmt.Errorf("invalid salt: %w", err)
		}
		salt, err := transactions.PrivacySaltFrom(raw)
		if err != nil {
			return nil, err
		}
		b.WithPrivacySalt(salt)
	}

	for _, in := range proposal.Inputs {
		ref, err := in.decode()
		if err != nil {
			return nil, fmt.Errorf("failed to add input: %w", err)
		}
		if err := b.AddInput(ref); err != nil {
			return nil, fmt.Errorf("failed to add input: %w", err)
		}
	}
	for _, in := range proposal.References {
		ref, err := in.decode()
		if err != nil {
			return nil, fmt.Errorf("failed to add reference: %w", err)
		}
		if err := b.AddReference(ref); err != nil {
			return nil, fmt.Errorf("failed to add reference: %w", err)
		}
	}
	for _, out := range proposal.Outputs {
		notary, err := out.Notary.decode()
		if err != nil {
			return nil, fmt.Errorf("failed to add output: %w", err)
		}
		state := components.TransactionState{Contract: out.Contract, Data: []byte(out.Data), Notary: notary}
		if err := b.AddOutput(state); err != nil {
			return nil, fmt.Errorf("failed to add output: %w", err)
		}
	}
	for _, cmd := range proposal.Commands {
		signers := make([]crypto.Key, 0, len(cmd.Signers))
		for _, s := range cmd.Signers {
			pub, err := crypto.ParsePublicKeyHex(s)
			if err != nil {
				return nil, fmt.Errorf("command %s: %w", cmd.Name, err)
			}
			signers = append(signers, pub.Key())
		}
		if err := b.AddCommand(components.Command{Name: cmd.Name, Data: []byte(cmd.Data), Signers: signers}); err != nil {
			return nil, fmt.Errorf("failed to add command: %w", err)
		}
	}
	for _, id := range proposal.Attachments {
		h, err := crypto.ParseSecureHash(id)
		if err != nil {
			return nil, fmt.Errorf("failed to add attachment: %w", err)
		}
		if err := b.AddAttachment(h); err != nil {
			return nil, fmt.Errorf("failed to add attachment: %w", err)
		}
	}
	if proposal.Notary != nil {
		notary, err := proposal.Notary.decode()
		if err != nil {
			return nil, fmt.Errorf("invalid notary: %w", err)
		}
		if err := b.SetNotary(notary); err != nil {
			return nil, err
		}
	}
	if tw := proposal.TimeWindow; tw != nil {
		var w components.TimeWindow
		if tw.From != nil {
			w.From = *tw.From
		}
		if tw.Until != nil {
			w.Until = *tw.Until
		}
		if err := b.SetTimeWindow(w); err != nil {
			return nil, err
		}
	}
	if proposal.Parameters != "" {
		h, err := crypto.ParseSecureHash(proposal.Parameters)
		if err != nil {
			return nil, fmt.Errorf("invalid network parameters hash: %w", err)
		}
		if err := b.SetNetworkParametersHash(h); err != nil {
			return nil, err
		}
	}

	wtx, err := b.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build transaction: %w", err)
	}
	return serialization.SerializeWireTransaction(wtx)
}

func (r StateRef) decode() (components.StateRef, error) {
	h, err := crypto.ParseSecureHash(r.TxHash)
	if err != nil {
		return components.StateRef{}, err
	}
	return components.StateRef{TxHash: h, Index: r.Index}, nil
}

func (p Party) decode() (components.Party, error) {
	pub, err := crypto.ParsePublicKeyHex(p.Key)
	if err != nil {
		return components.Party{}, fmt.Errorf("party %q: %w", p.Name, err)
	}
	return components.Party{Name: p.Name, Key: pub.Key()}, nil
}

// ============================================================================
// API Function 2: TransactionID
// ============================================================================

// TransactionID parses a serialized wire transaction and returns its id.
func TransactionID(registry *crypto.Registry, wtxBytes []byte) (crypto.SecureHash, error) {
	wtx, err := serialization.ParseWireTransaction(wtxBytes, orDefault(registry))
	if err != nil {
		return crypto.SecureHash{}, fmt.Errorf("invalid wire transaction: %w", err)
	}
	return wtx.ID(), nil
}

// ============================================================================
// API Function 3: FilterTransaction
// ============================================================================

// FilterTransaction keeps the components a disclosure request selects and
// replaces the rest with hashes.
//
// Parameters:
//   - wtxBytes: Serialized wire transaction
//   - request: Disclosure request URI (see package disclosure)
//
// Returns:
//   - Serialized filtered transaction
//   - Error if the transaction or request is invalid
func FilterTransaction(registry *crypto.Registry, wtxBytes []byte, request string) ([]byte, error) {
	req, err := disclosure.Parse(request)
	if err != nil {
		return nil, fmt.Errorf("invalid disclosure request: %w", err)
	}
	wtx, err := serialization.ParseWireTransaction(wtxBytes, orDefault(registry))
	if err != nil {
		return nil, fmt.Errorf("invalid wire transaction: %w", err)
	}
	ftx, err := transactions.BuildFilteredTransaction(wtx, req.Predicate())
	if err != nil {
		return nil, fmt.Errorf("failed to filter transaction: %w", err)
	}
	return serialization.SerializeFilteredTransaction(ftx)
}

// ============================================================================
// API Function 4: VerifyFilteredTransaction
// ============================================================================

// VerifyFilteredTransaction checks that every disclosed component is part of
// the transaction the filtered transaction claims to be.
//
// Returns:
//   - The verified transaction id
//   - *transactions.FilteredTransactionVerificationError on mismatch
func VerifyFilteredTransaction(registry *crypto.Registry, ftxBytes []byte) (crypto.SecureHash, error) {
	ftx, err := serialization.ParseFilteredTransaction(ftxBytes, orDefault(registry))
	if err != nil {
		return crypto.SecureHash{}, fmt.Errorf("invalid filtered transaction: %w", err)
	}
	if err := ftx.Verify(); err != nil {
		return crypto.SecureHash{}, err
	}
	return ftx.ID(), nil
}

// ============================================================================
// API Function 5: CheckCommandVisibility
// ============================================================================

// CheckCommandVisibility verifies a filtered transaction and checks that it
// discloses every command key must sign. Signers use this before signing a
// torn-off transaction.
func CheckCommandVisibility(registry *crypto.Registry, ftxBytes []byte, key crypto.Key) error {
	ftx, err := serialization.ParseFilteredTransaction(ftxBytes, orDefault(registry))
	if err != nil {
		return fmt.Errorf("invalid filtered transaction: %w", err)
	}
	if err := ftx.Verify(); err != nil {
		return err
	}
	return ftx.CheckCommandVisibility(key)
}

// ============================================================================
// API Function 6: SignAttachment
// ============================================================================

// SignAttachment adds a signature by privateKey to an attachment archive.
func SignAttachment(archive []byte, privateKey *crypto.PrivateKey) ([]byte, error) {
	signed, err := attachments.Sign(archive, privateKey)
	if err != nil {
		return nil, fmt.Errorf("signing failed: %w", err)
	}
	return signed, nil
}

// ============================================================================
// API Function 7: LoadAttachments
// ============================================================================

// LoadAttachments opens the attachments a wire transaction references and
// leases a class loader for them from cache. The caller must release the
// lease.
//
// Overlap and trust failures are returned as
// *attachments.OverlappingAttachmentsError and
// *attachments.UntrustedAttachmentsError; both mean the transaction is
// invalid.
func LoadAttachments(ctx context.Context, registry *crypto.Registry, wtxBytes []byte, storage attachments.Storage, isTrusted attachments.TrustPredicate, cache *attachments.Cache) (*attachments.Lease, error) {
	wtx, err := serialization.ParseWireTransaction(wtxBytes, orDefault(registry))
	if err != nil {
		return nil, fmt.Errorf("invalid wire transaction: %w", err)
	}
	ids, err := wtx.Attachments()
	if err != nil {
		return nil, err
	}

	atts := make([]*attachments.Attachment, 0, len(ids))
	for _, id := range ids {
		a, err := storage.OpenAttachment(ctx, id.ID)
		if errors.Is(err, attachments.ErrNotFound) {
			return nil, fmt.Errorf("transaction %s references missing attachment %s", wtx.ID(), id.ID)
		}
		if err != nil {
			return nil, err
		}
		atts = append(atts, a)
	}

	var params crypto.SecureHash
	if p, err := wtx.NetworkParametersHash(); err != nil {
		return nil, err
	} else if p != nil {
		params = p.Hash
	}
	return cache.Acquire(ctx, atts, params, wtx.ID(), isTrusted)
}

func orDefault(registry *crypto.Registry) *crypto.Registry {
	if registry == nil {
		return crypto.NewRegistry()
	}
	return registry
}
