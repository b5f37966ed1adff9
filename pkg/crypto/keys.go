package crypto

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/btcsuite/btcutil/base58"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
)

// Key formats:
//   - Private keys: WIF or raw 32 bytes
//   - Public keys: compressed 33-byte form
//   - Signatures: DER-encoded ECDSA over a 32-byte digest

// PublicKeySize is the length of a compressed public key.
const PublicKeySize = 33

// Key is the comparable form of a public key, used to index signer sets.
type Key [PublicKeySize]byte

// String returns the upper-case hex encoding.
func (k Key) String() string {
	return fmt.Sprintf("%X", k[:])
}

// PrivateKey wraps a secp256k1 private key.
type PrivateKey struct {
	key *secp256k1.PrivateKey
}

// PublicKey wraps a secp256k1 public key.
type PublicKey struct {
	key *secp256k1.PublicKey
}

// GeneratePrivateKey creates a random private key.
func GeneratePrivateKey() (*PrivateKey, error) {
	key, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		return nil, fmt.Errorf("failed to generate private key: %w", err)
	}
	return &PrivateKey{key: key}, nil
}

// ParsePrivateKeyWIF parses a WIF-encoded private key.
func ParsePrivateKeyWIF(wif string) (*PrivateKey, error) {
	decoded, err := decodeWIF(wif)
	if err != nil {
		return nil, err
	}
	return &PrivateKey{key: secp256k1.PrivKeyFromBytes(decoded)}, nil
}

// PrivateKeyFromBytes creates a private key from raw bytes.
func PrivateKeyFromBytes(keyBytes []byte) (*PrivateKey, error) {
	if len(keyBytes) != 32 {
		return nil, fmt.Errorf("private key must be 32 bytes, got %d", len(keyBytes))
	}
	return &PrivateKey{key: secp256k1.PrivKeyFromBytes(keyBytes)}, nil
}

// Sign creates a DER-encoded ECDSA signature over digest.
func (pk *PrivateKey) Sign(digest [32]byte) []byte {
	return ecdsa.Sign(pk.key, digest[:]).Serialize()
}

// PublicKey derives the public key.
func (pk *PrivateKey) PublicKey() *PublicKey {
	return &PublicKey{key: pk.key.PubKey()}
}

// Bytes returns the raw 32-byte private key.
func (pk *PrivateKey) Bytes() []byte {
	return pk.key.Serialize()
}

// WIF encodes the key as compressed mainnet WIF.
func (pk *PrivateKey) WIF() string {
	s, _ := EncodeWIF(pk.Bytes(), true, false)
	return s
}

// Key returns the comparable compressed form.
func (pub *PublicKey) Key() Key {
	var k Key
	copy(k[:], pub.key.SerializeCompressed())
	return k
}

// Bytes returns the compressed public key bytes.
func (pub *PublicKey) Bytes() []byte {
	return pub.key.SerializeCompressed()
}

// Equal reports whether both keys are the same point.
func (pub *PublicKey) Equal(other *PublicKey) bool {
	if pub == nil || other == nil {
		return pub == other
	}
	return pub.key.IsEqual(other.key)
}

func (pub *PublicKey) String() string {
	return pub.Key().String()
}

// ParsePublicKey parses a compressed public key.
func ParsePublicKey(pubKeyBytes []byte) (*PublicKey, error) {
	if len(pubKeyBytes) != PublicKeySize {
		return nil, fmt.Errorf("compressed public key must be %d bytes, got %d", PublicKeySize, len(pubKeyBytes))
	}
	pubKey, err := secp256k1.ParsePubKey(pubKeyBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse public key: %w", err)
	}
	return &PublicKey{key: pubKey}, nil
}

// ParsePublicKeyHex parses a hex-encoded compressed public key.
func ParsePublicKeyHex(s string) (*PublicKey, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid public key hex: %w", err)
	}
	return ParsePublicKey(b)
}

// ParseKey validates b as a compressed public key and returns its Key.
func ParseKey(b []byte) (Key, error) {
	pub, err := ParsePublicKey(b)
	if err != nil {
		return Key{}, err
	}
	return pub.Key(), nil
}

// VerifySignature verifies a DER-encoded ECDSA signature.
func VerifySignature(pubkey *PublicKey, digest [32]byte, signature []byte) bool {
	sig, err := ecdsa.ParseDERSignature(signature)
	if err != nil {
		return false
	}
	return sig.Verify(digest[:], pubkey.key)
}

// decodeWIF decodes a WIF-encoded private key.
// WIF format: version_byte || private_key (32 bytes) || [compression_flag] || checksum (4 bytes)
func decodeWIF(wif string) ([]byte, error) {
	decoded := base58.Decode(wif)
	if len(decoded) != 37 && len(decoded) != 38 {
		return nil, errors.New("invalid WIF length")
	}

	// 0x80 mainnet, 0xef testnet
	version := decoded[0]
	if version != 0x80 && version != 0xef {
		return nil, fmt.Errorf("invalid WIF version byte: 0x%02x", version)
	}

	checksumOffset := len(decoded) - 4
	payload := decoded[:checksumOffset]
	if checksum := wifChecksum(payload); string(checksum) != string(decoded[checksumOffset:]) {
		return nil, errors.New("WIF checksum mismatch")
	}

	return payload[1:33], nil
}

// EncodeWIF encodes a private key to WIF format.
func EncodeWIF(privateKey []byte, compressed bool, testnet bool) (string, error) {
	if len(privateKey) != 32 {
		return "", errors.New("private key must be 32 bytes")
	}

	version := byte(0x80)
	if testnet {
		version = 0xef
	}

	payload := make([]byte, 0, 38)
	payload = append(payload, version)
	payload = append(payload, privateKey...)
	if compressed {
		payload = append(payload, 0x01)
	}
	payload = append(payload, wifChecksum(payload)...)

	return base58.Encode(payload), nil
}

func wifChecksum(payload []byte) []byte {
	first := sha256.Sum256(payload)
	second := sha256.Sum256(first[:])
	return second[:4]
}
