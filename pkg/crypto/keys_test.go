package crypto

import (
	"crypto/sha256"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignAndVerify(t *testing.T) {
	priv, err := GeneratePrivateKey()
	require.NoError(t, err)

	digest := sha256.Sum256([]byte("message"))
	sig := priv.Sign(digest)

	assert.True(t, VerifySignature(priv.PublicKey(), digest, sig))

	other := sha256.Sum256([]byte("other"))
	assert.False(t, VerifySignature(priv.PublicKey(), other, sig))
	assert.False(t, VerifySignature(priv.PublicKey(), digest, []byte{0x30, 0x00}))
}

func TestPublicKeyEncoding(t *testing.T) {
	priv, err := PrivateKeyFromBytes(make32(0x11))
	require.NoError(t, err)
	pub := priv.PublicKey()

	parsed, err := ParsePublicKey(pub.Bytes())
	require.NoError(t, err)
	assert.True(t, pub.Equal(parsed))
	assert.Equal(t, pub.Key(), parsed.Key())

	fromHex, err := ParsePublicKeyHex(pub.String())
	require.NoError(t, err)
	assert.True(t, pub.Equal(fromHex))

	key, err := ParseKey(pub.Bytes())
	require.NoError(t, err)
	assert.Equal(t, pub.Key(), key)

	_, err = ParsePublicKey(pub.Bytes()[:32])
	assert.Error(t, err)
}

func TestWIFRoundTrip(t *testing.T) {
	raw := make32(0x42)

	for _, testnet := range []bool{false, true} {
		wif, err := EncodeWIF(raw, true, testnet)
		require.NoError(t, err)

		priv, err := ParsePrivateKeyWIF(wif)
		require.NoError(t, err)
		assert.Equal(t, raw, priv.Bytes())
	}

	priv, _ := PrivateKeyFromBytes(raw)
	parsed, err := ParsePrivateKeyWIF(priv.WIF())
	require.NoError(t, err)
	assert.Equal(t, raw, parsed.Bytes())
}

func TestWIFRejectsCorruption(t *testing.T) {
	wif, err := EncodeWIF(make32(0x42), true, false)
	require.NoError(t, err)

	corrupted := []byte(wif)
	if corrupted[10] == 'a' {
		corrupted[10] = 'b'
	} else {
		corrupted[10] = 'a'
	}
	_, err = ParsePrivateKeyWIF(string(corrupted))
	assert.Error(t, err)

	_, err = ParsePrivateKeyWIF("1111")
	assert.Error(t, err)

	_, err = EncodeWIF([]byte{1}, true, false)
	assert.Error(t, err)
}

func make32(b byte) []byte {
	out := make([]byte, 32)
	for i := range out {
		out[i] = b
	}
	return out
}
