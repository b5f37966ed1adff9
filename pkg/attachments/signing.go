package attachments

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"sort"
	"strings"

	"github.com/suffix-labs/txmerkle/pkg/crypto"
)

const (
	signaturePrefix = "META-INF/"
	signatureSuffix = ".SIG"
)

// SignaturePath returns the entry name holding key's signature.
func SignaturePath(key crypto.Key) string {
	return signaturePrefix + key.String() + signatureSuffix
}

// IsSignatureEntry reports whether path names a signature entry.
func IsSignatureEntry(path string) bool {
	p := NormalizePath(path)
	rest, ok := strings.CutPrefix(p, strings.ToLower(signaturePrefix))
	return ok && strings.HasSuffix(rest, strings.ToLower(signatureSuffix)) && !strings.Contains(rest, "/")
}

// ContentDigest hashes every file entry except signatures, sorted by
// normalized path. Each path and body is length-prefixed.
func ContentDigest(entries []Entry) [32]byte {
	files := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if !e.Dir && !IsSignatureEntry(e.Path) {
			files = append(files, e)
		}
	}
	sort.Slice(files, func(i, j int) bool {
		return NormalizePath(files[i].Path) < NormalizePath(files[j].Path)
	})

	h := sha256.New()
	var n [8]byte
	for _, f := range files {
		p := NormalizePath(f.Path)
		binary.BigEndian.PutUint64(n[:], uint64(len(p)))
		h.Write(n[:])
		h.Write([]byte(p))
		binary.BigEndian.PutUint64(n[:], uint64(len(f.Data)))
		h.Write(n[:])
		h.Write(f.Data)
	}
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// Sign returns a copy of archive carrying a signature by key over its
// content. An existing signature by the same key is replaced.
func Sign(archive []byte, key *crypto.PrivateKey) ([]byte, error) {
	entries, err := ReadArchive(archive)
	if err != nil {
		return nil, err
	}

	pub := key.PublicKey()
	path := SignaturePath(pub.Key())
	record, err := encMode.Marshal(signatureRecord{
		Key:       pub.Bytes(),
		Signature: key.Sign(ContentDigest(entries)),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode signature: %w", err)
	}

	out := make([]Entry, 0, len(entries)+1)
	for _, e := range entries {
		if NormalizePath(e.Path) != NormalizePath(path) {
			out = append(out, e)
		}
	}
	out = append(out, Entry{Path: path, Data: record})
	return WriteArchive(out)
}

// SignerKeys verifies every signature entry of archive and returns the
// signing keys in ascending order.
func SignerKeys(archive []byte) ([]crypto.Key, error) {
	entries, err := ReadArchive(archive)
	if err != nil {
		return nil, err
	}
	return signerKeys(entries)
}

func signerKeys(entries []Entry) ([]crypto.Key, error) {
	digest := ContentDigest(entries)

	var keys []crypto.Key
	for _, e := range entries {
		if e.Dir || !IsSignatureEntry(e.Path) {
			continue
		}
		var rec signatureRecord
		if err := decMode.Unmarshal(e.Data, &rec); err != nil {
			return nil, &SignatureError{Path: e.Path, Message: fmt.Sprintf("malformed record: %v", err)}
		}
		pub, err := crypto.ParsePublicKey(rec.Key)
		if err != nil {
			return nil, &SignatureError{Path: e.Path, Message: err.Error()}
		}
		if NormalizePath(e.Path) != NormalizePath(SignaturePath(pub.Key())) {
			return nil, &SignatureError{Path: e.Path, Message: "entry name does not match key " + pub.String()}
		}
		if !crypto.VerifySignature(pub, digest, rec.Signature) {
			return nil, &SignatureError{Path: e.Path, Message: "signature does not match content"}
		}
		keys = append(keys, pub.Key())
	}

	sort.Slice(keys, func(i, j int) bool { return bytes.Compare(keys[i][:], keys[j][:]) < 0 })
	return keys, nil
}
