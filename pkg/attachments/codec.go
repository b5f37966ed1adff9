package attachments

import (
	"github.com/fxamacker/cbor/v2"
)

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	if encMode, err = cbor.CoreDetEncOptions().EncMode(); err != nil {
		panic(err)
	}
	decMode, err = cbor.DecOptions{
		DupMapKey:   cbor.DupMapKeyEnforcedAPF,
		IndefLength: cbor.IndefLengthForbidden,
	}.DecMode()
	if err != nil {
		panic(err)
	}
}

// signatureRecord is the body of a signature entry.
type signatureRecord struct {
	_         struct{} `cbor:",toarray"`
	Key       []byte
	Signature []byte // DER
}

// storedRecord is how BadgerStorage persists an attachment.
type storedRecord struct {
	_        struct{} `cbor:",toarray"`
	Data     []byte
	Uploader string
	Filename string
	Signers  [][]byte
}
