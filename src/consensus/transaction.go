package consensus

import (
	"bytes"
	"crypto/ecdsa"
	"fmt"
	"time"

	"github.com/fractis/node/src/crypto"
	"github.com/fractis/node/src/crypto/keys"
	"github.com/ugorji/go/codec"
)

// Transaction is a signed, opaque payload submitted for finality. Origin is
// the hex encoded public key of the signer.
type Transaction struct {
	Signature string    `json:"signature"`
	Origin    string    `json:"origin"`
	Timestamp time.Time `json:"timestamp"`
	Payload   []byte    `json:"payload"`
}

// signingBody is the part of a Transaction covered by the signature.
type signingBody struct {
	Origin    string
	Timestamp int64
	Payload   []byte
}

// NewTransaction creates a transaction from priv and signs it.
func NewTransaction(priv *ecdsa.PrivateKey, payload []byte, timestamp time.Time) (*Transaction, error) {
	tx := &Transaction{
		Origin:    keys.PublicKeyHex(&priv.PublicKey),
		Timestamp: timestamp,
		Payload:   payload,
	}
	if err := tx.Sign(priv); err != nil {
		return nil, err
	}
	return tx, nil
}

// SigningBytes returns the canonical encoding of the signed fields. The
// timestamp is taken in nanoseconds since the epoch so that it survives any
// wire format.
func (t *Transaction) SigningBytes() ([]byte, error) {
	body := signingBody{
		Origin:    t.Origin,
		Timestamp: t.Timestamp.UnixNano(),
		Payload:   t.Payload,
	}

	var b bytes.Buffer
	jh := new(codec.JsonHandle)
	jh.Canonical = true
	enc := codec.NewEncoder(&b, jh)
	if err := enc.Encode(body); err != nil {
		return nil, err
	}
	return b.Bytes(), nil
}

// Hash returns the SHA256 hash of SigningBytes.
func (t *Transaction) Hash() ([]byte, error) {
	data, err := t.SigningBytes()
	if err != nil {
		return nil, err
	}
	return crypto.SHA256(data), nil
}

// Sign sets the Signature field. The key must match Origin for the
// transaction to verify.
func (t *Transaction) Sign(priv *ecdsa.PrivateKey) error {
	hash, err := t.Hash()
	if err != nil {
		return err
	}
	r, s, err := keys.Sign(priv, hash)
	if err != nil {
		return fmt.Errorf("sign transaction: %w", err)
	}
	t.Signature = keys.EncodeSignature(r, s)
	return nil
}

// Verifier checks the signature of a transaction against its origin.
type Verifier interface {
	Verify(tx *Transaction) bool
}

// SignatureVerifier verifies secp256k1 signatures.
type SignatureVerifier struct{}

// Verify implements the Verifier interface.
func (SignatureVerifier) Verify(tx *Transaction) bool {
	pub := keys.PublicKeyFromHex(tx.Origin)
	if pub == nil {
		return false
	}

	r, s, err := keys.DecodeSignature(tx.Signature)
	if err != nil {
		return false
	}

	hash, err := tx.Hash()
	if err != nil {
		return false
	}

	return keys.Verify(pub, hash, r, s)
}
