package keys

import (
	"crypto/ecdsa"

	"github.com/btcsuite/btcd/btcec"
	"github.com/btcsuite/btcutil/base58"
	"github.com/fractis/node/src/common"
	"github.com/fractis/node/src/crypto"
)

// ToPublicKey parses a serialized secp256k1 public key, compressed or not. It
// returns nil if the bytes do not describe a point on the curve.
func ToPublicKey(pub []byte) *ecdsa.PublicKey {
	if len(pub) == 0 {
		return nil
	}
	key, err := btcec.ParsePubKey(pub, btcec.S256())
	if err != nil {
		return nil
	}
	return key.ToECDSA()
}

// FromPublicKey outputs the 33 byte compressed form of the public key.
func FromPublicKey(pub *ecdsa.PublicKey) []byte {
	if pub == nil || pub.X == nil || pub.Y == nil {
		return nil
	}
	return (*btcec.PublicKey)(pub).SerializeCompressed()
}

// PublicKeyHex returns the hexadecimal reprentation of the compressed form of
// the public key, with the 0X prefix.
func PublicKeyHex(pub *ecdsa.PublicKey) string {
	return common.EncodeToString(FromPublicKey(pub))
}

// PublicKeyFromHex is the inverse of PublicKeyHex.
func PublicKeyFromHex(s string) *ecdsa.PublicKey {
	b, err := common.DecodeFromString(s)
	if err != nil {
		return nil
	}
	return ToPublicKey(b)
}

// LedgerIdentity returns the base58 account name under which the ledger
// service knows the owner of pub: the SHA256 of the compressed key, base58
// encoded.
func LedgerIdentity(pub *ecdsa.PublicKey) string {
	return base58.Encode(crypto.SHA256(FromPublicKey(pub)))
}
