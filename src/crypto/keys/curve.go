package keys

import (
	"crypto/elliptic"

	"github.com/btcsuite/btcd/btcec"
)

/*
fractis keys and signing are based on elliptic curve cryptography. We use the
secp256k1 curve, which is also used by Bitcoin and Ethereum.
*/

//Curve returns an elliptic.Curve. We use btcsuite's golang implementation of
//secp256k1.
func Curve() elliptic.Curve {
	return btcec.S256()
}
