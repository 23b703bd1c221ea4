// Package keys wraps the secp256k1 primitives used by fractis nodes: node
// identity keys, transaction signatures, and the on-disk private key file.
//
// Keys are plain *ecdsa.PrivateKey values whose curve is btcec.S256(), so they
// can be handed to code that only knows about the standard library.
package keys
