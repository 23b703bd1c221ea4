package keys

import (
	"encoding/hex"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/fractis/node/src/crypto"
)

func TestSimpleKeyfile(t *testing.T) {
	dir := t.TempDir()

	simpleKeyfile := NewSimpleKeyfile(filepath.Join(dir, "priv_key"))

	// Try a read, should get nothing
	key, err := simpleKeyfile.ReadKey()
	if err == nil {
		t.Fatalf("ReadKey should generate an error")
	}
	if key != nil {
		t.Fatalf("key is not nil")
	}

	// Initialize a key and try a write
	key, _ = GenerateECDSAKey()

	if err := simpleKeyfile.WriteKey(key); err != nil {
		t.Fatalf("err: %v", err)
	}

	// Try a read, should get key
	nKey, err := simpleKeyfile.ReadKey()
	if err != nil {
		t.Fatalf("err: %v", err)
	}

	if !reflect.DeepEqual(DumpPrivateKey(nKey), DumpPrivateKey(key)) {
		t.Fatalf("Keys do not match")
	}
	if PublicKeyHex(&nKey.PublicKey) != PublicKeyHex(&key.PublicKey) {
		t.Fatalf("Public keys do not match")
	}
}

func TestReadOrCreateKey(t *testing.T) {
	simpleKeyfile := NewSimpleKeyfile(filepath.Join(t.TempDir(), "sub", "priv_key"))

	key, created, err := simpleKeyfile.ReadOrCreateKey()
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if !created {
		t.Fatalf("first call should create a key")
	}

	again, created, err := simpleKeyfile.ReadOrCreateKey()
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if created {
		t.Fatalf("second call should read the existing key")
	}
	if PrivateKeyHex(again) != PrivateKeyHex(key) {
		t.Fatalf("second call returned a different key")
	}
}

func TestFilePermissions(t *testing.T) {
	dir := t.TempDir()

	key, _ := GenerateECDSAKey()
	rawKey := hex.EncodeToString(DumpPrivateKey(key))

	badKeyPath := filepath.Join(dir, "priv_key_bad")

	shouldErr := []os.FileMode{
		0777, 0766, 0744,
		0677, 0666, 0644,
		0477, 0466, 0444,
	}

	for _, fm := range shouldErr {
		os.WriteFile(badKeyPath, []byte(rawKey), fm)
		// WriteFile does not change the mode of an existing file
		os.Chmod(badKeyPath, fm)
		if _, err := NewSimpleKeyfile(badKeyPath).ReadKey(); err == nil {
			t.Fatalf("ReadKey should fail with permissions %o", fm)
		}
	}

	os.Chmod(badKeyPath, 0600)
	if _, err := NewSimpleKeyfile(badKeyPath).ReadKey(); err != nil {
		t.Fatalf("err: %v", err)
	}
}

func TestParsePrivateKey(t *testing.T) {
	if _, err := ParsePrivateKey(make([]byte, 31)); err == nil {
		t.Fatalf("short key should be rejected")
	}
	if _, err := ParsePrivateKey(make([]byte, 32)); err == nil {
		t.Fatalf("zero key should be rejected")
	}
}

func TestSignatureRoundTrip(t *testing.T) {
	key, err := GenerateECDSAKey()
	if err != nil {
		t.Fatalf("err: %v", err)
	}

	hash := crypto.SHA256([]byte("transfer 10 to bob"))

	r, s, err := Sign(key, hash)
	if err != nil {
		t.Fatalf("err: %v", err)
	}

	encoded := EncodeSignature(r, s)
	dr, ds, err := DecodeSignature(encoded)
	if err != nil {
		t.Fatalf("err: %v", err)
	}

	pub := PublicKeyFromHex(PublicKeyHex(&key.PublicKey))
	if pub == nil {
		t.Fatalf("public key did not survive hex encoding")
	}

	if !Verify(pub, hash, dr, ds) {
		t.Fatalf("signature should verify")
	}

	other := crypto.SHA256([]byte("transfer 99 to bob"))
	if Verify(pub, other, dr, ds) {
		t.Fatalf("signature should not verify a different hash")
	}

	if _, _, err := DecodeSignature("nope"); err == nil {
		t.Fatalf("malformed signature should not decode")
	}
}

func TestLedgerIdentity(t *testing.T) {
	key, _ := GenerateECDSAKey()

	id := LedgerIdentity(&key.PublicKey)
	if len(id) < 32 || len(id) > 44 {
		t.Fatalf("unexpected ledger identity length %d: %s", len(id), id)
	}
	if id != LedgerIdentity(&key.PublicKey) {
		t.Fatalf("ledger identity should be stable")
	}
}
