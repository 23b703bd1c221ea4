package commands

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fractis/node/src/crypto/keys"
	"github.com/sirupsen/logrus"
)

func TestKeygenWritesKeyPair(t *testing.T) {
	dir := t.TempDir()
	privKeyFile = filepath.Join(dir, "priv_key")
	pubKeyFile = filepath.Join(dir, "keys", "key.pub")

	if err := keygen(nil, nil); err != nil {
		t.Fatal(err)
	}

	priv, err := keys.NewSimpleKeyfile(privKeyFile).ReadKey()
	if err != nil {
		t.Fatal(err)
	}

	pub, err := os.ReadFile(pubKeyFile)
	if err != nil {
		t.Fatal(err)
	}

	if string(pub) != keys.PublicKeyHex(&priv.PublicKey) {
		t.Fatalf("public key file %q does not match private key", pub)
	}

	if err := keygen(nil, nil); err == nil {
		t.Fatal("keygen should refuse to overwrite an existing key")
	}
}

func TestNewLoggerWritesFiles(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")

	logger, err := newLogger("info", dir)
	if err != nil {
		t.Fatal(err)
	}

	if logger.Level != logrus.InfoLevel {
		t.Fatalf("level should be info, not %v", logger.Level)
	}

	logger.Info("hello info")
	logger.Debug("hidden")
	logger.Warn("hello warn")

	info, err := os.ReadFile(filepath.Join(dir, "fractis_info.log"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(info), "hello info") {
		t.Fatalf("info log should contain the message, got %q", info)
	}

	if _, err := os.Stat(filepath.Join(dir, "fractis_debug.log")); err == nil {
		t.Fatal("no debug file expected at info level")
	}

	warn, err := os.ReadFile(filepath.Join(dir, "fractis_warn.log"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(warn), "hello warn") {
		t.Fatalf("warn log should contain the message, got %q", warn)
	}
}

func TestNewLoggerWithoutDir(t *testing.T) {
	logger, err := newLogger("debug", "")
	if err != nil {
		t.Fatal(err)
	}
	if len(logger.Hooks) != 0 {
		t.Fatal("no hooks expected without a log dir")
	}
}
