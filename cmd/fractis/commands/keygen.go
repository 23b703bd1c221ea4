package commands

import (
	"fmt"
	"os"
	"path"
	"path/filepath"

	"github.com/fractis/node/src/address"
	"github.com/fractis/node/src/config"
	"github.com/fractis/node/src/crypto/keys"
	"github.com/fractis/node/src/fractis"
	"github.com/spf13/cobra"
)

var (
	privKeyFile           string
	pubKeyFile            string
	defaultPrivateKeyFile = filepath.Join(_config.DataDir, config.DefaultKeyfile)
	defaultPublicKeyFile  = filepath.Join(_config.DataDir, "key.pub")
)

// NewKeygenCmd produces a KeygenCmd which create a key pair
func NewKeygenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Create new key pair",
		RunE:  keygen,
	}

	AddKeygenFlags(cmd)

	return cmd
}

//AddKeygenFlags adds flags to the keygen command
func AddKeygenFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&privKeyFile, "priv", defaultPrivateKeyFile, "File where the private key will be written")
	cmd.Flags().StringVar(&pubKeyFile, "pub", defaultPublicKeyFile, "File where the public key will be written")
}

func keygen(cmd *cobra.Command, args []string) error {
	key, err := fractis.Keygen(privKeyFile)
	if err != nil {
		return fmt.Errorf("writing private key: %w", err)
	}

	fmt.Printf("Your private key has been saved to: %s\n", privKeyFile)

	if err := os.MkdirAll(path.Dir(pubKeyFile), 0700); err != nil {
		return fmt.Errorf("writing public key: %w", err)
	}

	pub := keys.PublicKeyHex(&key.PublicKey)

	if err := os.WriteFile(pubKeyFile, []byte(pub), 0600); err != nil {
		return fmt.Errorf("writing public key: %w", err)
	}

	fmt.Printf("Your public key has been saved to: %s\n", pubKeyFile)

	identity := keys.LedgerIdentity(&key.PublicKey)
	addr, err := address.FromLedger(identity)
	if err != nil {
		return err
	}

	fmt.Printf("Ledger identity: %s\n", identity)
	fmt.Printf("Node address: %s\n", addr)

	return nil
}
