package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fractis/node/src/config"
	"github.com/spf13/cobra"
)

var forceConfig bool

// NewConfigCmd produces a command that writes the current configuration,
// defaults merged with flags, to [datadir]/fractis.toml.
func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "config",
		Short:   "Write the configuration file",
		PreRunE: loadConfig,
		RunE:    writeConfig,
	}

	AddConfigFlags(cmd)
	cmd.Flags().BoolVar(&forceConfig, "force", false, "Overwrite an existing configuration file")

	return cmd
}

func writeConfig(cmd *cobra.Command, args []string) error {
	path := filepath.Join(_config.DataDir, config.DefaultConfigName+".toml")

	if _, err := os.Stat(path); err == nil && !forceConfig {
		return fmt.Errorf("%s already exists, use --force to overwrite it", path)
	}

	if err := _config.Save(path); err != nil {
		return err
	}

	fmt.Printf("Configuration written to: %s\n", path)

	return nil
}
