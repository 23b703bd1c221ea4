package commands

import (
	"github.com/fractis/node/src/config"
	"github.com/spf13/cobra"
)

var (
	_config = config.NewDefaultConfig()
)

//RootCmd is the root command for fractis
var RootCmd = &cobra.Command{
	Use:              "fractis",
	Short:            "fractis validator node",
	TraverseChildren: true,
}
