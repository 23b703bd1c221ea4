package commands

import (
	"fmt"

	"github.com/fractis/node/src/version"
	"github.com/spf13/cobra"
)

// VersionCmd displays the version of fractis being used
var VersionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version info",
	Run: func(cmd *cobra.Command, args []string) {
		info := version.Info()
		fmt.Println(info["version"])
		if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
			fmt.Printf("commit: %s\ngo: %s\nos: %s\n", info["commit"], info["go"], info["os"])
		}
	},
}

func init() {
	VersionCmd.Flags().BoolP("verbose", "v", false, "Show build details")
}
