package commands

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/fractis/node/src/peers"
	"github.com/spf13/cobra"
)

// NewPeersCmd produces a command listing the peers recorded in the peer book.
// The book is locked by a running node, so this only works while it is
// stopped.
func NewPeersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "peers",
		Short:   "List known peers",
		PreRunE: loadConfig,
		RunE:    listPeers,
	}

	cmd.Flags().String("datadir", _config.DataDir, "Top-level directory for configuration and keys")
	cmd.Flags().String("storage-path", _config.StoragePath, "Directory of the node databases")
	cmd.Flags().String("log", "warn", "debug, info, warn, error, fatal, panic")

	return cmd
}

func listPeers(cmd *cobra.Command, args []string) error {
	book, err := peers.OpenBadgerBook(_config.PeerBookDir(), _config.Logger())
	if err != nil {
		return fmt.Errorf("opening peer book: %w", err)
	}
	defer book.Close()

	entries, err := book.All()
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ADDRESS\tDIRECTION\tCONNECTIONS\tFIRST SEEN\tLAST SEEN")
	for _, e := range entries {
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n",
			e.Addr,
			e.Direction,
			e.Connections,
			e.FirstSeen.Format(time.RFC3339),
			e.LastSeen.Format(time.RFC3339),
		)
	}

	return w.Flush()
}
