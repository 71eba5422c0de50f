package cli

import (
	"os"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "health",
		Short: "Check Redis, the database and the search index",
		Long:  "Check every backend. Exits non-zero when short-term or durable storage is unreachable.",
		Run:   runHealth,
	}

	RootCmd.AddCommand(cmd)
}

func runHealth(cmd *cobra.Command, args []string) {
	a := mustOpenApp()
	defer a.Close()

	h := a.mem.Health(cmd.Context())
	printJSON(h)
	if !h.OK {
		a.Close()
		os.Exit(1)
	}
}
