package cli

import (
	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "history [query]",
		Short: "Search long-term history",
		Long:  "Search a user's long-term turns by similarity. Without a query, list the most recent turns.",
		Run:   runHistory,
	}

	cmd.Flags().StringP("user", "u", "", "User ID (required)")
	cmd.Flags().IntP("limit", "l", 0, "Max results (default: long_term.default_limit)")
	cmd.Flags().Bool("count", false, "Print only the number of stored turns")
	cmd.MarkFlagRequired("user")

	RootCmd.AddCommand(cmd)
}

func runHistory(cmd *cobra.Command, args []string) {
	user, _ := cmd.Flags().GetString("user")
	limit, _ := cmd.Flags().GetInt("limit")
	count, _ := cmd.Flags().GetBool("count")
	query, err := textArg(args)
	if err != nil {
		exitErr("read stdin", err)
	}

	a := mustOpenApp()
	defer a.Close()

	if count {
		n, err := a.mem.CountHistory(cmd.Context(), user)
		if err != nil {
			exitErr("history count", err)
		}
		printJSON(map[string]any{"user_id": user, "turns": n})
		return
	}

	items, err := a.mem.RelevantHistory(cmd.Context(), user, query, limit)
	if err != nil {
		exitErr("history", err)
	}
	printJSON(items)
}
