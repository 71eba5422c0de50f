package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "fact",
		Short: "Add or search semantic facts",
	}

	add := &cobra.Command{
		Use:   "add [text]",
		Short: "Store a fact",
		Run:   runFactAdd,
	}
	add.Flags().String("meta", "", "JSON metadata")

	search := &cobra.Command{
		Use:   "search [query]",
		Short: "Search facts. Without a query, list all facts",
		Run:   runFactSearch,
	}
	search.Flags().IntP("limit", "l", 10, "Max results")

	for _, c := range []*cobra.Command{add, search} {
		c.Flags().StringP("user", "u", "", "User ID (required)")
		c.MarkFlagRequired("user")
	}

	cmd.AddCommand(add, search)
	RootCmd.AddCommand(cmd)
}

func runFactAdd(cmd *cobra.Command, args []string) {
	user, _ := cmd.Flags().GetString("user")
	meta, _ := cmd.Flags().GetString("meta")

	text, err := textArg(args)
	if err != nil {
		exitErr("read stdin", err)
	}
	if text == "" {
		exitErr("fact add", fmt.Errorf("text is required (positional arg or stdin)"))
	}
	var metadata map[string]any
	if meta != "" {
		if err := json.Unmarshal([]byte(meta), &metadata); err != nil {
			exitErr("parse meta", err)
		}
	}

	a := mustOpenApp()
	defer a.Close()

	if err := a.mem.AddFact(cmd.Context(), user, text, metadata); err != nil {
		exitErr("fact add", err)
	}
	printJSON(map[string]any{"user_id": user, "memory": text, "stored": true})
}

func runFactSearch(cmd *cobra.Command, args []string) {
	user, _ := cmd.Flags().GetString("user")
	limit, _ := cmd.Flags().GetInt("limit")
	query, err := textArg(args)
	if err != nil {
		exitErr("read stdin", err)
	}

	a := mustOpenApp()
	defer a.Close()

	facts, err := a.mem.SearchFacts(cmd.Context(), user, query, limit)
	if err != nil {
		exitErr("fact search", err)
	}
	printJSON(facts)
}
