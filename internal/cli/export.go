package cli

import (
	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export a user's durable memory as JSON",
		Long:  "Export a user's long-term turns, episodes, facts and procedures as one JSON document.",
		Run:   runExport,
	}

	cmd.Flags().StringP("user", "u", "", "User ID (required)")
	cmd.MarkFlagRequired("user")

	RootCmd.AddCommand(cmd)
}

func runExport(cmd *cobra.Command, args []string) {
	user, _ := cmd.Flags().GetString("user")

	a := mustOpenApp()
	defer a.Close()

	exp, err := a.db.ExportUser(cmd.Context(), user)
	if err != nil {
		exitErr("export", err)
	}
	printJSON(exp)
}
