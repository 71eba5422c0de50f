package cli

import (
	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Inspect or clear short-term session memory",
	}

	get := &cobra.Command{
		Use:   "get",
		Short: "Print a session",
		Run:   runSessionGet,
	}
	clr := &cobra.Command{
		Use:   "clear",
		Short: "Delete a session",
		Run:   runSessionClear,
	}
	for _, c := range []*cobra.Command{get, clr} {
		c.Flags().StringP("session", "s", "", "Session ID (required)")
		c.MarkFlagRequired("session")
	}

	offloaded := &cobra.Command{
		Use:   "offloaded",
		Short: "Print messages archived out of a session, oldest first",
		Run:   runSessionOffloaded,
	}
	offloaded.Flags().StringP("session", "s", "", "Session ID (required)")
	offloaded.Flags().StringP("user", "u", "", "User ID (required)")
	offloaded.MarkFlagRequired("session")
	offloaded.MarkFlagRequired("user")

	cmd.AddCommand(get, clr, offloaded)
	RootCmd.AddCommand(cmd)
}

func runSessionGet(cmd *cobra.Command, args []string) {
	session, _ := cmd.Flags().GetString("session")

	a := mustOpenApp()
	defer a.Close()

	sess, found, err := a.mem.GetShortTerm(cmd.Context(), session)
	if err != nil {
		exitErr("session get", err)
	}
	if !found {
		printJSON(map[string]any{"session_id": session, "found": false})
		return
	}
	printJSON(sess)
}

func runSessionClear(cmd *cobra.Command, args []string) {
	session, _ := cmd.Flags().GetString("session")

	a := mustOpenApp()
	defer a.Close()

	if err := a.mem.ClearSession(cmd.Context(), session); err != nil {
		exitErr("session clear", err)
	}
	printJSON(map[string]any{"session_id": session, "cleared": true})
}

func runSessionOffloaded(cmd *cobra.Command, args []string) {
	session, _ := cmd.Flags().GetString("session")
	user, _ := cmd.Flags().GetString("user")

	a := mustOpenApp()
	defer a.Close()

	chunks, err := a.mem.OffloadedChunks(cmd.Context(), user, session)
	if err != nil {
		exitErr("session offloaded", err)
	}
	printJSON(chunks)
}
