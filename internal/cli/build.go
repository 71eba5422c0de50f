package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "build [message]",
		Short: "Assemble the context-augmented message for a turn",
		Long:  "Read session, relevant history and procedures and print the assembled message. Message can be a positional arg or piped via stdin.",
		Run:   runBuild,
	}

	cmd.Flags().StringP("user", "u", "", "User ID (required)")
	cmd.Flags().StringP("session", "s", "", "Session ID (required)")
	cmd.MarkFlagRequired("user")
	cmd.MarkFlagRequired("session")

	RootCmd.AddCommand(cmd)
}

func runBuild(cmd *cobra.Command, args []string) {
	user, _ := cmd.Flags().GetString("user")
	session, _ := cmd.Flags().GetString("session")

	message, err := textArg(args)
	if err != nil {
		exitErr("read stdin", err)
	}
	if message == "" {
		exitErr("build", fmt.Errorf("message is required (positional arg or stdin)"))
	}

	a := mustOpenApp()
	defer a.Close()
	a.connect(cmd.Context())

	res, err := a.pipeline.Build(cmd.Context(), user, session, message)
	if err != nil {
		exitErr("build", err)
	}
	printJSON(res)
}
