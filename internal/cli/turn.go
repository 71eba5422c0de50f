package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rcliao/agent-context/internal/model"
	"github.com/rcliao/agent-context/internal/pipeline"
)

func init() {
	cmd := &cobra.Command{
		Use:   "turn [message]",
		Short: "Record a completed turn",
		Long: "Assemble context for the message, then persist the turn with the agent's response: " +
			"session window (with offload), long-term turn, episode, fact and any procedures.",
		Run: runTurn,
	}

	cmd.Flags().StringP("user", "u", "", "User ID (required)")
	cmd.Flags().StringP("session", "s", "", "Session ID (required)")
	cmd.Flags().StringP("response", "r", "", "Agent response as JSON, or plain text")
	cmd.Flags().StringP("intent", "i", "", "Classified intent of the message")
	cmd.Flags().String("procedures", "", `JSON array of procedures, e.g. [{"name":"x","steps":["a"]}]`)
	cmd.MarkFlagRequired("user")
	cmd.MarkFlagRequired("session")

	RootCmd.AddCommand(cmd)
}

func runTurn(cmd *cobra.Command, args []string) {
	user, _ := cmd.Flags().GetString("user")
	session, _ := cmd.Flags().GetString("session")
	response, _ := cmd.Flags().GetString("response")
	intent, _ := cmd.Flags().GetString("intent")
	procsJSON, _ := cmd.Flags().GetString("procedures")

	message, err := textArg(args)
	if err != nil {
		exitErr("read stdin", err)
	}
	if message == "" {
		exitErr("turn", fmt.Errorf("message is required (positional arg or stdin)"))
	}

	var buf pipeline.ProcedureBuffer
	if procsJSON != "" {
		var drafts []model.ProcedureDraft
		if err := json.Unmarshal([]byte(procsJSON), &drafts); err != nil {
			exitErr("parse procedures", err)
		}
		for _, d := range drafts {
			buf.Add(d)
		}
	}

	a := mustOpenApp()
	defer a.Close()
	a.connect(cmd.Context())

	ctx := cmd.Context()
	built, err := a.pipeline.Build(ctx, user, session, message)
	if err != nil {
		exitErr("build", err)
	}

	err = a.persister.AfterTurn(ctx, pipeline.Turn{
		UserID:     user,
		SessionID:  session,
		Message:    message,
		Before:     built.ShortTerm,
		Response:   responseJSON(response),
		Intent:     intent,
		Procedures: buf.Drain(),
	})
	if err != nil {
		exitErr("after turn", err)
	}
	printJSON(built)
}

// responseJSON accepts a JSON document or wraps plain text as a JSON string.
func responseJSON(s string) json.RawMessage {
	if s == "" {
		return nil
	}
	if json.Valid([]byte(s)) {
		return json.RawMessage(s)
	}
	b, _ := json.Marshal(s)
	return b
}
