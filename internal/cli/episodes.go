package cli

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/rcliao/agent-context/internal/memory"
	"github.com/rcliao/agent-context/internal/model"
)

func init() {
	cmd := &cobra.Command{
		Use:   "episodes",
		Short: "List episodic events",
		Run:   runEpisodes,
	}

	cmd.Flags().StringP("user", "u", "", "User ID (required)")
	cmd.Flags().StringP("session", "s", "", "Filter by session")
	cmd.Flags().StringP("type", "t", "", "Filter by event type")
	cmd.Flags().String("since", "", "Only events at or after this time (RFC3339 or a duration like 24h)")
	cmd.Flags().IntP("limit", "l", 50, "Max results")
	cmd.MarkFlagRequired("user")

	add := &cobra.Command{
		Use:   "add [content]",
		Short: "Record an episode",
		Long:  "Record an episodic event. Content is JSON or plain text, as a positional arg or piped via stdin.",
		Run:   runEpisodeAdd,
	}
	add.Flags().StringP("user", "u", "", "User ID (required)")
	add.Flags().StringP("session", "s", "", "Session ID")
	add.Flags().StringP("type", "t", "", "Event type (required)")
	add.Flags().String("summary", "", "Short summary")
	add.Flags().String("meta", "", "JSON metadata")
	add.MarkFlagRequired("user")
	add.MarkFlagRequired("type")

	cmd.AddCommand(add)
	RootCmd.AddCommand(cmd)
}

func runEpisodeAdd(cmd *cobra.Command, args []string) {
	user, _ := cmd.Flags().GetString("user")
	session, _ := cmd.Flags().GetString("session")
	eventType, _ := cmd.Flags().GetString("type")
	summary, _ := cmd.Flags().GetString("summary")
	meta, _ := cmd.Flags().GetString("meta")

	content, err := textArg(args)
	if err != nil {
		exitErr("read stdin", err)
	}
	ep, err := newEpisode(user, session, eventType, content, summary, meta)
	if err != nil {
		exitErr("episodes add", err)
	}

	a := mustOpenApp()
	defer a.Close()

	id, err := a.mem.AddEpisode(cmd.Context(), ep)
	if err != nil {
		exitErr("episodes add", err)
	}
	printJSON(map[string]any{"id": id, "user_id": user, "event_type": eventType})
}

// newEpisode builds an episode from flag values. Content that is not JSON is
// stored as a JSON string.
func newEpisode(user, session, eventType, content, summary, meta string) (model.Episode, error) {
	if content == "" {
		return model.Episode{}, fmt.Errorf("content is required (positional arg or stdin)")
	}
	ep := model.Episode{
		UserID:    user,
		SessionID: session,
		EventType: eventType,
		Content:   responseJSON(content),
		Summary:   summary,
	}
	if meta != "" {
		if err := json.Unmarshal([]byte(meta), &ep.Metadata); err != nil {
			return model.Episode{}, fmt.Errorf("parse meta: %w", err)
		}
	}
	return ep, nil
}

func runEpisodes(cmd *cobra.Command, args []string) {
	user, _ := cmd.Flags().GetString("user")
	session, _ := cmd.Flags().GetString("session")
	eventType, _ := cmd.Flags().GetString("type")
	sinceStr, _ := cmd.Flags().GetString("since")
	limit, _ := cmd.Flags().GetInt("limit")

	since, err := parseSince(sinceStr, time.Now())
	if err != nil {
		exitErr("parse since", err)
	}

	a := mustOpenApp()
	defer a.Close()

	eps, err := a.mem.Episodes(cmd.Context(), memory.EpisodeQuery{
		UserID:    user,
		SessionID: session,
		EventType: eventType,
		Since:     since,
		Limit:     limit,
	})
	if err != nil {
		exitErr("episodes", err)
	}
	printJSON(eps)
}

// parseSince accepts an RFC3339 timestamp or a duration back from now.
func parseSince(s string, now time.Time) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	if d, err := time.ParseDuration(s); err == nil {
		return now.Add(-d), nil
	}
	return time.Time{}, fmt.Errorf("invalid time %q", s)
}
