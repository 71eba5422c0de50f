package pipeline

import "github.com/rcliao/agent-context/internal/model"

func capItems[T any](items []T, max int) []T {
	if max > 0 && len(items) > max {
		return items[:max]
	}
	return items
}

func recentMessages(msgs []model.Message, n int) []model.Message {
	if n > 0 && len(msgs) > n {
		return msgs[len(msgs)-n:]
	}
	return msgs
}

// applyFilter caps long-term items and procedures, drops long-term items
// below the minimum score and keeps the most recent short-term messages.
// Items without a score never pass a minimum score.
func applyFilter(lt []model.HistoryItem, procs []model.Procedure, st []model.Message, f FilterConfig) ([]model.HistoryItem, []model.Procedure, []model.Message) {
	lt = capItems(lt, f.LongTermMax)
	if f.LongTermMinScore != nil {
		kept := make([]model.HistoryItem, 0, len(lt))
		for _, h := range lt {
			if h.Score != nil && *h.Score >= *f.LongTermMinScore {
				kept = append(kept, h)
			}
		}
		lt = kept
	}
	return lt, capItems(procs, f.ProcedureMax), recentMessages(st, f.ShortTermRecent)
}
