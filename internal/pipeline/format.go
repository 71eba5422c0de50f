package pipeline

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rcliao/agent-context/internal/model"
)

// Section markers in the assembled message.
const (
	recentMarker     = "[Recent context] "
	historyMarker    = "[Relevant history] "
	proceduresMarker = "[Saved procedures]\n"
	currentMarker    = "[Current user message] "
	partSeparator    = "\n\n"
)

// FormatProcedures renders procedures as an indented list with numbered steps.
func FormatProcedures(procs []model.Procedure) string {
	blocks := make([]string, 0, len(procs))
	for _, p := range procs {
		name := p.Name
		if name == "" {
			name = "unnamed"
		}
		var b strings.Builder
		b.WriteString("- Procedure: " + name)
		if p.Description != "" {
			b.WriteString("\n  Description: " + p.Description)
		}
		if len(p.Steps) > 0 {
			b.WriteString("\n  Steps:")
			for i, s := range p.Steps {
				fmt.Fprintf(&b, "\n    %d. %s", i+1, s)
			}
		}
		blocks = append(blocks, b.String())
	}
	return strings.Join(blocks, partSeparator)
}

// contextParts builds the ordered context sections. Empty inputs produce no
// section.
func contextParts(st []model.Message, lt []model.HistoryItem, procs []model.Procedure, ltMax int) []string {
	var parts []string
	if len(st) > 0 {
		b, _ := json.Marshal(st)
		parts = append(parts, recentMarker+string(b))
	}
	if len(lt) > 0 {
		lt = capItems(lt, ltMax)
		intents := make([][]model.IntentPair, 0, len(lt))
		for _, h := range lt {
			ih := h.IntentHistory
			if ih == nil {
				ih = []model.IntentPair{}
			}
			intents = append(intents, ih)
		}
		b, _ := json.Marshal(intents)
		parts = append(parts, historyMarker+string(b))
	}
	if len(procs) > 0 {
		parts = append(parts, proceduresMarker+FormatProcedures(procs))
	}
	return parts
}
