package pipeline

import (
	"sync"

	"github.com/rcliao/agent-context/internal/model"
)

// ProcedureBuffer collects procedures produced while the agent handles one
// turn. The caller owns it, hands it to the agent call and drains it into
// Turn.Procedures. Safe for concurrent use.
type ProcedureBuffer struct {
	mu    sync.Mutex
	items []model.ProcedureDraft
}

func (b *ProcedureBuffer) Add(d model.ProcedureDraft) {
	b.mu.Lock()
	b.items = append(b.items, d)
	b.mu.Unlock()
}

// Drain returns the buffered procedures in insertion order and empties the
// buffer.
func (b *ProcedureBuffer) Drain() []model.ProcedureDraft {
	b.mu.Lock()
	defer b.mu.Unlock()
	items := b.items
	b.items = nil
	return items
}
