// Package memory implements the five memory tiers and the Manager facade
// that composes them.
package memory

import (
	"context"
	"log/slog"

	"github.com/rcliao/agent-context/internal/model"
	"github.com/rcliao/agent-context/internal/store"
)

// Options wires a Manager. A nil best-effort store disables that tier.
type Options struct {
	ShortTerm  *ShortTermStore
	LongTerm   *LongTermStore
	Episodic   *EpisodicStore
	Semantic   *SemanticStore
	Procedural *ProceduralStore
	Offload    *OffloadStore
	Logger     *slog.Logger
}

// Manager is the single entry point to every tier. Errors it returns are
// *Error values.
type Manager struct {
	shortTerm  *ShortTermStore
	longTerm   *LongTermStore
	episodic   *EpisodicStore
	semantic   *SemanticStore
	procedural *ProceduralStore
	offload    *OffloadStore
	logger     *slog.Logger
}

// NewManager composes the given stores.
func NewManager(o Options) *Manager {
	logger := o.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		shortTerm:  o.ShortTerm,
		longTerm:   o.LongTerm,
		episodic:   o.Episodic,
		semantic:   o.Semantic,
		procedural: o.Procedural,
		offload:    o.Offload,
		logger:     logger,
	}
}

// New builds every tier from cfg over one SQLite database and search index.
// index may be nil; search then reports ErrMisconfigured.
func New(cfg Config, db *store.SQLiteStore, index Index, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	cfg.ApplyDefaults()
	o := Options{
		ShortTerm: NewShortTermStore(cfg.ShortTerm, logger),
		LongTerm:  NewLongTermStore(db, index, cfg.LongTerm, logger),
		Logger:    logger,
	}
	if cfg.Episodic.Enabled {
		o.Episodic = NewEpisodicStore(db, logger)
	}
	if cfg.Semantic.Enabled {
		o.Semantic = NewSemanticStore(db, index, cfg.Semantic, logger)
	}
	if cfg.Procedural.Enabled {
		o.Procedural = NewProceduralStore(db, logger)
	}
	if cfg.Offload.Enabled {
		o.Offload = NewOffloadStore(db, logger)
	}
	return NewManager(o)
}

// Connect establishes the short-term connection, the liveness gate. Other
// tiers connect on first use.
func (m *Manager) Connect(ctx context.Context) error {
	return wrap(TierShortTerm, "connect", KindConnection, m.shortTerm.Connect(ctx))
}

// Close releases the short-term connection.
func (m *Manager) Close() error {
	return m.shortTerm.Close()
}

// SaveShortTerm replaces the session record.
func (m *Manager) SaveShortTerm(ctx context.Context, sessionID string, sess model.Session) error {
	return wrap(TierShortTerm, "save", KindWrite, m.shortTerm.Save(ctx, sessionID, sess))
}

// GetShortTerm returns the session record and whether it exists.
func (m *Manager) GetShortTerm(ctx context.Context, sessionID string) (model.Session, bool, error) {
	sess, ok, err := m.shortTerm.Get(ctx, sessionID)
	return sess, ok, wrap(TierShortTerm, "get", KindRead, err)
}

// ClearSession deletes the session record.
func (m *Manager) ClearSession(ctx context.Context, sessionID string) error {
	return wrap(TierShortTerm, "clear", KindWrite, m.shortTerm.Clear(ctx, sessionID))
}

// SaveLongTerm appends a turn. A turn without messages writes nothing.
func (m *Manager) SaveLongTerm(ctx context.Context, in TurnInput) error {
	if len(in.Messages) == 0 {
		return nil
	}
	return wrap(TierLongTerm, "save", KindWrite, m.longTerm.Save(ctx, in))
}

// RelevantHistory searches a user's turns; an empty query returns the most
// recent ones.
func (m *Manager) RelevantHistory(ctx context.Context, userID, query string, limit int) ([]model.HistoryItem, error) {
	items, err := m.longTerm.Relevant(ctx, userID, query, limit)
	return items, wrap(TierLongTerm, "relevant", KindRead, err)
}

// CountHistory returns the number of long-term turns stored for a user.
func (m *Manager) CountHistory(ctx context.Context, userID string) (int, error) {
	n, err := m.longTerm.Count(ctx, userID)
	return n, wrap(TierLongTerm, "count", KindRead, err)
}

// AddEpisode appends an episode and returns its id.
func (m *Manager) AddEpisode(ctx context.Context, ep model.Episode) (string, error) {
	if m.episodic == nil {
		return "", nil
	}
	id, err := m.episodic.Add(ctx, ep)
	return id, wrap(TierEpisodic, "add", KindWrite, err)
}

// Episodes lists a user's episodes, newest first.
func (m *Manager) Episodes(ctx context.Context, q EpisodeQuery) ([]model.Episode, error) {
	if m.episodic == nil {
		return nil, nil
	}
	eps, err := m.episodic.List(ctx, q)
	return eps, wrap(TierEpisodic, "list", KindRead, err)
}

// AddFact stores a fact and indexes it for search.
func (m *Manager) AddFact(ctx context.Context, userID, text string, metadata map[string]any) error {
	if m.semantic == nil {
		return nil
	}
	return wrap(TierSemantic, "add", KindWrite, m.semantic.AddFact(ctx, userID, text, metadata))
}

// SearchFacts searches a user's facts; an empty query lists them all.
func (m *Manager) SearchFacts(ctx context.Context, userID, query string, limit int) ([]model.Fact, error) {
	if m.semantic == nil {
		return nil, nil
	}
	facts, err := m.semantic.Search(ctx, userID, query, limit)
	return facts, wrap(TierSemantic, "search", KindRead, err)
}

// AllFacts lists a user's facts, newest first.
func (m *Manager) AllFacts(ctx context.Context, userID string, limit int) ([]model.Fact, error) {
	if m.semantic == nil {
		return nil, nil
	}
	facts, err := m.semantic.All(ctx, userID, limit)
	return facts, wrap(TierSemantic, "all", KindRead, err)
}

// AddProcedure creates or replaces a procedure by name and returns its id.
func (m *Manager) AddProcedure(ctx context.Context, d model.ProcedureDraft) (string, error) {
	if m.procedural == nil {
		return "", nil
	}
	id, err := m.procedural.Add(ctx, d)
	return id, wrap(TierProcedural, "add", KindWrite, err)
}

// GetProcedure returns the named procedure. Backend failures are logged and
// reported as absent.
func (m *Manager) GetProcedure(ctx context.Context, userID, name string) (model.Procedure, bool, error) {
	if m.procedural == nil {
		return model.Procedure{}, false, nil
	}
	p, ok, err := m.procedural.Get(ctx, userID, name)
	if err != nil {
		m.logger.Warn("procedure_read_failed", "user_id", userID, "name", name, "error", err)
		return model.Procedure{}, false, nil
	}
	return p, ok, nil
}

// ListProcedures lists a user's procedures, most recently updated first.
func (m *Manager) ListProcedures(ctx context.Context, userID string, limit int, includeDocs bool) ([]model.Procedure, error) {
	if m.procedural == nil {
		return nil, nil
	}
	procs, err := m.procedural.List(ctx, userID, limit, includeDocs)
	return procs, wrap(TierProcedural, "list", KindRead, err)
}

// OffloadContext archives evicted messages.
func (m *Manager) OffloadContext(ctx context.Context, userID, sessionID string, msgs []model.Message) error {
	if m.offload == nil {
		return nil
	}
	return wrap(TierOffload, "offload", KindWrite, m.offload.Offload(ctx, userID, sessionID, msgs))
}

// OffloadedChunks returns a session's archived messages, oldest first.
func (m *Manager) OffloadedChunks(ctx context.Context, userID, sessionID string) ([]model.OffloadChunk, error) {
	if m.offload == nil {
		return nil, nil
	}
	chunks, err := m.offload.Chunks(ctx, userID, sessionID)
	return chunks, wrap(TierOffload, "chunks", KindRead, err)
}

// OffloadEnabled reports whether evicted messages are archived.
func (m *Manager) OffloadEnabled() bool { return m.offload != nil }

// DiagnoseIndex checks the long-term search index end to end.
func (m *Manager) DiagnoseIndex(ctx context.Context) error {
	return wrap(TierLongTerm, "diagnose", KindConnection, m.longTerm.Diagnose(ctx))
}
