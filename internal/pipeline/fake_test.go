package pipeline

import (
	"context"
	"sync"

	"github.com/rcliao/agent-context/internal/memory"
	"github.com/rcliao/agent-context/internal/model"
)

// fakeMemory records calls and returns canned data.
type fakeMemory struct {
	mu sync.Mutex

	session    *model.Session
	shortErr   error
	history    []model.HistoryItem
	historyErr error
	procs      []model.Procedure
	procErr    error

	historyCalls int
	historyLimit int
	procCalls    int

	saveShortErr error
	saveLongErr  error
	offloadErr   error
	noArchive    bool
	episodeErr   error
	factErr      error
	procWriteErr map[string]error

	savedSessions []model.Session
	longTerm      []memory.TurnInput
	offloaded     [][]model.Message
	episodes      []model.Episode
	facts         []string
	procedures    []model.ProcedureDraft
}

func (f *fakeMemory) GetShortTerm(ctx context.Context, sessionID string) (model.Session, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.shortErr != nil {
		return model.Session{}, false, f.shortErr
	}
	if f.session == nil {
		return model.Session{}, false, nil
	}
	return *f.session, true, nil
}

func (f *fakeMemory) RelevantHistory(ctx context.Context, userID, query string, limit int) ([]model.HistoryItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.historyCalls++
	f.historyLimit = limit
	return f.history, f.historyErr
}

func (f *fakeMemory) ListProcedures(ctx context.Context, userID string, limit int, includeDocs bool) ([]model.Procedure, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.procCalls++
	return f.procs, f.procErr
}

func (f *fakeMemory) OffloadEnabled() bool { return !f.noArchive }

func (f *fakeMemory) OffloadContext(ctx context.Context, userID, sessionID string, msgs []model.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.offloaded = append(f.offloaded, msgs)
	return f.offloadErr
}

func (f *fakeMemory) SaveShortTerm(ctx context.Context, sessionID string, sess model.Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveShortErr != nil {
		return f.saveShortErr
	}
	f.savedSessions = append(f.savedSessions, sess)
	return nil
}

func (f *fakeMemory) SaveLongTerm(ctx context.Context, in memory.TurnInput) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveLongErr != nil {
		return f.saveLongErr
	}
	f.longTerm = append(f.longTerm, in)
	return nil
}

func (f *fakeMemory) AddEpisode(ctx context.Context, ep model.Episode) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.episodeErr != nil {
		return "", f.episodeErr
	}
	f.episodes = append(f.episodes, ep)
	return "ep1", nil
}

func (f *fakeMemory) AddFact(ctx context.Context, userID, text string, metadata map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.factErr != nil {
		return f.factErr
	}
	f.facts = append(f.facts, text)
	return nil
}

func (f *fakeMemory) AddProcedure(ctx context.Context, d model.ProcedureDraft) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.procWriteErr[d.Name]; err != nil {
		return "", err
	}
	f.procedures = append(f.procedures, d)
	return "p-" + d.Name, nil
}

var (
	_ Reader = (*fakeMemory)(nil)
	_ Writer = (*fakeMemory)(nil)
	_ Reader = (*memory.Manager)(nil)
	_ Writer = (*memory.Manager)(nil)
)

func score(v float64) *float64 { return &v }
