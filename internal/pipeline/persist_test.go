package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/rcliao/agent-context/internal/contextcache"
	"github.com/rcliao/agent-context/internal/model"
)

func messages(n int) []model.Message {
	msgs := make([]model.Message, 0, n)
	for i := 0; i < n; i++ {
		msgs = append(msgs, model.TextMessage(model.RoleUser, fmt.Sprintf("m%d", i)))
	}
	return msgs
}

func TestAfterTurn_Offload(t *testing.T) {
	mem := &fakeMemory{}
	p := NewPersister(mem, DefaultConfig(), PersisterOptions{})

	err := p.AfterTurn(context.Background(), Turn{
		UserID: "u1", SessionID: "s1", Message: "next",
		Before:   &model.Session{Messages: messages(13), SessionContext: map[string]any{"tz": "UTC"}},
		Response: json.RawMessage(`{"answer":"ok"}`),
		Intent:   "chat",
	})
	require.NoError(t, err)

	require.Len(t, mem.offloaded, 1)
	assert.Len(t, mem.offloaded[0], 10, "15 messages, keep 5, archive 10")
	assert.Equal(t, "m0", mem.offloaded[0][0].Text())

	require.Len(t, mem.savedSessions, 1)
	saved := mem.savedSessions[0]
	assert.Len(t, saved.Messages, 5)
	assert.Equal(t, "next", saved.Messages[3].Text())
	assert.Equal(t, model.RoleAssistant, saved.Messages[4].Role)
	assert.Equal(t, "chat", saved.Messages[4].Intent)
	assert.Equal(t, map[string]any{"last_intent": "chat"}, saved.ConversationState)
	assert.Equal(t, "UTC", saved.SessionContext["tz"])
}

func TestAfterTurn_NoOffloadKeepsWindow(t *testing.T) {
	mem := &fakeMemory{}
	cfg := DefaultConfig()
	cfg.Offload.Enabled = false
	p := NewPersister(mem, cfg, PersisterOptions{})

	require.NoError(t, p.AfterTurn(context.Background(), Turn{
		UserID: "u1", SessionID: "s1", Message: "next",
		Before: &model.Session{Messages: messages(25)}, Intent: "chat",
	}))
	assert.Empty(t, mem.offloaded)
	assert.Len(t, mem.savedSessions[0].Messages, 20)

	mem = &fakeMemory{}
	p = NewPersister(mem, DefaultConfig(), PersisterOptions{})
	require.NoError(t, p.AfterTurn(context.Background(), Turn{UserID: "u1", SessionID: "s1", Message: "first"}))
	assert.Empty(t, mem.offloaded, "below threshold")
	assert.Len(t, mem.savedSessions[0].Messages, 2)
}

func TestAfterTurn_NoArchiveKeepsWindow(t *testing.T) {
	mem := &fakeMemory{noArchive: true}
	p := NewPersister(mem, DefaultConfig(), PersisterOptions{})

	require.NoError(t, p.AfterTurn(context.Background(), Turn{
		UserID: "u1", SessionID: "s1", Message: "next",
		Before: &model.Session{Messages: messages(13)}, Intent: "chat",
	}))
	assert.Empty(t, mem.offloaded)
	saved := mem.savedSessions[0].Messages
	assert.Len(t, saved, 15, "nothing trimmed without an archive")
	assert.Equal(t, "m0", saved[0].Text())
}

func TestAfterTurn_Writes(t *testing.T) {
	mem := &fakeMemory{}
	p := NewPersister(mem, DefaultConfig(), PersisterOptions{})
	long := strings.Repeat("x", 400)

	require.NoError(t, p.AfterTurn(context.Background(), Turn{
		UserID: "u1", SessionID: "s1", Message: long,
		Response: json.RawMessage(`{"text":"` + strings.Repeat("y", 300) + `"}`),
		Intent:   "finance",
	}))

	require.Len(t, mem.longTerm, 1)
	lt := mem.longTerm[0]
	assert.Len(t, lt.Messages, 2)
	assert.Empty(t, lt.Messages[1].Intent)
	assert.Equal(t, []model.IntentPair{{Message: long, Intent: "finance"}}, lt.IntentHistory)
	assert.NotNil(t, lt.ExtractedEntities)
	assert.NotNil(t, lt.UserPreferences)

	require.Len(t, mem.episodes, 1)
	ep := mem.episodes[0]
	assert.Equal(t, "turn", ep.EventType)
	var content map[string]string
	require.NoError(t, json.Unmarshal(ep.Content, &content))
	assert.Len(t, content["user_message"], 300)
	assert.Len(t, content["response_preview"], 200)
	assert.Equal(t, "finance", content["intent"])

	require.Len(t, mem.facts, 1)
	assert.Equal(t, "User asked: "+strings.Repeat("x", 100)+"; intent was finance.", mem.facts[0])
}

func TestAfterTurn_HardFailures(t *testing.T) {
	ctx := context.Background()

	mem := &fakeMemory{saveShortErr: errors.New("redis down")}
	err := NewPersister(mem, DefaultConfig(), PersisterOptions{}).AfterTurn(ctx, Turn{UserID: "u1", SessionID: "s1", Message: "m"})
	require.Error(t, err)
	assert.Empty(t, mem.longTerm)
	assert.Empty(t, mem.episodes)

	mem = &fakeMemory{saveLongErr: errors.New("db down")}
	err = NewPersister(mem, DefaultConfig(), PersisterOptions{}).AfterTurn(ctx, Turn{UserID: "u1", SessionID: "s1", Message: "m"})
	require.Error(t, err)
	assert.Len(t, mem.savedSessions, 1)
	assert.Empty(t, mem.facts)
}

func TestAfterTurn_BestEffortIsolation(t *testing.T) {
	mem := &fakeMemory{
		offloadErr:   errors.New("archive down"),
		episodeErr:   errors.New("episodes down"),
		factErr:      errors.New("facts down"),
		procWriteErr: map[string]error{"bad": errors.New("nope")},
	}
	var mu sync.Mutex
	var invalidated []string
	p := NewPersister(mem, DefaultConfig(), PersisterOptions{
		OnProcedureSaved: func(_ context.Context, userID string) {
			mu.Lock()
			invalidated = append(invalidated, userID)
			mu.Unlock()
		},
	})

	err := p.AfterTurn(context.Background(), Turn{
		UserID: "u1", SessionID: "s1", Message: "m",
		Before: &model.Session{Messages: messages(20)},
		Procedures: []model.ProcedureDraft{
			{Name: "good", Steps: []string{"a"}},
			{Name: "bad"},
			{Steps: []string{"b"}},
		},
	})
	require.NoError(t, err)
	assert.Len(t, mem.savedSessions[0].Messages, 5, "offload failure still trims short-term")
	require.Len(t, mem.procedures, 2)
	assert.Equal(t, "u1", mem.procedures[0].UserID)
	assert.Equal(t, "unnamed", mem.procedures[1].Name)
	assert.Equal(t, []string{"u1", "u1"}, invalidated)
}

func TestAfterTurn_InvalidatesProcedureCache(t *testing.T) {
	ctx := context.Background()
	cache, mr := newTestCache(t)
	cache.Set(ctx, "proc", []string{"u1"}, []model.Procedure{{Name: "stale"}})
	cache.Set(ctx, "lt", []string{"u1", "fp"}, []model.HistoryItem{{ID: "h"}})

	mem := &fakeMemory{}
	p := NewPersister(mem, DefaultConfig(), PersisterOptions{Cache: cache})
	require.NoError(t, p.AfterTurn(ctx, Turn{
		UserID: "u1", SessionID: "s1", Message: "m",
		Procedures: []model.ProcedureDraft{{Name: "fresh"}},
	}))

	assert.False(t, mr.Exists(contextcache.Key("proc", "u1")))
	assert.True(t, mr.Exists(contextcache.Key("lt", "u1", "fp")), "only the procedure cache is invalidated")
}

func TestAfterTurn_NoCacheNoPanic(t *testing.T) {
	p := NewPersister(&fakeMemory{}, DefaultConfig(), PersisterOptions{})
	assert.NotPanics(t, func() {
		p.AfterTurn(context.Background(), Turn{UserID: "u1", SessionID: "s1", Procedures: []model.ProcedureDraft{{Name: "x"}}})
	})
}

func TestAfterTurn_Span(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	mem := &fakeMemory{saveLongErr: errors.New("db down")}
	p := NewPersister(mem, DefaultConfig(), PersisterOptions{Tracer: tp.Tracer("test")})

	require.Error(t, p.AfterTurn(context.Background(), Turn{UserID: "u1", SessionID: "s1", Message: "m"}))
	spans := sr.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "agent_context.pipeline.after_turn", spans[0].Name())
	assert.Equal(t, "db down", spans[0].Status().Description)
	assert.NotEmpty(t, spans[0].Events(), "error recorded")
}

func TestProcedureBuffer(t *testing.T) {
	var b ProcedureBuffer
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			b.Add(model.ProcedureDraft{Name: fmt.Sprintf("p%d", i)})
		}(i)
	}
	wg.Wait()
	assert.Len(t, b.Drain(), 50)
	assert.Empty(t, b.Drain())
}

func TestConfigValidate(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	bad := DefaultConfig()
	bad.Offload.KeepRecent = 0
	assert.Error(t, bad.Validate())

	bad = DefaultConfig()
	bad.Compaction.MaxTotalChars = 0
	assert.Error(t, bad.Validate())

	bad.Compaction.Enabled = false
	assert.NoError(t, bad.Validate(), "disabled stage is not validated")
}
