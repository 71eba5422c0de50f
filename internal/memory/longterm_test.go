package memory

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rcliao/agent-context/internal/model"
)

func TestLongTermStore_EmptySaveWritesNothing(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	idx := newCountingIndex(db)
	s := NewLongTermStore(db, idx, LongTermConfig{}, nil)

	require.NoError(t, s.Save(ctx, TurnInput{UserID: "u1", SessionID: "s1"}))
	require.NoError(t, s.Save(ctx, TurnInput{UserID: "u1", SessionID: "s1", Messages: []model.Message{}}))

	n, err := db.CountTurns(ctx, "u1")
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Zero(t, idx.adds)
}

func TestLongTermStore_SaveAndRelevant(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	s := NewLongTermStore(db, newCountingIndex(db), LongTermConfig{}, nil)

	require.NoError(t, s.Save(ctx, TurnInput{
		UserID:        "u1",
		SessionID:     "s1",
		Messages:      turnMessages("what is the weather in Paris", "sunny"),
		IntentHistory: []model.IntentPair{{Message: "what is the weather in Paris", Intent: "weather"}},
	}))
	require.NoError(t, s.Save(ctx, TurnInput{
		UserID:        "u1",
		SessionID:     "s1",
		Messages:      turnMessages("convert 10 USD to EUR", "9.2 EUR"),
		IntentHistory: []model.IntentPair{{Message: "convert 10 USD to EUR", Intent: "finance"}},
	}))

	items, err := s.Relevant(ctx, "u1", "weather Paris", 5)
	require.NoError(t, err)
	require.Len(t, items, 1)
	item := items[0]
	require.NotNil(t, item.Score)
	assert.Equal(t, "weather", item.IntentHistory[0].Intent)
	assert.Len(t, item.Messages, 2)
	assert.Equal(t, "s1", item.Metadata["session_id"])
	assert.Contains(t, item.MemoryText, "user: what is the weather in Paris")

	recent, err := s.All(ctx, "u1", 5)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "finance", recent[0].IntentHistory[0].Intent, "newest first")
	assert.Nil(t, recent[0].Score)

	none, err := s.Relevant(ctx, "", "weather", 5)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestLongTermStore_StructuredContentIsIndexedAsText(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	s := NewLongTermStore(db, newCountingIndex(db), LongTermConfig{}, nil)

	msgs := []model.Message{
		model.TextMessage(model.RoleUser, "forecast please"),
		{Role: model.RoleAssistant, Content: []byte(`{"city":"Lisbon","temp":21}`), Intent: "weather"},
	}
	require.NoError(t, s.Save(ctx, TurnInput{UserID: "u1", SessionID: "s1", Messages: msgs}))

	items, err := s.Relevant(ctx, "u1", "Lisbon", 5)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Contains(t, items[0].MemoryText, `assistant: {"city":"Lisbon","temp":21}`)
}

func TestLongTermStore_IndexFailureIsSwallowed(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	idx := newCountingIndex(db)
	idx.err = errBoom
	s := NewLongTermStore(db, idx, LongTermConfig{}, nil)

	require.NoError(t, s.Save(ctx, TurnInput{UserID: "u1", SessionID: "s1", Messages: turnMessages("hi", "hello")}))
	assert.Equal(t, 1, idx.adds)

	n, _ := db.CountTurns(ctx, "u1")
	assert.Equal(t, 1, n, "durable record persisted")

	items, err := s.Relevant(ctx, "u1", "hi", 5)
	require.NoError(t, err, "search failure degrades to empty")
	assert.Empty(t, items)
}

func TestLongTermStore_DurableFailureSkipsIndex(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	idx := newCountingIndex(db)
	s := NewLongTermStore(db, idx, LongTermConfig{}, nil)
	db.Close()

	err := s.Save(ctx, TurnInput{UserID: "u1", SessionID: "s1", Messages: turnMessages("hi", "hello")})
	require.Error(t, err)
	assert.Zero(t, idx.adds, "index never written without a durable record")

	items, err := s.Relevant(ctx, "u1", "", 5)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestLongTermStore_Misconfigured(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	s := NewLongTermStore(db, nil, LongTermConfig{}, nil)

	require.NoError(t, s.Save(ctx, TurnInput{UserID: "u1", SessionID: "s1", Messages: turnMessages("hi", "hello")}))

	_, err := s.Relevant(ctx, "u1", "hi", 5)
	assert.True(t, errors.Is(err, ErrMisconfigured))
	assert.True(t, errors.Is(s.Diagnose(ctx), ErrMisconfigured))

	items, err := s.Relevant(ctx, "u1", "", 5)
	require.NoError(t, err)
	assert.Len(t, items, 1, "recent history does not need the index")
}

func TestLongTermStore_Diagnose(t *testing.T) {
	db := newTestDB(t)
	s := NewLongTermStore(db, newCountingIndex(db), LongTermConfig{}, nil)
	assert.NoError(t, s.Diagnose(context.Background()))
}

// staticIndex returns canned hits.
type staticIndex struct {
	hits []model.SearchHit
}

func (x staticIndex) Add(context.Context, string, string, model.SearchDoc) error { return nil }

func (x staticIndex) Search(context.Context, string, string, string, int) ([]model.SearchHit, error) {
	return x.hits, nil
}

func TestLongTermStore_CorruptMetadataIsLogged(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	idx := staticIndex{hits: []model.SearchHit{{
		SearchDoc: model.SearchDoc{
			ID:   "t1",
			Text: "user: hi",
			Metadata: map[string]string{
				"intent_history":     "not json",
				"user_preferences":   `{"tone":"brief"}`,
				"extracted_entities": "{",
			},
		},
		Score: 0.5,
	}}}
	s := NewLongTermStore(newTestDB(t), idx, LongTermConfig{}, logger)

	items, err := s.Relevant(context.Background(), "u1", "hi", 5)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Empty(t, items[0].IntentHistory)
	assert.Equal(t, map[string]any{"tone": "brief"}, items[0].Metadata["user_preferences"])
	assert.NotContains(t, items[0].Metadata, "extracted_entities")

	out := logs.String()
	assert.Contains(t, out, "history_metadata_decode_failed")
	assert.Contains(t, out, "key=intent_history")
	assert.Contains(t, out, "key=extracted_entities")
	assert.NotContains(t, out, "key=messages", "missing keys are not failures")
}

func TestSemanticStore_CorruptMetadataIsLogged(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	idx := staticIndex{hits: []model.SearchHit{{
		SearchDoc: model.SearchDoc{ID: "f1", Text: "likes tea", Metadata: map[string]string{"metadata": "[oops"}},
		Score:     0.9,
	}}}
	s := NewSemanticStore(newTestDB(t), idx, SemanticConfig{}, logger)

	facts, err := s.Search(context.Background(), "u1", "tea", 5)
	require.NoError(t, err)
	require.Len(t, facts, 1)
	assert.Equal(t, "likes tea", facts[0].Text)
	assert.Contains(t, logs.String(), "fact_metadata_decode_failed")
}
