package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/rcliao/agent-context/internal/contextcache"
	"github.com/rcliao/agent-context/internal/memory"
	"github.com/rcliao/agent-context/internal/model"
)

// shortTermWindow bounds the saved session when nothing is offloaded.
const shortTermWindow = 20

// Writer is the memory surface AfterTurn writes to. OffloadEnabled reports
// whether evicted messages have an archive to go to.
type Writer interface {
	OffloadEnabled() bool
	OffloadContext(ctx context.Context, userID, sessionID string, msgs []model.Message) error
	SaveShortTerm(ctx context.Context, sessionID string, sess model.Session) error
	SaveLongTerm(ctx context.Context, in memory.TurnInput) error
	AddEpisode(ctx context.Context, ep model.Episode) (string, error)
	AddFact(ctx context.Context, userID, text string, metadata map[string]any) error
	AddProcedure(ctx context.Context, d model.ProcedureDraft) (string, error)
}

// Turn is the outcome of one agent turn.
type Turn struct {
	UserID     string
	SessionID  string
	Message    string
	Before     *model.Session
	Response   json.RawMessage
	Intent     string
	Procedures []model.ProcedureDraft
}

// PersisterOptions are optional collaborators. OnProcedureSaved runs after
// each procedure is stored; by default it drops the user's procedure cache
// entry.
type PersisterOptions struct {
	Cache            *contextcache.Cache
	OnProcedureSaved func(ctx context.Context, userID string)
	Tracer           trace.Tracer
	Logger           *slog.Logger
}

// Persister writes a finished turn to every tier.
type Persister struct {
	mem              Writer
	cfg              Config
	onProcedureSaved func(ctx context.Context, userID string)
	tracer           trace.Tracer
	logger           *slog.Logger
}

func NewPersister(mem Writer, cfg Config, opts PersisterOptions) *Persister {
	o := Options{Tracer: opts.Tracer, Logger: opts.Logger}.withDefaults()
	onSaved := opts.OnProcedureSaved
	if onSaved == nil {
		cache := opts.Cache
		onSaved = func(ctx context.Context, userID string) {
			InvalidateProcedures(ctx, cache, userID)
		}
	}
	return &Persister{mem: mem, cfg: cfg, onProcedureSaved: onSaved, tracer: o.Tracer, logger: o.Logger}
}

// AfterTurn saves short-term and long-term memory, failing on either, then
// records the episode, the derived fact and pending procedures. Those three
// run concurrently; their failures are logged and not returned.
func (p *Persister) AfterTurn(ctx context.Context, t Turn) error {
	ctx, span := p.tracer.Start(ctx, "agent_context.pipeline.after_turn", trace.WithAttributes(
		attribute.String("agent_context.user_id", t.UserID),
		attribute.String("agent_context.session_id", t.SessionID),
		attribute.String("agent_context.intent", t.Intent),
	))
	defer span.End()

	response := t.Response
	if len(response) == 0 {
		response = json.RawMessage("{}")
	}
	userMsg := model.TextMessage(model.RoleUser, t.Message)

	var before []model.Message
	var sessionContext map[string]any
	if t.Before != nil {
		before = t.Before.Messages
		sessionContext = t.Before.SessionContext
	}
	all := make([]model.Message, 0, len(before)+2)
	all = append(all, before...)
	all = append(all, userMsg, model.Message{Role: model.RoleAssistant, Content: response, Intent: t.Intent})

	toSave := lastMessages(all, shortTermWindow)
	offloaded := 0
	// Trim to KeepRecent only when evicted messages can be archived.
	if p.cfg.Offload.Enabled && p.mem.OffloadEnabled() && len(all) > p.cfg.Offload.MessageThreshold {
		keep := p.cfg.Offload.KeepRecent
		if keep > len(all) {
			keep = len(all)
		}
		evicted := all[:len(all)-keep]
		if len(evicted) > 0 {
			if err := p.mem.OffloadContext(ctx, t.UserID, t.SessionID, evicted); err != nil {
				p.logger.Warn("offload_failed", "user_id", t.UserID, "session_id", t.SessionID, "error", err)
			} else {
				offloaded = len(evicted)
			}
		}
		toSave = all[len(all)-keep:]
	}

	err := p.mem.SaveShortTerm(ctx, t.SessionID, model.Session{
		SessionContext:    sessionContext,
		Messages:          toSave,
		ConversationState: map[string]any{"last_intent": t.Intent},
	})
	if err != nil {
		return p.fail(span, err)
	}

	err = p.mem.SaveLongTerm(ctx, memory.TurnInput{
		UserID:    t.UserID,
		SessionID: t.SessionID,
		Messages: []model.Message{
			userMsg,
			{Role: model.RoleAssistant, Content: response},
		},
		ExtractedEntities: map[string]any{},
		UserPreferences:   map[string]any{},
		IntentHistory:     []model.IntentPair{{Message: t.Message, Intent: t.Intent}},
	})
	if err != nil {
		return p.fail(span, err)
	}

	var g errgroup.Group
	g.Go(func() error {
		p.addEpisode(ctx, t, response)
		return nil
	})
	g.Go(func() error {
		p.addFact(ctx, t)
		return nil
	})
	g.Go(func() error {
		p.saveProcedures(ctx, t)
		return nil
	})
	g.Wait()

	span.SetAttributes(
		attribute.Int("agent_context.offloaded", offloaded),
		attribute.Int("agent_context.short_term.saved", len(toSave)),
		attribute.Int("agent_context.procedures.pending", len(t.Procedures)),
	)
	span.SetStatus(codes.Ok, "")
	return nil
}

func (p *Persister) fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

func (p *Persister) addEpisode(ctx context.Context, t Turn, response json.RawMessage) {
	content, _ := json.Marshal(map[string]string{
		"user_message":     truncate(t.Message, 300),
		"intent":           t.Intent,
		"response_preview": truncate(model.ContentText(response), 200),
	})
	_, err := p.mem.AddEpisode(ctx, model.Episode{
		UserID:    t.UserID,
		SessionID: t.SessionID,
		EventType: "turn",
		Content:   content,
	})
	if err != nil {
		p.logger.Warn("episode_write_failed", "user_id", t.UserID, "session_id", t.SessionID, "error", err)
	}
}

func (p *Persister) addFact(ctx context.Context, t Turn) {
	fact := fmt.Sprintf("User asked: %s; intent was %s.", truncate(t.Message, 100), t.Intent)
	if err := p.mem.AddFact(ctx, t.UserID, fact, nil); err != nil {
		p.logger.Warn("fact_write_failed", "user_id", t.UserID, "error", err)
	}
}

func (p *Persister) saveProcedures(ctx context.Context, t Turn) {
	for _, d := range t.Procedures {
		d.UserID = t.UserID
		if d.Name == "" {
			d.Name = "unnamed"
		}
		if _, err := p.mem.AddProcedure(ctx, d); err != nil {
			p.logger.Warn("procedure_write_failed", "user_id", t.UserID, "name", d.Name, "error", err)
			continue
		}
		p.onProcedureSaved(ctx, t.UserID)
	}
}

// InvalidateProcedures drops the cached procedure list for a user so the next
// Build reads the store.
func InvalidateProcedures(ctx context.Context, cache *contextcache.Cache, userID string) {
	cache.Delete(ctx, procedurePrefix, userID)
}

func lastMessages(msgs []model.Message, n int) []model.Message {
	if len(msgs) > n {
		return msgs[len(msgs)-n:]
	}
	return msgs
}

func truncate(s string, n int) string {
	return headRunes(s, n)
}
