// Package pipeline assembles per-turn context from memory and persists the
// outcome of a turn.
package pipeline

import (
	"context"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/rcliao/agent-context/internal/contextcache"
	"github.com/rcliao/agent-context/internal/model"
)

const instrumentationName = "github.com/rcliao/agent-context/internal/pipeline"

// Cache key prefixes.
const (
	longTermPrefix  = "lt"
	procedurePrefix = "proc"
)

// Reader is the memory surface Build reads from.
type Reader interface {
	GetShortTerm(ctx context.Context, sessionID string) (model.Session, bool, error)
	RelevantHistory(ctx context.Context, userID, query string, limit int) ([]model.HistoryItem, error)
	ListProcedures(ctx context.Context, userID string, limit int, includeDocs bool) ([]model.Procedure, error)
}

// Options are optional collaborators.
type Options struct {
	Cache  *contextcache.Cache
	Tracer trace.Tracer
	Logger *slog.Logger
}

func (o Options) withDefaults() Options {
	if o.Tracer == nil {
		o.Tracer = otel.Tracer(instrumentationName)
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

// Pipeline builds the context-augmented message for a turn. It holds no
// per-call state.
type Pipeline struct {
	mem    Reader
	cfg    Config
	cache  *contextcache.Cache
	tracer trace.Tracer
	logger *slog.Logger
}

func New(mem Reader, cfg Config, opts Options) *Pipeline {
	opts = opts.withDefaults()
	return &Pipeline{mem: mem, cfg: cfg, cache: opts.Cache, tracer: opts.Tracer, logger: opts.Logger}
}

// BuildResult is the assembled message plus the data it was built from, for
// use by AfterTurn.
type BuildResult struct {
	UserMessage string              `json:"user_message"`
	ShortTerm   *model.Session      `json:"short_term"`
	LongTerm    []model.HistoryItem `json:"long_term"`
	Procedures  []model.Procedure   `json:"procedures"`
}

// Build reads short-term messages, relevant history and procedures
// concurrently, filters them, and assembles them ahead of message. With no
// context at all, message is returned unchanged.
func (p *Pipeline) Build(ctx context.Context, userID, sessionID, message string) (*BuildResult, error) {
	ctx, span := p.tracer.Start(ctx, "agent_context.pipeline.build", trace.WithAttributes(
		attribute.String("agent_context.user_id", userID),
		attribute.String("agent_context.session_id", sessionID),
	))
	defer span.End()

	var (
		sess       model.Session
		found      bool
		longTerm   []model.HistoryItem
		ltCached   bool
		procs      []model.Procedure
		procCached bool
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		sess, found, err = p.mem.GetShortTerm(gctx, sessionID)
		return err
	})
	g.Go(func() error {
		var err error
		longTerm, ltCached, err = p.relevantHistory(gctx, userID, message)
		return err
	})
	g.Go(func() error {
		procs, procCached = p.procedures(gctx, userID)
		return nil
	})
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	res := &BuildResult{LongTerm: longTerm, Procedures: procs}
	var recent []model.Message
	if found {
		res.ShortTerm = &sess
		recent = sess.Messages
	}

	if p.cfg.Filter.Enabled {
		res.LongTerm, res.Procedures, recent = applyFilter(res.LongTerm, res.Procedures, recent, p.cfg.Filter)
	}

	parts := contextParts(recent, res.LongTerm, res.Procedures, p.cfg.Filter.LongTermMax)
	switch {
	case len(parts) == 0:
		res.UserMessage = message
	case p.cfg.Compaction.Enabled:
		res.UserMessage = Compact(parts, p.cfg.Compaction.MaxCharsPerPart, p.cfg.Compaction.MaxTotalChars) +
			partSeparator + currentMarker + message
	default:
		res.UserMessage = strings.Join(parts, partSeparator) + partSeparator + currentMarker + message
	}

	span.SetAttributes(
		attribute.Int("agent_context.short_term.count", len(recent)),
		attribute.Int("agent_context.long_term.count", len(res.LongTerm)),
		attribute.Int("agent_context.procedures.count", len(res.Procedures)),
		attribute.Bool("agent_context.long_term.cache_hit", ltCached),
		attribute.Bool("agent_context.procedures.cache_hit", procCached),
		attribute.Int("agent_context.message.chars", len(res.UserMessage)),
	)
	span.SetStatus(codes.Ok, "")
	return res, nil
}

// relevantHistory reads through the cache keyed by the message fingerprint.
// Empty results are not cached.
func (p *Pipeline) relevantHistory(ctx context.Context, userID, message string) ([]model.HistoryItem, bool, error) {
	useCache := p.cache != nil && p.cfg.Cache.Enabled
	var fp string
	if useCache {
		fp = contextcache.Fingerprint(message)
		var cached []model.HistoryItem
		if p.cache.GetJSON(ctx, &cached, longTermPrefix, userID, fp) && len(cached) > 0 {
			return cached, true, nil
		}
	}

	items, err := p.mem.RelevantHistory(ctx, userID, message, p.cfg.Filter.LongTermMax)
	if err != nil {
		return nil, false, err
	}
	if useCache && len(items) > 0 {
		p.cache.Set(ctx, longTermPrefix, []string{userID, fp}, items)
	}
	return items, false, nil
}

// procedures reads through the cache whenever one is configured. Failures
// degrade to no procedures.
func (p *Pipeline) procedures(ctx context.Context, userID string) ([]model.Procedure, bool) {
	if p.cache != nil {
		var cached []model.Procedure
		if p.cache.GetJSON(ctx, &cached, procedurePrefix, userID) && len(cached) > 0 {
			return cached, true
		}
	}

	procs, err := p.mem.ListProcedures(ctx, userID, p.cfg.Filter.ProcedureMax, true)
	if err != nil {
		p.logger.Warn("procedures_load_failed", "user_id", userID, "error", err)
		return nil, false
	}
	if p.cache != nil && len(procs) > 0 {
		p.cache.Set(ctx, procedurePrefix, []string{userID}, procs)
	}
	return procs, false
}
