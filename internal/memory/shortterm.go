package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rcliao/agent-context/internal/model"
)

// ShortTermStore keeps one session record per key in Redis with an expiry.
// The client is created on first use and reused.
type ShortTermStore struct {
	cfg    ShortTermConfig
	logger *slog.Logger
	now    func() time.Time

	mu     sync.Mutex
	client *redis.Client
}

// NewShortTermStore creates a store. No connection is made until first use.
func NewShortTermStore(cfg ShortTermConfig, logger *slog.Logger) *ShortTermStore {
	cfg.ApplyDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &ShortTermStore{cfg: cfg, logger: logger, now: time.Now}
}

func (s *ShortTermStore) conn() (*redis.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client != nil {
		return s.client, nil
	}
	opts, err := redis.ParseURL(s.cfg.URL)
	if err != nil {
		return nil, unavailable("parse redis url", err)
	}
	opts.DialTimeout = 3 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second
	s.client = redis.NewClient(opts)
	return s.client, nil
}

func (s *ShortTermStore) key(sessionID string) string {
	return s.cfg.KeyPrefix + ":" + sessionID
}

// Connect verifies that Redis answers PING.
func (s *ShortTermStore) Connect(ctx context.Context) error {
	c, err := s.conn()
	if err != nil {
		return err
	}
	if err := c.Ping(ctx).Err(); err != nil {
		return unavailable("ping", err)
	}
	return nil
}

// Save replaces the session record. Only the newest MaxMessages messages are
// kept and UpdatedAt is stamped.
func (s *ShortTermStore) Save(ctx context.Context, sessionID string, sess model.Session) error {
	c, err := s.conn()
	if err != nil {
		return err
	}

	msgs := sess.Messages
	if len(msgs) > s.cfg.MaxMessages {
		msgs = msgs[len(msgs)-s.cfg.MaxMessages:]
	}
	sess.Messages = append([]model.Message(nil), msgs...)
	if sess.Messages == nil {
		sess.Messages = []model.Message{}
	}
	sess.SessionID = sessionID
	sess.UpdatedAt = s.now().UTC()
	if sess.SessionContext == nil {
		sess.SessionContext = map[string]any{}
	}
	if sess.ConversationState == nil {
		sess.ConversationState = map[string]any{}
	}

	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := c.Set(ctx, s.key(sessionID), data, s.cfg.TTL()).Err(); err != nil {
		if isConnErr(err) {
			return unavailable("set session", err)
		}
		return fmt.Errorf("set session: %w", err)
	}
	s.logger.Debug("short_term_saved", "session_id", sessionID, "messages", len(sess.Messages))
	return nil
}

// Get returns the session record. A missing or expired record is reported as
// found == false with a nil error.
func (s *ShortTermStore) Get(ctx context.Context, sessionID string) (model.Session, bool, error) {
	c, err := s.conn()
	if err != nil {
		return model.Session{}, false, err
	}
	data, err := c.Get(ctx, s.key(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return model.Session{}, false, nil
	}
	if err != nil {
		if isConnErr(err) {
			return model.Session{}, false, unavailable("get session", err)
		}
		return model.Session{}, false, fmt.Errorf("get session: %w", err)
	}
	var sess model.Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return model.Session{}, false, fmt.Errorf("decode session: %w", err)
	}
	return sess, true, nil
}

// Clear deletes the session record.
func (s *ShortTermStore) Clear(ctx context.Context, sessionID string) error {
	c, err := s.conn()
	if err != nil {
		return err
	}
	if err := c.Del(ctx, s.key(sessionID)).Err(); err != nil {
		if isConnErr(err) {
			return unavailable("delete session", err)
		}
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// Close releases the client, if one was created.
func (s *ShortTermStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client == nil {
		return nil
	}
	err := s.client.Close()
	s.client = nil
	return err
}
