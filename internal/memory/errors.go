package memory

import (
	"errors"
	"fmt"
	"io"
	"net"

	"github.com/redis/go-redis/v9"
)

// Sentinel causes. Stores wrap these so the facade can classify failures.
var (
	// ErrUnavailable means a backing system could not be reached.
	ErrUnavailable = errors.New("backend unavailable")
	// ErrMisconfigured means a tier cannot work at all with the current setup.
	ErrMisconfigured = errors.New("backend misconfigured")
	// ErrInvalidArgument means the caller supplied unusable input.
	ErrInvalidArgument = errors.New("invalid argument")
)

// Kind is the error category exposed to callers.
type Kind string

const (
	KindConnection Kind = "connection"
	KindRead       Kind = "read"
	KindWrite      Kind = "write"
)

// Tier names a memory tier.
type Tier string

const (
	TierShortTerm  Tier = "short_term"
	TierLongTerm   Tier = "long_term"
	TierEpisodic   Tier = "episodic"
	TierSemantic   Tier = "semantic"
	TierProcedural Tier = "procedural"
	TierOffload    Tier = "offload"
)

// Error is the facade error type. Match categories with errors.Is against
// ErrConnection, ErrRead or ErrWrite.
type Error struct {
	Kind Kind
	Tier Tier
	Op   string
	Err  error
}

// Category sentinels.
var (
	ErrConnection = &Error{Kind: KindConnection}
	ErrRead       = &Error{Kind: KindRead}
	ErrWrite      = &Error{Kind: KindWrite}
)

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("memory %s error", e.Kind)
	}
	return fmt.Sprintf("memory %s error [%s %s]: %v", e.Kind, e.Tier, e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error by kind, and by tier when the target sets one.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind && (t.Tier == "" || t.Tier == e.Tier)
}

// Durable reports whether the failing tier is a hard dependency of a turn.
func (e *Error) Durable() bool {
	return e.Tier == TierShortTerm || e.Tier == TierLongTerm
}

// wrap converts a store error into an *Error. Unreachable backends are always
// classified as connection errors.
func wrap(tier Tier, op string, kind Kind, err error) error {
	if err == nil {
		return nil
	}
	var me *Error
	if errors.As(err, &me) {
		return err
	}
	if errors.Is(err, ErrUnavailable) {
		kind = KindConnection
	}
	return &Error{Kind: kind, Tier: tier, Op: op, Err: err}
}

// isConnErr reports whether a redis error means the server was not reached.
func isConnErr(err error) bool {
	if err == nil || errors.Is(err, redis.Nil) {
		return false
	}
	var ne net.Error
	return errors.As(err, &ne) || errors.Is(err, io.EOF) || errors.Is(err, redis.ErrClosed)
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrUnavailable, op, err)
}
