package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"

	"github.com/planvet/planvet/internal/config"
	"github.com/planvet/planvet/internal/fsio"
)

// ErrLockTimeout indicates another invocation held the feature's session
// lock for longer than the configured acquisition budget.
var ErrLockTimeout = errors.New("session lock acquisition timed out")

// ErrNotFound indicates no session exists for the feature.
var ErrNotFound = errors.New("no session found")

// lockRetryDelay is how often lock acquisition re-polls.
const lockRetryDelay = 50 * time.Millisecond

// Store persists sessions, one JSON file per feature. Mutations take an
// exclusive advisory lock so concurrent invocations for the same feature
// serialize; different features never contend.
type Store struct {
	dir           string
	lockTimeout   time.Duration
	maxIterations int

	// debugLog is an optional logging function.
	debugLog func(format string, args ...interface{})
}

// NewStore creates a store over the configured sessions directory.
func NewStore(cfg *config.Config) *Store {
	return &Store{
		dir:           cfg.SessionsDir(),
		lockTimeout:   cfg.Timeouts.Lock,
		maxIterations: cfg.Defaults.MaxIterations,
		debugLog:      func(format string, args ...interface{}) {}, // no-op by default
	}
}

// SetDebugLog sets the debug logging function.
func (st *Store) SetDebugLog(fn func(format string, args ...interface{})) {
	if fn != nil {
		st.debugLog = fn
	}
}

// Path returns the session file location for a feature.
func (st *Store) Path(featureID string) string {
	return filepath.Join(st.dir, sanitizeFeatureID(featureID)+".json")
}

// sanitizeFeatureID maps a feature ID onto a safe file name.
func sanitizeFeatureID(featureID string) string {
	var b strings.Builder
	for _, r := range featureID {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			b.WriteRune(r)
		default:
			b.WriteRune('-')
		}
	}
	if b.Len() == 0 {
		return "unnamed"
	}
	return b.String()
}

// Load reads a feature's session without locking. Reads are advisory;
// only the read-modify-write path needs exclusion.
func (st *Store) Load(featureID string) (*Session, error) {
	data, err := os.ReadFile(st.Path(featureID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w for feature %q", ErrNotFound, featureID)
		}
		return nil, fmt.Errorf("read session: %w", err)
	}

	sess := &Session{}
	if err := json.Unmarshal(data, sess); err != nil {
		return nil, fmt.Errorf("parse session file %s: %w", st.Path(featureID), err)
	}
	return sess, nil
}

// Mutate runs fn over the feature's session under the exclusive lock and
// persists the result atomically before returning. A missing session is
// created fresh; a terminal one starts a new campaign. A cancelled
// context writes nothing, so the iteration counter never moves on
// cancellation.
func (st *Store) Mutate(ctx context.Context, featureID string, fn func(*Session) error) (*Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(st.dir, 0755); err != nil {
		return nil, fmt.Errorf("create sessions directory: %w", err)
	}

	lock := flock.New(st.Path(featureID) + ".lock")
	lockCtx, cancel := context.WithTimeout(ctx, st.lockTimeout)
	defer cancel()

	st.debugLog("[session.Mutate] acquiring lock for feature %s", featureID)
	locked, err := lock.TryLockContext(lockCtx, lockRetryDelay)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, fmt.Errorf("%w for feature %q after %s", ErrLockTimeout, featureID, st.lockTimeout)
		}
		return nil, fmt.Errorf("acquire session lock for %q: %w", featureID, err)
	}
	if !locked {
		return nil, fmt.Errorf("%w for feature %q after %s", ErrLockTimeout, featureID, st.lockTimeout)
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			st.debugLog("[session.Mutate] release lock for %s: %v", featureID, err)
		}
	}()

	sess, err := st.loadOrCreate(featureID)
	if err != nil {
		return nil, err
	}

	// The lock wait may have consumed the caller's budget; never apply a
	// mutation a cancelled caller no longer wants.
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := fn(sess); err != nil {
		return nil, err
	}

	data, err := json.MarshalIndent(sess, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode session: %w", err)
	}
	if err := fsio.WriteFileAtomic(st.Path(featureID), data, 0644); err != nil {
		return nil, fmt.Errorf("persist session: %w", err)
	}
	st.debugLog("[session.Mutate] persisted %s: iteration %d status %s", featureID, sess.CurrentIteration, sess.Status)
	return sess, nil
}

// loadOrCreate returns the feature's in-progress session, or a fresh one
// when none exists or the previous campaign already terminated.
func (st *Store) loadOrCreate(featureID string) (*Session, error) {
	sess, err := st.Load(featureID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return NewSession(featureID, st.maxIterations), nil
		}
		return nil, err
	}
	if sess.Status.Terminal() {
		st.debugLog("[session.Mutate] previous campaign %s for %s, starting fresh", sess.Status, featureID)
		return NewSession(featureID, st.maxIterations), nil
	}
	return sess, nil
}
