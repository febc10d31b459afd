package repository

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/compozy/release-dispatch/internal/domain"
	"github.com/compozy/release-dispatch/internal/logger"
	"github.com/gofrs/flock"
	"github.com/spf13/afero"
	"go.uber.org/zap"
)

const (
	// StateSchemaVersion is written into every session file
	StateSchemaVersion = "2"
	// StateFilePermissions defines the permissions for session files
	StateFilePermissions = 0600
	// StateDirPermissions defines the permissions for the state directory
	StateDirPermissions = 0700
	// LockTimeout bounds how long a session lock is waited for
	LockTimeout = 30 * time.Second
	// LockRetryInterval is the polling interval while waiting for a lock
	LockRetryInterval = 100 * time.Millisecond

	sessionsDir = "sessions"
	locksDir    = "locks"
	latestFile  = "LATEST"
)

// ErrSessionNotFound is returned when no state exists for a dispatch session
var ErrSessionNotFound = errors.New("release session not found")

// StateRepository stores the progress of dispatch sessions for later rollback
type StateRepository interface {
	Save(ctx context.Context, state *domain.RollbackState) error
	Load(ctx context.Context, sessionID string) (*domain.RollbackState, error)
	LoadLatest(ctx context.Context) (*domain.RollbackState, error)
	Delete(ctx context.Context, sessionID string) error
	Exists(ctx context.Context, sessionID string) (bool, error)
}

type sessionEnvelope struct {
	Schema   string                `json:"schema"`
	Checksum string                `json:"checksum"`
	SavedAt  time.Time             `json:"saved_at"`
	Session  *domain.RollbackState `json:"session"`
}

// JSONStateRepository keeps one JSON file per session under stateDir/sessions.
// Session files go through afero; locks are real files under stateDir/locks.
type JSONStateRepository struct {
	fs       afero.Fs
	stateDir string
}

// NewJSONStateRepository creates a session store rooted at stateDir
func NewJSONStateRepository(fs afero.Fs, stateDir string) StateRepository {
	if stateDir == "" {
		stateDir = ".release-state"
	}
	return &JSONStateRepository{fs: fs, stateDir: stateDir}
}

// Save writes the session atomically and points LATEST at it
func (r *JSONStateRepository) Save(ctx context.Context, state *domain.RollbackState) error {
	if err := validSessionID(state.SessionID); err != nil {
		return err
	}
	if err := r.fs.MkdirAll(r.sessionsPath(), StateDirPermissions); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}
	return r.withLock(ctx, state.SessionID, false, func() error {
		sum, err := checksum(state)
		if err != nil {
			return err
		}
		data, err := json.MarshalIndent(sessionEnvelope{
			Schema:   StateSchemaVersion,
			Checksum: sum,
			SavedAt:  time.Now().UTC(),
			Session:  state,
		}, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode session %s: %w", state.SessionID, err)
		}
		if err := r.writeAtomic(r.sessionPath(state.SessionID), data); err != nil {
			return err
		}
		return r.writeAtomic(r.latestPath(), []byte(state.SessionID))
	})
}

// Load reads a session and verifies its checksum
func (r *JSONStateRepository) Load(ctx context.Context, sessionID string) (*domain.RollbackState, error) {
	if err := validSessionID(sessionID); err != nil {
		return nil, err
	}
	var state *domain.RollbackState
	err := r.withLock(ctx, sessionID, true, func() error {
		data, err := afero.ReadFile(r.fs, r.sessionPath(sessionID))
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
		}
		if err != nil {
			return fmt.Errorf("failed to read session %s: %w", sessionID, err)
		}
		var env sessionEnvelope
		if err := json.Unmarshal(data, &env); err != nil {
			return fmt.Errorf("failed to decode session %s: %w", sessionID, err)
		}
		if env.Schema != StateSchemaVersion {
			return fmt.Errorf("session %s has schema %q, expected %q", sessionID, env.Schema, StateSchemaVersion)
		}
		if env.Session == nil {
			return fmt.Errorf("session %s is empty", sessionID)
		}
		sum, err := checksum(env.Session)
		if err != nil {
			return err
		}
		if sum != env.Checksum {
			return fmt.Errorf("session %s checksum mismatch: file was modified", sessionID)
		}
		state = env.Session
		return nil
	})
	return state, err
}

// LoadLatest loads the session LATEST points at
func (r *JSONStateRepository) LoadLatest(ctx context.Context) (*domain.RollbackState, error) {
	id, err := r.latestSessionID()
	if err != nil {
		return nil, err
	}
	return r.Load(ctx, id)
}

// Delete removes a session. LATEST is cleared when it pointed at that session.
func (r *JSONStateRepository) Delete(ctx context.Context, sessionID string) error {
	if err := validSessionID(sessionID); err != nil {
		return err
	}
	err := r.withLock(ctx, sessionID, false, func() error {
		if err := r.fs.Remove(r.sessionPath(sessionID)); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to delete session %s: %w", sessionID, err)
		}
		if latest, err := r.latestSessionID(); err == nil && latest == sessionID {
			if err := r.fs.Remove(r.latestPath()); err != nil && !os.IsNotExist(err) {
				return fmt.Errorf("failed to clear latest session: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	if err := os.Remove(r.lockPath(sessionID)); err != nil && !os.IsNotExist(err) {
		logger.FromContext(ctx).Warn("failed to remove session lock", zap.String("session_id", sessionID), zap.Error(err))
	}
	return nil
}

// Exists reports whether a session file is present
func (r *JSONStateRepository) Exists(_ context.Context, sessionID string) (bool, error) {
	if err := validSessionID(sessionID); err != nil {
		return false, err
	}
	ok, err := afero.Exists(r.fs, r.sessionPath(sessionID))
	if err != nil {
		return false, fmt.Errorf("failed to stat session %s: %w", sessionID, err)
	}
	return ok, nil
}

// withLock runs fn while holding the session's flock. flock needs a real path,
// so the lock directory is created on the OS filesystem.
func (r *JSONStateRepository) withLock(ctx context.Context, sessionID string, shared bool, fn func() error) error {
	path := r.lockPath(sessionID)
	if err := os.MkdirAll(filepath.Dir(path), StateDirPermissions); err != nil {
		return fmt.Errorf("failed to create lock directory: %w", err)
	}
	lock := flock.New(path)
	lockCtx, cancel := context.WithTimeout(ctx, LockTimeout)
	defer cancel()
	var (
		locked bool
		err    error
	)
	if shared {
		locked, err = lock.TryRLockContext(lockCtx, LockRetryInterval)
	} else {
		locked, err = lock.TryLockContext(lockCtx, LockRetryInterval)
	}
	if err != nil {
		return fmt.Errorf("failed to lock session %s: %w", sessionID, err)
	}
	if !locked {
		return fmt.Errorf("session %s is locked by another process", sessionID)
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			logger.FromContext(ctx).Warn("failed to unlock session", zap.String("session_id", sessionID), zap.Error(err))
		}
	}()
	return fn()
}

func (r *JSONStateRepository) writeAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := afero.WriteFile(r.fs, tmp, data, StateFilePermissions); err != nil {
		return fmt.Errorf("failed to write %s: %w", tmp, err)
	}
	if err := r.fs.Rename(tmp, path); err != nil {
		_ = r.fs.Remove(tmp)
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}

func (r *JSONStateRepository) latestSessionID() (string, error) {
	data, err := afero.ReadFile(r.fs, r.latestPath())
	if os.IsNotExist(err) {
		return "", fmt.Errorf("%w: no session recorded", ErrSessionNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("failed to read latest session: %w", err)
	}
	id := strings.TrimSpace(string(data))
	if err := validSessionID(id); err != nil {
		return "", fmt.Errorf("latest session pointer is invalid: %w", err)
	}
	return id, nil
}

func (r *JSONStateRepository) sessionsPath() string {
	return filepath.Join(r.stateDir, sessionsDir)
}

func (r *JSONStateRepository) sessionPath(sessionID string) string {
	return filepath.Join(r.sessionsPath(), sessionID+".json")
}

func (r *JSONStateRepository) lockPath(sessionID string) string {
	return filepath.Join(r.stateDir, locksDir, sessionID+".lock")
}

func (r *JSONStateRepository) latestPath() string {
	return filepath.Join(r.stateDir, latestFile)
}

func checksum(state *domain.RollbackState) (string, error) {
	data, err := json.Marshal(state)
	if err != nil {
		return "", fmt.Errorf("failed to encode session for checksum: %w", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// validSessionID keeps session IDs usable as file names inside stateDir
func validSessionID(id string) error {
	if id == "" || strings.ContainsAny(id, `/\`) || strings.Contains(id, "..") {
		return fmt.Errorf("invalid session id %q", id)
	}
	return nil
}
