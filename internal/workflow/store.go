package workflow

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	_ "modernc.org/sqlite"

	clierr "github.com/ggonzalez94/aptos-agent-cli/internal/errors"
)

// Store persists workflow states in sqlite so a workflow survives across
// process invocations. Writes are serialized with a file lock since several
// CLI invocations may race on the same database.
type Store struct {
	db   *sql.DB
	lock *flock.Flock
	now  func() time.Time
}

func OpenStore(path, lockPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create workflow directory: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(lockPath), 0o755); err != nil {
		return nil, fmt.Errorf("create lock directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open workflow store: %w", err)
	}

	queries := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"CREATE TABLE IF NOT EXISTS workflows (workflow_id TEXT PRIMARY KEY, kind TEXT NOT NULL, phase TEXT NOT NULL, created_at INTEGER NOT NULL, updated_at INTEGER NOT NULL, payload BLOB NOT NULL);",
		"CREATE INDEX IF NOT EXISTS idx_workflows_phase ON workflows(phase);",
	}
	for _, query := range queries {
		if _, err := db.Exec(query); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("init workflow schema: %w", err)
		}
	}
	return &Store{db: db, lock: flock.New(lockPath), now: time.Now}, nil
}

// SetClock overrides the wall clock, for tests.
func (s *Store) SetClock(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) Save(state *State) error {
	locked, err := s.lock.TryLockContext(context.Background(), 5*time.Second)
	if err != nil {
		return fmt.Errorf("lock workflow store: %w", err)
	}
	if !locked {
		return fmt.Errorf("lock workflow store: timeout acquiring lock")
	}
	defer func() { _ = s.lock.Unlock() }()

	now := s.now().UTC()
	if state.CreatedAt.IsZero() {
		state.CreatedAt = now
	}
	state.UpdatedAt = now

	payload, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode workflow state: %w", err)
	}
	_, err = s.db.Exec(`
		INSERT INTO workflows (workflow_id, kind, phase, created_at, updated_at, payload)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(workflow_id) DO UPDATE SET
			phase=excluded.phase,
			updated_at=excluded.updated_at,
			payload=excluded.payload
	`, state.ID, state.Kind, state.Phase, state.CreatedAt.Unix(), state.UpdatedAt.Unix(), payload)
	if err != nil {
		return fmt.Errorf("save workflow: %w", err)
	}
	return nil
}

func (s *Store) Get(workflowID string) (*State, error) {
	var payload []byte
	err := s.db.QueryRow("SELECT payload FROM workflows WHERE workflow_id = ?", workflowID).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, clierr.New(clierr.CodeNotFound, fmt.Sprintf("workflow not found: %s", workflowID))
		}
		return nil, fmt.Errorf("read workflow: %w", err)
	}
	var state State
	if err := json.Unmarshal(payload, &state); err != nil {
		return nil, fmt.Errorf("decode workflow state: %w", err)
	}
	return &state, nil
}

// List returns workflows newest first, optionally filtered by phase.
func (s *Store) List(phase string, limit int) ([]*State, error) {
	if limit <= 0 {
		limit = 20
	}
	query := "SELECT payload FROM workflows ORDER BY updated_at DESC LIMIT ?"
	args := []any{limit}
	if phase != "" {
		query = "SELECT payload FROM workflows WHERE phase = ? ORDER BY updated_at DESC LIMIT ?"
		args = []any{phase, limit}
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list workflows: %w", err)
	}
	defer rows.Close()

	states := make([]*State, 0, limit)
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan workflow: %w", err)
		}
		var state State
		if err := json.Unmarshal(payload, &state); err != nil {
			continue
		}
		states = append(states, &state)
	}
	return states, rows.Err()
}
