package fill

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/ggonzalez94/orderfill/internal/cache"
	clierr "github.com/ggonzalez94/orderfill/internal/errors"
)

type AttemptStatus string

const (
	AttemptRunning   AttemptStatus = "running"
	AttemptCompleted AttemptStatus = "completed"
	AttemptFailed    AttemptStatus = "failed"
)

// Attempt is the outcome record of one pipeline run. It never holds the
// inverted order.
type Attempt struct {
	AttemptID      string        `json:"attempt_id"`
	Intent         string        `json:"intent"`
	OrderType      string        `json:"order_type"`
	Filler         string        `json:"filler,omitempty"`
	ChainID        int64         `json:"chain_id"`
	Stage          Stage         `json:"stage"`
	Status         AttemptStatus `json:"status"`
	ApprovalTxHash string        `json:"approval_tx_hash,omitempty"`
	TxHash         string        `json:"tx_hash,omitempty"`
	Error          string        `json:"error,omitempty"`
	ErrorType      string        `json:"error_type,omitempty"`
	CreatedAt      string        `json:"created_at"`
	UpdatedAt      string        `json:"updated_at"`
}

func NewAttemptID() string {
	return "fil_" + strings.ReplaceAll(uuid.NewString(), "-", "")
}

func (a *Attempt) Touch() {
	a.UpdatedAt = time.Now().UTC().Format(time.RFC3339)
}

// Recorder persists attempts. Save is upsert by attempt id.
type Recorder interface {
	Save(Attempt) error
}

type Store struct {
	db   *sql.DB
	lock *flock.Flock
}

func OpenStore(path, lockPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create attempt store directory: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(lockPath), 0o755); err != nil {
		return nil, fmt.Errorf("create attempt lock directory: %w", err)
	}
	db, err := sql.Open("sqlite", cache.DSN(path))
	if err != nil {
		return nil, fmt.Errorf("open attempt sqlite: %w", err)
	}

	lock := flock.New(lockPath)
	err = cache.InitSchema(db, lock, []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		`CREATE TABLE IF NOT EXISTS attempts (
			attempt_id TEXT PRIMARY KEY,
			intent TEXT NOT NULL,
			order_type TEXT NOT NULL,
			status TEXT NOT NULL,
			chain_id INTEGER NOT NULL,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL,
			payload BLOB NOT NULL
		);`,
		"CREATE INDEX IF NOT EXISTS idx_attempts_status_updated ON attempts(status, updated_at DESC);",
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init attempt schema: %w", err)
	}
	return &Store{db: db, lock: lock}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) Save(attempt Attempt) error {
	if strings.TrimSpace(attempt.AttemptID) == "" {
		return fmt.Errorf("save attempt: missing attempt id")
	}
	payload, err := json.Marshal(attempt)
	if err != nil {
		return fmt.Errorf("marshal attempt: %w", err)
	}
	createdUnix := parseRFC3339Unix(attempt.CreatedAt)
	updatedUnix := parseRFC3339Unix(attempt.UpdatedAt)

	return cache.WithLock(s.lock, func() error {
		return s.upsert(attempt, createdUnix, updatedUnix, payload)
	})
}

func (s *Store) upsert(attempt Attempt, createdUnix, updatedUnix int64, payload []byte) error {
	_, err := s.db.Exec(`
		INSERT INTO attempts (attempt_id, intent, order_type, status, chain_id, created_at, updated_at, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(attempt_id) DO UPDATE SET
			status=excluded.status,
			updated_at=excluded.updated_at,
			payload=excluded.payload
	`, attempt.AttemptID, attempt.Intent, attempt.OrderType, attempt.Status, attempt.ChainID, createdUnix, updatedUnix, payload)
	if err != nil {
		return fmt.Errorf("save attempt: %w", err)
	}
	return nil
}

func (s *Store) Get(attemptID string) (Attempt, error) {
	var payload []byte
	err := s.db.QueryRow("SELECT payload FROM attempts WHERE attempt_id = ?", attemptID).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Attempt{}, clierr.New(clierr.CodeUsage, fmt.Sprintf("attempt not found: %s", attemptID))
		}
		return Attempt{}, fmt.Errorf("read attempt: %w", err)
	}
	var attempt Attempt
	if err := json.Unmarshal(payload, &attempt); err != nil {
		return Attempt{}, fmt.Errorf("decode attempt payload: %w", err)
	}
	return attempt, nil
}

func (s *Store) List(status string, limit int) ([]Attempt, error) {
	if limit <= 0 {
		limit = 20
	}
	var (
		rows *sql.Rows
		err  error
	)
	if strings.TrimSpace(status) == "" {
		rows, err = s.db.Query("SELECT payload FROM attempts ORDER BY updated_at DESC LIMIT ?", limit)
	} else {
		rows, err = s.db.Query("SELECT payload FROM attempts WHERE status = ? ORDER BY updated_at DESC LIMIT ?", status, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("list attempts: %w", err)
	}
	defer rows.Close()

	attempts := make([]Attempt, 0)
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan attempt row: %w", err)
		}
		var attempt Attempt
		if err := json.Unmarshal(payload, &attempt); err != nil {
			return nil, fmt.Errorf("decode attempt row: %w", err)
		}
		attempts = append(attempts, attempt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate attempt rows: %w", err)
	}
	return attempts, nil
}

func parseRFC3339Unix(v string) int64 {
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Now().UTC().Unix()
	}
	return t.UTC().Unix()
}
