package persist

import (
	"context"
	"fmt"
	"time"

	"github.com/stencil3/editor/internal/config"
	"go.uber.org/zap"
)

// JournalEntry is one applied history request, kept for audit after the
// in-memory stacks are gone.
type JournalEntry struct {
	ID          int64
	Session     string
	Action      string // "record", "undo", "redo", "clear"
	Description string
	Digest      string // blake2b of the last snapshot touched, "" for namespace batches
	At          time.Time
}

type JournalRepo struct {
	db *DB
}

func NewJournalRepo(db *DB) *JournalRepo {
	return &JournalRepo{db: db}
}

// OpenJournal opens the configured journal database and migrates it.
func OpenJournal(ctx context.Context, cfg config.JournalConfig, log *zap.Logger) (*DB, *JournalRepo, error) {
	db, err := NewDB(ctx, cfg.DSN, log)
	if err != nil {
		return nil, nil, fmt.Errorf("open journal: %w", err)
	}
	if err := RunMigrations(ctx, db); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("open journal: %w", err)
	}
	log.Info("journal opened", zap.String("dialect", string(db.Dialect)))
	return db, NewJournalRepo(db), nil
}

// Append writes a batch of entries in a single transaction.
func (r *JournalRepo) Append(ctx context.Context, entries []JournalEntry) error {
	if len(entries) == 0 {
		return nil
	}
	tx, err := r.db.SQL.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("journal begin: %w", err)
	}
	defer tx.Rollback()

	query := r.db.bind(`INSERT INTO history_journal (session, action, description, digest, at_ms)
		 VALUES ($1, $2, $3, $4, $5)`)
	for _, e := range entries {
		if _, err := tx.ExecContext(ctx, query,
			e.Session, e.Action, e.Description, e.Digest, e.At.UnixMilli(),
		); err != nil {
			return fmt.Errorf("journal insert: %w", err)
		}
	}

	return tx.Commit()
}

// Recent returns up to limit entries, newest first.
func (r *JournalRepo) Recent(ctx context.Context, limit int) ([]JournalEntry, error) {
	rows, err := r.db.SQL.QueryContext(ctx, r.db.bind(
		`SELECT id, session, action, description, digest, at_ms
		 FROM history_journal ORDER BY id DESC LIMIT $1`), limit)
	if err != nil {
		return nil, fmt.Errorf("journal query: %w", err)
	}
	defer rows.Close()

	var out []JournalEntry
	for rows.Next() {
		var (
			e  JournalEntry
			ms int64
		)
		if err := rows.Scan(&e.ID, &e.Session, &e.Action, &e.Description, &e.Digest, &ms); err != nil {
			return nil, fmt.Errorf("journal scan: %w", err)
		}
		e.At = time.UnixMilli(ms)
		out = append(out, e)
	}
	return out, rows.Err()
}

// Count returns the number of entries written by session.
func (r *JournalRepo) Count(ctx context.Context, session string) (int, error) {
	var n int
	err := r.db.SQL.QueryRowContext(ctx, r.db.bind(
		`SELECT COUNT(*) FROM history_journal WHERE session = $1`), session).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("journal count: %w", err)
	}
	return n, nil
}
