package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/alejandrodnm/convict/internal/domain"
	_ "modernc.org/sqlite"
)

const schema = `
-- One row per position, inserted at admission, updated once at resolution.
-- Rows are never deleted: the ledger is the audit trail.
CREATE TABLE IF NOT EXISTS positions (
    id           TEXT PRIMARY KEY,
    market_id    TEXT NOT NULL,
    question     TEXT,
    category     TEXT NOT NULL,
    side         TEXT NOT NULL,
    entry_price  REAL NOT NULL,
    belief_low   REAL NOT NULL,
    belief_high  REAL NOT NULL,
    edge         REAL NOT NULL,
    size         REAL NOT NULL,
    entry_at     DATETIME NOT NULL,
    status       TEXT NOT NULL DEFAULT 'OPEN',
    exit_price   REAL,
    pnl          REAL,
    exit_at      DATETIME
);

-- Belief snapshot per tracked market; evicted rows are deleted.
CREATE TABLE IF NOT EXISTS beliefs (
    market_id    TEXT PRIMARY KEY,
    low          REAL NOT NULL,
    high         REAL NOT NULL,
    confidence   REAL NOT NULL,
    last_updated DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS belief_unknowns (
    id          TEXT PRIMARY KEY,
    market_id   TEXT NOT NULL,
    description TEXT NOT NULL,
    added_at    DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_positions_status ON positions(status);
CREATE INDEX IF NOT EXISTS idx_positions_market ON positions(market_id);
CREATE INDEX IF NOT EXISTS idx_unknowns_market  ON belief_unknowns(market_id);
`

// Belief rows for markets nobody touched in this long are leftovers from
// an unclean shutdown; prune them at startup.
const staleBeliefRetention = 7 * 24 * time.Hour

// SQLiteStorage implements ports.LedgerStorage and ports.BeliefStorage
// on a single SQLite file (pure Go driver, no CGo).
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage opens (or creates) the database at the given DSN and
// applies the schema. Use ":memory:" in tests.
func NewSQLiteStorage(dsn string) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("storage.NewSQLiteStorage: open %q: %w", dsn, err)
	}
	db.SetMaxOpenConns(1) // SQLite is single-writer
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage.NewSQLiteStorage: apply schema: %w", err)
	}

	s := &SQLiteStorage{db: db}
	s.pruneStaleBeliefs(context.Background())
	return s, nil
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// --- ports.LedgerStorage ---

// SavePosition inserts a newly created position.
func (s *SQLiteStorage) SavePosition(ctx context.Context, p domain.Position) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO positions (id, market_id, question, category, side, entry_price,
		                       belief_low, belief_high, edge, size, entry_at, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.MarketID, p.Question, string(p.Category), string(p.Side),
		p.EntryPrice, p.BeliefLow, p.BeliefHigh, p.Edge, p.Size,
		p.EntryAt.UTC().Format(time.RFC3339), string(p.Status),
	)
	if err != nil {
		return fmt.Errorf("storage.SavePosition: %w", err)
	}
	return nil
}

// MarkResolved persists the terminal transition. The WHERE status='OPEN'
// guard keeps resolution one-way even if two callers race on the same id.
func (s *SQLiteStorage) MarkResolved(ctx context.Context, p domain.Position) error {
	if p.ExitPrice == nil || p.PnL == nil || p.ExitAt == nil {
		return fmt.Errorf("storage.MarkResolved: position %s missing terminal fields", p.ID)
	}
	_, err := s.db.ExecContext(ctx, `
		UPDATE positions SET status = ?, exit_price = ?, pnl = ?, exit_at = ?
		WHERE id = ? AND status = 'OPEN'`,
		string(p.Status), *p.ExitPrice, *p.PnL, p.ExitAt.UTC().Format(time.RFC3339), p.ID,
	)
	if err != nil {
		return fmt.Errorf("storage.MarkResolved: %w", err)
	}
	return nil
}

// GetOpenPositions returns all OPEN positions, oldest first.
func (s *SQLiteStorage) GetOpenPositions(ctx context.Context) ([]domain.Position, error) {
	return s.queryPositions(ctx, `
		SELECT id, market_id, question, category, side, entry_price,
		       belief_low, belief_high, edge, size, entry_at, status,
		       exit_price, pnl, exit_at
		FROM positions WHERE status = 'OPEN'
		ORDER BY entry_at ASC`)
}

// GetResolvedPositions returns all terminal positions, oldest first.
func (s *SQLiteStorage) GetResolvedPositions(ctx context.Context) ([]domain.Position, error) {
	return s.queryPositions(ctx, `
		SELECT id, market_id, question, category, side, entry_price,
		       belief_low, belief_high, edge, size, entry_at, status,
		       exit_price, pnl, exit_at
		FROM positions WHERE status != 'OPEN'
		ORDER BY exit_at ASC`)
}

func (s *SQLiteStorage) queryPositions(ctx context.Context, query string, args ...any) ([]domain.Position, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("storage.queryPositions: %w", err)
	}
	defer rows.Close()

	var positions []domain.Position
	for rows.Next() {
		var p domain.Position
		var category, side, status, entryAt string
		var exitPrice, pnl sql.NullFloat64
		var exitAt sql.NullString

		if err := rows.Scan(
			&p.ID, &p.MarketID, &p.Question, &category, &side, &p.EntryPrice,
			&p.BeliefLow, &p.BeliefHigh, &p.Edge, &p.Size, &entryAt, &status,
			&exitPrice, &pnl, &exitAt,
		); err != nil {
			return nil, fmt.Errorf("storage.queryPositions: scan: %w", err)
		}

		p.Category = domain.Category(category)
		p.Side = domain.Side(side)
		p.Status = domain.PositionStatus(status)
		p.EntryAt, _ = time.Parse(time.RFC3339, entryAt)
		if exitPrice.Valid {
			v := exitPrice.Float64
			p.ExitPrice = &v
		}
		if pnl.Valid {
			v := pnl.Float64
			p.PnL = &v
		}
		if exitAt.Valid {
			if t, err := time.Parse(time.RFC3339, exitAt.String); err == nil {
				p.ExitAt = &t
			}
		}
		positions = append(positions, p)
	}
	return positions, rows.Err()
}

// --- ports.BeliefStorage ---

// SaveBelief upserts the belief snapshot and replaces its unknowns.
func (s *SQLiteStorage) SaveBelief(ctx context.Context, b domain.Belief) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("storage.SaveBelief: begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO beliefs (market_id, low, high, confidence, last_updated)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(market_id) DO UPDATE SET
			low          = excluded.low,
			high         = excluded.high,
			confidence   = excluded.confidence,
			last_updated = excluded.last_updated`,
		b.MarketID, b.Low, b.High, b.Confidence, b.LastUpdated.UTC().Format(time.RFC3339),
	); err != nil {
		return fmt.Errorf("storage.SaveBelief: upsert %s: %w", b.MarketID, err)
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM belief_unknowns WHERE market_id = ?`, b.MarketID,
	); err != nil {
		return fmt.Errorf("storage.SaveBelief: clear unknowns: %w", err)
	}
	for _, u := range b.Unknowns {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO belief_unknowns (id, market_id, description, added_at)
			VALUES (?, ?, ?, ?)`,
			u.ID, b.MarketID, u.Description, u.AddedAt.UTC().Format(time.RFC3339),
		); err != nil {
			return fmt.Errorf("storage.SaveBelief: insert unknown: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("storage.SaveBelief: commit: %w", err)
	}
	return nil
}

// DeleteBelief removes an evicted market's snapshot and unknowns.
func (s *SQLiteStorage) DeleteBelief(ctx context.Context, marketID string) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM beliefs WHERE market_id = ?`, marketID,
	); err != nil {
		return fmt.Errorf("storage.DeleteBelief: %w", err)
	}
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM belief_unknowns WHERE market_id = ?`, marketID,
	); err != nil {
		return fmt.Errorf("storage.DeleteBelief: unknowns: %w", err)
	}
	return nil
}

// GetBeliefs loads all persisted beliefs with their unknowns.
func (s *SQLiteStorage) GetBeliefs(ctx context.Context) ([]domain.Belief, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT market_id, low, high, confidence, last_updated FROM beliefs`)
	if err != nil {
		return nil, fmt.Errorf("storage.GetBeliefs: %w", err)
	}
	defer rows.Close()

	var beliefs []domain.Belief
	for rows.Next() {
		var b domain.Belief
		var lastUpdated string
		if err := rows.Scan(&b.MarketID, &b.Low, &b.High, &b.Confidence, &lastUpdated); err != nil {
			return nil, fmt.Errorf("storage.GetBeliefs: scan: %w", err)
		}
		b.LastUpdated, _ = time.Parse(time.RFC3339, lastUpdated)
		beliefs = append(beliefs, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range beliefs {
		unknowns, err := s.getUnknowns(ctx, beliefs[i].MarketID)
		if err != nil {
			return nil, err
		}
		beliefs[i].Unknowns = unknowns
	}
	return beliefs, nil
}

func (s *SQLiteStorage) getUnknowns(ctx context.Context, marketID string) ([]domain.Unknown, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, description, added_at FROM belief_unknowns
		WHERE market_id = ? ORDER BY added_at ASC`, marketID)
	if err != nil {
		return nil, fmt.Errorf("storage.getUnknowns: %w", err)
	}
	defer rows.Close()

	var unknowns []domain.Unknown
	for rows.Next() {
		var u domain.Unknown
		var addedAt string
		if err := rows.Scan(&u.ID, &u.Description, &addedAt); err != nil {
			return nil, fmt.Errorf("storage.getUnknowns: scan: %w", err)
		}
		u.AddedAt, _ = time.Parse(time.RFC3339, addedAt)
		unknowns = append(unknowns, u)
	}
	return unknowns, rows.Err()
}

func (s *SQLiteStorage) pruneStaleBeliefs(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-staleBeliefRetention).Format(time.RFC3339)
	s.db.ExecContext(ctx, `
		DELETE FROM belief_unknowns WHERE market_id IN
			(SELECT market_id FROM beliefs WHERE last_updated < ?)`, cutoff)
	s.db.ExecContext(ctx, `DELETE FROM beliefs WHERE last_updated < ?`, cutoff)
}
