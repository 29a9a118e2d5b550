package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/glebarez/go-sqlite"

	"dexterm/internal/domain"
)

// Store caches the market catalog in SQLite so the terminal can start (and
// degrade gracefully) when the venue's catalog endpoint is unreachable.
type Store struct {
	db *sql.DB
}

// NewStore opens (or creates) the cache database with WAL mode enabled.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA cache_size=-2000;", // 2MB cache
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return nil, fmt.Errorf("failed to set pragma %s: %w", pragma, err)
		}
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS markets (
			id TEXT PRIMARY KEY,
			payload BLOB NOT NULL,
			updated_at INTEGER NOT NULL
		);
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to create markets table: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS metadata (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at INTEGER NOT NULL
		);
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to create metadata table: %w", err)
	}

	return &Store{db: db}, nil
}

// PutMarkets replaces the cached catalog.
func (s *Store) PutMarkets(ctx context.Context, markets []domain.Market, ts int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin catalog tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM markets"); err != nil {
		return fmt.Errorf("clear markets: %w", err)
	}
	for _, m := range markets {
		payload, err := json.Marshal(m)
		if err != nil {
			return fmt.Errorf("marshal market %s: %w", m.ID, err)
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO markets (id, payload, updated_at) VALUES (?, ?, ?)",
			m.ID, payload, ts,
		); err != nil {
			return fmt.Errorf("insert market %s: %w", m.ID, err)
		}
	}
	if err := s.upsertMetadata(ctx, tx, "catalog_synced_at", fmt.Sprintf("%d", ts), ts); err != nil {
		return err
	}
	return tx.Commit()
}

// GetMarkets loads the cached catalog and its sync timestamp. An empty
// cache returns (nil, 0, nil).
func (s *Store) GetMarkets(ctx context.Context) ([]domain.Market, int64, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT payload FROM markets ORDER BY id ASC")
	if err != nil {
		return nil, 0, fmt.Errorf("query markets: %w", err)
	}
	defer rows.Close()

	var markets []domain.Market
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, 0, fmt.Errorf("scan market: %w", err)
		}
		var m domain.Market
		if err := json.Unmarshal(payload, &m); err != nil {
			return nil, 0, fmt.Errorf("unmarshal market: %w", err)
		}
		markets = append(markets, m)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("rows iteration error: %w", err)
	}

	var syncedAt int64
	v, err := s.GetMetadata(ctx, "catalog_synced_at")
	if err != nil {
		return nil, 0, err
	}
	if v != "" {
		fmt.Sscanf(v, "%d", &syncedAt)
	}
	return markets, syncedAt, nil
}

func (s *Store) upsertMetadata(ctx context.Context, tx *sql.Tx, key, value string, ts int64) error {
	_, err := tx.ExecContext(ctx,
		"INSERT INTO metadata (key, value, updated_at) VALUES (?, ?, ?) ON CONFLICT(key) DO UPDATE SET value=excluded.value, updated_at=excluded.updated_at",
		key, value, ts,
	)
	return err
}

// GetMetadata retrieves a metadata value, "" when absent.
func (s *Store) GetMetadata(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM metadata WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}
