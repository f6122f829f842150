package entitlement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	x402 "github.com/x402-foundation/x402-entitlements"
)

const createEntitlementsTable = `
CREATE TABLE IF NOT EXISTS entitlements (
	key         TEXT PRIMARY KEY,
	settled     BOOLEAN NOT NULL,
	tx_hash     TEXT NOT NULL DEFAULT '',
	recorded_at TIMESTAMPTZ NOT NULL
)`

// PostgresStore keeps entitlements in a Postgres table.
type PostgresStore struct {
	DB *pgxpool.Pool
}

// NewPostgresStore wraps an existing pool. Call EnsureSchema before first use
// unless the table is managed by migrations.
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{DB: db}
}

// EnsureSchema creates the entitlements table if it does not exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.DB.Exec(ctx, createEntitlementsTable); err != nil {
		return fmt.Errorf("create entitlements table: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, key string) (*x402.SettlementRecord, bool, error) {
	var (
		record     x402.SettlementRecord
		recordedAt time.Time
	)
	err := s.DB.QueryRow(ctx, `
SELECT settled, tx_hash, recorded_at
FROM entitlements
WHERE key = $1`, key).Scan(&record.Settled, &record.TransactionHash, &recordedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get entitlement %s: %w", key, err)
	}
	record.RecordedAt = recordedAt.UTC()
	return &record, true, nil
}

// Put upserts the record in a single statement, so readers see either the old
// row or the new one.
func (s *PostgresStore) Put(ctx context.Context, key string, record x402.SettlementRecord) error {
	_, err := s.DB.Exec(ctx, `
INSERT INTO entitlements (key, settled, tx_hash, recorded_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (key) DO UPDATE SET
	settled = EXCLUDED.settled,
	tx_hash = EXCLUDED.tx_hash,
	recorded_at = EXCLUDED.recorded_at`,
		key, record.Settled, record.TransactionHash, record.RecordedAt)
	if err != nil {
		return fmt.Errorf("put entitlement %s: %w", key, err)
	}
	return nil
}
