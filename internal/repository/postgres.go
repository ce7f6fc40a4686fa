package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// Table layout mirrors the key/value shape of the hosted store: a fixed
// partition key with the install id as row key, one table for installations
// and one for setup blobs.
const partitionKey = "default"

// PostgresSetupStore is the durable SetupStore implementation.
type PostgresSetupStore struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

var _ SetupStore = (*PostgresSetupStore)(nil)

// NewPostgresSetupStore constructs the store. Call Initialize before use.
func NewPostgresSetupStore(pool *pgxpool.Pool, logger *zap.Logger) *PostgresSetupStore {
	if logger == nil {
		logger = zap.L()
	}
	return &PostgresSetupStore{pool: pool, logger: logger}
}

// Initialize ensures the backing tables exist. Called during app startup.
func (s *PostgresSetupStore) Initialize(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS installations (
	partition_key TEXT NOT NULL,
	install_id    TEXT NOT NULL,
	tool_id       TEXT NOT NULL,
	group_id      TEXT NOT NULL DEFAULT '',
	installed_at  TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (partition_key, install_id)
);
CREATE TABLE IF NOT EXISTS setup_data (
	partition_key TEXT NOT NULL,
	install_id    TEXT NOT NULL,
	setup_json    TEXT NOT NULL,
	updated_at    TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (partition_key, install_id)
);`
	if _, err := s.pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("initialize setup store: %w", err)
	}
	s.logger.Info("setup store initialized")
	return nil
}

func (s *PostgresSetupStore) RegisterInstall(ctx context.Context, installID, toolID, groupID string) error {
	const q = `
INSERT INTO installations (partition_key, install_id, tool_id, group_id, installed_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (partition_key, install_id)
DO UPDATE SET tool_id = EXCLUDED.tool_id, group_id = EXCLUDED.group_id`
	if _, err := s.pool.Exec(ctx, q, partitionKey, installID, toolID, groupID, time.Now().UTC()); err != nil {
		return fmt.Errorf("register install: %w", err)
	}
	return nil
}

func (s *PostgresSetupStore) RemoveInstall(ctx context.Context, installID string) (bool, error) {
	// Setup data goes first so a crash between the two deletes never leaves
	// an orphaned setup record behind a missing installation.
	if _, err := s.pool.Exec(ctx,
		`DELETE FROM setup_data WHERE partition_key = $1 AND install_id = $2`,
		partitionKey, installID); err != nil {
		return false, fmt.Errorf("remove setup: %w", err)
	}
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM installations WHERE partition_key = $1 AND install_id = $2`,
		partitionKey, installID)
	if err != nil {
		return false, fmt.Errorf("remove install: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *PostgresSetupStore) IsInstalled(ctx context.Context, installID string) (bool, error) {
	var one int
	err := s.pool.QueryRow(ctx,
		`SELECT 1 FROM installations WHERE partition_key = $1 AND install_id = $2`,
		partitionKey, installID).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("lookup install: %w", err)
	}
	return true, nil
}

func (s *PostgresSetupStore) SaveSetup(ctx context.Context, installID string, values map[string]string) error {
	payload, err := json.Marshal(values)
	if err != nil {
		return fmt.Errorf("encode setup: %w", err)
	}
	const q = `
INSERT INTO setup_data (partition_key, install_id, setup_json, updated_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (partition_key, install_id)
DO UPDATE SET setup_json = EXCLUDED.setup_json, updated_at = EXCLUDED.updated_at`
	if _, err := s.pool.Exec(ctx, q, partitionKey, installID, string(payload), time.Now().UTC()); err != nil {
		return fmt.Errorf("save setup: %w", err)
	}
	return nil
}

func (s *PostgresSetupStore) GetSetup(ctx context.Context, installID string) (map[string]string, error) {
	var raw string
	err := s.pool.QueryRow(ctx,
		`SELECT setup_json FROM setup_data WHERE partition_key = $1 AND install_id = $2`,
		partitionKey, installID).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load setup: %w", err)
	}
	var values map[string]string
	if err := json.Unmarshal([]byte(raw), &values); err != nil {
		return nil, fmt.Errorf("decode setup: %w", err)
	}
	return values, nil
}

func (s *PostgresSetupStore) GetToolID(ctx context.Context, installID string) (string, error) {
	var toolID string
	err := s.pool.QueryRow(ctx,
		`SELECT tool_id FROM installations WHERE partition_key = $1 AND install_id = $2`,
		partitionKey, installID).Scan(&toolID)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("lookup tool id: %w", err)
	}
	return toolID, nil
}

func (s *PostgresSetupStore) GetGroupID(ctx context.Context, installID string) (string, error) {
	var groupID string
	err := s.pool.QueryRow(ctx,
		`SELECT group_id FROM installations WHERE partition_key = $1 AND install_id = $2`,
		partitionKey, installID).Scan(&groupID)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("lookup group id: %w", err)
	}
	return groupID, nil
}
