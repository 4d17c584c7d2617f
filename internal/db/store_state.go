package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/openaedmap/openaedmap-go/internal/models"
)

// GetState reads an ingest state document. A missing key returns (nil, nil)
// so callers can treat it as "never ran".
func (db *DB) GetState(ctx context.Context, key string) (*models.IngestState, error) {
	var data []byte
	err := db.Pool.QueryRow(ctx, "SELECT data FROM state WHERE key = $1", key).Scan(&data)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get state %s: %w", key, err)
	}

	var state models.IngestState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("unmarshal state %s: %w", key, err)
	}
	return &state, nil
}

// SetStateTx upserts an ingest state document inside a transaction, so a
// failed batch never records progress.
func (db *DB) SetStateTx(ctx context.Context, tx pgx.Tx, key string, state models.IngestState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal state %s: %w", key, err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO state (key, data, updated_at) VALUES ($1, $2, NOW())
		ON CONFLICT (key) DO UPDATE SET data = EXCLUDED.data, updated_at = NOW()
	`, key, data)
	if err != nil {
		return fmt.Errorf("set state %s: %w", key, err)
	}
	return nil
}

// SetState upserts an ingest state document in its own transaction.
func (db *DB) SetState(ctx context.Context, key string, state models.IngestState) error {
	return db.ExecTx(ctx, func(tx pgx.Tx) error {
		return db.SetStateTx(ctx, tx, key, state)
	})
}
