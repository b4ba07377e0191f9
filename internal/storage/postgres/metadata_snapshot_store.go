package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"solana-lend-widget/internal/domain"
	"solana-lend-widget/internal/observability"
	"solana-lend-widget/internal/storage"
)

// MetadataSnapshotStore implements storage.MetadataSnapshotStore using PostgreSQL.
// A successful Save prunes every older snapshot.
type MetadataSnapshotStore struct {
	pool *Pool
}

// NewMetadataSnapshotStore creates a new MetadataSnapshotStore.
func NewMetadataSnapshotStore(pool *Pool) *MetadataSnapshotStore {
	return &MetadataSnapshotStore{pool: pool}
}

// Compile-time interface check.
var _ storage.MetadataSnapshotStore = (*MetadataSnapshotStore)(nil)

// Save persists a snapshot. Returns ErrDuplicateKey if fetched_at exists.
func (s *MetadataSnapshotStore) Save(ctx context.Context, snap *domain.MetadataSnapshot) (err error) {
	if snap == nil || snap.FetchedAt <= 0 {
		return storage.ErrInvalidInput
	}

	start := time.Now()
	defer func() {
		observability.RecordDBQuery("postgres", "metadata_save", time.Since(start).Seconds(), err)
	}()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	var snapshotID int64
	err = tx.QueryRow(ctx, `
		INSERT INTO asset_metadata_snapshots (fetched_at, token_count)
		VALUES ($1, $2)
		RETURNING snapshot_id
	`, snap.FetchedAt, len(snap.Tokens)).Scan(&snapshotID)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert snapshot: %w", err)
	}

	rows := make([][]any, 0, len(snap.Tokens))
	for mint, m := range snap.Tokens {
		rows = append(rows, []any{snapshotID, mint, m.Symbol, m.Name, m.LogoURI})
	}

	if len(rows) > 0 {
		_, err = tx.CopyFrom(ctx,
			pgx.Identifier{"asset_metadata"},
			[]string{"snapshot_id", "mint", "symbol", "name", "logo_uri"},
			pgx.CopyFromRows(rows),
		)
		if err != nil {
			return fmt.Errorf("copy asset metadata: %w", err)
		}
	}

	if _, err = tx.Exec(ctx, `
		DELETE FROM asset_metadata_snapshots WHERE fetched_at < $1
	`, snap.FetchedAt); err != nil {
		return fmt.Errorf("prune snapshots: %w", err)
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit snapshot: %w", err)
	}
	return nil
}

// Latest retrieves the newest snapshot. Returns ErrNotFound if none.
func (s *MetadataSnapshotStore) Latest(ctx context.Context) (_ *domain.MetadataSnapshot, err error) {
	start := time.Now()
	defer func() {
		observability.RecordDBQuery("postgres", "metadata_latest", time.Since(start).Seconds(), err)
	}()

	var snapshotID int64
	snap := &domain.MetadataSnapshot{}

	err = s.pool.QueryRow(ctx, `
		SELECT snapshot_id, fetched_at
		FROM asset_metadata_snapshots
		ORDER BY fetched_at DESC
		LIMIT 1
	`).Scan(&snapshotID, &snap.FetchedAt)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get latest snapshot: %w", err)
	}

	rows, err := s.pool.Query(ctx, `
		SELECT mint, symbol, name, logo_uri
		FROM asset_metadata
		WHERE snapshot_id = $1
	`, snapshotID)
	if err != nil {
		return nil, fmt.Errorf("query asset metadata: %w", err)
	}
	defer rows.Close()

	snap.Tokens = make(map[string]domain.AssetMetadata)
	for rows.Next() {
		var mint string
		var m domain.AssetMetadata
		if err := rows.Scan(&mint, &m.Symbol, &m.Name, &m.LogoURI); err != nil {
			return nil, fmt.Errorf("scan asset metadata: %w", err)
		}
		snap.Tokens[mint] = m
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate asset metadata: %w", err)
	}

	return snap, nil
}
