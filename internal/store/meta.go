package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/mirofedurco/EB-gridmaker/internal/grid"
	"github.com/mirofedurco/EB-gridmaker/internal/model"
)

// grid_meta keys.
const (
	metaOrder       = "sampling_order"
	metaFingerprint = "fingerprint"
	metaChunkSize   = "chunk_size"
)

// GridMeta is the grid bookkeeping recorded in a database file.
type GridMeta struct {
	// Order is nil for files that were never bound to a grid.
	Order       *grid.Order
	Fingerprint string
	ChunkSize   int
}

// Meta reads the recorded grid bookkeeping.
func (s *Store) Meta(ctx context.Context) (GridMeta, error) {
	return readMeta(ctx, s.db, "main")
}

func readMeta(ctx context.Context, q querier, schemaName string) (GridMeta, error) {
	rows, err := q.QueryContext(ctx, fmt.Sprintf("SELECT key, value FROM %s.grid_meta", schemaName))
	if err != nil {
		return GridMeta{}, fmt.Errorf("read grid meta: %w", err)
	}
	defer rows.Close()

	var meta GridMeta
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return GridMeta{}, fmt.Errorf("scan grid meta: %w", err)
		}
		switch key {
		case metaOrder:
			var o grid.Order
			if err := json.Unmarshal([]byte(value), &o); err != nil {
				return GridMeta{}, model.Storage("decode recorded sampling order", err)
			}
			meta.Order = &o
		case metaFingerprint:
			meta.Fingerprint = value
		case metaChunkSize:
			n, err := strconv.Atoi(value)
			if err != nil {
				return GridMeta{}, model.Storage("decode recorded chunk size", err)
			}
			meta.ChunkSize = n
		}
	}
	if err := rows.Err(); err != nil {
		return GridMeta{}, fmt.Errorf("iterate grid meta: %w", err)
	}
	return meta, nil
}

// Binding is what BindGrid found recorded before it bound the file.
type Binding struct {
	// PreviousChunkSize is the largest chunk size recorded by earlier runs, 0 if none.
	PreviousChunkSize int
	// Grown is true when the recorded grid was smaller than the bound one. The
	// resume marker was then cleared: its position belongs to the shuffle of
	// the old grid.
	Grown bool
}

// BindGrid ties the file to a sampling order. The first call records order;
// later calls accept the same order, or one that grew only in ways that keep
// stored node ids valid, and reject anything else with a configuration error.
//
// It records max(previous, chunkSize) as the chunk size. When the grid grew,
// the resume marker is removed in the same transaction, so every later run
// starts from the beginning of its shard and relies on the committed set.
func (s *Store) BindGrid(ctx context.Context, order grid.Order, chunkSize int) (Binding, error) {
	meta, err := s.Meta(ctx)
	if err != nil {
		return Binding{}, err
	}

	b := Binding{PreviousChunkSize: meta.ChunkSize}
	if meta.Order != nil && !meta.Order.Equal(order) {
		if err := order.PreservesIDs(*meta.Order); err != nil {
			return Binding{}, fmt.Errorf("bind grid: %w", err)
		}
		b.Grown = true
	}

	encoded, err := json.Marshal(order)
	if err != nil {
		return Binding{}, fmt.Errorf("bind grid: encode order: %w", err)
	}
	recorded := max(meta.ChunkSize, chunkSize)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Binding{}, fmt.Errorf("bind grid: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	for key, value := range map[string]string{
		metaOrder:       string(encoded),
		metaFingerprint: order.Fingerprint(),
		metaChunkSize:   strconv.Itoa(recorded),
	} {
		if err := upsertMeta(ctx, tx, key, value); err != nil {
			return Binding{}, err
		}
	}
	if b.Grown {
		if _, err := tx.ExecContext(ctx, `DELETE FROM auxiliary`); err != nil {
			return Binding{}, fmt.Errorf("bind grid: clear resume marker: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return Binding{}, fmt.Errorf("bind grid: commit: %w", err)
	}
	if b.Grown {
		s.log.Info("grid extended, resume marker cleared",
			zap.Int64("previous_size", meta.Order.Size()),
			zap.Int64("size", order.Size()))
	}
	return b, nil
}

func upsertMeta(ctx context.Context, tx *sql.Tx, key, value string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO grid_meta (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	if err != nil {
		return fmt.Errorf("write grid meta %s: %w", key, err)
	}
	return nil
}
