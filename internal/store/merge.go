package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"slices"

	"github.com/RoaringBitmap/roaring/roaring64"
	"go.uber.org/zap"

	"github.com/mirofedurco/EB-gridmaker/internal/model"
)

// Snapshot writes a consistent, self-contained copy of the database to dst,
// including rows still in the write-ahead log. dst must not exist.
func (s *Store) Snapshot(ctx context.Context, dst string) error {
	if _, err := os.Stat(dst); err == nil {
		return model.Configf("snapshot destination %s already exists", dst)
	}
	if _, err := s.db.ExecContext(ctx, `VACUUM INTO ?`, dst); err != nil {
		return fmt.Errorf("snapshot to %s: %w", dst, err)
	}
	return nil
}

// Merge unions shard databases produced by runs over disjoint parts of the
// same grid into a new file at destination.
//
// The first source is copied as the base and its resume marker dropped, since
// a merged file is not resumable. Every further source is attached and its
// parameters and curves rows appended in one transaction per source. Sources
// must record the same grid (when both record one), share the table layout and
// hold disjoint node ids; otherwise the merge stops with a storage error and
// the partial destination is removed.
//
// Fewer than two sources, or an existing destination, is a configuration error.
func Merge(ctx context.Context, sources []string, destination string, opts ...Option) (err error) {
	o, err := buildOptions(opts)
	if err != nil {
		return err
	}
	if len(sources) < 2 {
		return model.Configf("at least two databases are needed to merge, got %d", len(sources))
	}
	if _, statErr := os.Stat(destination); statErr == nil {
		return model.Configf("output file %s already exists", destination)
	}
	for _, src := range sources {
		if _, statErr := os.Stat(src); statErr != nil {
			return model.Configf("merge source %s: %v", src, statErr)
		}
		if src == destination {
			return model.Configf("merge source %s is also the destination", src)
		}
	}

	if err := copyBase(ctx, o.driver, sources[0], destination); err != nil {
		return err
	}
	defer func() {
		if err != nil {
			removeDatabase(destination)
		}
	}()

	db, err := openDB(o.driver, destination)
	if err != nil {
		return err
	}
	defer db.Close()

	// ATTACH is per connection; pin one for the whole merge.
	conn, err := db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("merge: acquire connection: %w", err)
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, `DROP TABLE IF EXISTS auxiliary`); err != nil {
		return fmt.Errorf("merge: drop auxiliary: %w", err)
	}

	base, err := committedIDs(ctx, conn, "main")
	if err != nil {
		return err
	}
	baseMeta, err := readOptionalMeta(ctx, conn, "main")
	if err != nil {
		return err
	}
	o.log.Info("merge base copied",
		zap.String("source", sources[0]),
		zap.Uint64("nodes", base.GetCardinality()))

	for _, src := range sources[1:] {
		added, err := mergeOne(ctx, conn, src, base, baseMeta, o.log)
		if err != nil {
			return fmt.Errorf("merge %s: %w", src, err)
		}
		base.Or(added)
	}

	o.log.Info("merge complete",
		zap.String("destination", destination),
		zap.Int("sources", len(sources)),
		zap.Uint64("nodes", base.GetCardinality()))
	return nil
}

func copyBase(ctx context.Context, driver, src, dst string) error {
	db, err := openDB(driver, src)
	if err != nil {
		return fmt.Errorf("merge: open %s: %w", src, err)
	}
	defer db.Close()
	if _, err := db.ExecContext(ctx, `VACUUM INTO ?`, dst); err != nil {
		removeDatabase(dst)
		return fmt.Errorf("merge: copy %s: %w", src, err)
	}
	return nil
}

func mergeOne(ctx context.Context, conn *sql.Conn, src string, base *roaring64.Bitmap, baseMeta GridMeta, log *zap.Logger) (*roaring64.Bitmap, error) {
	if _, err := conn.ExecContext(ctx, `ATTACH DATABASE ? AS src`, src); err != nil {
		return nil, fmt.Errorf("attach: %w", err)
	}
	defer func() {
		if _, err := conn.ExecContext(context.WithoutCancel(ctx), `DETACH DATABASE src`); err != nil {
			log.Warn("detach failed", zap.String("source", src), zap.Error(err))
		}
	}()

	meta, err := readOptionalMeta(ctx, conn, "src")
	if err != nil {
		return nil, err
	}
	switch {
	case meta.Fingerprint != "" && baseMeta.Fingerprint != "":
		if meta.Fingerprint != baseMeta.Fingerprint {
			return nil, model.Storage("grid mismatch",
				fmt.Errorf("fingerprint %s differs from base %s", meta.Fingerprint, baseMeta.Fingerprint))
		}
	default:
		log.Warn("source or base records no grid; relying on table layout only", zap.String("source", src))
	}

	for _, table := range []string{"parameters", "curves"} {
		want, err := tableColumns(ctx, conn, "main", table)
		if err != nil {
			return nil, err
		}
		got, err := tableColumns(ctx, conn, "src", table)
		if err != nil {
			return nil, err
		}
		if !slices.Equal(got, want) {
			return nil, model.Storage(table+" table layout mismatch",
				fmt.Errorf("source has %v, base has %v", got, want))
		}
	}

	ids, err := committedIDs(ctx, conn, "src")
	if err != nil {
		return nil, err
	}
	if overlap := roaring64.And(base, ids); !overlap.IsEmpty() {
		return nil, model.Storage("overlapping shards",
			fmt.Errorf("%d node ids already present, first %d", overlap.GetCardinality(), overlap.Minimum()))
	}

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	if _, err := tx.ExecContext(ctx, `INSERT INTO parameters SELECT * FROM src.parameters`); err != nil {
		return nil, model.Storage("copy parameters", err)
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO curves SELECT * FROM src.curves`); err != nil {
		return nil, model.Storage("copy curves", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	log.Info("merged shard", zap.String("source", src), zap.Uint64("nodes", ids.GetCardinality()))
	return ids, nil
}

// readOptionalMeta reads grid meta, treating a file without a grid_meta table
// (written before it existed) as recording nothing.
func readOptionalMeta(ctx context.Context, conn *sql.Conn, schemaName string) (GridMeta, error) {
	var n int
	err := conn.QueryRowContext(ctx, fmt.Sprintf(
		`SELECT COUNT(*) FROM %s.sqlite_master WHERE type = 'table' AND name = 'grid_meta'`, schemaName)).Scan(&n)
	if err != nil {
		return GridMeta{}, fmt.Errorf("inspect %s: %w", schemaName, err)
	}
	if n == 0 {
		return GridMeta{}, nil
	}
	return readMeta(ctx, conn, schemaName)
}

// removeDatabase deletes a database file and its WAL side files.
func removeDatabase(path string) {
	for _, p := range []string{path, path + "-wal", path + "-shm"} {
		_ = os.Remove(p)
	}
}
