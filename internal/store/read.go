package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/RoaringBitmap/roaring/roaring64"

	"github.com/mirofedurco/EB-gridmaker/internal/model"
)

// LastIndex returns the resume marker: the id of the most recently committed
// node. ok is false when nothing has been committed.
func (s *Store) LastIndex(ctx context.Context) (id int64, ok bool, err error) {
	var v sql.NullInt64
	err = s.db.QueryRowContext(ctx,
		`SELECT last_index FROM auxiliary ORDER BY _rowid_ LIMIT 1`).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("read last index: %w", err)
	}
	if !v.Valid {
		return 0, false, nil
	}
	return v.Int64, true, nil
}

// SearchForBreakpoint returns the position of the resume marker within ids,
// or -1 when nothing has been committed. A marker that does not occur in ids
// means the file belongs to a different shard or grid; that is a range error.
func (s *Store) SearchForBreakpoint(ctx context.Context, ids []int64) (int, error) {
	last, ok, err := s.LastIndex(ctx)
	if err != nil {
		return 0, err
	}
	if !ok {
		return -1, nil
	}
	for i, id := range ids {
		if id == last {
			return i, nil
		}
	}
	return 0, model.Rangef("last committed node %d is not part of this shard; breakpoint cannot be found", last)
}

// CommittedIDs returns the set of node ids present in the parameters table.
func (s *Store) CommittedIDs(ctx context.Context) (*roaring64.Bitmap, error) {
	return committedIDs(ctx, s.db, "main")
}

func committedIDs(ctx context.Context, q querier, schemaName string) (*roaring64.Bitmap, error) {
	rows, err := q.QueryContext(ctx, fmt.Sprintf("SELECT id FROM %s.parameters", schemaName))
	if err != nil {
		return nil, fmt.Errorf("read committed ids: %w", err)
	}
	defer rows.Close()

	bm := roaring64.New()
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan committed id: %w", err)
		}
		if id < 0 {
			return nil, model.Storage("read committed ids", fmt.Errorf("negative node id %d", id))
		}
		bm.Add(uint64(id))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate committed ids: %w", err)
	}
	return bm, nil
}

// Counts returns the number of rows in the parameters and curves tables.
func (s *Store) Counts(ctx context.Context) (parameters, curves int64, err error) {
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM parameters`).Scan(&parameters); err != nil {
		return 0, 0, fmt.Errorf("count parameters: %w", err)
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM curves`).Scan(&curves); err != nil {
		return 0, 0, fmt.Errorf("count curves: %w", err)
	}
	return parameters, curves, nil
}

// Curves returns the stored light curves of node id keyed by passband name.
func (s *Store) Curves(ctx context.Context, id int64) (map[string][]float64, error) {
	cols := "id"
	for _, p := range s.layout.Passbands {
		cols += ", " + p.Column
	}
	row := s.db.QueryRowContext(ctx, fmt.Sprintf("SELECT %s FROM curves WHERE id = ?", cols), id)

	var gotID int64
	blobs := make([][]byte, len(s.layout.Passbands))
	dest := make([]any, 0, len(blobs)+1)
	dest = append(dest, &gotID)
	for i := range blobs {
		dest = append(dest, &blobs[i])
	}
	if err := row.Scan(dest...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.Rangef("node %d has no stored curves", id)
		}
		return nil, fmt.Errorf("read curves of node %d: %w", id, err)
	}

	out := make(map[string][]float64, len(blobs))
	for i, p := range s.layout.Passbands {
		flux, err := DecodeCurve(blobs[i])
		if err != nil {
			return nil, fmt.Errorf("read curves of node %d, passband %q: %w", id, p.Name, err)
		}
		out[p.Name] = flux
	}
	return out, nil
}
