package store

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/mirofedurco/EB-gridmaker/internal/model"
)

// InsertObservation commits one evaluated node: its parameters row, its curves
// row and the resume marker, in a single transaction. Either all three become
// visible or none does.
//
// Inserting a node that is already stored fails with a storage error (primary
// key violation) and leaves the database unchanged.
func (s *Store) InsertObservation(ctx context.Context, obs model.Observation) error {
	params := make([]any, 0, len(s.layout.Parameters)+1)
	params = append(params, obs.ID)
	for _, c := range s.layout.Parameters {
		params = append(params, c.Value(obs))
	}

	curves := make([]any, 0, len(s.layout.Passbands)+1)
	curves = append(curves, obs.ID)
	for _, p := range s.layout.Passbands {
		flux, ok := obs.Fluxes[p.Name]
		if !ok {
			return fmt.Errorf("insert observation %d: missing curve for passband %q", obs.ID, p.Name)
		}
		curves = append(curves, EncodeCurve(flux))
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("insert observation: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	if _, err := tx.ExecContext(ctx, s.insertParameters, params...); err != nil {
		return model.Storage(fmt.Sprintf("insert parameters for node %d", obs.ID), err)
	}
	if _, err := tx.ExecContext(ctx, s.insertCurves, curves...); err != nil {
		return model.Storage(fmt.Sprintf("insert curves for node %d", obs.ID), err)
	}
	if _, err := tx.ExecContext(ctx,
		`REPLACE INTO auxiliary (_rowid_, last_index) VALUES (0, ?)`, obs.ID); err != nil {
		return fmt.Errorf("insert observation: update last index: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("insert observation: commit: %w", err)
	}
	return nil
}

// EncodeCurve packs a light curve as consecutive little-endian float64 values.
func EncodeCurve(flux []float64) []byte {
	buf := make([]byte, 8*len(flux))
	for i, v := range flux {
		binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(v))
	}
	return buf
}

// DecodeCurve unpacks a blob written by EncodeCurve.
func DecodeCurve(blob []byte) ([]float64, error) {
	if len(blob)%8 != 0 {
		return nil, fmt.Errorf("curve blob length %d is not a multiple of 8", len(blob))
	}
	out := make([]float64, len(blob)/8)
	for i := range out {
		out[i] = math.Float64frombits(binary.LittleEndian.Uint64(blob[i*8:]))
	}
	return out, nil
}
