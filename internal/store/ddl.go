package store

import (
	"context"
	"database/sql"
	"fmt"
	"slices"
	"strings"

	"github.com/mirofedurco/EB-gridmaker/internal/model"
	"github.com/mirofedurco/EB-gridmaker/internal/schema"
)

// BlobType is the declared type of curve columns.
const BlobType = "BLOB"

// DDL returns the CREATE TABLE statements for the parameters and curves tables
// of layout. Column names come from schema, which only admits identifiers.
func DDL(layout schema.Layout) []string {
	params := make([]string, 0, len(layout.Parameters)+2)
	params = append(params, "id INTEGER NOT NULL")
	for _, c := range layout.Parameters {
		params = append(params, c.Name+" "+c.Type)
	}
	params = append(params, "PRIMARY KEY (id)")

	curves := make([]string, 0, len(layout.Passbands)+2)
	curves = append(curves, "id INTEGER NOT NULL")
	for _, p := range layout.Passbands {
		curves = append(curves, p.Column+" "+BlobType)
	}
	curves = append(curves, "FOREIGN KEY (id) REFERENCES parameters (id)")

	return []string{
		createTable("parameters", params),
		createTable("curves", curves),
	}
}

func createTable(name string, defs []string) string {
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n    %s\n)", name, strings.Join(defs, ",\n    "))
}

func insertParametersSQL(layout schema.Layout) string {
	cols := make([]string, 0, len(layout.Parameters)+1)
	cols = append(cols, "id")
	for _, c := range layout.Parameters {
		cols = append(cols, c.Name)
	}
	return insertSQL("parameters", cols)
}

func insertCurvesSQL(layout schema.Layout) string {
	cols := make([]string, 0, len(layout.Passbands)+1)
	cols = append(cols, "id")
	for _, p := range layout.Passbands {
		cols = append(cols, p.Column)
	}
	return insertSQL("curves", cols)
}

func insertSQL(table string, cols []string) string {
	holders := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", table, strings.Join(cols, ", "), holders)
}

// tableColumns returns the column names of table in declaration order.
// schemaName is "main" or the name of an attached database.
func tableColumns(ctx context.Context, q querier, schemaName, table string) ([]string, error) {
	rows, err := q.QueryContext(ctx, fmt.Sprintf("PRAGMA %s.table_info(%s)", schemaName, table))
	if err != nil {
		return nil, fmt.Errorf("read %s.%s columns: %w", schemaName, table, err)
	}
	defer rows.Close()

	var cols []string
	for rows.Next() {
		var (
			cid       int
			name, typ string
			notNull   int
			dflt      sql.NullString
			pk        int
		)
		if err := rows.Scan(&cid, &name, &typ, &notNull, &dflt, &pk); err != nil {
			return nil, fmt.Errorf("scan %s.%s columns: %w", schemaName, table, err)
		}
		cols = append(cols, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s.%s columns: %w", schemaName, table, err)
	}
	return cols, nil
}

// querier is satisfied by *sql.DB, *sql.Conn and *sql.Tx.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// checkLayout verifies that the parameters and curves tables have exactly the
// columns of layout, in order.
func checkLayout(db *sql.DB, schemaName string, layout schema.Layout) error {
	ctx := context.Background()

	want := []string{"id"}
	for _, c := range layout.Parameters {
		want = append(want, c.Name)
	}
	got, err := tableColumns(ctx, db, schemaName, "parameters")
	if err != nil {
		return err
	}
	if !slices.Equal(got, want) {
		return model.Storage("parameters table layout mismatch",
			fmt.Errorf("file has %v, configuration expects %v", got, want))
	}

	want = []string{"id"}
	for _, p := range layout.Passbands {
		want = append(want, p.Column)
	}
	got, err = tableColumns(ctx, db, schemaName, "curves")
	if err != nil {
		return err
	}
	if !slices.Equal(got, want) {
		return model.Storage("curves table layout mismatch",
			fmt.Errorf("file has %v, configuration expects %v", got, want))
	}
	return nil
}
