package reconciler

import (
	"slices"

	"github.com/agentstation/pubmap/pkg/errors"
	"github.com/agentstation/pubmap/pkg/table"
)

// Adapt reshapes merged rows to the append tab's schema: exactly the schema's
// columns, in its order. Missing columns and null cells become "", extra
// columns are dropped. The schema is used as given; see NormalizeSchema.
func Adapt(merged *table.Table, schema []string) (*table.Table, error) {
	if len(schema) == 0 || !slices.ContainsFunc(schema, func(s string) bool { return s != "" }) {
		return nil, errors.NewStructuralError("target", "", "append tab has no header row")
	}

	out := table.New(schema...)
	out.Rows = make([]table.Row, len(merged.Rows))
	for i, r := range merged.Rows {
		row := make(table.Row, len(schema))
		for _, col := range schema {
			row[col] = r[col]
		}
		out.Rows[i] = row
	}
	return out, nil
}
