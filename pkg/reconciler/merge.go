package reconciler

import (
	"github.com/agentstation/pubmap/pkg/constants"
	"github.com/agentstation/pubmap/pkg/errors"
	"github.com/agentstation/pubmap/pkg/table"
)

// MergeReport describes what Merge produced.
type MergeReport struct {
	Matched         int // reference rows with at least one incoming row
	Joined          int // rows produced by the join, before any drop
	DroppedEmpty    int // rows with no bundle_id or domain on either side
	ExactDuplicates int
}

// Merge left-joins reference to incoming on publication_id.
//
// For every joined row bundle_id and domain take the incoming value when the
// incoming cell is non-null and fall back to the reference value otherwise.
// Present empty strings count as values. A reference row matching several
// incoming rows yields one row per match, in incoming order. Rows left with
// no bundle_id and no domain are dropped, then exact duplicates are removed.
//
// The output keeps the reference columns and the reference row order. Both
// tables must carry all key columns.
func Merge(reference, incoming *table.Table) (*table.Table, MergeReport, error) {
	var report MergeReport
	if err := requireKeyColumns("reference", reference); err != nil {
		return nil, report, err
	}
	if err := requireKeyColumns("incoming", incoming); err != nil {
		return nil, report, err
	}

	index := make(map[string][]table.Row, len(incoming.Rows))
	for _, r := range incoming.Rows {
		if id, ok := r.Get(constants.ColumnPublicationID); ok {
			index[id] = append(index[id], r)
		}
	}

	out := table.New(reference.Columns...)
	seen := make(map[string]bool, len(reference.Rows))
	emit := func(row table.Row) {
		report.Joined++
		if row.IsNull(constants.ColumnBundleID) && row.IsNull(constants.ColumnDomain) {
			report.DroppedEmpty++
			return
		}
		key := table.Key(row, out.Columns)
		if seen[key] {
			report.ExactDuplicates++
			return
		}
		seen[key] = true
		out.Rows = append(out.Rows, row)
	}

	for _, ref := range reference.Rows {
		var matches []table.Row
		if id, ok := ref.Get(constants.ColumnPublicationID); ok {
			matches = index[id]
		}
		if len(matches) == 0 {
			emit(ref.Clone())
			continue
		}
		report.Matched++
		for _, in := range matches {
			row := ref.Clone()
			overlay(row, in, constants.ColumnBundleID)
			overlay(row, in, constants.ColumnDomain)
			emit(row)
		}
	}

	return out, report, nil
}

// overlay copies column from src into dst when src holds a value.
func overlay(dst, src table.Row, column string) {
	if v, ok := src.Get(column); ok {
		dst[column] = v
	}
}

func requireKeyColumns(resource string, t *table.Table) error {
	for _, col := range KeyColumns {
		if !t.HasColumn(col) {
			return errors.NewMissingColumnError(resource, col)
		}
	}
	return nil
}
