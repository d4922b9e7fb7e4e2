package reconciler

import (
	"slices"

	"github.com/agentstation/pubmap/pkg/constants"
	"github.com/agentstation/pubmap/pkg/errors"
	"github.com/agentstation/pubmap/pkg/table"
)

// DedupeReport describes what Deduplicate removed.
type DedupeReport struct {
	// DuplicateIDs lists each publication_id that occurred more than once, sorted.
	// A shared null ID is reported as "".
	DuplicateIDs []string

	// DuplicateIDRows is the number of rows removed because their ID repeated.
	DuplicateIDRows int

	// ExactDuplicates is the number of identical rows removed afterwards.
	ExactDuplicates int
}

// Deduplicate removes every row whose publication_id occurs more than once,
// keeping none of them, then removes exact duplicate rows keeping the first.
// Rows that survive are returned unmodified and in their original order.
// Null IDs share a single key.
func Deduplicate(resource string, t *table.Table) (*table.Table, DedupeReport, error) {
	var report DedupeReport
	if !t.HasColumn(constants.ColumnPublicationID) {
		return nil, report, errors.NewMissingColumnError(resource, constants.ColumnPublicationID)
	}

	counts := make(map[string]int, len(t.Rows))
	for _, r := range t.Rows {
		counts[idKey(r)]++
	}

	out := table.New(t.Columns...)
	seen := make(map[string]bool, len(t.Rows))
	for _, r := range t.Rows {
		if counts[idKey(r)] > 1 {
			report.DuplicateIDRows++
			continue
		}
		key := table.Key(r, t.Columns)
		if seen[key] {
			report.ExactDuplicates++
			continue
		}
		seen[key] = true
		out.Rows = append(out.Rows, r)
	}

	for key, n := range counts {
		if n > 1 {
			report.DuplicateIDs = append(report.DuplicateIDs, idValue(key))
		}
	}
	slices.Sort(report.DuplicateIDs)

	return out, report, nil
}

// idKey keeps a null ID apart from an ID that happens to be the empty string.
func idKey(r table.Row) string {
	if v, ok := r[constants.ColumnPublicationID]; ok {
		return "=" + v
	}
	return "null"
}

func idValue(key string) string {
	if key == "null" {
		return ""
	}
	return key[1:]
}
