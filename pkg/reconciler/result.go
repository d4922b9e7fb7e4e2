package reconciler

import (
	"fmt"
	"time"

	"github.com/agentstation/pubmap/pkg/table"
)

// Result represents the outcome of a reconciliation.
type Result struct {
	// Reference is the cleaned reference table to write back to its tab.
	Reference *table.Table

	// Merged holds the joined rows in reference columns, before schema adaptation.
	Merged *table.Table

	// Append holds the rows to publish, shaped to the append tab's schema.
	Append *table.Table

	// DuplicateIDs lists the publication IDs removed from the reference.
	DuplicateIDs []string

	Metadata ResultMetadata
}

// ResultMetadata contains metadata about the reconciliation process.
type ResultMetadata struct {
	StartTime time.Time
	EndTime   time.Time
	Duration  time.Duration
	Stats     ResultStatistics
}

// ResultStatistics contains row counts for each stage.
type ResultStatistics struct {
	IncomingRows         int
	ReferenceRows        int
	DuplicateIDRows      int
	ReferenceDuplicates  int
	MatchedRows          int
	DroppedEmpty         int
	MergedDuplicates     int
	CleanedReferenceRows int
	AppendRows           int
}

// HasAppend reports whether there is anything to publish.
func (r *Result) HasAppend() bool {
	return r.Append.Len() > 0
}

// Summary returns a human-readable summary of the result.
func (r *Result) Summary() string {
	s := r.Metadata.Stats
	summary := fmt.Sprintf("%d rows to append (%d incoming, %d reference, %d matched)",
		s.AppendRows, s.IncomingRows, s.ReferenceRows, s.MatchedRows)
	if s.DuplicateIDRows > 0 {
		summary += fmt.Sprintf(", %d reference rows removed for %d duplicate IDs",
			s.DuplicateIDRows, len(r.DuplicateIDs))
	}
	if s.DroppedEmpty > 0 {
		summary += fmt.Sprintf(", %d rows without bundle or domain dropped", s.DroppedEmpty)
	}
	return summary
}
