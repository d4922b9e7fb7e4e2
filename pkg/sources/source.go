// Package sources defines the ingestion side of the pipeline: where incoming
// datasets come from. A Source looks for the newest dataset it can offer and
// returns it as a parsed table together with an identity used to avoid
// processing the same dataset twice.
//
// Example usage:
//
//	ds, err := src.Fetch(ctx)
//	if errors.Is(err, sources.ErrNoDataset) {
//	    // nothing new to process
//	}
package sources

import (
	"context"
	"errors"
	"slices"
	"time"

	"github.com/agentstation/pubmap/pkg/table"
)

// ErrNoDataset is returned by Fetch when the source holds nothing to process.
var ErrNoDataset = errors.New("no dataset available")

// ID represents the identifier of a data source.
type ID string

// String returns the string representation of a source name.
func (id ID) String() string {
	return string(id)
}

// Known source kinds.
const (
	MailboxID ID = "mailbox"
	LocalID   ID = "local"
)

// IDs returns all available source kinds.
func IDs() []ID {
	return []ID{MailboxID, LocalID}
}

// IsValid returns true if the ID is one of the defined constants.
func (id ID) IsValid() bool {
	return slices.Contains(IDs(), id)
}

// Dataset is one incoming table together with its identity.
type Dataset struct {
	// ID identifies the dataset across polls. Equal IDs mean the same data.
	ID string

	// Name is the original file name of the attachment or file.
	Name string

	// ReceivedAt is when the dataset arrived, when known.
	ReceivedAt time.Time

	// Path is the local copy of the file, if one was written.
	Path string

	// Table holds the parsed rows with the file's own column names.
	Table *table.Table
}

// Source represents an origin of incoming datasets.
type Source interface {
	// ID returns the kind of this source
	ID() ID

	// Fetch returns the newest dataset, or ErrNoDataset.
	Fetch(ctx context.Context) (*Dataset, error)

	// Cleanup releases any resources held by the source.
	Cleanup() error
}
