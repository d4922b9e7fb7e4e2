package reconciler

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/agentstation/pubmap/pkg/constants"
	"github.com/agentstation/pubmap/pkg/errors"
	"github.com/agentstation/pubmap/pkg/table"
)

// KeyColumns are the columns every table must carry after normalization.
var KeyColumns = []string{
	constants.ColumnPublicationID,
	constants.ColumnBundleID,
	constants.ColumnDomain,
}

// NullPolicy decides what a missing key value becomes during normalization.
type NullPolicy string

const (
	// NullKeep leaves missing key values null.
	NullKeep NullPolicy = "keep"

	// NullAsNaN writes the literal "nan" for missing key values. Sheets filled by
	// the previous generation of this pipeline hold that marker, and a run that
	// must compare against them needs to produce it too.
	NullAsNaN NullPolicy = "nan"
)

// ParseNullPolicy parses a configured policy name.
func ParseNullPolicy(s string) (NullPolicy, error) {
	switch p := NullPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case "", NullKeep:
		return NullKeep, nil
	case NullAsNaN:
		return NullAsNaN, nil
	default:
		return "", errors.NewValidationError("null_policy", s, fmt.Sprintf("must be %q or %q", NullKeep, NullAsNaN))
	}
}

// DefaultAliases maps the column names found in incoming reports to the
// canonical key column names. Keys are already lower-cased and trimmed.
func DefaultAliases() map[string]string {
	return map[string]string{
		"publication id":  constants.ColumnPublicationID,
		"bundle id":       constants.ColumnBundleID,
		"publication url": constants.ColumnDomain,
	}
}

// Normalizer canonicalizes column names and key values.
type Normalizer struct {
	aliases map[string]string
	policy  NullPolicy
}

// NewNormalizer creates a Normalizer. A nil alias map uses DefaultAliases.
func NewNormalizer(policy NullPolicy, aliases map[string]string) *Normalizer {
	if aliases == nil {
		aliases = DefaultAliases()
	}
	if policy == "" {
		policy = NullKeep
	}
	return &Normalizer{aliases: aliases, policy: policy}
}

// Column returns the canonical name of a raw column header.
func (n *Normalizer) Column(raw string) string {
	name := HeaderName(raw)
	if alias, ok := n.aliases[name]; ok {
		return alias
	}
	return name
}

// Normalize returns a normalized copy of t. resource names the table in errors.
// Two source columns that end up with the same name are a StructuralError.
// Normalizing an already normalized table yields an identical table.
func (n *Normalizer) Normalize(resource string, t *table.Table) (*table.Table, error) {
	renamed := make([]string, len(t.Columns))
	origin := make(map[string]string, len(t.Columns))
	for i, raw := range t.Columns {
		name := n.Column(raw)
		if prev, dup := origin[name]; dup {
			return nil, &errors.StructuralError{
				Resource: resource,
				Column:   name,
				Message:  fmt.Sprintf("columns %q and %q both normalize to the same name", prev, raw),
			}
		}
		origin[name] = raw
		renamed[i] = name
	}

	out := table.New(renamed...)
	out.Rows = make([]table.Row, 0, len(t.Rows))
	for _, r := range t.Rows {
		row := make(table.Row, len(r))
		for i, raw := range t.Columns {
			if v, ok := r[raw]; ok {
				row[renamed[i]] = v
			}
		}
		n.keyValues(out, row)
		out.Rows = append(out.Rows, row)
	}
	return out, nil
}

func (n *Normalizer) keyValues(t *table.Table, row table.Row) {
	for _, col := range KeyColumns {
		if !t.HasColumn(col) {
			continue
		}
		if v, ok := row[col]; ok {
			row[col] = strings.TrimSpace(v)
		} else if n.policy == NullAsNaN {
			row[col] = constants.NaN
		}
	}
}

// HeaderName lower-cases and trims a header cell.
func HeaderName(raw string) string {
	return cases.Lower(language.Und).String(strings.TrimSpace(raw))
}

// NormalizeSchema lower-cases and trims every name of an append tab header.
func NormalizeSchema(header []string) []string {
	out := make([]string, len(header))
	for i, h := range header {
		out[i] = HeaderName(h)
	}
	return out
}
