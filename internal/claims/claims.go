// Package claims normalizes raw claim tables before analysis: resolving
// column aliases from upstream extracts and assembling free-text blobs.
package claims

import (
	"fmt"
	"sort"
	"strings"

	"github.com/opensource-finance/heron/internal/domain"
)

// columnAliases maps a canonical column to the upstream names it may
// arrive under. First present alias wins.
var columnAliases = map[string][]string{
	"note_date":   {"lossdate", "loss_date", "date_of_loss", "accident_dt", "accident_date"},
	"report_date": {"reportdate", "report_dt", "date_reported", "reported_date"},
}

// Normalize returns a copy of the table in which every required column
// is present, resolving missing columns through the alias map. Source
// records are never mutated. An error names every column that stays
// missing after aliasing.
func Normalize(table domain.ClaimsTable, required ...string) (domain.ClaimsTable, error) {
	if len(table) == 0 {
		return nil, fmt.Errorf("no claims data provided")
	}

	// Resolve each missing required column to an available alias.
	resolved := make(map[string]string)
	var missing []string
	for _, col := range required {
		if table.HasColumn(col) {
			continue
		}
		found := ""
		for _, alias := range columnAliases[col] {
			if table.HasColumn(alias) {
				found = alias
				break
			}
		}
		if found == "" {
			missing = append(missing, col)
			continue
		}
		resolved[col] = found
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, fmt.Errorf("missing required columns: %s", strings.Join(missing, ", "))
	}
	if len(resolved) == 0 {
		return table, nil
	}

	out := make(domain.ClaimsTable, len(table))
	for i, rec := range table {
		clone := rec.Clone()
		for col, alias := range resolved {
			if v, ok := clone[alias]; ok {
				clone[col] = v
			}
		}
		out[i] = clone
	}
	return out, nil
}

// Text lowercases and joins the named free-text fields of a record,
// skipping absent ones. Scorers match keywords against this blob.
func Text(rec domain.ClaimRecord, fields ...string) string {
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		if s := rec.Str(f); s != "" {
			parts = append(parts, strings.ToLower(s))
		}
	}
	return strings.Join(parts, " ")
}
