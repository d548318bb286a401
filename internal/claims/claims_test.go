package claims

import (
	"strings"
	"testing"

	"github.com/opensource-finance/heron/internal/domain"
)

func TestNormalizeResolvesAliases(t *testing.T) {
	table := domain.ClaimsTable{
		{"lossdate": "2023-01-15", "totalincurred": 5000.0},
		{"lossdate": "2023-02-20", "totalincurred": 7500.0},
	}

	out, err := Normalize(table, "note_date", "totalincurred")
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}

	for i, rec := range out {
		if got := rec.Str("note_date"); got != table[i].Str("lossdate") {
			t.Errorf("record %d: note_date = %q, want %q", i, got, table[i].Str("lossdate"))
		}
	}

	// Source must stay untouched.
	if _, ok := table[0]["note_date"]; ok {
		t.Error("Normalize mutated the source table")
	}
}

func TestNormalizeAliasPrecedence(t *testing.T) {
	table := domain.ClaimsTable{
		{"loss_date": "2023-03-01", "accident_date": "2023-04-01"},
	}

	out, err := Normalize(table, "note_date")
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if got := out[0].Str("note_date"); got != "2023-03-01" {
		t.Errorf("note_date = %q, want first-listed alias value %q", got, "2023-03-01")
	}
}

func TestNormalizeMissingColumns(t *testing.T) {
	table := domain.ClaimsTable{
		{"paidtotal": 100.0},
	}

	_, err := Normalize(table, "note_date", "totalincurred")
	if err == nil {
		t.Fatal("expected error for unresolvable columns")
	}
	for _, col := range []string{"note_date", "totalincurred"} {
		if !strings.Contains(err.Error(), col) {
			t.Errorf("error %q does not name missing column %s", err, col)
		}
	}
}

func TestNormalizeEmptyTable(t *testing.T) {
	if _, err := Normalize(nil, "note_date"); err == nil {
		t.Fatal("expected error for empty table")
	}
}

func TestNormalizeNoResolutionNeeded(t *testing.T) {
	table := domain.ClaimsTable{
		{"note_date": "2023-01-01"},
	}
	out, err := Normalize(table, "note_date")
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if &out[0] != &table[0] {
		// Same backing table is fine when nothing changed; a copy is
		// also fine. Only the values matter.
		if out[0].Str("note_date") != "2023-01-01" {
			t.Error("note_date lost during no-op normalization")
		}
	}
}

func TestText(t *testing.T) {
	rec := domain.ClaimRecord{
		"clm_text":     "Attorney LETTER received",
		"claimsummary": "Suspicious Pattern",
		"absent":       nil,
	}
	got := Text(rec, "clm_text", "claimsummary", "absent", "missing")
	want := "attorney letter received suspicious pattern"
	if got != want {
		t.Errorf("Text = %q, want %q", got, want)
	}
}
