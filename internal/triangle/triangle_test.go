package triangle

import (
	"strings"
	"testing"

	"github.com/opensource-finance/heron/internal/domain"
)

func claim(accident, report string, incurred, paid, reserve float64) domain.ClaimRecord {
	return domain.ClaimRecord{
		"claimnumber":         "C-1",
		"policyeffectivedate": accident,
		"note_date":           report,
		"totalincurred":       incurred,
		"paidtotal":           paid,
		"reservetotal":        reserve,
	}
}

func TestBuildSingleCell(t *testing.T) {
	table := domain.ClaimsTable{
		claim("2022-01-01", "2022-03-01", 1000, 600, 400),
		claim("2022-02-01", "2022-04-01", 2000, 1000, 1000),
	}

	res := Build(table)
	if res.Error != "" {
		t.Fatalf("Build error: %s", res.Error)
	}

	// 59 days -> 2 dev months -> round(2/12)=0 -> dev year 1.
	got := res.IncurredTriangle.Data[2022][1]
	if got != 3000 {
		t.Errorf("incurred[2022][1] = %v, want 3000", got)
	}
	if res.PaidTriangle.Data[2022][1] != 1600 {
		t.Errorf("paid[2022][1] = %v, want 1600", res.PaidTriangle.Data[2022][1])
	}
	if res.CountTriangle.Data[2022][1] != 2 {
		t.Errorf("count[2022][1] = %v, want 2", res.CountTriangle.Data[2022][1])
	}
	if res.IncurredTriangle.Structure != Structure {
		t.Errorf("structure = %q", res.IncurredTriangle.Structure)
	}
}

func TestBuildDevelopmentPeriods(t *testing.T) {
	// 400 days -> 13 dev months -> round(13/12)=1 -> dev year 2.
	table := domain.ClaimsTable{
		claim("2021-01-01", "2022-02-05", 5000, 2500, 2500),
		claim("2021-06-01", "2021-06-10", 1000, 500, 500),
	}

	res := Build(table)
	if res.Error != "" {
		t.Fatalf("Build error: %s", res.Error)
	}

	if res.IncurredTriangle.Data[2021][2] != 5000 {
		t.Errorf("incurred[2021][2] = %v, want 5000", res.IncurredTriangle.Data[2021][2])
	}
	if res.IncurredTriangle.Data[2021][1] != 1000 {
		t.Errorf("incurred[2021][1] = %v, want 1000", res.IncurredTriangle.Data[2021][1])
	}

	md := res.Metadata
	if len(md.AccidentYears) != 1 || md.AccidentYears[0] != 2021 {
		t.Errorf("accident_years = %v", md.AccidentYears)
	}
	if len(md.DevelopmentYears) != 2 || md.DevelopmentYears[0] != 1 || md.DevelopmentYears[1] != 2 {
		t.Errorf("development_years = %v", md.DevelopmentYears)
	}
}

func TestBuildZeroFill(t *testing.T) {
	table := domain.ClaimsTable{
		claim("2020-01-01", "2020-02-01", 1000, 0, 0),
		claim("2021-01-01", "2022-06-01", 2000, 0, 0),
	}

	res := Build(table)
	if res.Error != "" {
		t.Fatalf("Build error: %s", res.Error)
	}

	// 2020 has no dev-year-2 observation; the pivot must still carry a
	// zero cell.
	v, ok := res.IncurredTriangle.Data[2020][2]
	if !ok {
		t.Fatal("missing zero-filled cell [2020][2]")
	}
	if v != 0 {
		t.Errorf("zero-filled cell = %v, want 0", v)
	}
}

func TestBuildFiltersInvalidRows(t *testing.T) {
	table := domain.ClaimsTable{
		claim("2022-01-01", "2022-03-01", 1000, 0, 0),
		claim("not-a-date", "2022-03-01", 1000, 0, 0),
		claim("2022-05-01", "2022-03-01", 1000, 0, 0), // accident after report
		claim("2022-01-01", "2022-03-01", 0, 0, 0),    // no incurred
		claim("2022-01-01", "2022-03-01", -50, 0, 0),
	}

	res := Build(table)
	if res.Error != "" {
		t.Fatalf("Build error: %s", res.Error)
	}
	if got := len(res.TriangleData); got != 1 {
		t.Fatalf("triangle_data rows = %d, want 1", got)
	}
	if res.TriangleData[0].ClaimCount != 1 {
		t.Errorf("claim count = %d, want 1", res.TriangleData[0].ClaimCount)
	}
}

func TestBuildAliasedDateColumn(t *testing.T) {
	table := domain.ClaimsTable{
		{
			"policyeffectivedate": "2022-01-01",
			"lossdate":            "2022-03-01",
			"totalincurred":       1500.0,
		},
	}

	res := Build(table)
	if res.Error != "" {
		t.Fatalf("Build error: %s", res.Error)
	}
	if res.IncurredTriangle.Data[2022][1] != 1500 {
		t.Errorf("incurred[2022][1] = %v, want 1500", res.IncurredTriangle.Data[2022][1])
	}
}

func TestBuildEmptyInput(t *testing.T) {
	res := Build(nil)
	if res.Error == "" {
		t.Fatal("expected error for empty input")
	}
}

func TestBuildAllRowsInvalid(t *testing.T) {
	table := domain.ClaimsTable{
		claim("bad", "2022-03-01", 1000, 0, 0),
	}
	res := Build(table)
	if !strings.Contains(res.Error, "no valid data") {
		t.Errorf("error = %q, want no-valid-data", res.Error)
	}
}

func TestBuildMissingColumns(t *testing.T) {
	table := domain.ClaimsTable{
		{"paidtotal": 100.0},
	}
	res := Build(table)
	if res.Error == "" {
		t.Fatal("expected error for missing required columns")
	}
}
