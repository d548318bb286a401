// Package triangle builds incremental loss development triangles from
// claim tables: accident years as rows, development years as columns.
package triangle

import (
	"fmt"
	"math"
	"sort"

	"github.com/opensource-finance/heron/internal/claims"
	"github.com/opensource-finance/heron/internal/domain"
)

// Structure documents the orientation of every triangle table.
const Structure = "accident_years_as_rows_development_years_as_columns"

// avgDaysPerMonth converts day lags to development months.
const avgDaysPerMonth = 30.44

// Table is one pivoted triangle: accident year -> development year ->
// aggregated value, zero-filled cells omitted from the map.
type Table struct {
	Data      map[int]map[int]float64 `json:"data"`
	Structure string                  `json:"structure"`
}

// Cell is one aggregated (accident year, development year) group.
type Cell struct {
	AccidentYear     int     `json:"accident_year"`
	DevelopmentYears int     `json:"development_years"`
	TotalIncurred    float64 `json:"totalincurred"`
	PaidTotal        float64 `json:"paidtotal"`
	ReserveTotal     float64 `json:"reservetotal"`
	ClaimCount       int     `json:"claimnumber"`
}

// Metadata describes the axes of the triangles.
type Metadata struct {
	AccidentYears    []int  `json:"accident_years"`
	DevelopmentYears []int  `json:"development_years"`
	Description      string `json:"description"`
}

// Result is the triangle hand-off contract consumed by the reserving
// engine. On failure only Error is set.
type Result struct {
	Error            string    `json:"error,omitempty"`
	IncurredTriangle *Table    `json:"incurred_triangle,omitempty"`
	PaidTriangle     *Table    `json:"paid_triangle,omitempty"`
	ReserveTriangle  *Table    `json:"reserve_triangle,omitempty"`
	CountTriangle    *Table    `json:"count_triangle,omitempty"`
	TriangleData     []Cell    `json:"triangle_data,omitempty"`
	Metadata         *Metadata `json:"metadata,omitempty"`
}

type cellKey struct {
	accidentYear     int
	developmentYears int
}

// Build aggregates a claims table into incremental loss triangles.
// Rows with unparseable dates, non-positive incurred, or an accident
// date after the report date are dropped. Build never panics; any
// failure lands in the result's Error field.
func Build(table domain.ClaimsTable) (res *Result) {
	defer func() {
		if r := recover(); r != nil {
			res = &Result{Error: fmt.Sprintf("failed to construct loss triangle: %v", r)}
		}
	}()

	normalized, err := claims.Normalize(table, "policyeffectivedate", "note_date", "totalincurred")
	if err != nil {
		return &Result{Error: err.Error()}
	}

	cells := make(map[cellKey]*Cell)
	valid := 0
	for _, rec := range normalized {
		accident, ok := rec.Date("policyeffectivedate")
		if !ok {
			continue
		}
		report, ok := rec.Date("note_date")
		if !ok {
			continue
		}
		incurred := rec.Float("totalincurred")
		if incurred <= 0 || accident.After(report) {
			continue
		}
		valid++

		days := math.Floor(report.Sub(accident).Hours() / 24)
		devMonths := int(math.Round(days / avgDaysPerMonth))
		devYears := int(math.Round(float64(devMonths)/12)) + 1

		key := cellKey{accidentYear: accident.Year(), developmentYears: devYears}
		cell, ok := cells[key]
		if !ok {
			cell = &Cell{AccidentYear: key.accidentYear, DevelopmentYears: key.developmentYears}
			cells[key] = cell
		}
		cell.TotalIncurred += incurred
		cell.PaidTotal += rec.Float("paidtotal")
		cell.ReserveTotal += rec.Float("reservetotal")
		cell.ClaimCount++
	}

	if valid == 0 {
		return &Result{Error: "no valid data after date conversion"}
	}

	flat := make([]Cell, 0, len(cells))
	for _, c := range cells {
		flat = append(flat, *c)
	}
	sort.Slice(flat, func(i, j int) bool {
		if flat[i].AccidentYear != flat[j].AccidentYear {
			return flat[i].AccidentYear < flat[j].AccidentYear
		}
		return flat[i].DevelopmentYears < flat[j].DevelopmentYears
	})

	incurredT := newTable()
	paidT := newTable()
	reserveT := newTable()
	countT := newTable()

	yearSet := make(map[int]bool)
	devSet := make(map[int]bool)
	for _, c := range flat {
		yearSet[c.AccidentYear] = true
		devSet[c.DevelopmentYears] = true
	}
	accidentYears := sortedKeys(yearSet)
	developmentYears := sortedKeys(devSet)

	// Zero-fill so every triangle is rectangular over observed axes.
	for _, ay := range accidentYears {
		incurredT.Data[ay] = make(map[int]float64, len(developmentYears))
		paidT.Data[ay] = make(map[int]float64, len(developmentYears))
		reserveT.Data[ay] = make(map[int]float64, len(developmentYears))
		countT.Data[ay] = make(map[int]float64, len(developmentYears))
		for _, dy := range developmentYears {
			incurredT.Data[ay][dy] = 0
			paidT.Data[ay][dy] = 0
			reserveT.Data[ay][dy] = 0
			countT.Data[ay][dy] = 0
		}
	}
	for _, c := range flat {
		incurredT.Data[c.AccidentYear][c.DevelopmentYears] = c.TotalIncurred
		paidT.Data[c.AccidentYear][c.DevelopmentYears] = c.PaidTotal
		reserveT.Data[c.AccidentYear][c.DevelopmentYears] = c.ReserveTotal
		countT.Data[c.AccidentYear][c.DevelopmentYears] = float64(c.ClaimCount)
	}

	return &Result{
		IncurredTriangle: incurredT,
		PaidTriangle:     paidT,
		ReserveTriangle:  reserveT,
		CountTriangle:    countT,
		TriangleData:     flat,
		Metadata: &Metadata{
			AccidentYears:    accidentYears,
			DevelopmentYears: developmentYears,
			Description:      "Incremental triangles - accident years as rows, development years as columns",
		},
	}
}

func newTable() *Table {
	return &Table{
		Data:      make(map[int]map[int]float64),
		Structure: Structure,
	}
}

func sortedKeys(set map[int]bool) []int {
	keys := make([]int, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}
