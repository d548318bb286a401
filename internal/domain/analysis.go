package domain

import (
	"fmt"
	"time"

	json "github.com/goccy/go-json"
)

// Operation identifies one analytics operation. The set is closed:
// dispatch happens over an exhaustive switch, and unknown names are
// rejected at the boundary instead of falling through to a default.
type Operation string

const (
	OpBuildTriangles     Operation = "build_triangles"
	OpCalculateReserves  Operation = "calculate_reserves"
	OpScoreFraud         Operation = "score_fraud"
	OpDetectLitigation   Operation = "detect_litigation"
	OpAnalyzeRisk        Operation = "analyze_risk"
	OpMonitorDevelopment Operation = "monitor_development"
)

// Operations lists every supported operation in a stable order.
func Operations() []Operation {
	return []Operation{
		OpBuildTriangles,
		OpCalculateReserves,
		OpScoreFraud,
		OpDetectLitigation,
		OpAnalyzeRisk,
		OpMonitorDevelopment,
	}
}

// ParseOperation validates an operation name from the wire.
func ParseOperation(s string) (Operation, error) {
	op := Operation(s)
	switch op {
	case OpBuildTriangles, OpCalculateReserves, OpScoreFraud,
		OpDetectLitigation, OpAnalyzeRisk, OpMonitorDevelopment:
		return op, nil
	default:
		return "", fmt.Errorf("unknown operation: %q", s)
	}
}

// Dataset is an uploaded claims table held for analysis.
type Dataset struct {
	ID        string      `json:"id"`
	TenantID  string      `json:"tenantId"`
	Name      string      `json:"name"`
	RowCount  int         `json:"rowCount"`
	Claims    ClaimsTable `json:"claims,omitempty"`
	CreatedAt time.Time   `json:"createdAt"`
}

// Analysis is a stored result of running one operation on a dataset.
type Analysis struct {
	ID        string          `json:"id"`
	TenantID  string          `json:"tenantId"`
	DatasetID string          `json:"datasetId"`
	Operation Operation       `json:"operation"`
	Result    json.RawMessage `json:"result"`
	CreatedAt time.Time       `json:"createdAt"`
}
