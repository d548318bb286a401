// Command-line client for Heron claims analytics.
//
// Usage:
//   heronctl analyze score_fraud --input claims.csv
//   heronctl analyze all --input claims.csv
//   heronctl analyze calculate_reserves --input claims.json --server http://localhost:8080
//
// With --server the claims are uploaded as a dataset and analyzed by a
// running Heron instance; without it the analysis runs in-process and
// the result is printed to stdout.
package main

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/opensource-finance/heron/internal/analysis"
	"github.com/opensource-finance/heron/internal/domain"
	"github.com/opensource-finance/heron/internal/fraud"
)

// Version is set via ldflags.
var Version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:     "heronctl",
		Short:   "Claims analytics from the command line",
		Version: Version,
	}

	root.PersistentFlags().String("server", "", "Heron server URL (empty = run locally)")
	root.PersistentFlags().String("tenant", "cli", "tenant ID for server requests")

	viper.SetEnvPrefix("HERON")
	viper.AutomaticEnv()
	_ = viper.BindPFlag("server", root.PersistentFlags().Lookup("server"))
	_ = viper.BindPFlag("tenant", root.PersistentFlags().Lookup("tenant"))

	root.AddCommand(newAnalyzeCmd())
	root.AddCommand(newOperationsCmd())
	return root
}

func newOperationsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "operations",
		Short: "List supported analysis operations",
		Run: func(cmd *cobra.Command, args []string) {
			for _, op := range domain.Operations() {
				fmt.Println(op)
			}
		},
	}
}

func newAnalyzeCmd() *cobra.Command {
	var input string

	cmd := &cobra.Command{
		Use:   "analyze <operation|all>",
		Short: "Run one or all analyses over a claims file (CSV or JSON)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var ops []domain.Operation
			if args[0] == "all" {
				ops = domain.Operations()
			} else {
				op, err := domain.ParseOperation(args[0])
				if err != nil {
					return err
				}
				ops = []domain.Operation{op}
			}

			claims, err := loadClaims(input)
			if err != nil {
				return err
			}

			server := viper.GetString("server")
			if server == "" {
				return analyzeLocal(ops, claims)
			}
			return analyzeRemote(server, viper.GetString("tenant"), ops, claims)
		},
	}

	cmd.Flags().StringVarP(&input, "input", "i", "", "claims file (.csv or .json)")
	_ = cmd.MarkFlagRequired("input")
	return cmd
}

// loadClaims reads a claims table from a CSV or JSON file. CSV headers
// are lowercased to match the engine's column names; values stay as
// strings and are coerced by the engines.
func loadClaims(path string) (domain.ClaimsTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		var table domain.ClaimsTable
		if err := json.Unmarshal(data, &table); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		return table, nil

	case ".csv":
		return parseCSV(bytes.NewReader(data))

	default:
		return nil, fmt.Errorf("unsupported file type: %s", path)
	}
}

func parseCSV(r io.Reader) (domain.ClaimsTable, error) {
	reader := csv.NewReader(r)

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read CSV header: %w", err)
	}
	for i, col := range header {
		header[i] = strings.ToLower(strings.TrimSpace(col))
	}

	var table domain.ClaimsTable
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read CSV row: %w", err)
		}

		rec := make(domain.ClaimRecord, len(header))
		for i, col := range header {
			if i >= len(row) {
				break
			}
			if v := strings.TrimSpace(row[i]); v != "" {
				rec[col] = v
			}
		}
		table = append(table, rec)
	}

	return table, nil
}

// analyzeLocal runs the operations in-process and prints the result.
// A single operation prints its result directly; multiple operations
// print an object keyed by operation name.
func analyzeLocal(ops []domain.Operation, claims domain.ClaimsTable) error {
	rules, err := fraud.NewRuleSet()
	if err != nil {
		return err
	}
	engine := analysis.NewEngine(domain.FraudConfig{}, domain.LitigationConfig{}, domain.MonitoringConfig{}, rules, nil)

	results := make(map[string]any, len(ops))
	for _, op := range ops {
		result, err := engine.Run(op, claims)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		results[string(op)] = result
	}

	var out []byte
	if len(ops) == 1 {
		out, err = json.MarshalIndent(results[string(ops[0])], "", "  ")
	} else {
		out, err = json.MarshalIndent(results, "", "  ")
	}
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

// analyzeRemote uploads the claims as a dataset and runs the operations
// on the server.
func analyzeRemote(server, tenantID string, ops []domain.Operation, claims domain.ClaimsTable) error {
	client := &http.Client{Timeout: 120 * time.Second}
	base := strings.TrimRight(server, "/")

	// 1. Upload the dataset
	upload, err := json.Marshal(map[string]any{
		"name":   fmt.Sprintf("heronctl-%s", time.Now().UTC().Format("20060102150405")),
		"claims": claims,
	})
	if err != nil {
		return err
	}

	var created struct {
		ID string `json:"id"`
	}
	if err := postJSON(client, base+"/datasets", tenantID, upload, http.StatusCreated, &created); err != nil {
		return fmt.Errorf("upload dataset: %w", err)
	}
	fmt.Fprintf(os.Stderr, "uploaded dataset %s (%d claims)\n", created.ID, len(claims))

	// 2. Run the analyses
	results := make(map[string]json.RawMessage, len(ops))
	for _, op := range ops {
		var resp struct {
			AnalysisID string          `json:"analysisId"`
			Cached     bool            `json:"cached"`
			Result     json.RawMessage `json:"result"`
		}
		url := fmt.Sprintf("%s/datasets/%s/analyze/%s", base, created.ID, op)
		if err := postJSON(client, url, tenantID, nil, http.StatusOK, &resp); err != nil {
			return fmt.Errorf("run %s: %w", op, err)
		}
		fmt.Fprintf(os.Stderr, "analysis %s complete (operation=%s cached=%v)\n", resp.AnalysisID, op, resp.Cached)
		results[string(op)] = resp.Result
	}

	var raw []byte
	if len(ops) == 1 {
		raw = results[string(ops[0])]
	} else {
		raw, err = json.Marshal(results)
		if err != nil {
			return err
		}
	}

	var pretty bytes.Buffer
	if err := json.Indent(&pretty, raw, "", "  "); err != nil {
		fmt.Println(string(raw))
		return nil
	}
	fmt.Println(pretty.String())
	return nil
}

func postJSON(client *http.Client, url, tenantID string, body []byte, wantStatus int, out any) error {
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Tenant-ID", tenantID)

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode != wantStatus {
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}
	return json.Unmarshal(data, out)
}
