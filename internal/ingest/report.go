package ingest

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"infra-registry/internal/importexport"
)

// Summary counts results by object type and result type.
type Summary struct {
	Source   string                        `json:"source"`
	Started  time.Time                     `json:"started"`
	Finished time.Time                     `json:"finished"`
	Update   bool                          `json:"update"`
	Counts   map[string]map[ResultType]int `json:"counts"`
	Errors   []Result                      `json:"errors"`
}

func Summarize(results []Result) Summary {
	s := Summary{Counts: map[string]map[ResultType]int{}, Errors: []Result{}}
	for _, r := range results {
		if s.Counts[r.ObjectType] == nil {
			s.Counts[r.ObjectType] = map[ResultType]int{}
		}
		s.Counts[r.ObjectType][r.ResultType]++
		if r.ResultType == ResultError {
			s.Errors = append(s.Errors, r)
		}
	}
	return s
}

// ResultDataset lists results sorted by object type, keeping row order
// within a type.
func ResultDataset(results []Result) *importexport.Dataset {
	sorted := make([]Result, len(results))
	copy(sorted, results)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].ObjectType < sorted[j].ObjectType })

	ds := importexport.NewDataset([]string{"result_type", "object_type", "object_id", "reason"})
	for _, r := range sorted {
		ds.Append(map[string]string{
			"result_type": string(r.ResultType),
			"object_type": r.ObjectType,
			"object_id":   r.ObjectID,
			"reason":      r.Reason,
		})
	}
	return ds
}

// WriteReport stores a JSON summary and an XLSX result sheet in dir and
// returns their paths.
func WriteReport(dir, prefix string, summary Summary, results []Result) (string, string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", "", fmt.Errorf("failed to create report directory: %w", err)
	}
	stamp := summary.Started.UTC().Format("20060102T150405")
	jsonPath := filepath.Join(dir, fmt.Sprintf("%s-%s.json", prefix, stamp))
	xlsxPath := filepath.Join(dir, fmt.Sprintf("%s-%s.xlsx", prefix, stamp))

	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return "", "", err
	}
	if err := os.WriteFile(jsonPath, data, 0o644); err != nil {
		return "", "", fmt.Errorf("failed to write summary: %w", err)
	}

	f, err := os.Create(xlsxPath)
	if err != nil {
		return "", "", fmt.Errorf("failed to create result sheet: %w", err)
	}
	defer f.Close()
	if err := ResultDataset(results).WriteXLSX(f); err != nil {
		return "", "", err
	}
	return jsonPath, xlsxPath, nil
}
