package services

import (
	"fmt"
	"strings"

	"github.com/montanaflynn/stats"
)

// ColumnStats holds the locally computed profile of one column. Numeric
// aggregates are only present when the column held at least one number.
type ColumnStats struct {
	Name          string
	NonEmpty      int
	Missing       int
	Distinct      int
	NumericValues int
	Min           float64
	Max           float64
	Mean          float64
	Median        float64
	StdDev        float64
}

// ComputeColumnStats profiles every column of the cleaned dataset.
// These numbers are fed into the summary prompt so the model grounds its
// per-column statistics instead of estimating them.
func ComputeColumnStats(ds *NormalizedDataset) []ColumnStats {
	out := make([]ColumnStats, 0, len(ds.Headers))
	for _, header := range ds.Headers {
		cs := ColumnStats{Name: header}
		distinct := make(map[string]struct{})
		var numbers []float64
		for _, record := range ds.Records {
			v := record[header]
			if v == nil {
				cs.Missing++
				continue
			}
			cs.NonEmpty++
			distinct[fmt.Sprintf("%v", v)] = struct{}{}
			if n, ok := v.(float64); ok {
				numbers = append(numbers, n)
			}
		}
		cs.Distinct = len(distinct)
		cs.NumericValues = len(numbers)
		if len(numbers) > 0 {
			cs.Min, _ = stats.Min(numbers)
			cs.Max, _ = stats.Max(numbers)
			cs.Mean, _ = stats.Mean(numbers)
			cs.Median, _ = stats.Median(numbers)
			cs.StdDev, _ = stats.StandardDeviation(numbers)
		}
		out = append(out, cs)
	}
	return out
}

// FormatColumnStats renders the profile as the plain-text block embedded
// in the summary prompt.
func FormatColumnStats(columns []ColumnStats) string {
	var b strings.Builder
	for _, cs := range columns {
		fmt.Fprintf(&b, "- %s: %d values, %d missing, %d distinct",
			cs.Name, cs.NonEmpty, cs.Missing, cs.Distinct)
		if cs.NumericValues > 0 {
			fmt.Fprintf(&b, "; numeric (n=%d) min=%.4g max=%.4g mean=%.4g median=%.4g stddev=%.4g",
				cs.NumericValues, cs.Min, cs.Max, cs.Mean, cs.Median, cs.StdDev)
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
