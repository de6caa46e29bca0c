// Package report serializes metric records and aggregate statistics into
// the two tabular datasets plus human-readable summaries.
package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/agentlab/gauntlet/internal/metrics"
	"github.com/agentlab/gauntlet/internal/stats"
)

const (
	LongFormName = "datos_completos.csv"
	WideFormName = "tabla_resumen.csv"
)

var longHeader = []string{"architecture", "condition", "context", "success_rate", "avg_time", "avg_steps", "avg_tokens"}

var wideHeader = []string{
	"architecture", "condition",
	"success_mean", "success_std",
	"time_mean", "time_std",
	"steps_mean", "steps_std",
	"tokens_mean", "tokens_std",
}

func num(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// WriteLongForm writes one row per metric record, sorted by
// (architecture, condition, context). Column order is fixed; output is
// byte-identical for identical input.
func WriteLongForm(w io.Writer, records []metrics.MetricRecord) error {
	rows := append([]metrics.MetricRecord(nil), records...)
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Architecture != rows[j].Architecture {
			return rows[i].Architecture < rows[j].Architecture
		}
		if rows[i].Condition != rows[j].Condition {
			return rows[i].Condition < rows[j].Condition
		}
		return rows[i].ContextSeed < rows[j].ContextSeed
	})

	cw := csv.NewWriter(w)
	if err := cw.Write(longHeader); err != nil {
		return err
	}
	for _, r := range rows {
		err := cw.Write([]string{
			r.Architecture,
			string(r.Condition),
			strconv.Itoa(r.ContextSeed),
			num(r.SuccessRate),
			num(r.AvgTime),
			num(r.AvgSteps),
			num(r.AvgTokens),
		})
		if err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteWideForm writes one row per (architecture, condition) group, sorted
// by key.
func WriteWideForm(w io.Writer, aggs map[stats.Key]*stats.AggregateStat) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(wideHeader); err != nil {
		return err
	}
	for _, k := range stats.SortedKeys(aggs) {
		a := aggs[k]
		err := cw.Write([]string{
			k.Architecture,
			k.Condition,
			num(a.SuccessRate.Mean), num(a.SuccessRate.Std),
			num(a.AvgTime.Mean), num(a.AvgTime.Std),
			num(a.AvgSteps.Mean), num(a.AvgSteps.Std),
			num(a.AvgTokens.Mean), num(a.AvgTokens.Std),
		})
		if err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// EmitDatasets writes both CSV datasets under {runRoot}/reports.
func EmitDatasets(runRoot string, records []metrics.MetricRecord, aggs map[stats.Key]*stats.AggregateStat) (longPath, widePath string, err error) {
	dir := filepath.Join(runRoot, "reports")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", "", fmt.Errorf("creating reports dir: %w", err)
	}

	longPath = filepath.Join(dir, LongFormName)
	f, err := os.Create(longPath)
	if err != nil {
		return "", "", fmt.Errorf("creating %s: %w", LongFormName, err)
	}
	if err := WriteLongForm(f, records); err != nil {
		f.Close()
		return "", "", fmt.Errorf("writing %s: %w", LongFormName, err)
	}
	if err := f.Close(); err != nil {
		return "", "", err
	}

	widePath = filepath.Join(dir, WideFormName)
	f, err = os.Create(widePath)
	if err != nil {
		return "", "", fmt.Errorf("creating %s: %w", WideFormName, err)
	}
	if err := WriteWideForm(f, aggs); err != nil {
		f.Close()
		return "", "", fmt.Errorf("writing %s: %w", WideFormName, err)
	}
	if err := f.Close(); err != nil {
		return "", "", err
	}
	return longPath, widePath, nil
}

// WriteSummary renders the aggregate statistics in the requested format:
// table (default), markdown or json.
func WriteSummary(w io.Writer, format string, aggs map[stats.Key]*stats.AggregateStat) error {
	switch format {
	case "markdown":
		return writeMarkdown(aggs, w)
	case "json":
		return writeJSON(aggs, w)
	default:
		return writeTable(aggs, w)
	}
}

func writeTable(aggs map[stats.Key]*stats.AggregateStat, w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ARCHITECTURE\tCONDITION\tN\tSUCCESS\tCV\tTIER\tTIME\tSTEPS\tTOKENS")
	fmt.Fprintln(tw, strings.Repeat("-", 96))
	for _, k := range stats.SortedKeys(aggs) {
		a := aggs[k]
		fmt.Fprintf(tw, "%s\t%s\t%d\t%.1f%% ±%.2f\t%.2f%%\t%s\t%.2fs ±%.2f\t%.1f ±%.2f\t%.0f ±%.0f\n",
			k.Architecture, k.Condition, a.Samples,
			a.SuccessRate.Mean, a.SuccessRate.Std, a.SuccessRate.CV, a.SuccessRate.Tier,
			a.AvgTime.Mean, a.AvgTime.Std,
			a.AvgSteps.Mean, a.AvgSteps.Std,
			a.AvgTokens.Mean, a.AvgTokens.Std)
	}
	return tw.Flush()
}

func writeMarkdown(aggs map[stats.Key]*stats.AggregateStat, w io.Writer) error {
	fmt.Fprintln(w, "| Architecture | Condition | N | Success | CV | Tier | Time | Steps | Tokens |")
	fmt.Fprintln(w, "|---|---|---|---|---|---|---|---|---|")
	for _, k := range stats.SortedKeys(aggs) {
		a := aggs[k]
		fmt.Fprintf(w, "| %s | %s | %d | %.1f%% ±%.2f | %.2f%% | %s | %.2fs ±%.2f | %.1f ±%.2f | %.0f ±%.0f |\n",
			k.Architecture, k.Condition, a.Samples,
			a.SuccessRate.Mean, a.SuccessRate.Std, a.SuccessRate.CV, a.SuccessRate.Tier,
			a.AvgTime.Mean, a.AvgTime.Std,
			a.AvgSteps.Mean, a.AvgSteps.Std,
			a.AvgTokens.Mean, a.AvgTokens.Std)
	}
	return nil
}

type jsonMetric struct {
	Mean  float64    `json:"mean"`
	Std   float64    `json:"std"`
	CV    float64    `json:"cv"`
	Min   float64    `json:"min"`
	Max   float64    `json:"max"`
	Range float64    `json:"range"`
	Tier  stats.Tier `json:"tier"`
}

type jsonGroup struct {
	Architecture string     `json:"architecture"`
	Condition    string     `json:"condition"`
	Samples      int        `json:"samples"`
	SuccessRate  jsonMetric `json:"success_rate"`
	AvgTime      jsonMetric `json:"avg_time"`
	AvgSteps     jsonMetric `json:"avg_steps"`
	AvgTokens    jsonMetric `json:"avg_tokens"`
}

func toJSONMetric(m stats.MetricStat) jsonMetric {
	return jsonMetric{Mean: m.Mean, Std: m.Std, CV: m.CV, Min: m.Min, Max: m.Max, Range: m.Max - m.Min, Tier: m.Tier}
}

func writeJSON(aggs map[stats.Key]*stats.AggregateStat, w io.Writer) error {
	groups := make([]jsonGroup, 0, len(aggs))
	for _, k := range stats.SortedKeys(aggs) {
		a := aggs[k]
		groups = append(groups, jsonGroup{
			Architecture: k.Architecture,
			Condition:    k.Condition,
			Samples:      a.Samples,
			SuccessRate:  toJSONMetric(a.SuccessRate),
			AvgTime:      toJSONMetric(a.AvgTime),
			AvgSteps:     toJSONMetric(a.AvgSteps),
			AvgTokens:    toJSONMetric(a.AvgTokens),
		})
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(groups)
}
