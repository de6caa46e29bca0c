// Package stats computes robustness statistics over per-run metric
// records: mean, sample standard deviation, coefficient of variation, and
// a qualitative tier per metric.
package stats

import (
	"fmt"
	"math"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/agentlab/gauntlet/internal/config"
	"github.com/agentlab/gauntlet/internal/metrics"
)

type Tier string

const (
	TierExcellent    Tier = "excellent"
	TierGood         Tier = "good"
	TierModerate     Tier = "moderate"
	TierPoor         Tier = "poor"
	TierInsufficient Tier = "insufficient-data"
	TierUndefined    Tier = "undefined"
)

// Key identifies one aggregation group.
type Key struct {
	Architecture string
	Condition    string
}

func (k Key) String() string {
	return k.Architecture + "/" + k.Condition
}

// MetricStat is the robustness statistics for one metric within a group.
type MetricStat struct {
	Mean float64
	Std  float64
	CV   float64
	Min  float64
	Max  float64
	Tier Tier
}

// AggregateStat holds the per-metric statistics for one
// (architecture, condition) group. Samples is always at least 1.
type AggregateStat struct {
	Key         Key
	Samples     int
	SuccessRate MetricStat
	AvgTime     MetricStat
	AvgSteps    MetricStat
	AvgTokens   MetricStat
}

// TierFor buckets a CV percentage using the configured thresholds.
func TierFor(cv float64, th config.Thresholds) Tier {
	switch {
	case cv < th.Excellent:
		return TierExcellent
	case cv < th.Good:
		return TierGood
	case cv < th.Moderate:
		return TierModerate
	default:
		return TierPoor
	}
}

func Mean(values []float64) float64 {
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// SampleStd is the Bessel-corrected standard deviation (divisor n-1).
// Fewer than two samples yields 0.
func SampleStd(values []float64, mean float64) float64 {
	if len(values) < 2 {
		return 0
	}
	var varsum float64
	for _, v := range values {
		d := v - mean
		varsum += d * d
	}
	return math.Sqrt(varsum / float64(len(values)-1))
}

func metricStat(values []float64, th config.Thresholds) MetricStat {
	mean := Mean(values)
	std := SampleStd(values, mean)
	min, max := values[0], values[0]
	for _, v := range values[1:] {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	s := MetricStat{Mean: mean, Std: std, Min: min, Max: max}
	switch {
	case mean == 0:
		// CV is undefined at zero mean no matter how many samples exist.
		s.Tier = TierUndefined
	case len(values) < 2:
		s.Tier = TierInsufficient
	default:
		s.CV = std / mean * 100
		s.Tier = TierFor(s.CV, th)
	}
	return s
}

// Aggregate groups records by (architecture, condition) and computes the
// statistics for each group. It is a pure function of its inputs; group
// computations run in parallel since no group shares state with another.
// Aggregating zero records is an error, never a zero-valued stat.
func Aggregate(records []metrics.MetricRecord, th config.Thresholds) (map[Key]*AggregateStat, error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("no metric records to aggregate")
	}

	groups := map[Key][]metrics.MetricRecord{}
	for _, r := range records {
		k := Key{Architecture: r.Architecture, Condition: string(r.Condition)}
		groups[k] = append(groups[k], r)
	}

	out := make(map[Key]*AggregateStat, len(groups))
	var g errgroup.Group
	g.SetLimit(runtime.NumCPU())
	for k, recs := range groups {
		slot := &AggregateStat{Key: k, Samples: len(recs)}
		out[k] = slot
		g.Go(func() error {
			rates := make([]float64, len(recs))
			times := make([]float64, len(recs))
			steps := make([]float64, len(recs))
			tokens := make([]float64, len(recs))
			for i, r := range recs {
				rates[i] = r.SuccessRate
				times[i] = r.AvgTime
				steps[i] = r.AvgSteps
				tokens[i] = r.AvgTokens
			}
			slot.SuccessRate = metricStat(rates, th)
			slot.AvgTime = metricStat(times, th)
			slot.AvgSteps = metricStat(steps, th)
			slot.AvgTokens = metricStat(tokens, th)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// SortedKeys returns the group keys in (architecture, condition) order so
// emitted output never depends on map iteration order.
func SortedKeys(aggs map[Key]*AggregateStat) []Key {
	keys := make([]Key, 0, len(aggs))
	for k := range aggs {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Architecture != keys[j].Architecture {
			return keys[i].Architecture < keys[j].Architecture
		}
		return keys[i].Condition < keys[j].Condition
	})
	return keys
}
