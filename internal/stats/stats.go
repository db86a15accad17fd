package stats

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/inferbench/bench-server/internal/types"
)

var ErrNoSamples = errors.New("no samples")

// Percentile returns the q-quantile of samples using linear interpolation
// between closest ranks. The input is not mutated; q is clamped to [0, 1].
func Percentile(samples []float64, q float64) (float64, error) {
	if len(samples) == 0 {
		return 0, ErrNoSamples
	}

	if q < 0 {
		q = 0
	} else if q > 1 {
		q = 1
	}

	sorted := make([]float64, len(samples))
	copy(sorted, samples)
	sort.Float64s(sorted)

	idx := float64(len(sorted)-1) * q
	lo := int(math.Floor(idx))
	hi := int(math.Ceil(idx))
	if lo == hi {
		return sorted[lo], nil
	}

	frac := idx - float64(lo)
	return sorted[lo] + (sorted[hi]-sorted[lo])*frac, nil
}

// Aggregate flattens repeated samples into the three metric series and
// summarizes each. Raw values keep collection order; everything is rounded to
// one decimal for display stability.
func Aggregate(samples []types.MeasurementSample) (*types.Metrics, error) {
	if len(samples) == 0 {
		return nil, ErrNoSamples
	}

	var load, first, subsequent []float64
	for _, s := range samples {
		load = append(load, s.LoadMS)
		first = append(first, s.FirstInferMS)
		subsequent = append(subsequent, s.SubsequentInferMS...)
	}

	metrics := &types.Metrics{}
	for _, series := range []struct {
		name   string
		values []float64
		out    *types.MetricSummary
	}{
		{"load_ms", load, &metrics.LoadMS},
		{"first_infer_ms", first, &metrics.FirstInferMS},
		{"subsequent_infer_ms", subsequent, &metrics.SubsequentInferMS},
	} {
		summary, err := summarize(series.values)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", series.name, err)
		}
		*series.out = summary
	}

	return metrics, nil
}

func summarize(series []float64) (types.MetricSummary, error) {
	p50, err := Percentile(series, 0.5)
	if err != nil {
		return types.MetricSummary{}, err
	}

	p90, err := Percentile(series, 0.9)
	if err != nil {
		return types.MetricSummary{}, err
	}

	raw := make([]float64, len(series))
	for i, v := range series {
		raw[i] = Round1(v)
	}

	return types.MetricSummary{P50: Round1(p50), P90: Round1(p90), Raw: raw}, nil
}

// Round1 rounds to one decimal place.
func Round1(v float64) float64 {
	return math.Round(v*10) / 10
}
