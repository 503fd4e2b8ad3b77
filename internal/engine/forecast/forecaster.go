// Package forecast fits per-group spending trend models over bucketed
// time series and projects point estimates with confidence bands. Each
// (department, category, currency) group has an independent artifact;
// amounts never cross currencies.
package forecast

import (
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/nsightlabs/spendintel/internal/engine"
	"github.com/nsightlabs/spendintel/internal/engine/feature"
	"github.com/nsightlabs/spendintel/internal/model"
)

// TrainOptions bounds forecast fitting.
type TrainOptions struct {
	// MinBuckets is the history needed to fit a trend. Groups with
	// fewer buckets get a flat-mean fallback instead of an error.
	MinBuckets int
}

// DefaultTrainOptions returns the standard fitting bounds.
func DefaultTrainOptions() TrainOptions {
	return TrainOptions{MinBuckets: 3}
}

// fallbackFlatMean marks artifacts fitted below the trend threshold.
const fallbackFlatMean = "flat_mean"

// params is the serialized model for one group: a least squares line
// over bucket index, the residual spread that sizes the bands, and one
// seasonal factor per calendar month.
type params struct {
	Slope       float64     `json:"slope"`
	Intercept   float64     `json:"intercept"`
	Mean        float64     `json:"mean"`
	ResidualStd float64     `json:"residual_std"`
	Buckets     int         `json:"buckets"`
	LastBucket  time.Time   `json:"last_bucket"`
	Flat        bool        `json:"flat"`
	Seasonal    [12]float64 `json:"seasonal"`
}

// Train fits one group's series. An empty series is a quantity failure;
// a short series degrades to a flat-mean forecast recorded in the
// artifact metrics rather than failing.
func Train(series []feature.SeriesPoint, key model.GroupKey, opts TrainOptions) (*model.ModelArtifact, error) {
	if opts.MinBuckets <= 0 {
		opts.MinBuckets = DefaultTrainOptions().MinBuckets
	}
	if len(series) == 0 {
		return nil, &engine.InsufficientTrainingDataError{
			Kind:       model.KindForecasting,
			Samples:    0,
			MinSamples: 1,
		}
	}

	p := fit(series, opts.MinBuckets)

	metrics := model.TrainingMetrics{
		ResidualStd:     p.ResidualStd,
		Buckets:         p.Buckets,
		SeasonalFactors: p.Seasonal[:],
	}
	if p.Flat {
		metrics.Fallback = fallbackFlatMean
	}

	raw, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("serializing forecast params: %w", err)
	}

	group := key
	return &model.ModelArtifact{
		Kind:         model.KindForecasting,
		VersionID:    uuid.NewString(),
		Group:        &group,
		Params:       raw,
		Metrics:      metrics,
		TrainingSize: len(series),
		CreatedAt:    time.Now().UTC(),
	}, nil
}

func fit(series []feature.SeriesPoint, minBuckets int) params {
	n := len(series)
	p := params{
		Buckets:    n,
		LastBucket: series[n-1].Bucket,
		Seasonal:   seasonalFactors(series),
	}

	var sum float64
	for _, pt := range series {
		sum += pt.Total
	}
	p.Mean = sum / float64(n)

	if n < minBuckets {
		p.Flat = true
		p.ResidualStd = residualStd(series, func(int) float64 { return p.Mean })
		return p
	}

	// Least squares over bucket index
	var sumX, sumY, sumXY, sumX2 float64
	for i, pt := range series {
		x := float64(i)
		sumX += x
		sumY += pt.Total
		sumXY += x * pt.Total
		sumX2 += x * x
	}
	fn := float64(n)
	denom := fn*sumX2 - sumX*sumX
	if denom == 0 {
		p.Flat = true
		p.ResidualStd = residualStd(series, func(int) float64 { return p.Mean })
		return p
	}
	p.Slope = (fn*sumXY - sumX*sumY) / denom
	p.Intercept = (sumY - p.Slope*sumX) / fn
	p.ResidualStd = residualStd(series, func(i int) float64 {
		return p.Slope*float64(i) + p.Intercept
	})
	return p
}

// seasonalFactors computes per-calendar-month spending factors: the
// month's mean bucket total relative to the overall mean. Zero-total
// gap buckets carry no seasonal signal and are skipped; months never
// observed with spend stay at 1.
func seasonalFactors(series []feature.SeriesPoint) [12]float64 {
	var factors [12]float64
	for i := range factors {
		factors[i] = 1
	}

	monthSum := make(map[time.Month]float64)
	monthN := make(map[time.Month]int)
	var sum float64
	n := 0
	for _, pt := range series {
		if pt.Total <= 0 {
			continue
		}
		m := pt.Bucket.Month()
		monthSum[m] += pt.Total
		monthN[m]++
		sum += pt.Total
		n++
	}
	if n == 0 {
		return factors
	}

	overall := sum / float64(n)
	for m, s := range monthSum {
		factors[m-1] = (s / float64(monthN[m])) / overall
	}
	return factors
}

func residualStd(series []feature.SeriesPoint, fitted func(i int) float64) float64 {
	var ss float64
	for i, pt := range series {
		r := pt.Total - fitted(i)
		ss += r * r
	}
	return math.Sqrt(ss / float64(len(series)))
}

// Forecast projects the group's fitted model over a positive horizon of
// future buckets. Each point is scaled by its calendar month's seasonal
// factor before banding. Bands come from the training residual spread,
// widened with distance; a constant history has factors of 1 and zero
// residuals, so the band collapses onto the constant. Band width is
// never negative and forecasts never go below zero spend.
func Forecast(art *model.ModelArtifact, horizon int) (model.ForecastResult, error) {
	if art == nil || art.Kind != model.KindForecasting || art.Group == nil {
		return model.ForecastResult{}, engine.ErrModelNotTrained
	}
	if horizon <= 0 {
		return model.ForecastResult{}, fmt.Errorf("horizon must be positive, got %d", horizon)
	}

	var p params
	if err := json.Unmarshal(art.Params, &p); err != nil {
		return model.ForecastResult{}, fmt.Errorf("decoding forecast params: %w", err)
	}

	result := model.ForecastResult{
		Group:  *art.Group,
		Points: make([]model.ForecastPoint, 0, horizon),
	}
	for step := 1; step <= horizon; step++ {
		var point float64
		if p.Flat {
			point = p.Mean
		} else {
			point = p.Slope*float64(p.Buckets-1+step) + p.Intercept
		}

		bucket := p.LastBucket.AddDate(0, step, 0)
		point *= p.Seasonal[bucket.Month()-1]
		point = math.Max(point, 0)

		// Uncertainty grows with distance from the training history
		margin := 1.96 * p.ResidualStd * (1 + 0.1*float64(step))
		result.Points = append(result.Points, model.ForecastPoint{
			Bucket: bucket,
			Point:  point,
			Lower:  math.Max(point-margin, 0),
			Upper:  point + margin,
		})
	}
	return result, nil
}
