// Package pipeline wires the engine subsystems to the model registry:
// training runs end in a saved artifact version, inference runs start
// from the latest one. It is the synchronous entry point the
// orchestration layer calls; there is no background scheduling here.
package pipeline

import (
	"errors"
	"fmt"

	"github.com/nsightlabs/spendintel/internal/config"
	"github.com/nsightlabs/spendintel/internal/engine"
	"github.com/nsightlabs/spendintel/internal/engine/anomaly"
	"github.com/nsightlabs/spendintel/internal/engine/classify"
	"github.com/nsightlabs/spendintel/internal/engine/feature"
	"github.com/nsightlabs/spendintel/internal/engine/forecast"
	"github.com/nsightlabs/spendintel/internal/model"
	"github.com/nsightlabs/spendintel/internal/registry"
)

// Engine bundles the registry and configuration the subsystem calls
// need. All methods are safe for concurrent use: inference reads
// immutable artifacts, training appends new versions.
type Engine struct {
	Registry *registry.Registry
	Config   config.Config
}

// TrainCategorizer trains the categorization model on the labeled subset
// of records and commits the artifact. Records without a category are
// skipped; they are what the model exists to label.
func (e *Engine) TrainCategorizer(records []model.ExpenseRecord) (*model.ModelArtifact, error) {
	var labeled []model.ExpenseRecord
	for _, r := range records {
		if r.HasCategory() {
			labeled = append(labeled, r)
		}
	}

	opts := classify.DefaultTrainOptions()
	opts.MinSamples = e.Config.Training.MinSamples
	opts.MinClassSamples = e.Config.Training.MinClassSamples
	opts.CVFolds = e.Config.Training.CVFolds

	art, err := classify.Train(labeled, classify.DefaultCandidates(), opts)
	if err != nil {
		return nil, err
	}
	if _, err := e.Registry.Save(art); err != nil {
		return nil, fmt.Errorf("saving categorization artifact: %w", err)
	}
	return art, nil
}

// Categorize predicts a category and confidence for every record using
// the latest categorization artifact. Results are order-preserving and
// identical to predicting records one at a time. Records are never
// mutated; persisting predicted categories is the caller's decision, and
// an explicitly supplied category must never be overwritten.
func (e *Engine) Categorize(records []model.ExpenseRecord) ([]model.Prediction, error) {
	art, err := e.Registry.LoadLatest(model.KindCategorization, nil)
	if err != nil {
		var miss *engine.NoArtifactError
		if errors.As(err, &miss) {
			return nil, engine.ErrModelNotTrained
		}
		return nil, err
	}
	return classify.PredictBatch(records, art)
}

// TrainForecasters fits one forecasting artifact per populated group and
// commits each. Returns the trained groups.
func (e *Engine) TrainForecasters(records []model.ExpenseRecord) ([]model.GroupKey, error) {
	opts := forecast.TrainOptions{MinBuckets: e.Config.Forecast.MinBuckets}

	var trained []model.GroupKey
	for key, group := range feature.GroupRecords(records) {
		series := feature.BucketMonthly(group, key)
		art, err := forecast.Train(series, key, opts)
		if err != nil {
			return trained, fmt.Errorf("training forecaster for %s: %w", key, err)
		}
		if _, err := e.Registry.Save(art); err != nil {
			return trained, fmt.Errorf("saving forecasting artifact for %s: %w", key, err)
		}
		trained = append(trained, key)
	}
	return trained, nil
}

// ForecastGroup forecasts the given group over a horizon of monthly
// buckets, using the group's latest artifact. A group nothing was
// trained for fails with UnknownGroupError.
func (e *Engine) ForecastGroup(key model.GroupKey, horizon int) (model.ForecastResult, error) {
	art, err := e.Registry.LoadLatest(model.KindForecasting, &key)
	if err != nil {
		var miss *engine.NoArtifactError
		if errors.As(err, &miss) {
			return model.ForecastResult{}, &engine.UnknownGroupError{Group: key}
		}
		return model.ForecastResult{}, err
	}
	return forecast.Forecast(art, horizon)
}

// FitDetector fits the anomaly detector over all records and commits the
// artifact.
func (e *Engine) FitDetector(records []model.ExpenseRecord) (*model.ModelArtifact, error) {
	opts := anomaly.DefaultFitOptions()
	opts.Trees = e.Config.Anomaly.Trees
	opts.Subsample = e.Config.Anomaly.Subsample
	opts.Seed = e.Config.Anomaly.Seed

	art, err := anomaly.Fit(records, opts)
	if err != nil {
		return nil, err
	}
	if _, err := e.Registry.Save(art); err != nil {
		return nil, fmt.Errorf("saving anomaly artifact: %w", err)
	}
	return art, nil
}

// DetectAnomalies scores records against the latest detector artifact
// and returns severity-ranked flags at or above threshold.
func (e *Engine) DetectAnomalies(records []model.ExpenseRecord, threshold float64) ([]model.AnomalyFlag, error) {
	art, err := e.Registry.LoadLatest(model.KindAnomaly, nil)
	if err != nil {
		var miss *engine.NoArtifactError
		if errors.As(err, &miss) {
			return nil, engine.ErrModelNotTrained
		}
		return nil, err
	}
	return anomaly.Detect(records, art, threshold)
}
