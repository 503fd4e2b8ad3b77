package model

import (
	"encoding/json"
	"time"
)

// ModelKind identifies which subsystem an artifact belongs to.
type ModelKind string

// Artifact kinds.
const (
	KindCategorization ModelKind = "categorization"
	KindForecasting    ModelKind = "forecasting"
	KindAnomaly        ModelKind = "anomaly"
)

// FeatureSchema is the ordered feature layout fitted at training time and
// carried inside every artifact. Inference vectors are checked against it
// so train/serve skew surfaces as a hard error instead of a silent
// wrong-shaped result.
//
// The vector layout is: numeric features, then one column per vocabulary
// term, then department one-hots plus an unknown bucket, then currency
// one-hots plus an unknown bucket.
type FeatureSchema struct {
	Version     string   `json:"version"`
	Numeric     []string `json:"numeric"`
	Terms       []string `json:"terms"`
	Departments []string `json:"departments"`
	Currencies  []string `json:"currencies"`
}

// Width returns the total vector width, including the unknown buckets.
func (s FeatureSchema) Width() int {
	return len(s.Numeric) + len(s.Terms) + len(s.Departments) + 1 + len(s.Currencies) + 1
}

// FeatureNames returns the ordered name of every vector column.
func (s FeatureSchema) FeatureNames() []string {
	names := make([]string, 0, s.Width())
	names = append(names, s.Numeric...)
	for _, t := range s.Terms {
		names = append(names, "term:"+t)
	}
	for _, d := range s.Departments {
		names = append(names, "dept:"+d)
	}
	names = append(names, "dept:unknown")
	for _, c := range s.Currencies {
		names = append(names, "cur:"+c)
	}
	names = append(names, "cur:unknown")
	return names
}

// FeatureVector is a transient projection of one expense record against a
// fitted schema. It is recomputed on demand and never persisted apart
// from the record it derives from.
type FeatureVector struct {
	Values        []float64
	RawText       string
	Currency      Currency
	Group         GroupKey
	SchemaVersion string
}

// CandidateScore holds cross-validation results for one candidate
// algorithm during categorization training.
type CandidateScore struct {
	Name         string  `json:"name"`
	CVMean       float64 `json:"cv_mean"`
	CVStd        float64 `json:"cv_std"`
	TestAccuracy float64 `json:"test_accuracy"`
	TrainMillis  int64   `json:"train_ms"`
}

// TrainingMetrics records how an artifact was produced. Categorization
// fills the candidate table; forecasting fills residual stats, seasonal
// factors, and the fallback marker; anomaly fills the sample count only.
type TrainingMetrics struct {
	Candidates  []CandidateScore `json:"candidates,omitempty"`
	Selected    string           `json:"selected,omitempty"`
	LabelCounts map[string]int   `json:"label_counts,omitempty"`

	ResidualStd     float64   `json:"residual_std,omitempty"`
	Buckets         int       `json:"buckets,omitempty"`
	Fallback        string    `json:"fallback,omitempty"`
	SeasonalFactors []float64 `json:"seasonal_factors,omitempty"`
}

// ModelArtifact is a trained, versioned, immutable model bundle. A new
// training run always produces a new artifact; existing versions are
// never mutated. Params is the winner's serialized parameters, opaque to
// everything except the subsystem that wrote it.
type ModelArtifact struct {
	Kind         ModelKind
	VersionID    string
	Group        *GroupKey // set for forecasting artifacts only
	Params       json.RawMessage
	Schema       FeatureSchema
	Metrics      TrainingMetrics
	TrainingSize int
	CreatedAt    time.Time
}
