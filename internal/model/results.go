package model

import "time"

// Prediction is the categorization output for one record. The caller
// decides whether to persist the category; the input record is never
// mutated and an explicitly supplied category is never overwritten.
type Prediction struct {
	Category   string
	Confidence float64
}

// ForecastPoint is one future bucket of a forecast: the point estimate
// and its confidence band, in the group's currency.
type ForecastPoint struct {
	Bucket time.Time
	Point  float64
	Lower  float64
	Upper  float64
}

// ForecastResult is the ordered horizon forecast for one group. It is
// recomputed on each request and never persisted.
type ForecastResult struct {
	Group  GroupKey
	Points []ForecastPoint
}

// AnomalyFlag marks one expense as unusual. Severity is in [0,1], higher
// meaning more anomalous. Reason names the feature dimension that
// contributed most to the score.
type AnomalyFlag struct {
	RecordIndex     int
	SourceID        string
	Date            time.Time
	Amount          float64
	Group           GroupKey
	Severity        float64
	Reason          string
	DetectorVersion string
}

// Anomaly reason tags.
const (
	ReasonAmountOutlier  = "amount outlier"
	ReasonUnusualVendor  = "unusual vendor for department"
	ReasonUnusualTiming  = "unusual timing"
	ReasonUnusualPattern = "unusual spending pattern"
)
