// Package engine holds the error kinds and small helpers shared by the
// feature, classify, forecast, and anomaly subsystems.
package engine

import (
	"errors"
	"fmt"

	"github.com/nsightlabs/spendintel/internal/model"
)

// ErrModelNotTrained is returned by inference calls that have no
// artifact to work against.
var ErrModelNotTrained = errors.New("model not trained")

// InsufficientTrainingDataError reports that a training set is too small
// or too skewed to fit. It carries the counts a caller needs to
// remediate and retry.
type InsufficientTrainingDataError struct {
	Kind          model.ModelKind
	Samples       int
	MinSamples    int
	Labels        int
	MinLabels     int
	SmallestLabel string
	SmallestCount int
	MinPerLabel   int
}

func (e *InsufficientTrainingDataError) Error() string {
	if e.Labels < e.MinLabels {
		return fmt.Sprintf("%s: insufficient training data: %d distinct labels, need %d",
			e.Kind, e.Labels, e.MinLabels)
	}
	if e.SmallestLabel != "" {
		return fmt.Sprintf("%s: insufficient training data: label %q has %d samples, need %d",
			e.Kind, e.SmallestLabel, e.SmallestCount, e.MinPerLabel)
	}
	return fmt.Sprintf("%s: insufficient training data: %d samples, need %d",
		e.Kind, e.Samples, e.MinSamples)
}

// SchemaMismatchError reports feature-shape drift between the schema an
// artifact was trained with and the vector presented at inference.
type SchemaMismatchError struct {
	Kind            model.ModelKind
	ExpectedVersion string
	ActualVersion   string
	ExpectedWidth   int
	ActualWidth     int
}

func (e *SchemaMismatchError) Error() string {
	return fmt.Sprintf("%s: feature schema mismatch: expected version %s width %d, got version %s width %d",
		e.Kind, e.ExpectedVersion, e.ExpectedWidth, e.ActualVersion, e.ActualWidth)
}

// UnknownGroupError reports a forecast request for a group no artifact
// has been trained for.
type UnknownGroupError struct {
	Group model.GroupKey
}

func (e *UnknownGroupError) Error() string {
	return fmt.Sprintf("unknown group %s: no forecasting artifact trained", e.Group)
}

// NoArtifactError reports a registry miss for the latest artifact of a
// kind (and group, for forecasting).
type NoArtifactError struct {
	Kind  model.ModelKind
	Group *model.GroupKey
}

func (e *NoArtifactError) Error() string {
	if e.Group != nil {
		return fmt.Sprintf("no %s artifact available for group %s", e.Kind, e.Group)
	}
	return fmt.Sprintf("no %s artifact available", e.Kind)
}

// VersionNotFoundError reports an exact version lookup miss.
type VersionNotFoundError struct {
	Kind      model.ModelKind
	VersionID string
}

func (e *VersionNotFoundError) Error() string {
	return fmt.Sprintf("%s artifact version %s not found", e.Kind, e.VersionID)
}
