package classify

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/nsightlabs/spendintel/internal/engine"
	"github.com/nsightlabs/spendintel/internal/model"
)

// labeledRecord builds a training record with distinctive vendor text per
// category.
func labeledRecord(t *testing.T, category, vendor string, day int, amount float64) model.ExpenseRecord {
	t.Helper()
	return model.ExpenseRecord{
		Date:       time.Date(2025, 1, 1+day%27, 0, 0, 0, 0, time.UTC),
		Amount:     decimal.NewFromFloat(amount),
		Currency:   model.USD,
		Vendor:     vendor,
		Department: "sales",
		Category:   category,
	}
}

// trainingSet builds a balanced two-class corpus with separable vocab.
func trainingSet(t *testing.T, perClass int) []model.ExpenseRecord {
	t.Helper()
	var records []model.ExpenseRecord
	for i := 0; i < perClass; i++ {
		records = append(records,
			labeledRecord(t, "travel", fmt.Sprintf("Delta Airlines flight %d", i), i, 400+float64(i)),
			labeledRecord(t, "software", fmt.Sprintf("Atlassian license %d", i), i, 90+float64(i)),
		)
	}
	return records
}

func TestTrain_RecoversSeparableClasses(t *testing.T) {
	records := trainingSet(t, 20)

	art, err := Train(records, nil, DefaultTrainOptions())
	if err != nil {
		t.Fatalf("Train: %v", err)
	}
	if art.Kind != model.KindCategorization {
		t.Errorf("Kind = %q, want %q", art.Kind, model.KindCategorization)
	}
	if art.VersionID == "" {
		t.Error("VersionID is empty")
	}
	if art.Metrics.Selected == "" {
		t.Error("no candidate selected")
	}
	if len(art.Metrics.Candidates) != len(DefaultCandidates()) {
		t.Errorf("candidate scores = %d, want %d", len(art.Metrics.Candidates), len(DefaultCandidates()))
	}
	if art.Metrics.LabelCounts["travel"] != 20 || art.Metrics.LabelCounts["software"] != 20 {
		t.Errorf("label counts = %v", art.Metrics.LabelCounts)
	}

	pred, err := Predict(labeledRecord(t, "", "Delta Airlines flight 99", 3, 450), art)
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	if pred.Category != "travel" {
		t.Errorf("predicted %q, want travel", pred.Category)
	}
	if pred.Confidence < 0 || pred.Confidence > 1 {
		t.Errorf("confidence %v outside [0,1]", pred.Confidence)
	}
}

func TestTrain_SkewedClassFails(t *testing.T) {
	// 57 travel vs 3 software: the minority class is below the
	// per-class floor and training must refuse rather than fit a
	// majority-class guesser.
	var records []model.ExpenseRecord
	for i := 0; i < 57; i++ {
		records = append(records, labeledRecord(t, "travel", fmt.Sprintf("United flight %d", i), i, 300))
	}
	for i := 0; i < 3; i++ {
		records = append(records, labeledRecord(t, "software", fmt.Sprintf("GitHub seat %d", i), i, 40))
	}

	_, err := Train(records, nil, DefaultTrainOptions())
	var insufficient *engine.InsufficientTrainingDataError
	if !errors.As(err, &insufficient) {
		t.Fatalf("err = %v, want InsufficientTrainingDataError", err)
	}
	if insufficient.SmallestLabel != "software" || insufficient.SmallestCount != 3 {
		t.Errorf("smallest class = %q (%d), want software (3)", insufficient.SmallestLabel, insufficient.SmallestCount)
	}
}

func TestTrain_SingleLabelFails(t *testing.T) {
	var records []model.ExpenseRecord
	for i := 0; i < 40; i++ {
		records = append(records, labeledRecord(t, "travel", fmt.Sprintf("Delta flight %d", i), i, 300))
	}

	_, err := Train(records, nil, DefaultTrainOptions())
	var insufficient *engine.InsufficientTrainingDataError
	if !errors.As(err, &insufficient) {
		t.Fatalf("err = %v, want InsufficientTrainingDataError", err)
	}
	if insufficient.Labels != 1 {
		t.Errorf("Labels = %d, want 1", insufficient.Labels)
	}
}

func TestTrain_UnlabeledRecordRejected(t *testing.T) {
	records := trainingSet(t, 20)
	records[5].Category = ""

	if _, err := Train(records, nil, DefaultTrainOptions()); err == nil {
		t.Fatal("unlabeled training record accepted")
	}
}

func TestTrain_Deterministic(t *testing.T) {
	records := trainingSet(t, 20)

	a, err := Train(records, nil, DefaultTrainOptions())
	if err != nil {
		t.Fatalf("first Train: %v", err)
	}
	b, err := Train(records, nil, DefaultTrainOptions())
	if err != nil {
		t.Fatalf("second Train: %v", err)
	}

	if a.Metrics.Selected != b.Metrics.Selected {
		t.Errorf("selected %q then %q for identical input", a.Metrics.Selected, b.Metrics.Selected)
	}
	for i := range a.Metrics.Candidates {
		x, y := a.Metrics.Candidates[i], b.Metrics.Candidates[i]
		if x.Name != y.Name || x.CVMean != y.CVMean || x.CVStd != y.CVStd || x.TestAccuracy != y.TestAccuracy {
			t.Errorf("candidate %d scores differ: %+v vs %+v", i, x, y)
		}
	}
}

func TestPredictBatch_MatchesPredict(t *testing.T) {
	records := trainingSet(t, 20)
	art, err := Train(records, nil, DefaultTrainOptions())
	if err != nil {
		t.Fatalf("Train: %v", err)
	}

	targets := []model.ExpenseRecord{
		labeledRecord(t, "", "Delta Airlines flight 7", 1, 410),
		labeledRecord(t, "", "Atlassian license 7", 2, 95),
		labeledRecord(t, "", "Unknown Vendor 7", 3, 50),
	}

	batch, err := PredictBatch(targets, art)
	if err != nil {
		t.Fatalf("PredictBatch: %v", err)
	}
	if len(batch) != len(targets) {
		t.Fatalf("batch size = %d, want %d", len(batch), len(targets))
	}
	for i, rec := range targets {
		single, err := Predict(rec, art)
		if err != nil {
			t.Fatalf("Predict %d: %v", i, err)
		}
		if batch[i] != single {
			t.Errorf("record %d: batch %+v != single %+v", i, batch[i], single)
		}
	}
}

func TestPredict_UnseenVendorStillScores(t *testing.T) {
	records := trainingSet(t, 20)
	art, err := Train(records, nil, DefaultTrainOptions())
	if err != nil {
		t.Fatalf("Train: %v", err)
	}

	// Fully out-of-vocabulary text: the prediction degrades in
	// confidence but never errors and never invents a category.
	pred, err := Predict(labeledRecord(t, "", "Zyxwv Qponm", 9, 75), art)
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	known := map[string]bool{"travel": true, "software": true}
	if !known[pred.Category] {
		t.Errorf("predicted unknown category %q", pred.Category)
	}
	if pred.Confidence < 0 || pred.Confidence > 1 {
		t.Errorf("confidence %v outside [0,1]", pred.Confidence)
	}
}

func TestPredict_EmptyText(t *testing.T) {
	records := trainingSet(t, 20)
	art, err := Train(records, nil, DefaultTrainOptions())
	if err != nil {
		t.Fatalf("Train: %v", err)
	}

	// No text at all: only the categorical and numeric features carry
	// signal, which is still enough to produce a scored prediction.
	rec := labeledRecord(t, "", "", 4, 120)
	pred, err := Predict(rec, art)
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	if pred.Category == "" {
		t.Error("empty-text record got no category")
	}
	if pred.Confidence < 0 || pred.Confidence > 1 {
		t.Errorf("confidence %v outside [0,1]", pred.Confidence)
	}
}

func TestPredict_NilArtifact(t *testing.T) {
	_, err := Predict(labeledRecord(t, "", "Delta", 1, 100), nil)
	if !errors.Is(err, engine.ErrModelNotTrained) {
		t.Errorf("err = %v, want ErrModelNotTrained", err)
	}
}
