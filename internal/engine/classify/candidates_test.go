package classify

import (
	"fmt"
	"math"
	"testing"

	"github.com/nsightlabs/spendintel/internal/model"
)

// Summation over three or more labels picks up one-ulp drift if the
// accumulation follows map iteration order, so the distribution
// helpers fix a lexical order. These tests call the helpers enough
// times that an order-dependent sum would be caught.

func TestSoftmaxLog_Reproducible(t *testing.T) {
	logProbs := map[string]float64{
		"meals":    math.Log(0.17),
		"software": math.Log(0.31),
		"supplies": math.Log(0.02),
		"travel":   math.Log(0.43),
		"utility":  math.Log(0.07),
	}

	first := softmaxLog(logProbs)
	var sum float64
	for _, p := range first {
		sum += p
	}
	if math.Abs(sum-1) > 1e-12 {
		t.Fatalf("probabilities sum to %v, want 1", sum)
	}
	for i := 0; i < 50; i++ {
		again := softmaxLog(logProbs)
		for label, p := range first {
			if again[label] != p {
				t.Fatalf("run %d: %s = %v, first run %v", i, label, again[label], p)
			}
		}
	}
}

func TestNormalize_Reproducible(t *testing.T) {
	scores := map[string]float64{
		"meals":    0.1,
		"software": 0.7,
		"supplies": 1.3,
		"travel":   2.9,
	}

	first := normalize(scores)
	for i := 0; i < 50; i++ {
		again := normalize(scores)
		for label, p := range first {
			if again[label] != p {
				t.Fatalf("run %d: %s = %v, first run %v", i, label, again[label], p)
			}
		}
	}
}

func TestNormalize_AllZeroIsUniform(t *testing.T) {
	out := normalize(map[string]float64{"a": 0, "b": 0, "c": 0, "d": 0})
	for label, p := range out {
		if p != 0.25 {
			t.Errorf("%s = %v, want 0.25", label, p)
		}
	}
}

func TestPredict_ConfidenceStableAcrossCalls(t *testing.T) {
	var records []model.ExpenseRecord
	for i := 0; i < 12; i++ {
		records = append(records,
			labeledRecord(t, "travel", fmt.Sprintf("Delta Airlines flight %d", i), i, 400+float64(i)),
			labeledRecord(t, "software", fmt.Sprintf("Atlassian license %d", i), i, 90+float64(i)),
			labeledRecord(t, "meals", fmt.Sprintf("Chipotle lunch %d", i), i, 18+float64(i)),
		)
	}
	art, err := Train(records, nil, DefaultTrainOptions())
	if err != nil {
		t.Fatalf("Train: %v", err)
	}

	sample := labeledRecord(t, "", "Delta Airlines flight 99", 3, 410)
	first, err := Predict(sample, art)
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	for i := 0; i < 25; i++ {
		again, err := Predict(sample, art)
		if err != nil {
			t.Fatalf("Predict run %d: %v", i, err)
		}
		if again.Category != first.Category || again.Confidence != first.Confidence {
			t.Fatalf("run %d: %s/%v, first run %s/%v",
				i, again.Category, again.Confidence, first.Category, first.Confidence)
		}
	}
}
