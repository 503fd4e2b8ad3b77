package pipeline

import (
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/nsightlabs/spendintel/internal/config"
	"github.com/nsightlabs/spendintel/internal/engine"
	"github.com/nsightlabs/spendintel/internal/model"
	"github.com/nsightlabs/spendintel/internal/registry"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	reg, err := registry.Open(filepath.Join(t.TempDir(), "registry.db"))
	if err != nil {
		t.Fatalf("opening registry: %v", err)
	}
	t.Cleanup(func() { _ = reg.Close() })
	return &Engine{Registry: reg, Config: config.DefaultConfig()}
}

// sampleExpenses builds labeled records across two groups with a few
// months of history each.
func sampleExpenses(t *testing.T) []model.ExpenseRecord {
	t.Helper()
	var records []model.ExpenseRecord
	for month := 1; month <= 4; month++ {
		for i := 0; i < 6; i++ {
			records = append(records,
				model.ExpenseRecord{
					Date:       time.Date(2025, time.Month(month), 2+i*4, 0, 0, 0, 0, time.UTC),
					Amount:     decimal.NewFromFloat(400 + float64(i)*25),
					Currency:   model.USD,
					Vendor:     fmt.Sprintf("Delta Airlines booking %d", i),
					Department: "sales",
					Category:   "travel",
				},
				model.ExpenseRecord{
					Date:       time.Date(2025, time.Month(month), 3+i*4, 0, 0, 0, 0, time.UTC),
					Amount:     decimal.NewFromFloat(80 + float64(i)*5),
					Currency:   model.USD,
					Vendor:     fmt.Sprintf("Atlassian seat %d", i),
					Department: "engineering",
					Category:   "software",
				},
			)
		}
	}
	return records
}

func TestCategorize_NotTrained(t *testing.T) {
	eng := newTestEngine(t)

	_, err := eng.Categorize(sampleExpenses(t))
	if !errors.Is(err, engine.ErrModelNotTrained) {
		t.Errorf("err = %v, want ErrModelNotTrained", err)
	}
}

func TestTrainAndCategorize(t *testing.T) {
	eng := newTestEngine(t)
	records := sampleExpenses(t)

	art, err := eng.TrainCategorizer(records)
	if err != nil {
		t.Fatalf("TrainCategorizer: %v", err)
	}
	if art.TrainingSize != len(records) {
		t.Errorf("TrainingSize = %d, want %d", art.TrainingSize, len(records))
	}

	unlabeled := []model.ExpenseRecord{{
		Date:       time.Date(2025, 5, 2, 0, 0, 0, 0, time.UTC),
		Amount:     decimal.NewFromFloat(450),
		Currency:   model.USD,
		Vendor:     "Delta Airlines booking 99",
		Department: "sales",
	}}
	preds, err := eng.Categorize(unlabeled)
	if err != nil {
		t.Fatalf("Categorize: %v", err)
	}
	if preds[0].Category != "travel" {
		t.Errorf("predicted %q, want travel", preds[0].Category)
	}
}

func TestTrainCategorizer_SkipsUnlabeled(t *testing.T) {
	eng := newTestEngine(t)
	records := sampleExpenses(t)
	records = append(records, model.ExpenseRecord{
		Date:       time.Date(2025, 5, 2, 0, 0, 0, 0, time.UTC),
		Amount:     decimal.NewFromFloat(123),
		Currency:   model.USD,
		Vendor:     "Mystery Vendor",
		Department: "sales",
	})

	art, err := eng.TrainCategorizer(records)
	if err != nil {
		t.Fatalf("TrainCategorizer: %v", err)
	}
	if art.TrainingSize != len(records)-1 {
		t.Errorf("TrainingSize = %d, want %d labeled records", art.TrainingSize, len(records)-1)
	}
}

func TestForecastGroup_RoundTrip(t *testing.T) {
	eng := newTestEngine(t)
	records := sampleExpenses(t)

	groups, err := eng.TrainForecasters(records)
	if err != nil {
		t.Fatalf("TrainForecasters: %v", err)
	}
	if len(groups) != 2 {
		t.Fatalf("trained %d groups, want 2", len(groups))
	}

	key := model.GroupKey{Department: "sales", Category: "travel", Currency: model.USD}
	result, err := eng.ForecastGroup(key, 3)
	if err != nil {
		t.Fatalf("ForecastGroup: %v", err)
	}
	if result.Group != key {
		t.Errorf("result group = %+v, want %+v", result.Group, key)
	}
	if len(result.Points) != 3 {
		t.Errorf("points = %d, want 3", len(result.Points))
	}
}

func TestForecastGroup_Unknown(t *testing.T) {
	eng := newTestEngine(t)
	if _, err := eng.TrainForecasters(sampleExpenses(t)); err != nil {
		t.Fatalf("TrainForecasters: %v", err)
	}

	key := model.GroupKey{Department: "hr", Category: "recruiting", Currency: model.TRY}
	_, err := eng.ForecastGroup(key, 3)
	var unknown *engine.UnknownGroupError
	if !errors.As(err, &unknown) {
		t.Fatalf("err = %v, want UnknownGroupError", err)
	}
	if unknown.Group != key {
		t.Errorf("error group = %+v, want %+v", unknown.Group, key)
	}
}

func TestDetectAnomalies_EndToEnd(t *testing.T) {
	eng := newTestEngine(t)
	records := sampleExpenses(t)

	if _, err := eng.FitDetector(records); err != nil {
		t.Fatalf("FitDetector: %v", err)
	}

	spike := records[0]
	spike.Amount = decimal.NewFromInt(75000)
	spike.SourceID = "exp-spike"

	flags, err := eng.DetectAnomalies(append(records, spike), eng.Config.Anomaly.Threshold)
	if err != nil {
		t.Fatalf("DetectAnomalies: %v", err)
	}
	if len(flags) == 0 {
		t.Fatal("spike not flagged")
	}
	if flags[0].SourceID != "exp-spike" {
		t.Errorf("top flag = %q, want exp-spike", flags[0].SourceID)
	}
}

func TestDetectAnomalies_NotTrained(t *testing.T) {
	eng := newTestEngine(t)
	_, err := eng.DetectAnomalies(sampleExpenses(t), 0.3)
	if !errors.Is(err, engine.ErrModelNotTrained) {
		t.Errorf("err = %v, want ErrModelNotTrained", err)
	}
}
