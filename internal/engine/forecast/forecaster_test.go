package forecast

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/nsightlabs/spendintel/internal/engine"
	"github.com/nsightlabs/spendintel/internal/engine/feature"
	"github.com/nsightlabs/spendintel/internal/model"
)

var testGroup = model.GroupKey{Department: "sales", Category: "travel", Currency: model.USD}

func monthlySeries(t *testing.T, totals ...float64) []feature.SeriesPoint {
	t.Helper()
	series := make([]feature.SeriesPoint, len(totals))
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, total := range totals {
		series[i] = feature.SeriesPoint{Bucket: start.AddDate(0, i, 0), Total: total}
	}
	return series
}

func TestForecast_ConstantSeries(t *testing.T) {
	art, err := Train(monthlySeries(t, 100, 100, 100), testGroup, DefaultTrainOptions())
	if err != nil {
		t.Fatalf("Train: %v", err)
	}

	result, err := Forecast(art, 2)
	if err != nil {
		t.Fatalf("Forecast: %v", err)
	}
	if len(result.Points) != 2 {
		t.Fatalf("points = %d, want 2", len(result.Points))
	}
	for i, p := range result.Points {
		if p.Point != 100 {
			t.Errorf("point %d = %v, want exactly 100", i, p.Point)
		}
		// Zero residuals collapse the band onto the estimate
		if p.Lower != 100 || p.Upper != 100 {
			t.Errorf("point %d band = [%v, %v], want [100, 100]", i, p.Lower, p.Upper)
		}
	}

	wantFirst := time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)
	if !result.Points[0].Bucket.Equal(wantFirst) {
		t.Errorf("first bucket = %v, want %v", result.Points[0].Bucket, wantFirst)
	}
}

func TestForecast_LinearTrend(t *testing.T) {
	art, err := Train(monthlySeries(t, 10, 20, 30, 40), testGroup, DefaultTrainOptions())
	if err != nil {
		t.Fatalf("Train: %v", err)
	}

	result, err := Forecast(art, 3)
	if err != nil {
		t.Fatalf("Forecast: %v", err)
	}
	for step, want := range []float64{50, 60, 70} {
		got := result.Points[step].Point
		if math.Abs(got-want) > 1e-9 {
			t.Errorf("step %d = %v, want %v", step+1, got, want)
		}
	}
}

func TestForecast_BandOrderingAndWidening(t *testing.T) {
	art, err := Train(monthlySeries(t, 120, 80, 150, 90, 140, 100), testGroup, DefaultTrainOptions())
	if err != nil {
		t.Fatalf("Train: %v", err)
	}

	result, err := Forecast(art, 4)
	if err != nil {
		t.Fatalf("Forecast: %v", err)
	}

	prevWidth := -1.0
	for i, p := range result.Points {
		if p.Lower > p.Point || p.Point > p.Upper {
			t.Errorf("point %d: band [%v, %v] does not contain estimate %v", i, p.Lower, p.Upper, p.Point)
		}
		if p.Lower < 0 {
			t.Errorf("point %d: lower bound %v below zero", i, p.Lower)
		}
		width := p.Upper - p.Point
		if width <= prevWidth {
			t.Errorf("point %d: upper margin %v did not widen past %v", i, width, prevWidth)
		}
		prevWidth = width
	}
}

func TestForecast_NeverNegative(t *testing.T) {
	// A steep downward trend extrapolates below zero; spending cannot.
	art, err := Train(monthlySeries(t, 300, 200, 100), testGroup, DefaultTrainOptions())
	if err != nil {
		t.Fatalf("Train: %v", err)
	}

	result, err := Forecast(art, 5)
	if err != nil {
		t.Fatalf("Forecast: %v", err)
	}
	for i, p := range result.Points {
		if p.Point < 0 || p.Lower < 0 {
			t.Errorf("point %d: negative forecast [%v, %v, %v]", i, p.Lower, p.Point, p.Upper)
		}
	}
}

func TestTrain_ShortSeriesFallsBackToMean(t *testing.T) {
	art, err := Train(monthlySeries(t, 80, 120), testGroup, DefaultTrainOptions())
	if err != nil {
		t.Fatalf("Train: %v", err)
	}
	if art.Metrics.Fallback != "flat_mean" {
		t.Errorf("Fallback = %q, want flat_mean", art.Metrics.Fallback)
	}

	result, err := Forecast(art, 2)
	if err != nil {
		t.Fatalf("Forecast: %v", err)
	}
	for i, p := range result.Points {
		if p.Point != 100 {
			t.Errorf("point %d = %v, want the historical mean 100", i, p.Point)
		}
	}
}

func TestForecast_SeasonalAdjustment(t *testing.T) {
	// May runs at half the overall mean, June at 1.5x. Projecting a
	// full year must scale those calendar months and leave unobserved
	// months at the base estimate.
	series := []feature.SeriesPoint{
		{Bucket: time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC), Total: 50},
		{Bucket: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC), Total: 150},
	}

	art, err := Train(series, testGroup, DefaultTrainOptions())
	if err != nil {
		t.Fatalf("Train: %v", err)
	}
	factors := art.Metrics.SeasonalFactors
	if len(factors) != 12 {
		t.Fatalf("seasonal factors = %d, want 12", len(factors))
	}
	if factors[4] != 0.5 || factors[5] != 1.5 {
		t.Errorf("May/June factors = %v/%v, want 0.5/1.5", factors[4], factors[5])
	}
	if factors[0] != 1 {
		t.Errorf("unobserved January factor = %v, want 1", factors[0])
	}

	result, err := Forecast(art, 12)
	if err != nil {
		t.Fatalf("Forecast: %v", err)
	}
	for _, p := range result.Points {
		var want float64
		switch p.Bucket.Month() {
		case time.May:
			want = 50
		case time.June:
			want = 150
		default:
			want = 100
		}
		if p.Point != want {
			t.Errorf("%s = %v, want %v", p.Bucket.Format("2006-01"), p.Point, want)
		}
	}
}

func TestSeasonalFactors_SkipZeroBuckets(t *testing.T) {
	// The February bucket is a zero-filled gap: it must not drag its
	// month's factor to zero, and repeated months average together.
	series := []feature.SeriesPoint{
		{Bucket: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), Total: 150},
		{Bucket: time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), Total: 0},
		{Bucket: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC), Total: 50},
		{Bucket: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), Total: 250},
	}

	factors := seasonalFactors(series)
	if factors[1] != 1 {
		t.Errorf("gap-month factor = %v, want 1", factors[1])
	}
	if want := (200.0) / 150.0; math.Abs(factors[0]-want) > 1e-12 {
		t.Errorf("January factor = %v, want %v", factors[0], want)
	}
	if want := 50.0 / 150.0; math.Abs(factors[5]-want) > 1e-12 {
		t.Errorf("June factor = %v, want %v", factors[5], want)
	}
}

func TestTrain_EmptySeriesFails(t *testing.T) {
	_, err := Train(nil, testGroup, DefaultTrainOptions())
	var insufficient *engine.InsufficientTrainingDataError
	if !errors.As(err, &insufficient) {
		t.Fatalf("err = %v, want InsufficientTrainingDataError", err)
	}
}

func TestForecast_RejectsBadInput(t *testing.T) {
	art, err := Train(monthlySeries(t, 100, 100, 100), testGroup, DefaultTrainOptions())
	if err != nil {
		t.Fatalf("Train: %v", err)
	}

	if _, err := Forecast(art, 0); err == nil {
		t.Error("horizon 0 accepted")
	}
	if _, err := Forecast(nil, 3); !errors.Is(err, engine.ErrModelNotTrained) {
		t.Errorf("nil artifact: err = %v, want ErrModelNotTrained", err)
	}
}
