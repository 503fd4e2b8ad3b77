package anomaly

import (
	"encoding/json"
	"fmt"
	"math"
	"math/rand"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nsightlabs/spendintel/internal/engine"
	"github.com/nsightlabs/spendintel/internal/engine/feature"
	"github.com/nsightlabs/spendintel/internal/model"
)

// FitOptions bounds detector fitting. Zero values fall back to the
// defaults.
type FitOptions struct {
	Trees      int
	Subsample  int
	MinSamples int
	// Seed drives the forest's random splits. It is stored in the
	// artifact so re-scoring a loaded artifact is reproducible.
	Seed     int64
	Features feature.Options
}

// DefaultFitOptions returns the standard detector bounds.
func DefaultFitOptions() FitOptions {
	return FitOptions{
		Trees:      100,
		Subsample:  256,
		MinSamples: 10,
		Seed:       42,
		Features:   feature.DefaultOptions(),
	}
}

// DefaultThreshold converts severities into flags when the caller does
// not pass one.
const DefaultThreshold = 0.3

// baseline holds the amount distribution observed for one partition.
type baseline struct {
	Mean float64 `json:"mean"`
	Std  float64 `json:"std"`
	N    int     `json:"n"`
}

// zScoreFloor is the deviation below which a statistical component
// contributes nothing to the severity.
const zScoreFloor = 3.0

// detectorParams is the serialized unsupervised model: the isolation
// forest plus the baselines used for reason attribution.
type detectorParams struct {
	Forest *isolationForest `json:"forest"`
	Seed   int64            `json:"seed"`

	// Amount baselines by full group key and by department+currency,
	// for records not yet categorized.
	GroupBaselines map[string]baseline `json:"group_baselines"`
	DeptBaselines  map[string]baseline `json:"dept_baselines"`

	// Day-of-month timing baseline across the training set.
	DayOfMonth baseline `json:"day_of_month"`

	// Vendors seen per department, normalized lowercase.
	DeptVendors map[string][]string `json:"dept_vendors"`
}

// Fit builds the unsupervised model over the numeric feature space. No
// labels are required; too few records is a quantity failure.
func Fit(records []model.ExpenseRecord, opts FitOptions) (*model.ModelArtifact, error) {
	opts = withDefaults(opts)
	if len(records) < opts.MinSamples {
		return nil, &engine.InsufficientTrainingDataError{
			Kind:       model.KindAnomaly,
			Samples:    len(records),
			MinSamples: opts.MinSamples,
		}
	}

	schema := feature.FitSchema(records, opts.Features)
	vectorizer := feature.NewVectorizer(schema)
	data := make([][]float64, len(records))
	for i, r := range records {
		data[i] = vectorizer.Vectorize(r).Values
	}

	rng := rand.New(rand.NewSource(opts.Seed))
	p := detectorParams{
		Forest:         buildForest(data, opts.Trees, opts.Subsample, rng),
		Seed:           opts.Seed,
		GroupBaselines: make(map[string]baseline),
		DeptBaselines:  make(map[string]baseline),
		DeptVendors:    make(map[string][]string),
	}

	fitBaselines(&p, records)

	raw, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("serializing detector params: %w", err)
	}

	return &model.ModelArtifact{
		Kind:         model.KindAnomaly,
		VersionID:    uuid.NewString(),
		Params:       raw,
		Schema:       schema,
		TrainingSize: len(records),
		CreatedAt:    time.Now().UTC(),
	}, nil
}

func withDefaults(opts FitOptions) FitOptions {
	d := DefaultFitOptions()
	if opts.Trees <= 0 {
		opts.Trees = d.Trees
	}
	if opts.Subsample <= 0 {
		opts.Subsample = d.Subsample
	}
	if opts.MinSamples <= 0 {
		opts.MinSamples = d.MinSamples
	}
	if opts.Seed == 0 {
		opts.Seed = d.Seed
	}
	if opts.Features.MaxTerms == 0 && opts.Features.MinDocFreq == 0 {
		opts.Features = d.Features
	}
	return opts
}

func fitBaselines(p *detectorParams, records []model.ExpenseRecord) {
	groupAmounts := make(map[string][]float64)
	deptAmounts := make(map[string][]float64)
	deptVendors := make(map[string]map[string]struct{})
	var days []float64

	for _, r := range records {
		amount, _ := r.Amount.Float64()
		groupAmounts[r.Group().String()] = append(groupAmounts[r.Group().String()], amount)

		dk := deptKey(r.Department, r.Currency)
		deptAmounts[dk] = append(deptAmounts[dk], amount)

		vendors, ok := deptVendors[r.Department]
		if !ok {
			vendors = make(map[string]struct{})
			deptVendors[r.Department] = vendors
		}
		vendors[normalizeVendor(r.Vendor)] = struct{}{}

		days = append(days, float64(r.Date.Day()))
	}

	for k, amounts := range groupAmounts {
		p.GroupBaselines[k] = newBaseline(amounts)
	}
	for k, amounts := range deptAmounts {
		p.DeptBaselines[k] = newBaseline(amounts)
	}
	for dept, vendors := range deptVendors {
		list := make([]string, 0, len(vendors))
		for v := range vendors {
			list = append(list, v)
		}
		sort.Strings(list)
		p.DeptVendors[dept] = list
	}
	p.DayOfMonth = newBaseline(days)
}

func newBaseline(xs []float64) baseline {
	b := baseline{N: len(xs)}
	if b.N == 0 {
		return b
	}
	for _, x := range xs {
		b.Mean += x
	}
	b.Mean /= float64(b.N)
	var ss float64
	for _, x := range xs {
		ss += (x - b.Mean) * (x - b.Mean)
	}
	b.Std = math.Sqrt(ss / float64(b.N))
	return b
}

func deptKey(dept string, cur model.Currency) string {
	return dept + "/" + string(cur)
}

func normalizeVendor(v string) string {
	return strings.ToLower(strings.TrimSpace(v))
}

// Score returns the severity in [0,1] for one record: the strongest of
// the isolation score and the statistical deviation components, per the
// attribution heuristic. Fails with ErrModelNotTrained without an
// anomaly artifact.
func Score(rec model.ExpenseRecord, art *model.ModelArtifact) (float64, error) {
	p, vectorizer, err := load(art)
	if err != nil {
		return 0, err
	}
	severity, _, err := scoreOne(rec, p, vectorizer, art.Schema)
	return severity, err
}

// Detect scores every record and returns flags for severities at or
// above threshold, sorted by descending severity, ties broken by more
// recent date. The threshold is a call-time parameter so callers can
// re-threshold without retraining.
func Detect(records []model.ExpenseRecord, art *model.ModelArtifact, threshold float64) ([]model.AnomalyFlag, error) {
	p, vectorizer, err := load(art)
	if err != nil {
		return nil, err
	}
	if threshold < 0 || threshold > 1 {
		return nil, fmt.Errorf("threshold must be in [0,1], got %g", threshold)
	}

	severities := make([]float64, len(records))
	reasons := make([]string, len(records))
	errs := make([]error, len(records))
	engine.ForEach(len(records), func(i int) {
		severities[i], reasons[i], errs[i] = scoreOne(records[i], p, vectorizer, art.Schema)
	})
	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}

	var flags []model.AnomalyFlag
	for i, r := range records {
		if severities[i] < threshold {
			continue
		}
		amount, _ := r.Amount.Float64()
		flags = append(flags, model.AnomalyFlag{
			RecordIndex:     i,
			SourceID:        r.SourceID,
			Date:            r.Date,
			Amount:          amount,
			Group:           r.Group(),
			Severity:        severities[i],
			Reason:          reasons[i],
			DetectorVersion: art.VersionID,
		})
	}

	sort.SliceStable(flags, func(i, j int) bool {
		if flags[i].Severity != flags[j].Severity {
			return flags[i].Severity > flags[j].Severity
		}
		return flags[i].Date.After(flags[j].Date)
	})
	return flags, nil
}

func load(art *model.ModelArtifact) (*detectorParams, *feature.Vectorizer, error) {
	if art == nil || art.Kind != model.KindAnomaly {
		return nil, nil, engine.ErrModelNotTrained
	}
	var p detectorParams
	if err := json.Unmarshal(art.Params, &p); err != nil {
		return nil, nil, fmt.Errorf("decoding detector params: %w", err)
	}
	return &p, feature.NewVectorizer(art.Schema), nil
}

// scoreOne combines the isolation score with the statistical components
// and names the dimension that contributed most.
func scoreOne(rec model.ExpenseRecord, p *detectorParams, vectorizer *feature.Vectorizer, schema model.FeatureSchema) (float64, string, error) {
	vec := vectorizer.Vectorize(rec)
	if err := feature.CheckSchema(vec, schema, model.KindAnomaly); err != nil {
		return 0, "", err
	}

	severity := clamp01(p.Forest.score(vec.Values))
	reason := model.ReasonUnusualPattern

	amount, _ := rec.Amount.Float64()
	if z := amountZ(p, rec, amount); z > zScoreFloor {
		if s := clamp01(z / 10); s > severity {
			severity, reason = s, model.ReasonAmountOutlier
		}
	}

	if vendors, ok := p.DeptVendors[rec.Department]; ok && len(vendors) > 0 {
		if !containsSorted(vendors, normalizeVendor(rec.Vendor)) {
			const vendorSeverity = 0.5
			if vendorSeverity > severity {
				severity, reason = vendorSeverity, model.ReasonUnusualVendor
			}
		}
	}

	if p.DayOfMonth.Std > 0 {
		z := math.Abs(float64(rec.Date.Day())-p.DayOfMonth.Mean) / p.DayOfMonth.Std
		if z > zScoreFloor {
			if s := clamp01(z / 10); s > severity {
				severity, reason = s, model.ReasonUnusualTiming
			}
		}
	}

	return severity, reason, nil
}

// amountZ measures the record's amount against its group baseline,
// falling back to the department baseline when the record has no
// category yet.
func amountZ(p *detectorParams, rec model.ExpenseRecord, amount float64) float64 {
	if b, ok := p.GroupBaselines[rec.Group().String()]; ok && b.Std > 0 {
		return math.Abs(amount-b.Mean) / b.Std
	}
	if b, ok := p.DeptBaselines[deptKey(rec.Department, rec.Currency)]; ok && b.Std > 0 {
		return math.Abs(amount-b.Mean) / b.Std
	}
	return 0
}

func containsSorted(sorted []string, v string) bool {
	i := sort.SearchStrings(sorted, v)
	return i < len(sorted) && sorted[i] == v
}

func clamp01(v float64) float64 {
	return math.Min(math.Max(v, 0), 1)
}
