package classify

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nsightlabs/spendintel/internal/engine"
	"github.com/nsightlabs/spendintel/internal/engine/feature"
	"github.com/nsightlabs/spendintel/internal/model"
)

// TrainOptions bounds a training run. Zero values fall back to the
// defaults.
type TrainOptions struct {
	MinSamples      int
	MinLabels       int
	MinClassSamples int
	CVFolds         int
	// HoldoutEvery holds out every nth record for the test accuracy
	// reported in metrics.
	HoldoutEvery int
	Seed         int64
	Features     feature.Options
}

// DefaultTrainOptions returns the standard training bounds.
func DefaultTrainOptions() TrainOptions {
	return TrainOptions{
		MinSamples:      30,
		MinLabels:       2,
		MinClassSamples: 5,
		CVFolds:         5,
		HoldoutEvery:    5,
		Seed:            42,
		Features:        feature.DefaultOptions(),
	}
}

func (o TrainOptions) withDefaults() TrainOptions {
	d := DefaultTrainOptions()
	if o.MinSamples <= 0 {
		o.MinSamples = d.MinSamples
	}
	if o.MinLabels <= 0 {
		o.MinLabels = d.MinLabels
	}
	if o.MinClassSamples <= 0 {
		o.MinClassSamples = d.MinClassSamples
	}
	if o.CVFolds <= 0 {
		o.CVFolds = d.CVFolds
	}
	if o.HoldoutEvery <= 0 {
		o.HoldoutEvery = d.HoldoutEvery
	}
	if o.Seed == 0 {
		o.Seed = d.Seed
	}
	if o.Features.MaxTerms == 0 && o.Features.MinDocFreq == 0 {
		o.Features = d.Features
	}
	return o
}

// Train fits every candidate under k-fold cross-validation and returns
// an artifact holding the winner's parameters, the fitted feature
// schema, and the full per-candidate metric table. Every record must
// carry a category label. Too little or too skewed data fails with
// InsufficientTrainingDataError; single-label data is a variety failure
// and also refuses to fit.
func Train(records []model.ExpenseRecord, candidates []Candidate, opts TrainOptions) (*model.ModelArtifact, error) {
	opts = opts.withDefaults()
	if len(candidates) == 0 {
		candidates = DefaultCandidates()
	}

	labels := make([]string, len(records))
	counts := make(map[string]int)
	for i, r := range records {
		if !r.HasCategory() {
			return nil, fmt.Errorf("training record %d (%s) has no category label", i, r.Vendor)
		}
		labels[i] = r.Category
		counts[r.Category]++
	}

	if err := checkTrainingData(counts, len(records), opts); err != nil {
		return nil, err
	}

	schema := feature.FitSchema(records, opts.Features)
	vectorizer := feature.NewVectorizer(schema)
	vecs := make([]model.FeatureVector, len(records))
	for i, r := range records {
		vecs[i] = vectorizer.Vectorize(r)
	}

	trainIdx, testIdx := holdoutSplit(len(records), opts.HoldoutEvery)
	trainVecs := pick(vecs, trainIdx)
	trainLabels := pickLabels(labels, trainIdx)

	folds := kFold(len(trainIdx), opts.CVFolds, opts.Seed)

	scores := make([]model.CandidateScore, 0, len(candidates))
	for _, c := range candidates {
		start := time.Now()
		accs, err := crossValidate(c, trainVecs, trainLabels, schema, folds)
		if err != nil {
			return nil, fmt.Errorf("cross-validating %s: %w", c.Name(), err)
		}
		elapsed := time.Since(start).Milliseconds()

		mean, std := meanStd(accs)
		testAcc, err := holdoutAccuracy(c, trainVecs, trainLabels, vecs, labels, testIdx, schema, mean)
		if err != nil {
			return nil, fmt.Errorf("evaluating %s: %w", c.Name(), err)
		}

		scores = append(scores, model.CandidateScore{
			Name:         c.Name(),
			CVMean:       mean,
			CVStd:        std,
			TestAccuracy: testAcc,
			TrainMillis:  elapsed,
		})
	}

	best := selectBest(scores)
	winner := candidateByName(candidates, best.Name)

	// Refit the winner on the full labeled set
	scorer, err := winner.Fit(vecs, labels, schema)
	if err != nil {
		return nil, fmt.Errorf("fitting %s: %w", best.Name, err)
	}
	params, err := scorer.Params()
	if err != nil {
		return nil, fmt.Errorf("serializing %s params: %w", best.Name, err)
	}

	return &model.ModelArtifact{
		Kind:      model.KindCategorization,
		VersionID: uuid.NewString(),
		Params:    params,
		Schema:    schema,
		Metrics: model.TrainingMetrics{
			Candidates:  scores,
			Selected:    best.Name,
			LabelCounts: counts,
		},
		TrainingSize: len(records),
		CreatedAt:    time.Now().UTC(),
	}, nil
}

func checkTrainingData(counts map[string]int, total int, opts TrainOptions) error {
	if len(counts) < opts.MinLabels {
		return &engine.InsufficientTrainingDataError{
			Kind:      model.KindCategorization,
			Samples:   total,
			Labels:    len(counts),
			MinLabels: opts.MinLabels,
		}
	}
	for label, n := range counts {
		if n < opts.MinClassSamples {
			return &engine.InsufficientTrainingDataError{
				Kind:          model.KindCategorization,
				Samples:       total,
				Labels:        len(counts),
				MinLabels:     opts.MinLabels,
				SmallestLabel: label,
				SmallestCount: n,
				MinPerLabel:   opts.MinClassSamples,
			}
		}
	}
	if total < opts.MinSamples {
		return &engine.InsufficientTrainingDataError{
			Kind:       model.KindCategorization,
			Samples:    total,
			MinSamples: opts.MinSamples,
			Labels:     len(counts),
			MinLabels:  opts.MinLabels,
		}
	}
	return nil
}

// holdoutSplit reserves every nth index for held-out evaluation. The
// split is positional, not random, so it is stable for the same input
// ordering.
func holdoutSplit(n, every int) (train, test []int) {
	for i := 0; i < n; i++ {
		if (i+1)%every == 0 {
			test = append(test, i)
		} else {
			train = append(train, i)
		}
	}
	// Never let the holdout eat the whole set
	if len(train) == 0 {
		return test, nil
	}
	return train, test
}

func holdoutAccuracy(c Candidate, trainVecs []model.FeatureVector, trainLabels []string,
	allVecs []model.FeatureVector, allLabels []string, testIdx []int,
	schema model.FeatureSchema, fallback float64) (float64, error) {

	if len(testIdx) == 0 {
		return fallback, nil
	}
	scorer, err := c.Fit(trainVecs, trainLabels, schema)
	if err != nil {
		return 0, err
	}
	correct := 0
	for _, i := range testIdx {
		pred, _ := argmax(scorer.Probabilities(allVecs[i]))
		if pred == allLabels[i] {
			correct++
		}
	}
	return float64(correct) / float64(len(testIdx)), nil
}

func candidateByName(candidates []Candidate, name string) Candidate {
	for _, c := range candidates {
		if c.Name() == name {
			return c
		}
	}
	return candidates[0]
}

func pick(vecs []model.FeatureVector, idx []int) []model.FeatureVector {
	out := make([]model.FeatureVector, len(idx))
	for i, j := range idx {
		out[i] = vecs[j]
	}
	return out
}

func pickLabels(labels []string, idx []int) []string {
	out := make([]string, len(idx))
	for i, j := range idx {
		out[i] = labels[j]
	}
	return out
}

// Predict returns the category and class probability for one record.
// The record is never mutated; the caller decides whether to persist the
// label. Fails with ErrModelNotTrained when no categorization artifact
// is supplied.
func Predict(rec model.ExpenseRecord, art *model.ModelArtifact) (model.Prediction, error) {
	scorer, vectorizer, err := prepare(art)
	if err != nil {
		return model.Prediction{}, err
	}
	return predictOne(rec, scorer, vectorizer, art.Schema)
}

// PredictBatch predicts for every record, order-preserving, with results
// identical to calling Predict per record. Scoring runs on a bounded
// worker pool against the immutable artifact.
func PredictBatch(records []model.ExpenseRecord, art *model.ModelArtifact) ([]model.Prediction, error) {
	scorer, vectorizer, err := prepare(art)
	if err != nil {
		return nil, err
	}

	preds := make([]model.Prediction, len(records))
	errs := make([]error, len(records))
	engine.ForEach(len(records), func(i int) {
		preds[i], errs[i] = predictOne(records[i], scorer, vectorizer, art.Schema)
	})
	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return preds, nil
}

func prepare(art *model.ModelArtifact) (Scorer, *feature.Vectorizer, error) {
	if art == nil || art.Kind != model.KindCategorization {
		return nil, nil, engine.ErrModelNotTrained
	}
	scorer, err := loadScorer(art.Params)
	if err != nil {
		return nil, nil, err
	}
	return scorer, feature.NewVectorizer(art.Schema), nil
}

func predictOne(rec model.ExpenseRecord, scorer Scorer, vectorizer *feature.Vectorizer, schema model.FeatureSchema) (model.Prediction, error) {
	vec := vectorizer.Vectorize(rec)
	if err := feature.CheckSchema(vec, schema, model.KindCategorization); err != nil {
		return model.Prediction{}, err
	}
	label, p := argmax(scorer.Probabilities(vec))
	if p < 0 {
		p = 0
	}
	if p > 1 {
		p = 1
	}
	return model.Prediction{Category: label, Confidence: p}, nil
}
