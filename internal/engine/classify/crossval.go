package classify

import (
	"math"
	"math/rand"

	"github.com/nsightlabs/spendintel/internal/model"
)

// kFold splits indices [0,n) into k folds after a seeded shuffle. The
// seed makes fold assignment, and therefore candidate selection,
// reproducible across retraining runs.
func kFold(n, k int, seed int64) [][]int {
	if k > n {
		k = n
	}
	if k < 2 {
		k = 2
	}
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	rng := rand.New(rand.NewSource(seed))
	rng.Shuffle(n, func(i, j int) { idx[i], idx[j] = idx[j], idx[i] })

	folds := make([][]int, k)
	for i, v := range idx {
		folds[i%k] = append(folds[i%k], v)
	}
	return folds
}

// crossValidate trains the candidate on k-1 folds and scores accuracy on
// the held fold, returning per-fold accuracies.
func crossValidate(c Candidate, vecs []model.FeatureVector, labels []string, schema model.FeatureSchema, folds [][]int) ([]float64, error) {
	accs := make([]float64, 0, len(folds))
	for fi := range folds {
		var trainVecs []model.FeatureVector
		var trainLabels []string
		for fj, fold := range folds {
			if fj == fi {
				continue
			}
			for _, i := range fold {
				trainVecs = append(trainVecs, vecs[i])
				trainLabels = append(trainLabels, labels[i])
			}
		}
		scorer, err := c.Fit(trainVecs, trainLabels, schema)
		if err != nil {
			return nil, err
		}

		correct := 0
		for _, i := range folds[fi] {
			pred, _ := argmax(scorer.Probabilities(vecs[i]))
			if pred == labels[i] {
				correct++
			}
		}
		accs = append(accs, float64(correct)/float64(len(folds[fi])))
	}
	return accs, nil
}

func meanStd(xs []float64) (mean, std float64) {
	if len(xs) == 0 {
		return 0, 0
	}
	for _, x := range xs {
		mean += x
	}
	mean /= float64(len(xs))
	for _, x := range xs {
		std += (x - mean) * (x - mean)
	}
	return mean, math.Sqrt(std / float64(len(xs)))
}

// selectBest picks the winning candidate from the metric table: highest
// CV mean, then lowest fold variance, then fastest training, then name.
func selectBest(scores []model.CandidateScore) model.CandidateScore {
	best := scores[0]
	for _, s := range scores[1:] {
		switch {
		case s.CVMean > best.CVMean:
			best = s
		case s.CVMean == best.CVMean && s.CVStd < best.CVStd:
			best = s
		case s.CVMean == best.CVMean && s.CVStd == best.CVStd && s.TrainMillis < best.TrainMillis:
			best = s
		case s.CVMean == best.CVMean && s.CVStd == best.CVStd && s.TrainMillis == best.TrainMillis && s.Name < best.Name:
			best = s
		}
	}
	return best
}
