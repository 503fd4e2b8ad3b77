// Package classify implements the supervised expense categorization
// model: a small closed set of candidate algorithms trained under
// cross-validation, with the winner serialized into a versioned
// artifact.
package classify

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/nsightlabs/spendintel/internal/model"
)

// Candidate is the uniform train contract every algorithm exposes. The
// selector is a pure function over the metric table the candidates
// produce, so adding an algorithm means adding one implementation here.
type Candidate interface {
	Name() string
	Fit(vecs []model.FeatureVector, labels []string, schema model.FeatureSchema) (Scorer, error)
}

// Scorer is a fitted candidate: a read-only class-probability function
// plus its serializable parameters.
type Scorer interface {
	// Probabilities returns a distribution over labels summing to 1.
	Probabilities(vec model.FeatureVector) map[string]float64
	// Params serializes the fitted parameters for the artifact.
	Params() (json.RawMessage, error)
}

// DefaultCandidates returns the standard candidate set: multinomial
// naive Bayes over the full feature vector, nearest centroid by cosine
// similarity, and a keyword-rule scorer.
func DefaultCandidates() []Candidate {
	return []Candidate{naiveBayesCandidate{}, nearestCentroidCandidate{}, keywordRuleCandidate{}}
}

// candidateParams is the envelope stored in artifact Params.
type candidateParams struct {
	Candidate string          `json:"candidate"`
	Params    json.RawMessage `json:"params"`
}

// loadScorer reconstructs the winning scorer from artifact params.
func loadScorer(raw json.RawMessage) (Scorer, error) {
	var env candidateParams
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("decoding candidate params: %w", err)
	}
	switch env.Candidate {
	case candidateNaiveBayes:
		var s naiveBayesScorer
		if err := json.Unmarshal(env.Params, &s); err != nil {
			return nil, fmt.Errorf("decoding %s params: %w", env.Candidate, err)
		}
		return &s, nil
	case candidateNearestCentroid:
		var s centroidScorer
		if err := json.Unmarshal(env.Params, &s); err != nil {
			return nil, fmt.Errorf("decoding %s params: %w", env.Candidate, err)
		}
		return &s, nil
	case candidateKeywordRule:
		var s keywordScorer
		if err := json.Unmarshal(env.Params, &s); err != nil {
			return nil, fmt.Errorf("decoding %s params: %w", env.Candidate, err)
		}
		return &s, nil
	}
	return nil, fmt.Errorf("unknown candidate %q in artifact", env.Candidate)
}

func envelope(name string, scorer any) (json.RawMessage, error) {
	inner, err := json.Marshal(scorer)
	if err != nil {
		return nil, err
	}
	return json.Marshal(candidateParams{Candidate: name, Params: inner})
}

// Candidate names.
const (
	candidateNaiveBayes      = "naive_bayes"
	candidateNearestCentroid = "nearest_centroid"
	candidateKeywordRule     = "keyword_rule"
)

// ---- multinomial naive Bayes ----

type naiveBayesCandidate struct{}

func (naiveBayesCandidate) Name() string { return candidateNaiveBayes }

func (naiveBayesCandidate) Fit(vecs []model.FeatureVector, labels []string, schema model.FeatureSchema) (Scorer, error) {
	width := schema.Width()
	s := &naiveBayesScorer{
		Width:         width,
		Docs:          len(vecs),
		ClassDocs:     make(map[string]int),
		ClassFeatures: make(map[string][]float64),
		ClassTotals:   make(map[string]float64),
	}
	for i, vec := range vecs {
		label := labels[i]
		s.ClassDocs[label]++
		counts, ok := s.ClassFeatures[label]
		if !ok {
			counts = make([]float64, width)
			s.ClassFeatures[label] = counts
		}
		for j, v := range vec.Values {
			counts[j] += v
			s.ClassTotals[label] += v
		}
	}
	return s, nil
}

// naiveBayesScorer holds per-class document and feature-mass counts with
// Laplace smoothing at scoring time.
type naiveBayesScorer struct {
	Width         int                  `json:"width"`
	Docs          int                  `json:"docs"`
	ClassDocs     map[string]int       `json:"class_docs"`
	ClassFeatures map[string][]float64 `json:"class_features"`
	ClassTotals   map[string]float64   `json:"class_totals"`
}

func (s *naiveBayesScorer) Probabilities(vec model.FeatureVector) map[string]float64 {
	logProbs := make(map[string]float64, len(s.ClassDocs))
	for label, docs := range s.ClassDocs {
		lp := math.Log(float64(docs) / float64(s.Docs))
		counts := s.ClassFeatures[label]
		total := s.ClassTotals[label]
		for j, v := range vec.Values {
			if v == 0 {
				continue
			}
			likelihood := (counts[j] + 1) / (total + float64(s.Width))
			lp += v * math.Log(likelihood)
		}
		logProbs[label] = lp
	}
	return softmaxLog(logProbs)
}

func (s *naiveBayesScorer) Params() (json.RawMessage, error) {
	return envelope(candidateNaiveBayes, s)
}

// ---- nearest centroid ----

type nearestCentroidCandidate struct{}

func (nearestCentroidCandidate) Name() string { return candidateNearestCentroid }

func (nearestCentroidCandidate) Fit(vecs []model.FeatureVector, labels []string, schema model.FeatureSchema) (Scorer, error) {
	width := schema.Width()
	sums := make(map[string][]float64)
	counts := make(map[string]int)
	for i, vec := range vecs {
		label := labels[i]
		sum, ok := sums[label]
		if !ok {
			sum = make([]float64, width)
			sums[label] = sum
		}
		for j, v := range vec.Values {
			sum[j] += v
		}
		counts[label]++
	}
	s := &centroidScorer{Centroids: make(map[string][]float64, len(sums))}
	for label, sum := range sums {
		n := float64(counts[label])
		centroid := make([]float64, width)
		for j, v := range sum {
			centroid[j] = v / n
		}
		s.Centroids[label] = centroid
	}
	return s, nil
}

// centroidScorer scores by cosine similarity to per-class mean vectors.
type centroidScorer struct {
	Centroids map[string][]float64 `json:"centroids"`
}

func (s *centroidScorer) Probabilities(vec model.FeatureVector) map[string]float64 {
	sims := make(map[string]float64, len(s.Centroids))
	for label, centroid := range s.Centroids {
		// Shift cosine from [-1,1] to [0,2] so weights stay nonnegative
		sims[label] = cosine(vec.Values, centroid) + 1
	}
	return normalize(sims)
}

func (s *centroidScorer) Params() (json.RawMessage, error) {
	return envelope(candidateNearestCentroid, s)
}

func cosine(a, b []float64) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// ---- keyword rule ----

// categoryKeywords seeds the rule candidate with vendor and description
// terms commonly tied to each expense category.
var categoryKeywords = map[string][]string{
	"IT Infrastructure": {
		"aws", "azure", "cloud", "hosting", "server", "software", "license",
		"api", "github", "infrastructure", "database", "backup", "storage",
	},
	"Marketing": {
		"advertising", "campaign", "promotion", "marketing", "social",
		"brand", "seo", "analytics", "media", "ads",
	},
	"Travel": {
		"flight", "hotel", "travel", "airline", "rental", "uber", "lyft",
		"taxi", "lodging", "accommodation",
	},
	"Office Supplies": {
		"staples", "office", "supplies", "stationery", "desk", "chair",
		"paper", "furniture",
	},
	"Personnel": {
		"payroll", "salary", "wages", "benefits", "recruitment", "hiring",
		"contractor", "employee",
	},
	"Utilities": {
		"electricity", "water", "internet", "phone", "utility", "telecom",
		"energy", "power",
	},
	"Professional Services": {
		"consulting", "legal", "accounting", "audit", "advisory",
		"professional",
	},
	"Training": {
		"training", "education", "course", "certification", "workshop",
		"seminar",
	},
	"Equipment": {
		"laptop", "hardware", "equipment", "monitor", "printer", "camera",
		"device",
	},
}

type keywordRuleCandidate struct{}

func (keywordRuleCandidate) Name() string { return candidateKeywordRule }

func (keywordRuleCandidate) Fit(vecs []model.FeatureVector, labels []string, _ model.FeatureSchema) (Scorer, error) {
	s := &keywordScorer{
		Priors:   make(map[string]float64),
		Keywords: make(map[string][]string),
	}
	counts := make(map[string]int)
	for _, label := range labels {
		counts[label]++
	}
	for label, n := range counts {
		s.Priors[label] = float64(n) / float64(len(labels))
		if kws, ok := categoryKeywords[label]; ok {
			s.Keywords[label] = kws
		}
	}
	return s, nil
}

// keywordScorer weights label priors by keyword hits in the raw text.
type keywordScorer struct {
	Priors   map[string]float64  `json:"priors"`
	Keywords map[string][]string `json:"keywords"`
}

func (s *keywordScorer) Probabilities(vec model.FeatureVector) map[string]float64 {
	text := strings.ToLower(vec.RawText)
	scores := make(map[string]float64, len(s.Priors))
	for label, prior := range s.Priors {
		hits := 0
		for _, kw := range s.Keywords[label] {
			if strings.Contains(text, kw) {
				hits++
			}
		}
		scores[label] = prior * float64(1+3*hits)
	}
	return normalize(scores)
}

func (s *keywordScorer) Params() (json.RawMessage, error) {
	return envelope(candidateKeywordRule, s)
}

// ---- shared scoring helpers ----

// sortedLabels returns the map's keys in lexical order. Summation
// order is fixed this way so repeated scoring of the same vector
// yields bit-identical probabilities.
func sortedLabels(m map[string]float64) []string {
	labels := make([]string, 0, len(m))
	for label := range m {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	return labels
}

// softmaxLog converts log scores into a probability distribution.
func softmaxLog(logProbs map[string]float64) map[string]float64 {
	if len(logProbs) == 0 {
		return logProbs
	}
	labels := sortedLabels(logProbs)
	max := math.Inf(-1)
	for _, lp := range logProbs {
		if lp > max {
			max = lp
		}
	}
	probs := make(map[string]float64, len(logProbs))
	var sum float64
	for _, label := range labels {
		p := math.Exp(logProbs[label] - max)
		probs[label] = p
		sum += p
	}
	for _, label := range labels {
		probs[label] /= sum
	}
	return probs
}

// normalize scales nonnegative scores into a distribution. All-zero
// scores become uniform.
func normalize(scores map[string]float64) map[string]float64 {
	labels := sortedLabels(scores)
	var sum float64
	for _, label := range labels {
		sum += scores[label]
	}
	out := make(map[string]float64, len(scores))
	if sum == 0 {
		u := 1 / float64(len(scores))
		for _, label := range labels {
			out[label] = u
		}
		return out
	}
	for _, label := range labels {
		out[label] = scores[label] / sum
	}
	return out
}

// argmax picks the highest-probability label, breaking exact ties by
// label lexical order so predictions are deterministic.
func argmax(probs map[string]float64) (string, float64) {
	labels := make([]string, 0, len(probs))
	for label := range probs {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	best, bestP := "", math.Inf(-1)
	for _, label := range labels {
		if probs[label] > bestP {
			best, bestP = label, probs[label]
		}
	}
	return best, bestP
}
