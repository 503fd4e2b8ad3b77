package feature

import (
	"fmt"
	"hash/fnv"
	"math"
	"sort"
	"strings"

	"github.com/nsightlabs/spendintel/internal/engine"
	"github.com/nsightlabs/spendintel/internal/model"
)

// Numeric feature names, in vector order.
var numericFeatures = []string{"log_amount", "day_of_week", "day_of_month", "month"}

// Options controls schema fitting.
type Options struct {
	// MinDocFreq drops vocabulary terms seen in fewer records.
	MinDocFreq int
	// MaxTerms caps the vocabulary; the most frequent terms win, ties
	// broken alphabetically. Zero means no cap.
	MaxTerms int
}

// DefaultOptions returns the fitting defaults.
func DefaultOptions() Options {
	return Options{MinDocFreq: 1, MaxTerms: 5000}
}

// FitSchema fits a feature schema over the training records: the text
// vocabulary from vendor+description, and the department and currency
// one-hot vocabularies. The schema is the only coupling between training
// and inference; it travels inside every artifact.
func FitSchema(records []model.ExpenseRecord, opts Options) model.FeatureSchema {
	if opts.MinDocFreq < 1 {
		opts.MinDocFreq = 1
	}

	docFreq := make(map[string]int)
	depts := make(map[string]struct{})
	curs := make(map[string]struct{})

	for _, r := range records {
		seen := make(map[string]struct{})
		for _, tok := range Tokenize(RecordText(r.Vendor, r.Description)) {
			if _, dup := seen[tok]; dup {
				continue
			}
			seen[tok] = struct{}{}
			docFreq[tok]++
		}
		if r.Department != "" {
			depts[r.Department] = struct{}{}
		}
		curs[string(r.Currency)] = struct{}{}
	}

	terms := make([]string, 0, len(docFreq))
	for t, n := range docFreq {
		if n >= opts.MinDocFreq {
			terms = append(terms, t)
		}
	}
	if opts.MaxTerms > 0 && len(terms) > opts.MaxTerms {
		sort.Slice(terms, func(i, j int) bool {
			if docFreq[terms[i]] != docFreq[terms[j]] {
				return docFreq[terms[i]] > docFreq[terms[j]]
			}
			return terms[i] < terms[j]
		})
		terms = terms[:opts.MaxTerms]
	}
	sort.Strings(terms)

	schema := model.FeatureSchema{
		Numeric:     append([]string(nil), numericFeatures...),
		Terms:       terms,
		Departments: sortedKeys(depts),
		Currencies:  sortedKeys(curs),
	}
	schema.Version = schemaVersion(schema)
	return schema
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// schemaVersion hashes the ordered schema contents so two schemas compare
// by a single string.
func schemaVersion(s model.FeatureSchema) string {
	h := fnv.New64a()
	for _, part := range [][]string{s.Numeric, s.Terms, s.Departments, s.Currencies} {
		_, _ = h.Write([]byte(strings.Join(part, "\x1f")))
		_, _ = h.Write([]byte{0x1e})
	}
	return fmt.Sprintf("%016x", h.Sum64())
}

// Vectorizer projects records against one fitted schema. Build one per
// schema and reuse it; Vectorize itself is pure and safe for concurrent
// use.
type Vectorizer struct {
	schema  model.FeatureSchema
	termIdx map[string]int
	deptIdx map[string]int
	curIdx  map[string]int
}

// NewVectorizer indexes a schema for repeated projection.
func NewVectorizer(schema model.FeatureSchema) *Vectorizer {
	v := &Vectorizer{
		schema:  schema,
		termIdx: make(map[string]int, len(schema.Terms)),
		deptIdx: make(map[string]int, len(schema.Departments)),
		curIdx:  make(map[string]int, len(schema.Currencies)),
	}
	for i, t := range schema.Terms {
		v.termIdx[t] = i
	}
	for i, d := range schema.Departments {
		v.deptIdx[d] = i
	}
	for i, c := range schema.Currencies {
		v.curIdx[c] = i
	}
	return v
}

// Schema returns the schema this vectorizer was built from.
func (v *Vectorizer) Schema() model.FeatureSchema { return v.schema }

// Vectorize projects one record. Out-of-vocabulary tokens are dropped;
// an unseen department or currency lands in its unknown bucket.
func (v *Vectorizer) Vectorize(rec model.ExpenseRecord) model.FeatureVector {
	s := v.schema
	values := make([]float64, s.Width())

	amount, _ := rec.Amount.Float64()
	values[0] = math.Log1p(math.Max(amount, 0))
	values[1] = float64(rec.Date.Weekday())
	values[2] = float64(rec.Date.Day())
	values[3] = float64(int(rec.Date.Month()))

	termBase := len(s.Numeric)
	text := RecordText(rec.Vendor, rec.Description)
	for _, tok := range Tokenize(text) {
		if i, ok := v.termIdx[tok]; ok {
			values[termBase+i]++
		}
	}

	deptBase := termBase + len(s.Terms)
	if i, ok := v.deptIdx[rec.Department]; ok {
		values[deptBase+i] = 1
	} else {
		values[deptBase+len(s.Departments)] = 1 // unknown bucket
	}

	curBase := deptBase + len(s.Departments) + 1
	if i, ok := v.curIdx[string(rec.Currency)]; ok {
		values[curBase+i] = 1
	} else {
		values[curBase+len(s.Currencies)] = 1 // unknown bucket
	}

	return model.FeatureVector{
		Values:        values,
		RawText:       text,
		Currency:      rec.Currency,
		Group:         rec.Group(),
		SchemaVersion: s.Version,
	}
}

// Vectorize projects one record against a schema without reusing a
// Vectorizer. Convenience for single-record inference.
func Vectorize(rec model.ExpenseRecord, schema model.FeatureSchema) model.FeatureVector {
	return NewVectorizer(schema).Vectorize(rec)
}

// CheckSchema fails with a schema mismatch when a vector's shape does not
// match the schema of the artifact it is being scored against.
func CheckSchema(vec model.FeatureVector, schema model.FeatureSchema, kind model.ModelKind) error {
	if vec.SchemaVersion != schema.Version || len(vec.Values) != schema.Width() {
		return &engine.SchemaMismatchError{
			Kind:            kind,
			ExpectedVersion: schema.Version,
			ActualVersion:   vec.SchemaVersion,
			ExpectedWidth:   schema.Width(),
			ActualWidth:     len(vec.Values),
		}
	}
	return nil
}
