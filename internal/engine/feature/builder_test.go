package feature

import (
	"reflect"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/nsightlabs/spendintel/internal/model"
)

func testRecord(vendor, description, dept string, amount float64) model.ExpenseRecord {
	return model.ExpenseRecord{
		Date:        time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC),
		Amount:      decimal.NewFromFloat(amount),
		Currency:    model.USD,
		Vendor:      vendor,
		Description: description,
		Department:  dept,
	}
}

func TestTokenize_DigitRunsCollapse(t *testing.T) {
	a := Tokenize("invoice 4412")
	b := Tokenize("invoice 9")
	if !reflect.DeepEqual(a, b) {
		t.Errorf("tokens differ: %v vs %v", a, b)
	}
	if !reflect.DeepEqual(a, []string{"invoice", "num"}) {
		t.Errorf("tokens = %v, want [invoice num]", a)
	}
}

func TestTokenize_DropsStopWordsAndShortTokens(t *testing.T) {
	got := Tokenize("Acme Inc and the AB flight")
	want := []string{"acme", "flight"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Tokenize = %v, want %v", got, want)
	}
}

func TestTokenize_Empty(t *testing.T) {
	if got := Tokenize(""); got != nil {
		t.Errorf("Tokenize(\"\") = %v, want nil", got)
	}
}

func TestFitSchema_WidthMatchesVector(t *testing.T) {
	records := []model.ExpenseRecord{
		testRecord("Delta Airlines", "flight to nyc", "sales", 450),
		testRecord("Marriott", "hotel night", "sales", 220),
		testRecord("AWS", "compute invoice 9981", "engineering", 1200),
	}
	schema := FitSchema(records, DefaultOptions())
	if schema.Version == "" {
		t.Fatal("schema version is empty")
	}

	vec := Vectorize(records[0], schema)
	if len(vec.Values) != schema.Width() {
		t.Errorf("vector width = %d, want %d", len(vec.Values), schema.Width())
	}
	if got := len(schema.FeatureNames()); got != schema.Width() {
		t.Errorf("feature names = %d, want %d", got, schema.Width())
	}
}

func TestVectorize_Deterministic(t *testing.T) {
	records := []model.ExpenseRecord{
		testRecord("Delta Airlines", "flight 4412", "sales", 450),
		testRecord("AWS", "compute", "engineering", 1200),
	}
	schema := FitSchema(records, DefaultOptions())
	v := NewVectorizer(schema)

	a := v.Vectorize(records[0])
	b := v.Vectorize(records[0])
	if !reflect.DeepEqual(a.Values, b.Values) {
		t.Errorf("same record produced different vectors:\n%v\n%v", a.Values, b.Values)
	}
}

func TestVectorize_UnknownDepartmentAndCurrency(t *testing.T) {
	records := []model.ExpenseRecord{
		testRecord("Delta Airlines", "flight", "sales", 450),
		testRecord("AWS", "compute", "engineering", 1200),
	}
	schema := FitSchema(records, DefaultOptions())
	v := NewVectorizer(schema)

	rec := testRecord("Delta Airlines", "flight", "finance", 450)
	rec.Currency = model.TRY
	vec := v.Vectorize(rec)

	deptBase := len(schema.Numeric) + len(schema.Terms)
	if vec.Values[deptBase+len(schema.Departments)] != 1 {
		t.Error("unseen department not in unknown bucket")
	}
	curBase := deptBase + len(schema.Departments) + 1
	if vec.Values[curBase+len(schema.Currencies)] != 1 {
		t.Error("unseen currency not in unknown bucket")
	}
}

func TestVectorize_OutOfVocabDropped(t *testing.T) {
	records := []model.ExpenseRecord{
		testRecord("Delta Airlines", "flight", "sales", 450),
		testRecord("AWS", "compute", "engineering", 1200),
	}
	schema := FitSchema(records, DefaultOptions())
	v := NewVectorizer(schema)

	vec := v.Vectorize(testRecord("Quantum Widgets", "mystery gadget", "sales", 99))
	termBase := len(schema.Numeric)
	for i := 0; i < len(schema.Terms); i++ {
		if vec.Values[termBase+i] != 0 {
			t.Errorf("term slot %d = %v, want 0 for fully out-of-vocab text", i, vec.Values[termBase+i])
		}
	}
	if len(vec.Values) != schema.Width() {
		t.Errorf("vector width = %d, want %d", len(vec.Values), schema.Width())
	}
}

func TestCheckSchema_Mismatch(t *testing.T) {
	records := []model.ExpenseRecord{
		testRecord("Delta Airlines", "flight", "sales", 450),
	}
	schemaA := FitSchema(records, DefaultOptions())
	schemaB := FitSchema(append(records, testRecord("AWS", "compute", "engineering", 1200)), DefaultOptions())

	vec := Vectorize(records[0], schemaA)
	if err := CheckSchema(vec, schemaA, model.KindCategorization); err != nil {
		t.Errorf("matching schema rejected: %v", err)
	}
	if err := CheckSchema(vec, schemaB, model.KindCategorization); err == nil {
		t.Error("mismatched schema accepted")
	}
}

func TestFitSchema_MaxTermsCap(t *testing.T) {
	records := []model.ExpenseRecord{
		testRecord("alpha bravo charlie", "delta echo foxtrot", "sales", 10),
		testRecord("alpha bravo", "golf hotel", "sales", 10),
	}
	schema := FitSchema(records, Options{MinDocFreq: 1, MaxTerms: 3})
	if len(schema.Terms) != 3 {
		t.Fatalf("terms = %d, want 3", len(schema.Terms))
	}
	// Highest doc-freq terms survive the cap
	for _, want := range []string{"alpha", "bravo"} {
		found := false
		for _, term := range schema.Terms {
			if term == want {
				found = true
			}
		}
		if !found {
			t.Errorf("frequent term %q evicted by cap", want)
		}
	}
}
