package filter

import (
	"errors"
	"reflect"
	"testing"

	"github.com/caselab/casescan/internal/testgen"
)

func testBatch(t *testing.T) (rows []testgen.Case) {
	t.Helper()
	return []testgen.Case{
		{CourtType: "FD", Jurisdiction: "USA, Federal", DateFiled: "2015-06-01",
			Attorneys: testgen.Str("A. Counsel"), Judges: testgen.Str("J. Stone")},
		{CourtType: "ST", Jurisdiction: "New York", DateFiled: "1999-03-10",
			Attorneys: nil, Judges: testgen.Str("J. Rivers")},
		{CourtType: "FD", Jurisdiction: "USA, Federal", DateFiled: "",
			Attorneys: testgen.Str("B. Advocate"), Judges: nil},
		{CourtType: "ST", Jurisdiction: "Ohio", DateFiled: "2020-11-20",
			Attorneys: testgen.Str("C. Brief"), Judges: testgen.Str("J. Hill")},
	}
}

func evalTokens(t *testing.T, tokens []string) []bool {
	t.Helper()
	rec := testgen.Batch(t, testBatch(t))
	defer rec.Release()

	spec, err := ParseTokens(tokens)
	if err != nil {
		t.Fatalf("ParseTokens failed: %v", err)
	}
	ps, err := Compile(spec, rec.Schema())
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	mask, err := ps.EvalMask(rec)
	if err != nil {
		t.Fatalf("EvalMask failed: %v", err)
	}
	return mask
}

func TestEvalMaskEquality(t *testing.T) {
	mask := evalTokens(t, []string{"court_type=FD"})
	if want := []bool{true, false, true, false}; !reflect.DeepEqual(mask, want) {
		t.Errorf("mask = %v, want %v", mask, want)
	}
}

func TestEvalMaskEqualityNullNeverMatches(t *testing.T) {
	mask := evalTokens(t, []string{"attorneys=A. Counsel"})
	if want := []bool{true, false, false, false}; !reflect.DeepEqual(mask, want) {
		t.Errorf("mask = %v, want %v", mask, want)
	}
}

func TestEvalMaskNotNull(t *testing.T) {
	mask := evalTokens(t, []string{"attorneys!=NULL"})
	if want := []bool{true, false, true, true}; !reflect.DeepEqual(mask, want) {
		t.Errorf("mask = %v, want %v", mask, want)
	}
}

func TestEvalMaskRangeDate(t *testing.T) {
	// Date operand on a date column compares temporally; the null
	// date_filed row never matches.
	mask := evalTokens(t, []string{"date_filed>=2001-01-01"})
	if want := []bool{true, false, false, true}; !reflect.DeepEqual(mask, want) {
		t.Errorf("mask = %v, want %v", mask, want)
	}
}

func TestEvalMaskRangeTextFallback(t *testing.T) {
	// A non-date operand on a string column falls back to raw text
	// comparison. This is deliberate behavior, not an error path.
	mask := evalTokens(t, []string{"court_type>=GA"})
	if want := []bool{false, true, false, true}; !reflect.DeepEqual(mask, want) {
		t.Errorf("mask = %v, want %v", mask, want)
	}
}

func TestEvalMaskCombinedAnd(t *testing.T) {
	mask := evalTokens(t, []string{"court_type=FD", "attorneys!=NULL", "judges!=NULL"})
	if want := []bool{true, false, false, false}; !reflect.DeepEqual(mask, want) {
		t.Errorf("mask = %v, want %v", mask, want)
	}
}

func TestEvalMaskOrderIndependent(t *testing.T) {
	a := evalTokens(t, []string{"court_type=FD", "date_filed>=2001-01-01", "judges!=NULL"})
	b := evalTokens(t, []string{"judges!=NULL", "court_type=FD", "date_filed>=2001-01-01"})
	if !reflect.DeepEqual(a, b) {
		t.Errorf("masks differ across predicate orders: %v vs %v", a, b)
	}
}

func TestEvalMaskNoPredicates(t *testing.T) {
	mask := evalTokens(t, nil)
	if want := []bool{true, true, true, true}; !reflect.DeepEqual(mask, want) {
		t.Errorf("mask = %v, want %v", mask, want)
	}
}

func TestCompileUnknownColumn(t *testing.T) {
	rec := testgen.Batch(t, testBatch(t))
	defer rec.Release()

	for _, spec := range []*Spec{
		{Predicates: []Predicate{Equality{Col: "cuort_type", Value: "FD"}}},
		{Predicates: []Predicate{NotNull{Col: "nope"}}},
		{Predicates: []Predicate{RangeGte{Col: "nope", Operand: "1"}}},
		{GroupBy: []string{"nope"}},
		{MinMax: []string{"nope"}},
	} {
		if _, err := Compile(spec, rec.Schema()); !errors.Is(err, ErrPredicate) {
			t.Errorf("Compile(%+v): expected ErrPredicate, got %v", spec, err)
		}
	}
}

func TestCompileOperandTypeMismatch(t *testing.T) {
	rec := testgen.Batch(t, testBatch(t))
	defer rec.Release()

	// date_filed is a date column; a non-date operand cannot be
	// compared against it.
	spec := &Spec{Predicates: []Predicate{Equality{Col: "date_filed", Value: "soon"}}}
	if _, err := Compile(spec, rec.Schema()); !errors.Is(err, ErrPredicate) {
		t.Errorf("expected ErrPredicate, got %v", err)
	}
}

func TestMatchCount(t *testing.T) {
	if got := MatchCount([]bool{true, false, true, true}); got != 3 {
		t.Errorf("MatchCount = %d, want 3", got)
	}
	if got := MatchCount(nil); got != 0 {
		t.Errorf("MatchCount(nil) = %d, want 0", got)
	}
}
