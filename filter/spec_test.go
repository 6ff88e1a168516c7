package filter

import (
	"errors"
	"reflect"
	"testing"
)

func TestParseTokensEquality(t *testing.T) {
	spec, err := ParseTokens([]string{"court_type=FD", "court_jurisdiction=USA, Federal"})
	if err != nil {
		t.Fatalf("ParseTokens failed: %v", err)
	}
	want := []Predicate{
		Equality{Col: "court_type", Value: "FD"},
		Equality{Col: "court_jurisdiction", Value: "USA, Federal"},
	}
	if !reflect.DeepEqual(spec.Predicates, want) {
		t.Errorf("predicates = %v, want %v", spec.Predicates, want)
	}
}

func TestParseTokensNotNull(t *testing.T) {
	spec, err := ParseTokens([]string{"attorneys!=NULL", "judges!=null"})
	if err != nil {
		t.Fatalf("ParseTokens failed: %v", err)
	}
	want := []Predicate{NotNull{Col: "attorneys"}, NotNull{Col: "judges"}}
	if !reflect.DeepEqual(spec.Predicates, want) {
		t.Errorf("predicates = %v, want %v", spec.Predicates, want)
	}
}

func TestParseTokensNotNullRejectsOtherRHS(t *testing.T) {
	// != is a null test in this grammar, not a general negation.
	_, err := ParseTokens([]string{"court_type!=FD"})
	if !errors.Is(err, ErrPredicate) {
		t.Fatalf("expected ErrPredicate, got %v", err)
	}
}

func TestParseTokensRange(t *testing.T) {
	spec, err := ParseTokens([]string{"date_filed>=2001-01-01"})
	if err != nil {
		t.Fatalf("ParseTokens failed: %v", err)
	}
	want := []Predicate{RangeGte{Col: "date_filed", Operand: "2001-01-01"}}
	if !reflect.DeepEqual(spec.Predicates, want) {
		t.Errorf("predicates = %v, want %v", spec.Predicates, want)
	}
}

func TestParseTokensGroupBy(t *testing.T) {
	spec, err := ParseTokens([]string{"court_type", "court_type=FD", "judges"})
	if err != nil {
		t.Fatalf("ParseTokens failed: %v", err)
	}
	if want := []string{"court_type", "judges"}; !reflect.DeepEqual(spec.GroupBy, want) {
		t.Errorf("group-by = %v, want %v", spec.GroupBy, want)
	}
	if len(spec.Predicates) != 1 {
		t.Errorf("expected 1 predicate, got %d", len(spec.Predicates))
	}
}

func TestParseTokensMalformed(t *testing.T) {
	for _, tokens := range [][]string{
		{"=FD"},
		{"!=NULL"},
		{">=2001-01-01"},
		{"date_filed>="},
		{""},
	} {
		if _, err := ParseTokens(tokens); !errors.Is(err, ErrPredicate) {
			t.Errorf("ParseTokens(%q): expected ErrPredicate, got %v", tokens, err)
		}
	}
}

func TestNeededColumns(t *testing.T) {
	spec, err := ParseTokens([]string{"court_type=FD", "attorneys!=NULL", "court_type", "judges"})
	if err != nil {
		t.Fatalf("ParseTokens failed: %v", err)
	}
	spec.MinMax = []string{"date_filed"}

	want := []string{"court_type", "attorneys", "judges", "date_filed"}
	if got := spec.NeededColumns(); !reflect.DeepEqual(got, want) {
		t.Errorf("NeededColumns = %v, want %v", got, want)
	}
}

func TestNeededColumnsExistenceReadsFullRow(t *testing.T) {
	spec := &Spec{Existence: true, Predicates: []Predicate{Equality{Col: "court_type", Value: "FD"}}}
	if got := spec.NeededColumns(); got != nil {
		t.Errorf("NeededColumns = %v, want nil (full-row read)", got)
	}
}

func TestDescribe(t *testing.T) {
	spec, err := ParseTokens([]string{"court_type=FD", "attorneys!=NULL", "date_filed>=2001-01-01"})
	if err != nil {
		t.Fatalf("ParseTokens failed: %v", err)
	}
	spec.Existence = true

	want := "court_type=FD, attorneys IS NOT NULL, date_filed>=2001-01-01, has opinion_text"
	if got := spec.Describe(); got != want {
		t.Errorf("Describe = %q, want %q", got, want)
	}

	if got := (&Spec{}).Describe(); got != "" {
		t.Errorf("empty spec Describe = %q, want empty", got)
	}
}
