package filter

import (
	"fmt"
	"strings"
)

// Default nested column and target field for the existence predicate,
// matching the court opinion dataset layout.
const (
	DefaultExistenceColumn = "opinions"
	DefaultExistenceField  = "opinion_text"
)

// Spec is a declarative filter specification: an ordered set of
// predicates combined with logical AND, plus group-by histogram
// requests and optional min/max tracking.
//
// A Spec is built once (from ParseTokens or literally) and is read-only
// afterwards. It must be compiled against a schema with Compile before
// it can evaluate batches.
type Spec struct {
	// Predicates are evaluated per batch and AND-combined.
	Predicates []Predicate

	// GroupBy lists columns for which value-count histograms are
	// accumulated over rows surviving all predicates.
	GroupBy []string

	// MinMax lists columns for which min/max values are tracked over
	// rows surviving all predicates.
	MinMax []string

	// Existence enables the nested-list existence predicate.
	Existence bool

	// ExistenceColumn is the nested list-of-records column tested by
	// the existence predicate. Empty means DefaultExistenceColumn.
	ExistenceColumn string

	// ExistenceField is the nullable target field inside the nested
	// records. Empty means DefaultExistenceField.
	ExistenceField string
}

// ParseTokens parses the textual filter grammar into a Spec.
// Operator detection order is !=, then >=, then =; a token with no
// operator is a group-by request for that column.
//
// Returns ErrPredicate for malformed tokens, including a != token whose
// right-hand side is not NULL: != is a null test in this grammar, never
// a general negation.
func ParseTokens(tokens []string) (*Spec, error) {
	spec := &Spec{}
	for _, tok := range tokens {
		switch {
		case strings.Contains(tok, "!="):
			col, rhs, _ := strings.Cut(tok, "!=")
			if col == "" {
				return nil, fmt.Errorf("%w: missing column in token %q", ErrPredicate, tok)
			}
			if !strings.EqualFold(rhs, "NULL") {
				return nil, fmt.Errorf("%w: %q: only NULL is supported on the right of !=", ErrPredicate, tok)
			}
			spec.Predicates = append(spec.Predicates, NotNull{Col: col})
		case strings.Contains(tok, ">="):
			col, operand, _ := strings.Cut(tok, ">=")
			if col == "" || operand == "" {
				return nil, fmt.Errorf("%w: malformed range token %q", ErrPredicate, tok)
			}
			spec.Predicates = append(spec.Predicates, RangeGte{Col: col, Operand: operand})
		case strings.Contains(tok, "="):
			col, value, _ := strings.Cut(tok, "=")
			if col == "" {
				return nil, fmt.Errorf("%w: missing column in token %q", ErrPredicate, tok)
			}
			spec.Predicates = append(spec.Predicates, Equality{Col: col, Value: value})
		case tok == "":
			return nil, fmt.Errorf("%w: empty filter token", ErrPredicate)
		default:
			spec.GroupBy = append(spec.GroupBy, tok)
		}
	}
	return spec, nil
}

// existenceColumn returns the configured nested list column.
func (s *Spec) existenceColumn() string {
	if s.ExistenceColumn != "" {
		return s.ExistenceColumn
	}
	return DefaultExistenceColumn
}

// existenceField returns the configured nested target field.
func (s *Spec) existenceField() string {
	if s.ExistenceField != "" {
		return s.ExistenceField
	}
	return DefaultExistenceField
}

// NeededColumns returns the set of top-level columns the scan must read
// for this Spec, in first-mention order. It returns nil (read the full
// row) when the existence predicate is enabled: the nested list column
// is the dominant cost anyway and partial nested projection is not
// worth the schema gymnastics.
func (s *Spec) NeededColumns() []string {
	if s.Existence {
		return nil
	}
	var cols []string
	seen := make(map[string]struct{})
	add := func(name string) {
		if _, ok := seen[name]; ok {
			return
		}
		seen[name] = struct{}{}
		cols = append(cols, name)
	}
	for _, p := range s.Predicates {
		add(p.Column())
	}
	for _, c := range s.GroupBy {
		add(c)
	}
	for _, c := range s.MinMax {
		add(c)
	}
	return cols
}

// Describe renders the active predicates for summary output, e.g.
// "court_type=FD, attorneys IS NOT NULL, has opinion_text".
// Returns "" for an unfiltered scan.
func (s *Spec) Describe() string {
	var parts []string
	for _, p := range s.Predicates {
		parts = append(parts, p.String())
	}
	if s.Existence {
		parts = append(parts, "has "+s.existenceField())
	}
	return strings.Join(parts, ", ")
}
