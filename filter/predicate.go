package filter

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
)

// ErrPredicate indicates a filter references a column that does not
// exist in the schema, or a column whose type the predicate cannot
// evaluate. It is raised at compile time, before any scanning begins.
var ErrPredicate = errors.New("invalid predicate")

// dateLayout is the only operand form treated as a calendar date.
const dateLayout = "2006-01-02"

// Predicate is one column-level filter condition. The concrete variants
// are Equality, NotNull, RangeGte and Existence; the set is closed (the
// bind method is unexported).
type Predicate interface {
	// Column returns the schema column the predicate reads.
	Column() string

	// String renders the predicate for summary output.
	String() string

	// bind validates the predicate against the schema and resolves a
	// typed evaluator for it.
	bind(schema *arrow.Schema) (evaluator, error)
}

// evaluator ANDs one predicate's result into mask. len(mask) equals the
// batch row count. Rows already false may be skipped.
type evaluator func(rec arrow.Record, mask []bool) error

// Equality keeps rows where the column equals Value. Null is never
// equal to anything.
type Equality struct {
	Col   string
	Value string
}

// NotNull keeps rows where the column is non-null.
type NotNull struct {
	Col string
}

// RangeGte keeps rows where the column is >= Operand. When Operand is
// an ISO calendar date the comparison is temporal (and null rows never
// match); otherwise the operand is compared as raw text. The fallback
// is deliberate and silent, never an error.
type RangeGte struct {
	Col     string
	Operand string
}

// Existence keeps rows whose nested list column holds at least one
// child record with a non-null Field. See existence.go for the
// evaluation algorithm.
type Existence struct {
	ListCol string
	Field   string
}

func (p Equality) Column() string { return p.Col }
func (p Equality) String() string { return p.Col + "=" + p.Value }

func (p NotNull) Column() string { return p.Col }
func (p NotNull) String() string { return p.Col + " IS NOT NULL" }

func (p RangeGte) Column() string { return p.Col }
func (p RangeGte) String() string { return p.Col + ">=" + p.Operand }

func (p Existence) Column() string { return p.ListCol }
func (p Existence) String() string { return fmt.Sprintf("%s has non-null %s", p.ListCol, p.Field) }

// PredicateSet is a Spec compiled against a concrete schema. It is
// immutable after Compile and safe for concurrent use.
type PredicateSet struct {
	preds []Predicate
	evals []evaluator
}

// Compile validates every column the Spec references (predicates,
// group-by, min/max) against schema and binds typed evaluators.
// All failures are reported as ErrPredicate before any data is read.
func Compile(spec *Spec, schema *arrow.Schema) (*PredicateSet, error) {
	preds := make([]Predicate, 0, len(spec.Predicates)+1)
	preds = append(preds, spec.Predicates...)
	if spec.Existence {
		preds = append(preds, Existence{ListCol: spec.existenceColumn(), Field: spec.existenceField()})
	}

	ps := &PredicateSet{preds: preds, evals: make([]evaluator, 0, len(preds))}
	for _, p := range preds {
		ev, err := p.bind(schema)
		if err != nil {
			return nil, err
		}
		ps.evals = append(ps.evals, ev)
	}

	for _, col := range spec.GroupBy {
		if !schema.HasField(col) {
			return nil, fmt.Errorf("%w: group-by column %q not found in schema", ErrPredicate, col)
		}
	}
	for _, col := range spec.MinMax {
		if !schema.HasField(col) {
			return nil, fmt.Errorf("%w: min/max column %q not found in schema", ErrPredicate, col)
		}
	}
	return ps, nil
}

// Predicates returns the compiled predicates in evaluation order.
func (ps *PredicateSet) Predicates() []Predicate { return ps.preds }

// EvalMask evaluates every predicate against the batch and returns the
// combined boolean mask, one entry per row, true meaning the row
// survives all predicates. Predicates are independent and AND-combined,
// so evaluation order never changes the result.
func (ps *PredicateSet) EvalMask(rec arrow.Record) ([]bool, error) {
	mask := make([]bool, rec.NumRows())
	for i := range mask {
		mask[i] = true
	}
	for k, eval := range ps.evals {
		if err := eval(rec, mask); err != nil {
			return nil, fmt.Errorf("evaluating %s: %w", ps.preds[k], err)
		}
	}
	return mask, nil
}

// MatchCount returns the number of true entries in mask.
func MatchCount(mask []bool) int64 {
	var n int64
	for _, m := range mask {
		if m {
			n++
		}
	}
	return n
}

// schemaField resolves a column by name, or ErrPredicate.
func schemaField(schema *arrow.Schema, name string) (arrow.Field, error) {
	indices := schema.FieldIndices(name)
	if len(indices) == 0 {
		return arrow.Field{}, fmt.Errorf("%w: column %q not found in schema", ErrPredicate, name)
	}
	return schema.Field(indices[0]), nil
}

// batchColumn resolves a column in a concrete batch by name.
func batchColumn(rec arrow.Record, name string) (arrow.Array, error) {
	indices := rec.Schema().FieldIndices(name)
	if len(indices) == 0 {
		return nil, fmt.Errorf("%w: column %q not present in batch", ErrPredicate, name)
	}
	return rec.Column(indices[0]), nil
}

func (p Equality) bind(schema *arrow.Schema) (evaluator, error) {
	f, err := schemaField(schema, p.Col)
	if err != nil {
		return nil, err
	}
	switch f.Type.ID() {
	case arrow.STRING, arrow.LARGE_STRING:
		want := p.Value
		return p.evalWith(func(col arrow.Array, i int) bool {
			return col.(array.StringLike).Value(i) == want
		}), nil
	case arrow.INT8, arrow.INT16, arrow.INT32, arrow.INT64:
		want, err := strconv.ParseInt(p.Value, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %q: column %q is %s, operand is not an integer",
				ErrPredicate, p, p.Col, f.Type)
		}
		return p.evalWith(func(col arrow.Array, i int) bool {
			return intValue(col, i) == want
		}), nil
	case arrow.FLOAT32, arrow.FLOAT64:
		want, err := strconv.ParseFloat(p.Value, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %q: column %q is %s, operand is not a number",
				ErrPredicate, p, p.Col, f.Type)
		}
		return p.evalWith(func(col arrow.Array, i int) bool {
			return floatValue(col, i) == want
		}), nil
	case arrow.BOOL:
		want, err := strconv.ParseBool(p.Value)
		if err != nil {
			return nil, fmt.Errorf("%w: %q: column %q is boolean, operand is not",
				ErrPredicate, p, p.Col)
		}
		return p.evalWith(func(col arrow.Array, i int) bool {
			return col.(*array.Boolean).Value(i) == want
		}), nil
	case arrow.DATE32:
		t, err := time.Parse(dateLayout, p.Value)
		if err != nil {
			return nil, fmt.Errorf("%w: %q: column %q is a date, operand is not YYYY-MM-DD",
				ErrPredicate, p, p.Col)
		}
		want := arrow.Date32FromTime(t)
		return p.evalWith(func(col arrow.Array, i int) bool {
			return col.(*array.Date32).Value(i) == want
		}), nil
	default:
		return nil, fmt.Errorf("%w: equality is not supported on column %q of type %s",
			ErrPredicate, p.Col, f.Type)
	}
}

// evalWith wraps a per-row comparison into an evaluator with the shared
// null handling: a null cell never matches equality.
func (p Equality) evalWith(match func(col arrow.Array, i int) bool) evaluator {
	return func(rec arrow.Record, mask []bool) error {
		col, err := batchColumn(rec, p.Col)
		if err != nil {
			return err
		}
		for i := range mask {
			if mask[i] {
				mask[i] = col.IsValid(i) && match(col, i)
			}
		}
		return nil
	}
}

func (p NotNull) bind(schema *arrow.Schema) (evaluator, error) {
	if _, err := schemaField(schema, p.Col); err != nil {
		return nil, err
	}
	return func(rec arrow.Record, mask []bool) error {
		col, err := batchColumn(rec, p.Col)
		if err != nil {
			return err
		}
		for i := range mask {
			if mask[i] {
				mask[i] = col.IsValid(i)
			}
		}
		return nil
	}, nil
}

func (p RangeGte) bind(schema *arrow.Schema) (evaluator, error) {
	f, err := schemaField(schema, p.Col)
	if err != nil {
		return nil, err
	}

	if t, derr := time.Parse(dateLayout, p.Operand); derr == nil {
		// Date operand: temporal comparison on temporal columns. On a
		// text column an ISO date compares identically as text, so the
		// textual path below already covers it.
		switch dt := f.Type.(type) {
		case *arrow.Date32Type:
			cutoff := arrow.Date32FromTime(t)
			return p.evalWith(func(col arrow.Array, i int) bool {
				return col.(*array.Date32).Value(i) >= cutoff
			}), nil
		case *arrow.TimestampType:
			cutoff, err := arrow.TimestampFromTime(t, dt.Unit)
			if err != nil {
				return nil, fmt.Errorf("%w: %q: %v", ErrPredicate, p, err)
			}
			return p.evalWith(func(col arrow.Array, i int) bool {
				return col.(*array.Timestamp).Value(i) >= cutoff
			}), nil
		}
	}

	switch f.Type.ID() {
	case arrow.STRING, arrow.LARGE_STRING:
		operand := p.Operand
		return p.evalWith(func(col arrow.Array, i int) bool {
			return col.(array.StringLike).Value(i) >= operand
		}), nil
	case arrow.INT8, arrow.INT16, arrow.INT32, arrow.INT64:
		want, err := strconv.ParseInt(p.Operand, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %q: column %q is %s, operand is not an integer",
				ErrPredicate, p, p.Col, f.Type)
		}
		return p.evalWith(func(col arrow.Array, i int) bool {
			return intValue(col, i) >= want
		}), nil
	case arrow.FLOAT32, arrow.FLOAT64:
		want, err := strconv.ParseFloat(p.Operand, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %q: column %q is %s, operand is not a number",
				ErrPredicate, p, p.Col, f.Type)
		}
		return p.evalWith(func(col arrow.Array, i int) bool {
			return floatValue(col, i) >= want
		}), nil
	default:
		return nil, fmt.Errorf("%w: range comparison is not supported on column %q of type %s",
			ErrPredicate, p.Col, f.Type)
	}
}

// evalWith wraps a per-row comparison into an evaluator. Null cells
// never satisfy a range predicate, date-parsed or textual.
func (p RangeGte) evalWith(match func(col arrow.Array, i int) bool) evaluator {
	return func(rec arrow.Record, mask []bool) error {
		col, err := batchColumn(rec, p.Col)
		if err != nil {
			return err
		}
		for i := range mask {
			if mask[i] {
				mask[i] = col.IsValid(i) && match(col, i)
			}
		}
		return nil
	}
}

func intValue(col arrow.Array, i int) int64 {
	switch a := col.(type) {
	case *array.Int8:
		return int64(a.Value(i))
	case *array.Int16:
		return int64(a.Value(i))
	case *array.Int32:
		return int64(a.Value(i))
	case *array.Int64:
		return a.Value(i)
	}
	return 0
}

func floatValue(col arrow.Array, i int) float64 {
	switch a := col.(type) {
	case *array.Float32:
		return float64(a.Value(i))
	case *array.Float64:
		return a.Value(i)
	}
	return 0
}
