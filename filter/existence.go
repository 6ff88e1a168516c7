package filter

import (
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
)

func (p Existence) bind(schema *arrow.Schema) (evaluator, error) {
	f, err := schemaField(schema, p.ListCol)
	if err != nil {
		return nil, err
	}
	lt, ok := f.Type.(*arrow.ListType)
	if !ok {
		return nil, fmt.Errorf("%w: column %q is %s, expected a list of records",
			ErrPredicate, p.ListCol, f.Type)
	}
	st, ok := lt.Elem().(*arrow.StructType)
	if !ok {
		return nil, fmt.Errorf("%w: column %q holds %s elements, expected records",
			ErrPredicate, p.ListCol, lt.Elem())
	}
	fieldIdx, ok := st.FieldIdx(p.Field)
	if !ok {
		return nil, fmt.Errorf("%w: column %q has no nested field %q",
			ErrPredicate, p.ListCol, p.Field)
	}

	return func(rec arrow.Record, mask []bool) error {
		col, err := batchColumn(rec, p.ListCol)
		if err != nil {
			return err
		}
		la, ok := col.(*array.List)
		if !ok {
			return fmt.Errorf("%w: column %q is %s in this batch, expected a list",
				ErrPredicate, p.ListCol, col.DataType())
		}
		exists := listFieldExistence(la, fieldIdx)
		for i := range mask {
			mask[i] = mask[i] && exists[i]
		}
		return nil
	}, nil
}

// listFieldExistence reports, per row of a list-of-records column,
// whether the row's list is non-null and holds at least one child whose
// target field is non-null.
//
// The evaluation never branches into the nested structure row by row.
// It works on the flattened child sequence instead:
//
//  1. the list offsets give each row's child range in the flat child
//     array (offsets[i+1]-offsets[i] children for row i),
//  2. a 0/1 validity vector over the flat target field marks non-null
//     children,
//  3. an exclusive prefix sum over that vector makes every row's
//     non-null child count a single subtraction:
//     cumsum[offsets[i+1]] - cumsum[offsets[i]].
//
// One linear pass over the children plus O(1) work per row, regardless
// of how the children distribute across rows.
func listFieldExistence(la *array.List, fieldIdx int) []bool {
	n := la.Len()
	out := make([]bool, n)
	if n == 0 {
		return out
	}

	// Offsets index into the unsliced child array, so the prefix sum is
	// built over the full flat length even when the list array itself
	// is a slice.
	offsets := la.Offsets()[la.Offset() : la.Offset()+n+1]
	target := la.ListValues().(*array.Struct).Field(fieldIdx)

	cumsum := make([]int64, target.Len()+1)
	for k := 0; k < target.Len(); k++ {
		v := int64(0)
		if target.IsValid(k) {
			v = 1
		}
		cumsum[k+1] = cumsum[k] + v
	}

	for i := 0; i < n; i++ {
		rowSum := cumsum[offsets[i+1]] - cumsum[offsets[i]]
		out[i] = rowSum > 0 && la.IsValid(i)
	}
	return out
}

// listFieldExistenceScalar is the row-at-a-time reference implementation
// of listFieldExistence. It exists as the correctness oracle for tests
// and is never called from the scan path.
func listFieldExistenceScalar(la *array.List, fieldIdx int) []bool {
	out := make([]bool, la.Len())
	target := la.ListValues().(*array.Struct).Field(fieldIdx)
	for i := range out {
		if la.IsNull(i) {
			continue
		}
		start, end := la.ValueOffsets(i)
		for j := start; j < end; j++ {
			if target.IsValid(int(j)) {
				out[i] = true
				break
			}
		}
	}
	return out
}
