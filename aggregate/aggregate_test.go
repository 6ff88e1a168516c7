package aggregate

import (
	"reflect"
	"testing"

	"github.com/caselab/casescan/internal/testgen"
)

func allTrue(n int) []bool {
	mask := make([]bool, n)
	for i := range mask {
		mask[i] = true
	}
	return mask
}

func TestObserveTotals(t *testing.T) {
	rec := testgen.Batch(t, []testgen.Case{
		{CourtType: "FD"}, {CourtType: "ST"}, {CourtType: "FD"},
	})
	defer rec.Release()

	agg := New(nil, nil)
	agg.Observe(rec, []bool{true, false, true})
	agg.Observe(rec, []bool{false, false, false})

	res := agg.Finalize()
	if res.TotalScanned() != 6 {
		t.Errorf("TotalScanned = %d, want 6", res.TotalScanned())
	}
	if res.TotalMatched() != 2 {
		t.Errorf("TotalMatched = %d, want 2", res.TotalMatched())
	}
	if res.TotalMatched() > res.TotalScanned() {
		t.Error("matched exceeds scanned")
	}
}

func TestObserveGroupCountsOnlyMatchedRows(t *testing.T) {
	rec := testgen.Batch(t, []testgen.Case{
		{CourtType: "FD"}, {CourtType: "ST"}, {CourtType: "FD"}, {CourtType: "MA"},
	})
	defer rec.Release()

	agg := New([]string{"court_type"}, nil)
	agg.Observe(rec, []bool{true, true, true, false})

	h := agg.Finalize().Group("court_type")
	if h.Count("FD") != 2 || h.Count("ST") != 1 {
		t.Errorf("counts FD=%d ST=%d, want 2/1", h.Count("FD"), h.Count("ST"))
	}
	if h.Count("MA") != 0 {
		t.Errorf("unmatched row counted: MA=%d", h.Count("MA"))
	}
}

func TestObserveNullGroupKey(t *testing.T) {
	rec := testgen.Batch(t, []testgen.Case{
		{CourtType: "FD", Judges: testgen.Str("J. Stone")},
		{CourtType: "FD"},
		{CourtType: "FD"},
	})
	defer rec.Release()

	agg := New([]string{"judges"}, nil)
	agg.Observe(rec, allTrue(3))

	h := agg.Finalize().Group("judges")
	if h.Count(NullKey) != 2 {
		t.Errorf("null key count = %d, want 2", h.Count(NullKey))
	}
}

func TestFinalizeSortsDescendingWithInsertionOrderTies(t *testing.T) {
	rec := testgen.Batch(t, []testgen.Case{
		{CourtType: "ST"}, {CourtType: "FD"}, {CourtType: "MA"},
		{CourtType: "FD"}, {CourtType: "ST"}, {CourtType: "FD"},
	})
	defer rec.Release()

	agg := New([]string{"court_type"}, nil)
	agg.Observe(rec, allTrue(6))

	// FD=3; ST and MA tie at... ST=2, MA=1. Add another MA batch to
	// force an ST/MA tie with ST seen first.
	rec2 := testgen.Batch(t, []testgen.Case{{CourtType: "MA"}})
	defer rec2.Release()
	agg.Observe(rec2, allTrue(1))

	got := agg.Finalize().Group("court_type").Entries()
	want := []Entry{{"FD", 3}, {"ST", 2}, {"MA", 2}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("entries = %v, want %v", got, want)
	}
}

func TestHistogramTop(t *testing.T) {
	rec := testgen.Batch(t, []testgen.Case{
		{CourtType: "FD"}, {CourtType: "FD"}, {CourtType: "ST"}, {CourtType: "MA"},
	})
	defer rec.Release()

	agg := New([]string{"court_type"}, nil)
	agg.Observe(rec, allTrue(4))

	h := agg.Finalize().Group("court_type")
	if got := h.Top(2); len(got) != 2 || got[0].Value != "FD" {
		t.Errorf("Top(2) = %v", got)
	}
	if got := h.Top(100); len(got) != 3 {
		t.Errorf("Top(100) returned %d entries, want 3", len(got))
	}
}

func TestMinMaxDates(t *testing.T) {
	rec := testgen.Batch(t, []testgen.Case{
		{CourtType: "FD", DateFiled: "2015-06-01"},
		{CourtType: "FD", DateFiled: "1999-03-10"},
		{CourtType: "FD", DateFiled: ""},
		{CourtType: "FD", DateFiled: "2020-11-20"},
	})
	defer rec.Release()

	agg := New(nil, []string{"date_filed"})
	agg.Observe(rec, allTrue(4))

	minVal, maxVal, ok := agg.Finalize().MinMaxOf("date_filed")
	if !ok {
		t.Fatal("expected min/max to be tracked")
	}
	if minVal != "1999-03-10" || maxVal != "2020-11-20" {
		t.Errorf("min/max = %q/%q, want 1999-03-10/2020-11-20", minVal, maxVal)
	}
}

func TestMinMaxNoValues(t *testing.T) {
	rec := testgen.Batch(t, []testgen.Case{{CourtType: "FD"}})
	defer rec.Release()

	agg := New(nil, []string{"date_filed"})
	agg.Observe(rec, []bool{false})

	if _, _, ok := agg.Finalize().MinMaxOf("date_filed"); ok {
		t.Error("expected no min/max for zero matched values")
	}
}

func TestMergeAdditive(t *testing.T) {
	recA := testgen.Batch(t, []testgen.Case{{CourtType: "FD"}, {CourtType: "ST"}})
	defer recA.Release()
	recB := testgen.Batch(t, []testgen.Case{{CourtType: "FD"}, {CourtType: "MA"}})
	defer recB.Release()

	left := New([]string{"court_type"}, nil)
	left.Observe(recA, allTrue(2))
	right := New([]string{"court_type"}, nil)
	right.Observe(recB, allTrue(2))

	left.Merge(right)
	res := left.Finalize()
	if res.TotalScanned() != 4 || res.TotalMatched() != 4 {
		t.Errorf("totals = %d/%d, want 4/4", res.TotalScanned(), res.TotalMatched())
	}
	h := res.Group("court_type")
	if h.Count("FD") != 2 || h.Count("ST") != 1 || h.Count("MA") != 1 {
		t.Errorf("counts = FD=%d ST=%d MA=%d", h.Count("FD"), h.Count("ST"), h.Count("MA"))
	}
}

// TestMergeEqualsSinglePass verifies the reduction property: merging
// per-partition aggregators equals aggregating everything in one pass.
func TestMergeEqualsSinglePass(t *testing.T) {
	rows := []testgen.Case{
		{CourtType: "FD", DateFiled: "2010-01-01", Judges: testgen.Str("J. Stone")},
		{CourtType: "ST", DateFiled: "2005-05-05"},
		{CourtType: "FD", DateFiled: "2021-09-09", Judges: testgen.Str("J. Hill")},
		{CourtType: "MA", DateFiled: ""},
		{CourtType: "FD", DateFiled: "1998-02-02", Judges: testgen.Str("J. Stone")},
	}
	whole := testgen.Batch(t, rows)
	defer whole.Release()
	partA := testgen.Batch(t, rows[:2])
	defer partA.Release()
	partB := testgen.Batch(t, rows[2:])
	defer partB.Release()

	groupBy := []string{"court_type", "judges"}
	minMax := []string{"date_filed"}

	single := New(groupBy, minMax)
	single.Observe(whole, allTrue(5))
	singleRes := single.Finalize()

	merged := New(groupBy, minMax)
	merged.Observe(partA, allTrue(2))
	other := New(groupBy, minMax)
	other.Observe(partB, allTrue(3))
	merged.Merge(other)
	mergedRes := merged.Finalize()

	if singleRes.TotalScanned() != mergedRes.TotalScanned() ||
		singleRes.TotalMatched() != mergedRes.TotalMatched() {
		t.Errorf("totals differ: %d/%d vs %d/%d",
			singleRes.TotalScanned(), singleRes.TotalMatched(),
			mergedRes.TotalScanned(), mergedRes.TotalMatched())
	}
	for _, col := range groupBy {
		if !reflect.DeepEqual(singleRes.Group(col).Entries(), mergedRes.Group(col).Entries()) {
			t.Errorf("%s histogram differs: %v vs %v",
				col, singleRes.Group(col).Entries(), mergedRes.Group(col).Entries())
		}
	}
	sMin, sMax, _ := singleRes.MinMaxOf("date_filed")
	mMin, mMax, _ := mergedRes.MinMaxOf("date_filed")
	if sMin != mMin || sMax != mMax {
		t.Errorf("min/max differ: %s/%s vs %s/%s", sMin, sMax, mMin, mMax)
	}
}
