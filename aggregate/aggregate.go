// Package aggregate accumulates scan statistics across record batches:
// scanned/matched totals, per-column value-count histograms over
// matched rows, and optional min/max tracking.
//
// An Aggregator observes one (batch, mask) pair at a time. Aggregators
// built over disjoint file subsets can be merged, which is what makes
// the sharded scan extension a pure reduction: Merge is associative and
// commutative on the totals and histogram counts.
package aggregate

import (
	"sort"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
)

// NullKey is the histogram key used for null group-by values. The
// literal "None" spelling is kept for compatibility with existing
// reports built on top of the scan output.
const NullKey = "None"

// Entry is one value/count pair of a finalized histogram.
type Entry struct {
	Value string
	Count int64
}

// Histogram counts rendered values for one group-by column. It
// remembers first-insertion order, which Finalize uses to break count
// ties deterministically.
type Histogram struct {
	counts map[string]int64
	order  []string
}

func newHistogram() *Histogram {
	return &Histogram{counts: make(map[string]int64)}
}

func (h *Histogram) add(key string, n int64) {
	if _, ok := h.counts[key]; !ok {
		h.order = append(h.order, key)
	}
	h.counts[key] += n
}

func (h *Histogram) merge(other *Histogram) {
	for _, key := range other.order {
		h.add(key, other.counts[key])
	}
}

// finalize orders entries descending by count. The sort is stable over
// first-insertion order, so ties keep the order values were first seen
// in, not value order.
func (h *Histogram) finalize() {
	sort.SliceStable(h.order, func(i, j int) bool {
		return h.counts[h.order[i]] > h.counts[h.order[j]]
	})
}

// Len returns the number of distinct values.
func (h *Histogram) Len() int { return len(h.order) }

// Count returns the accumulated count for one value.
func (h *Histogram) Count(value string) int64 { return h.counts[value] }

// Entries returns all value/count pairs. Sorted descending by count
// once the owning aggregator is finalized.
func (h *Histogram) Entries() []Entry {
	return h.Top(len(h.order))
}

// Top returns at most n leading entries.
func (h *Histogram) Top(n int) []Entry {
	if n > len(h.order) {
		n = len(h.order)
	}
	out := make([]Entry, 0, n)
	for _, key := range h.order[:n] {
		out = append(out, Entry{Value: key, Count: h.counts[key]})
	}
	return out
}

// ordKind selects the comparison domain for min/max tracking.
type ordKind int

const (
	ordText ordKind = iota // strings, dates, anything whose rendering orders correctly
	ordNum                 // integers and floats
)

// MinMax tracks the extremes of one column over matched rows.
type MinMax struct {
	seen             bool
	kind             ordKind
	minNum, maxNum   float64
	minText, maxText string
}

func (m *MinMax) observe(col arrow.Array, i int) {
	if col.IsNull(i) {
		return
	}
	text := col.ValueStr(i)
	switch col.(type) {
	case *array.Int8, *array.Int16, *array.Int32, *array.Int64,
		*array.Float32, *array.Float64:
		m.kind = ordNum
	}
	num := 0.0
	if m.kind == ordNum {
		num = numericValue(col, i)
	}
	if !m.seen {
		m.seen = true
		m.minNum, m.maxNum = num, num
		m.minText, m.maxText = text, text
		return
	}
	if m.less(num, text, m.minNum, m.minText) {
		m.minNum, m.minText = num, text
	}
	if m.less(m.maxNum, m.maxText, num, text) {
		m.maxNum, m.maxText = num, text
	}
}

func (m *MinMax) less(aNum float64, aText string, bNum float64, bText string) bool {
	if m.kind == ordNum {
		return aNum < bNum
	}
	return aText < bText
}

func (m *MinMax) merge(other *MinMax) {
	if !other.seen {
		return
	}
	if !m.seen {
		*m = *other
		return
	}
	if m.less(other.minNum, other.minText, m.minNum, m.minText) {
		m.minNum, m.minText = other.minNum, other.minText
	}
	if m.less(m.maxNum, m.maxText, other.maxNum, other.maxText) {
		m.maxNum, m.maxText = other.maxNum, other.maxText
	}
}

func numericValue(col arrow.Array, i int) float64 {
	switch a := col.(type) {
	case *array.Int8:
		return float64(a.Value(i))
	case *array.Int16:
		return float64(a.Value(i))
	case *array.Int32:
		return float64(a.Value(i))
	case *array.Int64:
		return float64(a.Value(i))
	case *array.Float32:
		return float64(a.Value(i))
	case *array.Float64:
		return a.Value(i)
	}
	return 0
}

// ScanResult is the accumulated outcome of one scan: monotonic totals,
// group-by histograms and min/max trackers. It is mutated through an
// Aggregator during the run and read-only after Finalize.
type ScanResult struct {
	totalScanned int64
	totalMatched int64

	groupCols []string
	groups    map[string]*Histogram

	minMaxCols []string
	minMax     map[string]*MinMax
}

// TotalScanned returns the number of rows read, matched or not.
func (r *ScanResult) TotalScanned() int64 { return r.totalScanned }

// TotalMatched returns the number of rows surviving all predicates.
func (r *ScanResult) TotalMatched() int64 { return r.totalMatched }

// GroupColumns returns the histogram columns in request order.
func (r *ScanResult) GroupColumns() []string { return r.groupCols }

// Group returns the histogram for one group-by column, or nil.
func (r *ScanResult) Group(col string) *Histogram { return r.groups[col] }

// MinMaxColumns returns the tracked min/max columns in request order.
func (r *ScanResult) MinMaxColumns() []string { return r.minMaxCols }

// MinMaxOf returns the rendered extremes for one tracked column.
// ok is false when the column is untracked or no matched row had a
// non-null value.
func (r *ScanResult) MinMaxOf(col string) (minVal, maxVal string, ok bool) {
	m := r.minMax[col]
	if m == nil || !m.seen {
		return "", "", false
	}
	return m.minText, m.maxText, true
}

// Aggregator accumulates a ScanResult batch by batch.
type Aggregator struct {
	res       *ScanResult
	finalized bool
}

// New creates an Aggregator tracking histograms for groupBy columns and
// extremes for minMax columns. Either list may be empty.
func New(groupBy, minMax []string) *Aggregator {
	res := &ScanResult{
		groupCols:  append([]string(nil), groupBy...),
		groups:     make(map[string]*Histogram, len(groupBy)),
		minMaxCols: append([]string(nil), minMax...),
		minMax:     make(map[string]*MinMax, len(minMax)),
	}
	for _, col := range groupBy {
		res.groups[col] = newHistogram()
	}
	for _, col := range minMax {
		res.minMax[col] = &MinMax{}
	}
	return &Aggregator{res: res}
}

// Observe folds one batch into the result: totalScanned grows by the
// batch row count, totalMatched by the number of true mask entries, and
// histograms/extremes by the surviving rows' values. Nulls count under
// NullKey. Columns absent from the batch are skipped; the scan driver
// projects them in, so absence only occurs in hand-built batches.
func (a *Aggregator) Observe(rec arrow.Record, mask []bool) {
	a.res.totalScanned += rec.NumRows()
	a.res.totalMatched += matchCount(mask)

	for _, col := range a.res.groupCols {
		arr := namedColumn(rec, col)
		if arr == nil {
			continue
		}
		h := a.res.groups[col]
		for i, keep := range mask {
			if !keep {
				continue
			}
			if arr.IsNull(i) {
				h.add(NullKey, 1)
			} else {
				h.add(arr.ValueStr(i), 1)
			}
		}
	}

	for _, col := range a.res.minMaxCols {
		arr := namedColumn(rec, col)
		if arr == nil {
			continue
		}
		m := a.res.minMax[col]
		for i, keep := range mask {
			if keep {
				m.observe(arr, i)
			}
		}
	}
}

// Merge folds another aggregator's result into this one. Both must be
// unfinalized. Totals add; histogram counts add, with unseen values
// appended in the other's insertion order; extremes combine.
func (a *Aggregator) Merge(other *Aggregator) {
	a.res.totalScanned += other.res.totalScanned
	a.res.totalMatched += other.res.totalMatched
	for _, col := range a.res.groupCols {
		if oh := other.res.groups[col]; oh != nil {
			a.res.groups[col].merge(oh)
		}
	}
	for _, col := range a.res.minMaxCols {
		if om := other.res.minMax[col]; om != nil {
			a.res.minMax[col].merge(om)
		}
	}
}

// Finalize sorts every histogram descending by count (stable, so ties
// keep first-insertion order) and returns the result. Idempotent.
func (a *Aggregator) Finalize() *ScanResult {
	if !a.finalized {
		for _, h := range a.res.groups {
			h.finalize()
		}
		a.finalized = true
	}
	return a.res
}

// Result returns the accumulator without finalizing. Intended for
// progress reporting during the run.
func (a *Aggregator) Result() *ScanResult { return a.res }

func matchCount(mask []bool) int64 {
	var n int64
	for _, m := range mask {
		if m {
			n++
		}
	}
	return n
}

func namedColumn(rec arrow.Record, name string) arrow.Array {
	indices := rec.Schema().FieldIndices(name)
	if len(indices) == 0 {
		return nil
	}
	return rec.Column(indices[0])
}
