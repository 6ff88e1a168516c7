// Package testgen builds Arrow record batches and parquet fixture
// files shaped like the court-opinion dataset, for tests.
package testgen

import (
	"context"
	"io"
	"os"
	"testing"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/file"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"
)

// Opinion is one nested child record. A nil Text is a null
// opinion_text.
type Opinion struct {
	Text *string
}

// Case is one row. DateFiled is ISO (YYYY-MM-DD), empty means null.
// Nil Attorneys/Judges are nulls. A nil Opinions slice is a null list;
// an empty non-nil slice is an empty list.
type Case struct {
	CourtType    string
	Jurisdiction string
	DateFiled    string
	Attorneys    *string
	Judges       *string
	Opinions     []Opinion
}

// Str is a convenience for building nullable string fields.
func Str(s string) *string { return &s }

// Text builds an opinion with non-null text.
func Text(s string) Opinion { return Opinion{Text: &s} }

// NullText builds an opinion whose opinion_text is null.
func NullText() Opinion { return Opinion{} }

// Schema returns the fixture schema.
func Schema() *arrow.Schema {
	return arrow.NewSchema([]arrow.Field{
		{Name: "court_type", Type: arrow.BinaryTypes.String},
		{Name: "court_jurisdiction", Type: arrow.BinaryTypes.String, Nullable: true},
		{Name: "date_filed", Type: arrow.FixedWidthTypes.Date32, Nullable: true},
		{Name: "attorneys", Type: arrow.BinaryTypes.String, Nullable: true},
		{Name: "judges", Type: arrow.BinaryTypes.String, Nullable: true},
		{Name: "opinions", Type: arrow.ListOf(arrow.StructOf(
			arrow.Field{Name: "opinion_text", Type: arrow.BinaryTypes.String, Nullable: true},
		)), Nullable: true},
	}, nil)
}

// Batch builds one record batch from rows. The caller must Release it.
func Batch(t *testing.T, rows []Case) arrow.Record {
	t.Helper()
	b := array.NewRecordBuilder(memory.DefaultAllocator, Schema())
	defer b.Release()

	courtType := b.Field(0).(*array.StringBuilder)
	jurisdiction := b.Field(1).(*array.StringBuilder)
	dateFiled := b.Field(2).(*array.Date32Builder)
	attorneys := b.Field(3).(*array.StringBuilder)
	judges := b.Field(4).(*array.StringBuilder)
	opinions := b.Field(5).(*array.ListBuilder)
	opinion := opinions.ValueBuilder().(*array.StructBuilder)
	opinionText := opinion.FieldBuilder(0).(*array.StringBuilder)

	appendStr := func(sb *array.StringBuilder, v *string) {
		if v == nil {
			sb.AppendNull()
		} else {
			sb.Append(*v)
		}
	}

	for _, row := range rows {
		courtType.Append(row.CourtType)
		appendStr(jurisdiction, Str(row.Jurisdiction))
		if row.DateFiled == "" {
			dateFiled.AppendNull()
		} else {
			d, err := time.Parse("2006-01-02", row.DateFiled)
			if err != nil {
				t.Fatalf("bad fixture date %q: %v", row.DateFiled, err)
			}
			dateFiled.Append(arrow.Date32FromTime(d))
		}
		appendStr(attorneys, row.Attorneys)
		appendStr(judges, row.Judges)
		if row.Opinions == nil {
			opinions.AppendNull()
			continue
		}
		opinions.Append(true)
		for _, op := range row.Opinions {
			opinion.Append(true)
			appendStr(opinionText, op.Text)
		}
	}
	return b.NewRecordBatch()
}

// WriteParquet writes batches to one parquet file at path.
func WriteParquet(t *testing.T, path string, batches ...arrow.Record) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("creating %s: %v", path, err)
	}
	w, err := pqarrow.NewFileWriter(batches[0].Schema(), f,
		parquet.NewWriterProperties(), pqarrow.DefaultWriterProps())
	if err != nil {
		t.Fatalf("opening writer for %s: %v", path, err)
	}
	for _, rec := range batches {
		if err := w.Write(rec); err != nil {
			t.Fatalf("writing %s: %v", path, err)
		}
	}
	// The writer owns f and closes it.
	if err := w.Close(); err != nil {
		t.Fatalf("finalizing %s: %v", path, err)
	}
}

// WriteCases builds one batch from rows and writes it to path.
func WriteCases(t *testing.T, path string, rows []Case) {
	t.Helper()
	rec := Batch(t, rows)
	defer rec.Release()
	WriteParquet(t, path, rec)
}

// ReadAll reads every record batch from a parquet file. The caller
// must Release the returned records.
func ReadAll(t *testing.T, path string) []arrow.Record {
	t.Helper()
	rdr, err := file.OpenParquetFile(path, false)
	if err != nil {
		t.Fatalf("opening %s: %v", path, err)
	}
	defer rdr.Close()

	fr, err := pqarrow.NewFileReader(rdr, pqarrow.ArrowReadProperties{}, memory.DefaultAllocator)
	if err != nil {
		t.Fatalf("reading %s: %v", path, err)
	}
	rr, err := fr.GetRecordReader(context.Background(), nil, nil)
	if err != nil {
		t.Fatalf("record reader for %s: %v", path, err)
	}
	defer rr.Release()

	var out []arrow.Record
	for rr.Next() {
		rec := rr.Record()
		rec.Retain()
		out = append(out, rec)
	}
	if err := rr.Err(); err != nil && err != io.EOF {
		t.Fatalf("iterating %s: %v", path, err)
	}
	return out
}

// TotalRows sums the row counts of records.
func TotalRows(recs []arrow.Record) int64 {
	var n int64
	for _, r := range recs {
		n += r.NumRows()
	}
	return n
}

// ReleaseAll releases records.
func ReleaseAll(recs []arrow.Record) {
	for _, r := range recs {
		r.Release()
	}
}
