package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/apache/arrow/go/v18/arrow"
	"github.com/apache/arrow/go/v18/arrow/array"
	"github.com/apache/arrow/go/v18/arrow/memory"
	"github.com/apache/arrow/go/v18/parquet"
	"github.com/apache/arrow/go/v18/parquet/compress"
	"github.com/apache/arrow/go/v18/parquet/pqarrow"
)

var countSchema = arrow.NewSchema([]arrow.Field{
	{Name: "file", Type: arrow.BinaryTypes.String},
	{Name: "stage", Type: arrow.BinaryTypes.String},
	{Name: countColumnReads, Type: arrow.PrimitiveTypes.Int64},
	{Name: countColumnBases, Type: arrow.PrimitiveTypes.Int64},
}, nil)

// writeCountsParquet writes counts as a single row group.
func writeCountsParquet(path string, counts []readCount) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create parquet dir: %w", err)
	}

	bld := array.NewRecordBuilder(memory.DefaultAllocator, countSchema)
	defer bld.Release()
	files := bld.Field(0).(*array.StringBuilder)
	stages := bld.Field(1).(*array.StringBuilder)
	reads := bld.Field(2).(*array.Int64Builder)
	bases := bld.Field(3).(*array.Int64Builder)
	for _, c := range counts {
		files.Append(c.File)
		stages.Append(c.Stage)
		reads.Append(c.Reads)
		bases.Append(c.Bases)
	}
	rec := bld.NewRecord()
	defer rec.Release()

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer func() {
		_ = f.Close()
	}()

	props := parquet.NewWriterProperties(parquet.WithCompression(compress.Codecs.Snappy))
	w, err := pqarrow.NewFileWriter(countSchema, f, props, pqarrow.DefaultWriterProps())
	if err != nil {
		return fmt.Errorf("create parquet writer: %w", err)
	}
	if err := w.Write(rec); err != nil {
		_ = w.Close()
		return fmt.Errorf("write parquet: %w", err)
	}
	return w.Close()
}
