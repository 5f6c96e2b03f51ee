package cmd

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/shenwei356/bio/seq"
	"github.com/shenwei356/bio/seqio/fastx"
)

const (
	countColumnReads = "Number_of_reads"
	countColumnBases = "Number_of_bases_in_reads"
	readStatsName    = "readStats.txt"
)

var countHeaderLabels = strings.NewReplacer(
	"seq_count", countColumnReads,
	"total_length", countColumnBases,
)

type readCount struct {
	File  string `json:"file"`
	Stage string `json:"stage"`
	Reads int64  `json:"reads"`
	Bases int64  `json:"bases"`
}

// countTable is the report body: a header line and one line per file, with
// directories already stripped.
type countTable struct {
	Header string
	Lines  []string
	Counts []readCount
}

type countInput struct {
	Path  string
	Stage string
}

// stripDirs drops everything up to the last '/' on a report line.
func stripDirs(line string) string {
	if i := strings.LastIndexByte(line, '/'); i >= 0 {
		return line[i+1:]
	}
	return line
}

// parseCountLine reads "file<TAB>reads<TAB>bases". ok is false for lines
// that do not have that shape.
func parseCountLine(line string) (readCount, bool) {
	fields := strings.Split(line, "\t")
	if len(fields) < 3 {
		return readCount{}, false
	}
	reads, err := strconv.ParseInt(strings.TrimSpace(fields[1]), 10, 64)
	if err != nil {
		return readCount{}, false
	}
	bases, err := strconv.ParseInt(strings.TrimSpace(fields[2]), 10, 64)
	if err != nil {
		return readCount{}, false
	}
	return readCount{File: fields[0], Reads: reads, Bases: bases}, true
}

func splitLines(out []byte) []string {
	var lines []string
	for _, l := range strings.Split(string(out), "\n") {
		l = strings.TrimRight(l, "\r")
		if l != "" {
			lines = append(lines, l)
		}
	}
	return lines
}

// externalCounts runs fast_count once without arguments for the header and
// once over every input.
func externalCounts(bin string, inputs []countInput) (countTable, error) {
	var table countTable
	headerOut, err := invocation{Name: bin}.output()
	if err != nil {
		return table, err
	}
	header := splitLines(headerOut)
	if len(header) == 0 {
		return table, fmt.Errorf("%s printed no header", bin)
	}
	table.Header = countHeaderLabels.Replace(header[0])

	stageOf := make(map[string]string, len(inputs))
	args := make([]string, 0, len(inputs))
	for _, in := range inputs {
		args = append(args, in.Path)
		stageOf[filepath.Base(in.Path)] = in.Stage
	}
	inv := invocation{Name: bin, Args: args}
	logf("Running: %s", inv)
	out, err := inv.output()
	if err != nil {
		return table, err
	}
	for _, line := range splitLines(out) {
		line = stripDirs(line)
		table.Lines = append(table.Lines, line)
		if rc, ok := parseCountLine(line); ok {
			rc.Stage = stageOf[rc.File]
			table.Counts = append(table.Counts, rc)
		}
	}
	return table, nil
}

func countFastq(path string) (readCount, error) {
	rc := readCount{File: filepath.Base(path)}
	reader, err := fastx.NewReader(seq.Unlimit, path, fastx.DefaultIDRegexp)
	if err != nil {
		return rc, fmt.Errorf("open %s: %w", path, err)
	}
	defer reader.Close()

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return rc, fmt.Errorf("read %s: %w", path, err)
		}
		rc.Reads++
		rc.Bases += int64(len(record.Seq.Seq))
	}
	return rc, nil
}

func nativeCounts(inputs []countInput, progressOn bool) (countTable, error) {
	table := countTable{Header: strings.Join([]string{"file", countColumnReads, countColumnBases}, "\t")}
	bar := newProgress(len(inputs), "count", progressOn)
	for _, in := range inputs {
		rc, err := countFastq(in.Path)
		if err != nil {
			return table, err
		}
		rc.Stage = in.Stage
		table.Counts = append(table.Counts, rc)
		table.Lines = append(table.Lines, fmt.Sprintf("%s\t%d\t%d", rc.File, rc.Reads, rc.Bases))
		bar.increment()
	}
	bar.finish()
	return table, nil
}

// appendCountReport appends table to path, creating it if needed.
func appendCountReport(path string, table countTable) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer func() {
		_ = f.Close()
	}()
	w := bufio.NewWriter(f)
	if _, err := w.WriteString(table.Header + "\n"); err != nil {
		return err
	}
	for _, line := range table.Lines {
		if _, err := w.WriteString(line + "\n"); err != nil {
			return err
		}
	}
	if err := w.Flush(); err != nil {
		return err
	}
	return f.Close()
}

// countInputs lists merged files and, when filtered is set, the filtered
// files after them.
func countInputs(l layout, filtered bool) ([]countInput, error) {
	var inputs []countInput
	stages := []struct {
		name string
		dir  string
		on   bool
	}{
		{name: "merged", dir: l.Fastq, on: true},
		{name: "filtered", dir: l.Filtered, on: filtered},
	}
	for _, s := range stages {
		if !s.on {
			continue
		}
		files, err := globSorted(filepath.Join(s.dir, "*"+fastqGzSuffix))
		if err != nil {
			return nil, err
		}
		for _, f := range files {
			inputs = append(inputs, countInput{Path: f, Stage: s.name})
		}
	}
	if len(inputs) == 0 {
		return nil, errors.New("no FASTQ files to count")
	}
	return inputs, nil
}

type countOptions struct {
	Counter      string
	Bin          string
	Filtered     bool
	StatsParquet string
	Progress     bool
}

func countReads(l layout, opts countOptions) ([]readCount, error) {
	inputs, err := countInputs(l, opts.Filtered)
	if err != nil {
		return nil, err
	}
	var table countTable
	switch opts.Counter {
	case counterNative:
		table, err = nativeCounts(inputs, opts.Progress)
	default:
		table, err = externalCounts(opts.Bin, inputs)
	}
	if err != nil {
		return nil, err
	}
	if err := appendCountReport(l.ReadStats, table); err != nil {
		return nil, fmt.Errorf("write %s: %w", readStatsName, err)
	}
	if opts.StatsParquet != "" {
		if err := writeCountsParquet(opts.StatsParquet, table.Counts); err != nil {
			return nil, fmt.Errorf("write stats parquet: %w", err)
		}
	}
	return table.Counts, nil
}

func runCount(args []string) {
	fs := flag.NewFlagSet("count", flag.ExitOnError)
	outDir := fs.String("outdir", ".", "Pipeline output directory (holds 003_fastq, 004_filtered)")
	counter := fs.String("counter", counterExternal, "Read counter (fast_count,native)")
	bin := fs.String("fast-count-bin", defaultToolPaths().FastCount, "Path to fast_count binary")
	filtered := fs.Bool("include-filtered", false, "Also count 004_filtered")
	statsParquet := fs.String("stats-parquet", "", "Optional Parquet output of read counts")
	progressOn := fs.Bool("progress", true, "Show progress bar")
	if err := fs.Parse(args); err != nil {
		fatalf("parse args failed: %v", err)
	}
	c := strings.ToLower(strings.TrimSpace(*counter))
	if c != counterExternal && c != counterNative {
		fatalf("unknown counter %q (supported: %s,%s)", *counter, counterExternal, counterNative)
	}
	l := newLayout(absPath(*outDir))
	counts, err := countReads(l, countOptions{
		Counter:      c,
		Bin:          *bin,
		Filtered:     *filtered,
		StatsParquet: *statsParquet,
		Progress:     *progressOn,
	})
	if err != nil {
		fatalf("count failed: %v", err)
	}
	logf("Counted %d files -> %s", len(counts), l.ReadStats)
}
