package cmd

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"

	"github.com/klauspost/pgzip"
)

const (
	defaultFilterMinLength   = 1000
	defaultFilterKeepPercent = 95
	filteredSuffix           = "_filtered"
)

type filterParams struct {
	MinLength   int     `json:"min_length"`
	KeepPercent float64 `json:"keep_percent"`
	TargetBases int64   `json:"target_bases,omitempty"`
}

func defaultFilterParams() filterParams {
	return filterParams{
		MinLength:   defaultFilterMinLength,
		KeepPercent: defaultFilterKeepPercent,
	}
}

func (p filterParams) validate() error {
	if p.MinLength < 0 {
		return fmt.Errorf("filter min length must be >= 0, got %d", p.MinLength)
	}
	if p.KeepPercent <= 0 || p.KeepPercent > 100 {
		return fmt.Errorf("filter keep percent must be in (0,100], got %g", p.KeepPercent)
	}
	if p.TargetBases < 0 {
		return fmt.Errorf("filter target bases must be >= 0, got %d", p.TargetBases)
	}
	return nil
}

func filtlongInvocation(bin string, p filterParams, input string) invocation {
	args := []string{
		"--min_length", strconv.Itoa(p.MinLength),
		"--keep_percent", strconv.FormatFloat(p.KeepPercent, 'f', -1, 64),
	}
	if p.TargetBases > 0 {
		args = append(args, "--target_bases", strconv.FormatInt(p.TargetBases, 10))
	}
	args = append(args, input)
	return invocation{Name: bin, Args: args}
}

func filteredPath(outDir, input string) string {
	return filepath.Join(outDir, fastqBase(input)+filteredSuffix+fastqGzSuffix)
}

// filterOne runs filtlong on input and gzips its stdout into dest.
func filterOne(bin string, p filterParams, input, dest string) error {
	f, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("create %s: %w", dest, err)
	}
	defer func() {
		_ = f.Close()
	}()

	gz, err := pgzip.NewWriterLevel(f, pgzip.DefaultCompression)
	if err != nil {
		return fmt.Errorf("create gzip writer: %w", err)
	}
	if err := gz.SetConcurrency(1<<20, runtime.GOMAXPROCS(0)); err != nil {
		_ = gz.Close()
		return fmt.Errorf("set gzip concurrency: %w", err)
	}
	if err := filtlongInvocation(bin, p, input).runTo(gz); err != nil {
		_ = gz.Close()
		return err
	}
	if err := gz.Close(); err != nil {
		return fmt.Errorf("finalize gzip %s: %w", dest, err)
	}
	return f.Close()
}

// filterReads filters every input into outDir and returns the outputs in
// input order. Earlier outputs in outDir are removed first.
func filterReads(bin string, p filterParams, inputs []string, outDir string, progressOn bool) ([]string, error) {
	if len(inputs) == 0 {
		return nil, errors.New("no merged FASTQ files to filter")
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("create filtered dir: %w", err)
	}
	stale, err := globSorted(filepath.Join(outDir, "*"+fastqGzSuffix))
	if err != nil {
		return nil, err
	}
	for _, f := range stale {
		if err := os.Remove(f); err != nil {
			return nil, fmt.Errorf("remove stale %s: %w", f, err)
		}
	}
	bar := newProgress(len(inputs), "filter", progressOn)
	outputs := make([]string, 0, len(inputs))
	for _, input := range inputs {
		dest := filteredPath(outDir, input)
		if err := filterOne(bin, p, input, dest); err != nil {
			return nil, fmt.Errorf("filter %s: %w", filepath.Base(input), err)
		}
		outputs = append(outputs, dest)
		bar.increment()
	}
	bar.finish()
	return outputs, nil
}

func bindFilterFlags(fs *flag.FlagSet, p *filterParams) {
	*p = defaultFilterParams()
	fs.IntVar(&p.MinLength, "min-length", p.MinLength, "Filtlong --min_length")
	fs.Float64Var(&p.KeepPercent, "keep-percent", p.KeepPercent, "Filtlong --keep_percent")
	fs.Int64Var(&p.TargetBases, "target-bases", p.TargetBases, "Filtlong --target_bases (0 disables)")
}

func runFilter(args []string) {
	fs := flag.NewFlagSet("filter", flag.ExitOnError)
	outDir := fs.String("outdir", ".", "Pipeline output directory (holds 003_fastq)")
	bin := fs.String("filtlong-bin", defaultToolPaths().Filtlong, "Path to filtlong binary")
	progressOn := fs.Bool("progress", true, "Show progress bar")
	var params filterParams
	bindFilterFlags(fs, &params)
	if err := fs.Parse(args); err != nil {
		fatalf("parse args failed: %v", err)
	}
	if err := params.validate(); err != nil {
		fatalf("%v", err)
	}
	l := newLayout(absPath(*outDir))
	inputs, err := globSorted(filepath.Join(l.Fastq, "*"+fastqGzSuffix))
	if err != nil {
		fatalf("list merged files: %v", err)
	}
	outputs, err := filterReads(*bin, params, inputs, l.Filtered, *progressOn)
	if err != nil {
		fatalf("filter failed: %v", err)
	}
	logf("Filtered %d FASTQ files into %s", len(outputs), l.Filtered)
}
