package cmd

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

const (
	unclassifiedBarcode = "unclassified"
	unbarcodedReads     = "reads"
	barcodeDirPattern   = "barcode[0-9][0-9]"
)

type mergedFile struct {
	Barcode   string `json:"barcode"`
	Path      string `json:"path"`
	Fragments int    `json:"fragments"`
}

// passDir is where guppy writes reads that passed its quality threshold.
func passDir(basecalledDir string) string {
	return filepath.Join(basecalledDir, "pass")
}

// barcodeDirs lists the demultiplexed directories guppy created under
// pass/: barcodeNN in name order, then unclassified.
func barcodeDirs(basecalledDir string) ([]string, error) {
	pass := passDir(basecalledDir)
	if !isDir(pass) {
		return nil, fmt.Errorf("basecaller output %s not found (expected %s/%s and %s/%s)", pass, pass, barcodeDirPattern, pass, unclassifiedBarcode)
	}
	matches, err := filepath.Glob(filepath.Join(pass, barcodeDirPattern))
	if err != nil {
		return nil, err
	}
	var dirs []string
	for _, m := range matches {
		if isDir(m) {
			dirs = append(dirs, m)
		}
	}
	if unclassified := filepath.Join(pass, unclassifiedBarcode); isDir(unclassified) {
		dirs = append(dirs, unclassified)
	}
	if len(dirs) == 0 {
		return nil, fmt.Errorf("no demultiplexed directories matching %s/%s or %s/%s", pass, barcodeDirPattern, pass, unclassifiedBarcode)
	}
	return dirs, nil
}

// concatFiles writes srcs to dest back to back. Concatenated gzip members
// form a valid gzip stream, so compressed fragments are copied verbatim.
func concatFiles(dest string, srcs []string) error {
	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("create %s: %w", dest, err)
	}
	defer func() {
		_ = out.Close()
	}()

	for _, src := range srcs {
		in, err := os.Open(src)
		if err != nil {
			return fmt.Errorf("open %s: %w", src, err)
		}
		_, err = io.Copy(out, in)
		_ = in.Close()
		if err != nil {
			return fmt.Errorf("copy %s: %w", src, err)
		}
	}
	return out.Close()
}

// removeStaleFastq deletes the *.fastq.gz files directly under dir and, when
// present, its unused_barcodes folder. Earlier runs leave renamed sample
// files there that would otherwise collide with or join the new outputs.
func removeStaleFastq(dir string) error {
	stale, err := globSorted(filepath.Join(dir, "*"+fastqGzSuffix))
	if err != nil {
		return err
	}
	if len(stale) > 0 {
		logf("Removing %d FASTQ files left in %s by an earlier run", len(stale), dir)
	}
	for _, f := range stale {
		if err := os.Remove(f); err != nil {
			return fmt.Errorf("remove stale %s: %w", f, err)
		}
	}
	if err := os.RemoveAll(filepath.Join(dir, unusedBarcodesDir)); err != nil {
		return fmt.Errorf("remove stale %s: %w", unusedBarcodesDir, err)
	}
	return nil
}

// mergeBasecalled concatenates guppy's FASTQ fragments into fastqDir: one
// reads.fastq.gz without barcoding, one <barcode>.fastq.gz per barcode
// directory otherwise. FASTQ files already in fastqDir are removed first.
func mergeBasecalled(basecalledDir, fastqDir string, barcoded, progressOn bool) ([]mergedFile, error) {
	if err := os.MkdirAll(fastqDir, 0o755); err != nil {
		return nil, fmt.Errorf("create fastq dir: %w", err)
	}
	if err := removeStaleFastq(fastqDir); err != nil {
		return nil, err
	}

	if !barcoded {
		src := passDir(basecalledDir)
		if !isDir(src) {
			src = basecalledDir
		}
		fragments, err := globSorted(filepath.Join(src, "*"+fastqGzSuffix))
		if err != nil {
			return nil, err
		}
		if len(fragments) == 0 {
			return nil, fmt.Errorf("no *%s fragments found in %s", fastqGzSuffix, src)
		}
		dest := filepath.Join(fastqDir, unbarcodedReads+fastqGzSuffix)
		if err := concatFiles(dest, fragments); err != nil {
			return nil, err
		}
		return []mergedFile{{Barcode: unbarcodedReads, Path: dest, Fragments: len(fragments)}}, nil
	}

	dirs, err := barcodeDirs(basecalledDir)
	if err != nil {
		return nil, err
	}
	bar := newProgress(len(dirs), "merge", progressOn)
	var merged []mergedFile
	for _, dir := range dirs {
		barcode := filepath.Base(dir)
		fragments, err := globSorted(filepath.Join(dir, "*.gz"))
		if err != nil {
			return nil, err
		}
		if len(fragments) == 0 {
			logf("No fragments in %s, skipping", dir)
			bar.increment()
			continue
		}
		dest := filepath.Join(fastqDir, barcode+fastqGzSuffix)
		if err := concatFiles(dest, fragments); err != nil {
			return nil, fmt.Errorf("merge %s: %w", barcode, err)
		}
		merged = append(merged, mergedFile{Barcode: barcode, Path: dest, Fragments: len(fragments)})
		bar.increment()
	}
	bar.finish()
	if len(merged) == 0 {
		return nil, errors.New("no FASTQ fragments found in any barcode directory")
	}
	return merged, nil
}

func runMerge(args []string) {
	fs := flag.NewFlagSet("merge", flag.ExitOnError)
	outDir := fs.String("outdir", ".", "Pipeline output directory (holds 002_basecalled)")
	kit := fs.String("kit", "", "Barcode kit used for basecalling")
	progressOn := fs.Bool("progress", true, "Show progress bar")
	if err := fs.Parse(args); err != nil {
		fatalf("parse args failed: %v", err)
	}
	t := defaultTables()
	if !t.Barcodes.has(*kit) {
		fatalf("valid barcode kit choices are: %s", joinWithOr(t.Barcodes.names()))
	}
	l := newLayout(absPath(*outDir))
	cfg := runConfig{BarcodeKit: *kit}.normalized()
	merged, err := mergeBasecalled(l.Basecalled, l.Fastq, cfg.barcoded(), *progressOn)
	if err != nil {
		fatalf("merge failed: %v", err)
	}
	logf("Merged %d FASTQ files into %s", len(merged), l.Fastq)
}
