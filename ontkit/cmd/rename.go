package cmd

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

const (
	unusedBarcodesDir = "unused_barcodes"
	renameScriptName  = "rename_samples.sh"
	renameTempSuffix  = ".renaming"
)

var barcodeFile = regexp.MustCompile(`^barcode[0-9]+$`)

type renameStep struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// renamePlan is the full set of moves for one fastq directory. Paths are
// base names relative to the directory.
type renamePlan struct {
	Dir     string       `json:"dir"`
	Renames []renameStep `json:"renames"`
	Unused  []string     `json:"unused"`
	Missing []string     `json:"missing,omitempty"`
}

// planRenames matches every barcodeNN.fastq.gz and unclassified.fastq.gz in
// dir against key. Matched files get the sample name; the rest, and always
// unclassified, go to unused_barcodes.
func planRenames(dir string, key *sampleKey) (renamePlan, error) {
	plan := renamePlan{Dir: dir}
	files, err := globSorted(filepath.Join(dir, "*"+fastqGzSuffix))
	if err != nil {
		return plan, err
	}

	present := make(map[string]bool, len(files))
	for _, f := range files {
		present[filepath.Base(f)] = true
	}
	seen := make(map[string]bool)
	for _, f := range files {
		name := filepath.Base(f)
		barcode := fastqBase(name)
		switch {
		case barcode == unclassifiedBarcode:
			plan.Unused = append(plan.Unused, name)
		case barcodeFile.MatchString(barcode):
			sample, ok := key.sample(barcode)
			if !ok {
				plan.Unused = append(plan.Unused, name)
				continue
			}
			seen[barcode] = true
			if target := sample + fastqGzSuffix; target != name {
				plan.Renames = append(plan.Renames, renameStep{From: name, To: target})
			}
		}
	}

	// A target may replace a file only if that file is itself renamed away.
	renamedAway := make(map[string]bool, len(plan.Renames))
	for _, r := range plan.Renames {
		renamedAway[r.From] = true
	}
	for _, r := range plan.Renames {
		if present[r.To] && !renamedAway[r.To] {
			return plan, fmt.Errorf("sample name %s for %s collides with existing file %s", fastqBase(r.To), fastqBase(r.From), r.To)
		}
	}
	for _, e := range key.Entries {
		if !seen[e.Barcode] {
			plan.Missing = append(plan.Missing, e.Barcode)
		}
	}
	return plan, nil
}

// writeRenameScript records plan as a shell script next to the files.
func writeRenameScript(path string, plan renamePlan) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create rename script: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()

	w := bufio.NewWriter(f)
	var b strings.Builder
	b.WriteString("#!/usr/bin/env bash\n")
	b.WriteString("# Sample renames applied by ontkit.\n")
	b.WriteString("set -euo pipefail\n")
	b.WriteString("cd " + shellQuote(plan.Dir) + "\n")
	for _, r := range plan.Renames {
		b.WriteString("mv -- " + shellQuote(r.From) + " " + shellQuote(r.From+renameTempSuffix) + "\n")
	}
	for _, r := range plan.Renames {
		b.WriteString("mv -- " + shellQuote(r.From+renameTempSuffix) + " " + shellQuote(r.To) + "\n")
	}
	if len(plan.Unused) > 0 {
		b.WriteString("mkdir -p " + unusedBarcodesDir + "\n")
		for _, u := range plan.Unused {
			b.WriteString("mv -- " + shellQuote(u) + " " + unusedBarcodesDir + "/\n")
		}
	}
	if _, err := w.WriteString(b.String()); err != nil {
		return fmt.Errorf("write rename script: %w", err)
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("write rename script: %w", err)
	}
	return f.Chmod(0o755)
}

// applyRenames moves every source to a temporary name before any target is
// written, so renames that swap two barcodes do not overwrite each other.
func applyRenames(plan renamePlan) error {
	for _, r := range plan.Renames {
		if err := os.Rename(filepath.Join(plan.Dir, r.From), filepath.Join(plan.Dir, r.From+renameTempSuffix)); err != nil {
			return fmt.Errorf("rename %s: %w", r.From, err)
		}
	}
	for _, r := range plan.Renames {
		if err := os.Rename(filepath.Join(plan.Dir, r.From+renameTempSuffix), filepath.Join(plan.Dir, r.To)); err != nil {
			return fmt.Errorf("rename %s: %w", r.From, err)
		}
	}
	if len(plan.Unused) == 0 {
		return nil
	}
	unused := filepath.Join(plan.Dir, unusedBarcodesDir)
	if err := os.MkdirAll(unused, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", unused, err)
	}
	for _, name := range plan.Unused {
		if err := os.Rename(filepath.Join(plan.Dir, name), filepath.Join(unused, name)); err != nil {
			return fmt.Errorf("move %s to %s: %w", name, unusedBarcodesDir, err)
		}
	}
	return nil
}

func renameSamples(fastqDir string, key *sampleKey) (renamePlan, error) {
	logf("Renaming fastq files.")
	plan, err := planRenames(fastqDir, key)
	if err != nil {
		return plan, err
	}
	for _, barcode := range plan.Missing {
		warnf("key file lists %s but no %s%s was produced", barcode, barcode, fastqGzSuffix)
	}
	if err := writeRenameScript(filepath.Join(fastqDir, renameScriptName), plan); err != nil {
		return plan, err
	}
	if err := applyRenames(plan); err != nil {
		return plan, err
	}
	if len(plan.Unused) > 0 {
		logf("Found barcodes which were not renamed, moved these to folder: %s", filepath.Join(fastqDir, unusedBarcodesDir))
	}
	return plan, nil
}

func runRename(args []string) {
	fs := flag.NewFlagSet("rename", flag.ExitOnError)
	outDir := fs.String("outdir", ".", "Pipeline output directory (holds 003_fastq)")
	keyFile := fs.String("key-file", "", "CSV with barcode,sample_name (one per line)")
	if err := fs.Parse(args); err != nil {
		fatalf("parse args failed: %v", err)
	}
	if *keyFile == "" {
		fatalf("key-file is required")
	}
	key, err := readKeyFile(*keyFile)
	if err != nil {
		fatalf("%v", err)
	}
	l := newLayout(absPath(*outDir))
	if _, err := renameSamples(l.Fastq, key); err != nil {
		fatalf("rename failed: %v", err)
	}
}
