package cmd

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fatih/color"
)

// layout is the fixed directory convention under the output root.
type layout struct {
	Root       string
	Basecalled string
	Fastq      string
	Filtered   string
	ReadStats  string
	RunReport  string
	RunLog     string
}

func newLayout(root string) layout {
	return layout{
		Root:       root,
		Basecalled: filepath.Join(root, "002_basecalled"),
		Fastq:      filepath.Join(root, "003_fastq"),
		Filtered:   filepath.Join(root, "004_filtered"),
		ReadStats:  filepath.Join(root, readStatsName),
		RunReport:  filepath.Join(root, "run_report.json"),
		RunLog:     filepath.Join(root, "ontkit.log"),
	}
}

type stageTiming struct {
	Stage   string  `json:"stage"`
	Seconds float64 `json:"seconds"`
	Skipped bool    `json:"skipped,omitempty"`
}

type runReport struct {
	Version      string           `json:"version"`
	InputDir     string           `json:"input_dir"`
	OutDir       string           `json:"outdir"`
	Model        string           `json:"basecalling_model"`
	BarcodeKit   string           `json:"barcode_kit"`
	GuppyCommand string           `json:"guppy_command"`
	Versions     []versionCapture `json:"versions,omitempty"`
	Merged       []mergedFile     `json:"merged,omitempty"`
	Rename       *renamePlan      `json:"rename,omitempty"`
	Filter       *filterParams    `json:"filter,omitempty"`
	Filtered     []string         `json:"filtered,omitempty"`
	Counts       []readCount      `json:"counts,omitempty"`
	Stages       []stageTiming    `json:"stages"`
}

func (r *runReport) stage(name string, fn func() error) error {
	start := time.Now()
	err := fn()
	r.Stages = append(r.Stages, stageTiming{Stage: name, Seconds: time.Since(start).Seconds()})
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}

func (r *runReport) skip(name string) {
	r.Stages = append(r.Stages, stageTiming{Stage: name, Skipped: true})
}

func writeRunReport(path string, r *runReport) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}

func bindToolFlags(fs *flag.FlagSet, tools *toolPaths) {
	*tools = defaultToolPaths()
	fs.StringVar(&tools.Guppy, "guppy-bin", tools.Guppy, "Path to guppy_basecaller binary (default: search PATH)")
	fs.StringVar(&tools.Filtlong, "filtlong-bin", tools.Filtlong, "Path to filtlong binary (default: search PATH)")
	fs.StringVar(&tools.FastCount, "fast-count-bin", tools.FastCount, "Path to fast_count binary (default: search PATH)")
}

// bindRunFlags registers the full pipeline flag set. The returned config is
// filled in by fs.Parse.
func bindRunFlags(fs *flag.FlagSet) *runConfig {
	t := defaultTables()
	cfg := &runConfig{Filter: true, Count: true}
	fs.StringVar(&cfg.InputDir, "input", "", "Input directory, recursively searched for fast5/pod5 files (required)")
	fs.StringVar(&cfg.InputDir, "i", "", "Shorthand for -input")
	fs.StringVar(&cfg.InputDir, "input_dir", "", "Alias for -input")
	fs.StringVar(&cfg.Chemistry, "model", "", "Basecalling model ("+joinWithOr(t.Chemistry.names())+") (required)")
	fs.StringVar(&cfg.Chemistry, "b", "", "Shorthand for -model")
	fs.StringVar(&cfg.Chemistry, "basecalling_model", "", "Alias for -model")
	fs.StringVar(&cfg.BarcodeKit, "kit", "", "Barcode kit ("+joinWithOr(t.Barcodes.names())+") (required)")
	fs.StringVar(&cfg.BarcodeKit, "k", "", "Shorthand for -kit")
	fs.StringVar(&cfg.BarcodeKit, "barcode_kit", "", "Alias for -kit")
	fs.StringVar(&cfg.OutDir, "outdir", ".", "Output directory for all output files")
	fs.StringVar(&cfg.OutDir, "o", ".", "Shorthand for -outdir")
	fs.StringVar(&cfg.KeyFile, "key-file", "", "CSV with barcode,sample_name (one per line) used to rename files")
	fs.StringVar(&cfg.KeyFile, "key_file", "", "Alias for -key-file")
	fs.Var(&cfg.Filter, "filtlong", "Filter reads with filtlong (on,off)")
	fs.Var(&cfg.Count, "fast-count", "Count reads in merged/filtered FASTQ files (on,off)")
	fs.Var(&cfg.Count, "fast_count", "Alias for -fast-count")
	fs.BoolVar(&cfg.Resume, "resume", false, "Resume an interrupted guppy run")
	fs.BoolVar(&cfg.CPU, "cpu", false, "Basecall on CPU (4 threads, 6 callers) instead of GPU")
	fs.BoolVar(&cfg.Assemble, "assemble", false, "Reserved; accepted and ignored")
	fs.IntVar(&cfg.Chunks, "chunks-per-runner", 0, fmt.Sprintf("Advanced: guppy chunks per runner (default %d)", defaultChunksPerRunner))
	fs.IntVar(&cfg.Chunks, "chunks_per_runner", 0, "Alias for -chunks-per-runner")
	fs.StringVar(&cfg.Counter, "counter", counterExternal, "Read counter (fast_count,native)")
	fs.StringVar(&cfg.StatsParquet, "stats-parquet", "", "Optional Parquet output of read counts")
	fs.StringVar(&cfg.LogPath, "log", "", "Run log path (default <outdir>/ontkit.log)")
	fs.BoolVar(&cfg.Progress, "progress", true, "Show progress bars")
	bindFilterFlags(fs, &cfg.FilterParams)
	bindToolFlags(fs, &cfg.Tools)
	return cfg
}

func runRun(args []string) {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	raw := bindRunFlags(fs)
	if err := fs.Parse(args); err != nil {
		fatalf("parse args failed: %v", err)
	}
	if raw.InputDir == "" || raw.Chemistry == "" || raw.BarcodeKit == "" {
		fs.Usage()
		fatalf("input, model and kit are required")
	}

	cfg := raw.normalized()
	t := defaultTables()
	if err := cfg.validate(t); err != nil {
		fatalf("%v", err)
	}
	warning, err := prepareOutDir(cfg.OutDir)
	if err != nil {
		fatalf("%v", err)
	}

	l := newLayout(absPath(cfg.OutDir))
	logPath := cfg.LogPath
	if logPath == "" {
		logPath = l.RunLog
	}
	closeLog, err := openRunLog(logPath)
	if err != nil {
		fatalf("%v", err)
	}
	defer closeLog()
	logHeader(append([]string{"run"}, args...))
	if warning != "" {
		warnf("%s", warning)
	}

	report, err := pipeline(cfg, t)
	if report != nil {
		if werr := writeRunReport(l.RunReport, report); werr != nil {
			warnf("write run report: %v", werr)
		}
	}
	if err != nil {
		fatalf("pipeline failed: %v", err)
	}
	color.HiGreen("%sontkit has finished. Run report: %s\n", logPrefix, l.RunReport)
}

// pipeline runs every stage in order and stops at the first error. The
// report covers the stages that ran, including the failing one.
func pipeline(cfg runConfig, t tables) (*runReport, error) {
	l := newLayout(absPath(cfg.OutDir))
	inv, err := buildGuppyInvocation(t, guppyOptionsFor(cfg, l))
	if err != nil {
		return nil, err
	}
	report := &runReport{
		Version:      version,
		InputDir:     absPath(cfg.InputDir),
		OutDir:       l.Root,
		Model:        cfg.Chemistry,
		BarcodeKit:   cfg.BarcodeKit,
		GuppyCommand: inv.String(),
	}
	logf("Specified barcode kit is: %s", cfg.BarcodeKit)
	logf("Using basecaller mode: %s", cfg.Chemistry)

	report.Versions = preflight(cfg, l)

	logf("Basecalling and demultiplexing with guppy -> %s", l.Basecalled)
	if err := report.stage("basecall", inv.run); err != nil {
		return report, err
	}

	logf("Concatenating FASTQ fragments per barcode -> %s", l.Fastq)
	if err := report.stage("merge", func() error {
		merged, err := mergeBasecalled(l.Basecalled, l.Fastq, cfg.barcoded(), cfg.Progress)
		report.Merged = merged
		return err
	}); err != nil {
		return report, err
	}

	if cfg.barcoded() && cfg.KeyFile != "" {
		if err := report.stage("rename", func() error {
			key, err := readKeyFile(cfg.KeyFile)
			if err != nil {
				return err
			}
			plan, err := renameSamples(l.Fastq, key)
			report.Rename = &plan
			return err
		}); err != nil {
			return report, err
		}
	} else {
		if cfg.KeyFile != "" {
			warnf("key file ignored: barcode kit is %s", barcodeKitNone)
		}
		report.skip("rename")
	}

	if cfg.Filter {
		logf("Filtering reads with filtlong -> %s", l.Filtered)
		if err := report.stage("filter", func() error {
			inputs, err := globSorted(filepath.Join(l.Fastq, "*"+fastqGzSuffix))
			if err != nil {
				return err
			}
			params := cfg.FilterParams
			report.Filter = &params
			report.Filtered, err = filterReads(cfg.Tools.Filtlong, params, inputs, l.Filtered, cfg.Progress)
			return err
		}); err != nil {
			return report, err
		}
		logf("The FASTQ files have been filtered and are ready for further analysis: %s", l.Filtered)
	} else {
		report.skip("filter")
		logf("The FASTQ files (raw, not filtered) are ready for further analysis: %s", l.Fastq)
	}

	if cfg.Count {
		logf("Counting reads in each FASTQ file -> %s", l.ReadStats)
		if err := report.stage("count", func() error {
			counts, err := countReads(l, countOptions{
				Counter:      cfg.Counter,
				Bin:          cfg.Tools.FastCount,
				Filtered:     bool(cfg.Filter),
				StatsParquet: cfg.StatsParquet,
				Progress:     cfg.Progress,
			})
			report.Counts = counts
			return err
		}); err != nil {
			return report, err
		}
	} else {
		report.skip("count")
		logf("Read counting was not run. To turn on, specify -fast-count on")
	}

	logf("ontkit has finished.")
	return report, nil
}
