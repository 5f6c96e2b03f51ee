package cmd

import (
	"flag"
	"fmt"
	"path/filepath"
	"strconv"
)

const (
	defaultChunksPerRunner   = 300
	guppyCPUCallers          = 6
	guppyCPUThreadsPerCaller = 4
	guppyGPUDevice           = "cuda:all:100%"
)

type guppyOptions struct {
	Bin        string
	InputDir   string
	SaveDir    string
	Chemistry  string
	BarcodeKit string
	Resume     bool
	CPU        bool
	Chunks     int
}

// buildGuppyInvocation is pure: it only looks up t and formats arguments.
func buildGuppyInvocation(t tables, opts guppyOptions) (invocation, error) {
	chemistry, ok := t.Chemistry.lookup(opts.Chemistry)
	if !ok {
		return invocation{}, fmt.Errorf("unknown %s %q", t.Chemistry.kind, opts.Chemistry)
	}
	barcodes, ok := t.Barcodes.lookup(opts.BarcodeKit)
	if !ok {
		return invocation{}, fmt.Errorf("unknown %s %q", t.Barcodes.kind, opts.BarcodeKit)
	}

	bin := opts.Bin
	if bin == "" {
		bin = defaultToolPaths().Guppy
	}
	args := []string{
		"--input_path", opts.InputDir,
		"--recursive",
		"--save_path", opts.SaveDir,
		"--compress_fastq",
	}
	args = append(args, chemistry...)
	args = append(args, barcodes...)
	if opts.CPU {
		args = append(args,
			"--num_callers", strconv.Itoa(guppyCPUCallers),
			"--cpu_threads_per_caller", strconv.Itoa(guppyCPUThreadsPerCaller),
		)
	} else {
		args = append(args, "--device", guppyGPUDevice)
	}
	chunks := opts.Chunks
	if chunks <= 0 {
		chunks = defaultChunksPerRunner
	}
	args = append(args, "--chunks_per_runner", strconv.Itoa(chunks))
	if opts.Resume {
		args = append(args, "--resume")
	}
	return invocation{Name: bin, Args: args}, nil
}

func guppyOptionsFor(cfg runConfig, l layout) guppyOptions {
	return guppyOptions{
		Bin:        cfg.Tools.Guppy,
		InputDir:   absPath(cfg.InputDir),
		SaveDir:    l.Basecalled,
		Chemistry:  cfg.Chemistry,
		BarcodeKit: cfg.BarcodeKit,
		Resume:     cfg.Resume,
		CPU:        cfg.CPU,
		Chunks:     cfg.chunksPerRunner(),
	}
}

func absPath(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return path
	}
	return abs
}

// runGuppyCommand prints the basecalling command line without running it.
func runGuppyCommand(args []string) {
	fs := flag.NewFlagSet("guppy-command", flag.ExitOnError)
	cfg := bindRunFlags(fs)
	if err := fs.Parse(args); err != nil {
		fatalf("parse args failed: %v", err)
	}
	c := cfg.normalized()
	t := defaultTables()
	if err := c.validate(t); err != nil {
		fatalf("%v", err)
	}
	inv, err := buildGuppyInvocation(t, guppyOptionsFor(c, newLayout(absPath(c.OutDir))))
	if err != nil {
		fatalf("%v", err)
	}
	fmt.Println(inv.String())
}
