package cmd

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
)

type versionCapture struct {
	Tool string `json:"tool"`
	Path string `json:"path"`
	OK   bool   `json:"ok"`
}

// captureVersion runs "<bin> --version" and writes its stdout to outPath.
// The captured text is not inspected.
func captureVersion(bin, outPath string) error {
	out, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("create %s: %w", outPath, err)
	}
	defer func() {
		_ = out.Close()
	}()
	inv := invocation{Name: bin, Args: []string{"--version"}}
	return asCommandError(inv, inv.command(out, out).Run())
}

// preflight records tool versions into the output directory. Failures are
// warnings only; a missing tool surfaces when its stage runs.
func preflight(cfg runConfig, l layout) []versionCapture {
	tools := []struct {
		name string
		bin  string
		on   bool
	}{
		{name: "guppy_basecaller", bin: cfg.Tools.Guppy, on: true},
		{name: "filtlong", bin: cfg.Tools.Filtlong, on: bool(cfg.Filter)},
		{name: "fast_count", bin: cfg.Tools.FastCount, on: bool(cfg.Count) && cfg.Counter == counterExternal},
	}
	var captured []versionCapture
	for _, tool := range tools {
		if !tool.on {
			continue
		}
		path := filepath.Join(l.Root, tool.name+"_version.txt")
		vc := versionCapture{Tool: tool.name, Path: path, OK: true}
		if err := captureVersion(tool.bin, path); err != nil {
			warnf("could not capture %s version: %v", tool.name, err)
			vc.OK = false
		} else if !fileExists(path) {
			warnf("%s --version printed nothing", tool.bin)
		} else {
			logf("You can see which version of %s was used in the file: %s", tool.name, path)
		}
		captured = append(captured, vc)
	}
	return captured
}

func runVersions(args []string) {
	fs := flag.NewFlagSet("versions", flag.ExitOnError)
	outDir := fs.String("outdir", ".", "Directory for <tool>_version.txt files")
	counter := fs.String("counter", counterExternal, "Read counter (fast_count,native)")
	var tools toolPaths
	bindToolFlags(fs, &tools)
	if err := fs.Parse(args); err != nil {
		fatalf("parse args failed: %v", err)
	}
	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		fatalf("create output dir: %v", err)
	}
	cfg := runConfig{Tools: tools, Filter: true, Count: true, Counter: *counter}.normalized()
	for _, vc := range preflight(cfg, newLayout(absPath(*outDir))) {
		if !vc.OK {
			os.Exit(1)
		}
	}
}
