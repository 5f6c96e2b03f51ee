package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	counterExternal = "fast_count"
	counterNative   = "native"
)

// toggle is an on/off flag value. Unlike flag.Bool it takes an explicit
// argument, so "-filtlong off" and "-filtlong=false" both work.
type toggle bool

func (t *toggle) String() string {
	if t != nil && bool(*t) {
		return "on"
	}
	return "off"
}

func (t *toggle) Set(value string) error {
	v, err := parseToggle(value)
	if err != nil {
		return err
	}
	*t = toggle(v)
	return nil
}

func parseToggle(value string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "on", "true", "yes", "1":
		return true, nil
	case "off", "false", "no", "0":
		return false, nil
	default:
		return false, fmt.Errorf("invalid toggle %q (use on or off)", value)
	}
}

type toolPaths struct {
	Guppy     string
	Filtlong  string
	FastCount string
}

func defaultToolPaths() toolPaths {
	return toolPaths{
		Guppy:     "guppy_basecaller",
		Filtlong:  "filtlong",
		FastCount: "fast_count",
	}
}

type runConfig struct {
	InputDir     string
	OutDir       string
	Chemistry    string
	BarcodeKit   string
	KeyFile      string
	Filter       toggle
	Count        toggle
	Resume       bool
	CPU          bool
	Assemble     bool
	Chunks       int
	Tools        toolPaths
	FilterParams filterParams
	Counter      string
	StatsParquet string
	LogPath      string
	Progress     bool
}

func (c runConfig) normalized() runConfig {
	c.InputDir = strings.TrimSpace(c.InputDir)
	c.OutDir = strings.TrimSpace(c.OutDir)
	if c.OutDir == "" {
		c.OutDir = "."
	}
	c.Chemistry = strings.ToLower(strings.TrimSpace(c.Chemistry))
	c.BarcodeKit = strings.ToLower(strings.TrimSpace(c.BarcodeKit))
	c.KeyFile = strings.TrimSpace(c.KeyFile)
	c.Counter = strings.ToLower(strings.TrimSpace(c.Counter))
	if c.Counter == "" {
		c.Counter = counterExternal
	}
	c.StatsParquet = strings.TrimSpace(c.StatsParquet)
	c.LogPath = strings.TrimSpace(c.LogPath)
	return c
}

func (c runConfig) barcoded() bool {
	return c.BarcodeKit != barcodeKitNone
}

func (c runConfig) chunksPerRunner() int {
	if c.Chunks > 0 {
		return c.Chunks
	}
	return defaultChunksPerRunner
}

// validate checks c against t and the filesystem. It has no side effects;
// prepareOutDir creates the output directory afterwards.
func (c runConfig) validate(t tables) error {
	if !t.Barcodes.has(c.BarcodeKit) {
		return fmt.Errorf("valid barcode kit choices are: %s", joinWithOr(t.Barcodes.names()))
	}
	if !t.Chemistry.has(c.Chemistry) {
		return fmt.Errorf("valid basecalling model choices are: %s", joinWithOr(t.Chemistry.names()))
	}
	if c.InputDir == "" {
		return errors.New("input directory is required")
	}
	if !isDir(c.InputDir) {
		return fmt.Errorf("%s is not a directory", c.InputDir)
	}
	if isRegularFile(c.OutDir) {
		return fmt.Errorf("%s is a file (must be a directory)", c.OutDir)
	}
	if c.Chunks < 0 {
		return fmt.Errorf("chunks per runner must be a positive integer, got %d", c.Chunks)
	}
	if c.KeyFile != "" && !isRegularFile(c.KeyFile) {
		return fmt.Errorf("could not locate key file %s", c.KeyFile)
	}
	switch c.Counter {
	case counterExternal, counterNative:
	default:
		return fmt.Errorf("unknown counter %q (supported: %s,%s)", c.Counter, counterExternal, counterNative)
	}
	if c.StatsParquet != "" && filepath.Clean(c.StatsParquet) == "." {
		return fmt.Errorf("invalid stats parquet path %q", c.StatsParquet)
	}
	return c.FilterParams.validate()
}

// prepareOutDir creates dir when missing. A non-empty existing directory is
// reported through the returned warning, not treated as an error.
func prepareOutDir(dir string) (warning string, err error) {
	info, err := os.Stat(dir)
	if errors.Is(err, os.ErrNotExist) {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("create output directory: %w", err)
		}
		logf("Created output directory: %s", dir)
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("stat output directory: %w", err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%s is a file (must be a directory)", dir)
	}
	empty, err := dirEmpty(dir)
	if err != nil {
		return "", fmt.Errorf("read output directory: %w", err)
	}
	if !empty {
		return "specified output directory is not empty: " + dir, nil
	}
	return "", nil
}
