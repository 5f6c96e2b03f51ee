package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
)

var (
	keyDelimiter = regexp.MustCompile(`[,;]`)

	errKeyFormat = errors.New("please check that the key file is correctly formatted, eg: barcode01,sample1 (one per line, delimiter comma or semicolon)")
)

type keyEntry struct {
	Barcode string
	Sample  string
	Line    int
}

// sampleKey maps barcode identifiers to sample names, in file order.
type sampleKey struct {
	Entries   []keyEntry
	byBarcode map[string]string
}

func (k *sampleKey) sample(barcode string) (string, bool) {
	name, ok := k.byBarcode[strings.ToLower(barcode)]
	return name, ok
}

func readKeyFile(path string) (*sampleKey, error) {
	logf("Reading barcode sample key file: %s", path)
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("could not read key file: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()
	key, err := parseKeyFile(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return key, nil
}

func parseKeyFile(r io.Reader) (*sampleKey, error) {
	key := &sampleKey{byBarcode: make(map[string]string)}
	samples := make(map[string]int)

	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(strings.TrimPrefix(scanner.Text(), "\ufeff"))
		if text == "" {
			continue
		}
		fields := keyDelimiter.Split(text, -1)
		if len(fields) != 2 {
			return nil, fmt.Errorf("line %d: expected 2 columns, got %d: %w", line, len(fields), errKeyFormat)
		}
		barcode := strings.ToLower(strings.TrimSpace(fields[0]))
		sample := strings.TrimSpace(fields[1])
		if len(key.Entries) == 0 && barcode == "barcode" {
			continue
		}
		if barcode == "" || sample == "" {
			return nil, fmt.Errorf("line %d: empty barcode or sample name: %w", line, errKeyFormat)
		}
		if strings.ContainsAny(sample, `/\`) || sample == "." || sample == ".." {
			return nil, fmt.Errorf("line %d: sample name %q must not contain path separators", line, sample)
		}
		if _, ok := key.byBarcode[barcode]; ok {
			return nil, fmt.Errorf("line %d: barcode %s listed more than once", line, barcode)
		}
		if prev, ok := samples[sample]; ok {
			return nil, fmt.Errorf("line %d: sample name %s already used on line %d", line, sample, prev)
		}
		samples[sample] = line
		key.byBarcode[barcode] = sample
		key.Entries = append(key.Entries, keyEntry{Barcode: barcode, Sample: sample, Line: line})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan key file: %w", err)
	}
	if len(key.Entries) == 0 {
		return nil, fmt.Errorf("key file has no entries: %w", errKeyFormat)
	}
	return key, nil
}
