package cmd

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseKeyFileDelimiters(t *testing.T) {
	key, err := parseKeyFile(strings.NewReader("barcode,sample\nBarcode01,sampleA\r\n\nbarcode02;sample B\n"))
	require.NoError(t, err)
	require.Len(t, key.Entries, 2)

	name, ok := key.sample("barcode01")
	assert.True(t, ok)
	assert.Equal(t, "sampleA", name)

	name, ok = key.sample("BARCODE02")
	assert.True(t, ok)
	assert.Equal(t, "sample B", name)

	_, ok = key.sample("barcode03")
	assert.False(t, ok)
}

func TestParseKeyFileErrors(t *testing.T) {
	cases := []struct {
		name    string
		content string
		format  bool
	}{
		{name: "TooManyColumns", content: "barcode01,sampleA,extra\n", format: true},
		{name: "SingleColumn", content: "barcode01\n", format: true},
		{name: "EmptySample", content: "barcode01,\n", format: true},
		{name: "Empty", content: "\n\n", format: true},
		{name: "DuplicateBarcode", content: "barcode01,a\nbarcode01,b\n"},
		{name: "DuplicateSample", content: "barcode01,a\nbarcode02,a\n"},
		{name: "PathInSample", content: "barcode01,../a\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := parseKeyFile(strings.NewReader(tc.content))
			require.Error(t, err)
			if tc.format {
				assert.ErrorIs(t, err, errKeyFormat)
			}
		})
	}
}

func TestReadKeyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "barcode_sample_key.csv")
	require.NoError(t, os.WriteFile(path, []byte("barcode01,sampleA\nbarcode02,sampleB\n"), 0o644))
	key, err := readKeyFile(path)
	require.NoError(t, err)
	assert.Equal(t, []keyEntry{
		{Barcode: "barcode01", Sample: "sampleA", Line: 1},
		{Barcode: "barcode02", Sample: "sampleB", Line: 2},
	}, key.Entries)

	_, err = readKeyFile(filepath.Join(t.TempDir(), "missing.csv"))
	require.Error(t, err)
}
