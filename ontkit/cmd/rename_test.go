package cmd

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleKeyAB(t *testing.T) *sampleKey {
	t.Helper()
	key, err := parseKeyFile(strings.NewReader("barcode01,sampleA\nbarcode02,sampleB\n"))
	require.NoError(t, err)
	return key
}

func TestRenameSamplesMovesUnusedBarcodes(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"barcode01", "barcode02", "barcode03", "unclassified"} {
		touch(t, filepath.Join(dir, name+fastqGzSuffix))
	}

	plan, err := renameSamples(dir, sampleKeyAB(t))
	require.NoError(t, err)

	assert.FileExists(t, filepath.Join(dir, "sampleA.fastq.gz"))
	assert.FileExists(t, filepath.Join(dir, "sampleB.fastq.gz"))
	assert.FileExists(t, filepath.Join(dir, unusedBarcodesDir, "barcode03.fastq.gz"))
	assert.FileExists(t, filepath.Join(dir, unusedBarcodesDir, "unclassified.fastq.gz"))
	for _, gone := range []string{"barcode01", "barcode02", "barcode03", "unclassified"} {
		assert.NoFileExists(t, filepath.Join(dir, gone+fastqGzSuffix))
	}

	assert.Equal(t, []renameStep{
		{From: "barcode01.fastq.gz", To: "sampleA.fastq.gz"},
		{From: "barcode02.fastq.gz", To: "sampleB.fastq.gz"},
	}, plan.Renames)
	assert.Equal(t, []string{"barcode03.fastq.gz", "unclassified.fastq.gz"}, plan.Unused)
	assert.Empty(t, plan.Missing)

	script, err := os.ReadFile(filepath.Join(dir, renameScriptName))
	require.NoError(t, err)
	assert.Contains(t, string(script), "mv -- barcode01.fastq.gz barcode01.fastq.gz.renaming\n")
	assert.Contains(t, string(script), "mv -- barcode01.fastq.gz.renaming sampleA.fastq.gz\n")
	assert.Contains(t, string(script), "mv -- unclassified.fastq.gz unused_barcodes/\n")
}

func TestPlanRenamesReportsMissingBarcodes(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "barcode02.fastq.gz"))

	plan, err := planRenames(dir, sampleKeyAB(t))
	require.NoError(t, err)
	assert.Equal(t, []string{"barcode01"}, plan.Missing)
	assert.Len(t, plan.Renames, 1)
	assert.Empty(t, plan.Unused)
}

func TestPlanRenamesRejectsCollision(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "barcode01.fastq.gz"))
	touch(t, filepath.Join(dir, "barcode02.fastq.gz"))
	key, err := parseKeyFile(strings.NewReader("barcode01,barcode02\n"))
	require.NoError(t, err)

	_, err = planRenames(dir, key)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "collides")
}

func TestRenameSamplesQuotesScriptNames(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "barcode01.fastq.gz"))
	key, err := parseKeyFile(strings.NewReader("barcode01,patient 7's isolate\n"))
	require.NoError(t, err)

	_, err = renameSamples(dir, key)
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(dir, "patient 7's isolate.fastq.gz"))

	script, err := os.ReadFile(filepath.Join(dir, renameScriptName))
	require.NoError(t, err)
	assert.Contains(t, string(script), `'patient 7'\''s isolate.fastq.gz'`)
}

func TestRenameSamplesSwapsBarcodes(t *testing.T) {
	dir := t.TempDir()
	writeGzipFastq(t, filepath.Join(dir, "barcode01.fastq.gz"), fastqRecord("a1", "AAAA"))
	writeGzipFastq(t, filepath.Join(dir, "barcode02.fastq.gz"), fastqRecord("b1", "CC"))
	key, err := parseKeyFile(strings.NewReader("barcode01,barcode02\nbarcode02,barcode01\n"))
	require.NoError(t, err)

	plan, err := renameSamples(dir, key)
	require.NoError(t, err)
	assert.Len(t, plan.Renames, 2)
	assert.Equal(t, fastqRecord("a1", "AAAA"), readGzip(t, filepath.Join(dir, "barcode02.fastq.gz")))
	assert.Equal(t, fastqRecord("b1", "CC"), readGzip(t, filepath.Join(dir, "barcode01.fastq.gz")))
	assert.NoFileExists(t, filepath.Join(dir, "barcode01.fastq.gz"+renameTempSuffix))
	assert.NoFileExists(t, filepath.Join(dir, "barcode02.fastq.gz"+renameTempSuffix))
}
