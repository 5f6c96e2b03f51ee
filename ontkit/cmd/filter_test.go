package cmd

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFiltlongInvocationArgs(t *testing.T) {
	inv := filtlongInvocation("filtlong", defaultFilterParams(), "/data/sampleA.fastq.gz")
	assert.Equal(t, "filtlong", inv.Name)
	assert.Equal(t, []string{"--min_length", "1000", "--keep_percent", "95", "/data/sampleA.fastq.gz"}, inv.Args)

	p := filterParams{MinLength: 500, KeepPercent: 90.5, TargetBases: 5000000}
	inv = filtlongInvocation("filtlong", p, "in.fastq.gz")
	assert.Equal(t, []string{"--min_length", "500", "--keep_percent", "90.5", "--target_bases", "5000000", "in.fastq.gz"}, inv.Args)
}

func TestFilteredPath(t *testing.T) {
	assert.Equal(t, filepath.Join("out", "sampleA_filtered.fastq.gz"), filteredPath("out", "/x/003_fastq/sampleA.fastq.gz"))
}

func TestFilterParamsValidate(t *testing.T) {
	assert.NoError(t, defaultFilterParams().validate())
	assert.Error(t, filterParams{MinLength: -1, KeepPercent: 95}.validate())
	assert.Error(t, filterParams{KeepPercent: 0}.validate())
	assert.Error(t, filterParams{KeepPercent: 101}.validate())
	assert.Error(t, filterParams{KeepPercent: 50, TargetBases: -1}.validate())
}

func TestFilterReadsCompressesOutput(t *testing.T) {
	dir := t.TempDir()
	argsFile := filepath.Join(dir, "args.txt")
	bin := writeScript(t, dir, "filtlong", strings.ReplaceAll(`echo "$@" >> @ARGS@
printf '@kept\nACGTACGT\n+\nIIIIIIII\n'
`, "@ARGS@", argsFile))

	fastqDir := filepath.Join(dir, "003_fastq")
	a := filepath.Join(fastqDir, "sampleA.fastq.gz")
	b := filepath.Join(fastqDir, "sampleB.fastq.gz")
	writeGzipFastq(t, a, fastqRecord("r1", "A"))
	writeGzipFastq(t, b, fastqRecord("r2", "C"))

	outDir := filepath.Join(dir, "004_filtered")
	outputs, err := filterReads(bin, defaultFilterParams(), []string{a, b}, outDir, false)
	require.NoError(t, err)
	require.Equal(t, []string{
		filepath.Join(outDir, "sampleA_filtered.fastq.gz"),
		filepath.Join(outDir, "sampleB_filtered.fastq.gz"),
	}, outputs)
	for _, out := range outputs {
		assert.Equal(t, fastqRecord("kept", "ACGTACGT"), readGzip(t, out))
	}

	args, err := os.ReadFile(argsFile)
	require.NoError(t, err)
	assert.Equal(t, "--min_length 1000 --keep_percent 95 "+a+"\n--min_length 1000 --keep_percent 95 "+b+"\n", string(args))
}

func TestFilterReadsToolFailure(t *testing.T) {
	dir := t.TempDir()
	bin := writeScript(t, dir, "filtlong", "exit 2\n")
	input := filepath.Join(dir, "sampleA.fastq.gz")
	writeGzipFastq(t, input, fastqRecord("r1", "A"))

	_, err := filterReads(bin, defaultFilterParams(), []string{input}, filepath.Join(dir, "out"), false)
	require.Error(t, err)
	var cerr *commandError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, 2, cerr.ExitCode)

	_, err = filterReads(bin, defaultFilterParams(), nil, filepath.Join(dir, "out"), false)
	require.Error(t, err)
}
