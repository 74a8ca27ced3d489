package formats

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/csmcal/wf2wf/internal/ir"
)

func TestDetect(t *testing.T) {
	cases := map[string]Format{
		"wf.smk":           FormatSnakemake,
		"Snakefile":        FormatSnakemake,
		"dir/Snakefile":    FormatSnakemake,
		"pipeline.dag":     FormatDAGMan,
		"tool.cwl":         FormatCWL,
		"main.nf":          FormatNextflow,
		"workflow.wdl":     FormatWDL,
		"galaxy.ga":        FormatGalaxy,
		"ir.json":          FormatIR,
		"ir.yaml":          FormatIR,
		"ir.yml":           FormatIR,
		"UPPER.CWL":        FormatCWL,
	}
	for path, want := range cases {
		got, err := Detect(path)
		require.NoError(t, err, "path %q", path)
		assert.Equal(t, want, got, "path %q", path)
	}

	_, err := Detect("mystery.xyz")
	assert.Error(t, err)
}

func TestParse(t *testing.T) {
	f, err := Parse("snakemake")
	require.NoError(t, err)
	assert.Equal(t, FormatSnakemake, f)

	f, err = Parse("DAGMan")
	require.NoError(t, err)
	assert.Equal(t, FormatDAGMan, f)

	_, err = Parse("cobol")
	assert.Error(t, err)
}

func TestDefaultEnvironment(t *testing.T) {
	assert.Equal(t, ir.EnvDistributedComputing, FormatDAGMan.DefaultEnvironment())
	assert.Equal(t, ir.EnvSharedFilesystem, FormatSnakemake.DefaultEnvironment())
	assert.Equal(t, ir.EnvCloudNative, FormatGalaxy.DefaultEnvironment())
	assert.Equal(t, ir.EnvLocal, FormatIR.DefaultEnvironment())
}

func TestParseMemoryMB(t *testing.T) {
	cases := map[string]int64{
		"8000":    8000,
		"8000MB":  8000,
		"4 GB":    4000,
		"2.GB":    2000,
		"2.5GB":   2500,
		"8G":      8000,
		"1TB":     1000000,
		"512":     512,
		"100KB":   1,
		"8Gi":     8589,
	}
	for input, want := range cases {
		got, err := ParseMemoryMB(input)
		require.NoError(t, err, "input %q", input)
		assert.Equal(t, want, got, "input %q", input)
	}

	_, err := ParseMemoryMB("lots")
	assert.Error(t, err)
	_, err = ParseMemoryMB("")
	assert.Error(t, err)
}

func TestParseTimeSeconds(t *testing.T) {
	cases := map[string]int64{
		"3600":     3600,
		"1h30m":    5400,
		"2h":       7200,
		"02:00:00": 7200,
		"0:01:30":  90,
		"90 min":   5400,
		"1 day":    86400,
		"2 hours":  7200,
	}
	for input, want := range cases {
		got, err := ParseTimeSeconds(input)
		require.NoError(t, err, "input %q", input)
		assert.Equal(t, want, got, "input %q", input)
	}

	_, err := ParseTimeSeconds("soon")
	assert.Error(t, err)
}
