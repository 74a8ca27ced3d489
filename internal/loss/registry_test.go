package loss

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/csmcal/wf2wf/internal/ir"
)

func TestRecord_FillsDefaults(t *testing.T) {
	r := NewRegistry()
	r.Record(ir.LossEntry{
		JSONPointer: "/tasks/a/priority",
		Field:       "priority",
		LostValue:   ir.Int(10),
		Reason:      "target cannot express priority",
		Category:    ir.CategoryScheduling,
	})

	entries := r.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, ir.StatusLost, entries[0].Status)
	assert.Equal(t, ir.OriginWf2wf, entries[0].Origin)
	assert.Equal(t, ir.SeverityWarn, entries[0].Severity)
}

func TestReset(t *testing.T) {
	r := NewRegistry()
	r.RecordLost("/tasks/a/gpu", "gpu", ir.Int(1), "no gpu", ir.CategoryResource, ir.SeverityWarn)
	require.Equal(t, 1, r.Len())

	r.Reset()
	assert.Equal(t, 0, r.Len())
}

func TestCountBySeverity(t *testing.T) {
	r := NewRegistry()
	r.RecordLost("/a", "a", ir.Null(), "x", ir.CategoryMetadata, ir.SeverityInfo)
	r.RecordLost("/b", "b", ir.Null(), "x", ir.CategoryMetadata, ir.SeverityWarn)
	r.RecordLost("/c", "c", ir.Null(), "x", ir.CategoryMetadata, ir.SeverityError)
	r.Record(ir.LossEntry{
		JSONPointer: "/d", Field: "d", Reason: "x",
		Category: ir.CategoryMetadata, Severity: ir.SeverityError,
		Status: ir.StatusAdapted,
	})

	assert.Equal(t, 2, r.CountBySeverity(ir.SeverityWarn, ir.StatusLost, ir.StatusLostAgain))
	assert.Equal(t, 1, r.CountBySeverity(ir.SeverityError, ir.StatusLost, ir.StatusLostAgain))
	assert.Equal(t, 3, r.CountBySeverity(ir.SeverityInfo, ir.StatusLost, ir.StatusLostAgain))
}

func testWorkflow(t *testing.T) *ir.Workflow {
	t.Helper()
	w := ir.NewWorkflow("demo", "1.0")
	task := ir.NewTask("align")
	task.Command = ir.NewEnvValue("bwa mem r.fq")
	require.NoError(t, w.AddTask(task))
	return w
}

func TestWriteAndRead_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "out.dag")

	w := testWorkflow(t)
	sum, err := ir.Checksum(w)
	require.NoError(t, err)

	r := NewRegistry()
	r.RecordLost(ir.TaskPointer("align", "priority"), "priority",
		ir.Int(10), "target cannot express priority", ir.CategoryScheduling, ir.SeverityWarn)

	require.NoError(t, r.Write(out, "dagman", sum, nil))

	sc, err := Read(SideCarPath(out))
	require.NoError(t, err)
	assert.Equal(t, "dagman", sc.TargetEngine)
	assert.Equal(t, sum, sc.SourceChecksum)
	require.Len(t, sc.Entries, 1)
	assert.Equal(t, ir.StatusLost, sc.Entries[0].Status)
	require.NotNil(t, sc.Summary)
	assert.Equal(t, 1, sc.Summary.TotalEntries)
	assert.Equal(t, 1, sc.Summary.ByStatus[ir.StatusLost])
}

func TestReadAdjacent_MissingFile(t *testing.T) {
	w := testWorkflow(t)
	sc, err := ReadAdjacent(filepath.Join(t.TempDir(), "absent.dag"), w)
	require.NoError(t, err)
	assert.Nil(t, sc)
}

func TestReadAdjacent_ChecksumMismatchIgnored(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "in.dag")

	w := testWorkflow(t)
	r := NewRegistry()
	r.RecordLost("/tasks/align/gpu", "gpu", ir.Int(1), "x", ir.CategoryResource, ir.SeverityWarn)
	require.NoError(t, r.Write(input, "dagman",
		"sha256:0000000000000000000000000000000000000000000000000000000000000000", nil))

	sc, err := ReadAdjacent(input, w)
	require.NoError(t, err)
	assert.Nil(t, sc, "mismatched side-car must be ignored")

	// The workflow itself is untouched.
	assert.Empty(t, w.LossMap)
}
