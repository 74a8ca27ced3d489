package infer

import (
	"path/filepath"
	"strings"

	"github.com/csmcal/wf2wf/internal/ir"
)

// Shared-storage prefixes: files on these filesystems or remote stores are
// visible everywhere, so no transfer is needed.
var sharedPrefixes = []string{
	"/nfs/", "/shared/", "/data/", "/storage/", "/lustre/", "/gpfs/", "/beegfs/",
	"gs://", "s3://", "https://",
}

// Temporary or log outputs never transfer.
var (
	neverPrefixes = []string{"/tmp/", "temp_"}
	neverSuffixes = []string{".tmp", ".log", ".err", ".out"}
)

// Reference-data extensions conventionally live on shared storage.
var sharedExtensions = map[string]bool{
	".fa": true, ".fasta": true, ".gtf": true, ".gff": true,
	".bam": true, ".sam": true, ".bed": true,
}

// ClassifyTransfer resolves an auto transfer mode from path heuristics.
// Paths that match nothing stay auto, which downstream emitters treat as
// "transfer".
func ClassifyTransfer(path string) string {
	for _, p := range sharedPrefixes {
		if strings.HasPrefix(path, p) {
			return ir.TransferShared
		}
	}

	base := filepath.Base(path)
	for _, p := range neverPrefixes {
		if strings.HasPrefix(path, p) || strings.HasPrefix(base, p) {
			return ir.TransferNever
		}
	}
	for _, s := range neverSuffixes {
		if strings.HasSuffix(base, s) {
			return ir.TransferNever
		}
	}

	if sharedExtensions[strings.ToLower(filepath.Ext(base))] {
		return ir.TransferShared
	}
	return ir.TransferAuto
}

// inferTransfers classifies every auto-mode file parameter in the workflow.
func (e *Engine) inferTransfers(w *ir.Workflow) int {
	n := 0
	classify := func(params []ir.ParameterSpec) {
		for i := range params {
			p := &params[i]
			if !p.IsFileType() {
				continue
			}
			if p.TransferMode != "" && p.TransferMode != ir.TransferAuto {
				continue
			}
			mode := ClassifyTransfer(p.ID)
			if mode != ir.TransferAuto || p.TransferMode == "" {
				if p.TransferMode != mode {
					n++
				}
				p.TransferMode = mode
			}
		}
	}

	classify(w.Inputs)
	classify(w.Outputs)
	for _, id := range w.TaskOrder() {
		t := w.Tasks[id]
		classify(t.Inputs)
		classify(t.Outputs)
	}
	return n
}
