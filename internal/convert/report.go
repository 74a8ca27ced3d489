package convert

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/csmcal/wf2wf/internal/ir"
	"github.com/csmcal/wf2wf/internal/loss"
)

// Report summarises one conversion for the caller and the CLI.
type Report struct {
	ID string `json:"id"`

	SourceFormat string `json:"source_format"`
	TargetFormat string `json:"target_format"`
	SourcePath   string `json:"source_path"`
	OutputPath   string `json:"output_path"`

	SourceEnvironment string `json:"source_environment"`
	TargetEnvironment string `json:"target_environment"`

	TaskCount int `json:"task_count"`
	EdgeCount int `json:"edge_count"`

	LossTotal      int            `json:"loss_total"`
	LossByStatus   map[string]int `json:"loss_by_status"`
	LossBySeverity map[string]int `json:"loss_by_severity"`

	Duration time.Duration `json:"duration"`
}

func newReport(srcPath, dstPath string) *Report {
	return &Report{
		ID:             uuid.NewString(),
		SourcePath:     srcPath,
		OutputPath:     dstPath,
		LossByStatus:   map[string]int{},
		LossBySeverity: map[string]int{},
	}
}

func (r *Report) fillLossCounts(reg *loss.Registry) {
	for _, e := range reg.Entries() {
		r.LossTotal++
		r.LossByStatus[e.Status]++
		r.LossBySeverity[e.Severity]++
	}
}

// CheckFailOnLoss enforces the --fail-on-loss policy: any lost or lost_again
// entry at or above the threshold aborts the conversion with an error.
func CheckFailOnLoss(reg *loss.Registry, threshold string) error {
	if threshold == "" {
		return nil
	}
	n := reg.CountBySeverity(threshold, ir.StatusLost, ir.StatusLostAgain)
	if n > 0 {
		return fmt.Errorf("%d loss entr%s at or above severity %q",
			n, plural(n, "y", "ies"), threshold)
	}
	return nil
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
