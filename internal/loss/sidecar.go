package loss

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/csmcal/wf2wf/internal/ir"
	"github.com/csmcal/wf2wf/internal/output"
	"github.com/csmcal/wf2wf/internal/version"
)

// SideCarSuffix is appended to an output path to name its side-car.
const SideCarSuffix = ".loss.json"

// EnvironmentAdaptation describes the adaptation a conversion performed.
type EnvironmentAdaptation struct {
	SourceEnvironment string `json:"source_environment" validate:"required"`
	TargetEnvironment string `json:"target_environment" validate:"required"`
	AdaptationType    string `json:"adaptation_type" validate:"required"`
}

// Summary aggregates entry counts for quick inspection.
type Summary struct {
	TotalEntries int            `json:"total_entries"`
	ByCategory   map[string]int `json:"by_category,omitempty"`
	BySeverity   map[string]int `json:"by_severity,omitempty"`
	ByStatus     map[string]int `json:"by_status,omitempty"`
	ByOrigin     map[string]int `json:"by_origin,omitempty"`
}

// SideCar is the on-disk loss document written next to exported outputs.
type SideCar struct {
	Wf2wfVersion          string                 `json:"wf2wf_version" validate:"required"`
	TargetEngine          string                 `json:"target_engine" validate:"required"`
	SourceChecksum        string                 `json:"source_checksum" validate:"required,startswith=sha256:,len=71"`
	Timestamp             string                 `json:"timestamp,omitempty"`
	Entries               []ir.LossEntry         `json:"entries" validate:"dive"`
	EnvironmentAdaptation *EnvironmentAdaptation `json:"environment_adaptation,omitempty"`
	Summary               *Summary               `json:"summary,omitempty"`
}

var sidecarValidate = validator.New()

// SideCarPath returns the side-car path for an output file.
func SideCarPath(outputPath string) string {
	return outputPath + SideCarSuffix
}

// Write materialises the registry into a side-car next to the output file.
// The entries keep their record order.
func (r *Registry) Write(outputPath, targetEngine, sourceChecksum string, envAdapt *EnvironmentAdaptation) error {
	sc := SideCar{
		Wf2wfVersion:          version.Version,
		TargetEngine:          targetEngine,
		SourceChecksum:        sourceChecksum,
		Timestamp:             time.Now().UTC().Format(time.RFC3339),
		Entries:               r.Entries(),
		EnvironmentAdaptation: envAdapt,
		Summary:               summarise(r.entries),
	}
	if sc.Entries == nil {
		sc.Entries = []ir.LossEntry{}
	}

	data, err := json.MarshalIndent(sc, "", "  ")
	if err != nil {
		return fmt.Errorf("serialising side-car: %w", err)
	}
	data = append(data, '\n')

	path := SideCarPath(outputPath)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing side-car %s: %w", path, err)
	}
	output.Debug("side-car written", "path", path, "entries", len(sc.Entries))
	return nil
}

// Read parses and validates a side-car document. The caller decides whether
// the checksum matches the IR it is about to be applied to.
func Read(path string) (*SideCar, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var sc SideCar
	if err := json.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("parsing side-car %s: %w", path, err)
	}
	if err := sidecarValidate.Struct(&sc); err != nil {
		return nil, fmt.Errorf("invalid side-car %s: %w", path, err)
	}
	return &sc, nil
}

// ReadAdjacent looks for <inputPath>.loss.json and verifies its checksum
// against w. A missing file returns (nil, nil); a mismatched or unreadable
// side-car is ignored with a warning, never an error.
func ReadAdjacent(inputPath string, w *ir.Workflow) (*SideCar, error) {
	path := SideCarPath(inputPath)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, nil
	}

	sc, err := Read(path)
	if err != nil {
		output.Warn("ignoring unreadable side-car", "path", path, "error", err)
		return nil, nil
	}

	sum, err := ir.Checksum(w)
	if err != nil {
		return nil, err
	}
	if sc.SourceChecksum != sum {
		output.Warn("side-car checksum mismatch, ignoring",
			"path", path, "expected", sc.SourceChecksum, "actual", sum)
		return nil, nil
	}
	return sc, nil
}

func summarise(entries []ir.LossEntry) *Summary {
	s := &Summary{
		TotalEntries: len(entries),
		ByCategory:   map[string]int{},
		BySeverity:   map[string]int{},
		ByStatus:     map[string]int{},
		ByOrigin:     map[string]int{},
	}
	for _, e := range entries {
		s.ByCategory[e.Category]++
		s.BySeverity[e.Severity]++
		s.ByStatus[e.Status]++
		s.ByOrigin[e.Origin]++
	}
	return s
}
