package formats

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"k8s.io/apimachinery/pkg/api/resource"
)

// memRe matches "<number><unit>" with optional whitespace or a Nextflow-style
// dot separator ("4.GB").
var memRe = regexp.MustCompile(`(?i)^([0-9]+(?:\.[0-9]+)?)[\s.]*([KMGTP]i?B?)?$`)

// ParseMemoryMB parses a memory or disk quantity string into megabytes.
// Accepts plain numbers (already MB), Kubernetes-style quantities ("8Gi",
// "4000M"), and workflow-language spellings ("8000MB", "4 GB", "2.GB").
func ParseMemoryMB(s string) (int64, error) {
	s = strings.TrimSpace(strings.Trim(s, `"'`))
	if s == "" {
		return 0, fmt.Errorf("empty quantity")
	}

	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, nil
	}

	m := memRe.FindStringSubmatch(s)
	if m == nil {
		return 0, fmt.Errorf("unparseable quantity %q", s)
	}
	num, unit := m[1], strings.ToUpper(m[2])

	// Normalise to a Kubernetes quantity suffix and let apimachinery do the
	// arithmetic, binary units included.
	var suffix string
	switch unit {
	case "", "B":
		suffix = ""
	case "KB", "K":
		suffix = "k"
	case "MB", "M":
		suffix = "M"
	case "GB", "G":
		suffix = "G"
	case "TB", "T":
		suffix = "T"
	case "PB", "P":
		suffix = "P"
	case "KIB", "KI":
		suffix = "Ki"
	case "MIB", "MI":
		suffix = "Mi"
	case "GIB", "GI":
		suffix = "Gi"
	case "TIB", "TI":
		suffix = "Ti"
	case "PIB", "PI":
		suffix = "Pi"
	default:
		return 0, fmt.Errorf("unknown unit in %q", s)
	}

	q, err := resource.ParseQuantity(num + suffix)
	if err != nil {
		return 0, fmt.Errorf("parsing quantity %q: %w", s, err)
	}
	bytes := q.Value()
	mb := bytes / (1000 * 1000)
	if mb == 0 && bytes > 0 {
		mb = 1
	}
	return mb, nil
}

// hmsRe matches HH:MM:SS wall-clock limits.
var hmsRe = regexp.MustCompile(`^(\d+):(\d{2}):(\d{2})$`)

// ParseTimeSeconds parses a runtime limit into seconds. Accepts plain
// seconds, Go-style durations ("1h30m"), HH:MM:SS, and single-unit
// spellings ("2h", "90 min", "1 day").
func ParseTimeSeconds(s string) (int64, error) {
	s = strings.TrimSpace(strings.Trim(s, `"'`))
	if s == "" {
		return 0, fmt.Errorf("empty duration")
	}

	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, nil
	}

	if m := hmsRe.FindStringSubmatch(s); m != nil {
		h, _ := strconv.ParseInt(m[1], 10, 64)
		min, _ := strconv.ParseInt(m[2], 10, 64)
		sec, _ := strconv.ParseInt(m[3], 10, 64)
		return h*3600 + min*60 + sec, nil
	}

	if d, err := time.ParseDuration(strings.ReplaceAll(s, " ", "")); err == nil {
		return int64(d.Seconds()), nil
	}

	// Word units used by Nextflow and WDL ("90 min", "1 day", "2 hours").
	fields := strings.Fields(s)
	if len(fields) == 2 {
		n, err := strconv.ParseFloat(fields[0], 64)
		if err == nil {
			switch strings.TrimSuffix(strings.ToLower(fields[1]), "s") {
			case "sec", "second":
				return int64(n), nil
			case "min", "minute":
				return int64(n * 60), nil
			case "h", "hour":
				return int64(n * 3600), nil
			case "day", "d":
				return int64(n * 86400), nil
			}
		}
	}

	return 0, fmt.Errorf("unparseable duration %q", s)
}
