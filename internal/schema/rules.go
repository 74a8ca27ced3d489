package schema

import (
	"fmt"
	"math"

	"github.com/csmcal/wf2wf/internal/ir"
)

// resourceRange bounds one numeric resource field.
type resourceRange struct {
	min int64
	max int64
}

// resourceRules is the per-field rule table. Memory, disk and GPU memory are
// megabytes; time is seconds.
var resourceRules = map[string]resourceRange{
	"cpu":        {min: 1, max: 1024},
	"mem_mb":     {min: 1, max: math.MaxInt64},
	"disk_mb":    {min: 1, max: math.MaxInt64},
	"gpu":        {min: 0, max: math.MaxInt64},
	"gpu_mem_mb": {min: 1, max: math.MaxInt64},
	"time_s":     {min: 1, max: math.MaxInt64},
	"threads":    {min: 1, max: 1024},
}

// IsValidEnvironmentName reports whether s names a member of the closed
// environment set.
func IsValidEnvironmentName(s string) bool {
	return ir.IsEnvironment(s)
}

// IsValidResource reports whether value is acceptable for the named resource
// field. Unknown names are rejected.
func IsValidResource(name string, value int64) bool {
	return CheckResource(name, value) == nil
}

// CheckResource validates value against the rule table, returning a
// descriptive error on violation.
func CheckResource(name string, value int64) error {
	r, ok := resourceRules[name]
	if !ok {
		return fmt.Errorf("unknown resource field %q", name)
	}
	if value < r.min {
		return fmt.Errorf("%s must be >= %d, got %d", name, r.min, value)
	}
	if value > r.max {
		return fmt.Errorf("%s must be <= %d, got %d", name, r.max, value)
	}
	return nil
}

// ResourceBounds returns the valid range for a resource field.
func ResourceBounds(name string) (min, max int64, ok bool) {
	r, found := resourceRules[name]
	if !found {
		return 0, 0, false
	}
	return r.min, r.max, true
}

// ClampResource clamps value into the field's valid range. Unknown fields
// pass through unchanged.
func ClampResource(name string, value int64) int64 {
	r, ok := resourceRules[name]
	if !ok {
		return value
	}
	if value < r.min {
		return r.min
	}
	if value > r.max {
		return r.max
	}
	return value
}
