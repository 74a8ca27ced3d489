package adapt

import "github.com/csmcal/wf2wf/internal/ir"

// scaledFields are the resource fields the scaling table covers.
var scaledFields = []string{"mem_mb", "cpu", "disk_mb"}

// envPair keys the scaling table.
type envPair struct {
	source string
	target string
}

// scalingTable holds conservative multipliers per field for the supported
// transitions. Reverse transitions divide by the forward factor; unlisted
// pairs carry values over unchanged.
var scalingTable = map[envPair]map[string]float64{
	{ir.EnvSharedFilesystem, ir.EnvDistributedComputing}: {
		"mem_mb": 1.10, "cpu": 1.00, "disk_mb": 1.50,
	},
	{ir.EnvSharedFilesystem, ir.EnvCloudNative}: {
		"mem_mb": 1.20, "cpu": 1.10, "disk_mb": 2.00,
	},
	{ir.EnvDistributedComputing, ir.EnvCloudNative}: {
		"mem_mb": 1.10, "cpu": 1.10, "disk_mb": 1.40,
	},
}

// scalingFactor returns the multiplier for one field on one transition.
func scalingFactor(sourceEnv, targetEnv, field string) float64 {
	if factors, ok := scalingTable[envPair{sourceEnv, targetEnv}]; ok {
		if f, ok := factors[field]; ok {
			return f
		}
	}
	if factors, ok := scalingTable[envPair{targetEnv, sourceEnv}]; ok {
		if f, ok := factors[field]; ok && f != 0 {
			return 1 / f
		}
	}
	return 1.0
}
