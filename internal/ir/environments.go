// Package ir defines the format-agnostic intermediate representation shared by
// every importer and exporter: the Workflow entity graph, environment-indexed
// field values, canonical serialisation, and the loss-entry record type.
package ir

// Execution environments form a closed set. An EnvValue binds concrete values
// to members of this set; everything outside it is rejected at validation.
const (
	EnvSharedFilesystem     = "shared_filesystem"
	EnvDistributedComputing = "distributed_computing"
	EnvCloudNative          = "cloud_native"
	EnvHybrid               = "hybrid"
	EnvLocal                = "local"
)

// Environments lists the closed environment set in canonical order.
var Environments = []string{
	EnvSharedFilesystem,
	EnvDistributedComputing,
	EnvCloudNative,
	EnvHybrid,
	EnvLocal,
}

// IsEnvironment reports whether s names a member of the closed environment set.
func IsEnvironment(s string) bool {
	for _, e := range Environments {
		if e == s {
			return true
		}
	}
	return false
}
