package ir

// Transfer modes for workflow parameters. Auto defers the decision to the
// file-transfer inference rules.
const (
	TransferAuto   = "auto"
	TransferAlways = "always"
	TransferNever  = "never"
	TransferShared = "shared"
)

// ParameterSpec describes one workflow or task input/output.
type ParameterSpec struct {
	ID             string `json:"id"`
	Type           string `json:"type"`
	Label          string `json:"label,omitempty"`
	Doc            string `json:"doc,omitempty"`
	Default        *Value `json:"default,omitempty"`
	// Format is a file format IRI (e.g. an EDAM class).
	Format         string   `json:"format,omitempty"`
	SecondaryFiles []string `json:"secondary_files,omitempty"`
	// TransferMode is one of auto, always, never, shared.
	TransferMode   string   `json:"transfer_mode,omitempty"`
	ValueFrom      string   `json:"value_from,omitempty"`
}

// Common parameter types. Array, record, enum and union types are expressed
// as type strings ("array<File>", "record", "enum", "string|null").
const (
	TypeFile      = "File"
	TypeDirectory = "Directory"
	TypeString    = "string"
	TypeInt       = "int"
	TypeFloat     = "float"
	TypeBoolean   = "boolean"
)

// IsFileType reports whether the parameter carries file or directory data.
func (p ParameterSpec) IsFileType() bool {
	return p.Type == TypeFile || p.Type == TypeDirectory ||
		p.Type == "array<File>" || p.Type == "array<Directory>"
}

// RequirementSpec is a tagged requirement or hint variant. Consumers switch
// on ClassName; Data carries the class-specific payload.
type RequirementSpec struct {
	ClassName string           `json:"class_name"`
	Data      map[string]Value `json:"data,omitempty"`
}

// Well-known requirement classes.
const (
	ReqDocker        = "DockerRequirement"
	ReqResource      = "ResourceRequirement"
	ReqNetworkAccess = "NetworkAccess"
	ReqSoftware      = "SoftwareRequirement"
	ReqLoadListing   = "LoadListingRequirement"
	ReqInlineJS      = "InlineJavascriptRequirement"
)

// Scatter combination methods.
const (
	ScatterDotProduct       = "dotproduct"
	ScatterNestedCross      = "nested_crossproduct"
	ScatterFlatCross        = "flat_crossproduct"
)

// ScatterSpec declares parallel instantiation of a task over one or more
// parameter arrays.
type ScatterSpec struct {
	Scatter []string `json:"scatter"`
	Method  string   `json:"method"`
}
