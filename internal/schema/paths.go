package schema

import (
	"regexp"
	"strings"
)

// Path classes returned by ClassifyPath.
const (
	PathUnix        = "unix_path"
	PathWindows     = "windows_path"
	PathURL         = "url"
	PathDockerImage = "docker_image"
	PathCondaEnv    = "conda_env"
	PathUnknown     = "unknown"
)

var (
	windowsPathRe = regexp.MustCompile(`^[A-Za-z]:[\\/]`)
	urlRe         = regexp.MustCompile(`^[a-z][a-z0-9+.-]*://`)
	// Registry-style references: [host[:port]/]repo[:tag][@digest].
	dockerImageRe = regexp.MustCompile(`^[a-z0-9]+([._/-][a-z0-9]+)*(:[A-Za-z0-9._-]+)?(@sha256:[0-9a-f]{64})?$`)
)

// ClassifyPath classifies a path-like string into one of the path classes.
// Docker URI schemes classify as docker_image rather than url.
func ClassifyPath(p string) string {
	switch {
	case p == "":
		return PathUnknown
	case strings.HasPrefix(p, "docker://"), strings.HasPrefix(p, "oras://"):
		return PathDockerImage
	case urlRe.MatchString(p):
		return PathURL
	case windowsPathRe.MatchString(p), strings.Contains(p, `\`):
		return PathWindows
	case strings.HasPrefix(p, "/"), strings.HasPrefix(p, "./"), strings.HasPrefix(p, "../"), strings.HasPrefix(p, "~/"):
		return PathUnix
	case strings.HasSuffix(p, ".yml"), strings.HasSuffix(p, ".yaml"):
		// Bare environment files are conda specs by convention.
		return PathCondaEnv
	case dockerImageRe.MatchString(p) && strings.ContainsAny(p, ":/"):
		return PathDockerImage
	case !strings.ContainsAny(p, "/:\\ "):
		// A bare name (e.g. "samtools-env") is a named conda environment.
		return PathCondaEnv
	default:
		return PathUnknown
	}
}
