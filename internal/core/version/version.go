// Package version reports what build of rangeslicer is running
package version

import "runtime/debug"

// BuildInfo holds version information about the build
type BuildInfo struct {
	Version string `json:"version"`
	Commit  string `json:"commit"`
	Date    string `json:"date"`
}

// set with -ldflags "-X rangeslicer/internal/core/version.version=v0.3.0 ..."
var (
	version = "dev"
	commit  = ""
	date    = ""

	readBuildInfo = debug.ReadBuildInfo
)

// Info returns the linker-stamped values, falling back to the vcs settings the
// go tool embeds
func Info() BuildInfo {
	bi := BuildInfo{Version: version, Commit: commit, Date: date}
	if bi.Commit != "" && bi.Date != "" {
		return bi
	}
	if info, ok := readBuildInfo(); ok && info != nil {
		for _, s := range info.Settings {
			switch s.Key {
			case "vcs.revision":
				if bi.Commit == "" {
					bi.Commit = s.Value
				}
			case "vcs.time":
				if bi.Date == "" {
					bi.Date = s.Value
				}
			}
		}
	}
	if bi.Commit == "" {
		bi.Commit = "unknown"
	}
	if bi.Date == "" {
		bi.Date = "unknown"
	}
	return bi
}

// ShortCommit is the first 7 characters of the commit
func ShortCommit() string {
	c := Info().Commit
	if len(c) > 7 {
		return c[:7]
	}
	return c
}
