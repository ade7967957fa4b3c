// Package version reports the govgate build.
package version

import (
	"runtime/debug"
)

// Version set at link time: -ldflags "-X github.com/govgate/govgate/internal/version.Version=v1.2.3"
var Version = ""

// Swappable for testing
var readBuildInfo = debug.ReadBuildInfo

// BuildVersion returns the linked version, then the module version, or "dev".
func BuildVersion() string {
	if Version != "" {
		return Version
	}
	info, ok := readBuildInfo()
	if !ok {
		return "dev"
	}
	if info.Main.Version == "" || info.Main.Version == "(devel)" {
		return "dev"
	}
	return info.Main.Version
}

// Revision short VCS revision of the build, empty when unknown
func Revision() string {
	info, ok := readBuildInfo()
	if !ok {
		return ""
	}
	var rev string
	dirty := false
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			rev = s.Value
		case "vcs.modified":
			dirty = s.Value == "true"
		}
	}
	if len(rev) > 12 {
		rev = rev[:12]
	}
	if rev != "" && dirty {
		rev += "-dirty"
	}
	return rev
}
