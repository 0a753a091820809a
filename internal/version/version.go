// Package version exposes build version information for the petdoor tools.
package version

import (
	"fmt"
	"runtime/debug"
	"time"
)

// Version and Commit can be injected at build time:
//
//	go build -ldflags="-X github.com/nickrout/ha-powerpetdoor/internal/version.Version=v1.2.3 \
//	                   -X github.com/nickrout/ha-powerpetdoor/internal/version.Commit=abc123"
//
// When not injected they are derived from the module's VCS build info, with a
// dev fallback.
var (
	Version = ""
	Commit  = ""
)

func init() {
	if Version == "" || Commit == "" {
		fromBuildInfo()
	}
	if Version == "" {
		Version = fmt.Sprintf("dev-%s", time.Now().Format("20060102-150405"))
	}
	if Commit == "" {
		Commit = "unknown"
	}
}

func fromBuildInfo() {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}

	var revision, modified, vcsTime string
	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			revision = setting.Value
		case "vcs.modified":
			modified = setting.Value
		case "vcs.time":
			vcsTime = setting.Value
		}
	}

	if Commit == "" && revision != "" {
		if len(revision) > 7 {
			revision = revision[:7]
		}
		Commit = revision
		if modified == "true" {
			Commit += "-dirty"
		}
	}

	if Version == "" && vcsTime != "" {
		if t, err := time.Parse(time.RFC3339, vcsTime); err == nil {
			Version = fmt.Sprintf("dev-%s", t.Format("20060102"))
		}
	}
}

// Full returns the version string including commit hash.
func Full() string {
	return fmt.Sprintf("%s (commit: %s)", Version, Commit)
}
