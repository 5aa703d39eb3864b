// Package version reports the player-cli build version.
package version

import (
	"fmt"
	"runtime/debug"
	"time"
)

// Version and Commit can be set at build time:
//
//	go build -ldflags="-X github.com/muurk/playerclient/internal/version.Version=v0.3.0 \
//	                   -X github.com/muurk/playerclient/internal/version.Commit=abc1234"
//
// Unset values come from the VCS stamp in the build info, then from a dev
// fallback.
var (
	Version = ""
	Commit  = ""
)

// shortHash is the length of an abbreviated commit hash
const shortHash = 7

func init() {
	info, ok := debug.ReadBuildInfo()
	if ok {
		fill(vcsSettings(info))
	}
	if Version == "" {
		Version = "dev-" + time.Now().Format("20060102-150405")
	}
	if Commit == "" {
		Commit = "unknown"
	}
}

type vcs struct {
	revision string
	time     string
	modified bool
}

func vcsSettings(info *debug.BuildInfo) vcs {
	var v vcs
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			v.revision = s.Value
		case "vcs.time":
			v.time = s.Value
		case "vcs.modified":
			v.modified = s.Value == "true"
		}
	}
	return v
}

// fill sets whichever of Version and Commit ldflags left empty.
func fill(v vcs) {
	if Commit == "" && v.revision != "" {
		Commit = v.revision
		if len(Commit) > shortHash {
			Commit = Commit[:shortHash]
		}
		if v.modified {
			Commit += "-dirty"
		}
	}
	if Version == "" && v.time != "" {
		if t, err := time.Parse(time.RFC3339, v.time); err == nil {
			Version = "dev-" + t.Format("20060102")
		}
	}
}

// Full returns the version with its commit.
func Full() string {
	return fmt.Sprintf("%s (commit: %s)", Version, Commit)
}

// String returns the version line printed by a command named app.
func String(app string) string {
	return app + " " + Full()
}
