package version

import (
	"runtime"
	"runtime/debug"
)

const unknown = "unknown"

// Build variables set via ldflags, e.g.
// -X 'github.com/compozy/graphsync/pkg/version.Version=v1.0.0'
// -X 'github.com/compozy/graphsync/pkg/version.CommitHash=abc123'
// -X 'github.com/compozy/graphsync/pkg/version.BuildDate=2024-01-01T00:00:00Z'
var (
	Version    = unknown
	CommitHash = unknown
	BuildDate  = unknown
)

type Info struct {
	Version    string `json:"version"`
	CommitHash string `json:"commit_hash"`
	BuildDate  string `json:"build_date"`
	GoVersion  string `json:"go_version"`
}

// Get returns the build information. Values not injected at link time fall
// back to the module data embedded by the Go toolchain.
func Get() Info {
	info := Info{
		Version:    Version,
		CommitHash: CommitHash,
		BuildDate:  BuildDate,
		GoVersion:  runtime.Version(),
	}
	build, ok := debug.ReadBuildInfo()
	if !ok {
		return info
	}
	if info.Version == unknown && build.Main.Version != "" && build.Main.Version != "(devel)" {
		info.Version = build.Main.Version
	}
	for _, setting := range build.Settings {
		switch setting.Key {
		case "vcs.revision":
			if info.CommitHash == unknown {
				info.CommitHash = setting.Value
			}
		case "vcs.time":
			if info.BuildDate == unknown {
				info.BuildDate = setting.Value
			}
		}
	}
	return info
}
