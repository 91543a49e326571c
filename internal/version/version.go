// Package version carries build metadata injected with ldflags:
//
//	go build -ldflags "-X git.home.luguber.info/inful/catminer/internal/version.Version=v0.3.0"
package version

import (
	"fmt"
	"runtime/debug"
)

// Version is the release version.
var Version = "unknown"

// Build metadata.
var (
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// String renders the version line printed by --version. When no version was
// injected, the module version recorded by the Go toolchain is used.
func String() string {
	v := Version
	if v == "unknown" {
		if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
			v = info.Main.Version
		}
	}
	return fmt.Sprintf("catminer %s (commit %s, built %s)", v, GitCommit, BuildTime)
}
