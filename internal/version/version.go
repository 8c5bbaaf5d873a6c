// Package version holds build information injected with -ldflags.
package version

import (
	"fmt"
	"runtime"

	"github.com/aatumaykin/cryptopilot/internal/constants"
)

var (
	Version   = constants.DefaultVersion
	BuildTime = constants.DefaultBuildTime
	GitCommit = constants.DefaultGitCommit
	GoVersion = constants.DefaultGoVersion
)

func SetInfo(v, bt, gc, gv string) {
	if v != "" {
		Version = v
	}
	if bt != "" {
		BuildTime = bt
	}
	if gc != "" {
		GitCommit = gc
	}
	if gv != "" {
		GoVersion = gv
	}
}

// String is the one-line form printed by `cryptopilot version`.
func String() string {
	gv := GoVersion
	if gv == constants.DefaultGoVersion {
		gv = runtime.Version()
	}
	return fmt.Sprintf("cryptopilot %s (commit %s, built %s, %s)", Version, GitCommit, BuildTime, gv)
}

func FormatStartupMessage(handle string) string {
	return fmt.Sprintf("🚀 CryptoPilot запущен для @%s\nВерсия: %s\nСборка: %s", handle, Version, BuildTime)
}
