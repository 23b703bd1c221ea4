package version

import "runtime"

// Flag marks development builds. It must be empty on release branches.
const Flag = ""

var (
	// Version is the full version string
	Version = "0.1.0"

	// GitCommit is set with --ldflags "-X github.com/fractis/node/src/version.GitCommit=$(git rev-parse HEAD)"
	GitCommit string
)

func init() {
	if Flag != "" {
		Version += "-" + Flag
	}

	if len(GitCommit) >= 8 {
		Version += "-" + GitCommit[:8]
	}
}

// Info returns the version details printed by the version command.
func Info() map[string]string {
	return map[string]string{
		"version": Version,
		"commit":  GitCommit,
		"go":      runtime.Version(),
		"os":      runtime.GOOS + "/" + runtime.GOARCH,
	}
}
