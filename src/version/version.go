package version

import "fmt"

// Release number of the overlay binary.
const (
	Major = 0
	Minor = 1
	Patch = 0
)

// Flag marks builds that are not tagged releases. It is empty on release
// branches.
const Flag = "develop"

// ProtocolVersion is the overlay protocol version announced in Hello.
const ProtocolVersion = 1

var (
	// Version is Major.Minor.Patch, followed by Flag and the short commit hash
	// when they are set.
	Version = fmt.Sprintf("%d.%d.%d", Major, Minor, Patch)

	// GitCommit is set at link time:
	// -ldflags "-X github.com/mosaicnetworks/overlay/src/version.GitCommit=$(git rev-parse HEAD)"
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

// String returns the version string announced to peers in Hello.
func String() string {
	return "overlay-" + Version
}
