// Package version holds folio build metadata, injected at build time with
// -ldflags "-X github.com/jackzampolin/folio/version.GitRelease=...".
package version

import (
	"fmt"
	"runtime"
)

var (
	// GitRelease is the release tag, set at build time.
	GitRelease = "dev"
	// GitCommit is the commit hash, set at build time.
	GitCommit = "unknown"
	// GitCommitDate is the commit date, set at build time.
	GitCommitDate = "unknown"
	// GoInfo describes the toolchain and platform.
	GoInfo = fmt.Sprintf("%s %s/%s", runtime.Version(), runtime.GOOS, runtime.GOARCH)
)

// String renders the build metadata for `folio version`.
func String() string {
	return fmt.Sprintf("folio %s\n  Go:     %s\n  Commit: %s\n  Date:   %s\n",
		GitRelease, GoInfo, GitCommit, GitCommitDate)
}
