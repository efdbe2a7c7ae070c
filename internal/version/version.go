// Package version carries build metadata, set with -ldflags at release time:
//
//	go build -ldflags "-X github.com/alchemmist/lazy-rec/internal/version.Version=v0.3.0"
package version

import "fmt"

var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

func String() string {
	return fmt.Sprintf("lazy-rec %s (commit %s, built %s)", Version, Commit, Date)
}
