// Package version reports build information. The values are set at build time with -ldflags, e.g.
//
//	go build -ldflags "-X github.com/Bogunok/eudi-wallet/internal/version.version=v1.2.0"
package version

import "runtime/debug"

var (
	version   = "dev"
	buildDate = "unknown"
	gitCommit = "unknown"
)

// Info is the build information returned by the /version endpoint
type Info struct {
	Version   string `json:"version"`
	BuildDate string `json:"buildDate"`
	GitCommit string `json:"gitCommit"`
	GoVersion string `json:"goVersion"`
}

// Get returns the build information. When no ldflags were supplied the VCS details recorded by the
// go toolchain are used instead.
func Get() Info {
	info := Info{
		Version:   version,
		BuildDate: buildDate,
		GitCommit: gitCommit,
	}

	if bi, ok := debug.ReadBuildInfo(); ok {
		info.GoVersion = bi.GoVersion
		for _, s := range bi.Settings {
			switch s.Key {
			case "vcs.revision":
				if info.GitCommit == "unknown" {
					info.GitCommit = s.Value
				}
			case "vcs.time":
				if info.BuildDate == "unknown" {
					info.BuildDate = s.Value
				}
			}
		}
	}
	return info
}
