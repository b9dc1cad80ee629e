// Package version holds build metadata injected with -ldflags, e.g.
//
//	go build -ldflags "-X github.com/bdobrica/Shashin/common/version.Version=v1.2.0"
package version

var (
	Version   = "v0.0.0-dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

// Info returns a one-line version string.
func Info() string {
	return "Shashin " + Version + " (" + GitCommit + ") built at " + BuildTime
}
