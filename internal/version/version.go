// Package version holds build identity injected via -ldflags -X.
package version

var (
	// Version is the release version, "dev" for local builds
	Version = "dev"
	// GitSHA is the commit the binary was built from
	GitSHA = "unknown"
	// BuildTime is the build timestamp
	BuildTime = "unknown"
)
