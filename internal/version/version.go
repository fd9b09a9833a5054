// Package version exposes the vigil build version string.
package version

// version holds the release tag, overridden at build time:
//
//	go build -ldflags "-X vigil/internal/version.version=v1.2.3"
var version = "dev"

// String reports the build version, "dev" for untagged builds.
func String() string {
	return version
}
