package version

import (
	goversion "github.com/hashicorp/go-version"
)

// version is injected at build time via -ldflags.
var version = "development"

// ClientVersion returns the version of the running client.
func ClientVersion() string {
	return version
}

// Semver returns the client version as a comparable semantic version.
// Development builds carry no comparable version and map to 0.0.0.
func Semver() *goversion.Version {
	v, err := goversion.NewVersion(version)
	if err != nil {
		v, _ = goversion.NewVersion("0.0.0")
	}
	return v
}
