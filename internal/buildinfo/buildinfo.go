// Package buildinfo carries build-time metadata injected with -ldflags.
// It is kept apart from user configuration.
package buildinfo

import "strings"

// UnknownValue is reported for metadata the build did not set.
const UnknownValue = "unknown"

// Info contains build-time metadata that is not user-configurable.
type Info struct {
	version   string
	buildDate string
}

// New returns build metadata. Empty values read as UnknownValue.
func New(version, buildDate string) *Info {
	return &Info{
		version:   strings.TrimSpace(version),
		buildDate: strings.TrimSpace(buildDate),
	}
}

// Version returns the release tag of the build.
func (i *Info) Version() string {
	if i == nil || i.version == "" {
		return UnknownValue
	}
	return i.version
}

// BuildDate returns when the binary was built.
func (i *Info) BuildDate() string {
	if i == nil || i.buildDate == "" {
		return UnknownValue
	}
	return i.buildDate
}

// String is the one-line form printed by --version.
func (i *Info) String() string {
	return i.Version() + " (built " + i.BuildDate() + ")"
}

// UserAgent appends the version to a product token, e.g. SkyBound-Admin/1.2.0.
// Builds without a version keep the bare token.
func (i *Info) UserAgent(product string) string {
	if i.Version() == UnknownValue {
		return product
	}
	return product + "/" + i.Version()
}
