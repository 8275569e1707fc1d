// Package version holds the release number reported by the version
// command. It changes whenever generated kernels change.
package version

const Int = 3
