// Package supportflow provides the version information for supportflow.
package supportflow

// Version is the current version of supportflow.
const Version = "1.0.0"

// GetVersion returns the current version string.
func GetVersion() string {
	return Version
}
