// ABOUTME: Build identification constants
// ABOUTME: Reported by the CLI and in driver startup logs
package version

const (
	Version = "0.1.0"
	Product = "audiobridge"
)
