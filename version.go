// Package decisionledger provides the version information for decision-ledger.
package decisionledger

// Version is the current version of decision-ledger.
const Version = "0.1.0"

// GetVersion returns the current version string.
func GetVersion() string {
	return Version
}
