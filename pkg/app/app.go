// Package app defines the common runtime contract shared by executable
// entrypoints so cmd/* binaries can start components without depending on
// their concrete implementations.
package app

// Runner represents a runnable application component.
type Runner interface {
	Run() error
}
