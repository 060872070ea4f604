// Package app defines the runtime contract cmd/* binaries use to start the
// wallet API without depending on its concrete wiring.
package app

// Runner represents a runnable application component.
type Runner interface {
	Run() error
}
