// Package transfer runs the file transfer that brings an AppImage up to date.
package transfer

import "errors"

// ErrTransfer is wrapped by every transfer failure.
var ErrTransfer = errors.New("transfer failed")

// Client performs one transfer for a resolved update URL.
//
// Run blocks until the transfer has finished. Progress and NextStatusMessage
// must be safe to call from other goroutines while Run executes.
type Client interface {
	// Run performs the transfer and reports whether it succeeded.
	Run() bool
	// Progress returns the completed fraction in [0, 1].
	Progress() float64
	// NextStatusMessage pops the oldest queued status message without blocking.
	NextStatusMessage() (string, bool)
	// Close releases the client's resources.
	Close() error
}

// Factory creates a Client bound to a control file URL and the file to update.
type Factory func(url, targetPath string) (Client, error)
