// ABOUTME: Error taxonomy shared by all backends
// ABOUTME: Sentinel errors for negotiation and lifecycle failures
package backend

import "errors"

var (
	// ErrInitialization means the native audio subsystem failed to
	// start. Fatal to the caller; no retry is attempted.
	ErrInitialization = errors.New("audio subsystem initialization failed")

	// ErrDeviceOpen means the native device or stream could not be
	// opened with the negotiated format.
	ErrDeviceOpen = errors.New("audio device open failed")

	// ErrUnsupportedDirection rejects anything but output streams.
	ErrUnsupportedDirection = errors.New("unsupported stream direction")

	// ErrUnsupportedChannelCount rejects a channel count the backend
	// cannot serve on this host.
	ErrUnsupportedChannelCount = errors.New("unsupported channel count")

	// ErrUnsupportedFormat rejects a sample format the backend cannot
	// serve.
	ErrUnsupportedFormat = errors.New("unsupported sample format")

	// ErrClosed rejects operations on a closed driver or session.
	ErrClosed = errors.New("audio object is closed")
)
