// Package capture defines the audio capture boundary. The engine never
// touches hardware directly; the host application injects a Device, the
// same way a mock is injected in tests.
package capture

import (
	"context"
)

// Track is an exclusive handle on the capture device while recording.
// Every track must be ended by exactly one Stop or Close call; both
// release the device.
type Track interface {
	// Stop ends the capture, releases the device, and returns the
	// buffered media as a single blob.
	Stop() ([]byte, error)
	// Close releases the device without keeping the captured media.
	// Used on abort and error paths.
	Close() error
	// Done is closed if the device fails mid-capture (permission
	// revoked, hardware gone). Err reports the cause afterwards.
	Done() <-chan struct{}
	// Err returns the failure cause once Done is closed.
	Err() error
}

// Device acquires the microphone. The device is exclusive: at most one
// track may be held per engine, enforced by the recording pipeline.
type Device interface {
	// Acquire requests the capture device and starts buffering.
	// Permission-denied and device-unavailable conditions surface here.
	Acquire(ctx context.Context) (Track, error)
	// MimeType reports the media type the device produces.
	MimeType() string
}
