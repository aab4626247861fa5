// ABOUTME: Session-open negotiation shared by all drivers
// ABOUTME: Applies zero sentinels and re-validates against capabilities
package backend

import (
	"fmt"

	"github.com/audiobridge/audiobridge-go/pkg/audio"
)

// Negotiate resolves the zero sentinels of the session open contract
// (channelCount 0 means stereo, sampleRate 0 means the target rate) and
// validates the request against the driver's capability predicates.
// Callers are expected to have consulted the predicates already; the
// request fails here rather than being silently downgraded.
func Negotiate(d Driver, dir audio.Direction, format audio.SampleFormat,
	sampleRate, channelCount int) (int, int, error) {

	if channelCount == 0 {
		channelCount = DefaultChannelCount
	}
	if sampleRate == 0 {
		sampleRate = DefaultSampleRate
	}

	if !d.SupportsDirection(dir) {
		return 0, 0, fmt.Errorf("%v: %w", dir, ErrUnsupportedDirection)
	}
	if !d.SupportsSampleFormat(format) {
		return 0, 0, fmt.Errorf("%v: %w", format, ErrUnsupportedFormat)
	}
	if !d.SupportsChannelCount(channelCount) {
		return 0, 0, fmt.Errorf("%d channels: %w", channelCount, ErrUnsupportedChannelCount)
	}
	if !d.SupportsSampleRate(sampleRate) {
		return 0, 0, fmt.Errorf("%d Hz: %w", sampleRate, ErrDeviceOpen)
	}
	return sampleRate, channelCount, nil
}

// ReadRange reads length bytes at off through a session's memory
// accessor, for buffers queued by range instead of by value.
func ReadRange(m MemoryAccessor, off int64, length int) ([]byte, error) {
	if m == nil {
		return nil, fmt.Errorf("no memory accessor bound to session")
	}
	buf := make([]byte, length)
	if _, err := m.ReadAt(buf, off); err != nil {
		return nil, fmt.Errorf("read sample memory at %#x: %w", off, err)
	}
	return buf, nil
}
