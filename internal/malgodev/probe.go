// ABOUTME: Backend and surround capability probes for miniaudio
// ABOUTME: Probes open throwaway devices and leave no side effects
package malgodev

import (
	"log"

	"github.com/audiobridge/audiobridge-go/pkg/backend"
	"github.com/gen2brain/malgo"
)

// IsSupported reports whether miniaudio can bring up a context on this
// host. The throwaway context is torn down again; any native failure
// maps to false.
func IsSupported() bool {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(message string) {})
	if err != nil {
		return false
	}
	_ = ctx.Uninit()
	ctx.Free()
	return true
}

// probeSurround opens a throwaway 6-channel playback device to learn
// whether the host can serve surround sessions. Any failure to complete
// the probe, the device open included, is resolved by policy: a busy
// device fails the open just like a missing one, so the open result is
// not an authoritative no.
func probeSurround(policy SurroundPolicy) bool {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(message string) {})
	if err != nil {
		return surroundDecision(err, false, policy)
	}
	defer func() {
		_ = ctx.Uninit()
		ctx.Free()
	}()

	cfg := malgo.DefaultDeviceConfig(malgo.Playback)
	cfg.Playback.Format = malgo.FormatS16
	cfg.Playback.Channels = 6
	cfg.SampleRate = uint32(backend.DefaultSampleRate)

	dev, err := malgo.InitDevice(ctx.Context, cfg, malgo.DeviceCallbacks{
		Data: func(out, in []byte, frameCount uint32) {},
	})
	if err != nil {
		return surroundDecision(err, false, policy)
	}
	dev.Uninit()
	return surroundDecision(nil, true, policy)
}

// surroundDecision folds a probe outcome and the configured policy into
// a support verdict. queryErr is an error running the probe itself, as
// opposed to the probe cleanly reporting no surround device.
func surroundDecision(queryErr error, opened bool, policy SurroundPolicy) bool {
	if queryErr != nil {
		open := policy == SurroundFailOpen
		log.Printf("surround probe failed (%v); treating surround as available=%v", queryErr, open)
		return open
	}
	return opened
}
