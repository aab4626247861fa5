// ABOUTME: Backend and surround capability probes for portaudio
// ABOUTME: Surround support comes from the default device's channel max
package padev

import (
	"log"

	"github.com/gordonklaus/portaudio"
)

// IsSupported reports whether the portaudio runtime comes up on this
// host. The throwaway initialization is released again.
func IsSupported() bool {
	if err := paHost.Acquire(); err != nil {
		return false
	}
	paHost.Release()
	return true
}

// probeSurround asks the host's default output device how many channels
// it serves. A failed query is resolved by policy rather than silently
// disabling surround.
func probeSurround(policy SurroundPolicy) bool {
	if err := paHost.Acquire(); err != nil {
		return surroundDecision(0, err, policy)
	}
	defer paHost.Release()

	dev, err := portaudio.DefaultOutputDevice()
	if err != nil {
		return surroundDecision(0, err, policy)
	}
	return surroundDecision(dev.MaxOutputChannels, nil, policy)
}

// surroundDecision folds the probed channel maximum and the configured
// policy into a support verdict.
func surroundDecision(maxChannels int, queryErr error, policy SurroundPolicy) bool {
	if queryErr != nil {
		open := policy == SurroundFailOpen
		log.Printf("surround probe failed (%v); treating surround as available=%v", queryErr, open)
		return open
	}
	return maxChannels >= 6
}
