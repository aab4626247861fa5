// ABOUTME: Process-wide oto context shared by every oto driver
// ABOUTME: oto allows a single context per process, so it is refcounted
package otodev

import (
	"log"

	"github.com/audiobridge/audiobridge-go/internal/host"
	"github.com/audiobridge/audiobridge-go/pkg/backend"
	"github.com/ebitengine/oto/v3"
)

// oto permits exactly one context per process and offers no way to
// destroy it, only to suspend it. The subsystem handle below owns that
// context: the first acquire creates or resumes it, the last release
// suspends it.
var (
	procCtx  *oto.Context
	procHost = host.NewSubsystem("oto", acquireContext, suspendContext)
)

func acquireContext() error {
	if procCtx != nil {
		return procCtx.Resume()
	}

	ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   backend.DefaultSampleRate,
		ChannelCount: backend.DefaultChannelCount,
		Format:       oto.FormatSignedInt16LE,
	})
	if err != nil {
		return err
	}
	<-ready

	procCtx = ctx
	log.Printf("oto context ready: %dHz, %d channels",
		backend.DefaultSampleRate, backend.DefaultChannelCount)
	return nil
}

func suspendContext() {
	if procCtx == nil {
		return
	}
	if err := procCtx.Suspend(); err != nil {
		log.Printf("oto context suspend: %v", err)
	}
}

// IsSupported probes the backend by bringing the shared context up and
// immediately releasing it. Any native failure reads as unsupported.
func IsSupported() bool {
	if err := procHost.Acquire(); err != nil {
		return false
	}
	procHost.Release()
	return true
}
