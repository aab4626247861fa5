// ABOUTME: Entry point for the audiobridge demo player
// ABOUTME: Streams an MP3 or a test tone through a chosen backend
package main

import (
	"encoding/binary"
	"errors"
	"flag"
	"io"
	"log"
	"math"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/audiobridge/audiobridge-go"
	"github.com/audiobridge/audiobridge-go/internal/version"
	"github.com/audiobridge/audiobridge-go/pkg/audio"
	"github.com/audiobridge/audiobridge-go/pkg/backend"
	"github.com/hajimehoshi/go-mp3"
)

var (
	backendName = flag.String("backend", "auto", "Backend: auto, oto, miniaudio, portaudio, null")
	audioFile   = flag.String("file", "", "MP3 file to play. If not specified, plays a test tone")
	duration    = flag.Duration("duration", 5*time.Second, "Test tone duration")
	freq        = flag.Float64("freq", 440, "Test tone frequency in Hz")
	volume      = flag.Float64("volume", 1.0, "Playback volume (0..1)")
)

// chunkFrames is the submission granularity: 10ms at 48kHz.
const (
	chunkFrames = 480
	maxInFlight = 4
)

func main() {
	flag.Parse()
	log.Printf("%s %s", version.Product, version.Version)

	kind, err := resolveBackend(*backendName)
	if err != nil {
		log.Fatal(err)
	}
	log.Printf("Using %s backend", kind)

	drv, err := audiobridge.Open(kind, audiobridge.Config{})
	if err != nil {
		log.Fatalf("open driver: %v", err)
	}
	defer drv.Close()

	src, rate, err := openSource()
	if err != nil {
		log.Fatal(err)
	}

	sess, err := drv.OpenDeviceSession(audio.DirectionOutput, nil, audio.FormatS16,
		rate, 2, float32(*volume))
	if err != nil {
		if errors.Is(err, backend.ErrDeviceOpen) {
			log.Printf("backend %s cannot serve %d Hz; try -backend miniaudio or portaudio", kind, rate)
		}
		log.Fatalf("open session: %v", err)
	}
	defer sess.Close()

	if err := sess.Start(); err != nil {
		log.Fatalf("start session: %v", err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	play(drv, sess, src, sigChan)

	log.Printf("Played %d sample frames", sess.PlayedSampleCount())
}

// play pumps chunks from src into the session, holding a small number
// of buffers in flight and reclaiming them as the backend retires them.
func play(drv backend.Driver, sess backend.Session, src io.Reader, sig <-chan os.Signal) {
	chunkBytes := chunkFrames * audio.FrameSize(audio.FormatS16, 2)

	var pending []uintptr
	nextID := uintptr(1)
	eof := false

	for {
		select {
		case <-sig:
			log.Printf("Interrupted")
			return
		default:
		}

		for !eof && len(pending) < maxInFlight {
			buf := make([]byte, chunkBytes)
			n, err := io.ReadFull(src, buf)
			if err != nil {
				eof = true
			}
			if n == 0 {
				break
			}
			if qerr := sess.QueueBuffer(nextID, buf[:n]); qerr != nil {
				log.Printf("queue buffer: %v", qerr)
				return
			}
			pending = append(pending, nextID)
			nextID++
		}

		if eof && len(pending) == 0 {
			return
		}

		drv.UpdateRequiredFlag().Wait(100 * time.Millisecond)
		drv.UpdateRequiredFlag().Clear()

		for len(pending) > 0 && sess.WasBufferConsumed(pending[0]) {
			pending = pending[1:]
		}
	}
}

func resolveBackend(name string) (backend.Kind, error) {
	if name == "auto" {
		return audiobridge.FirstSupported(), nil
	}
	return audiobridge.KindByName(name)
}

// openSource returns the PCM source (16-bit stereo little-endian) and
// its sample rate.
func openSource() (io.Reader, int, error) {
	if *audioFile == "" {
		rate := backend.DefaultSampleRate
		log.Printf("Playing %.0fHz tone for %v", *freq, *duration)
		return &toneReader{
			freq:      *freq,
			rate:      rate,
			remaining: int(duration.Seconds() * float64(rate)),
		}, rate, nil
	}

	f, err := os.Open(*audioFile)
	if err != nil {
		return nil, 0, err
	}
	dec, err := mp3.NewDecoder(f)
	if err != nil {
		return nil, 0, err
	}
	log.Printf("Playing %s at %dHz", *audioFile, dec.SampleRate())
	return dec, dec.SampleRate(), nil
}

// toneReader generates a stereo sine wave as 16-bit PCM.
type toneReader struct {
	freq      float64
	rate      int
	pos       int
	remaining int
}

func (t *toneReader) Read(p []byte) (int, error) {
	if t.remaining <= 0 {
		return 0, io.EOF
	}
	frames := len(p) / 4
	if frames > t.remaining {
		frames = t.remaining
	}
	for i := 0; i < frames; i++ {
		v := int16(8000 * math.Sin(2*math.Pi*t.freq*float64(t.pos)/float64(t.rate)))
		binary.LittleEndian.PutUint16(p[i*4:], uint16(v))
		binary.LittleEndian.PutUint16(p[i*4+2:], uint16(v))
		t.pos++
	}
	t.remaining -= frames
	return frames * 4, nil
}
