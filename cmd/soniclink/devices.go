package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/wrenhold/soniclink/pkg/audio/capture"
	"github.com/wrenhold/soniclink/pkg/audio/playback"
	"github.com/wrenhold/soniclink/pkg/audio/sco"
)

// fileInput reads raw mono PCM16 from a file or stdin. Platform builds would
// register a real microphone adapter instead; the file device keeps the
// daemon usable with `arecord -f S16_LE -r 16000 | soniclink -input -`.
type fileInput struct {
	path  string
	f     *os.File
	ownsF bool

	// bytesPerSec paces reads from regular files so the wall-clock based
	// utterance endpointing sees a realistic frame cadence. Live pipes are
	// already paced by the producer and skip the sleep.
	bytesPerSec float64
	pace        bool
}

var _ capture.InputDevice = (*fileInput)(nil)

func newFileInput(path string) *fileInput {
	return &fileInput{path: path}
}

func (d *fileInput) Open(sampleRate, bufSize int) error {
	if d.path == "-" {
		d.f = os.Stdin
	} else {
		f, err := os.Open(d.path)
		if err != nil {
			return fmt.Errorf("input device: %w", err)
		}
		d.f = f
		d.ownsF = true
	}

	d.bytesPerSec = float64(sampleRate) * 2
	if info, err := d.f.Stat(); err == nil && info.Mode().IsRegular() {
		d.pace = true
	}
	return nil
}

func (d *fileInput) Read(buf []byte) (int, error) {
	if d.f == nil {
		return 0, os.ErrClosed
	}
	n, err := d.f.Read(buf)
	if n > 0 && d.pace {
		time.Sleep(time.Duration(float64(n) / d.bytesPerSec * float64(time.Second)))
	}
	if err == io.EOF {
		// Deliver the final partial read intact; the next call reports the
		// device closed so the capture loop winds down.
		if n > 0 {
			return n, nil
		}
		return 0, os.ErrClosed
	}
	return n, err
}

func (d *fileInput) Close() error {
	if d.f == nil || !d.ownsF {
		d.f = nil
		return nil
	}
	f := d.f
	d.f = nil
	return f.Close()
}

// fileOutput writes raw mono PCM16 to a file or stdout, standing in for the
// platform speaker path (`soniclink -output - | aplay -f S16_LE -r 24000`).
type fileOutput struct {
	path  string
	f     *os.File
	ownsF bool
}

var _ playback.OutputDevice = (*fileOutput)(nil)

func newFileOutput(path string) *fileOutput {
	return &fileOutput{path: path}
}

func (d *fileOutput) Open(sampleRate int, routeToBluetooth bool) error {
	if d.path == "-" {
		d.f = os.Stdout
		return nil
	}
	f, err := os.OpenFile(d.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("output device: %w", err)
	}
	d.f = f
	d.ownsF = true
	return nil
}

func (d *fileOutput) Write(pcm []byte) (int, error) {
	if d.f == nil {
		return 0, os.ErrClosed
	}
	return d.f.Write(pcm)
}

func (d *fileOutput) Close() error {
	if d.f == nil || !d.ownsF {
		d.f = nil
		return nil
	}
	f := d.f
	d.f = nil
	return f.Close()
}

// passthroughLink is an always-active SCO control surface for hosts without a
// Bluetooth stack. The link manager and its health check run unchanged; the
// routing calls are no-ops because file devices have no routing mode.
type passthroughLink struct{}

var _ sco.Link = passthroughLink{}

func (passthroughLink) Active() bool        { return true }
func (passthroughLink) Request() error      { return nil }
func (passthroughLink) Release() error      { return nil }
func (passthroughLink) RouteVoice() error   { return nil }
func (passthroughLink) RestoreRoute() error { return nil }
