// Package testutil builds small media fixtures for tests: valid MPEG-1
// Layer III frames, ffmpeg-style ID3v2.4 tags and tiny cover images.
package testutil

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"sync"
	"testing"
)

// FrameSize is the length of one MPEG-1 Layer III frame at 128 kbps and
// 44.1 kHz without padding.
const FrameSize = 417

var frameHeader = []byte{0xFF, 0xFB, 0x90, 0x64}

// MPEGFrames returns n consecutive silent MPEG frames.
func MPEGFrames(n int) []byte {
	out := make([]byte, 0, n*FrameSize)
	for i := 0; i < n; i++ {
		frame := make([]byte, FrameSize)
		copy(frame, frameHeader)
		// Non-zero filler so payload corruption is visible in comparisons.
		for j := len(frameHeader); j < FrameSize; j++ {
			frame[j] = byte(i + j)
		}
		out = append(out, frame...)
	}
	return out
}

// LavfTag returns an ID3v2.4 tag like the one ffmpeg writes in front of its
// MP3 output: a single UTF-8 encoded TSSE frame.
func LavfTag() []byte {
	text := append([]byte{0x03}, "Lavf60.3.100"...)
	frame := append([]byte("TSSE"), synchsafe(len(text))...)
	frame = append(frame, 0x00, 0x00)
	frame = append(frame, text...)

	tag := append([]byte("ID3"), 0x04, 0x00, 0x00)
	tag = append(tag, synchsafe(len(frame))...)
	return append(tag, frame...)
}

// FFmpegOutput is what the encoder produces: an ID3v2.4 tag plus n frames.
func FFmpegOutput(n int) []byte {
	return append(LavfTag(), MPEGFrames(n)...)
}

// WriteFile writes data to path and fails the test on error.
func WriteFile(t testing.TB, path string, data []byte) {
	t.Helper()
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
}

// PNG returns a 2x2 PNG image.
func PNG() []byte {
	var buf bytes.Buffer
	if err := png.Encode(&buf, fixtureImage()); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

// JPEG returns a 2x2 JPEG image.
func JPEG() []byte {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, fixtureImage(), nil); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

func fixtureImage() image.Image {
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	img.Set(1, 1, color.RGBA{B: 255, A: 255})
	return img
}

func synchsafe(n int) []byte {
	return []byte{
		byte(n>>21) & 0x7F,
		byte(n>>14) & 0x7F,
		byte(n>>7) & 0x7F,
		byte(n) & 0x7F,
	}
}

// FakeTranscoder stands in for ffmpeg. It writes FFmpegOutput(Frames) to the
// output path, or returns Err without writing anything.
type FakeTranscoder struct {
	Frames int
	Err    error

	mu     sync.Mutex
	inputs []string
}

func (f *FakeTranscoder) Transcode(ctx context.Context, inputPath, outputPath string) error {
	f.mu.Lock()
	f.inputs = append(f.inputs, inputPath)
	f.mu.Unlock()

	if f.Err != nil {
		return f.Err
	}
	frames := f.Frames
	if frames == 0 {
		frames = 8
	}
	return os.WriteFile(outputPath, FFmpegOutput(frames), 0o600)
}

// Inputs returns the input paths seen so far.
func (f *FakeTranscoder) Inputs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.inputs...)
}
