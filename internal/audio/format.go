package audio

import (
	"fmt"
	"strings"

	"github.com/gen2brain/malgo"
)

// SampleFormat is the PCM sample layout delivered by the capture device
type SampleFormat int

const (
	SampleFormatU8 SampleFormat = iota + 1
	SampleFormatS16
	SampleFormatS24
	SampleFormatS32
	SampleFormatF32
)

var sampleFormatNames = map[SampleFormat]string{
	SampleFormatU8:  "u8",
	SampleFormatS16: "s16",
	SampleFormatS24: "s24",
	SampleFormatS32: "s32",
	SampleFormatF32: "f32",
}

// ParseSampleFormat parses names like "s16" or bit depths like "16"
func ParseSampleFormat(s string) (SampleFormat, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "u8", "8":
		return SampleFormatU8, nil
	case "s16", "16", "":
		return SampleFormatS16, nil
	case "s24", "24":
		return SampleFormatS24, nil
	case "s32", "32":
		return SampleFormatS32, nil
	case "f32", "float", "float32":
		return SampleFormatF32, nil
	}
	return 0, fmt.Errorf("unknown sample format: %s (valid: u8, s16, s24, s32, f32)", s)
}

func (f SampleFormat) String() string {
	if name, ok := sampleFormatNames[f]; ok {
		return name
	}
	return fmt.Sprintf("SampleFormat(%d)", int(f))
}

// BlockAlign returns the number of bytes in one sample of one channel
func (f SampleFormat) BlockAlign() int {
	switch f {
	case SampleFormatU8:
		return 1
	case SampleFormatS16:
		return 2
	case SampleFormatS24:
		return 3
	case SampleFormatS32, SampleFormatF32:
		return 4
	}
	return 0
}

// Bits returns the bits per sample
func (f SampleFormat) Bits() int {
	return f.BlockAlign() * 8
}

// IsFloat reports whether samples are IEEE floats
func (f SampleFormat) IsFloat() bool {
	return f == SampleFormatF32
}

func (f SampleFormat) malgoFormat() malgo.FormatType {
	switch f {
	case SampleFormatU8:
		return malgo.FormatU8
	case SampleFormatS24:
		return malgo.FormatS24
	case SampleFormatS32:
		return malgo.FormatS32
	case SampleFormatF32:
		return malgo.FormatF32
	}
	return malgo.FormatS16
}

// Format describes the PCM layout of a capture session. It is bound when the
// source is opened and never changes afterwards.
type Format struct {
	// Channels is the number of interleaved channels (1 = mono, 2 = stereo)
	Channels int

	// SampleRate is the number of frames per second (Hz)
	SampleRate int

	// SampleFormat is the per-sample encoding
	SampleFormat SampleFormat
}

// DefaultFormat returns 16kHz mono 16-bit PCM
func DefaultFormat() Format {
	return Format{
		Channels:     1,
		SampleRate:   16000,
		SampleFormat: SampleFormatS16,
	}
}

// Validate checks that the format can be opened and encoded
func (f Format) Validate() error {
	if f.Channels <= 0 {
		return fmt.Errorf("invalid channel count: %d", f.Channels)
	}
	if f.SampleRate <= 0 {
		return fmt.Errorf("invalid sample rate: %d", f.SampleRate)
	}
	if f.SampleFormat.BlockAlign() == 0 {
		return fmt.Errorf("invalid sample format: %s", f.SampleFormat)
	}
	return nil
}

// BlockAlign returns the size in bytes of one frame across all channels
func (f Format) BlockAlign() int {
	return f.Channels * f.SampleFormat.BlockAlign()
}

// BytesPerSecond returns the byte rate of the raw PCM stream
func (f Format) BytesPerSecond() int {
	return f.SampleRate * f.BlockAlign()
}

func (f Format) String() string {
	return fmt.Sprintf("%d Hz, %d ch, %s", f.SampleRate, f.Channels, f.SampleFormat)
}
