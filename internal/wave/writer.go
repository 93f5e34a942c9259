// Package wave writes raw PCM captured from a source into a RIFF/WAVE
// container.
package wave

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/emmett/voxrec/internal/audio"
)

const (
	formatPCM       = 1
	formatIEEEFloat = 3
)

// HeaderSize is the size of the RIFF, fmt and data chunk headers written
// before the first sample
const HeaderSize = 44

var errClosed = errors.New("wave writer is closed")

// Writer encodes raw little-endian PCM bytes as a WAV stream. The header is
// written on creation with placeholder sizes, which Close back-patches, so
// the total length need not be known up front.
type Writer struct {
	ws     io.WriteSeeker
	enc    *wav.Encoder
	format audio.Format
	pcm    *goaudio.Format

	pending   []byte
	dataBytes int64
	closed    bool
}

// NewWriter writes the WAV header to ws and returns a writer for the samples
func NewWriter(ws io.WriteSeeker, format audio.Format) (*Writer, error) {
	if err := format.Validate(); err != nil {
		return nil, err
	}

	tag := formatPCM
	if format.SampleFormat.IsFloat() {
		tag = formatIEEEFloat
	}

	w := &Writer{
		ws:     ws,
		enc:    wav.NewEncoder(ws, format.SampleRate, format.SampleFormat.Bits(), format.Channels, tag),
		format: format,
		pcm: &goaudio.Format{
			NumChannels: format.Channels,
			SampleRate:  format.SampleRate,
		},
	}

	// An empty buffer makes the encoder emit the RIFF, fmt and data headers.
	if err := w.enc.Write(w.intBuffer(nil)); err != nil {
		return nil, fmt.Errorf("failed to write wav header: %w", err)
	}

	return w, nil
}

// Write encodes whole frames from p. Bytes of a trailing partial frame are
// held back until the next call.
func (w *Writer) Write(p []byte) (int, error) {
	if w.closed {
		return 0, errClosed
	}

	blockAlign := w.format.BlockAlign()
	data := p
	if len(w.pending) > 0 {
		data = append(w.pending, p...)
	}

	whole := len(data) - len(data)%blockAlign
	if whole > 0 {
		samples := w.decode(data[:whole])
		if err := w.enc.Write(w.intBuffer(samples)); err != nil {
			return 0, fmt.Errorf("failed to write wav samples: %w", err)
		}
		w.dataBytes += int64(whole)
	}

	w.pending = append(w.pending[:0:0], data[whole:]...)
	return len(p), nil
}

// DataSize returns the number of sample bytes written to the data chunk.
// Before Close it excludes a pending partial frame.
func (w *Writer) DataSize() int64 {
	return w.dataBytes
}

// Close finalizes the RIFF and data chunk sizes. A partial frame still
// pending is appended as is, so the data chunk holds every byte written.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	tail := w.pending
	w.pending = nil
	if len(tail) > 0 {
		if _, err := w.ws.Write(tail); err != nil {
			return fmt.Errorf("failed to write wav samples: %w", err)
		}
		w.dataBytes += int64(len(tail))
	}

	if err := w.enc.Close(); err != nil {
		return fmt.Errorf("failed to finalize wav file: %w", err)
	}

	// The encoder sizes the chunks from whole frames only.
	if len(tail) > 0 {
		if err := w.patchSizes(); err != nil {
			return fmt.Errorf("failed to finalize wav file: %w", err)
		}
	}
	return nil
}

// patchSizes rewrites the RIFF and data sizes from dataBytes. An odd-sized
// data chunk gets the pad byte RIFF requires after it.
func (w *Writer) patchSizes() error {
	riffSize := HeaderSize - 8 + w.dataBytes
	if w.dataBytes%2 == 1 {
		if _, err := w.ws.Write([]byte{0}); err != nil {
			return err
		}
		riffSize++
	}

	for _, field := range []struct {
		offset int64
		value  uint32
	}{
		{4, uint32(riffSize)},
		{HeaderSize - 4, uint32(w.dataBytes)},
	} {
		if _, err := w.ws.Seek(field.offset, io.SeekStart); err != nil {
			return err
		}
		if err := binary.Write(w.ws, binary.LittleEndian, field.value); err != nil {
			return err
		}
	}

	_, err := w.ws.Seek(0, io.SeekEnd)
	return err
}

func (w *Writer) intBuffer(samples []int) *goaudio.IntBuffer {
	return &goaudio.IntBuffer{
		Format:         w.pcm,
		Data:           samples,
		SourceBitDepth: w.format.SampleFormat.Bits(),
	}
}

// decode converts little-endian sample bytes to ints that the encoder writes
// back bit-for-bit
func (w *Writer) decode(data []byte) []int {
	size := w.format.SampleFormat.BlockAlign()
	samples := make([]int, len(data)/size)

	for i := range samples {
		b := data[i*size : (i+1)*size]
		switch w.format.SampleFormat {
		case audio.SampleFormatU8:
			samples[i] = int(b[0])
		case audio.SampleFormatS16:
			samples[i] = int(int16(binary.LittleEndian.Uint16(b)))
		case audio.SampleFormatS24:
			samples[i] = int(goaudio.Int24LETo32(b))
		case audio.SampleFormatS32, audio.SampleFormatF32:
			samples[i] = int(int32(binary.LittleEndian.Uint32(b)))
		}
	}

	return samples
}
