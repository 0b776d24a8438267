package tts

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// PCM parameters the provider uses for LINEAR16 when no header is present
const (
	PCMSampleRate = 24000
	PCMBitDepth   = 16
	PCMChannels   = 1

	wavFormatPCM = 1
)

// IsWAV reports whether data is a RIFF/WAVE container
func IsWAV(data []byte) bool {
	return wav.NewDecoder(bytes.NewReader(data)).IsValidFile()
}

// EnsureWAV returns data unchanged when it is already a WAV file and
// otherwise wraps it as 16-bit mono PCM
func EnsureWAV(data []byte) ([]byte, error) {
	if IsWAV(data) {
		return data, nil
	}
	if len(data)%2 != 0 {
		return nil, errors.New("pcm payload has an odd number of bytes")
	}

	samples := make([]int, len(data)/2)
	for i := range samples {
		samples[i] = int(int16(binary.LittleEndian.Uint16(data[2*i:])))
	}

	out := &memWriteSeeker{}
	enc := wav.NewEncoder(out, PCMSampleRate, PCMBitDepth, PCMChannels, wavFormatPCM)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: PCMChannels, SampleRate: PCMSampleRate},
		Data:           samples,
		SourceBitDepth: PCMBitDepth,
	}
	if err := enc.Write(buf); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return out.buf, nil
}

// memWriteSeeker is the in-memory io.WriteSeeker the wav encoder needs to
// patch chunk sizes on Close
type memWriteSeeker struct {
	buf []byte
	pos int
}

func (m *memWriteSeeker) Write(p []byte) (int, error) {
	end := m.pos + len(p)
	if end > len(m.buf) {
		grown := make([]byte, end)
		copy(grown, m.buf)
		m.buf = grown
	}
	copy(m.buf[m.pos:], p)
	m.pos = end
	return len(p), nil
}

func (m *memWriteSeeker) Seek(offset int64, whence int) (int64, error) {
	var base int64
	switch whence {
	case io.SeekStart:
	case io.SeekCurrent:
		base = int64(m.pos)
	case io.SeekEnd:
		base = int64(len(m.buf))
	default:
		return 0, errors.New("invalid whence")
	}
	next := base + offset
	if next < 0 {
		return 0, errors.New("negative position")
	}
	m.pos = int(next)
	return next, nil
}
