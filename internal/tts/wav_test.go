package tts

import (
	"bytes"
	"testing"

	"github.com/go-audio/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureWAVWrapsPCM(t *testing.T) {
	pcm := []byte{0x00, 0x00, 0xff, 0x7f, 0x00, 0x80, 0x01, 0x00}

	out, err := EnsureWAV(pcm)
	require.NoError(t, err)
	require.True(t, IsWAV(out))

	dec := wav.NewDecoder(bytes.NewReader(out))
	buf, err := dec.FullPCMBuffer()
	require.NoError(t, err)
	assert.Equal(t, uint32(PCMSampleRate), dec.SampleRate)
	assert.Equal(t, uint16(PCMChannels), dec.NumChans)
	assert.Equal(t, []int{0, 32767, -32768, 1}, buf.Data)
}

func TestEnsureWAVKeepsExistingContainer(t *testing.T) {
	wrapped, err := EnsureWAV([]byte{1, 0, 2, 0})
	require.NoError(t, err)

	again, err := EnsureWAV(wrapped)
	require.NoError(t, err)
	assert.Equal(t, wrapped, again)
}

func TestEnsureWAVRejectsOddPCM(t *testing.T) {
	_, err := EnsureWAV([]byte{1, 2, 3})
	assert.Error(t, err)
}
