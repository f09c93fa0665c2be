package uplink

import (
	"context"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapPCMHeader(t *testing.T) {
	pcm := make([]byte, 320)
	wav := WrapPCM(pcm)
	require.Len(t, wav, wavHeaderSize+len(pcm))

	assert.Equal(t, "RIFF", string(wav[0:4]))
	assert.Equal(t, uint32(36+len(pcm)), binary.LittleEndian.Uint32(wav[4:8]))
	assert.Equal(t, "WAVE", string(wav[8:12]))
	assert.Equal(t, "fmt ", string(wav[12:16]))
	assert.Equal(t, uint16(1), binary.LittleEndian.Uint16(wav[20:22]), "PCM format")
	assert.Equal(t, uint16(1), binary.LittleEndian.Uint16(wav[22:24]), "mono")
	assert.Equal(t, uint32(16000), binary.LittleEndian.Uint32(wav[24:28]), "sample rate")
	assert.Equal(t, uint32(32000), binary.LittleEndian.Uint32(wav[28:32]), "byte rate")
	assert.Equal(t, uint16(16), binary.LittleEndian.Uint16(wav[34:36]), "bits per sample")
	assert.Equal(t, "data", string(wav[36:40]))
	assert.Equal(t, uint32(len(pcm)), binary.LittleEndian.Uint32(wav[40:44]))
}

func TestWrapPCMEmpty(t *testing.T) {
	wav := WrapPCM(nil)
	assert.Len(t, wav, wavHeaderSize)
	assert.Equal(t, uint32(0), binary.LittleEndian.Uint32(wav[40:44]))
}

type stubTranscriber struct {
	text string
	err  error
	got  []byte
}

func (s *stubTranscriber) Transcribe(_ context.Context, wav []byte) (string, error) {
	s.got = wav
	return s.text, s.err
}

func TestApplyTranscript(t *testing.T) {
	d := &Draft{DeviceID: "uplink-010203040506", Audio: []byte{1, 2, 3, 4}, RawPCM: true, Description: "placeholder"}
	st := &stubTranscriber{text: "fire on the east ridge"}

	ApplyTranscript(context.Background(), st, d)
	assert.Equal(t, "fire on the east ridge", d.Description)
	require.NotNil(t, st.got)
	assert.Equal(t, "RIFF", string(st.got[0:4]), "audio is WAV-wrapped before transcription")
}

func TestApplyTranscriptSkips(t *testing.T) {
	st := &stubTranscriber{text: "ignored"}

	// nil transcriber
	d := &Draft{Audio: []byte{1}, RawPCM: true, Description: "keep"}
	ApplyTranscript(context.Background(), nil, d)
	assert.Equal(t, "keep", d.Description)

	// no raw PCM flag
	d = &Draft{Audio: []byte{1}, Description: "keep"}
	ApplyTranscript(context.Background(), st, d)
	assert.Equal(t, "keep", d.Description)

	// no audio
	d = &Draft{RawPCM: true, Description: "keep"}
	ApplyTranscript(context.Background(), st, d)
	assert.Equal(t, "keep", d.Description)
}

func TestApplyTranscriptFailureKeepsDescription(t *testing.T) {
	d := &Draft{Audio: []byte{1, 2}, RawPCM: true, Description: "placeholder"}
	ApplyTranscript(context.Background(), &stubTranscriber{err: assert.AnError}, d)
	assert.Equal(t, "placeholder", d.Description)
	assert.NotNil(t, d.Audio, "audio bytes survive a failed transcription")
}

func TestApplyTranscriptEmptyText(t *testing.T) {
	d := &Draft{Audio: []byte{1, 2}, RawPCM: true, Description: "placeholder"}
	ApplyTranscript(context.Background(), &stubTranscriber{text: ""}, d)
	assert.Equal(t, "placeholder", d.Description)
}
