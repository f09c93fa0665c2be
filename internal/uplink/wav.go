package uplink

import "encoding/binary"

// PCM format constants for device audio: 16-bit mono at 16 kHz.
const (
	pcmSampleRate    = 16000
	pcmBitsPerSample = 16
	pcmChannels      = 1
)

const wavHeaderSize = 44

// WrapPCM wraps raw 16-bit/16kHz mono PCM samples in a minimal WAV container
// so they can be handed to a speech-to-text collaborator.
func WrapPCM(pcm []byte) []byte {
	blockAlign := pcmChannels * pcmBitsPerSample / 8
	byteRate := pcmSampleRate * blockAlign

	buf := make([]byte, wavHeaderSize+len(pcm))
	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(36+len(pcm)))
	copy(buf[8:12], "WAVE")

	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16) // PCM fmt chunk size
	binary.LittleEndian.PutUint16(buf[20:22], 1)  // audio format: PCM
	binary.LittleEndian.PutUint16(buf[22:24], pcmChannels)
	binary.LittleEndian.PutUint32(buf[24:28], pcmSampleRate)
	binary.LittleEndian.PutUint32(buf[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(buf[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(buf[34:36], pcmBitsPerSample)

	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(len(pcm)))
	copy(buf[wavHeaderSize:], pcm)
	return buf
}
