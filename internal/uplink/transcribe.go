package uplink

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/rs/zerolog/log"
)

// Transcriber converts a WAV-wrapped audio clip into text. Implementations
// are external collaborators; the engine only depends on this interface.
type Transcriber interface {
	Transcribe(ctx context.Context, wav []byte) (string, error)
}

// WhisperTranscriber transcribes device audio through the OpenAI audio API.
type WhisperTranscriber struct {
	client *openai.Client
	model  string
}

// NewWhisperTranscriber builds a transcriber from the environment. It returns
// (nil, nil) when no API key is configured so callers can treat transcription
// as optional.
func NewWhisperTranscriber() (*WhisperTranscriber, error) {
	key := os.Getenv("OPENAI_API_KEY")
	if key == "" {
		return nil, nil
	}
	model := os.Getenv("OPENAI_AUDIO_MODEL")
	if model == "" {
		model = "whisper-1"
	}
	c := openai.NewClient(option.WithAPIKey(key))
	return &WhisperTranscriber{client: &c, model: model}, nil
}

// Transcribe sends the WAV clip to the audio transcription endpoint.
func (t *WhisperTranscriber) Transcribe(ctx context.Context, wav []byte) (string, error) {
	resp, err := t.client.Audio.Transcriptions.New(ctx, openai.AudioTranscriptionNewParams{
		File:  openai.File(bytes.NewReader(wav), "uplink.wav", "audio/wav"),
		Model: openai.AudioModel(t.model),
	})
	if err != nil {
		return "", fmt.Errorf("audio transcription failed: %w", err)
	}
	return strings.TrimSpace(resp.Text), nil
}

// ApplyTranscript runs the draft's audio through the transcriber when the raw
// PCM flag is set and replaces the placeholder description with the returned
// text. Transcription failures are logged, not fatal: the draft still carries
// the audio bytes.
func ApplyTranscript(ctx context.Context, t Transcriber, d *Draft) {
	if t == nil || !d.RawPCM || len(d.Audio) == 0 {
		return
	}
	text, err := t.Transcribe(ctx, WrapPCM(d.Audio))
	if err != nil {
		log.Warn().Err(err).Str("device", d.DeviceID).Msg("Uplink audio transcription failed")
		return
	}
	if text != "" {
		d.Description = text
	}
}
