package audio

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"

	"voxrag/internal/openaicompat"
)

// ChunkTranscriber transcribes one WAV file.
type ChunkTranscriber interface {
	TranscribeWAV(ctx context.Context, wav []byte) (string, error)
}

// Transcriber splits long recordings into ChunkSeconds pieces and joins the
// chunk transcripts with single spaces, in order.
type Transcriber struct {
	backend ChunkTranscriber
}

func NewTranscriber(backend ChunkTranscriber) *Transcriber {
	return &Transcriber{backend: backend}
}

func (t *Transcriber) Transcribe(ctx context.Context, samples []float32, sampleRate int) (string, error) {
	if sampleRate <= 0 {
		sampleRate = SampleRate
	}
	var parts []string
	for i, chunk := range Chunk(samples, sampleRate*ChunkSeconds) {
		text, err := t.backend.TranscribeWAV(ctx, EncodeWAV(chunk, sampleRate))
		if err != nil {
			return "", fmt.Errorf("transcribe chunk %d: %w", i, err)
		}
		if text = strings.TrimSpace(text); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, " "), nil
}

// WhisperConfig configures the speech-to-text endpoint.
type WhisperConfig struct {
	BaseURL   string
	APIKeyEnv string
	Model     string
	Language  string
}

// WhisperClient calls an OpenAI-compatible /audio/transcriptions endpoint.
type WhisperClient struct {
	client   *openai.Client
	model    string
	language string
}

func NewWhisperClient(cfg WhisperConfig) (*WhisperClient, error) {
	oc, err := openaicompat.NewClient(openaicompat.Config{BaseURL: cfg.BaseURL, APIKeyEnv: cfg.APIKeyEnv})
	if err != nil {
		return nil, err
	}
	model := cfg.Model
	if model == "" {
		model = openai.Whisper1
	}
	return &WhisperClient{client: oc, model: model, language: cfg.Language}, nil
}

func (w *WhisperClient) TranscribeWAV(ctx context.Context, wav []byte) (string, error) {
	resp, err := w.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    w.model,
		FilePath: "speech.wav",
		Reader:   bytes.NewReader(wav),
		Language: w.language,
	})
	if err != nil {
		return "", err
	}
	return resp.Text, nil
}
