package openaicompat

import (
	"bytes"
	"context"
	"fmt"
	"mime"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// Transcriber turns recorded answers into text via the audio transcriptions endpoint.
type Transcriber struct {
	client openai.Client
	model  string
}

// NewTranscriber creates a transcriber bound to model at baseURL.
func NewTranscriber(apiKey, baseURL, model string, opts ...option.RequestOption) *Transcriber {
	base := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if baseURL != "" {
		base = append(base, option.WithBaseURL(baseURL))
	}
	return &Transcriber{
		client: openai.NewClient(append(base, opts...)...),
		model:  model,
	}
}

// Transcribe uploads audio and returns the recognised text, trimmed.
func (t *Transcriber) Transcribe(ctx context.Context, audio []byte, mimeType string) (string, error) {
	if len(audio) == 0 {
		return "", fmt.Errorf("transcribe: empty audio")
	}
	if mimeType == "" {
		mimeType = "audio/webm"
	}

	resp, err := t.client.Audio.Transcriptions.New(ctx, openai.AudioTranscriptionNewParams{
		File:  openai.File(bytes.NewReader(audio), "audio"+extensionFor(mimeType), mimeType),
		Model: openai.AudioModel(t.model),
	})
	if err != nil {
		return "", fmt.Errorf("transcribe: %w", classifyError(err))
	}
	return strings.TrimSpace(resp.Text), nil
}

func extensionFor(mimeType string) string {
	base, _, err := mime.ParseMediaType(mimeType)
	if err != nil {
		return ".webm"
	}
	switch base {
	case "audio/wav", "audio/x-wav", "audio/wave":
		return ".wav"
	case "audio/mpeg", "audio/mp3":
		return ".mp3"
	case "audio/ogg":
		return ".ogg"
	case "audio/mp4", "audio/m4a", "audio/x-m4a":
		return ".m4a"
	default:
		return ".webm"
	}
}
