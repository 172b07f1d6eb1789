package asr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
)

const (
	// DefaultSenseVoiceURL is the secondary backend's transcription endpoint.
	DefaultSenseVoiceURL = "https://api.siliconflow.cn/v1/audio/transcriptions"
	// DefaultSenseVoiceModel is the secondary recognition model.
	DefaultSenseVoiceModel = "FunAudioLLM/SenseVoiceSmall"
)

// SenseVoiceClient is the secondary batch backend: a multipart form upload
// with the recording attached as a file.
type SenseVoiceClient struct {
	APIKey string
	URL    string
	Model  string

	httpClient *http.Client
}

// NewSenseVoiceClient returns a client against the default endpoint.
func NewSenseVoiceClient(apiKey string) *SenseVoiceClient {
	return &SenseVoiceClient{
		APIKey:     apiKey,
		URL:        DefaultSenseVoiceURL,
		Model:      DefaultSenseVoiceModel,
		httpClient: newHTTPClient(),
	}
}

func (c *SenseVoiceClient) Name() string { return "sensevoice" }

// Transcribe performs a single request with no retries.
func (c *SenseVoiceClient) Transcribe(ctx context.Context, wav []byte) (string, error) {
	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	if err := form.WriteField("model", c.Model); err != nil {
		return "", fmt.Errorf("asr: building form: %w", err)
	}
	part, err := form.CreateFormFile("file", "audio.wav")
	if err != nil {
		return "", fmt.Errorf("asr: building form file: %w", err)
	}
	if _, err := part.Write(wav); err != nil {
		return "", fmt.Errorf("asr: writing form file: %w", err)
	}
	if err := form.Close(); err != nil {
		return "", fmt.Errorf("asr: closing form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL, &buf)
	if err != nil {
		return "", fmt.Errorf("asr: building sensevoice request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.APIKey)
	req.Header.Set("Content-Type", form.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("asr: sensevoice request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("asr: reading sensevoice response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", &APIError{Backend: c.Name(), Status: resp.StatusCode, Body: string(body)}
	}

	var parsed struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("asr: decoding sensevoice response: %w", err)
	}

	text := trimTrailingPunctuation(parsed.Text)
	slog.Info("sensevoice transcription complete", "chars", len(text))
	return text, nil
}
