package asr

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

const (
	// DefaultQwenURL is the multimodal generation endpoint used for batch
	// recognition.
	DefaultQwenURL = "https://dashscope.aliyuncs.com/api/v1/services/aigc/multimodal-generation/generation"
	// DefaultQwenModel is the batch recognition model.
	DefaultQwenModel = "qwen3-asr-flash"
)

// QwenClient is the primary batch backend: audio travels inline as a base64
// data URI inside a chat-style message.
type QwenClient struct {
	APIKey string
	URL    string
	Model  string

	httpClient *http.Client
}

// NewQwenClient returns a client against the default endpoint.
func NewQwenClient(apiKey string) *QwenClient {
	return &QwenClient{
		APIKey:     apiKey,
		URL:        DefaultQwenURL,
		Model:      DefaultQwenModel,
		httpClient: newHTTPClient(),
	}
}

func (c *QwenClient) Name() string { return "qwen" }

type qwenRequest struct {
	Model      string         `json:"model"`
	Input      qwenInput      `json:"input"`
	Parameters qwenParameters `json:"parameters"`
}

type qwenInput struct {
	Messages []qwenMessage `json:"messages"`
}

type qwenMessage struct {
	Role    string        `json:"role"`
	Content []qwenContent `json:"content"`
}

type qwenContent struct {
	Text  *string `json:"text,omitempty"`
	Audio string  `json:"audio,omitempty"`
}

type qwenResponse struct {
	Output struct {
		Choices []struct {
			Message struct {
				Content []struct {
					Text string `json:"text"`
				} `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	} `json:"output"`
}

// Transcribe performs a single request with no retries, for use inside the
// fallback race.
func (c *QwenClient) Transcribe(ctx context.Context, wav []byte) (string, error) {
	empty := ""
	reqBody := qwenRequest{
		Model: c.Model,
		Input: qwenInput{
			Messages: []qwenMessage{
				{Role: "system", Content: []qwenContent{{Text: &empty}}},
				{Role: "user", Content: []qwenContent{{
					Audio: "data:audio/wav;base64," + base64.StdEncoding.EncodeToString(wav),
				}}},
			},
		},
		Parameters: qwenParameters{ResultFormat: "message", EnableITN: true},
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("asr: encoding qwen request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("asr: building qwen request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("asr: qwen request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("asr: reading qwen response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", &APIError{Backend: c.Name(), Status: resp.StatusCode, Body: string(body)}
	}

	var parsed qwenResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("asr: decoding qwen response: %w", err)
	}
	if len(parsed.Output.Choices) == 0 || len(parsed.Output.Choices[0].Message.Content) == 0 {
		return "", fmt.Errorf("asr: qwen response has no transcript: %s", body)
	}

	text := trimTrailingPunctuation(parsed.Output.Choices[0].Message.Content[0].Text)
	slog.Info("qwen transcription complete", "chars", len(text))
	return text, nil
}

type qwenParameters struct {
	ResultFormat string `json:"result_format"`
	EnableITN    bool   `json:"enable_itn"`
}

// TranscribeWithRetry runs up to retryAttempts requests separated by the
// fixed backoff. Each failure is logged and superseded by the next attempt;
// only the last attempt's error is surfaced.
func (c *QwenClient) TranscribeWithRetry(ctx context.Context, wav []byte) (string, error) {
	var lastErr error
	for attempt := 0; attempt < retryAttempts; attempt++ {
		if attempt > 0 {
			slog.Warn("retrying qwen transcription", "attempt", attempt+1)
			select {
			case <-time.After(retryBackoff):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}
		text, err := c.Transcribe(ctx, wav)
		if err == nil {
			return text, nil
		}
		slog.Error("qwen transcription attempt failed",
			"attempt", attempt+1, "of", retryAttempts, "error", err)
		lastErr = err
	}
	return "", lastErr
}
