// Package postprocess polishes raw transcripts through an OpenAI-compatible
// chat completion endpoint before they are inserted: filler words and
// repeated sentences go, numbers and key information stay.
package postprocess

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"
)

const (
	// DefaultURL is the chat completion endpoint used for polishing.
	DefaultURL = "https://open.bigmodel.cn/api/paas/v4/chat/completions"
	// DefaultModel is the polishing model.
	DefaultModel = "glm-4-flash-250414"
	// DefaultSystemPrompt instructs the model to clean the transcript
	// without changing its meaning.
	DefaultSystemPrompt = "你是一个语音转写润色助手。请在不改变原意的前提下：1）删除重复或意义相近的句子；2）合并同一主题的内容；3）去除「嗯」「啊」等口头禅；4）保留数字与关键信息；5）相关数字和时间不要使用中文；6）整理成自然的段落。输出纯文本即可。"

	// Polishing is a whole-paragraph rewrite, so it gets a longer request
	// window than the transcription backends.
	requestTimeout = 15 * time.Second
	connectTimeout = 5 * time.Second

	maxTokens   = 1024
	temperature = 0.3
)

// APIError is a non-success response from the completion endpoint.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("postprocess: request failed (%d): %s", e.Status, e.Body)
}

// Processor sends transcripts to the completion endpoint for polishing.
type Processor struct {
	APIKey       string
	URL          string
	Model        string
	SystemPrompt string

	httpClient *http.Client
}

// NewProcessor returns a Processor against the default endpoint with the
// default polishing prompt.
func NewProcessor(apiKey string) *Processor {
	return &Processor{
		APIKey:       apiKey,
		URL:          DefaultURL,
		Model:        DefaultModel,
		SystemPrompt: DefaultSystemPrompt,
		httpClient: &http.Client{
			Timeout: requestTimeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{Timeout: connectTimeout}).DialContext,
			},
		},
	}
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Polish rewrites a raw transcript. A blank transcript short-circuits to an
// empty result without a request.
func (p *Processor) Polish(ctx context.Context, raw string) (string, error) {
	if strings.TrimSpace(raw) == "" {
		return "", nil
	}

	prompt := p.SystemPrompt
	if prompt == "" {
		prompt = DefaultSystemPrompt
	}
	reqBody := chatRequest{
		Model: p.Model,
		Messages: []chatMessage{
			{Role: "system", Content: prompt},
			{Role: "user", Content: "<ASR转写的文本>\n" + raw + "\n</ASR转写的文本>"},
		},
		MaxTokens:   maxTokens,
		Temperature: temperature,
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("postprocess: encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.URL, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("postprocess: building request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("postprocess: request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("postprocess: reading response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", &APIError{Status: resp.StatusCode, Body: string(body)}
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("postprocess: decoding response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("postprocess: response has no completion: %s", body)
	}

	polished := strings.TrimSpace(parsed.Choices[0].Message.Content)
	slog.Info("transcript polished", "raw_chars", len(raw), "polished_chars", len(polished))
	return polished, nil
}
