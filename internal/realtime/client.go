package realtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// DefaultURL is the streaming recognition endpoint.
	DefaultURL = "wss://dashscope.aliyuncs.com/api-ws/v1/realtime"
	// DefaultModel is the streaming recognition model.
	DefaultModel = "qwen3-asr-flash-realtime"
	// DefaultLanguage is the recognition language hint.
	DefaultLanguage = "zh"

	connectTimeout = 5 * time.Second
)

// ErrAuth means the backend rejected the credentials during the handshake.
var ErrAuth = errors.New("realtime: credentials rejected")

// Client opens streaming transcription sessions.
type Client struct {
	APIKey   string
	URL      string
	Model    string
	Language string

	// resultTimeout overrides the WaitForResult window; zero means the
	// default. Settable by tests.
	resultTimeout time.Duration
}

// NewClient returns a Client against the default endpoint.
func NewClient(apiKey string) *Client {
	return &Client{
		APIKey:   apiKey,
		URL:      DefaultURL,
		Model:    DefaultModel,
		Language: DefaultLanguage,
	}
}

// StartSession opens the duplex connection and configures it for manual
// commit before returning. The returned session is ready to receive audio.
func (c *Client) StartSession(ctx context.Context) (*Session, error) {
	url := c.URL
	if c.Model != "" {
		url += "?model=" + c.Model
	}

	header := http.Header{}
	header.Set("Authorization", "Bearer "+c.APIKey)
	header.Set("OpenAI-Beta", "realtime=v1")

	dialer := &websocket.Dialer{HandshakeTimeout: connectTimeout}
	conn, resp, err := dialer.DialContext(ctx, url, header)
	if err != nil {
		if resp != nil && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
			return nil, fmt.Errorf("%w (status %d)", ErrAuth, resp.StatusCode)
		}
		return nil, fmt.Errorf("realtime: connect: %w", err)
	}

	language := c.Language
	if language == "" {
		language = DefaultLanguage
	}
	if err := conn.WriteJSON(sessionUpdateEvent(language)); err != nil {
		conn.Close()
		return nil, fmt.Errorf("realtime: sending session.update: %w", err)
	}

	slog.Info("realtime session started", "model", c.Model, "language", language)
	return newSession(conn, c.resultTimeout), nil
}
