package realtime

import (
	"context"
	"net/http"
)

// DefaultURL is the default websocket endpoint.
const DefaultURL = "wss://api.openai.com/v1/realtime"

// Client dials realtime sessions against one engine account.
type Client struct {
	config *clientConfig
}

type clientConfig struct {
	apiKey     string
	url        string
	httpClient *http.Client
}

// Option configures the Client.
type Option func(*clientConfig)

// NewClient creates a realtime client. The API key may be empty here;
// Connect fails with ErrMissingAPIKey in that case, which callers treat as
// fatal to call setup.
func NewClient(apiKey string, opts ...Option) *Client {
	cfg := &clientConfig{
		apiKey:     apiKey,
		url:        DefaultURL,
		httpClient: http.DefaultClient,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return &Client{config: cfg}
}

// WithURL sets the websocket endpoint.
func WithURL(url string) Option {
	return func(c *clientConfig) {
		c.url = url
	}
}

// WithHTTPClient sets a custom HTTP client for the handshake.
func WithHTTPClient(client *http.Client) Option {
	return func(c *clientConfig) {
		c.httpClient = client
	}
}

// Connect establishes a websocket session with the engine.
func (c *Client) Connect(ctx context.Context, config *ConnectConfig) (*Session, error) {
	return c.connect(ctx, config)
}
