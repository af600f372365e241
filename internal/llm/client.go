package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/kapu/llm-chess-arena/internal/obslog"
)

// HeaderProvider allows injecting per-request headers (auth, org IDs).
type HeaderProvider func() map[string]string

// Client calls an OpenAI-compatible chat-completions endpoint. One attempt
// per Complete call; the caller owns the retry discipline.
type Client struct {
	provider string
	baseURL  string
	model    string
	apiKey   string
	temp     float64

	http    *fasthttp.Client
	headers HeaderProvider

	defaultTimeout time.Duration
}

type Option func(*Client)

func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.defaultTimeout = d }
}

func WithMaxConnsPerHost(n int) Option {
	return func(c *Client) { c.http.MaxConnsPerHost = n }
}

func WithHeaderProvider(h HeaderProvider) Option {
	return func(c *Client) { c.headers = h }
}

func WithTemperature(t float64) Option {
	return func(c *Client) { c.temp = t }
}

func NewClient(provider, baseURL, model, apiKey string, opts ...Option) *Client {
	c := &Client{
		provider:       strings.TrimSpace(provider),
		baseURL:        strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		model:          strings.TrimSpace(model),
		apiKey:         strings.TrimSpace(apiKey),
		temp:           0.2,
		http:           &fasthttp.Client{ReadTimeout: 60 * time.Second, WriteTimeout: 30 * time.Second, MaxConnsPerHost: 16},
		defaultTimeout: 60 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Provider() string { return c.provider }
func (c *Client) Model() string    { return c.model }

// Complete sends the prompt with a JSON response format and parses the
// assistant message into a MoveReply.
func (c *Client) Complete(ctx context.Context, prompt string) (*MoveReply, error) {
	if c == nil || c.baseURL == "" || c.model == "" {
		return nil, fmt.Errorf("llm client not configured")
	}

	payload := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: "You are a chess engine. Reply with a single JSON object and nothing else."},
			{Role: "user", Content: prompt},
		},
		Temperature:    c.temp,
		ResponseFormat: &responseFormat{Type: "json_object"},
	}

	var out chatResponse
	start := time.Now()
	if err := c.doJSON(ctx, c.baseURL+"/chat/completions", payload, &out); err != nil {
		return nil, err
	}
	if out.Error != nil {
		return nil, fmt.Errorf("provider error: %s", out.Error.Message)
	}
	if len(out.Choices) == 0 {
		return nil, transient(fmt.Errorf("provider returned no choices"))
	}

	content := stripCodeFence(out.Choices[0].Message.Content)
	var reply MoveReply
	if err := json.Unmarshal([]byte(content), &reply); err != nil {
		return nil, fmt.Errorf("decode move reply: %w", err)
	}

	obslog.L().Debug("llm_complete",
		zap.String("provider", c.provider),
		zap.String("model", c.model),
		zap.Duration("latency", time.Since(start)),
		zap.String("origin", reply.Origin),
		zap.String("destination", reply.Destination),
	)
	return &reply, nil
}

func (c *Client) doJSON(ctx context.Context, url string, in any, out any) error {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer func() {
		fasthttp.ReleaseRequest(req)
		fasthttp.ReleaseResponse(resp)
	}()

	req.Header.SetMethod(fasthttp.MethodPost)
	req.SetRequestURI(url)
	req.Header.SetContentType("application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	if c.headers != nil {
		for k, v := range c.headers() {
			if strings.TrimSpace(k) != "" && strings.TrimSpace(v) != "" {
				req.Header.Set(k, v)
			}
		}
	}

	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	req.SetBody(body)

	if err := c.http.DoDeadline(req, resp, c.computeDeadline(ctx)); err != nil {
		return transient(fmt.Errorf("provider request failed: %w", err))
	}

	status := resp.StatusCode()
	if status < 200 || status >= 300 {
		err := fmt.Errorf("provider api error: status=%d body=%s", status, truncate(string(resp.Body()), 512))
		if transientStatus(status) {
			return transient(err)
		}
		return err
	}

	if out != nil {
		if err := json.Unmarshal(resp.Body(), out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

func (c *Client) computeDeadline(ctx context.Context) time.Time {
	clientDL := time.Now().Add(c.defaultTimeout)
	if dl, ok := ctx.Deadline(); ok && dl.Before(clientDL) {
		return dl
	}
	return clientDL
}

func transientStatus(code int) bool {
	switch code {
	case 408, 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}

// stripCodeFence tolerates models that wrap the JSON object in a markdown
// fence despite the response format instruction.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
