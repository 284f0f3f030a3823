package gemini

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/aurelia-labs/companion-backend/internal/logger"
)

// ErrMissingAPIKey is returned by NewClient when no key is configured.
// Callers surface it as a turn-level error instead of crashing startup.
var ErrMissingAPIKey = errors.New("missing GEMINI_API_KEY")

// Turn is one prior exchange entry used to seed a chat session.
type Turn struct {
	Role string // "user" or "model"
	Text string
}

// GenerateRequest is a single streamed generation call. ImageData, when
// set, is attached inline alongside the prompt text.
type GenerateRequest struct {
	History   []Turn
	Prompt    string
	ImageMIME string
	ImageData []byte
}

type Client interface {
	// StreamGenerate streams text fragments via onDelta and returns the
	// accumulated reply.
	StreamGenerate(ctx context.Context, req GenerateRequest, onDelta func(delta string)) (string, error)

	// GenerateText is the non-streaming variant used for short one-shot
	// calls such as conversation titling.
	GenerateText(ctx context.Context, prompt string) (string, error)
}

type client struct {
	log        *logger.Logger
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
	maxRetries int
}

func NewClient(log *logger.Logger) (Client, error) {
	apiKey := strings.TrimSpace(os.Getenv("GEMINI_API_KEY"))
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}

	baseURL := strings.TrimSpace(os.Getenv("GEMINI_BASE_URL"))
	if baseURL == "" {
		baseURL = "https://generativelanguage.googleapis.com"
	}
	baseURL = strings.TrimRight(baseURL, "/")

	model := strings.TrimSpace(os.Getenv("GEMINI_MODEL"))
	if model == "" {
		model = "gemini-2.0-flash"
	}

	return &client{
		log:        log.With("client", "GeminiClient"),
		baseURL:    baseURL,
		apiKey:     apiKey,
		model:      model,
		httpClient: &http.Client{Timeout: 120 * time.Second},
		maxRetries: 3,
	}, nil
}

type generateContentRequest struct {
	Contents []content `json:"contents"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inline_data,omitempty"`
}

type inlineData struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

type generateContentResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (c *client) buildContents(req GenerateRequest) []content {
	contents := make([]content, 0, len(req.History)+1)
	for _, t := range req.History {
		role := t.Role
		if role != "model" {
			role = "user"
		}
		contents = append(contents, content{Role: role, Parts: []part{{Text: t.Text}}})
	}
	final := content{Role: "user", Parts: []part{{Text: req.Prompt}}}
	if len(req.ImageData) > 0 {
		mime := req.ImageMIME
		if mime == "" {
			mime = "image/jpeg"
		}
		final.Parts = append(final.Parts, part{InlineData: &inlineData{
			MimeType: mime,
			Data:     base64.StdEncoding.EncodeToString(req.ImageData),
		}})
	}
	return append(contents, final)
}

func (c *client) StreamGenerate(ctx context.Context, req GenerateRequest, onDelta func(delta string)) (string, error) {
	body := generateContentRequest{Contents: c.buildContents(req)}

	doStream := func() (*http.Response, error) {
		var buf bytes.Buffer
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return nil, err
		}
		endpoint := fmt.Sprintf("%s/v1beta/models/%s:streamGenerateContent?alt=sse", c.baseURL, c.model)
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &buf)
		if err != nil {
			return nil, err
		}
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("Accept", "text/event-stream")
		httpReq.Header.Set("x-goog-api-key", c.apiKey)

		resp, err := c.httpClient.Do(httpReq)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			raw, _ := io.ReadAll(resp.Body)
			_ = resp.Body.Close()
			return nil, &httpError{StatusCode: resp.StatusCode, Body: string(raw)}
		}
		return resp, nil
	}

	resp, err := c.withRetries(ctx, doStream)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var full strings.Builder
	err = streamSSE(resp.Body, func(_ string, data string) error {
		data = strings.TrimSpace(data)
		if data == "" || data == "[DONE]" {
			return nil
		}
		var chunk generateContentResponse
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			return nil
		}
		if chunk.Error != nil {
			return fmt.Errorf("gemini stream error %d: %s", chunk.Error.Code, chunk.Error.Message)
		}
		for _, cand := range chunk.Candidates {
			for _, p := range cand.Content.Parts {
				if p.Text == "" {
					continue
				}
				full.WriteString(p.Text)
				if onDelta != nil {
					onDelta(p.Text)
				}
			}
		}
		return nil
	})
	if err != nil {
		return full.String(), err
	}
	return full.String(), nil
}

func (c *client) GenerateText(ctx context.Context, prompt string) (string, error) {
	body := generateContentRequest{
		Contents: []content{{Role: "user", Parts: []part{{Text: prompt}}}},
	}

	do := func() (*http.Response, error) {
		var buf bytes.Buffer
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return nil, err
		}
		endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent", c.baseURL, c.model)
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &buf)
		if err != nil {
			return nil, err
		}
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("x-goog-api-key", c.apiKey)

		resp, err := c.httpClient.Do(httpReq)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			raw, _ := io.ReadAll(resp.Body)
			_ = resp.Body.Close()
			return nil, &httpError{StatusCode: resp.StatusCode, Body: string(raw)}
		}
		return resp, nil
	}

	resp, err := c.withRetries(ctx, do)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var out generateContentResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode gemini response: %w", err)
	}
	if out.Error != nil {
		return "", fmt.Errorf("gemini error %d: %s", out.Error.Code, out.Error.Message)
	}
	var full strings.Builder
	for _, cand := range out.Candidates {
		for _, p := range cand.Content.Parts {
			full.WriteString(p.Text)
		}
	}
	return strings.TrimSpace(full.String()), nil
}

func (c *client) withRetries(ctx context.Context, do func() (*http.Response, error)) (*http.Response, error) {
	backoff := 1 * time.Second
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			c.log.Warn("Retrying Gemini request", "attempt", attempt, "error", lastErr)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(jitter(backoff)):
			}
			backoff *= 2
			if backoff > 10*time.Second {
				backoff = 10 * time.Second
			}
		}
		resp, err := do()
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if !isRetryable(err) {
			return nil, err
		}
	}
	return nil, lastErr
}

type httpError struct {
	StatusCode int
	Body       string
}

func (e *httpError) Error() string {
	return fmt.Sprintf("gemini http %d: %s", e.StatusCode, e.Body)
}

func isRetryable(err error) bool {
	var he *httpError
	if errors.As(err, &he) {
		switch {
		case he.StatusCode == http.StatusRequestTimeout,
			he.StatusCode == http.StatusTooManyRequests,
			he.StatusCode >= 500:
			return true
		default:
			return false
		}
	}
	// Transport-level errors (resets, timeouts) are worth a retry.
	return true
}

func jitter(d time.Duration) time.Duration {
	// +-20%
	delta := time.Duration(rand.Int63n(int64(d) / 5))
	if rand.Intn(2) == 0 {
		return d - delta
	}
	return d + delta
}
