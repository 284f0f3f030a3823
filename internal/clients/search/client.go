package search

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/aurelia-labs/companion-backend/internal/logger"
)

// Keywords that mark a prompt as needing fresh, real-world data rather
// than model knowledge.
var realtimeKeywords = []string{
	"weather", "price", "cost", "stock", "temperature", "temp",
	"news", "latest", "current", "how much", "what is the time",
	"capital of",
}

// NeedsRealtimeInfo reports whether the prompt looks like a query about
// live data (weather, prices, news and similar).
func NeedsRealtimeInfo(prompt string) bool {
	lower := strings.ToLower(prompt)
	for _, kw := range realtimeKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// Client looks up answer-box style results for realtime queries.
type Client interface {
	Search(ctx context.Context, query string) (string, error)
}

type client struct {
	log        *logger.Logger
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewClient(log *logger.Logger) (Client, error) {
	apiKey := strings.TrimSpace(os.Getenv("SERPAPI_API_KEY"))
	if apiKey == "" {
		return nil, fmt.Errorf("missing SERPAPI_API_KEY")
	}
	baseURL := strings.TrimSpace(os.Getenv("SERPAPI_BASE_URL"))
	if baseURL == "" {
		baseURL = "https://serpapi.com"
	}
	return &client{
		log:        log.With("client", "SearchClient"),
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}, nil
}

type searchResponse struct {
	AnswerBox struct {
		Answer  string `json:"answer"`
		Snippet string `json:"snippet"`
		Result  string `json:"result"`
	} `json:"answer_box"`
	OrganicResults []struct {
		Title   string `json:"title"`
		Snippet string `json:"snippet"`
	} `json:"organic_results"`
}

// Search returns a short textual summary for the query, preferring the
// answer box and falling back to the top organic snippets.
func (c *client) Search(ctx context.Context, query string) (string, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("api_key", c.apiKey)
	params.Set("engine", "google")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/search.json?"+params.Encode(), nil)
	if err != nil {
		return "", err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("search http %d", resp.StatusCode)
	}

	var out searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode search response: %w", err)
	}

	switch {
	case out.AnswerBox.Answer != "":
		return out.AnswerBox.Answer, nil
	case out.AnswerBox.Result != "":
		return out.AnswerBox.Result, nil
	case out.AnswerBox.Snippet != "":
		return out.AnswerBox.Snippet, nil
	}

	var parts []string
	for i, r := range out.OrganicResults {
		if i >= 3 {
			break
		}
		if r.Snippet != "" {
			parts = append(parts, r.Snippet)
		}
	}
	if len(parts) == 0 {
		return "", fmt.Errorf("no results for query")
	}
	return strings.Join(parts, " "), nil
}
