// Package tools holds the LLM-callable tools and their supporting fetchers.
package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultSearchURL = "https://api.tavily.com/search"

// SearchTool searches the web through a Tavily-compatible API.
//
// Execute never returns a non-nil error: a missing key, a bad status, an
// empty result set and a network failure all degrade to descriptive text so
// the model turn continues.
type SearchTool struct {
	apiKey     string
	baseURL    string
	maxResults int
	httpClient *http.Client
}

// NewSearchTool creates a SearchTool. baseURL defaults to the Tavily
// endpoint; maxResults defaults to 5.
func NewSearchTool(apiKey, baseURL string, maxResults int) *SearchTool {
	if baseURL == "" {
		baseURL = defaultSearchURL
	}
	if maxResults <= 0 {
		maxResults = 5
	}
	return &SearchTool{
		apiKey:     apiKey,
		baseURL:    baseURL,
		maxResults: maxResults,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

func (t *SearchTool) Name() string { return "web_search" }

func (t *SearchTool) Description() string {
	return "Search the web for current or time-sensitive information. Returns titles, URLs, and snippets."
}

func (t *SearchTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"query": {
				"type": "string",
				"description": "Search query"
			}
		},
		"required": ["query"]
	}`)
}

// Execute implements schema.Tool.
func (t *SearchTool) Execute(ctx context.Context, params map[string]any) (string, error) {
	query, _ := params["query"].(string)
	return t.Search(ctx, query), nil
}

// Search runs one search request and formats the results as plain text.
func (t *SearchTool) Search(ctx context.Context, query string) string {
	if t.apiKey == "" {
		return "Error: search API key not configured"
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return "Error: query is required"
	}

	body, _ := json.Marshal(map[string]any{
		"query":          query,
		"search_depth":   "basic",
		"max_results":    t.maxResults,
		"include_answer": true,
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Sprintf("Error: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+t.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return fmt.Sprintf("Error: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Sprintf("Error: search API returned status %d: %s",
			resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var data struct {
		Answer  string `json:"answer"`
		Results []struct {
			Title   string `json:"title"`
			URL     string `json:"url"`
			Content string `json:"content"`
		} `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return fmt.Sprintf("Error parsing response: %v", err)
	}

	if len(data.Results) == 0 {
		return fmt.Sprintf("No results for: %s", query)
	}

	var sb strings.Builder
	if data.Answer != "" {
		sb.WriteString(data.Answer + "\n\n")
	}
	sb.WriteString(fmt.Sprintf("Results for: %s\n\n", query))
	for i, item := range data.Results {
		if i >= t.maxResults {
			break
		}
		sb.WriteString(fmt.Sprintf("%d. %s\n   %s", i+1, item.Title, item.URL))
		if item.Content != "" {
			sb.WriteString("\n   " + item.Content)
		}
		sb.WriteString("\n")
	}
	return sb.String()
}
