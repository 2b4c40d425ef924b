// Package advisor generates narrative financial advice by sending computed
// analysis results to the Gemini API. The engines never depend on it; it
// consumes their outputs as a prompt-in/text-out black box.
package advisor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pesowise/backend/internal/analysis"
)

const defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// Client calls the Gemini generateContent endpoint.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a Gemini-backed advisor client.
func NewClient(apiKey string) *Client {
	return &Client{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

// WithBaseURL overrides the API base URL. Used by tests.
func (c *Client) WithBaseURL(baseURL string) *Client {
	c.baseURL = strings.TrimRight(baseURL, "/")
	return c
}

// Configured reports whether an API key is present.
func (c *Client) Configured() bool {
	return c.apiKey != ""
}

// AdviceInput carries the engine outputs the prompt is built from.
type AdviceInput struct {
	CreditScore  int                    `json:"creditScore"`
	CreditRating string                 `json:"creditRating"`
	Factors      analysis.CreditFactors `json:"factors"`
	Insights     analysis.InsightResult `json:"insights"`
}

// GenerateAdvice sends the computed metrics to Gemini and returns its
// narrative response.
func (c *Client) GenerateAdvice(ctx context.Context, input AdviceInput) (string, error) {
	if c.apiKey == "" {
		return "", &Error{Code: ErrNotConfigured, Message: "Gemini API key not configured"}
	}

	metrics, err := json.Marshal(input)
	if err != nil {
		return "", fmt.Errorf("marshal metrics: %w", err)
	}

	prompt := fmt.Sprintf(`You are a personal finance coach. The following JSON contains a user's
computed financial metrics: an alternative credit score with factor
breakdowns, spending insights, savings rate, and emergency fund coverage.

Write a short, encouraging summary (3-5 sentences) of their financial
position and the single most impactful next step. Plain text only, no
markdown, no headings. Do not repeat raw numbers the user already sees;
interpret them.

Metrics:
%s`, string(metrics))

	return c.callGemini(ctx, prompt)
}

// callGemini calls the Gemini API with a text prompt and returns the first
// candidate's text.
func (c *Client) callGemini(ctx context.Context, prompt string) (string, error) {
	url := fmt.Sprintf("%s/models/gemini-2.0-flash:generateContent?key=%s", c.baseURL, c.apiKey)

	reqBody := map[string]interface{}{
		"contents": []map[string]interface{}{
			{
				"parts": []map[string]interface{}{
					{"text": prompt},
				},
			},
		},
		"generationConfig": map[string]interface{}{
			"temperature":     0.4,
			"maxOutputTokens": 1024,
		},
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bodyBytes))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &Error{Code: ErrUnavailable, Message: "Gemini API call failed", Retryable: true, Cause: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return "", &Error{Code: ErrRateLimited, Message: "Gemini API rate limited", Retryable: true}
	}
	if resp.StatusCode != http.StatusOK {
		return "", &Error{
			Code:    ErrUnavailable,
			Message: fmt.Sprintf("Gemini API error %d: %s", resp.StatusCode, string(respBody)),
		}
	}

	var geminiResp struct {
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"content"`
		} `json:"candidates"`
	}
	if err := json.Unmarshal(respBody, &geminiResp); err != nil {
		return "", fmt.Errorf("parse Gemini response: %w", err)
	}

	if len(geminiResp.Candidates) == 0 || len(geminiResp.Candidates[0].Content.Parts) == 0 {
		return "", &Error{Code: ErrEmptyResponse, Message: "empty Gemini response"}
	}

	return strings.TrimSpace(geminiResp.Candidates[0].Content.Parts[0].Text), nil
}
