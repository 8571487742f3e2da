package classify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/quarterly-dev/quarterly/internal/period"
)

const defaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// GeminiClassifier implements the remote Classifier and StructureAnalyzer
// capabilities against the Gemini API.
type GeminiClassifier struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
}

// NewGeminiClassifier creates a Gemini-backed classifier. The HTTP client
// timeout is a backstop; per-attempt deadlines come from the gateway's
// context.
func NewGeminiClassifier(apiKey string) *GeminiClassifier {
	return &GeminiClassifier{
		apiKey:  apiKey,
		baseURL: defaultGeminiBaseURL,
		model:   "gemini-2.0-flash",
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

// WithBaseURL overrides the API base URL, used by tests.
func (c *GeminiClassifier) WithBaseURL(url string) *GeminiClassifier {
	c.baseURL = url
	return c
}

// Classify sends one transaction to Gemini and returns the raw category
// string. Response validation happens in the gateway, not here.
func (c *GeminiClassifier) Classify(ctx context.Context, req Request) (string, error) {
	if c.apiKey == "" {
		return "", &Error{
			Code:    ErrClassifierAuth,
			Message: "Gemini API key not configured",
		}
	}

	vocab := make([]string, len(req.Vocabulary))
	for i, code := range req.Vocabulary {
		vocab[i] = string(code)
	}

	dateStr := ""
	if !req.Row.Date.IsZero() {
		dateStr = req.Row.Date.Format("2006-01-02")
	}

	prompt := fmt.Sprintf(`You are a UK business expense classifier for a %s business filing quarterly updates.

Classify this transaction into exactly one official category code:
%s

Rules:
- Respond with the category code only, no explanation.
- If the transaction is clearly personal (groceries, entertainment, family spending), respond with exactly: PERSONAL
- If you cannot confidently assign a category, respond with exactly: MANUAL_REVIEW

Transaction:
  description: %s
  amount: %s
  date: %s`,
		req.BusinessType, strings.Join(vocab, ", "),
		req.Row.Description, req.Row.Amount.StringFixed(2), dateStr)

	text, err := c.generate(ctx, prompt, false)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

// structureVerdict is the JSON shape Gemini returns for structural analysis.
type structureVerdict struct {
	Shape      string  `json:"shape"`
	Confidence float64 `json:"confidence"`
}

// AnalyzeStructure asks Gemini whether sampled rows look cumulative,
// multi-section, or single-period. Advisory only; the resolver handles
// failure.
func (c *GeminiClassifier) AnalyzeStructure(ctx context.Context, sample []map[string]string, target period.Period) (period.StructureAnalysis, error) {
	if c.apiKey == "" {
		return period.StructureAnalysis{}, &Error{
			Code:    ErrClassifierAuth,
			Message: "Gemini API key not configured",
		}
	}

	sampleJSON, err := json.Marshal(sample)
	if err != nil {
		return period.StructureAnalysis{}, fmt.Errorf("marshal sample rows: %w", err)
	}

	prompt := fmt.Sprintf(`These rows come from a spreadsheet uploaded for the %s quarterly update.

Judge the spreadsheet's shape:
- "direct": the rows cover a single period's transactions
- "cumulative": the figures are running totals across multiple periods
- "multi-section": the sheet contains several period-labelled sections (e.g. "Quarter 1", "Q2")

Return JSON only: {"shape": "direct|cumulative|multi-section", "confidence": 0.0-1.0}

Sample rows:
%s`, target.Label(), string(sampleJSON))

	text, err := c.generate(ctx, prompt, true)
	if err != nil {
		return period.StructureAnalysis{}, err
	}

	var verdict structureVerdict
	if err := json.Unmarshal([]byte(text), &verdict); err != nil {
		return period.StructureAnalysis{}, &Error{
			Code:    ErrClassifierMalformed,
			Message: "parse structure analysis response",
			Cause:   err,
		}
	}
	shape, err := period.ParseShape(verdict.Shape)
	if err != nil {
		return period.StructureAnalysis{}, &Error{
			Code:    ErrClassifierMalformed,
			Message: fmt.Sprintf("unrecognized shape verdict %q", verdict.Shape),
		}
	}
	return period.StructureAnalysis{Shape: shape, Confidence: verdict.Confidence}, nil
}

// generate calls the Gemini generateContent endpoint with a text prompt.
func (c *GeminiClassifier) generate(ctx context.Context, prompt string, jsonMode bool) (string, error) {
	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.baseURL, c.model, c.apiKey)

	generationConfig := map[string]interface{}{
		"temperature":     0.1,
		"maxOutputTokens": 1024,
	}
	if jsonMode {
		generationConfig["responseMimeType"] = "application/json"
	}
	reqBody := map[string]interface{}{
		"contents": []map[string]interface{}{
			{
				"parts": []map[string]interface{}{
					{"text": prompt},
				},
			},
		},
		"generationConfig": generationConfig,
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(bodyBytes))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", &Error{
				Code:      ErrClassifierTimeout,
				Message:   "Gemini API call timed out",
				Retryable: true,
				Cause:     err,
			}
		}
		return "", &Error{
			Code:      ErrClassifierUnavailable,
			Message:   "Gemini API call failed",
			Retryable: true,
			Cause:     err,
		}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", statusError(resp.StatusCode, respBody)
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
		return "", &Error{
			Code:      ErrClassifierMalformed,
			Message:   "parse Gemini response envelope",
			Retryable: true,
			Cause:     err,
		}
	}
	if len(geminiResp.Candidates) == 0 || len(geminiResp.Candidates[0].Content.Parts) == 0 {
		return "", &Error{
			Code:      ErrClassifierMalformed,
			Message:   "empty Gemini response",
			Retryable: true,
		}
	}

	text := geminiResp.Candidates[0].Content.Parts[0].Text
	// Strip markdown code fences if present
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	return strings.TrimSpace(text), nil
}

// statusError maps an HTTP status onto the retry taxonomy. Auth failures,
// quota exhaustion, and a missing model abort immediately; rate limits and
// server errors retry.
func statusError(status int, body []byte) *Error {
	msg := fmt.Sprintf("Gemini API error %d: %s", status, truncate(string(body), 200))
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return &Error{Code: ErrClassifierAuth, Message: msg}
	case status == http.StatusTooManyRequests:
		if strings.Contains(strings.ToLower(string(body)), "quota") {
			return &Error{Code: ErrClassifierQuotaExhausted, Message: msg}
		}
		return &Error{Code: ErrClassifierRateLimited, Message: msg, Retryable: true}
	case status == http.StatusNotFound:
		return &Error{Code: ErrClassifierUnavailable, Message: msg}
	case status >= 500:
		return &Error{Code: ErrClassifierUnavailable, Message: msg, Retryable: true}
	default:
		return &Error{Code: ErrClassifierMalformed, Message: msg}
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
