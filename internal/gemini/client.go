package gemini

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/digkill/ValuationAPI/internal/config"
	"github.com/digkill/ValuationAPI/internal/models"
)

type Client struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
	log        *slog.Logger
}

// APIError is a non-2xx answer from the generateContent endpoint.
type APIError struct {
	StatusCode int
	Status     string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("gemini error: status=%d %s: %s", e.StatusCode, e.Status, e.Message)
}

func NewClient(cfg config.Config, log *slog.Logger) *Client {
	timeout := cfg.ProviderTimeout
	if timeout <= 0 {
		timeout = 90 * time.Second
	}
	model := cfg.GeminiModel
	if model == "" {
		model = "gemini-2.5-flash"
	}
	return &Client{
		apiKey:  cfg.GeminiAPIKey,
		baseURL: strings.TrimRight(cfg.GeminiBaseURL, "/"),
		model:   model,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		log: log,
	}
}

type inlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inlineData,omitempty"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type generateRequest struct {
	Contents         []content        `json:"contents"`
	Tools            []map[string]any `json:"tools,omitempty"`
	GenerationConfig map[string]any   `json:"generationConfig,omitempty"`
}

type generateResponse struct {
	Candidates []struct {
		Content           content `json:"content"`
		FinishReason      string  `json:"finishReason"`
		GroundingMetadata *struct {
			GroundingChunks []struct {
				Web *struct {
					URI   string `json:"uri"`
					Title string `json:"title"`
				} `json:"web"`
			} `json:"groundingChunks"`
		} `json:"groundingMetadata"`
	} `json:"candidates"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
}

// Valuate asks the model for a structured valuation of the photos. With an address
// the request is grounded on Google Search and the JSON is recovered from free text.
func (c *Client) Valuate(ctx context.Context, images []models.Image, details models.PropertyDetails) (*models.Valuation, error) {
	parts := make([]part, 0, len(images)+1)
	for _, img := range images {
		mime := img.MimeType
		if mime == "" {
			mime = "image/jpeg"
		}
		parts = append(parts, part{InlineData: &inlineData{MimeType: mime, Data: base64.StdEncoding.EncodeToString(img.Data)}})
	}
	parts = append(parts, part{Text: valuationPrompt(details)})

	grounded := strings.TrimSpace(details.Address) != ""
	req := generateRequest{Contents: []content{{Role: "user", Parts: parts}}}
	if grounded {
		req.Tools = []map[string]any{{"googleSearch": map[string]any{}}}
	} else {
		req.GenerationConfig = map[string]any{
			"responseMimeType": "application/json",
			"responseSchema":   valuationSchema,
		}
	}

	resp, err := c.generate(ctx, req)
	if err != nil {
		return nil, err
	}
	text, err := responseText(resp)
	if err != nil {
		return nil, err
	}

	var valuation models.Valuation
	if err := json.Unmarshal([]byte(extractJSON(text)), &valuation); err != nil {
		if c.log != nil {
			c.log.Warn("gemini returned undecodable valuation", "err", err, "body", truncateBody([]byte(text)))
		}
		return nil, fmt.Errorf("%w: %v", models.ErrMalformedValuation, err)
	}
	if grounded {
		valuation.Sources = groundingSources(resp)
	}
	return &valuation, nil
}

// DetailedReport turns a stored valuation into a client-facing markdown narrative.
func (c *Client) DetailedReport(ctx context.Context, report *models.Report) (string, error) {
	req := generateRequest{Contents: []content{{Role: "user", Parts: []part{{Text: detailedReportPrompt(report)}}}}}
	resp, err := c.generate(ctx, req)
	if err != nil {
		return "", err
	}
	text, err := responseText(resp)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

func (c *Client) generate(ctx context.Context, payload generateRequest) (*generateResponse, error) {
	baseURL, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base URL: %w", err)
	}
	endpoint, err := url.Parse("/v1beta/models/" + url.PathEscape(c.model) + ":generateContent")
	if err != nil {
		return nil, fmt.Errorf("parse endpoint: %w", err)
	}
	fullURL := baseURL.ResolveReference(endpoint).String()

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, fullURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("x-goog-api-key", c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	started := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("post gemini: %w", err)
	}
	defer resp.Body.Close()

	rawBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Message: truncateBody(rawBody)}
		var envelope struct {
			Error struct {
				Message string `json:"message"`
				Status  string `json:"status"`
			} `json:"error"`
		}
		if json.Unmarshal(rawBody, &envelope) == nil && envelope.Error.Message != "" {
			apiErr.Message = envelope.Error.Message
			apiErr.Status = envelope.Error.Status
		}
		if c.log != nil {
			c.log.Error("gemini request failed", "status", resp.StatusCode, "model", c.model, "body", truncateBody(rawBody))
		}
		return nil, apiErr
	}

	var parsed generateResponse
	if err := json.Unmarshal(rawBody, &parsed); err != nil {
		return nil, fmt.Errorf("%w: decode envelope: %v", models.ErrMalformedValuation, err)
	}
	if c.log != nil {
		c.log.Debug("gemini request done", "model", c.model, "elapsed", time.Since(started))
	}
	return &parsed, nil
}

func responseText(resp *generateResponse) (string, error) {
	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		return "", fmt.Errorf("%w: prompt blocked: %s", models.ErrMalformedValuation, resp.PromptFeedback.BlockReason)
	}
	if len(resp.Candidates) == 0 {
		return "", fmt.Errorf("%w: no candidates", models.ErrMalformedValuation)
	}
	var sb strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		sb.WriteString(p.Text)
	}
	text := strings.TrimSpace(sb.String())
	if text == "" {
		return "", fmt.Errorf("%w: empty response (finish reason %s)", models.ErrMalformedValuation, resp.Candidates[0].FinishReason)
	}
	return text, nil
}

// extractJSON drops markdown fences and any prose around the outermost object.
func extractJSON(text string) string {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		return text[start : end+1]
	}
	return text
}

func groundingSources(resp *generateResponse) []models.GroundingSource {
	if len(resp.Candidates) == 0 || resp.Candidates[0].GroundingMetadata == nil {
		return nil
	}
	seen := make(map[string]bool)
	var sources []models.GroundingSource
	for _, chunk := range resp.Candidates[0].GroundingMetadata.GroundingChunks {
		if chunk.Web == nil || chunk.Web.URI == "" || chunk.Web.Title == "" || seen[chunk.Web.URI] {
			continue
		}
		seen[chunk.Web.URI] = true
		sources = append(sources, models.GroundingSource{URI: chunk.Web.URI, Title: chunk.Web.Title})
	}
	return sources
}

func truncateBody(body []byte) string {
	const limit = 512
	s := strings.TrimSpace(string(body))
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "…"
}
