// Package mistral provides a client for the Mistral document OCR API.
package mistral

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"

	"github.com/maroofsyyed/Duesense1/internal/resilience"
)

const (
	defaultBaseURL = "https://api.mistral.ai/v1"
	defaultModel   = "mistral-ocr-latest"
)

// Client performs document OCR.
type Client interface {
	OCR(ctx context.Context, doc []byte, mimeType string) (*OCRResponse, error)
}

type ocrRequest struct {
	Model    string      `json:"model"`
	Document ocrDocument `json:"document"`
}

type ocrDocument struct {
	Type        string `json:"type"`
	DocumentURL string `json:"document_url"`
}

// OCRResponse is the parsed OCR result.
type OCRResponse struct {
	Model     string    `json:"model"`
	Pages     []OCRPage `json:"pages"`
	UsageInfo UsageInfo `json:"usage_info"`
}

// OCRPage is one recognized page, zero-indexed.
type OCRPage struct {
	Index    int    `json:"index"`
	Markdown string `json:"markdown"`
}

// UsageInfo reports billed pages.
type UsageInfo struct {
	PagesProcessed int `json:"pages_processed"`
	DocSizeBytes   int `json:"doc_size_bytes"`
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the API base URL.
func WithBaseURL(u string) Option {
	return func(c *httpClient) { c.baseURL = u }
}

// WithModel overrides the OCR model.
func WithModel(m string) Option {
	return func(c *httpClient) {
		if m != "" {
			c.model = m
		}
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) { c.http = hc }
}

type httpClient struct {
	apiKey  string
	baseURL string
	model   string
	http    *http.Client
}

// NewClient creates a Mistral OCR client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		model:   defaultModel,
		http:    &http.Client{Timeout: 120 * time.Second},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// OCR sends the document inline as a data URL.
func (c *httpClient) OCR(ctx context.Context, doc []byte, mimeType string) (*OCRResponse, error) {
	body, err := json.Marshal(ocrRequest{
		Model: c.model,
		Document: ocrDocument{
			Type:        "document_url",
			DocumentURL: "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(doc),
		},
	})
	if err != nil {
		return nil, eris.Wrap(err, "mistral: marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/ocr", bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "mistral: create request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "mistral: send request")
	}
	defer resp.Body.Close() //nolint:errcheck

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "mistral: read response")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, resilience.Classify(
			eris.Errorf("mistral: ocr returned %d: %s", resp.StatusCode, string(respBody)),
			resp.StatusCode)
	}

	var out OCRResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, eris.Wrap(err, "mistral: unmarshal response")
	}
	return &out, nil
}
