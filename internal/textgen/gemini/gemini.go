// Package gemini adapts the Gemini generateContent REST endpoint to textgen.
package gemini

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

	"spendwise/internal/textgen"
)

const (
	DefaultModel   = "gemini-1.5-flash"
	DefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"
)

// Client posts single-shot prompts to models/{model}:generateContent.
type Client struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
}

// New creates a client. An empty apiKey yields textgen.ErrNotConfigured.
func New(apiKey, model string) (*Client, error) {
	if apiKey == "" {
		return nil, textgen.ErrNotConfigured
	}
	if model == "" {
		model = DefaultModel
	}
	return &Client{
		apiKey:  apiKey,
		model:   model,
		baseURL: DefaultBaseURL,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}, nil
}

// WithBaseURL points the client at another server, such as a test double.
func (c *Client) WithBaseURL(url string) *Client {
	c.baseURL = strings.TrimRight(url, "/")
	return c
}

func (c *Client) Name() string { return "gemini" }

type part struct {
	Text string `json:"text"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type generationConfig struct {
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
}

type generateRequest struct {
	Contents          []content        `json:"contents"`
	SystemInstruction *content         `json:"systemInstruction,omitempty"`
	GenerationConfig  generationConfig `json:"generationConfig"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (c *Client) Generate(ctx context.Context, p textgen.Prompt) textgen.Result {
	body := generateRequest{
		Contents: []content{{Role: "user", Parts: []part{{Text: p.User}}}},
		GenerationConfig: generationConfig{
			Temperature:     p.Temperature,
			MaxOutputTokens: p.MaxTokens,
		},
	}
	if p.System != "" {
		body.SystemInstruction = &content{Parts: []part{{Text: p.System}}}
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return textgen.Failed(fmt.Errorf("marshal request: %w", err))
	}
	url := fmt.Sprintf("%s/models/%s:generateContent", c.baseURL, c.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return textgen.Failed(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return textgen.Failed(fmt.Errorf("gemini request: %w", err))
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return textgen.Failed(fmt.Errorf("read response: %w", err))
	}

	var out generateResponse
	decodeErr := json.Unmarshal(raw, &out)
	if resp.StatusCode != http.StatusOK {
		msg := http.StatusText(resp.StatusCode)
		if decodeErr == nil && out.Error != nil && out.Error.Message != "" {
			msg = out.Error.Message
		}
		return textgen.Failed(fmt.Errorf("gemini status %d: %s", resp.StatusCode, msg))
	}
	if decodeErr != nil {
		return textgen.Failed(fmt.Errorf("decode gemini response: %w", decodeErr))
	}
	if out.PromptFeedback != nil && out.PromptFeedback.BlockReason != "" {
		return textgen.Failed(fmt.Errorf("gemini blocked prompt: %s", out.PromptFeedback.BlockReason))
	}
	if len(out.Candidates) == 0 {
		return textgen.Failed(errors.New("gemini returned no candidates"))
	}

	var sb strings.Builder
	for _, pt := range out.Candidates[0].Content.Parts {
		sb.WriteString(pt.Text)
	}
	// Blank text is a successful call; the pipeline turns it into its
	// no-usable-insight fallback.
	return textgen.OK(strings.TrimSpace(sb.String()))
}
