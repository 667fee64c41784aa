package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/wuwenbin0122/chathub/internal/utils"
)

const defaultHTTPTimeout = 30 * time.Second

type httpDoer interface {
	Do(*http.Request) (*http.Response, error)
}

// Client calls an OpenAI-compatible chat completion endpoint. Each call is a
// single system+user exchange; the provider keys server-side context by the
// session id carried in the payload's user field.
type Client struct {
	baseURL string
	apiKey  string
	model   string
	client  httpDoer
	logger  *zap.SugaredLogger
}

func NewClient(cfg utils.LLMConfig, logger *zap.SugaredLogger) *Client {
	base := strings.TrimRight(cfg.BaseURL, "/")

	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}

	return &Client{
		baseURL: base,
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

// Complete sends userText under systemPrompt and returns the generated text.
func (c *Client) Complete(ctx context.Context, sessionID, systemPrompt, userText string) (string, error) {
	payload := completionRequest{
		Model: c.model,
		Messages: []completionMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userText},
		},
		User: sessionID,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("llm: marshal request: %w", err)
	}

	endpoint := c.baseURL + "/chat/completions"
	request, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("llm: create request: %w", err)
	}

	request.Header.Set("Authorization", "Bearer "+c.apiKey)
	request.Header.Set("Content-Type", "application/json")

	response, err := c.client.Do(request)
	if err != nil {
		return "", fmt.Errorf("llm: call completion api: %w", err)
	}
	defer response.Body.Close()

	respBody, err := io.ReadAll(response.Body)
	if err != nil {
		return "", fmt.Errorf("llm: read response: %w", err)
	}

	if response.StatusCode < 200 || response.StatusCode >= 300 {
		apiErr := buildAPIError(response.StatusCode, respBody)
		c.logger.Warnf("completion api returned status %d: %v", response.StatusCode, apiErr)
		return "", apiErr
	}

	var apiResp completionResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return "", fmt.Errorf("llm: decode response: %w", err)
	}

	if apiResp.Error != nil && apiResp.Error.Message != "" {
		return "", fmt.Errorf("llm: api error: %s", apiResp.Error.Message)
	}

	if len(apiResp.Choices) == 0 {
		return "", fmt.Errorf("llm: response contained no choices")
	}

	return apiResp.Choices[0].Message.Content, nil
}

type completionMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type completionRequest struct {
	Model    string              `json:"model"`
	Messages []completionMessage `json:"messages"`
	User     string              `json:"user,omitempty"`
}

type completionChoice struct {
	Index        int               `json:"index"`
	Message      completionMessage `json:"message"`
	FinishReason string            `json:"finish_reason"`
}

type completionResponse struct {
	ID      string             `json:"id"`
	Object  string             `json:"object"`
	Created int64              `json:"created"`
	Choices []completionChoice `json:"choices"`
	Error   *apiError          `json:"error,omitempty"`
}

type apiError struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

type apiErrorEnvelope struct {
	Error *apiError `json:"error,omitempty"`
}

func buildAPIError(statusCode int, body []byte) error {
	if len(body) > 0 {
		var envelope apiErrorEnvelope
		if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error != nil {
			message := strings.TrimSpace(envelope.Error.Message)
			if envelope.Error.Code != "" && message != "" {
				return fmt.Errorf("llm api error (%d, %s): %s", statusCode, envelope.Error.Code, message)
			}
			if message != "" {
				return fmt.Errorf("llm api error (%d): %s", statusCode, message)
			}
		}
	}

	snippet := strings.TrimSpace(string(body))
	if snippet == "" {
		snippet = http.StatusText(statusCode)
	}
	if len(snippet) > 256 {
		snippet = snippet[:256]
	}

	return fmt.Errorf("llm api error (%d): %s", statusCode, snippet)
}
