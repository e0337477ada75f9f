// Package proxy is a client for OpenAI-compatible APIs: chat completions
// with tools, text-to-speech and image generation.
package proxy

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/kalambet/librarian/internal/llm"
)

const (
	DefaultBaseURL   = "https://api.openai.com/v1"
	DefaultChatModel = "gpt-4o-mini"

	defaultTimeout = 60 * time.Second
	mediaTimeout   = 180 * time.Second
	maxRetries     = 3
	initialBackoff = 500 * time.Millisecond
)

// Client communicates with an OpenAI-compatible API.
type Client struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
	referer    string
	title      string
}

// NewClient creates a client. Empty baseURL and model select DefaultBaseURL
// and DefaultChatModel.
func NewClient(apiKey, baseURL, model string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if model == "" {
		model = DefaultChatModel
	}
	return &Client{
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		httpClient: &http.Client{},
		referer:    "https://github.com/kalambet/librarian",
		title:      "librarian",
	}
}

// Complete runs one chat completion. ResponseSchema is not forwarded: the
// structured output mode of the API requires an object at the root and the
// final answer is an array, so the caller parses free text instead.
func (c *Client) Complete(ctx context.Context, req llm.Request) (llm.Completion, error) {
	model := req.Model
	if model == "" {
		model = c.model
	}

	messages := slices.Clone(req.Messages)
	for i := range messages {
		if len(messages[i].ToolCalls) == 0 {
			continue
		}
		calls := slices.Clone(messages[i].ToolCalls)
		for j := range calls {
			if calls[j].Type == "" {
				calls[j].Type = "function"
			}
		}
		messages[i].ToolCalls = calls
	}

	body := chatRequest{
		Model:       model,
		Messages:    messages,
		Temperature: req.Temperature,
	}
	if req.ToolChoice != llm.ToolChoiceNone && len(req.Tools) > 0 {
		body.Tools = req.Tools
		body.ToolChoice = req.ToolChoice
	}

	rc, err := c.post(ctx, "/chat/completions", body, defaultTimeout)
	if err != nil {
		return llm.Completion{}, err
	}
	defer rc.Close()

	var resp chatResponse
	if err := json.NewDecoder(rc).Decode(&resp); err != nil {
		return llm.Completion{}, fmt.Errorf("decoding chat response: %w", err)
	}
	if len(resp.Choices) == 0 {
		return llm.Completion{}, errors.New("chat response has no choices")
	}

	msg := resp.Choices[0].Message
	out := llm.Completion{ToolCalls: msg.ToolCalls}
	if msg.Content != nil {
		out.Content = *msg.Content
	}
	return out, nil
}

// Speech synthesizes audio. The caller must close the returned stream.
func (c *Client) Speech(ctx context.Context, req SpeechRequest) (io.ReadCloser, error) {
	format := req.Format
	if format == "" {
		format = "wav"
	}
	return c.post(ctx, "/audio/speech", speechRequest{
		Model:          req.Model,
		Voice:          req.Voice,
		Input:          req.Input,
		ResponseFormat: format,
	}, mediaTimeout)
}

// GenerateImage returns the decoded bytes of one generated image.
func (c *Client) GenerateImage(ctx context.Context, req ImageRequest) ([]byte, error) {
	rc, err := c.post(ctx, "/images/generations", imageRequest{
		Model:  req.Model,
		Prompt: req.Prompt,
		Size:   req.Size,
		N:      1,
	}, mediaTimeout)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	var resp imageResponse
	if err := json.NewDecoder(rc).Decode(&resp); err != nil {
		return nil, fmt.Errorf("decoding image response: %w", err)
	}
	if len(resp.Data) == 0 || resp.Data[0].B64JSON == "" {
		return nil, errors.New("image response has no data")
	}
	img, err := base64.StdEncoding.DecodeString(resp.Data[0].B64JSON)
	if err != nil {
		return nil, fmt.Errorf("decoding image data: %w", err)
	}
	return img, nil
}

// ListModels returns the models available to the API key.
func (c *Client) ListModels(ctx context.Context) ([]Model, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/models", nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("requesting models: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var list ModelList
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		return nil, fmt.Errorf("decoding models: %w", err)
	}

	if list.Data == nil {
		return []Model{}, nil
	}
	return list.Data, nil
}

// post sends a JSON body and returns the response body on HTTP 200.
// HTTP 429 is retried with exponential backoff.
func (c *Client) post(ctx context.Context, path string, payload any, timeout time.Duration) (io.ReadCloser, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	var lastErr error
	for attempt := range maxRetries {
		rc, err := c.do(ctx, path, body, timeout)
		if err == nil {
			return rc, nil
		}

		if !isRateLimit(err) {
			return nil, err
		}

		lastErr = err
		if attempt < maxRetries-1 {
			backoff := time.Duration(float64(initialBackoff) * math.Pow(2, float64(attempt)))
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}
	}

	return nil, fmt.Errorf("rate limited after %d retries: %w", maxRetries, lastErr)
}

// rateLimitError is returned on HTTP 429.
type rateLimitError struct {
	status int
}

func (e *rateLimitError) Error() string {
	return fmt.Sprintf("rate limited (HTTP %d)", e.status)
}

func isRateLimit(err error) bool {
	var rl *rateLimitError
	return errors.As(err, &rl)
}

func (c *Client) do(ctx context.Context, path string, body []byte, timeout time.Duration) (io.ReadCloser, error) {
	reqCtx, cancel := context.WithTimeout(ctx, timeout)

	httpReq, err := http.NewRequestWithContext(reqCtx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		cancel()
		return nil, fmt.Errorf("creating request: %w", err)
	}
	c.setHeaders(httpReq)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("executing request: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		resp.Body.Close()
		cancel()
		return nil, &rateLimitError{status: resp.StatusCode}
	}

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		cancel()
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(respBody))
	}

	// The timeout context lives until the caller closes the body.
	return &cancelOnClose{ReadCloser: resp.Body, cancel: cancel}, nil
}

// cancelOnClose wraps a ReadCloser and cancels a context on Close.
type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelOnClose) Close() error {
	err := c.ReadCloser.Close()
	c.cancel()
	return err
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("HTTP-Referer", c.referer)
	req.Header.Set("X-Title", c.title)
}
