package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/kalambet/librarian/internal/api"
	"github.com/kalambet/librarian/internal/config"
)

// apiClient talks to a running librarian server.
type apiClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

var newAPIClient = func() (*apiClient, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return &apiClient{
		baseURL: "http://" + net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port)),
		token:   cfg.Server.APIToken,
		// Recommendations make two model round trips and may render media.
		httpClient: &http.Client{Timeout: 5 * time.Minute},
	}, nil
}

// serverError is a non-2xx reply. Message and Type come from the
// {"error":{...}} envelope when the body carries one.
type serverError struct {
	Status  int
	Type    string
	Message string
}

func (e *serverError) Error() string {
	if e.Type == "" {
		return fmt.Sprintf("server returned %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("server returned %d (%s): %s", e.Status, e.Type, e.Message)
}

func (c *apiClient) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var payload io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encoding request body: %w", err)
		}
		payload = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, payload)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("server not reachable, is librarian serve running? (%w)", err)
	}
	return resp, nil
}

func (c *apiClient) get(ctx context.Context, path string) (*http.Response, error) {
	return c.do(ctx, http.MethodGet, path, nil)
}

func (c *apiClient) post(ctx context.Context, path string, body any) (*http.Response, error) {
	return c.do(ctx, http.MethodPost, path, body)
}

// decodeJSON closes resp and decodes its body into v, or returns a
// *serverError for status codes >= 400.
func decodeJSON(resp *http.Response, v any) error {
	defer resp.Body.Close()
	if resp.StatusCode < 400 {
		return json.NewDecoder(resp.Body).Decode(v)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("server returned %d (reading body: %w)", resp.StatusCode, err)
	}
	serr := &serverError{Status: resp.StatusCode, Message: string(bytes.TrimSpace(raw))}
	var envelope struct {
		Error struct {
			Message string `json:"message"`
			Type    string `json:"type"`
		} `json:"error"`
	}
	if json.Unmarshal(raw, &envelope) == nil && envelope.Error.Message != "" {
		serr.Message = envelope.Error.Message
		serr.Type = envelope.Error.Type
	}
	return serr
}

func (c *apiClient) recommend(ctx context.Context, req api.RecommendRequest) (api.RecommendResponse, error) {
	var out api.RecommendResponse
	resp, err := c.post(ctx, "/recommend", req)
	if err != nil {
		return out, err
	}
	err = decodeJSON(resp, &out)
	return out, err
}

func (c *apiClient) search(ctx context.Context, query string, limit int) ([]api.SearchHit, error) {
	var out struct {
		Hits []api.SearchHit `json:"hits"`
	}
	resp, err := c.get(ctx, searchPath(query, limit))
	if err != nil {
		return nil, err
	}
	if err := decodeJSON(resp, &out); err != nil {
		return nil, err
	}
	return out.Hits, nil
}

type bookPage struct {
	Books []api.BookResponse `json:"books"`
	Total int                `json:"total"`
}

func (c *apiClient) books(ctx context.Context, limit, offset int) (bookPage, error) {
	var out bookPage
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	q.Set("offset", strconv.Itoa(offset))
	resp, err := c.get(ctx, "/books?"+q.Encode())
	if err != nil {
		return out, err
	}
	err = decodeJSON(resp, &out)
	return out, err
}
