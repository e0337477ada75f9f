package proxy

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kalambet/librarian/internal/llm"
)

func testRequest() llm.Request {
	return llm.Request{
		Messages:    []llm.Message{{Role: llm.RoleUser, Content: "hi"}},
		Temperature: 0.4,
	}
}

func TestComplete_ToolCalls(t *testing.T) {
	var got map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			http.NotFound(w, r)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decoding request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"choices":[{"message":{"role":"assistant","content":null,"tool_calls":[
			{"id":"call_1","type":"function","function":{"name":"get_summary_by_title","arguments":"{\"title\":\"1984\"}"}}
		]}}]}`)
	}))
	defer srv.Close()

	c := NewClient("test-key", srv.URL, "")
	req := testRequest()
	req.Tools = []llm.Tool{{Type: "function", Function: llm.FunctionDef{Name: "get_summary_by_title"}}}
	req.ToolChoice = llm.ToolChoiceAuto

	out, err := c.Complete(context.Background(), req)
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}

	if got["model"] != DefaultChatModel {
		t.Errorf("model = %v, want %q", got["model"], DefaultChatModel)
	}
	if got["tool_choice"] != "auto" {
		t.Errorf("tool_choice = %v, want auto", got["tool_choice"])
	}
	if got["temperature"] != 0.4 {
		t.Errorf("temperature = %v, want 0.4", got["temperature"])
	}
	if tools, _ := got["tools"].([]any); len(tools) != 1 {
		t.Errorf("tools = %v, want one tool", got["tools"])
	}

	if out.Content != "" {
		t.Errorf("Content = %q, want empty", out.Content)
	}
	if len(out.ToolCalls) != 1 {
		t.Fatalf("got %d tool calls, want 1", len(out.ToolCalls))
	}
	tc := out.ToolCalls[0]
	if tc.ID != "call_1" || tc.Function.Name != "get_summary_by_title" || tc.Function.Arguments != `{"title":"1984"}` {
		t.Errorf("tool call = %+v", tc)
	}
}

func TestComplete_NoToolsWithoutToolChoice(t *testing.T) {
	var got map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&got)
		fmt.Fprint(w, `{"choices":[{"message":{"role":"assistant","content":"[]"}}]}`)
	}))
	defer srv.Close()

	c := NewClient("test-key", srv.URL, "gpt-test")
	req := testRequest()
	req.Model = "override"
	req.ResponseSchema = map[string]any{"type": "array"}
	req.Messages = append(req.Messages, llm.Message{
		Role:      llm.RoleAssistant,
		ToolCalls: []llm.ToolCall{{ID: "c1", Function: llm.FunctionCall{Name: "x", Arguments: "{}"}}},
	})

	out, err := c.Complete(context.Background(), req)
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if out.Content != "[]" {
		t.Errorf("Content = %q, want []", out.Content)
	}
	if got["model"] != "override" {
		t.Errorf("model = %v, want override", got["model"])
	}
	for _, key := range []string{"tools", "tool_choice", "response_format"} {
		if _, ok := got[key]; ok {
			t.Errorf("request unexpectedly contains %q", key)
		}
	}

	msgs := got["messages"].([]any)
	calls := msgs[1].(map[string]any)["tool_calls"].([]any)
	if typ := calls[0].(map[string]any)["type"]; typ != "function" {
		t.Errorf("tool call type = %v, want function", typ)
	}
	if req.Messages[1].ToolCalls[0].Type != "" {
		t.Error("caller's messages were modified")
	}
}

func TestComplete_NoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"choices":[]}`)
	}))
	defer srv.Close()

	c := NewClient("test-key", srv.URL, "")
	if _, err := c.Complete(context.Background(), testRequest()); err == nil {
		t.Fatal("expected error for empty choices")
	}
}

func TestComplete_ErrorStatusIncludesBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error":{"message":"bad key"}}`)
	}))
	defer srv.Close()

	c := NewClient("test-key", srv.URL, "")
	_, err := c.Complete(context.Background(), testRequest())
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "401") || !strings.Contains(err.Error(), "bad key") {
		t.Errorf("error = %q, want status and body", err.Error())
	}
}

func TestComplete_Headers(t *testing.T) {
	var gotAuth, gotTitle string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotTitle = r.Header.Get("X-Title")
		fmt.Fprint(w, `{"choices":[{"message":{"content":"ok"}}]}`)
	}))
	defer srv.Close()

	c := NewClient("test-key", srv.URL, "")
	if _, err := c.Complete(context.Background(), testRequest()); err != nil {
		t.Fatalf("Complete: %v", err)
	}

	if want := "Bearer test-key"; gotAuth != want {
		t.Errorf("Authorization = %q, want %q", gotAuth, want)
	}
	if gotTitle != "librarian" {
		t.Errorf("X-Title = %q, want librarian", gotTitle)
	}
}

func TestComplete_RateLimit_Retry(t *testing.T) {
	var attempt atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := attempt.Add(1)
		if n == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		fmt.Fprint(w, `{"choices":[{"message":{"content":"ok"}}]}`)
	}))
	defer srv.Close()

	c := NewClient("test-key", srv.URL, "")
	out, err := c.Complete(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if out.Content != "ok" {
		t.Errorf("Content = %q, want ok", out.Content)
	}
	if got := attempt.Load(); got != 2 {
		t.Errorf("attempts = %d, want 2", got)
	}
}

func TestComplete_RateLimit_Exhausted(t *testing.T) {
	var attempt atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempt.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewClient("test-key", srv.URL, "")
	_, err := c.Complete(context.Background(), testRequest())
	if err == nil {
		t.Fatal("expected error after exhausted retries")
	}
	if !strings.Contains(err.Error(), "rate limited") {
		t.Errorf("error = %q, want it to contain %q", err.Error(), "rate limited")
	}
	if got := attempt.Load(); got != 3 {
		t.Errorf("attempts = %d, want 3", got)
	}
}

func TestComplete_ContextCancellation(t *testing.T) {
	handlerStarted := make(chan struct{})
	handlerDone := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(handlerStarted)
		select {
		case <-handlerDone:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		c := NewClient("test-key", srv.URL, "")
		_, err := c.Complete(ctx, testRequest())
		done <- err
	}()

	<-handlerStarted
	cancel()

	select {
	case err := <-done:
		if err == nil {
			t.Fatal("expected error after context cancellation")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Complete did not return promptly after context cancellation")
	}

	close(handlerDone)
}

func TestSpeech(t *testing.T) {
	var got speechRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/audio/speech" {
			http.NotFound(w, r)
			return
		}
		json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "audio/wav")
		fmt.Fprint(w, "RIFFdata")
	}))
	defer srv.Close()

	c := NewClient("test-key", srv.URL, "")
	rc, err := c.Speech(context.Background(), SpeechRequest{Model: "gpt-4o-mini-tts", Voice: "alloy", Input: "Salut"})
	if err != nil {
		t.Fatalf("Speech: %v", err)
	}
	defer rc.Close()

	body, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("reading audio: %v", err)
	}
	if string(body) != "RIFFdata" {
		t.Errorf("audio = %q, want RIFFdata", body)
	}
	want := speechRequest{Model: "gpt-4o-mini-tts", Voice: "alloy", Input: "Salut", ResponseFormat: "wav"}
	if got != want {
		t.Errorf("request = %+v, want %+v", got, want)
	}
}

func TestGenerateImage(t *testing.T) {
	var got imageRequest
	png := []byte{0x89, 'P', 'N', 'G'}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/images/generations" {
			http.NotFound(w, r)
			return
		}
		json.NewDecoder(r.Body).Decode(&got)
		fmt.Fprintf(w, `{"data":[{"b64_json":%q}]}`, base64.StdEncoding.EncodeToString(png))
	}))
	defer srv.Close()

	c := NewClient("test-key", srv.URL, "")
	img, err := c.GenerateImage(context.Background(), ImageRequest{Model: "gpt-image-1", Prompt: "cover", Size: "1024x1024"})
	if err != nil {
		t.Fatalf("GenerateImage: %v", err)
	}
	if string(img) != string(png) {
		t.Errorf("image = %v, want %v", img, png)
	}
	want := imageRequest{Model: "gpt-image-1", Prompt: "cover", Size: "1024x1024", N: 1}
	if got != want {
		t.Errorf("request = %+v, want %+v", got, want)
	}
}

func TestGenerateImage_NoData(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":[]}`)
	}))
	defer srv.Close()

	c := NewClient("test-key", srv.URL, "")
	if _, err := c.GenerateImage(context.Background(), ImageRequest{Prompt: "x"}); err == nil {
		t.Fatal("expected error for empty image data")
	}
}

func TestListModels(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/models" {
			http.NotFound(w, r)
			return
		}
		json.NewEncoder(w).Encode(ModelList{
			Object: "list",
			Data: []Model{
				{ID: "gpt-4o-mini", Object: "model"},
				{ID: "gpt-image-1", Object: "model"},
			},
		})
	}))
	defer srv.Close()

	c := NewClient("test-key", srv.URL, "")
	models, err := c.ListModels(context.Background())
	if err != nil {
		t.Fatalf("ListModels: %v", err)
	}

	want := []string{"gpt-4o-mini", "gpt-image-1"}
	if len(models) != len(want) {
		t.Fatalf("got %d models, want %d", len(models), len(want))
	}
	for i, w := range want {
		if models[i].ID != w {
			t.Errorf("models[%d].ID = %q, want %q", i, models[i].ID, w)
		}
	}
}

func TestListModels_Empty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(ModelList{Object: "list"})
	}))
	defer srv.Close()

	c := NewClient("test-key", srv.URL, "")
	models, err := c.ListModels(context.Background())
	if err != nil {
		t.Fatalf("ListModels: %v", err)
	}
	if len(models) != 0 {
		t.Errorf("got %d models, want 0", len(models))
	}
}
