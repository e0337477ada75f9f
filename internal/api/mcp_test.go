package api

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/kalambet/librarian/internal/catalog"
	"github.com/kalambet/librarian/internal/pipeline"
	"github.com/kalambet/librarian/internal/retrieval"
	"github.com/kalambet/librarian/internal/storage"
)

func toolText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if len(result.Content) == 0 {
		t.Fatal("no content in result")
	}
	tc, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("expected TextContent, got %T", result.Content[0])
	}
	return tc.Text
}

func makeCallToolRequest(name string, args map[string]any) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

func TestMCPTool_Recommend(t *testing.T) {
	deps, rec := newTestDeps()
	deps.Defaults = Defaults{TopK: 4, NumRecs: 1}
	handler := mcpRecommend(deps)

	result, err := handler(context.Background(), makeCallToolRequest("recommend_books", map[string]any{
		"query":               "aventură",
		"num_recommendations": 25,
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected error: %s", toolText(t, result))
	}

	var resp RecommendResponse
	if err := json.Unmarshal([]byte(toolText(t, result)), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if resp.Outcome != "recommendations" || len(resp.Items) != 1 {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if rec.last.NumRecs != 10 {
		t.Errorf("num_recommendations = %d, want clamped to 10", rec.last.NumRecs)
	}
	if rec.last.TopK != 4 {
		t.Errorf("top_k = %d, want default 4", rec.last.TopK)
	}
}

func TestMCPTool_Recommend_Blocked(t *testing.T) {
	deps, rec := newTestDeps()
	rec.runFn = func(context.Context, pipeline.Request) (pipeline.Outcome, error) {
		return pipeline.Outcome{Kind: pipeline.OutcomeBlocked}, nil
	}

	result, err := mcpRecommend(deps)(context.Background(), makeCallToolRequest("recommend_books", map[string]any{
		"query": "ești prost!",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var resp RecommendResponse
	if err := json.Unmarshal([]byte(toolText(t, result)), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Items[0].Rationale != MessageBlocked {
		t.Errorf("rationale = %q", resp.Items[0].Rationale)
	}
}

func TestMCPTool_Recommend_MissingQuery(t *testing.T) {
	deps, _ := newTestDeps()
	result, err := mcpRecommend(deps)(context.Background(), makeCallToolRequest("recommend_books", map[string]any{}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected tool error")
	}
}

func TestMCPTool_Search(t *testing.T) {
	deps, _ := newTestDeps()
	deps.Search = &fakeSearcher{hits: []retrieval.Hit{
		{ID: "a", Title: "A", Score: 0.9},
		{ID: "b", Title: "B", Score: 0.5},
	}}

	result, err := mcpSearch(deps)(context.Background(), makeCallToolRequest("search_books", map[string]any{
		"query": "x",
		"limit": 2,
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var hits []SearchHit
	if err := json.Unmarshal([]byte(toolText(t, result)), &hits); err != nil {
		t.Fatal(err)
	}
	if len(hits) != 2 {
		t.Fatalf("expected 2 hits, got %d", len(hits))
	}
}

func TestMCPTool_Search_EmptyResult(t *testing.T) {
	deps, _ := newTestDeps()
	result, err := mcpSearch(deps)(context.Background(), makeCallToolRequest("search_books", map[string]any{
		"query": "nimic",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text := toolText(t, result); text != "[]" {
		t.Fatalf("expected empty array, got: %s", text)
	}
}

func TestMCPTool_Detail(t *testing.T) {
	deps, _ := newTestDeps()
	handler := mcpDetail(deps)

	result, err := handler(context.Background(), makeCallToolRequest("get_summary_by_title", map[string]any{"title": "the hobbit"}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text := toolText(t, result); text != "Bilbo pleacă într-o călătorie." {
		t.Errorf("detail = %q", text)
	}

	result, _ = handler(context.Background(), makeCallToolRequest("get_summary_by_title", map[string]any{"title": "Necunoscut"}))
	if text := toolText(t, result); text != catalog.UnavailableDetail {
		t.Errorf("detail = %q, want unavailable", text)
	}
}

func TestMCPResource_Books(t *testing.T) {
	deps, _ := newTestDeps()
	deps.Books = &fakeBooks{books: []storage.Book{{ID: "hobbit", Title: "The Hobbit"}}}

	contents, err := mcpResourceBooks(deps)(context.Background(), mcp.ReadResourceRequest{
		Params: mcp.ReadResourceParams{URI: catalogResourceURI},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(contents) != 1 {
		t.Fatalf("expected 1 content, got %d", len(contents))
	}
	tc, ok := contents[0].(mcp.TextResourceContents)
	if !ok {
		t.Fatalf("expected TextResourceContents, got %T", contents[0])
	}
	var books []BookResponse
	if err := json.Unmarshal([]byte(tc.Text), &books); err != nil {
		t.Fatal(err)
	}
	if len(books) != 1 || books[0].Title != "The Hobbit" {
		t.Errorf("books = %+v", books)
	}
}

func TestNewMCPServer(t *testing.T) {
	deps, _ := newTestDeps()
	if s := NewMCPServer(deps); s == nil {
		t.Fatal("expected server")
	}
}
