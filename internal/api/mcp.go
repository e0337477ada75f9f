package api

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kalambet/librarian/internal/pipeline"
	"github.com/kalambet/librarian/internal/tools"
)

const catalogResourceURI = "catalog://books"

// NewMCPServer creates an MCP server exposing recommendation, search and
// detail lookup as tools plus the book list as a resource.
func NewMCPServer(deps Deps) *server.MCPServer {
	s := server.NewMCPServer(
		"librarian",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("librarian recommends books from a local catalog."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("recommend_books",
			mcp.WithDescription("Recommend books from the catalog for a free-text request."),
			mcp.WithString("query", mcp.Description("What the reader is looking for"), mcp.Required()),
			mcp.WithNumber("num_recommendations", mcp.Description("How many books to recommend (1-10)")),
			mcp.WithNumber("top_k", mcp.Description("How many candidates to retrieve (1-20)")),
			mcp.WithBoolean("language_filter", mcp.Description("Reject queries with offensive language")),
		),
		mcpRecommend(deps),
	)

	s.AddTool(
		mcp.NewTool("search_books",
			mcp.WithDescription("Semantic search over the catalog without generating recommendations."),
			mcp.WithString("query", mcp.Description("Search query"), mcp.Required()),
			mcp.WithNumber("limit", mcp.Description("Maximum number of hits (default 4)")),
		),
		mcpSearch(deps),
	)

	s.AddTool(
		mcp.NewTool(tools.DetailToolName,
			mcp.WithDescription("Return the full summary for an exact catalog title."),
			mcp.WithString("title", mcp.Description("The exact book title"), mcp.Required()),
		),
		mcpDetail(deps),
	)

	s.AddResource(
		mcp.NewResource(
			catalogResourceURI,
			"Book Catalog",
			mcp.WithResourceDescription("All indexed books as JSON"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceBooks(deps),
	)

	return s
}

func mcpRecommend(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query, err := req.RequireString("query")
		if err != nil {
			return mcpError("query is required"), nil
		}

		numRecs := clamp(req.GetInt("num_recommendations", deps.Defaults.NumRecs), 1, 10)
		topK := clamp(req.GetInt("top_k", deps.Defaults.TopK), 1, 20)

		out, err := deps.Recommender.Run(ctx, pipeline.Request{
			Query:          query,
			TopK:           topK,
			NumRecs:        numRecs,
			LanguageFilter: req.GetBool("language_filter", deps.Defaults.LanguageFilter),
		})
		if err != nil {
			return mcpError(fmt.Sprintf("recommendation failed: %v", err)), nil
		}

		b, err := json.Marshal(RecommendResponse{Outcome: out.Kind.String(), Items: outcomeItems(out)})
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal recommendations: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpSearch(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query, err := req.RequireString("query")
		if err != nil {
			return mcpError("query is required"), nil
		}

		limit := req.GetInt("limit", deps.Defaults.TopK)
		if limit <= 0 {
			limit = 4
		}
		if limit > maxSearchTopK {
			limit = maxSearchTopK
		}

		hits, err := deps.Search.Retrieve(ctx, query, limit)
		if err != nil {
			return mcpError(fmt.Sprintf("search failed: %v", err)), nil
		}
		if len(hits) == 0 {
			return mcpText("[]"), nil
		}

		results := make([]SearchHit, len(hits))
		for i, h := range hits {
			results[i] = SearchHit{ID: h.ID, Title: h.Title, Document: h.Document, Score: h.Score}
		}
		b, err := json.Marshal(results)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal results: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpDetail(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		title, err := req.RequireString("title")
		if err != nil {
			return mcpError("title is required"), nil
		}
		return mcpText(deps.Catalog.Detail(title)), nil
	}
}

func mcpResourceBooks(deps Deps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		books, err := deps.Books.ListBooks(ctx, 0, 0)
		if err != nil {
			return nil, fmt.Errorf("failed to list books: %w", err)
		}

		out := make([]BookResponse, len(books))
		for i, b := range books {
			out[i] = BookResponse{ID: b.ID, Title: b.Title, Summary: b.Summary, Themes: b.Themes}
		}
		b, err := json.Marshal(out)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal books: %w", err)
		}

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
}

func clamp(n, lo, hi int) int {
	if n < lo {
		return lo
	}
	if n > hi {
		return hi
	}
	return n
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
