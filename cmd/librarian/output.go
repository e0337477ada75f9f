package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/kalambet/librarian/internal/api"
)

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorDim    = "\033[2m"
	colorBold   = "\033[1m"
)

// stdout is where listings are written; status lines go to stderr.
var stdout io.Writer = os.Stdout

func colorize(color, text string) string {
	if noColor {
		return text
	}
	return color + text + colorReset
}

func status(color, mark, format string, args ...any) {
	fmt.Fprintln(os.Stderr, colorize(color, mark+" "+fmt.Sprintf(format, args...)))
}

func printSuccess(format string, args ...any) { status(colorGreen, "✓", format, args...) }
func printError(format string, args ...any)   { status(colorRed, "✗", format, args...) }
func printWarning(format string, args ...any) { status(colorYellow, "⚠", format, args...) }
func printStep(format string, args ...any)    { status(colorCyan, "→", format, args...) }

// printRecommendations renders a /recommend reply. Items without a title
// carry a user-facing notice (blocked query, no matches).
func printRecommendations(result api.RecommendResponse) {
	n := 0
	for _, item := range result.Items {
		if item.Title == "" {
			printWarning("%s", item.Rationale)
			continue
		}
		n++
		fmt.Fprintf(stdout, "\n%s %s\n", colorize(colorBold, fmt.Sprintf("%d.", n)), colorize(colorBold, item.Title))
		fmt.Fprintf(stdout, "  %s\n", item.Rationale)
		if item.DetailedSummary != "" {
			fmt.Fprintf(stdout, "  %s\n", colorize(colorDim, item.DetailedSummary))
		}
		if item.ImagePath != "" {
			fmt.Fprintf(stdout, "  Cover: %s\n", item.ImagePath)
		}
		if item.AudioPath != "" {
			fmt.Fprintf(stdout, "  Audio: %s\n", item.AudioPath)
		}
	}
}

func printHits(hits []api.SearchHit) {
	if len(hits) == 0 {
		fmt.Fprintln(stdout, "No results found.")
		return
	}
	for i, h := range hits {
		fmt.Fprintf(stdout, "\n%s %s [score: %.3f]\n", colorize(colorBold, fmt.Sprintf("Result %d", i+1)), h.Title, h.Score)
		fmt.Fprintf(stdout, "  %s\n", truncate(h.Document, 500))
	}
}

func printBooks(page bookPage) {
	if len(page.Books) == 0 {
		fmt.Fprintln(stdout, "No books found.")
		return
	}
	for _, b := range page.Books {
		fmt.Fprintf(stdout, "%s  %s\n", colorize(colorCyan, b.Title), strings.Join(b.Themes, ", "))
	}
	fmt.Fprintf(stdout, "\n%d of %d books\n", len(page.Books), page.Total)
}

// truncate shortens s to at most n runes.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
