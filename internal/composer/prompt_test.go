package composer

import (
	"strings"
	"testing"

	"github.com/kalambet/librarian/internal/llm"
	"github.com/kalambet/librarian/internal/retrieval"
)

func TestBuildContext_DedupKeepsFirst(t *testing.T) {
	hits := []retrieval.Hit{
		{ID: "1", Title: "The Hobbit", Document: "doc A"},
		{ID: "2", Title: "Harry Potter", Document: "doc B"},
		{ID: "3", Title: "The Hobbit", Document: "doc C"},
	}

	allowed, block := BuildContext(hits)

	want := []string{"The Hobbit", "Harry Potter"}
	if len(allowed) != len(want) {
		t.Fatalf("allowed = %v, want %v", allowed, want)
	}
	for i := range want {
		if allowed[i] != want[i] {
			t.Errorf("allowed[%d] = %q, want %q", i, allowed[i], want[i])
		}
	}

	wantBlock := "[#1] The Hobbit\ndoc A\n\n[#2] Harry Potter\ndoc B\n\n[#3] The Hobbit\ndoc C"
	if block != wantBlock {
		t.Errorf("block = %q, want %q", block, wantBlock)
	}
}

func TestBuildContext_CaseSensitiveTitles(t *testing.T) {
	allowed, _ := BuildContext([]retrieval.Hit{
		{Title: "Dune"}, {Title: "DUNE"}, {Title: ""},
	})
	if len(allowed) != 2 {
		t.Errorf("allowed = %v, want both case variants and no empty title", allowed)
	}
}

func TestBuildContext_Empty(t *testing.T) {
	allowed, block := BuildContext(nil)
	if len(allowed) != 0 || block != "" {
		t.Errorf("got (%v, %q), want empty", allowed, block)
	}
}

func TestSeed(t *testing.T) {
	c := New("", "get_summary_by_title")
	msgs := c.Seed("prietenie și magie", 2, []string{"The Hobbit", "Harry Potter"}, "[#1] The Hobbit\ndoc")

	if len(msgs) != 2 {
		t.Fatalf("got %d messages, want 2", len(msgs))
	}
	if msgs[0].Role != llm.RoleSystem || msgs[1].Role != llm.RoleUser {
		t.Errorf("roles = %s, %s", msgs[0].Role, msgs[1].Role)
	}
	if !strings.Contains(msgs[0].Content, "Răspunde în română") {
		t.Errorf("system message missing default language: %q", msgs[0].Content)
	}

	user := msgs[1].Content
	for _, want := range []string{
		"EXACT 2 titluri DISTINCTE",
		"get_summary_by_title(title)",
		"Interese: prietenie și magie",
		`Titluri eligibile: ["The Hobbit", "Harry Potter"]`,
		"[#1] The Hobbit\ndoc",
	} {
		if !strings.Contains(user, want) {
			t.Errorf("user message missing %q:\n%s", want, user)
		}
	}
}

func TestSeed_Language(t *testing.T) {
	msgs := New("English", "t").Seed("q", 1, nil, "")
	if !strings.Contains(msgs[0].Content, "Răspunde în English") {
		t.Errorf("system message = %q", msgs[0].Content)
	}
}

func TestFinalizeInstruction(t *testing.T) {
	m := New("", "t").FinalizeInstruction(3)
	if m.Role != llm.RoleSystem {
		t.Errorf("role = %s, want system", m.Role)
	}
	for _, want := range []string{"STRICT ca JSON", `"detailed_summary"`, "exact 3 elemente"} {
		if !strings.Contains(m.Content, want) {
			t.Errorf("instruction missing %q: %q", want, m.Content)
		}
	}
}
