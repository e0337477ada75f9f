package composer

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/kalambet/librarian/internal/llm"
)

// DefaultLanguage is the answer language used when none is configured.
const DefaultLanguage = "română"

// Composer renders the instructions sent to the model during one
// recommendation exchange.
type Composer struct {
	Language string
	ToolName string
}

// New creates a Composer answering in language and pointing the model at
// the named detail tool. An empty language selects DefaultLanguage.
func New(language, toolName string) *Composer {
	if strings.TrimSpace(language) == "" {
		language = DefaultLanguage
	}
	return &Composer{Language: language, ToolName: toolName}
}

// Seed returns the opening system and user messages.
func (c *Composer) Seed(query string, numRecs int, allowed []string, block string) []llm.Message {
	system := fmt.Sprintf("Ești un recomandator de cărți atent la temele cerute. Răspunde în %s. "+
		"NU inventa titluri. Alege doar din lista de titluri eligibile.", c.Language)

	var sb strings.Builder
	sb.WriteString("Utilizatorul dorește recomandări.\n")
	fmt.Fprintf(&sb, "Alege EXACT %d titluri DISTINCTE doar din lista de titluri eligibile.\n", numRecs)
	fmt.Fprintf(&sb, "Pentru fiecare titlu pe care îl alegi, cheamă funcția %s(title) cu titlul exact, "+
		"așa cum apare în listă.\n\n", c.ToolName)
	fmt.Fprintf(&sb, "Interese: %s\n\n", query)
	fmt.Fprintf(&sb, "Titluri eligibile: %s\n\n", quoteList(allowed))
	sb.WriteString("Context RAG (pentru înțelegere, nu pentru halucinații de titluri):\n")
	sb.WriteString(block)
	sb.WriteString("\n")

	return []llm.Message{
		{Role: llm.RoleSystem, Content: system},
		{Role: llm.RoleUser, Content: sb.String()},
	}
}

// FinalizeInstruction returns the system message that asks for the final
// JSON answer.
func (c *Composer) FinalizeInstruction(numRecs int) llm.Message {
	return llm.Message{
		Role: llm.RoleSystem,
		Content: "Formatează rezultatul STRICT ca JSON, fără text suplimentar: " +
			`[{"title": str, "rationale": str, "detailed_summary": str}]` +
			fmt.Sprintf(" cu exact %d elemente.", numRecs),
	}
}

func quoteList(items []string) string {
	quoted := make([]string, len(items))
	for i, s := range items {
		quoted[i] = strconv.Quote(s)
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}
