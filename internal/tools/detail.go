// Package tools implements the functions the recommendation model may call.
package tools

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	jsv "github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/kalambet/librarian/internal/llm"
)

// DetailToolName is the function name the model uses to request a book's
// full summary.
const DetailToolName = "get_summary_by_title"

const detailToolDescription = "Returns the full summary for an exact (case-insensitive) title from the local source."

// TitleArgs is the argument object of the detail tool.
type TitleArgs struct {
	Title string `json:"title" jsonschema:"description=The exact book title"`
}

// DetailLookup resolves a title to its full summary. Unknown titles yield a
// placeholder text, never an error.
type DetailLookup interface {
	Detail(title string) string
}

// ErrInvalidArguments is returned by ParseTitle for arguments that are not
// a JSON object with a string title.
var ErrInvalidArguments = errors.New("invalid tool arguments")

// DetailTool exposes a DetailLookup as a model-callable function.
type DetailTool struct {
	lookup DetailLookup
	def    llm.Tool
	schema *jsv.Schema
}

// NewDetailTool builds the tool definition and its argument validator.
func NewDetailTool(lookup DetailLookup) (*DetailTool, error) {
	params, err := SchemaFor(&TitleArgs{})
	if err != nil {
		return nil, fmt.Errorf("reflecting %s arguments: %w", DetailToolName, err)
	}
	schema, err := compileSchema("title_args.json", params)
	if err != nil {
		return nil, fmt.Errorf("compiling %s schema: %w", DetailToolName, err)
	}
	return &DetailTool{
		lookup: lookup,
		schema: schema,
		def: llm.Tool{
			Type: "function",
			Function: llm.FunctionDef{
				Name:        DetailToolName,
				Description: detailToolDescription,
				Parameters:  params,
			},
		},
	}, nil
}

// Name returns the function name.
func (t *DetailTool) Name() string { return DetailToolName }

// Definition returns the tool as advertised to the model.
func (t *DetailTool) Definition() llm.Tool { return t.def }

// ParseTitle decodes raw tool-call arguments and returns the trimmed title.
// Empty arguments are treated as an empty object.
func (t *DetailTool) ParseTitle(arguments string) (string, error) {
	if strings.TrimSpace(arguments) == "" {
		arguments = "{}"
	}
	inst, err := jsv.UnmarshalJSON(strings.NewReader(arguments))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidArguments, err)
	}
	if err := t.schema.Validate(inst); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidArguments, err)
	}
	// Validation guarantees an object with a string title.
	title, _ := inst.(map[string]any)["title"].(string)
	return strings.TrimSpace(title), nil
}

// Lookup returns the full summary for title.
func (t *DetailTool) Lookup(title string) string {
	return t.lookup.Detail(title)
}

func bytesReader(b []byte) *bytes.Reader { return bytes.NewReader(b) }
