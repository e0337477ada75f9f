// Package catalog holds the static book table. It provides the documents
// that get embedded for retrieval and the local detail lookup used by the
// recommendation tool.
package catalog

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// UnavailableDetail is returned by Detail for titles not in the catalog.
const UnavailableDetail = "Rezumat complet indisponibil pentru acest titlu în setul local."

//go:embed books.yaml
var defaultBooks []byte

// Book is one catalog entry.
type Book struct {
	ID      string   `yaml:"id"`
	Title   string   `yaml:"title"`
	Summary string   `yaml:"summary"`
	Themes  []string `yaml:"themes"`
	Detail  string   `yaml:"detail"`
}

// Document renders the text that is embedded for similarity search.
func (b Book) Document() string {
	return fmt.Sprintf("Title: %s\nSummary: %s\nThemes: %s", b.Title, b.Summary, strings.Join(b.Themes, ", "))
}

// Catalog is an immutable set of books indexed by lower-cased title.
// It is safe for concurrent use.
type Catalog struct {
	books   []Book
	byTitle map[string]int
}

// Default returns the catalog compiled into the binary.
func Default() (*Catalog, error) {
	return Parse(defaultBooks)
}

// Load reads a catalog from a YAML file. An empty path loads the default.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading catalog %s: %w", path, err)
	}
	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("catalog %s: %w", path, err)
	}
	return c, nil
}

// Parse decodes a YAML list of books. IDs and titles must be non-empty and
// unique; titles are compared ignoring case.
func Parse(data []byte) (*Catalog, error) {
	var books []Book
	if err := yaml.Unmarshal(data, &books); err != nil {
		return nil, fmt.Errorf("decoding catalog: %w", err)
	}

	c := &Catalog{books: books, byTitle: make(map[string]int, len(books))}
	ids := make(map[string]bool, len(books))
	for i, b := range books {
		if strings.TrimSpace(b.ID) == "" {
			return nil, fmt.Errorf("book %d: missing id", i+1)
		}
		if strings.TrimSpace(b.Title) == "" {
			return nil, fmt.Errorf("book %q: missing title", b.ID)
		}
		if ids[b.ID] {
			return nil, fmt.Errorf("book %q: duplicate id", b.ID)
		}
		key := strings.ToLower(b.Title)
		if _, dup := c.byTitle[key]; dup {
			return nil, fmt.Errorf("book %q: duplicate title %q", b.ID, b.Title)
		}
		ids[b.ID] = true
		c.byTitle[key] = i
	}
	return c, nil
}

// Books returns a copy of the catalog entries in file order.
func (c *Catalog) Books() []Book {
	out := make([]Book, len(c.books))
	copy(out, c.books)
	return out
}

// Len returns the number of books.
func (c *Catalog) Len() int { return len(c.books) }

// Lookup finds a book by exact title, ignoring case.
func (c *Catalog) Lookup(title string) (Book, bool) {
	i, ok := c.byTitle[strings.ToLower(title)]
	if !ok {
		return Book{}, false
	}
	return c.books[i], true
}

// Detail returns the full summary for title, or UnavailableDetail.
func (c *Catalog) Detail(title string) string {
	b, ok := c.Lookup(title)
	if !ok || b.Detail == "" {
		return UnavailableDetail
	}
	return b.Detail
}
