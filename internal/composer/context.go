package composer

import (
	"fmt"
	"strings"

	"github.com/kalambet/librarian/internal/retrieval"
)

// BuildContext turns ranked hits into the allowed title list and the context
// block shown to the model. Allowed titles keep rank order, skip empty
// titles and drop exact duplicates after their first occurrence. The block
// has one "[#rank] title\ndocument" entry per hit, separated by blank lines.
func BuildContext(hits []retrieval.Hit) (allowed []string, block string) {
	seen := make(map[string]bool, len(hits))
	entries := make([]string, 0, len(hits))
	for i, h := range hits {
		if h.Title != "" && !seen[h.Title] {
			seen[h.Title] = true
			allowed = append(allowed, h.Title)
		}
		entries = append(entries, fmt.Sprintf("[#%d] %s\n%s", i+1, h.Title, h.Document))
	}
	return allowed, strings.Join(entries, "\n\n")
}
