package extension

import (
	"strings"
)

// Catalog is the ordered list of extension ids discovered at startup.
type Catalog struct {
	ids []string
}

// NewCatalog builds a catalog from ids. Blank and duplicate entries are
// dropped; the first occurrence keeps its position.
func NewCatalog(ids ...string) *Catalog {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return &Catalog{ids: out}
}

// IDs returns the catalogued ids in load order.
func (c *Catalog) IDs() []string {
	out := make([]string, len(c.ids))
	copy(out, c.ids)
	return out
}

// Len returns the number of catalogued ids.
func (c *Catalog) Len() int { return len(c.ids) }

// Empty reports whether nothing was discovered.
func (c *Catalog) Empty() bool { return len(c.ids) == 0 }
