package catalog

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Entry is a pattern with its precomputed variations. Err is set when the
// pattern's data cannot be expanded; such entries still take part in analysis
// and produce an explicit zero result.
type Entry struct {
	Pattern    Pattern
	Variations []Variation
	Err        error
}

// Catalog is an immutable, indexed set of patterns.
type Catalog struct {
	entries []Entry
	byID    map[string]int
	version string
}

// New indexes patterns and expands each one. Duplicate ids are rejected;
// malformed patterns are kept with Entry.Err set.
func New(patterns []Pattern, maxVariations int) (*Catalog, error) {
	c := &Catalog{
		entries: make([]Entry, 0, len(patterns)),
		byID:    make(map[string]int, len(patterns)),
	}
	h := sha256.New()
	for _, p := range patterns {
		if p.ID == "" {
			return nil, fmt.Errorf("pattern %s has no id", p.Label())
		}
		if _, dup := c.byID[p.ID]; dup {
			return nil, fmt.Errorf("duplicate pattern id %q", p.ID)
		}
		variations, err := Expand(p, maxVariations)
		c.byID[p.ID] = len(c.entries)
		c.entries = append(c.entries, Entry{Pattern: p, Variations: variations, Err: err})

		data, _ := json.Marshal(p)
		h.Write(data)
	}
	c.version = hex.EncodeToString(h.Sum(nil))[:16]
	return c, nil
}

// LoadBuiltin returns a catalog built from the embedded sample card.
func LoadBuiltin() (*Catalog, error) {
	patterns, err := Builtin()
	if err != nil {
		return nil, err
	}
	return New(patterns, DefaultMaxVariations)
}

// Len returns the number of patterns.
func (c *Catalog) Len() int { return len(c.entries) }

// Version is a content hash; it changes whenever any pattern changes.
func (c *Catalog) Version() string { return c.version }

// Patterns returns every pattern in catalog order.
func (c *Catalog) Patterns() []Pattern {
	out := make([]Pattern, len(c.entries))
	for i, e := range c.entries {
		out[i] = e.Pattern
	}
	return out
}

// Get returns a pattern by id.
func (c *Catalog) Get(id string) (Pattern, bool) {
	e, ok := c.Entry(id)
	return e.Pattern, ok
}

// Entry returns the expanded entry for id.
func (c *Catalog) Entry(id string) (Entry, bool) {
	i, ok := c.byID[id]
	if !ok {
		return Entry{}, false
	}
	return c.entries[i], true
}

// Entries resolves candidate ids. An empty id list selects the whole catalog.
// Unknown ids are returned separately so callers can report them.
func (c *Catalog) Entries(ids []string) (found []Entry, unknown []string) {
	if len(ids) == 0 {
		out := make([]Entry, len(c.entries))
		copy(out, c.entries)
		return out, nil
	}
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		if e, ok := c.Entry(id); ok {
			found = append(found, e)
		} else {
			unknown = append(unknown, id)
		}
	}
	return found, unknown
}

// SetSignature identifies a candidate set within this catalog version.
func (c *Catalog) SetSignature(ids []string) string {
	if len(ids) == 0 {
		return c.version + ":*"
	}
	sorted := append([]string(nil), ids...)
	sort.Strings(sorted)
	return c.version + ":" + strings.Join(sorted, ",")
}

// Sections lists the distinct section names in catalog order.
func (c *Catalog) Sections() []string {
	var out []string
	seen := make(map[string]bool)
	for _, e := range c.entries {
		if !seen[e.Pattern.Section] {
			seen[e.Pattern.Section] = true
			out = append(out, e.Pattern.Section)
		}
	}
	return out
}
