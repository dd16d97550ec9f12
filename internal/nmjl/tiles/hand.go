package tiles

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Hand is an immutable multiset of tiles keyed by canonical id.
type Hand struct {
	counts map[string]int
	size   int
}

// NewHand parses tile ids into a hand. Unknown ids fail the whole hand.
func NewHand(ids []string) (Hand, error) {
	h := Hand{counts: make(map[string]int, len(ids))}
	for _, id := range ids {
		t, err := Parse(id)
		if err != nil {
			return Hand{}, err
		}
		h.counts[t.ID]++
		h.size++
	}
	return h, nil
}

// ParseHand is the lenient form of NewHand: ids that fail to parse are
// returned in input order instead of failing the hand.
func ParseHand(ids []string) (Hand, []string) {
	h := Hand{counts: make(map[string]int, len(ids))}
	var bad []string
	for _, id := range ids {
		t, err := Parse(id)
		if err != nil {
			bad = append(bad, id)
			continue
		}
		h.counts[t.ID]++
		h.size++
	}
	return h, bad
}

// MustHand is NewHand for fixtures.
func MustHand(ids ...string) Hand {
	h, err := NewHand(ids)
	if err != nil {
		panic(err)
	}
	return h
}

// FromCounts builds a hand from canonical id counts. Non-positive counts are dropped.
func FromCounts(counts map[string]int) Hand {
	h := Hand{counts: make(map[string]int, len(counts))}
	for id, n := range counts {
		if n > 0 {
			h.counts[id] = n
			h.size += n
		}
	}
	return h
}

// Size returns the number of tiles held.
func (h Hand) Size() int { return h.size }

// Count returns how many copies of id are held.
func (h Hand) Count(id string) int { return h.counts[id] }

// Jokers returns the joker count.
func (h Hand) Jokers() int { return h.counts[Joker] }

// Counts returns a copy of the id counts.
func (h Hand) Counts() map[string]int {
	out := make(map[string]int, len(h.counts))
	for id, n := range h.counts {
		out[id] = n
	}
	return out
}

// NaturalCounts returns the counts without jokers.
func (h Hand) NaturalCounts() map[string]int {
	out := h.Counts()
	delete(out, Joker)
	return out
}

// Distinct returns the distinct tile ids held, in display order.
func (h Hand) Distinct() []string {
	ids := make([]string, 0, len(h.counts))
	for id := range h.counts {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return Less(ids[i], ids[j]) })
	return ids
}

// Tiles expands the hand into a sorted id slice.
func (h Hand) Tiles() []string {
	out := make([]string, 0, h.size)
	for _, id := range h.Distinct() {
		for i := 0; i < h.counts[id]; i++ {
			out = append(out, id)
		}
	}
	return out
}

// With returns a new hand with one more copy of id.
func (h Hand) With(id string) Hand {
	c := h.Counts()
	c[id]++
	return FromCounts(c)
}

// Without returns a new hand with one copy of id removed.
func (h Hand) Without(id string) (Hand, error) {
	if h.counts[id] == 0 {
		return h, fmt.Errorf("tile %s not in hand", id)
	}
	c := h.Counts()
	c[id]--
	return FromCounts(c), nil
}

// Signature is a stable, order-independent encoding of the hand, e.g. "1D:3,5B:1,joker:1".
func (h Hand) Signature() string {
	var b strings.Builder
	for i, id := range h.Distinct() {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(id)
		b.WriteByte(':')
		b.WriteString(strconv.Itoa(h.counts[id]))
	}
	return b.String()
}

// String renders the hand for logs.
func (h Hand) String() string {
	return "[" + strings.Join(h.Tiles(), " ") + "]"
}
