package catalog

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"unicode"

	"github.com/ramonehamilton/NMJL-Companion/internal/nmjl/analysis"
	"github.com/ramonehamilton/NMJL-Companion/internal/nmjl/tiles"
)

// DefaultMaxVariations bounds how many concrete variations one pattern may expand to.
// Six suit permutations times nine like-number values is the largest shape on a card.
const DefaultMaxVariations = 216

// ConstraintError reports pattern data that cannot be turned into tiles.
type ConstraintError struct {
	PatternID string
	GroupID   string
	Value     string
	Reason    string
}

func (e *ConstraintError) Error() string {
	switch {
	case e.GroupID != "" && e.Value != "":
		return fmt.Sprintf("pattern %s group %s: %s (%q)", e.PatternID, e.GroupID, e.Reason, e.Value)
	case e.GroupID != "":
		return fmt.Sprintf("pattern %s group %s: %s", e.PatternID, e.GroupID, e.Reason)
	}
	return fmt.Sprintf("pattern %s: %s", e.PatternID, e.Reason)
}

// Unwrap lets callers match with errors.Is(err, analysis.ErrInvalidPattern).
func (e *ConstraintError) Unwrap() error { return analysis.ErrInvalidPattern }

// Slot is one tile position in a concrete variation.
type Slot struct {
	GroupID       string `json:"groupId"`
	TileID        string `json:"tileId"`
	JokerEligible bool   `json:"jokerEligible"`
}

// Variation is a pattern with every suit role and value choice fixed.
type Variation struct {
	ID        string            `json:"id"`
	PatternID string            `json:"patternId"`
	Suits     map[string]string `json:"suits,omitempty"`
	Values    map[string]string `json:"values,omitempty"`
	Slots     []Slot            `json:"slots"`
}

// Tiles returns the slot tile ids in card order.
func (v Variation) Tiles() []string {
	out := make([]string, len(v.Slots))
	for i, s := range v.Slots {
		out[i] = s.TileID
	}
	return out
}

// TileCounts returns the required copies per tile id.
func (v Variation) TileCounts() map[string]int {
	out := make(map[string]int)
	for _, s := range v.Slots {
		out[s.TileID]++
	}
	return out
}

// JokerSlots returns how many slots a joker may fill.
func (v Variation) JokerSlots() int {
	n := 0
	for _, s := range v.Slots {
		if s.JokerEligible {
			n++
		}
	}
	return n
}

type valueChoice struct {
	key     string
	options []string
}

// Expand enumerates the concrete variations of p: every permutation of the
// numbered suits over its suit roles, times every combination of its value
// choices. Variations one tile set cannot build are skipped, duplicates are
// dropped, and at most limit are returned (limit <= 0 means
// DefaultMaxVariations).
func Expand(p Pattern, limit int) ([]Variation, error) {
	if limit <= 0 {
		limit = DefaultMaxVariations
	}
	if len(p.Groups) == 0 {
		return nil, &ConstraintError{PatternID: p.ID, Reason: "pattern has no groups"}
	}

	roles := suitRoles(p)
	if len(roles) > len(tiles.NumberedSuits) {
		return nil, &ConstraintError{PatternID: p.ID, Reason: fmt.Sprintf("pattern needs %d distinct suits", len(roles))}
	}
	assignments := suitAssignments(roles)
	combos := valueCombinations(valueChoices(p))

	seen := make(map[string]bool)
	var out []Variation
	for _, suits := range assignments {
		for _, values := range combos {
			slots, err := buildSlots(p, suits, values)
			if err != nil {
				return nil, err
			}
			if exceedsSupply(slots) {
				continue
			}
			sig := slotSignature(slots)
			if seen[sig] {
				continue
			}
			seen[sig] = true

			out = append(out, Variation{
				ID:        variationID(p.ID, suits, values),
				PatternID: p.ID,
				Suits:     suitNames(suits),
				Values:    values,
				Slots:     slots,
			})
			if len(out) >= limit {
				return out, nil
			}
		}
	}

	if len(out) == 0 {
		return nil, &ConstraintError{PatternID: p.ID, Reason: "no playable variation within the tile supply"}
	}
	return out, nil
}

// ExpandAll expands every pattern, keyed by id. Patterns that cannot be
// expanded are left out and their errors joined.
func ExpandAll(patterns []Pattern, limit int) (map[string][]Variation, error) {
	out := make(map[string][]Variation, len(patterns))
	var errs []error
	for _, p := range patterns {
		variations, err := Expand(p, limit)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		out[p.ID] = variations
	}
	return out, errors.Join(errs...)
}

// suitRoles returns the distinct roles that draw their own suit, sorted.
func suitRoles(p Pattern) []string {
	set := make(map[string]bool)
	for _, g := range p.Groups {
		if g.baseRole() {
			set[g.SuitRole] = true
		}
	}
	roles := make([]string, 0, len(set))
	for r := range set {
		roles = append(roles, r)
	}
	sort.Strings(roles)
	return roles
}

// suitAssignments returns every injective mapping of roles onto the numbered suits.
func suitAssignments(roles []string) []map[string]tiles.Suit {
	if len(roles) == 0 {
		return []map[string]tiles.Suit{{}}
	}
	var out []map[string]tiles.Suit
	used := make(map[tiles.Suit]bool)
	current := make(map[string]tiles.Suit, len(roles))

	var walk func(i int)
	walk = func(i int) {
		if i == len(roles) {
			assignment := make(map[string]tiles.Suit, len(current))
			for k, v := range current {
				assignment[k] = v
			}
			out = append(out, assignment)
			return
		}
		for _, s := range tiles.NumberedSuits {
			if used[s] {
				continue
			}
			used[s] = true
			current[roles[i]] = s
			walk(i + 1)
			delete(current, roles[i])
			used[s] = false
		}
	}
	walk(0)
	return out
}

func choiceKey(g Group) string {
	if g.MustMatch != "" {
		return "match:" + g.MustMatch
	}
	return "group:" + g.ID
}

// choiceOptions returns the alternatives a non-sequence group may take, or nil
// when its value is fixed.
func choiceOptions(g Group) []string {
	if g.Kind == KindSequence {
		return nil
	}
	v := strings.TrimSpace(g.Values)
	switch strings.ToLower(v) {
	case "wind", "winds":
		return append([]string(nil), tiles.Winds...)
	case "dragon", "dragons":
		return append([]string(nil), tiles.Dragons...)
	}
	if strings.Contains(v, ",") {
		var opts []string
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				opts = append(opts, part)
			}
		}
		if len(opts) > 1 {
			return opts
		}
	}
	return nil
}

func valueChoices(p Pattern) []valueChoice {
	var out []valueChoice
	index := make(map[string]bool)
	for _, g := range p.Groups {
		opts := choiceOptions(g)
		if opts == nil {
			continue
		}
		key := choiceKey(g)
		if index[key] {
			continue
		}
		index[key] = true
		out = append(out, valueChoice{key: key, options: opts})
	}
	return out
}

func valueCombinations(choices []valueChoice) []map[string]string {
	combos := []map[string]string{{}}
	for _, c := range choices {
		next := make([]map[string]string, 0, len(combos)*len(c.options))
		for _, base := range combos {
			for _, opt := range c.options {
				m := make(map[string]string, len(base)+1)
				for k, v := range base {
					m[k] = v
				}
				m[c.key] = opt
				next = append(next, m)
			}
		}
		combos = next
	}
	return combos
}

func buildSlots(p Pattern, suits map[string]tiles.Suit, values map[string]string) ([]Slot, error) {
	slots := make([]Slot, 0, tiles.HandSize)
	for _, g := range p.Groups {
		suit, hasSuit, err := groupSuit(p, g, suits, 0)
		if err != nil {
			return nil, err
		}
		eligible := g.JokerEligible()

		if g.Kind == KindSequence {
			tokens := sequenceTokens(g.Values)
			if len(tokens) == 0 {
				return nil, &ConstraintError{PatternID: p.ID, GroupID: g.ID, Reason: "empty sequence"}
			}
			for _, tok := range tokens {
				id, err := resolveToken(tok, suit, hasSuit)
				if err != nil {
					return nil, &ConstraintError{PatternID: p.ID, GroupID: g.ID, Value: tok, Reason: err.Error()}
				}
				slots = append(slots, Slot{GroupID: g.ID, TileID: id, JokerEligible: false})
			}
			continue
		}

		size := g.Kind.Size()
		if size == 0 {
			return nil, &ConstraintError{PatternID: p.ID, GroupID: g.ID, Reason: "unknown constraint type"}
		}
		token := g.Values
		if v, ok := values[choiceKey(g)]; ok {
			token = v
		}
		id, err := resolveToken(token, suit, hasSuit)
		if err != nil {
			return nil, &ConstraintError{PatternID: p.ID, GroupID: g.ID, Value: token, Reason: err.Error()}
		}
		for i := 0; i < size; i++ {
			slots = append(slots, Slot{GroupID: g.ID, TileID: id, JokerEligible: eligible})
		}
	}
	return slots, nil
}

func groupSuit(p Pattern, g Group, suits map[string]tiles.Suit, depth int) (tiles.Suit, bool, error) {
	if depth > len(p.Groups) {
		return 0, false, &ConstraintError{PatternID: p.ID, GroupID: g.ID, Reason: "circular same_as reference"}
	}
	if ref, ok := g.SameAs(); ok {
		target, found := p.Group(ref)
		if !found {
			return 0, false, &ConstraintError{PatternID: p.ID, GroupID: g.ID, Value: g.SuitRole, Reason: "unresolved same_as reference"}
		}
		return groupSuit(p, target, suits, depth+1)
	}
	if !g.baseRole() {
		return 0, false, nil
	}
	s, ok := suits[g.SuitRole]
	return s, ok, nil
}

// sequenceTokens splits sequence values into tile tokens. "2,0,2,5" and "2025"
// both yield four tokens; "NEWS" yields one per wind.
func sequenceTokens(values string) []string {
	v := strings.TrimSpace(values)
	if v == "" {
		return nil
	}
	if strings.Contains(v, ",") {
		var out []string
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
		return out
	}
	if len(v) > 1 && perCharacter(v) {
		out := make([]string, 0, len(v))
		for _, r := range v {
			out = append(out, string(r))
		}
		return out
	}
	return []string{v}
}

func perCharacter(v string) bool {
	for _, r := range v {
		if unicode.IsDigit(r) {
			continue
		}
		if !strings.ContainsRune("NEWSRGF", r) {
			return false
		}
	}
	return true
}

func resolveToken(token string, suit tiles.Suit, hasSuit bool) (string, error) {
	t := strings.ToLower(strings.TrimSpace(token))
	if t == "" {
		return "", fmt.Errorf("empty value")
	}
	if len(t) == 1 && t[0] >= '1' && t[0] <= '9' {
		if !hasSuit {
			return "", fmt.Errorf("numbered value without a suit role")
		}
		return tiles.Numbered(int(t[0]-'0'), suit).ID, nil
	}
	if t == "d" || t == "matching_dragon" {
		if !hasSuit {
			return "", fmt.Errorf("matching dragon without a suit role")
		}
		id, _ := tiles.DragonFor(suit)
		return id, nil
	}
	if t == "flowers" {
		return tiles.Flower, nil
	}
	parsed, err := tiles.Parse(t)
	if err != nil {
		return "", fmt.Errorf("unknown constraint value")
	}
	if parsed.IsJoker() {
		return "", fmt.Errorf("jokers cannot be a required tile")
	}
	return parsed.ID, nil
}

// exceedsSupply reports whether a variation cannot be built from one tile set:
// joker-forbidden slots must be covered by naturals alone, and every slot of a
// tile together must fit within its copies plus the jokers.
func exceedsSupply(slots []Slot) bool {
	natural := make(map[string]int)
	total := make(map[string]int)
	for _, s := range slots {
		total[s.TileID]++
		if !s.JokerEligible {
			natural[s.TileID]++
		}
	}
	for id, n := range total {
		t, ok := tiles.Lookup(id)
		if !ok || natural[id] > t.Supply() || n > t.Supply()+tiles.JokerCopies {
			return true
		}
	}
	return false
}

func slotSignature(slots []Slot) string {
	parts := make([]string, len(slots))
	for i, s := range slots {
		parts[i] = s.GroupID + ":" + s.TileID
	}
	sort.Strings(parts)
	return strings.Join(parts, ",")
}

func suitNames(suits map[string]tiles.Suit) map[string]string {
	if len(suits) == 0 {
		return nil
	}
	out := make(map[string]string, len(suits))
	for role, s := range suits {
		out[role] = s.String()
	}
	return out
}

func variationID(patternID string, suits map[string]tiles.Suit, values map[string]string) string {
	var parts []string
	for _, role := range sortedKeys(suits) {
		parts = append(parts, role+"="+suits[role].Letter())
	}
	for _, key := range sortedKeys(values) {
		parts = append(parts, strings.TrimPrefix(strings.TrimPrefix(key, "group:"), "match:")+"="+values[key])
	}
	if len(parts) == 0 {
		return patternID + "/base"
	}
	return patternID + "/" + strings.Join(parts, ",")
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
