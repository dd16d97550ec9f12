package catalog

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuiltinCatalog(t *testing.T) {
	patterns, err := Builtin()
	require.NoError(t, err)
	require.NotEmpty(t, patterns)

	report := Validate(patterns, DefaultMaxVariations)
	assert.True(t, report.OK(), "builtin card should validate: %+v", report)
	assert.Equal(t, len(patterns), report.ValidPatterns)
	assert.Greater(t, report.Variations, len(patterns))

	c, err := New(patterns, DefaultMaxVariations)
	require.NoError(t, err)
	all, unknown := c.Entries(nil)
	assert.Empty(t, unknown)
	assert.Len(t, all, c.Len())
	for _, e := range all {
		assert.NoError(t, e.Err, "pattern %s", e.Pattern.ID)
		assert.NotEmpty(t, e.Variations, "pattern %s", e.Pattern.ID)
	}

	p, ok := c.Get("2025-1")
	require.True(t, ok)
	assert.Equal(t, "2025", p.Section)
	assert.Equal(t, 25, p.Points)
	assert.Contains(t, c.Sections(), "Winds-Dragons")
}

func TestCatalogNew(t *testing.T) {
	p := yearPattern()

	_, err := New([]Pattern{p, p}, 0)
	assert.Error(t, err, "duplicate ids are rejected")

	_, err = New([]Pattern{{Section: "x"}}, 0)
	assert.Error(t, err, "missing id is rejected")

	broken := Pattern{ID: "broken", Groups: []Group{{ID: "G1", Kind: KindPung, SuitRole: "same_as:nope", Values: "1"}}}
	c, err := New([]Pattern{p, broken}, 0)
	require.NoError(t, err, "malformed patterns are kept")
	e, ok := c.Entry("broken")
	require.True(t, ok)
	assert.Error(t, e.Err)

	found, unknown := c.Entries([]string{"2025-1", "missing", "2025-1"})
	assert.Len(t, found, 1)
	assert.Equal(t, []string{"missing"}, unknown)
}

func TestCatalogSignatures(t *testing.T) {
	a, err := New([]Pattern{yearPattern()}, 0)
	require.NoError(t, err)
	b, err := New([]Pattern{yearPattern()}, 0)
	require.NoError(t, err)
	assert.Equal(t, a.Version(), b.Version(), "version is a content hash")

	changed := yearPattern()
	changed.Points = 50
	c, err := New([]Pattern{changed}, 0)
	require.NoError(t, err)
	assert.NotEqual(t, a.Version(), c.Version())

	assert.Equal(t, a.SetSignature([]string{"b", "a"}), a.SetSignature([]string{"a", "b"}))
	assert.NotEqual(t, a.SetSignature(nil), a.SetSignature([]string{"a"}))
}

func TestParseJSONRecords(t *testing.T) {
	data := `[{
		"Pattern ID": 3,
		"Section": "2025",
		"Line": 3,
		"Hand_Pattern": "FFFF 2025 222 222",
		"Hand_Points": 25,
		"Hand_Conceiled": false,
		"Groups": [
			{"Group": 1, "Suit_Role": "none", "Constraint_Type": "kong", "Constraint_Values": "flower"},
			{"Group": 2, "Suit_Role": "any", "Constraint_Type": "sequence", "Constraint_Values": 2025, "Jokers_Allowed": false},
			{"Group": 3, "Suit_Role": "second", "Constraint_Type": "pung", "Constraint_Values": "2"},
			{"Group": 4, "Suit_Role": "third", "Constraint_Type": "pung", "Constraint_Values": "2", "Constraint_Must_Match": null}
		]
	}]`

	patterns, err := Parse(strings.NewReader(data), FormatJSON)
	require.NoError(t, err)
	require.Len(t, patterns, 1)

	p := patterns[0]
	assert.Equal(t, "3", p.ID, "falls back to the numeric id")
	assert.Equal(t, "2025", p.Groups[1].Values)
	assert.Equal(t, "1", p.Groups[0].ID)
	assert.True(t, p.Groups[0].JokersAllowed, "jokers default to allowed")
	assert.False(t, p.Groups[1].JokersAllowed)

	_, err = Parse(strings.NewReader(`[{"Groups":[{"Constraint_Type":"triple"}]}]`), FormatJSON)
	assert.Error(t, err)
}

func TestParseYAMLRecords(t *testing.T) {
	data := `
- Pattern ID: 13
  Section: Winds-Dragons
  Line: 1
  Hands_Key: winds-1
  Hand_Pattern: NNNN EEE WWW SSSS
  Hand_Points: 25
  Groups:
    - {Group: G1, Constraint_Type: kong, Constraint_Values: north}
    - {Group: G2, Constraint_Type: pung, Constraint_Values: east}
    - {Group: G3, Constraint_Type: pung, Constraint_Values: west}
    - {Group: G4, Constraint_Type: kong, Constraint_Values: south}
`
	patterns, err := Parse(strings.NewReader(data), FormatYAML)
	require.NoError(t, err)
	require.Len(t, patterns, 1)
	assert.Equal(t, "winds-1", patterns[0].ID)
	assert.Equal(t, RoleNone, patterns[0].Groups[0].SuitRole)

	variations, err := Expand(patterns[0], 0)
	require.NoError(t, err)
	assert.Len(t, variations, 1)
}

func TestWriteAndLoadFile(t *testing.T) {
	patterns, err := Builtin()
	require.NoError(t, err)

	dir := t.TempDir()
	for _, name := range []string{"card.json", "card.yaml"} {
		path := filepath.Join(dir, name)
		require.NoError(t, WriteFile(path, patterns))

		loaded, err := LoadFile(path)
		require.NoError(t, err, name)
		require.Len(t, loaded, len(patterns))
		assert.Equal(t, patterns[0].Groups, loaded[0].Groups, name)
	}

	_, err = LoadFile(filepath.Join(dir, "card.txt"))
	assert.Error(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.json"), []byte("{"), 0o644))
	_, err = LoadFile(filepath.Join(dir, "bad.json"))
	assert.Error(t, err)
}
