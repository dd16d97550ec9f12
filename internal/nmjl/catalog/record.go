package catalog

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Record is one pattern as published in the card spreadsheet export.
// Field names follow that export so files convert without remapping.
type Record struct {
	PatternID       int           `json:"Pattern ID" yaml:"Pattern ID"`
	Year            int           `json:"Year,omitempty" yaml:"Year,omitempty"`
	Section         string        `json:"Section" yaml:"Section"`
	Line            int           `json:"Line" yaml:"Line"`
	HandsKey        string        `json:"Hands_Key" yaml:"Hands_Key"`
	HandPattern     string        `json:"Hand_Pattern" yaml:"Hand_Pattern"`
	HandDescription string        `json:"Hand_Description,omitempty" yaml:"Hand_Description,omitempty"`
	HandPoints      int           `json:"Hand_Points" yaml:"Hand_Points"`
	HandConcealed   bool          `json:"Hand_Conceiled" yaml:"Hand_Conceiled"`
	HandDifficulty  string        `json:"Hand_Difficulty,omitempty" yaml:"Hand_Difficulty,omitempty"`
	Groups          []GroupRecord `json:"Groups" yaml:"Groups"`
}

// GroupRecord is one group of a Record.
type GroupRecord struct {
	Group               FlexString `json:"Group" yaml:"Group"`
	SuitRole            string     `json:"Suit_Role,omitempty" yaml:"Suit_Role,omitempty"`
	ConstraintType      string     `json:"Constraint_Type" yaml:"Constraint_Type"`
	ConstraintValues    FlexString `json:"Constraint_Values" yaml:"Constraint_Values"`
	JokersAllowed       *bool      `json:"Jokers_Allowed,omitempty" yaml:"Jokers_Allowed,omitempty"`
	ConstraintMustMatch FlexString `json:"Constraint_Must_Match,omitempty" yaml:"Constraint_Must_Match,omitempty"`
	DisplayColor        string     `json:"Display_Color,omitempty" yaml:"Display_Color,omitempty"`
}

// FlexString accepts a JSON/YAML string, number or null. Card exports write
// year groups as the bare number 2025 and group names as small integers.
type FlexString string

// UnmarshalJSON implements json.Unmarshaler.
func (f *FlexString) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" {
		*f = ""
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		*f = FlexString(str)
		return nil
	}
	if _, err := strconv.ParseFloat(s, 64); err != nil {
		return fmt.Errorf("flex string: unsupported value %s", s)
	}
	*f = FlexString(s)
	return nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (f *FlexString) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("flex string: expected scalar at line %d", value.Line)
	}
	if value.Tag == "!!null" {
		*f = ""
		return nil
	}
	*f = FlexString(value.Value)
	return nil
}

// ToPattern converts a record into the engine's pattern model.
func (r Record) ToPattern() (Pattern, error) {
	id := strings.TrimSpace(r.HandsKey)
	if id == "" {
		if r.PatternID > 0 {
			id = strconv.Itoa(r.PatternID)
		} else {
			id = fmt.Sprintf("%s-%d", strings.ToLower(strings.ReplaceAll(r.Section, " ", "-")), r.Line)
		}
	}

	p := Pattern{
		ID:            id,
		Number:        r.PatternID,
		Year:          r.Year,
		Section:       r.Section,
		Line:          r.Line,
		Display:       r.HandPattern,
		Description:   r.HandDescription,
		Points:        r.HandPoints,
		Difficulty:    strings.ToLower(r.HandDifficulty),
		ConcealedOnly: r.HandConcealed,
		Groups:        make([]Group, 0, len(r.Groups)),
	}

	for i, gr := range r.Groups {
		kind, err := ParseKind(gr.ConstraintType)
		if err != nil {
			return p, &ConstraintError{PatternID: id, GroupID: string(gr.Group), Value: gr.ConstraintType, Reason: "unknown constraint type"}
		}
		groupID := strings.TrimSpace(string(gr.Group))
		if groupID == "" {
			groupID = "G" + strconv.Itoa(i+1)
		}
		role := strings.TrimSpace(gr.SuitRole)
		if role == "" {
			role = RoleNone
		}
		jokers := true
		if gr.JokersAllowed != nil {
			jokers = *gr.JokersAllowed
		}
		p.Groups = append(p.Groups, Group{
			ID:            groupID,
			Kind:          kind,
			SuitRole:      role,
			Values:        string(gr.ConstraintValues),
			JokersAllowed: jokers,
			MustMatch:     strings.TrimSpace(string(gr.ConstraintMustMatch)),
			DisplayColor:  gr.DisplayColor,
		})
	}
	return p, nil
}

// FromPattern converts a pattern back into the export format.
func FromPattern(p Pattern) Record {
	r := Record{
		PatternID:       p.Number,
		Year:            p.Year,
		Section:         p.Section,
		Line:            p.Line,
		HandsKey:        p.ID,
		HandPattern:     p.Display,
		HandDescription: p.Description,
		HandPoints:      p.Points,
		HandConcealed:   p.ConcealedOnly,
		HandDifficulty:  p.Difficulty,
	}
	for _, g := range p.Groups {
		allowed := g.JokersAllowed
		r.Groups = append(r.Groups, GroupRecord{
			Group:               FlexString(g.ID),
			SuitRole:            g.SuitRole,
			ConstraintType:      g.Kind.String(),
			ConstraintValues:    FlexString(g.Values),
			JokersAllowed:       &allowed,
			ConstraintMustMatch: FlexString(g.MustMatch),
			DisplayColor:        g.DisplayColor,
		})
	}
	return r
}
