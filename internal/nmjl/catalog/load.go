package catalog

import (
	"embed"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed data/*.json
var builtin embed.FS

// Format is a catalog file encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatFromPath infers the encoding from a file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	}
	return "", fmt.Errorf("unsupported catalog extension %q", filepath.Ext(path))
}

// ParseRecords decodes card records from r.
func ParseRecords(r io.Reader, format Format) ([]Record, error) {
	var records []Record
	switch format {
	case FormatJSON:
		if err := json.NewDecoder(r).Decode(&records); err != nil {
			return nil, fmt.Errorf("decode json catalog: %w", err)
		}
	case FormatYAML:
		if err := yaml.NewDecoder(r).Decode(&records); err != nil {
			return nil, fmt.Errorf("decode yaml catalog: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported catalog format %q", format)
	}
	return records, nil
}

// Parse decodes records and converts them to patterns. The first malformed
// record fails the parse; use ParseRecords plus Validate to report all problems.
func Parse(r io.Reader, format Format) ([]Pattern, error) {
	records, err := ParseRecords(r, format)
	if err != nil {
		return nil, err
	}
	patterns := make([]Pattern, 0, len(records))
	for i, rec := range records {
		p, err := rec.ToPattern()
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		patterns = append(patterns, p)
	}
	return patterns, nil
}

// LoadFile reads a JSON or YAML catalog from disk.
func LoadFile(path string) ([]Pattern, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	defer f.Close()
	return Parse(f, format)
}

// Builtin returns the sample card shipped with the binary.
func Builtin() ([]Pattern, error) {
	f, err := builtin.Open("data/sample_card.json")
	if err != nil {
		return nil, fmt.Errorf("open builtin catalog: %w", err)
	}
	defer f.Close()
	return Parse(f, FormatJSON)
}

// WriteFile writes patterns in the card export format.
func WriteFile(path string, patterns []Pattern) error {
	format, err := FormatFromPath(path)
	if err != nil {
		return err
	}
	records := make([]Record, len(patterns))
	for i, p := range patterns {
		records[i] = FromPattern(p)
	}

	var data []byte
	switch format {
	case FormatJSON:
		data, err = json.MarshalIndent(records, "", "  ")
	case FormatYAML:
		data, err = yaml.Marshal(records)
	}
	if err != nil {
		return fmt.Errorf("encode catalog: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write catalog: %w", err)
	}
	return nil
}
