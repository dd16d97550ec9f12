package models

import "time"

// CatalogImport records one replacement of the stored pattern catalog.
type CatalogImport struct {
	ID         int64     `json:"id"`
	Version    string    `json:"version"` // catalog content hash
	Source     string    `json:"source"`  // file path or "builtin"
	Patterns   int       `json:"patterns"`
	ImportedAt time.Time `json:"importedAt"`
}
