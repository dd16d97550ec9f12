package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ramonehamilton/NMJL-Companion/internal/nmjl/catalog"
	"github.com/ramonehamilton/NMJL-Companion/internal/storage/models"
)

// PatternRepository stores the pattern catalog.
type PatternRepository interface {
	// ReplaceAll swaps the stored catalog for patterns in one transaction
	// and records the import.
	ReplaceAll(ctx context.Context, patterns []catalog.Pattern, version, source string) error

	// List returns every stored pattern in catalog order.
	List(ctx context.Context) ([]catalog.Pattern, error)

	// Get returns one pattern, or nil if it does not exist.
	Get(ctx context.Context, id string) (*catalog.Pattern, error)

	// Count returns the number of stored patterns.
	Count(ctx context.Context) (int, error)

	// LatestImport returns the most recent import, or nil if the store is empty.
	LatestImport(ctx context.Context) (*models.CatalogImport, error)
}

type patternRepository struct {
	db *sql.DB
}

// NewPatternRepository creates a new pattern repository.
func NewPatternRepository(db *sql.DB) PatternRepository {
	return &patternRepository{db: db}
}

func (r *patternRepository) ReplaceAll(ctx context.Context, patterns []catalog.Pattern, version, source string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM pattern_groups"); err != nil {
		return fmt.Errorf("failed to clear pattern groups: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM patterns"); err != nil {
		return fmt.Errorf("failed to clear patterns: %w", err)
	}

	patternStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO patterns (id, position, number, year, section, line, display, description, points, difficulty, concealed_only)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare pattern insert: %w", err)
	}
	defer func() { _ = patternStmt.Close() }()

	groupStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO pattern_groups (pattern_id, position, group_id, kind, suit_role, constraint_values, jokers_allowed, must_match, display_color)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare group insert: %w", err)
	}
	defer func() { _ = groupStmt.Close() }()

	for i, p := range patterns {
		_, err := patternStmt.ExecContext(ctx,
			p.ID, i, p.Number, p.Year, p.Section, p.Line, p.Display, p.Description, p.Points, p.Difficulty, p.ConcealedOnly,
		)
		if err != nil {
			return fmt.Errorf("failed to insert pattern %s: %w", p.ID, err)
		}
		for j, g := range p.Groups {
			_, err := groupStmt.ExecContext(ctx,
				p.ID, j, g.ID, g.Kind.String(), g.SuitRole, g.Values, g.JokersAllowed, g.MustMatch, g.DisplayColor,
			)
			if err != nil {
				return fmt.Errorf("failed to insert group %s of pattern %s: %w", g.ID, p.ID, err)
			}
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO catalog_imports (version, source, patterns, imported_at) VALUES (?, ?, ?, ?)
	`, version, source, len(patterns), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to record catalog import: %w", err)
	}

	return tx.Commit()
}

func (r *patternRepository) List(ctx context.Context) ([]catalog.Pattern, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, number, year, section, line, display, description, points, difficulty, concealed_only
		FROM patterns
		ORDER BY position
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query patterns: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var patterns []catalog.Pattern
	index := make(map[string]int)
	for rows.Next() {
		p, err := scanPattern(rows)
		if err != nil {
			return nil, err
		}
		index[p.ID] = len(patterns)
		patterns = append(patterns, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating patterns: %w", err)
	}

	groups, err := r.groups(ctx, "")
	if err != nil {
		return nil, err
	}
	for id, gs := range groups {
		if i, ok := index[id]; ok {
			patterns[i].Groups = gs
		}
	}
	return patterns, nil
}

func (r *patternRepository) Get(ctx context.Context, id string) (*catalog.Pattern, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, number, year, section, line, display, description, points, difficulty, concealed_only
		FROM patterns
		WHERE id = ?
	`, id)
	p, err := scanPattern(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	groups, err := r.groups(ctx, id)
	if err != nil {
		return nil, err
	}
	p.Groups = groups[id]
	return &p, nil
}

func (r *patternRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM patterns").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count patterns: %w", err)
	}
	return n, nil
}

func (r *patternRepository) LatestImport(ctx context.Context) (*models.CatalogImport, error) {
	imp := &models.CatalogImport{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, version, source, patterns, imported_at
		FROM catalog_imports
		ORDER BY id DESC
		LIMIT 1
	`).Scan(&imp.ID, &imp.Version, &imp.Source, &imp.Patterns, &imp.ImportedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest catalog import: %w", err)
	}
	return imp, nil
}

// groups loads groups keyed by pattern id; an empty id loads every pattern's.
func (r *patternRepository) groups(ctx context.Context, patternID string) (map[string][]catalog.Group, error) {
	query := `
		SELECT pattern_id, group_id, kind, suit_role, constraint_values, jokers_allowed, must_match, display_color
		FROM pattern_groups
	`
	var args []any
	if patternID != "" {
		query += " WHERE pattern_id = ?"
		args = append(args, patternID)
	}
	query += " ORDER BY pattern_id, position"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query pattern groups: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	out := make(map[string][]catalog.Group)
	for rows.Next() {
		var (
			owner, kind string
			g           catalog.Group
		)
		if err := rows.Scan(&owner, &g.ID, &kind, &g.SuitRole, &g.Values, &g.JokersAllowed, &g.MustMatch, &g.DisplayColor); err != nil {
			return nil, fmt.Errorf("failed to scan pattern group: %w", err)
		}
		if g.Kind, err = catalog.ParseKind(kind); err != nil {
			return nil, fmt.Errorf("pattern %s group %s: %w", owner, g.ID, err)
		}
		out[owner] = append(out[owner], g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating pattern groups: %w", err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPattern(s scanner) (catalog.Pattern, error) {
	var p catalog.Pattern
	err := s.Scan(&p.ID, &p.Number, &p.Year, &p.Section, &p.Line, &p.Display, &p.Description, &p.Points, &p.Difficulty, &p.ConcealedOnly)
	if err == sql.ErrNoRows {
		return p, err
	}
	if err != nil {
		return p, fmt.Errorf("failed to scan pattern: %w", err)
	}
	return p, nil
}
