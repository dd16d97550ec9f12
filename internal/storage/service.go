package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ramonehamilton/NMJL-Companion/internal/nmjl/catalog"
	"github.com/ramonehamilton/NMJL-Companion/internal/storage/models"
	"github.com/ramonehamilton/NMJL-Companion/internal/storage/repository"
)

// ErrNoCatalog is returned by LoadCatalog when no catalog has been imported.
var ErrNoCatalog = errors.New("no catalog stored")

// Service provides high-level operations over the catalog store and run log.
type Service struct {
	db       *DB
	patterns repository.PatternRepository
	runs     repository.RunRepository
}

// NewService creates a new storage service.
func NewService(db *DB) *Service {
	return &Service{
		db:       db,
		patterns: repository.NewPatternRepository(db.Conn()),
		runs:     repository.NewRunRepository(db.Conn()),
	}
}

// Patterns returns the pattern repository.
func (s *Service) Patterns() repository.PatternRepository { return s.patterns }

// Runs returns the run repository.
func (s *Service) Runs() repository.RunRepository { return s.runs }

// SaveCatalog replaces the stored catalog with cat.
func (s *Service) SaveCatalog(ctx context.Context, cat *catalog.Catalog, source string) error {
	if err := s.patterns.ReplaceAll(ctx, cat.Patterns(), cat.Version(), source); err != nil {
		return fmt.Errorf("failed to save catalog: %w", err)
	}
	return nil
}

// LoadCatalog builds a catalog from the stored patterns.
func (s *Service) LoadCatalog(ctx context.Context, maxVariations int) (*catalog.Catalog, error) {
	patterns, err := s.patterns.List(ctx)
	if err != nil {
		return nil, err
	}
	if len(patterns) == 0 {
		return nil, ErrNoCatalog
	}
	cat, err := catalog.New(patterns, maxVariations)
	if err != nil {
		return nil, fmt.Errorf("failed to build stored catalog: %w", err)
	}
	return cat, nil
}

// LatestImport returns the most recent catalog import, or nil.
func (s *Service) LatestImport(ctx context.Context) (*models.CatalogImport, error) {
	return s.patterns.LatestImport(ctx)
}

// RecordRun appends a run to the log.
func (s *Service) RecordRun(ctx context.Context, run *models.AnalysisRun) error {
	return s.runs.Create(ctx, run)
}

// RecentRuns returns the newest runs first.
func (s *Service) RecentRuns(ctx context.Context, limit int) ([]*models.AnalysisRun, error) {
	return s.runs.Recent(ctx, limit)
}

// RunSummary aggregates the runs of the last window.
func (s *Service) RunSummary(ctx context.Context, window time.Duration, topPatterns int) (*models.RunSummary, error) {
	return s.runs.Summary(ctx, time.Now().Add(-window), topPatterns)
}

// PruneRuns deletes runs older than retention.
func (s *Service) PruneRuns(ctx context.Context, retention time.Duration) (int64, error) {
	return s.runs.DeleteBefore(ctx, time.Now().Add(-retention))
}

// Close closes the underlying database.
func (s *Service) Close() error {
	return s.db.Close()
}
