// Package engine is the facade over the analysis pipeline: catalog, matcher,
// ranking and recommendations, plus the turn coordinator and probability
// calculator. It memoizes full analyses in a cache.Store, records metrics and
// publishes events. Stage policies and the catalog can be swapped at runtime;
// every swap changes the cache key space and clears the store.
package engine

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/ramonehamilton/NMJL-Companion/internal/cache"
	"github.com/ramonehamilton/NMJL-Companion/internal/events"
	"github.com/ramonehamilton/NMJL-Companion/internal/logging"
	"github.com/ramonehamilton/NMJL-Companion/internal/metrics"
	"github.com/ramonehamilton/NMJL-Companion/internal/nmjl/analysis"
	"github.com/ramonehamilton/NMJL-Companion/internal/nmjl/catalog"
	"github.com/ramonehamilton/NMJL-Companion/internal/nmjl/matcher"
	"github.com/ramonehamilton/NMJL-Companion/internal/nmjl/opponent"
	"github.com/ramonehamilton/NMJL-Companion/internal/nmjl/probability"
	"github.com/ramonehamilton/NMJL-Companion/internal/nmjl/ranking"
	"github.com/ramonehamilton/NMJL-Companion/internal/nmjl/recommendations"
	"github.com/ramonehamilton/NMJL-Companion/internal/nmjl/tiles"
	"github.com/ramonehamilton/NMJL-Companion/internal/nmjl/turn"
)

// DefaultSlowScanThreshold is the full analysis duration logged as slow.
const DefaultSlowScanThreshold = 250 * time.Millisecond

// Options are the engine's optional collaborators.
type Options struct {
	// Store memoizes full analyses. Nil disables caching.
	Store cache.Store
	// Metrics defaults to a fresh collector.
	Metrics *metrics.AnalysisMetrics
	// Events receives analysis events. Nil publishes nothing.
	Events *events.Dispatcher
	// Modeler defaults to the heuristic opponent modeler.
	Modeler           opponent.Modeler
	SlowScanThreshold time.Duration
}

// stages is one immutable build of the pipeline.
type stages struct {
	catalog     *catalog.Catalog
	policies    Policies
	version     string
	matcher     *matcher.Matcher
	ranker      *ranking.Ranker
	generator   *recommendations.Generator
	calculator  *probability.Calculator
	coordinator *turn.Coordinator
}

// Engine runs analyses. It is safe for concurrent use.
type Engine struct {
	mu     sync.RWMutex
	st     *stages
	opts   Options
	logger *log.Logger
}

// New builds an engine over cat. The policies must validate.
func New(cat *catalog.Catalog, policies Policies, opts Options, logger *log.Logger) (*Engine, error) {
	if cat == nil {
		return nil, errors.New("engine: catalog is required")
	}
	logger = logging.Or(logger)
	if opts.Modeler == nil {
		opts.Modeler = opponent.NewHeuristicModeler(logger)
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.NewAnalysisMetrics()
	}
	if opts.SlowScanThreshold <= 0 {
		opts.SlowScanThreshold = DefaultSlowScanThreshold
	}
	e := &Engine{opts: opts, logger: logger.With("component", "engine")}
	st, err := e.build(cat, policies)
	if err != nil {
		return nil, err
	}
	e.st = st
	return e, nil
}

func (e *Engine) build(cat *catalog.Catalog, p Policies) (*stages, error) {
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("engine policies: %w", err)
	}
	st := &stages{
		catalog:  cat,
		policies: p,
		version:  p.Version(),
		matcher:  matcher.New(e.logger),
	}
	var err error
	if st.ranker, err = ranking.New(p.Ranking, e.logger); err != nil {
		return nil, err
	}
	if st.generator, err = recommendations.New(p.Recommendations, e.logger); err != nil {
		return nil, err
	}
	if st.calculator, err = probability.New(p.Probability, e.logger); err != nil {
		return nil, err
	}
	st.coordinator, err = turn.New(p.Turn, turn.Components{
		Catalog:    cat,
		Matcher:    st.matcher,
		Ranker:     st.ranker,
		Generator:  st.generator,
		Modeler:    e.opts.Modeler,
		Calculator: st.calculator,
	}, e.logger)
	if err != nil {
		return nil, err
	}
	return st, nil
}

func (e *Engine) current() *stages {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.st
}

// Catalog returns the active catalog.
func (e *Engine) Catalog() *catalog.Catalog { return e.current().catalog }

// Policies returns the active policies.
func (e *Engine) Policies() Policies { return e.current().policies }

// PolicyVersion returns the active policies' content hash.
func (e *Engine) PolicyVersion() string { return e.current().version }

// Metrics returns the engine's collector.
func (e *Engine) Metrics() *metrics.AnalysisMetrics { return e.opts.Metrics }

// CacheStats returns the store's statistics; ok is false when caching is off.
func (e *Engine) CacheStats() (stats cache.Stats, ok bool) {
	if e.opts.Store == nil {
		return cache.Stats{}, false
	}
	return e.opts.Store.Stats(), true
}

// SetPolicies swaps every stage policy. Invalid policies leave the engine
// unchanged.
func (e *Engine) SetPolicies(ctx context.Context, p Policies, source string) error {
	e.mu.Lock()
	st, err := e.build(e.st.catalog, p)
	if err != nil {
		e.mu.Unlock()
		return err
	}
	old := e.st.version
	e.st = st
	e.mu.Unlock()

	e.invalidate(ctx)
	e.logger.Info("policies reloaded", "from", old, "to", st.version, "source", source)
	e.publish(events.New(ctx, events.TypePolicyReloaded, events.PolicyReloadedEvent{Version: st.version, Source: source}))
	return nil
}

// SetCatalog swaps the pattern catalog.
func (e *Engine) SetCatalog(ctx context.Context, cat *catalog.Catalog, source string) error {
	if cat == nil {
		return errors.New("engine: catalog is required")
	}
	e.mu.Lock()
	st, err := e.build(cat, e.st.policies)
	if err != nil {
		e.mu.Unlock()
		return err
	}
	e.st = st
	e.mu.Unlock()

	e.invalidate(ctx)
	e.logger.Info("catalog updated", "version", cat.Version(), "patterns", cat.Len(), "source", source)
	e.publish(events.New(ctx, events.TypeCatalogUpdated, events.CatalogUpdatedEvent{
		Version:  cat.Version(),
		Patterns: cat.Len(),
		Source:   source,
	}))
	return nil
}

func (e *Engine) invalidate(ctx context.Context) {
	if e.opts.Store == nil {
		return
	}
	if err := e.opts.Store.Clear(ctx); err != nil {
		e.logger.Warn("cache clear failed", "err", err)
	}
}

func (e *Engine) publish(event events.Event) {
	if e.opts.Events != nil {
		e.opts.Events.Dispatch(event)
	}
}

// Match runs the matcher only.
func (e *Engine) Match(req Request) Report {
	report, _ := e.pipeline(context.Background(), e.current(), req, stageMatch)
	return report
}

// Rank runs the matcher and the ranking aggregator.
func (e *Engine) Rank(req Request) Report {
	report, _ := e.pipeline(context.Background(), e.current(), req, stageRank)
	return report
}

// Recommend runs the whole pipeline without the cache or events.
func (e *Engine) Recommend(req Request) Report {
	report, _ := e.pipeline(context.Background(), e.current(), req, stageRecommend)
	return report
}

// Analyze runs the whole pipeline, consulting the cache first, and publishes
// the outcome. The only error is ctx's, when the run is cancelled between
// stages; cancelled runs publish nothing.
func (e *Engine) Analyze(ctx context.Context, req Request) (Report, error) {
	report, err := e.analyze(ctx, req)
	if err != nil {
		return report, err
	}
	e.finish(ctx, req, report)
	return report, nil
}

func (e *Engine) analyze(ctx context.Context, req Request) (Report, error) {
	st := e.current()
	start := time.Now()
	e.opts.Metrics.Scans.Add(1)

	var key string
	if e.opts.Store != nil {
		key = cacheKey(st, req)
		if report, ok := e.cached(ctx, key); ok {
			report.Duration = time.Since(start)
			e.opts.Metrics.Observe(metrics.StageScan, report.Duration)
			return report, nil
		}
	}

	report, err := e.pipeline(ctx, st, req, stageRecommend)
	if err != nil {
		return report, err
	}
	report.RunID = uuid.NewString()
	e.opts.Metrics.Observe(metrics.StageScan, report.Duration)
	if report.Failed() {
		e.opts.Metrics.Failures.Add(1)
	}
	e.opts.Metrics.PartialFailures.Add(uint64(report.partialFailures()))
	if report.Duration > e.opts.SlowScanThreshold {
		e.logger.Info("slow analysis", "duration", report.Duration, "hand", report.HandSignature, "patterns", len(report.Facts))
	}

	if key != "" && !report.Failed() {
		if data, err := json.Marshal(report); err != nil {
			e.logger.Warn("cache encode failed", "err", err)
		} else if err := e.opts.Store.Set(ctx, key, data); err != nil {
			e.logger.Warn("cache write failed", "err", err)
		}
	}
	return report, nil
}

func (e *Engine) cached(ctx context.Context, key string) (Report, bool) {
	data, ok := e.opts.Store.Get(ctx, key)
	if !ok {
		e.opts.Metrics.CacheResult(false)
		return Report{}, false
	}
	var report Report
	if err := json.Unmarshal(data, &report); err != nil {
		e.logger.Warn("cache entry undecodable", "key", key, "err", err)
		e.opts.Metrics.CacheResult(false)
		return Report{}, false
	}
	e.opts.Metrics.CacheResult(true)
	report.RunID = uuid.NewString()
	report.CacheHit = true
	return report, true
}

// finish publishes a completed run.
func (e *Engine) finish(ctx context.Context, req Request, report Report) {
	if report.Failed() {
		f := report.Failure
		e.publish(events.New(ctx, events.TypeAnalysisFailed, events.AnalysisFailedEvent{
			RunID:      report.RunID,
			SessionID:  req.SessionID,
			Kind:       f.Kind.String(),
			Diagnostic: report.Diagnostic,
			Message:    f.Message,
		}))
		return
	}
	ev := events.AnalysisCompletedEvent{
		RunID:         report.RunID,
		SessionID:     req.SessionID,
		HandSignature: report.HandSignature,
		CacheHit:      report.CacheHit,
		Duration:      report.Duration,
		Report:        &report,
	}
	if top, ok := report.Top(); ok {
		ev.TopPatternID = top.PatternID
		ev.TopScore = top.TotalScore
		ev.TopTier = top.Tier.String()
	}
	if report.Ranking != nil {
		ev.Viable = len(report.Ranking.ViablePatterns)
	}
	e.publish(events.New(ctx, events.TypeAnalysisCompleted, ev))
}

// pipeline runs the stages up to upTo. ctx is checked between stages.
func (e *Engine) pipeline(ctx context.Context, st *stages, req Request, upTo stage) (report Report, err error) {
	start := time.Now()
	report = Report{
		CatalogVersion: st.catalog.Version(),
		PolicyVersion:  st.version,
		Facts:          []matcher.Facts{},
	}

	var failure analysis.Failure
	defer func() {
		if failure.Kind != analysis.FailureNone {
			e.logger.Error("analysis failed", "failure", failure)
			report = failedReport(report, DiagnosticEngine, &failure)
		}
		report.Duration = time.Since(start)
	}()
	defer analysis.Recover("engine", &failure)

	hand, bad := tiles.ParseHand(req.Hand)
	report.Unrecognized = bad
	report.Hand = hand.Tiles()
	report.HandSignature = hand.Signature()
	report.Jokers = hand.Jokers()
	if hand.Size() == 0 {
		f := analysis.NewFailure(analysis.FailureInputValidation, "hand", analysis.ErrEmptyHand)
		return failedReport(report, DiagnosticEmptyHand, &f), nil
	}

	entries, unknown := st.catalog.Entries(req.PatternIDs)
	report.UnknownPatterns = unknown
	if len(entries) == 0 {
		f := analysis.NewFailure(analysis.FailureInputValidation, "patterns", analysis.ErrNoCandidates)
		return failedReport(report, DiagnosticNoCandidates, &f), nil
	}
	if len(unknown) > 0 {
		e.logger.Warn("unknown candidate patterns ignored", "ids", unknown)
	}
	if len(bad) > 0 {
		e.logger.Warn("unrecognized tiles ignored", "ids", bad)
	}

	gctx := req.context()
	t := time.Now()
	report.Facts = st.matcher.MatchAll(hand, entries, hand.Jokers(), gctx.Seen())
	e.opts.Metrics.Observe(metrics.StageMatch, time.Since(t))
	if upTo == stageMatch {
		return report, nil
	}
	if err := ctx.Err(); err != nil {
		return report, err
	}

	patterns := make([]catalog.Pattern, len(entries))
	for i, en := range entries {
		patterns[i] = en.Pattern
	}
	t = time.Now()
	ranked := st.ranker.Rank(report.Facts, patterns, hand.Jokers(), gctx,
		ranking.WithTarget(req.TargetPatternID), ranking.WithPlayer(req.player()))
	e.opts.Metrics.Observe(metrics.StageRank, time.Since(t))
	report.Ranking = &ranked
	report.adopt(ranked.Diagnostic, ranked.Failure)
	if upTo == stageRank {
		return report, nil
	}
	if err := ctx.Err(); err != nil {
		return report, err
	}

	t = time.Now()
	report.Opponents = opponent.ModelOpponents(e.opts.Modeler, gctx, req.player())
	recs := st.generator.Generate(recommendations.Input{
		Hand:         hand,
		Unrecognized: bad,
		Ranking:      ranked,
		Facts:        report.Facts,
		Opponents:    report.Opponents,
		Context:      gctx,
	})
	e.opts.Metrics.Observe(metrics.StageRecommend, time.Since(t))
	report.Recommendations = &recs
	report.adopt(recs.Diagnostic, recs.Failure)
	if err := ctx.Err(); err != nil {
		return report, err
	}
	return report, nil
}

// adopt keeps the first stage diagnostic and failure.
func (r *Report) adopt(diagnostic string, f *analysis.Failure) {
	if r.Diagnostic == "" {
		r.Diagnostic = diagnostic
	}
	if r.Failure == nil && f != nil {
		r.Failure = f
	}
}

func failedReport(r Report, diagnostic string, f *analysis.Failure) Report {
	r.Facts = []matcher.Facts{}
	r.Ranking = nil
	r.Opponents = nil
	r.Recommendations = nil
	r.Diagnostic = diagnostic
	r.Failure = f
	return r
}

// Turn analyzes one decision point.
func (e *Engine) Turn(ctx context.Context, state turn.GameState) turn.Analysis {
	start := time.Now()
	out := e.current().coordinator.Analyze(state)
	e.opts.Metrics.Observe(metrics.StageTurn, time.Since(start))
	if out.Failure != nil && out.Failure.Kind != analysis.FailurePartial {
		e.opts.Metrics.Failures.Add(1)
		return out
	}

	legal := make([]string, len(out.LegalActions))
	for i, a := range out.LegalActions {
		legal[i] = a.String()
	}
	e.publish(events.New(ctx, events.TypeTurnAnalyzed, events.TurnAnalyzedEvent{
		PlayerID:     out.PlayerID,
		TargetID:     out.TargetPatternID,
		LegalActions: legal,
		ThreatLevel:  out.Defense.ThreatLevel.String(),
	}))
	return out
}

// Probability estimates the completion odds of one pattern. An empty
// patternID selects the top ranked candidate.
func (e *Engine) Probability(req Request, patternID string) probability.Estimate {
	st := e.current()
	invalid := func(kind analysis.FailureKind, subject string, err error) probability.Estimate {
		f := analysis.NewFailure(kind, subject, err)
		return probability.Estimate{
			PatternID:       patternID,
			Tiles:           []probability.TileOdds{},
			JokerDependency: []probability.JokerOption{},
			ExpectedTurns:   -1,
			Failure:         &f,
		}
	}

	hand, _ := tiles.ParseHand(req.Hand)
	if hand.Size() == 0 {
		return invalid(analysis.FailureInputValidation, "hand", analysis.ErrEmptyHand)
	}
	if patternID == "" {
		top, ok := e.Rank(req).Top()
		if !ok {
			return invalid(analysis.FailureInputValidation, "patterns", analysis.ErrNoCandidates)
		}
		patternID = top.PatternID
	}
	entry, ok := st.catalog.Entry(patternID)
	if !ok {
		return invalid(analysis.FailureInputValidation, patternID,
			fmt.Errorf("%w: %s", analysis.ErrUnknownPattern, patternID))
	}

	gctx := req.context()
	facts := st.matcher.Match(hand, entry, hand.Jokers(), gctx.Seen())
	return st.calculator.Estimate(facts, hand, gctx)
}

// Variations returns a pattern's concrete hands.
func (e *Engine) Variations(patternID string) ([]catalog.Variation, error) {
	entry, ok := e.current().catalog.Entry(patternID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", analysis.ErrUnknownPattern, patternID)
	}
	if entry.Err != nil {
		return nil, fmt.Errorf("pattern %s: %w", patternID, entry.Err)
	}
	return entry.Variations, nil
}

// cacheKey identifies a full analysis: the hand, the candidate set within a
// catalog version, the joker count, the policy version and the table context.
func cacheKey(st *stages, req Request) string {
	hand, bad := tiles.ParseHand(req.Hand)
	sort.Strings(bad)

	ctxData, _ := json.Marshal(struct {
		Context analysis.GameContext `json:"c"`
		Target  string               `json:"t"`
		Player  string               `json:"p"`
		Bad     []string             `json:"b"`
	}{req.context(), req.TargetPatternID, req.player(), bad})
	ctxSum := sha256.Sum256(ctxData)

	parts := []string{
		hand.Signature(),
		st.catalog.SetSignature(req.PatternIDs),
		strconv.Itoa(hand.Jokers()),
		st.version,
		hex.EncodeToString(ctxSum[:]),
	}
	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])
}
