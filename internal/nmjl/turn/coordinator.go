package turn

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/ramonehamilton/NMJL-Companion/internal/logging"
	"github.com/ramonehamilton/NMJL-Companion/internal/nmjl/analysis"
	"github.com/ramonehamilton/NMJL-Companion/internal/nmjl/catalog"
	"github.com/ramonehamilton/NMJL-Companion/internal/nmjl/matcher"
	"github.com/ramonehamilton/NMJL-Companion/internal/nmjl/opponent"
	"github.com/ramonehamilton/NMJL-Companion/internal/nmjl/probability"
	"github.com/ramonehamilton/NMJL-Companion/internal/nmjl/ranking"
	"github.com/ramonehamilton/NMJL-Companion/internal/nmjl/recommendations"
	"github.com/ramonehamilton/NMJL-Companion/internal/nmjl/tiles"
)

// Diagnostic labels.
const (
	DiagnosticEmptyHand    = "empty_hand"
	DiagnosticNoCandidates = "no_candidates"
	DiagnosticEngine       = "engine_failure"
)

// Components are the stages the coordinator drives. Only Catalog is
// required; nil stages are built with default policies.
type Components struct {
	Catalog    *catalog.Catalog
	Matcher    *matcher.Matcher
	Ranker     *ranking.Ranker
	Generator  *recommendations.Generator
	Modeler    opponent.Modeler
	Calculator *probability.Calculator
}

// Coordinator analyzes decision points. It is safe for concurrent use.
type Coordinator struct {
	policy Policy
	c      Components
	logger *log.Logger
}

// New creates a coordinator.
func New(policy Policy, c Components, logger *log.Logger) (*Coordinator, error) {
	if err := policy.Validate(); err != nil {
		return nil, fmt.Errorf("turn policy: %w", err)
	}
	if c.Catalog == nil {
		return nil, errors.New("turn: catalog is required")
	}
	logger = logging.Or(logger)
	if c.Matcher == nil {
		c.Matcher = matcher.New(logger)
	}
	var err error
	if c.Ranker == nil {
		if c.Ranker, err = ranking.New(ranking.DefaultPolicy(), logger); err != nil {
			return nil, err
		}
	}
	if c.Generator == nil {
		if c.Generator, err = recommendations.New(recommendations.DefaultPolicy(), logger); err != nil {
			return nil, err
		}
	}
	if c.Modeler == nil {
		c.Modeler = opponent.NewHeuristicModeler(logger)
	}
	if c.Calculator == nil {
		if c.Calculator, err = probability.New(probability.DefaultPolicy(), logger); err != nil {
			return nil, err
		}
	}
	return &Coordinator{policy: policy, c: c, logger: logger.With("component", "turn")}, nil
}

// Policy returns the coordinator's policy.
func (co *Coordinator) Policy() Policy { return co.policy }

// view is the per-call analysis shared by every decision.
type view struct {
	state    GameState
	player   string
	ctx      analysis.GameContext
	hand     tiles.Hand
	seen     analysis.Seen
	entries  map[string]catalog.Entry
	patterns []catalog.Pattern
	facts    map[string]matcher.Facts
	ranked   ranking.Result
	target   ranking.RankedPattern
	models   []opponent.Model
}

// Analyze returns the legal actions and advice for one decision point.
func (co *Coordinator) Analyze(state GameState) (out Analysis) {
	out = Analysis{PlayerID: state.player(), IsMyTurn: state.isMyTurn(), LegalActions: []LegalAction{}}

	var failure analysis.Failure
	defer func() {
		if failure.Kind != analysis.FailureNone {
			co.logger.Error("turn analysis failed", "failure", failure)
			out = failedAnalysis(state, DiagnosticEngine, &failure)
		}
	}()
	defer analysis.Recover("turn", &failure)

	ctx := state.Context
	ctx.Phase = analysis.PhaseGameplay
	hand, bad := tiles.ParseHand(state.Hand)
	out.Unrecognized = bad
	if hand.Size() == 0 {
		f := analysis.NewFailure(analysis.FailureInputValidation, "hand", analysis.ErrEmptyHand)
		return failedAnalysis(state, DiagnosticEmptyHand, &f)
	}

	entries, unknown := co.c.Catalog.Entries(state.PatternIDs)
	out.UnknownPatterns = unknown
	if len(entries) == 0 {
		f := analysis.NewFailure(analysis.FailureInputValidation, "patterns", analysis.ErrNoCandidates)
		res := failedAnalysis(state, DiagnosticNoCandidates, &f)
		res.UnknownPatterns = unknown
		return res
	}

	v := co.newView(state, ctx, hand, entries)
	out.Ranking = v.ranked
	out.TargetPatternID = v.target.PatternID
	if v.ranked.Diagnostic != "" {
		out.Diagnostic = v.ranked.Diagnostic
	}

	out.LegalActions = co.legalActions(v)
	out.Defense = co.defense(v)
	if out.IsMyTurn {
		if hand.Size() < tiles.HandSize {
			out.Draw = co.drawAdvice(v)
		} else {
			recs := co.c.Generator.Generate(recommendations.Input{
				Hand:         hand,
				Unrecognized: bad,
				Ranking:      focus(v.ranked, v.target.PatternID),
				Facts:        v.factList(),
				Opponents:    v.models,
				Context:      ctx,
			})
			out.Recommendations = &recs
			out.Discards = co.discards(v, recs)
		}
	} else if state.LastDiscard != "" {
		out.Call = co.callAnalysis(v, state.LastDiscard)
	}
	out.Switch = co.switchSuggestion(v)
	if f, ok := v.facts[v.target.PatternID]; ok {
		est := co.c.Calculator.Estimate(f, hand, ctx)
		out.Outlook = &est
	}

	co.logger.Debug("turn analyzed",
		"player", out.PlayerID, "myTurn", out.IsMyTurn, "target", out.TargetPatternID, "legal", out.LegalActions)
	return out
}

func (co *Coordinator) newView(state GameState, ctx analysis.GameContext, hand tiles.Hand, entries []catalog.Entry) *view {
	v := &view{
		state:   state,
		player:  state.player(),
		ctx:     ctx,
		hand:    hand,
		seen:    ctx.Seen(),
		entries: make(map[string]catalog.Entry, len(entries)),
		facts:   make(map[string]matcher.Facts, len(entries)),
	}
	for _, e := range entries {
		v.entries[e.Pattern.ID] = e
		v.patterns = append(v.patterns, e.Pattern)
	}
	for _, f := range co.c.Matcher.MatchAll(hand, entries, hand.Jokers(), v.seen) {
		v.facts[f.PatternID] = f
	}

	v.ranked = co.c.Ranker.Rank(v.factList(), v.patterns, hand.Jokers(), ctx,
		ranking.WithTarget(state.TargetPatternID), ranking.WithPlayer(v.player))
	if rp, ok := v.ranked.Find(state.TargetPatternID); ok {
		v.target = rp
	} else if rp, ok := v.ranked.Top(); ok {
		v.target = rp
	}
	v.models = opponent.ModelOpponents(co.c.Modeler, ctx, v.player)
	return v
}

// factList returns the facts in pattern order.
func (v *view) factList() []matcher.Facts {
	out := make([]matcher.Facts, 0, len(v.patterns))
	for _, p := range v.patterns {
		out = append(out, v.facts[p.ID])
	}
	return out
}

func (co *Coordinator) legalActions(v *view) []LegalAction {
	var legal []LegalAction
	if v.state.isMyTurn() {
		switch {
		case v.hand.Size() >= tiles.HandSize:
			legal = append(legal, LegalDiscard)
			if v.anyComplete(v.hand) {
				legal = append(legal, LegalMahjong)
			}
		case v.ctx.WallTilesRemaining > 0:
			legal = append(legal, LegalDraw)
		default:
			// Wall game: nothing left to draw.
			legal = append(legal, LegalPass)
		}
		return legal
	}

	if id := v.state.LastDiscard; id != "" {
		if t, err := tiles.Parse(id); err == nil && !t.IsJoker() {
			if v.anyComplete(v.hand.With(t.ID)) {
				legal = append(legal, LegalMahjong)
			}
			if _, _, ok := co.callableGroup(v, t.ID); ok {
				legal = append(legal, LegalCall)
			}
		}
	}
	return append(legal, LegalPass)
}

// anyComplete reports whether h completes some candidate pattern.
func (v *view) anyComplete(h tiles.Hand) bool {
	for _, p := range v.patterns {
		var f matcher.Facts
		if h.Size() == v.hand.Size() {
			f = v.facts[p.ID]
		} else {
			f = matcher.New(logging.Discard()).Match(h, v.entries[p.ID], h.Jokers(), v.seen)
		}
		if f.Valid && f.Complete() {
			return true
		}
	}
	return false
}

// callableGroup finds a pung-or-larger group of the target, or failing that
// of another top pattern, that tileID plus spare jokers would complete.
func (co *Coordinator) callableGroup(v *view, tileID string) (string, catalog.Group, bool) {
	ids := []string{v.target.PatternID}
	for _, rp := range v.ranked.TopRecommendations {
		if rp.PatternID != v.target.PatternID {
			ids = append(ids, rp.PatternID)
		}
	}
	for _, id := range ids {
		if g, ok := callableIn(v.facts[id], v.entries[id].Pattern, tileID, v.hand.Jokers()); ok {
			return id, g, true
		}
	}
	return "", catalog.Group{}, false
}

func callableIn(f matcher.Facts, p catalog.Pattern, tileID string, jokers int) (catalog.Group, bool) {
	if !f.Valid {
		return catalog.Group{}, false
	}
	spare := max(0, jokers-f.BestVariation.JokersUsed)
	for _, m := range f.MissingTiles.All() {
		if m.TileID != tileID {
			continue
		}
		g, ok := p.Group(m.GroupID)
		if !ok || g.Kind == catalog.KindSequence || g.Kind.Size() < 3 {
			continue
		}
		if m.Count-1 <= spare {
			return g, true
		}
	}
	return catalog.Group{}, false
}

func (co *Coordinator) drawAdvice(v *view) *DrawAdvice {
	wall := max(0, v.ctx.WallTilesRemaining)
	d := &DrawAdvice{
		Caution:       LevelLow,
		WallRemaining: wall,
		DrawsLeft:     (wall + 3) / 4,
	}
	switch {
	case wall <= co.policy.WallCritical:
		d.Caution = LevelHigh
		d.Message = fmt.Sprintf("Only %d tiles left: keep discards safe unless one tile from mahjong", wall)
	case wall <= co.policy.WallCaution:
		d.Caution = LevelModerate
		d.Message = fmt.Sprintf("%d tiles left: start weighing defense against progress", wall)
	default:
		d.Message = fmt.Sprintf("Draw; %d tiles remain in the wall", wall)
	}
	return d
}

func (co *Coordinator) discards(v *view, recs recommendations.Results) []DiscardOption {
	late := v.ctx.RoundNumber >= co.policy.LateRound || v.ctx.WallTilesRemaining <= co.policy.WallCaution
	var opts []DiscardOption
	for _, ta := range recs.TileActions {
		t, err := tiles.Parse(ta.TileID)
		if err != nil || t.IsJoker() {
			continue
		}
		risk, feeds := opponent.FeedRisk(v.models, ta.TileID)
		var reasons []string
		if feeds != "" && risk > 0 {
			reasons = append(reasons, fmt.Sprintf("%s may need it (%.0f%%)", feeds, risk*100))
		}
		if late && t.IsHonor() {
			risk += co.policy.HonorRisk
			reasons = append(reasons, "late-round honor")
		}
		if late && v.seen[t.ID] == 0 {
			risk += co.policy.UnseenRisk
			reasons = append(reasons, "no copy seen yet")
		}
		reasoning := ta.Reasoning
		if len(reasons) > 0 {
			reasoning += "; risk: " + strings.Join(reasons, ", ")
		}
		opts = append(opts, DiscardOption{
			TileID:      ta.TileID,
			Priority:    ta.Priority,
			Confidence:  ta.Confidence,
			Risk:        math.Round(math.Min(risk, 1)*100) / 100,
			FeedsPlayer: feeds,
			Reasoning:   reasoning,
			Dangers:     ta.Dangers,
		})
	}
	sort.SliceStable(opts, func(i, j int) bool {
		if opts[i].Priority != opts[j].Priority {
			return opts[i].Priority < opts[j].Priority
		}
		if opts[i].Risk != opts[j].Risk {
			return opts[i].Risk < opts[j].Risk
		}
		return tiles.Less(opts[i].TileID, opts[j].TileID)
	})
	if len(opts) > co.policy.MaxDiscardOptions {
		opts = opts[:co.policy.MaxDiscardOptions]
	}
	return opts
}

func (co *Coordinator) callAnalysis(v *view, raw string) *CallAnalysis {
	t, err := tiles.Parse(raw)
	if err != nil {
		return &CallAnalysis{TileID: raw, PatternID: v.target.PatternID, Reasoning: "unrecognized tile id"}
	}
	ca := &CallAnalysis{TileID: t.ID, PatternID: v.target.PatternID}
	if t.IsJoker() {
		ca.Reasoning = "discarded jokers are dead and cannot be called"
		return ca
	}
	entry, ok := v.entries[v.target.PatternID]
	if !ok {
		ca.Reasoning = "no target pattern"
		return ca
	}

	before := v.facts[entry.Pattern.ID]
	withCall := v.hand.With(t.ID)
	seenAfter := make(analysis.Seen, len(v.seen))
	for id, n := range v.seen {
		seenAfter[id] = n
	}
	if seenAfter[t.ID] > 0 {
		seenAfter[t.ID]--
	}
	after := co.c.Matcher.Match(withCall, entry, withCall.Jokers(), seenAfter)

	ca.RatioBefore = before.BestVariation.CompletionRatio
	ca.RatioAfter = after.BestVariation.CompletionRatio
	ca.ScoreBefore = v.target.TotalScore
	ca.Mahjong = after.Valid && after.Complete()

	g, callable := callableIn(before, entry.Pattern, t.ID, v.hand.Jokers())
	ca.Callable = callable || ca.Mahjong
	if callable {
		ca.GroupID, ca.Kind = g.ID, g.Kind
	}

	ctxAfter := v.ctx
	if callable {
		ctxAfter.ExposedTiles = make(map[string][]analysis.Exposure, len(v.ctx.ExposedTiles)+1)
		for p, exps := range v.ctx.ExposedTiles {
			ctxAfter.ExposedTiles[p] = exps
		}
		exposed := make([]string, g.Kind.Size())
		for i := range exposed {
			exposed[i] = t.ID
		}
		ctxAfter.ExposedTiles[v.player] = append(append([]analysis.Exposure(nil), v.ctx.ExposedTiles[v.player]...),
			analysis.Exposure{Tiles: exposed, CalledFrom: v.state.LastDiscardBy})
	}
	rankedAfter := co.c.Ranker.Rank([]matcher.Facts{after}, []catalog.Pattern{entry.Pattern}, withCall.Jokers(), ctxAfter,
		ranking.WithPlayer(v.player))
	if rp, ok := rankedAfter.Top(); ok {
		ca.ScoreAfter = rp.TotalScore
	}
	ca.Improvement = math.Round((ca.ScoreAfter-ca.ScoreBefore)*10) / 10

	switch {
	case ca.Mahjong:
		ca.Recommended = true
		ca.Reasoning = fmt.Sprintf("%s completes %s: call for mahjong", t.ID, v.target.Label)
	case !callable:
		ca.Reasoning = fmt.Sprintf("%s does not complete a pung, kong or quint of %s", t.ID, v.target.Label)
	case v.target.ConcealedOnly:
		ca.Reasoning = fmt.Sprintf("%s is concealed; exposing would forfeit it", v.target.Label)
	case ca.Improvement > co.policy.CallThreshold:
		ca.Recommended = true
		ca.Reasoning = fmt.Sprintf("calling %s for the %s %s adds %.1f points", t.ID, g.Kind, g.ID, ca.Improvement)
	default:
		ca.Reasoning = fmt.Sprintf("calling %s adds only %.1f points; keep the hand concealed", t.ID, ca.Improvement)
	}
	return ca
}

func (co *Coordinator) defense(v *view) Defense {
	late := v.ctx.RoundNumber >= co.policy.LateRound
	d := Defense{ThreatLevel: LevelLow, Threats: []Threat{}, SafeTiles: []string{}, DangerousTiles: []string{}}

	for _, m := range v.models {
		n := len(v.ctx.ExposedTiles[m.PlayerID])
		th := Threat{PlayerID: m.PlayerID, Exposures: n, Level: LevelLow, Clues: m.PatternClues}
		switch {
		case n >= 3, n == 2 && late:
			th.Level = LevelHigh
		case n == 2, n == 1 && late:
			th.Level = LevelModerate
		}
		d.ThreatLevel = max(d.ThreatLevel, th.Level)
		d.Threats = append(d.Threats, th)
	}
	if late && v.ctx.WallTilesRemaining <= co.policy.WallCritical {
		d.ThreatLevel = max(d.ThreatLevel, LevelModerate)
	}
	sort.SliceStable(d.Threats, func(i, j int) bool { return d.Threats[i].Level > d.Threats[j].Level })

	endgame := late || v.ctx.WallTilesRemaining <= co.policy.WallCaution
	for _, id := range v.hand.Distinct() {
		if id == tiles.Joker {
			continue
		}
		risk, _ := opponent.FeedRisk(v.models, id)
		switch {
		case v.ctx.DiscardCount(id) > 0 && risk < opponent.RiskThreshold:
			d.SafeTiles = append(d.SafeTiles, id)
		case risk >= opponent.RiskThreshold, endgame && v.seen[id] == 0:
			d.DangerousTiles = append(d.DangerousTiles, id)
		}
	}

	switch d.ThreatLevel {
	case LevelHigh:
		d.Advice = "An opponent is close to mahjong: discard only safe tiles unless you are one away"
	case LevelModerate:
		d.Advice = "Opponents are building: prefer tiles already discarded"
	default:
		d.Advice = "No immediate threat: play for your own hand"
	}
	return d
}

func (co *Coordinator) switchSuggestion(v *view) *SwitchSuggestion {
	sa := v.ranked.SwitchAnalysis
	if sa == nil || !sa.ShouldSwitch || v.state.TurnsOnTarget < co.policy.SwitchAfterTurns {
		return nil
	}
	return &SwitchSuggestion{
		FromPatternID: sa.CurrentPatternID,
		ToPatternID:   sa.BestAlternativeID,
		ScoreGap:      sa.ScoreGap,
		Reasoning:     fmt.Sprintf("after %d turns on %s, %s", v.state.TurnsOnTarget, sa.CurrentPatternID, sa.Reasoning),
	}
}

// focus moves the target pattern to the head of the ranking so the
// recommendations are built around it.
func focus(r ranking.Result, target string) ranking.Result {
	if len(r.All) == 0 || r.All[0].PatternID == target {
		return r
	}
	i := -1
	for j, rp := range r.All {
		if rp.PatternID == target {
			i = j
			break
		}
	}
	if i < 0 {
		return r
	}
	all := make([]ranking.RankedPattern, 0, len(r.All))
	all = append(all, r.All[i])
	all = append(all, r.All[:i]...)
	all = append(all, r.All[i+1:]...)
	r.All = all
	return r
}

func failedAnalysis(state GameState, diagnostic string, f *analysis.Failure) Analysis {
	return Analysis{
		PlayerID:     state.player(),
		IsMyTurn:     state.isMyTurn(),
		LegalActions: []LegalAction{},
		Defense:      Defense{ThreatLevel: LevelLow, Threats: []Threat{}, SafeTiles: []string{}, DangerousTiles: []string{}},
		Ranking:      ranking.Result{All: []ranking.RankedPattern{}, TopRecommendations: []ranking.RankedPattern{}, ViablePatterns: []ranking.RankedPattern{}},
		Diagnostic:   diagnostic,
		Failure:      f,
	}
}
