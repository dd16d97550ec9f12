// Package recommendations turns ranked patterns into per-tile keep, pass and
// discard advice for the charleston and for gameplay.
//
// Each distinct tile is tiered against the ranking: tier 1 tiles fill a
// joker-forbidden slot of the top pattern, tier 2 tiles fill a slot a joker
// could take, tier 3 tiles are needed by one of the next alternates. Untiered
// tiles are released. The output always offers at least MinPass tiles to pass
// in the charleston and MinDiscard tiles to discard in gameplay.
package recommendations

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/ramonehamilton/NMJL-Companion/internal/logging"
	"github.com/ramonehamilton/NMJL-Companion/internal/nmjl/analysis"
	"github.com/ramonehamilton/NMJL-Companion/internal/nmjl/matcher"
	"github.com/ramonehamilton/NMJL-Companion/internal/nmjl/opponent"
	"github.com/ramonehamilton/NMJL-Companion/internal/nmjl/ranking"
	"github.com/ramonehamilton/NMJL-Companion/internal/nmjl/tiles"
)

// Diagnostic labels.
const (
	DiagnosticEmptyHand  = "empty_hand"
	DiagnosticNoPatterns = "no_ranked_patterns"
	DiagnosticShortPass  = "too_few_passable_tiles"
	DiagnosticMahjong    = "hand_complete"
	DiagnosticEngine     = "engine_failure"
)

const (
	// Copies at which a tile is kept regardless of patterns.
	keepCopies = 3

	// Confidence of an action forced to meet a minimum selection.
	backfillConfidence = 40

	// Multi-pattern value at which a tile earns an extra priority point.
	sharedValue = 0.5

	// Need probability at which opponent feeding is a high severity danger.
	highFeedRisk = 0.75
)

// Input is everything one Generate call reads.
type Input struct {
	Hand tiles.Hand
	// Unrecognized holds raw ids that failed to parse. Each is reported as a
	// neutral action rather than failing the whole hand.
	Unrecognized []string
	Ranking      ranking.Result
	Facts        []matcher.Facts
	Opponents    []opponent.Model
	Context      analysis.GameContext
}

// Generator produces recommendations with a fixed policy. It is safe for
// concurrent use.
type Generator struct {
	policy Policy
	logger *log.Logger
}

// New creates a generator. The policy must validate.
func New(policy Policy, logger *log.Logger) (*Generator, error) {
	if err := policy.Validate(); err != nil {
		return nil, fmt.Errorf("recommendation policy: %w", err)
	}
	return &Generator{policy: policy, logger: logging.Or(logger).With("component", "recommendations")}, nil
}

// Generate runs the default generator once.
func Generate(hand tiles.Hand, ranked ranking.Result, facts []matcher.Facts, opponents []opponent.Model, ctx analysis.GameContext) Results {
	g, err := New(DefaultPolicy(), logging.Discard())
	if err != nil {
		f := analysis.NewFailure(analysis.FailureEngine, "policy", err)
		return failed(ctx.Phase, DiagnosticEngine, &f)
	}
	return g.Generate(Input{Hand: hand, Ranking: ranked, Facts: facts, Opponents: opponents, Context: ctx})
}

// state is the per-call view of the ranking.
type state struct {
	in         Input
	phase      analysis.Phase
	facts      map[string]matcher.Facts
	top        ranking.RankedPattern
	topFacts   matcher.Facts
	hasTop     bool
	alternates []matcher.Facts
	complete   bool
}

// Generate returns one action per distinct tile plus the pass or discard
// selection for the current phase.
func (g *Generator) Generate(in Input) (res Results) {
	phase := in.Context.Phase
	if phase != analysis.PhaseGameplay {
		phase = analysis.PhaseCharleston
	}

	var failure analysis.Failure
	defer func() {
		if failure.Kind != analysis.FailureNone {
			g.logger.Error("recommendation failed", "failure", failure)
			res = failed(phase, DiagnosticEngine, &failure)
		}
	}()
	defer analysis.Recover("recommendations", &failure)

	if in.Hand.Size() == 0 && len(in.Unrecognized) == 0 {
		f := analysis.NewFailure(analysis.FailureInputValidation, "hand", analysis.ErrEmptyHand)
		return failed(phase, DiagnosticEmptyHand, &f)
	}
	if rf := in.Ranking.Failure; rf != nil && rf.Kind == analysis.FailureEngine {
		return failed(phase, DiagnosticEngine, rf)
	}

	st := g.newState(in, phase)
	res = Results{
		Phase:            phase,
		TileActions:      []TileAction{},
		KeepTiles:        []string{},
		PassSelection:    []string{},
		DiscardSelection: []string{},
	}
	if st.hasTop {
		res.TargetPatternID = st.top.PatternID
	} else {
		res.Diagnostic = DiagnosticNoPatterns
	}

	for _, id := range in.Hand.Distinct() {
		ta, anomaly := g.safeClassify(st, id)
		if anomaly != nil {
			g.logger.Warn("tile downgraded to neutral", "tile", id, "reason", anomaly.Message)
			res.Anomalies = append(res.Anomalies, *anomaly)
		}
		res.TileActions = append(res.TileActions, ta)
	}
	counts, ids := countRaw(in.Unrecognized)
	for _, id := range ids {
		res.TileActions = append(res.TileActions, neutral(id, counts[id], "unrecognized tile id"))
		res.Anomalies = append(res.Anomalies, analysis.NewFailure(analysis.FailurePartial, id, tiles.ErrUnknownTile))
	}

	g.applyGuarantees(&res, st)
	passDangers(res.TileActions, st)
	res.PassSelection, res.DiscardSelection = selections(res.TileActions, phase)
	res.KeepTiles = keepTiles(res.TileActions)
	res.StrategicAdvice = g.advice(st, res)
	return res
}

func (g *Generator) newState(in Input, phase analysis.Phase) *state {
	st := &state{in: in, phase: phase, facts: make(map[string]matcher.Facts, len(in.Facts))}
	for _, f := range in.Facts {
		if f.Valid {
			st.facts[f.PatternID] = f
		}
	}
	for _, rp := range in.Ranking.All {
		f, ok := st.facts[rp.PatternID]
		if !ok {
			continue
		}
		if !st.hasTop {
			st.top, st.topFacts, st.hasTop = rp, f, true
			st.complete = f.Complete()
			continue
		}
		if len(st.alternates) >= g.policy.Alternates {
			break
		}
		st.alternates = append(st.alternates, f)
	}
	return st
}

func (g *Generator) safeClassify(st *state, id string) (ta TileAction, anomaly *analysis.Failure) {
	defer func() {
		if r := recover(); r != nil {
			ta = neutral(id, st.in.Hand.Count(id), fmt.Sprintf("could not analyze tile: %v", r))
			anomaly = &analysis.Failure{Kind: analysis.FailurePartial, Subject: id, Message: fmt.Sprint(r)}
		}
	}()
	return g.classify(st, id), nil
}

func (g *Generator) classify(st *state, id string) TileAction {
	count := st.in.Hand.Count(id)
	helped := st.patternsHelped(id)
	ta := TileAction{
		TileID:         id,
		Count:          count,
		PatternsHelped: helped,
		Dangers:        []Danger{},
	}
	if n := len(st.in.Ranking.TopRecommendations); n > 0 {
		ta.MultiPatternValue = math.Round(float64(len(helped))/float64(n)*100) / 100
	}

	if id == tiles.Joker {
		ta.PrimaryAction = ActionKeep
		ta.Confidence = 100
		ta.Priority = 10
		ta.ContextualActions = ContextualActions{Charleston: ActionKeep, Gameplay: ActionKeep, Exposition: ActionKeep}
		ta.Reasoning = "jokers are always kept"
		return ta
	}

	tier, used, groups := st.tierOf(id)
	ta.Tier = tier
	if used > 0 && count > used {
		ta.Surplus = count - used
	}
	label := st.label()

	switch {
	case count >= keepCopies:
		ta.Confidence, ta.Priority = 95, 9
		if tier == 1 {
			ta.Priority = 10
		}
		ta.Reasoning = fmt.Sprintf("%d copies held, already a pung or better", count)
	case tier == 1:
		ta.Confidence, ta.Priority = 90, 9
		ta.Reasoning = fmt.Sprintf("needed by %s and no joker can replace it", label)
	case tier == 2:
		ta.Confidence, ta.Priority = 80, 7
		if groups > 1 {
			ta.Reasoning = fmt.Sprintf("used in %d groups of %s", groups, label)
		} else {
			ta.Reasoning = fmt.Sprintf("used by %s; a joker could stand in", label)
		}
	case tier == 3:
		ta.Confidence, ta.Priority = 65, 5
		ta.Reasoning = "needed by an alternate pattern"
	case len(helped) > 0:
		ta.Confidence, ta.Priority = 60, 3
		ta.Reasoning = "only lower-ranked patterns use it"
	default:
		ta.Confidence, ta.Priority = 85, 1
		ta.Reasoning = "no ranked pattern uses it"
	}
	if ta.MultiPatternValue >= sharedValue && ta.Priority < 10 {
		ta.Priority++
	}

	keep := tier > 0 || count >= keepCopies
	ta.ContextualActions = ContextualActions{
		Charleston: pick(keep, ActionKeep, ActionPass),
		Gameplay:   pick(keep, ActionKeep, ActionDiscard),
		Exposition: st.exposition(id),
	}
	ta.PrimaryAction = ta.ContextualActions.forPhase(st.phase)
	if ta.PrimaryAction.IsRelease() {
		ta.Release = count
	}

	if tier == 1 {
		ta.Dangers = append(ta.Dangers, g.destruction(st, id))
	}
	g.feedingDanger(st, &ta)
	g.wallDanger(st, &ta)
	return ta
}

// tierOf returns the tile's tier, the most copies any considered pattern
// uses, and how many top-pattern groups use it.
func (st *state) tierOf(id string) (tier, used, groups int) {
	for _, alt := range st.alternates {
		if n := len(alt.ContributionsFor(id)); n > used {
			used = n
			tier = 3
		}
	}
	if !st.hasTop {
		return tier, used, 0
	}
	cs := st.topFacts.ContributionsFor(id)
	if len(cs) == 0 {
		return tier, used, 0
	}
	used = max(used, len(cs))
	groups = len(st.topFacts.GroupsFor(id))
	for _, c := range cs {
		if c.IsCritical {
			return 1, used, groups
		}
	}
	return 2, used, groups
}

func (st *state) label() string {
	if !st.hasTop {
		return "no pattern"
	}
	return st.top.PatternID
}

// patternsHelped lists the recommended patterns whose best variation uses id.
func (st *state) patternsHelped(id string) []string {
	out := []string{}
	for _, rp := range st.in.Ranking.TopRecommendations {
		if f, ok := st.facts[rp.PatternID]; ok && len(f.ContributionsFor(id)) > 0 {
			out = append(out, rp.PatternID)
		}
	}
	return out
}

func (st *state) viableHelped(id string) int {
	n := 0
	for _, rp := range st.in.Ranking.ViablePatterns {
		if f, ok := st.facts[rp.PatternID]; ok && len(f.ContributionsFor(id)) > 0 {
			n++
		}
	}
	return n
}

// exposition advises whether a tile belongs in a set that can be exposed when
// called. Concealed-only targets never expose.
func (st *state) exposition(id string) Action {
	if !st.hasTop || st.top.ConcealedOnly {
		return ActionNeutral
	}
	for _, c := range st.topFacts.ContributionsFor(id) {
		if c.CanBeReplaced {
			return ActionKeep
		}
	}
	return ActionNeutral
}

func (c ContextualActions) forPhase(p analysis.Phase) Action {
	if p == analysis.PhaseGameplay {
		return c.Gameplay
	}
	return c.Charleston
}

// destruction estimates the top pattern's score after losing one copy of id.
// Component scores scale with matched tiles except priority.
func (g *Generator) destruction(st *state, id string) Danger {
	top := st.top
	matched := st.topFacts.BestVariation.MatchedSlots
	after := top.TotalScore
	if matched > 0 {
		p := top.Breakdown.PriorityScore
		after = (top.TotalScore-p)*float64(matched-1)/float64(matched) + p
	}
	newTier := g.policy.Tiers.TierFor(after)

	d := Danger{
		Type:     DangerPatternDestruction,
		Severity: SeverityMedium,
		Message:  fmt.Sprintf("%s fills a joker-forbidden slot in %s", id, top.PatternID),
		Impact:   fmt.Sprintf("%s drops to about %.0f points", top.PatternID, after),
	}
	if newTier < top.Tier {
		d.Severity = SeverityHigh
		d.Impact = fmt.Sprintf("%s falls from %s to %s", top.PatternID, top.Tier, newTier)
	}
	return d
}

func (g *Generator) feedingDanger(st *state, ta *TileAction) {
	p, who := opponent.FeedRisk(st.in.Opponents, ta.TileID)
	if p < g.policy.FeedThreshold {
		return
	}
	sev := SeverityMedium
	if p >= highFeedRisk {
		sev = SeverityHigh
	}
	if ta.PrimaryAction.IsRelease() {
		ta.Confidence = math.Max(0, ta.Confidence-g.policy.FeedPenalty)
		ta.Priority = min(10, ta.Priority+2)
		ta.Reasoning += fmt.Sprintf("; %s likely needs it", who)
	}
	ta.Dangers = append(ta.Dangers, Danger{
		Type:     DangerOpponentFeeding,
		Severity: sev,
		Message:  fmt.Sprintf("%s likely needs %s", who, ta.TileID),
		Impact:   fmt.Sprintf("%.0f%% chance it helps %s", p*100, who),
	})
}

// wallDanger warns about discarding an unseen tile late in the wall.
func (g *Generator) wallDanger(st *state, ta *TileAction) {
	ctx := st.in.Context
	if st.phase != analysis.PhaseGameplay || ta.PrimaryAction != ActionDiscard {
		return
	}
	if ctx.WallTilesRemaining > g.policy.WallCaution || ctx.DiscardCount(ta.TileID) > 0 {
		return
	}
	sev := SeverityMedium
	if ctx.WallTilesRemaining <= g.policy.WallCritical {
		sev = SeverityHigh
	}
	ta.Dangers = append(ta.Dangers, Danger{
		Type:     DangerWallDepletion,
		Severity: sev,
		Message:  fmt.Sprintf("%d tiles left in the wall and %s is unseen", ctx.WallTilesRemaining, ta.TileID),
		Impact:   "late unseen discards are the likeliest to complete another hand",
	})
}

// applyGuarantees releases more copies until the phase minimum is met:
// surplus copies first, then the least valuable kept tiles, then (gameplay
// only) jokers.
func (g *Generator) applyGuarantees(res *Results, st *state) {
	size := st.in.Hand.Size()
	var need int
	release := ActionPass
	switch {
	case st.phase == analysis.PhaseCharleston && size >= g.policy.MinPass:
		need = g.policy.MinPass
	case st.phase == analysis.PhaseGameplay && st.complete:
		res.Diagnostic = DiagnosticMahjong
		fallbackDiscard(res.TileActions)
		return
	case st.phase == analysis.PhaseGameplay && size >= tiles.HandSize:
		need = g.policy.MinDiscard
		release = ActionDiscard
	default:
		return
	}

	short := need
	for _, ta := range res.TileActions {
		short -= ta.Release
	}
	if short <= 0 {
		return
	}

	acts := res.TileActions
	order := make([]int, 0, len(acts))
	for i := range acts {
		if acts[i].TileID != tiles.Joker && acts[i].PrimaryAction != ActionNeutral {
			order = append(order, i)
		}
	}
	sort.SliceStable(order, func(a, b int) bool {
		x, y := acts[order[a]], acts[order[b]]
		if x.Priority != y.Priority {
			return x.Priority < y.Priority
		}
		if tierRank(x.Tier) != tierRank(y.Tier) {
			return tierRank(x.Tier) < tierRank(y.Tier)
		}
		return tiles.Less(x.TileID, y.TileID)
	})

	for _, i := range order {
		if short == 0 {
			break
		}
		ta := &acts[i]
		if k := min(ta.Surplus-ta.Release, short); k > 0 && !ta.PrimaryAction.IsRelease() {
			ta.Release += k
			short -= k
			ta.Reasoning += fmt.Sprintf("; %d spare %s", k, plural(k, "copy", "copies"))
		}
	}
	for _, i := range order {
		if short == 0 {
			break
		}
		ta := &acts[i]
		if k := min(ta.Count-ta.Release, short); k > 0 {
			forceRelease(ta, release, k)
			short -= k
		}
	}

	if short > 0 && release == ActionDiscard {
		for i := range acts {
			ta := &acts[i]
			if ta.TileID != tiles.Joker || short == 0 {
				continue
			}
			k := min(ta.Count-ta.Release, short)
			forceRelease(ta, release, k)
			short -= k
			ta.Dangers = append(ta.Dangers, Danger{
				Type:     DangerStrategicError,
				Severity: SeverityHigh,
				Message:  "discarding a joker",
				Impact:   "any player may call it and it can never be reclaimed",
			})
		}
	}

	if short > 0 {
		res.Diagnostic = DiagnosticShortPass
		g.logger.Warn("could not meet the minimum selection", "phase", st.phase, "short", short)
	}
}

// fallbackDiscard marks one copy of the least valuable tile for discard in a
// complete hand. Every action stays keep; the selection is only used if the
// player does not declare.
func fallbackDiscard(acts []TileAction) {
	best := -1
	for i := range acts {
		if acts[i].Release > 0 {
			return
		}
	}
	for i := range acts {
		ta := acts[i]
		if ta.PrimaryAction == ActionNeutral || ta.Count == 0 {
			continue
		}
		if best < 0 {
			best = i
			continue
		}
		b := acts[best]
		if (b.TileID == tiles.Joker) != (ta.TileID == tiles.Joker) {
			if b.TileID == tiles.Joker {
				best = i
			}
			continue
		}
		if ta.Priority != b.Priority {
			if ta.Priority < b.Priority {
				best = i
			}
			continue
		}
		if tierRank(ta.Tier) != tierRank(b.Tier) {
			if tierRank(ta.Tier) < tierRank(b.Tier) {
				best = i
			}
			continue
		}
		if tiles.Less(ta.TileID, b.TileID) {
			best = i
		}
	}
	if best < 0 {
		return
	}
	ta := &acts[best]
	ta.Release = 1
	ta.Reasoning += "; discard this one if you play on instead of declaring"
}

// passDangers flags released charleston tiles that at least two viable
// patterns use. It runs after the backfill, which can release tiered tiles.
func passDangers(acts []TileAction, st *state) {
	for i := range acts {
		ta := &acts[i]
		if ta.TileID == tiles.Joker || ta.PrimaryAction == ActionNeutral {
			continue
		}
		passed := ta.ContextualActions.Charleston == ActionPass ||
			(st.phase == analysis.PhaseCharleston && ta.Release > 0)
		if !passed {
			continue
		}
		if n := st.viableHelped(ta.TileID); n >= 2 {
			ta.Dangers = append(ta.Dangers, Danger{
				Type:     DangerStrategicError,
				Severity: SeverityMedium,
				Message:  fmt.Sprintf("%s is useful to %d viable patterns", ta.TileID, n),
				Impact:   "passing it narrows your options",
			})
		}
	}
}

func forceRelease(ta *TileAction, a Action, copies int) {
	ta.Release += copies
	if ta.PrimaryAction.IsRelease() {
		return
	}
	ta.PrimaryAction = a
	if a == ActionPass {
		ta.ContextualActions.Charleston = a
	} else {
		ta.ContextualActions.Gameplay = a
	}
	ta.Confidence = backfillConfidence
	ta.Reasoning += fmt.Sprintf("; released to meet the minimum %s", a)
}

// tierRank orders tiers for release: untiered first, tier 1 last.
func tierRank(tier int) int {
	if tier == 0 {
		return 0
	}
	return 4 - tier
}

func selections(acts []TileAction, phase analysis.Phase) (pass, discard []string) {
	order := make([]int, 0, len(acts))
	for i, ta := range acts {
		if ta.Release > 0 {
			order = append(order, i)
		}
	}
	sort.SliceStable(order, func(a, b int) bool {
		x, y := acts[order[a]], acts[order[b]]
		if x.Priority != y.Priority {
			return x.Priority < y.Priority
		}
		return tiles.Less(x.TileID, y.TileID)
	})

	picked := []string{}
	for _, i := range order {
		for n := 0; n < acts[i].Release; n++ {
			picked = append(picked, acts[i].TileID)
		}
	}
	if phase == analysis.PhaseGameplay {
		return []string{}, picked
	}
	return picked, []string{}
}

func keepTiles(acts []TileAction) []string {
	out := []string{}
	for _, ta := range acts {
		if ta.PrimaryAction == ActionNeutral {
			continue
		}
		for n := ta.Release; n < ta.Count; n++ {
			out = append(out, ta.TileID)
		}
	}
	return out
}

func (g *Generator) advice(st *state, res Results) []string {
	out := []string{}
	jokers := st.in.Hand.Jokers()

	if st.phase == analysis.PhaseCharleston {
		if st.hasTop {
			out = append(out, fmt.Sprintf("Build toward %s (%s, %.0f%% complete)",
				st.top.PatternID, st.top.Tier, st.top.CompletionRatio*100))
		}
		if len(res.PassSelection) > 0 {
			out = append(out, "Pass first: "+strings.Join(res.PassSelection[:min(3, len(res.PassSelection))], ", "))
		}
		if jokers > 0 {
			out = append(out, fmt.Sprintf("Keep all %d %s; jokers cannot be passed", jokers, plural(jokers, "joker", "jokers")))
		}
	} else {
		switch {
		case st.complete:
			out = append(out, "Hand is complete: declare mahjong")
		case st.hasTop:
			missing := st.topFacts.MissingTiles.Total()
			out = append(out, fmt.Sprintf("Target %s: %d %s to go", st.top.PatternID, missing, plural(missing, "tile", "tiles")))
		}
		if w := st.in.Context.WallTilesRemaining; w <= g.policy.WallCaution {
			out = append(out, fmt.Sprintf("Wall is low (%d tiles): prefer discards already seen on the table", w))
		}
	}

	for _, ta := range res.TileActions {
		if ta.HasDanger(DangerOpponentFeeding) && ta.PrimaryAction.IsRelease() {
			out = append(out, fmt.Sprintf("Think twice before releasing %s: an opponent likely needs it", ta.TileID))
		}
	}
	if sa := st.in.Ranking.SwitchAnalysis; sa != nil && sa.ShouldSwitch {
		out = append(out, fmt.Sprintf("Consider switching to %s (+%.0f points)", sa.BestAlternativeID, sa.ScoreGap))
	}
	if st.hasTop && len(st.in.Ranking.ViablePatterns) == 0 {
		out = append(out, "No pattern is viable yet; keep pairs and jokers flexible")
	}
	return out
}

func neutral(id string, count int, reason string) TileAction {
	return TileAction{
		TileID:            id,
		Count:             count,
		PrimaryAction:     ActionNeutral,
		Priority:          1,
		ContextualActions: ContextualActions{Charleston: ActionNeutral, Gameplay: ActionNeutral, Exposition: ActionNeutral},
		PatternsHelped:    []string{},
		Reasoning:         reason,
		Dangers: []Danger{{
			Type:     DangerStrategicError,
			Severity: SeverityLow,
			Message:  fmt.Sprintf("%s was not analyzed", id),
			Impact:   reason,
		}},
	}
}

func failed(phase analysis.Phase, diagnostic string, f *analysis.Failure) Results {
	return Results{
		Phase:            phase,
		TileActions:      []TileAction{},
		KeepTiles:        []string{},
		PassSelection:    []string{},
		DiscardSelection: []string{},
		StrategicAdvice:  []string{},
		Failed:           true,
		Diagnostic:       diagnostic,
		Failure:          f,
	}
}

// countRaw counts raw ids and returns them in first-seen order.
func countRaw(raw []string) (map[string]int, []string) {
	counts := make(map[string]int)
	var order []string
	for _, id := range raw {
		if counts[id] == 0 {
			order = append(order, id)
		}
		counts[id]++
	}
	return counts, order
}

func pick(cond bool, a, b Action) Action {
	if cond {
		return a
	}
	return b
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
