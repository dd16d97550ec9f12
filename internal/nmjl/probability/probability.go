// Package probability estimates how likely a hand is to complete a pattern
// before the wall runs out.
//
// Each missing tile's odds are computed on their own and multiplied. Draws for
// different tiles are not independent, so the product is an approximation
// that overstates the odds a little when many tiles are missing.
//
// The average case draws from every unseen tile: the wall plus the opponents'
// concealed hands. A copy's chance of being in the wall is the same as its
// chance of being drawn from that pool, so this is the fair estimate when the
// whereabouts of unseen copies are unknown.
package probability

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/charmbracelet/log"

	"github.com/ramonehamilton/NMJL-Companion/internal/logging"
	"github.com/ramonehamilton/NMJL-Companion/internal/nmjl/analysis"
	"github.com/ramonehamilton/NMJL-Companion/internal/nmjl/matcher"
	"github.com/ramonehamilton/NMJL-Companion/internal/nmjl/tiles"
)

// Scenario names.
const (
	ScenarioBest    = "best"
	ScenarioAverage = "average"
	ScenarioWorst   = "worst"
)

// MaxExtraJokers is the largest joker count in the dependency breakdown.
const MaxExtraJokers = 2

// Policy holds the calculator's constants.
type Policy struct {
	// SmallPopulation is the largest pool computed with the exact hypergeometric tail.
	SmallPopulation int `toml:"small_population" json:"smallPopulation"`
	Players         int `toml:"players" json:"players"`
	// ConcealedPerOpponent is the tile count an opponent holds before exposures.
	ConcealedPerOpponent int `toml:"concealed_per_opponent" json:"concealedPerOpponent"`
}

// DefaultPolicy returns four players with 13 concealed tiles each and a
// hypergeometric cutoff of 60.
func DefaultPolicy() Policy {
	return Policy{SmallPopulation: 60, Players: 4, ConcealedPerOpponent: 13}
}

// Validate checks the policy for usable values.
func (p Policy) Validate() error {
	var errs []error
	if p.SmallPopulation < 0 {
		errs = append(errs, errors.New("small_population must not be negative"))
	}
	if p.Players < 2 {
		errs = append(errs, fmt.Errorf("players %d below 2", p.Players))
	}
	if p.ConcealedPerOpponent < 0 {
		errs = append(errs, errors.New("concealed_per_opponent must not be negative"))
	}
	return errors.Join(errs...)
}

// TileOdds is the chance of collecting one missing tile in time.
type TileOdds struct {
	TileID        string  `json:"tileId"`
	GroupID       string  `json:"groupId"`
	Needed        int     `json:"needed"`
	Remaining     int     `json:"remaining"`
	JokerEligible bool    `json:"jokerEligible"`
	Probability   float64 `json:"probability"`
	ExpectedTurns float64 `json:"expectedTurns"`
	Method        Method  `json:"method"`
}

// Scenario is the completion outlook under one set of assumptions.
type Scenario struct {
	Name          string  `json:"name"`
	Probability   float64 `json:"probability"`
	ExpectedTurns float64 `json:"expectedTurns"`
	Description   string  `json:"description"`
}

// JokerOption is the outlook if the hand gains extra jokers.
type JokerOption struct {
	Jokers        int     `json:"jokers"`
	Probability   float64 `json:"probability"`
	ExpectedTurns float64 `json:"expectedTurns"`
}

// Estimate is the completion outlook for one pattern. ExpectedTurns is -1
// when some needed tile has too few live copies.
type Estimate struct {
	PatternID             string            `json:"patternId"`
	WallTiles             int               `json:"wallTiles"`
	Population            int               `json:"population"`
	Draws                 int               `json:"draws"`
	JokersLeft            int               `json:"jokersLeft"`
	Tiles                 []TileOdds        `json:"tiles"`
	CompletionProbability float64           `json:"completionProbability"`
	ExpectedTurns         float64           `json:"expectedTurns"`
	Reachable             bool              `json:"reachable"`
	Best                  Scenario          `json:"best"`
	Average               Scenario          `json:"average"`
	Worst                 Scenario          `json:"worst"`
	JokerDependency       []JokerOption     `json:"jokerDependency"`
	OptimalJokers         int               `json:"optimalJokers"`
	Method                Method            `json:"method"`
	Failure               *analysis.Failure `json:"failure,omitempty"`
}

// Calculator estimates completion odds. It is safe for concurrent use.
type Calculator struct {
	policy Policy
	logger *log.Logger
}

// New creates a calculator. The policy must validate.
func New(policy Policy, logger *log.Logger) (*Calculator, error) {
	if err := policy.Validate(); err != nil {
		return nil, fmt.Errorf("probability policy: %w", err)
	}
	return &Calculator{policy: policy, logger: logging.Or(logger).With("component", "probability")}, nil
}

// table is the draw environment shared by every tile.
type table struct {
	wall       int
	unseen     int
	draws      int
	jokersLeft int
}

func (c *Calculator) table(hand tiles.Hand, ctx analysis.GameContext) table {
	wall := max(ctx.WallTilesRemaining, 0)
	exposedByOthers, jokersVisible := 0, 0
	for player, exps := range ctx.ExposedTiles {
		for _, e := range exps {
			for _, id := range e.Tiles {
				if player != analysis.Self {
					exposedByOthers++
				}
				if t, err := tiles.Parse(id); err == nil && t.IsJoker() {
					jokersVisible++
				}
			}
		}
	}
	for _, id := range ctx.DiscardPile {
		if t, err := tiles.Parse(id); err == nil && t.IsJoker() {
			jokersVisible++
		}
	}
	concealed := max(0, (c.policy.Players-1)*c.policy.ConcealedPerOpponent-exposedByOthers)
	return table{
		wall:       wall,
		unseen:     wall + concealed,
		draws:      (wall + c.policy.Players - 1) / c.policy.Players,
		jokersLeft: max(0, tiles.JokerCopies-hand.Jokers()-jokersVisible),
	}
}

// assumptions shape one scenario run.
type assumptions struct {
	population  int
	calls       bool
	copyLoss    int
	drawJokers  bool
	extraJokers int
}

// Estimate computes the outlook for facts. Invalid facts return an estimate
// carrying their failure.
func (c *Calculator) Estimate(f matcher.Facts, hand tiles.Hand, ctx analysis.GameContext) Estimate {
	t := c.table(hand, ctx)
	est := Estimate{
		PatternID:       f.PatternID,
		WallTiles:       t.wall,
		Population:      t.unseen,
		Draws:           t.draws,
		JokersLeft:      t.jokersLeft,
		Tiles:           []TileOdds{},
		JokerDependency: []JokerOption{},
		Method:          methodFor(t.unseen, c.policy.SmallPopulation),
	}
	if !f.Valid {
		if f.Failure != nil {
			est.Failure = f.Failure
		} else {
			est.Failure = &analysis.Failure{Kind: analysis.FailurePartial, Subject: f.PatternID, Message: "invalid facts"}
		}
		est.ExpectedTurns = -1
		return est
	}

	missing := f.MissingTiles.All()
	if len(missing) == 0 {
		done := func(name string) Scenario {
			return Scenario{Name: name, Probability: 1, Description: "hand is complete"}
		}
		est.CompletionProbability, est.Reachable = 1, true
		est.Best, est.Average, est.Worst = done(ScenarioBest), done(ScenarioAverage), done(ScenarioWorst)
		for j := 0; j <= MaxExtraJokers; j++ {
			est.JokerDependency = append(est.JokerDependency, JokerOption{Jokers: j, Probability: 1})
		}
		return est
	}

	average := assumptions{population: t.unseen, drawJokers: true}
	prob, turns, odds := c.run(missing, t, average)
	est.Tiles = odds
	est.CompletionProbability = prob
	est.ExpectedTurns = turns
	est.Reachable = turns >= 0 && turns <= float64(t.draws)
	est.Average = Scenario{Name: ScenarioAverage, Probability: prob, ExpectedTurns: turns,
		Description: "unseen copies spread evenly between the wall and opponents' hands"}

	bp, bt, _ := c.run(missing, t, assumptions{population: max(t.wall, 1), calls: true, drawJokers: true})
	est.Best = Scenario{Name: ScenarioBest, Probability: bp, ExpectedTurns: bt,
		Description: "every live copy is in the wall and pungs can be called from discards"}

	wp, wt, _ := c.run(missing, t, assumptions{population: t.unseen, copyLoss: 1})
	est.Worst = Scenario{Name: ScenarioWorst, Probability: wp, ExpectedTurns: wt,
		Description: "opponents hold one copy of each needed tile and no jokers are drawn"}

	bestProb := -1.0
	for j := 0; j <= MaxExtraJokers; j++ {
		a := average
		a.extraJokers = j
		p, tt, _ := c.run(missing, t, a)
		est.JokerDependency = append(est.JokerDependency, JokerOption{Jokers: j, Probability: p, ExpectedTurns: tt})
		if p > bestProb+1e-9 {
			bestProb = p
			est.OptimalJokers = j
		}
	}

	c.logger.Debug("estimated completion", "pattern", f.PatternID, "probability", prob, "turns", turns)
	return est
}

// run returns the product of per-tile odds and the slowest expected tile.
func (c *Calculator) run(missing []matcher.MissingTile, t table, a assumptions) (float64, float64, []TileOdds) {
	odds := make([]TileOdds, len(missing))
	for i, m := range missing {
		odds[i] = TileOdds{
			TileID:        m.TileID,
			GroupID:       m.GroupID,
			Needed:        m.Count,
			Remaining:     max(0, m.Remaining-a.copyLoss),
			JokerEligible: m.JokerEligible,
		}
		c.score(&odds[i], t, a)
	}

	// Extra jokers go to the eligible slots with the worst odds.
	for j := 0; j < a.extraJokers; j++ {
		worst := -1
		for i, o := range odds {
			if o.JokerEligible && o.Needed > 0 && (worst < 0 || o.Probability < odds[worst].Probability) {
				worst = i
			}
		}
		if worst < 0 {
			break
		}
		odds[worst].Needed--
		c.score(&odds[worst], t, a)
	}

	prob, turns := 1.0, 0.0
	for _, o := range odds {
		prob *= o.Probability
		if o.ExpectedTurns < 0 || turns < 0 {
			turns = -1
			continue
		}
		turns = math.Max(turns, o.ExpectedTurns)
	}
	sort.SliceStable(odds, func(i, j int) bool { return odds[i].Probability < odds[j].Probability })
	return round4(prob), round1(turns), odds
}

func (c *Calculator) score(o *TileOdds, t table, a assumptions) {
	successes := o.Remaining
	if o.JokerEligible && a.drawJokers {
		successes += t.jokersLeft
	}
	draws, perTurn := t.draws, 1
	if a.calls && o.JokerEligible {
		draws *= c.policy.Players
		perTurn = c.policy.Players
	}
	p, method := DrawProbability(a.population, successes, draws, o.Needed, c.policy.SmallPopulation)
	o.Probability = round4(p)
	o.Method = method
	o.ExpectedTurns = ExpectedDraws(a.population, successes, o.Needed)
	if o.ExpectedTurns > 0 {
		o.ExpectedTurns = round1(o.ExpectedTurns / float64(perTurn))
	}
}

func methodFor(population, small int) Method {
	if population <= small {
		return MethodHypergeometric
	}
	return MethodMarginal
}

func round4(v float64) float64 { return math.Round(v*1e4) / 1e4 }

func round1(v float64) float64 { return math.Round(v*10) / 10 }
