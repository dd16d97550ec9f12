package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/ramonehamilton/NMJL-Companion/internal/metrics"
	"github.com/ramonehamilton/NMJL-Companion/internal/nmjl/catalog"
	"github.com/ramonehamilton/NMJL-Companion/internal/nmjl/engine"
	"github.com/ramonehamilton/NMJL-Companion/internal/nmjl/probability"
)

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func heading(w io.Writer, title string) {
	fmt.Fprintf(w, "\n%s\n", title)
	fmt.Fprintln(w, strings.Repeat("=", len(title)))
	fmt.Fprintln(w)
}

// displayReport prints the top of the ranking and the tile advice.
func displayReport(w io.Writer, report engine.Report, top int) {
	heading(w, "Hand Analysis")
	fmt.Fprintf(w, "Hand:    %s\n", strings.Join(report.Hand, " "))
	fmt.Fprintf(w, "Jokers:  %d\n", report.Jokers)
	fmt.Fprintf(w, "Catalog: %s  Policy: %s\n", report.CatalogVersion, report.PolicyVersion)
	if report.CacheHit {
		fmt.Fprintln(w, "(cached)")
	}
	if len(report.Unrecognized) > 0 {
		fmt.Fprintf(w, "Unrecognized tiles: %s\n", strings.Join(report.Unrecognized, ", "))
	}
	if len(report.UnknownPatterns) > 0 {
		fmt.Fprintf(w, "Unknown patterns:   %s\n", strings.Join(report.UnknownPatterns, ", "))
	}
	if report.Failed() {
		fmt.Fprintf(w, "\nAnalysis failed (%s): %s\n", report.Diagnostic, report.Failure.Message)
		return
	}

	if report.Ranking != nil {
		ranked := report.Ranking.All
		if top > 0 && len(ranked) > top {
			ranked = ranked[:top]
		}
		fmt.Fprintln(w)
		fmt.Fprintf(w, "%-4s %-14s %6s  %-10s %5s  %s\n", "#", "Pattern", "Score", "Tier", "Done", "Notes")
		for i, p := range ranked {
			notes := p.Explanation
			if p.Blocked {
				notes = "blocked; " + notes
			}
			fmt.Fprintf(w, "%-4d %-14s %6.1f  %-10s %4.0f%%  %s\n",
				i+1, p.PatternID, p.TotalScore, p.Tier, p.CompletionRatio*100, notes)
		}
		if sw := report.Ranking.SwitchAnalysis; sw != nil {
			fmt.Fprintln(w)
			fmt.Fprintf(w, "Target %s: %s\n", sw.CurrentPatternID, sw.Reasoning)
		}
	}

	if report.Recommendations != nil {
		displayAdvice(w, report)
	}
	fmt.Fprintln(w)
}

// displayRecommendations prints one line per distinct tile.
func displayRecommendations(w io.Writer, report engine.Report) {
	heading(w, "Tile Recommendations")
	if report.Failed() {
		fmt.Fprintf(w, "Analysis failed (%s): %s\n", report.Diagnostic, report.Failure.Message)
		return
	}
	recs := report.Recommendations
	if recs == nil {
		fmt.Fprintln(w, "No recommendations.")
		return
	}
	if recs.TargetPatternID != "" {
		fmt.Fprintf(w, "Target: %s (%s)\n\n", recs.TargetPatternID, recs.Phase)
	}

	for _, a := range recs.TileActions {
		fmt.Fprintf(w, "%-8s x%d  %-8s %3.0f%%  %s\n",
			a.TileID, a.Count, a.PrimaryAction, a.Confidence*100, a.Reasoning)
		for _, d := range a.Dangers {
			fmt.Fprintf(w, "          ! %s (%s)\n", d.Message, d.Severity)
		}
	}
	displayAdvice(w, report)
	fmt.Fprintln(w)
}

func displayAdvice(w io.Writer, report engine.Report) {
	recs := report.Recommendations
	fmt.Fprintln(w)
	if len(recs.KeepTiles) > 0 {
		fmt.Fprintf(w, "Keep:    %s\n", strings.Join(recs.KeepTiles, " "))
	}
	if len(recs.PassSelection) > 0 {
		fmt.Fprintf(w, "Pass:    %s\n", strings.Join(recs.PassSelection, " "))
	}
	if len(recs.DiscardSelection) > 0 {
		fmt.Fprintf(w, "Discard: %s\n", strings.Join(recs.DiscardSelection, " "))
	}
	for _, advice := range recs.StrategicAdvice {
		fmt.Fprintf(w, "  - %s\n", advice)
	}
}

// displayEstimate prints completion odds and the per-tile breakdown.
func displayEstimate(w io.Writer, est probability.Estimate) {
	heading(w, fmt.Sprintf("Completion Odds - %s", est.PatternID))
	if est.Failure != nil {
		fmt.Fprintf(w, "Estimate failed: %s\n", est.Failure.Message)
		return
	}

	fmt.Fprintf(w, "Wall tiles:      %d (%d draws left)\n", est.WallTiles, est.Draws)
	fmt.Fprintf(w, "Completion:      %.1f%%\n", est.CompletionProbability*100)
	if est.Reachable {
		fmt.Fprintf(w, "Expected turns:  %.1f\n", est.ExpectedTurns)
	} else {
		fmt.Fprintln(w, "Expected turns:  unreachable")
	}
	fmt.Fprintf(w, "Jokers left:     %d (best with %d more)\n", est.JokersLeft, est.OptimalJokers)
	fmt.Fprintf(w, "Method:          %s\n", est.Method)

	if len(est.Tiles) > 0 {
		fmt.Fprintln(w)
		for _, t := range est.Tiles {
			joker := ""
			if t.JokerEligible {
				joker = " (joker ok)"
			}
			fmt.Fprintf(w, "  %-8s need %d, %d live  %5.1f%%%s\n", t.TileID, t.Needed, t.Remaining, t.Probability*100, joker)
		}
	}

	fmt.Fprintln(w)
	for _, s := range []probability.Scenario{est.Best, est.Average, est.Worst} {
		if s.Name == "" {
			continue
		}
		fmt.Fprintf(w, "%-8s %5.1f%%  %s\n", s.Name, s.Probability*100, s.Description)
	}
	fmt.Fprintln(w)
}

// displayPatterns lists catalog lines grouped by section.
func displayPatterns(w io.Writer, cat *catalog.Catalog, patterns []catalog.Pattern, source string) {
	heading(w, fmt.Sprintf("Catalog %s (%s, %d patterns)", cat.Version(), source, cat.Len()))
	if len(patterns) == 0 {
		fmt.Fprintln(w, "No patterns found.")
		return
	}

	section := ""
	for _, p := range patterns {
		if p.Section != section {
			section = p.Section
			fmt.Fprintf(w, "%s\n", section)
		}
		entry, _ := cat.Entry(p.ID)
		concealed := ""
		if p.ConcealedOnly {
			concealed = " C"
		}
		status := fmt.Sprintf("%d hands", len(entry.Variations))
		if entry.Err != nil {
			status = "invalid: " + entry.Err.Error()
		}
		fmt.Fprintf(w, "  %-12s %-28s %3dpt%s  %s\n", p.ID, p.Display, p.Points, concealed, status)
	}
	fmt.Fprintln(w)
}

func displayVariations(w io.Writer, patternID string, variations []catalog.Variation) {
	heading(w, fmt.Sprintf("Variations - %s", patternID))
	for i, v := range variations {
		fmt.Fprintf(w, "%3d. %s  (%d joker slots)\n", i+1, strings.Join(v.Tiles(), " "), v.JokerSlots())
	}
	fmt.Fprintln(w)
}

func displayExpansion(w io.Writer, patterns []catalog.Pattern, all map[string][]catalog.Variation) {
	heading(w, "Expansion")
	total := 0
	for _, p := range patterns {
		vs, ok := all[p.ID]
		if !ok {
			fmt.Fprintf(w, "  %-12s failed\n", p.ID)
			continue
		}
		total += len(vs)
		fmt.Fprintf(w, "  %-12s %5d\n", p.ID, len(vs))
	}
	fmt.Fprintf(w, "\nTotal: %d concrete hands\n\n", total)
}

// displayValidation prints a catalog validation report.
func displayValidation(w io.Writer, path string, r *catalog.Report) {
	heading(w, fmt.Sprintf("Catalog Validation - %s", path))
	fmt.Fprintf(w, "Patterns:   %d (%d valid)\n", r.Patterns, r.ValidPatterns)
	fmt.Fprintf(w, "Variations: %d\n", r.Variations)

	sections := make([]string, 0, len(r.Sections))
	for s := range r.Sections {
		sections = append(sections, s)
	}
	sort.Strings(sections)
	for _, s := range sections {
		fmt.Fprintf(w, "  %-16s %d\n", s, r.Sections[s])
	}

	for _, id := range r.DuplicateIDs {
		fmt.Fprintf(w, "duplicate id: %s\n", id)
	}
	for _, e := range r.ConstraintErrors {
		fmt.Fprintf(w, "constraint: %s\n", e)
	}
	for _, e := range r.TileCountErrors {
		fmt.Fprintf(w, "tile count: %s/%s has %d tiles\n", e.PatternID, e.VariationID, e.TileCount)
	}
	if r.OK() {
		fmt.Fprintln(w, "\nOK")
	}
	fmt.Fprintln(w)
}

// displayStats prints the engine counters collected during the command.
func displayStats(w io.Writer, s *metrics.Stats) {
	heading(w, "Engine Stats")
	fmt.Fprintf(w, "Scans:          %d\n", s.Scans)
	fmt.Fprintf(w, "Cache:          %d hits, %d misses (%.1f%%)\n", s.CacheHits, s.CacheMisses, s.CacheHitRate)
	fmt.Fprintf(w, "Failures:       %d (%d partial)\n", s.Failures, s.PartialFailures)
	fmt.Fprintf(w, "Match latency:  p50 %.2fms  p95 %.2fms (%d)\n", s.MatchLatency.P50, s.MatchLatency.P95, s.MatchLatency.Count)
	fmt.Fprintf(w, "Rank latency:   p50 %.2fms  p95 %.2fms (%d)\n", s.RankLatency.P50, s.RankLatency.P95, s.RankLatency.Count)
	fmt.Fprintf(w, "Scan latency:   p50 %.2fms  p95 %.2fms (%d)\n", s.ScanLatency.P50, s.ScanLatency.P95, s.ScanLatency.Count)
	fmt.Fprintf(w, "Uptime:         %s\n", s.Uptime)
}
