package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ramonehamilton/NMJL-Companion/internal/charts"
	"github.com/ramonehamilton/NMJL-Companion/internal/nmjl/catalog"
	"github.com/ramonehamilton/NMJL-Companion/internal/version"
)

func newAnalyzeCmd(c *cli) *cobra.Command {
	var hf handFlags
	var top int
	cmd := &cobra.Command{
		Use:   "analyze TILE...",
		Short: "Rank every pattern for a hand and recommend tile actions",
		Args:  requireHand,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.open(cmd)
			if err != nil {
				return err
			}
			report, err := a.Engine.Analyze(commandContext(cmd), hf.request(args))
			if err != nil {
				return err
			}
			if c.jsonOut {
				return writeJSON(cmd.OutOrStdout(), report)
			}
			displayReport(cmd.OutOrStdout(), report, top)
			return nil
		},
	}
	hf.register(cmd)
	cmd.Flags().IntVar(&top, "top", 5, "number of ranked patterns to show")
	return cmd
}

func newRecommendCmd(c *cli) *cobra.Command {
	var hf handFlags
	cmd := &cobra.Command{
		Use:   "recommend TILE...",
		Short: "Show keep, pass and discard advice for each tile",
		Args:  requireHand,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.open(cmd)
			if err != nil {
				return err
			}
			report := a.Engine.Recommend(hf.request(args))
			if c.jsonOut {
				return writeJSON(cmd.OutOrStdout(), report.Recommendations)
			}
			displayRecommendations(cmd.OutOrStdout(), report)
			return nil
		},
	}
	hf.register(cmd)
	return cmd
}

func newProbabilityCmd(c *cli) *cobra.Command {
	var hf handFlags
	var patternID string
	cmd := &cobra.Command{
		Use:   "probability TILE...",
		Short: "Estimate the odds of completing a pattern",
		Args:  requireHand,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.open(cmd)
			if err != nil {
				return err
			}
			est := a.Engine.Probability(hf.request(args), patternID)
			if c.jsonOut {
				return writeJSON(cmd.OutOrStdout(), est)
			}
			displayEstimate(cmd.OutOrStdout(), est)
			return nil
		},
	}
	hf.register(cmd)
	cmd.Flags().StringVar(&patternID, "pattern", "", "pattern id (default: the top ranked pattern)")
	return cmd
}

func newPatternsCmd(c *cli) *cobra.Command {
	var section, variationsOf string
	var limit int
	var expand bool
	cmd := &cobra.Command{
		Use:   "patterns",
		Short: "List the active catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.open(cmd)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			cat := a.Engine.Catalog()

			if variationsOf != "" {
				variations, err := a.Engine.Variations(variationsOf)
				if err != nil {
					return err
				}
				if limit > 0 && len(variations) > limit {
					variations = variations[:limit]
				}
				if c.jsonOut {
					return writeJSON(out, variations)
				}
				displayVariations(out, variationsOf, variations)
				return nil
			}

			if expand {
				all, err := catalog.ExpandAll(cat.Patterns(), catalog.DefaultMaxVariations)
				if c.jsonOut {
					return errors.Join(err, writeJSON(out, all))
				}
				displayExpansion(out, cat.Patterns(), all)
				return err
			}

			var patterns []catalog.Pattern
			for _, p := range cat.Patterns() {
				if section == "" || strings.EqualFold(p.Section, section) {
					patterns = append(patterns, p)
				}
			}
			if c.jsonOut {
				return writeJSON(out, patterns)
			}
			displayPatterns(out, cat, patterns, a.CatalogSource)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&section, "section", "", "only patterns in this card section")
	f.StringVar(&variationsOf, "variations", "", "list the concrete hands of one pattern")
	f.IntVar(&limit, "limit", 20, "maximum variations to list (0 for all)")
	f.BoolVar(&expand, "expand", false, "count the concrete hands of every pattern")
	return cmd
}

func newImportCmd(c *cli) *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "import FILE",
		Short: "Validate a JSON or YAML catalog and save it to the catalog store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			patterns, err := catalog.LoadFile(path)
			if err != nil {
				return err
			}
			report := catalog.Validate(patterns, catalog.DefaultMaxVariations)
			out := cmd.OutOrStdout()
			if c.jsonOut {
				if err := writeJSON(out, report); err != nil {
					return err
				}
			} else {
				displayValidation(out, path, report)
			}
			if !report.OK() {
				return fmt.Errorf("catalog %s failed validation", path)
			}
			if dryRun {
				return nil
			}

			a, err := c.open(cmd)
			if err != nil {
				return err
			}
			if a.Storage == nil {
				return errors.New("import needs a catalog store; set --db-path or [storage] path")
			}
			cat, err := catalog.New(patterns, catalog.DefaultMaxVariations)
			if err != nil {
				return err
			}
			ctx := commandContext(cmd)
			if err := a.Storage.SaveCatalog(ctx, cat, path); err != nil {
				return err
			}
			if err := a.Engine.SetCatalog(ctx, cat, path); err != nil {
				return err
			}
			if !c.jsonOut {
				fmt.Fprintf(out, "Imported %d patterns (version %s)\n", cat.Len(), cat.Version())
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "validate only")
	return cmd
}

func newReportCmd(c *cli) *cobra.Command {
	var hf handFlags
	var outPath, oddsFor string
	var top int
	var open bool
	cmd := &cobra.Command{
		Use:   "report TILE...",
		Short: "Write an HTML chart of the ranking or of one pattern's draw odds",
		Args:  requireHand,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.open(cmd)
			if err != nil {
				return err
			}
			req := hf.request(args)
			config := charts.DefaultChartConfig()
			config.Subtitle = strings.Join(req.Hand, " ")

			var render func(io.Writer) error
			if oddsFor != "" {
				est := a.Engine.Probability(req, oddsFor)
				if est.Failure != nil {
					return fmt.Errorf("probability: %s", est.Failure.Message)
				}
				render = func(w io.Writer) error { return charts.RenderTileOdds(w, est, config) }
			} else {
				report := a.Engine.Rank(req)
				if report.Ranking == nil {
					return fmt.Errorf("ranking failed: %s", report.Diagnostic)
				}
				render = func(w io.Writer) error { return charts.RenderRanking(w, *report.Ranking, top, config) }
			}

			if err := charts.WriteFile(outPath, render); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Chart written to %s\n", outPath)
			if open {
				return charts.OpenInBrowser(outPath)
			}
			return nil
		},
	}
	hf.register(cmd)
	f := cmd.Flags()
	f.StringVarP(&outPath, "out", "o", "nmjl-report.html", "output HTML file")
	f.StringVar(&oddsFor, "odds", "", "chart the draw odds of this pattern instead of the ranking")
	f.IntVar(&top, "top", 10, "number of ranked patterns to chart (0 for all)")
	f.BoolVar(&open, "open", false, "open the chart in a browser")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			info := version.Get()
			fmt.Fprintf(cmd.OutOrStdout(), "nmjl-analyzer %s (commit %s, %s)\n", info.Version, info.Commit, info.GoVersion)
		},
	}
}
