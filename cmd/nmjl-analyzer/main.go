// Package main is the command line front end of the hand analysis engine.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ramonehamilton/NMJL-Companion/internal/app"
	"github.com/ramonehamilton/NMJL-Companion/internal/config"
	"github.com/ramonehamilton/NMJL-Companion/internal/logging"
	"github.com/ramonehamilton/NMJL-Companion/internal/nmjl/analysis"
	"github.com/ramonehamilton/NMJL-Companion/internal/nmjl/engine"
)

// cli carries the global flags and the services opened for one command.
type cli struct {
	configPath  string
	dbPath      string
	catalogPath string
	logLevel    string
	stats       bool
	jsonOut     bool

	app *app.App
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:          "nmjl-analyzer",
		Short:        "Analyze American Mahjong hands against the NMJL card",
		SilenceUsage: true,
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return c.close(cmd.OutOrStdout())
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&c.configPath, "config", "", "config file (default ~/.nmjl-companion/config.toml)")
	flags.StringVar(&c.dbPath, "db-path", "", "catalog store path (overrides config)")
	flags.StringVar(&c.catalogPath, "catalog", "", "JSON or YAML catalog file (overrides config)")
	flags.StringVar(&c.logLevel, "log-level", "", "debug, info, warn or error (overrides config)")
	flags.BoolVar(&c.stats, "stats", false, "print engine metrics after the command")
	flags.BoolVar(&c.jsonOut, "json", false, "print results as JSON")

	root.AddCommand(
		newAnalyzeCmd(c),
		newRecommendCmd(c),
		newProbabilityCmd(c),
		newPatternsCmd(c),
		newImportCmd(c),
		newReportCmd(c),
		newVersionCmd(),
	)
	return root
}

// loadConfig reads the config file with env and flag overrides applied.
func (c *cli) loadConfig() (*config.Config, error) {
	path := c.configPath
	if path == "" {
		p, err := config.DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}
	if err := config.LoadEnv(); err != nil {
		return nil, err
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	if c.dbPath != "" {
		cfg.Storage.Path = c.dbPath
	}
	if c.catalogPath != "" {
		cfg.Catalog.Path = c.catalogPath
	}
	if c.logLevel != "" {
		cfg.Logging.Level = c.logLevel
	}
	// The CLI talks to people; keep routine startup logs out of the output.
	if c.logLevel == "" && cfg.Logging.Level == "info" {
		cfg.Logging.Level = "warn"
	}
	return cfg, nil
}

// open starts the engine for commands that need it.
func (c *cli) open(cmd *cobra.Command) (*app.App, error) {
	if c.app != nil {
		return c.app, nil
	}
	cfg, err := c.loadConfig()
	if err != nil {
		return nil, err
	}
	logger := logging.InitWriter(cmd.ErrOrStderr(), "nmjl", cfg.Logging.Level)
	a, err := app.New(commandContext(cmd), cfg, logger)
	if err != nil {
		return nil, err
	}
	c.app = a
	return a, nil
}

func (c *cli) close(w io.Writer) error {
	if c.app == nil {
		return nil
	}
	if c.stats {
		if c.jsonOut {
			if err := writeJSON(w, c.app.Metrics.GetStats()); err != nil {
				return err
			}
		} else {
			displayStats(w, c.app.Metrics.GetStats())
		}
	}
	err := c.app.Close()
	c.app = nil
	return err
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// handFlags are the request options shared by the hand commands.
type handFlags struct {
	patterns []string
	target   string
	gameplay bool
	wall     int
	round    int
	discards []string
}

func (h *handFlags) register(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringSliceVar(&h.patterns, "patterns", nil, "restrict candidates to these pattern ids")
	f.StringVar(&h.target, "target", "", "pattern currently being built")
	f.BoolVar(&h.gameplay, "gameplay", false, "analyze for the gameplay phase instead of the charleston")
	f.IntVar(&h.wall, "wall", 0, "tiles left in the wall (default: full wall)")
	f.IntVar(&h.round, "round", 0, "round number")
	f.StringSliceVar(&h.discards, "discards", nil, "tiles already discarded")
}

// request builds an engine request from the hand arguments and flags.
func (h *handFlags) request(args []string) engine.Request {
	req := engine.Request{
		Hand:            parseHand(args),
		PatternIDs:      h.patterns,
		TargetPatternID: h.target,
	}
	if h.gameplay || h.wall > 0 || h.round > 0 || len(h.discards) > 0 {
		ctx := analysis.DefaultContext()
		if h.gameplay {
			ctx.Phase = analysis.PhaseGameplay
		}
		if h.wall > 0 {
			ctx.WallTilesRemaining = h.wall
		}
		if h.round > 0 {
			ctx.RoundNumber = h.round
		}
		ctx.DiscardPile = h.discards
		req.Context = &ctx
	}
	return req
}

// parseHand accepts tiles as separate arguments, comma separated, or both.
func parseHand(args []string) []string {
	var hand []string
	for _, arg := range args {
		hand = append(hand, strings.FieldsFunc(arg, func(r rune) bool {
			return r == ',' || r == ' '
		})...)
	}
	return hand
}

func requireHand(cmd *cobra.Command, args []string) error {
	if len(parseHand(args)) == 0 {
		return fmt.Errorf("%s needs the hand's tiles, e.g. 1D 1D 2B joker", cmd.Name())
	}
	return nil
}
