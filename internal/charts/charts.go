// Package charts renders analysis results as standalone HTML charts.
package charts

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/ramonehamilton/NMJL-Companion/internal/nmjl/probability"
	"github.com/ramonehamilton/NMJL-Companion/internal/nmjl/ranking"
)

// ChartConfig holds configuration for charts.
type ChartConfig struct {
	Title      string   // Chart title
	Subtitle   string   // Chart subtitle
	YAxisLabel string   // Y-axis label
	XAxisLabel string   // X-axis label
	Width      string   // Chart width (e.g., "900px")
	Height     string   // Chart height (e.g., "500px")
	Theme      string   // Chart theme
	ShowLegend bool     // Show legend
	Colors     []string // Series colors, cycled
}

// DefaultChartConfig returns default chart configuration.
func DefaultChartConfig() ChartConfig {
	return ChartConfig{
		Width:      "900px",
		Height:     "500px",
		Theme:      "light",
		ShowLegend: true,
		Colors:     []string{"#5470C6", "#91CC75", "#FAC858", "#EE6666", "#73C0DE", "#3BA272", "#FC8452", "#9A60B4", "#EA7CCC"},
	}
}

// DataPoint represents a single data point in a chart.
type DataPoint struct {
	Label string
	Value float64
}

// SeriesData is one named series; its points line up with the chart labels.
type SeriesData struct {
	Name   string
	Values []float64
}

// ErrNoData is returned when there is nothing to plot.
var ErrNoData = errors.New("no data to chart")

func newBar(config ChartConfig, yMax any) *charts.Bar {
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			Width:  config.Width,
			Height: config.Height,
			Theme:  config.Theme,
		}),
		charts.WithTitleOpts(opts.Title{
			Title:    config.Title,
			Subtitle: config.Subtitle,
		}),
		charts.WithTooltipOpts(opts.Tooltip{
			Show:    opts.Bool(true),
			Trigger: "axis",
		}),
		charts.WithLegendOpts(opts.Legend{
			Show: opts.Bool(config.ShowLegend),
		}),
		charts.WithXAxisOpts(opts.XAxis{Name: config.XAxisLabel}),
		charts.WithYAxisOpts(opts.YAxis{Name: config.YAxisLabel, Max: yMax}),
		charts.WithColorsOpts(opts.Colors(config.Colors)),
	)
	return bar
}

// RenderBarChart writes a single-series bar chart.
func RenderBarChart(w io.Writer, name string, data []DataPoint, config ChartConfig) error {
	if len(data) == 0 {
		return ErrNoData
	}
	bar := newBar(config, nil)

	xLabels := make([]string, len(data))
	yData := make([]opts.BarData, len(data))
	for i, point := range data {
		xLabels[i] = point.Label
		yData[i] = opts.BarData{Value: point.Value}
	}

	bar.SetXAxis(xLabels).
		AddSeries(name, yData).
		SetSeriesOptions(
			charts.WithLabelOpts(opts.Label{
				Show: opts.Bool(false),
			}),
		)

	if err := bar.Render(w); err != nil {
		return fmt.Errorf("failed to render chart: %w", err)
	}
	return nil
}

// RenderStackedBarChart writes one bar per label, stacked from the series.
func RenderStackedBarChart(w io.Writer, labels []string, series []SeriesData, yMax any, config ChartConfig) error {
	if len(labels) == 0 || len(series) == 0 {
		return ErrNoData
	}
	bar := newBar(config, yMax)
	bar.SetXAxis(labels)

	for _, s := range series {
		if len(s.Values) != len(labels) {
			return fmt.Errorf("series %q has %d values for %d labels", s.Name, len(s.Values), len(labels))
		}
		yData := make([]opts.BarData, len(s.Values))
		for i, v := range s.Values {
			yData[i] = opts.BarData{Value: v}
		}
		bar.AddSeries(s.Name, yData, charts.WithBarChartOpts(opts.BarChart{Stack: "total"}))
	}

	if err := bar.Render(w); err != nil {
		return fmt.Errorf("failed to render chart: %w", err)
	}
	return nil
}

// RankingSeries splits the top limit patterns into one series per score
// component, in ranking order. A limit of zero or less keeps every pattern.
func RankingSeries(result ranking.Result, limit int) ([]string, []SeriesData) {
	ranked := result.All
	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}

	labels := make([]string, len(ranked))
	series := []SeriesData{
		{Name: "Current tiles", Values: make([]float64, len(ranked))},
		{Name: "Availability", Values: make([]float64, len(ranked))},
		{Name: "Jokers", Values: make([]float64, len(ranked))},
		{Name: "Priority", Values: make([]float64, len(ranked))},
	}
	for i, p := range ranked {
		labels[i] = p.PatternID
		series[0].Values[i] = p.Breakdown.CurrentTileScore
		series[1].Values[i] = p.Breakdown.AvailabilityScore
		series[2].Values[i] = p.Breakdown.JokerScore
		series[3].Values[i] = p.Breakdown.PriorityScore
	}
	return labels, series
}

// RenderRanking writes the ranked patterns as bars stacked by score component.
func RenderRanking(w io.Writer, result ranking.Result, limit int, config ChartConfig) error {
	if config.Title == "" {
		config.Title = "Pattern ranking"
	}
	if config.YAxisLabel == "" {
		config.YAxisLabel = "Score"
	}
	labels, series := RankingSeries(result, limit)
	return RenderStackedBarChart(w, labels, series, ranking.MaxTotal, config)
}

// RenderTileOdds writes the per-tile draw probabilities of an estimate as
// percentages.
func RenderTileOdds(w io.Writer, est probability.Estimate, config ChartConfig) error {
	if config.Title == "" {
		config.Title = fmt.Sprintf("Draw odds for %s", est.PatternID)
	}
	if config.YAxisLabel == "" {
		config.YAxisLabel = "%"
	}
	data := make([]DataPoint, len(est.Tiles))
	for i, t := range est.Tiles {
		data[i] = DataPoint{
			Label: fmt.Sprintf("%s x%d", t.TileID, t.Needed),
			Value: t.Probability * 100,
		}
	}
	return RenderBarChart(w, "Probability", data, config)
}

// WriteFile renders into a new file at path.
func WriteFile(path string, render func(io.Writer) error) (err error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create chart directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create chart file: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return render(f)
}

// OpenInBrowser opens the given file path in the default web browser.
func OpenInBrowser(filePath string) error {
	absPath, err := filepath.Abs(filePath)
	if err != nil {
		return fmt.Errorf("failed to get absolute path: %w", err)
	}

	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", absPath)
	case "windows":
		cmd = exec.Command("cmd", "/c", "start", absPath)
	case "linux":
		cmd = exec.Command("xdg-open", absPath)
	default:
		return fmt.Errorf("unsupported platform: %s", runtime.GOOS)
	}

	return cmd.Start()
}
