package charts

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ramonehamilton/NMJL-Companion/internal/nmjl/probability"
	"github.com/ramonehamilton/NMJL-Companion/internal/nmjl/ranking"
)

func sampleRanking() ranking.Result {
	return ranking.Result{All: []ranking.RankedPattern{
		{PatternID: "2025-1", Breakdown: ranking.Breakdown{CurrentTileScore: 30, AvailabilityScore: 20, JokerScore: 10, PriorityScore: 5}},
		{PatternID: "369-1", Breakdown: ranking.Breakdown{CurrentTileScore: 20, AvailabilityScore: 15, JokerScore: 5, PriorityScore: 4}},
		{PatternID: "winds-1", Breakdown: ranking.Breakdown{CurrentTileScore: 5, AvailabilityScore: 2, PriorityScore: 8}},
	}}
}

func TestRankingSeries(t *testing.T) {
	labels, series := RankingSeries(sampleRanking(), 2)

	assert.Equal(t, []string{"2025-1", "369-1"}, labels)
	require.Len(t, series, 4)
	assert.Equal(t, "Current tiles", series[0].Name)
	assert.Equal(t, []float64{30, 20}, series[0].Values)
	assert.Equal(t, []float64{5, 4}, series[3].Values)

	labels, _ = RankingSeries(sampleRanking(), 0)
	assert.Len(t, labels, 3)
}

func TestRenderRanking(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, RenderRanking(&buf, sampleRanking(), 10, DefaultChartConfig()))

	html := buf.String()
	assert.Contains(t, html, "Pattern ranking")
	assert.Contains(t, html, "2025-1")
	assert.Contains(t, html, "winds-1")
	assert.Contains(t, html, "Availability")
}

func TestRenderRankingEmpty(t *testing.T) {
	var buf bytes.Buffer
	err := RenderRanking(&buf, ranking.Result{}, 10, DefaultChartConfig())
	assert.ErrorIs(t, err, ErrNoData)
}

func TestRenderStackedBarChartMismatch(t *testing.T) {
	var buf bytes.Buffer
	err := RenderStackedBarChart(&buf, []string{"a", "b"}, []SeriesData{{Name: "x", Values: []float64{1}}}, nil, DefaultChartConfig())
	assert.Error(t, err)
}

func TestRenderTileOdds(t *testing.T) {
	est := probability.Estimate{
		PatternID: "2468-1",
		Tiles: []probability.TileOdds{
			{TileID: "4B", Needed: 2, Probability: 0.42},
			{TileID: "8B", Needed: 1, Probability: 0.7},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, RenderTileOdds(&buf, est, DefaultChartConfig()))
	html := buf.String()
	assert.Contains(t, html, "Draw odds for 2468-1")
	assert.Contains(t, html, "4B x2")

	buf.Reset()
	assert.ErrorIs(t, RenderTileOdds(&buf, probability.Estimate{PatternID: "x"}, DefaultChartConfig()), ErrNoData)
}

func TestWriteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reports", "ranking.html")

	err := WriteFile(path, func(w io.Writer) error {
		return RenderRanking(w, sampleRanking(), 0, DefaultChartConfig())
	})
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "369-1")
}
