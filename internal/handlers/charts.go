package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"go.uber.org/zap"

	"tova-go/internal/models"
)

// ShowChart renders the reaction time of every answered target. The chart
// options are returned as JSON with ?format=json, otherwise as a page.
func (h *ResultsHandler) ShowChart(c *gin.Context) {
	result, ok := h.lookup(c)
	if !ok {
		return
	}
	events, err := h.store.Events(c.Request.Context(), result.ID)
	if err != nil {
		h.log.Error("Failed to load test events", zap.Error(err), zap.Uint("result", result.ID))
		c.String(http.StatusInternalServerError, "Failed to load chart data")
		return
	}

	line := generateReactionTimeChart(events, result.MeanReactionTimeMs)
	if c.Query("format") == "json" {
		c.JSON(http.StatusOK, line.JSON())
		return
	}
	c.Header("Content-Type", "text/html; charset=utf-8")
	if err := line.Render(c.Writer); err != nil {
		h.log.Error("Failed to render chart", zap.Error(err))
	}
}

// reactionTimePoints returns the matched target responses in trial order.
func reactionTimePoints(events []models.TestEvent) (trials []string, latencies []int64) {
	for _, ev := range events {
		if ev.EventType != models.EventTypeResponse || ev.MatchedTrial == nil || ev.LatencyMs == nil {
			continue
		}
		if ev.IsTarget == nil || !*ev.IsTarget {
			continue
		}
		trials = append(trials, strconv.Itoa(*ev.MatchedTrial))
		latencies = append(latencies, *ev.LatencyMs)
	}
	return trials, latencies
}

func generateReactionTimeChart(events []models.TestEvent, meanMs float64) *charts.Line {
	trials, latencies := reactionTimePoints(events)

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title:    "Reaction Time per Target",
			Subtitle: "Mean " + strconv.FormatFloat(meanMs, 'f', 0, 64) + " ms",
		}),
		charts.WithXAxisOpts(opts.XAxis{Type: "category", Name: "Trial"}),
		charts.WithYAxisOpts(opts.YAxis{Type: "value", Name: "ms", Scale: opts.Bool(true)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "slider"}),
	)

	items := make([]opts.LineData, 0, len(latencies))
	for _, l := range latencies {
		items = append(items, opts.LineData{Value: l})
	}
	line.SetXAxis(trials).
		AddSeries("Reaction time (ms)", items).
		SetSeriesOptions(charts.WithLineStyleOpts(opts.LineStyle{Width: 2}))
	return line
}
