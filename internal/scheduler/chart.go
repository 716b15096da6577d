package scheduler

import (
	"bytes"
	"fmt"
	"sync"
	"time"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

// ThroughputPoint is one tick's report, reduced to chart-worthy counters.
type ThroughputPoint struct {
	At        time.Time
	Checked   int
	Succeeded int
	Failed    int
}

// RenderThroughputChart renders a PNG sparkline of checked/succeeded/failed
// counts per tick, for operator inspection of scheduler health over time.
func RenderThroughputChart(points []ThroughputPoint) ([]byte, error) {
	if len(points) < 2 {
		return nil, fmt.Errorf("need at least 2 tick samples, got %d", len(points))
	}

	xValues := make([]time.Time, len(points))
	checkedY := make([]float64, len(points))
	succeededY := make([]float64, len(points))
	failedY := make([]float64, len(points))

	for i, p := range points {
		xValues[i] = p.At
		checkedY[i] = float64(p.Checked)
		succeededY[i] = float64(p.Succeeded)
		failedY[i] = float64(p.Failed)
	}

	graph := chart.Chart{
		Title:  "Scheduler Throughput",
		Width:  900,
		Height: 300,
		Background: chart.Style{
			Padding: chart.Box{Top: 40, Left: 10, Right: 20, Bottom: 10},
		},
		XAxis: chart.XAxis{
			TickPosition: chart.TickPositionBetweenTicks,
			ValueFormatter: func(v interface{}) string {
				if t, ok := v.(float64); ok {
					return chart.TimeFromFloat64(t).Format("15:04:05")
				}
				return ""
			},
		},
		Series: []chart.Series{
			chart.TimeSeries{
				Name:    "Checked",
				Style:   chart.Style{StrokeColor: drawing.ColorFromHex("64748b"), StrokeWidth: 1.5},
				XValues: xValues,
				YValues: checkedY,
			},
			chart.TimeSeries{
				Name:    "Succeeded",
				Style:   chart.Style{StrokeColor: drawing.ColorFromHex("16a34a"), StrokeWidth: 2},
				XValues: xValues,
				YValues: succeededY,
			},
			chart.TimeSeries{
				Name:    "Failed",
				Style:   chart.Style{StrokeColor: drawing.ColorFromHex("dc2626"), StrokeWidth: 2},
				XValues: xValues,
				YValues: failedY,
			},
		},
	}

	var buf bytes.Buffer
	if err := graph.Render(chart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("chart render failed: %w", err)
	}
	return buf.Bytes(), nil
}

// ThroughputHistory keeps the last N tick samples in memory for the
// operator chart endpoint. Not durable — a restart clears it, which is
// acceptable for an inspection-only surface.
type ThroughputHistory struct {
	mu      sync.Mutex
	max     int
	samples []ThroughputPoint
}

// NewThroughputHistory returns a history capped at max samples.
func NewThroughputHistory(max int) *ThroughputHistory {
	if max <= 0 {
		max = 100
	}
	return &ThroughputHistory{max: max}
}

// Record appends one tick's report to the history, evicting the oldest
// sample once max is exceeded.
func (h *ThroughputHistory) Record(at time.Time, r *TickReport) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.samples = append(h.samples, ThroughputPoint{At: at, Checked: r.Checked, Succeeded: r.Succeeded, Failed: r.Failed})
	if len(h.samples) > h.max {
		h.samples = h.samples[len(h.samples)-h.max:]
	}
}

// Samples returns a copy of the recorded history.
func (h *ThroughputHistory) Samples() []ThroughputPoint {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]ThroughputPoint, len(h.samples))
	copy(out, h.samples)
	return out
}
