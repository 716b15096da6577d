package scheduler

import (
	"bytes"
	"testing"
	"time"
)

func TestThroughputHistory_EvictsOldestBeyondMax(t *testing.T) {
	h := NewThroughputHistory(3)
	base := time.Now().UTC()
	for i := 0; i < 5; i++ {
		h.Record(base.Add(time.Duration(i)*time.Minute), &TickReport{Checked: i})
	}

	samples := h.Samples()
	if len(samples) != 3 {
		t.Fatalf("len(samples) = %d, want 3", len(samples))
	}
	if samples[0].Checked != 2 {
		t.Errorf("oldest retained sample Checked = %d, want 2", samples[0].Checked)
	}
	if samples[2].Checked != 4 {
		t.Errorf("newest sample Checked = %d, want 4", samples[2].Checked)
	}
}

func TestThroughputHistory_DefaultsMaxWhenNonPositive(t *testing.T) {
	h := NewThroughputHistory(0)
	if h.max != 100 {
		t.Errorf("max = %d, want default 100", h.max)
	}
}

func TestThroughputHistory_SamplesReturnsCopy(t *testing.T) {
	h := NewThroughputHistory(10)
	h.Record(time.Now().UTC(), &TickReport{Checked: 1})

	samples := h.Samples()
	samples[0].Checked = 999

	if h.Samples()[0].Checked != 1 {
		t.Error("mutating the returned slice affected internal state")
	}
}

func TestRenderThroughputChart_RequiresAtLeastTwoSamples(t *testing.T) {
	if _, err := RenderThroughputChart(nil); err == nil {
		t.Fatal("expected an error with zero samples")
	}
	if _, err := RenderThroughputChart([]ThroughputPoint{{At: time.Now().UTC()}}); err == nil {
		t.Fatal("expected an error with one sample")
	}
}

func TestRenderThroughputChart_ProducesPNG(t *testing.T) {
	now := time.Now().UTC()
	points := []ThroughputPoint{
		{At: now, Checked: 3, Succeeded: 2, Failed: 1},
		{At: now.Add(time.Minute), Checked: 5, Succeeded: 5, Failed: 0},
	}

	png, err := RenderThroughputChart(points)
	if err != nil {
		t.Fatalf("RenderThroughputChart: %v", err)
	}
	pngSignature := []byte{0x89, 'P', 'N', 'G'}
	if !bytes.HasPrefix(png, pngSignature) {
		t.Error("output does not look like a PNG")
	}
}
