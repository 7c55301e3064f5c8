package observability

import (
	"log/slog"
	"sync"
)

// ScoreDriftMonitor watches the mean round score per round type and model.
// The first full window becomes the baseline; later windows are compared
// against it so a model or prompt change that shifts scoring shows up as drift.
type ScoreDriftMonitor struct {
	windowSize int
	threshold  float64

	mu       sync.Mutex
	baseline map[driftKey]float64
	recent   map[driftKey][]float64
}

type driftKey struct{ roundType, model string }

// NewScoreDriftMonitor creates a monitor. Drift above threshold score points is logged.
func NewScoreDriftMonitor(windowSize int, threshold float64) *ScoreDriftMonitor {
	if windowSize <= 0 {
		windowSize = 20
	}
	return &ScoreDriftMonitor{
		windowSize: windowSize,
		threshold:  threshold,
		baseline:   make(map[driftKey]float64),
		recent:     make(map[driftKey][]float64),
	}
}

// Record adds a round score and returns the current drift (0 until a baseline exists).
func (m *ScoreDriftMonitor) Record(roundType, model string, score int) float64 {
	if m == nil {
		return 0
	}
	k := driftKey{roundType, model}
	m.mu.Lock()
	defer m.mu.Unlock()

	window := append(m.recent[k], float64(score))
	if len(window) > m.windowSize {
		window = window[len(window)-m.windowSize:]
	}
	m.recent[k] = window
	if len(window) < m.windowSize {
		return 0
	}

	avg := mean(window)
	base, ok := m.baseline[k]
	if !ok {
		m.baseline[k] = avg
		slog.Info("round score baseline established",
			slog.String("round_type", roundType),
			slog.String("model", model),
			slog.Float64("baseline", avg))
		return 0
	}
	drift := avg - base
	if drift < 0 {
		drift = -drift
	}
	RoundScoreDrift.WithLabelValues(roundType, model).Set(drift)
	if drift > m.threshold {
		slog.Warn("round score drift detected",
			slog.String("round_type", roundType),
			slog.String("model", model),
			slog.Float64("baseline", base),
			slog.Float64("recent_mean", avg),
			slog.Float64("drift", drift),
			slog.Float64("threshold", m.threshold))
	}
	return drift
}

func mean(vs []float64) float64 {
	var sum float64
	for _, v := range vs {
		sum += v
	}
	return sum / float64(len(vs))
}
