package inference

import (
	"sync"

	"aether/internal/logging"
)

// QualityMonitor tracks a rolling window of recent SIR confidence values
// and emits a single advisory warning when the window's mean falls below a
// floor, resetting once the mean recovers above it.
type QualityMonitor struct {
	mu        sync.Mutex
	window    []float64
	windowLen int
	floor     float64
	warned    bool
}

// NewQualityMonitor returns a QualityMonitor over the last windowLen
// confidence observations, warning when their mean drops below floor.
func NewQualityMonitor(windowLen int, floor float64) *QualityMonitor {
	if windowLen <= 0 {
		windowLen = 20
	}
	return &QualityMonitor{windowLen: windowLen, floor: floor}
}

// Observe records one confidence value and logs an advisory warning the
// first time the rolling mean drops below the floor since the last
// recovery.
func (q *QualityMonitor) Observe(confidence float64) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.window = append(q.window, confidence)
	if len(q.window) > q.windowLen {
		q.window = q.window[len(q.window)-q.windowLen:]
	}

	mean := q.mean()
	if mean < q.floor {
		if !q.warned {
			q.warned = true
			logging.Inference("sir quality advisory: rolling mean confidence %.3f below floor %.3f over last %d generations",
				mean, q.floor, len(q.window))
		}
		return
	}
	q.warned = false
}

// Mean returns the current rolling mean confidence.
func (q *QualityMonitor) Mean() float64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.mean()
}

func (q *QualityMonitor) mean() float64 {
	if len(q.window) == 0 {
		return 1.0
	}
	var sum float64
	for _, v := range q.window {
		sum += v
	}
	return sum / float64(len(q.window))
}
