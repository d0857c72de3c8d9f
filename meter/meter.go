// Package meter provides streaming error-rate and timing accumulators for
// decoding runs.
package meter

import "time"

// EditMeter accumulates edit distance against reference sequences and
// reports the error rate as a percentage. A meter is not safe for concurrent
// use; the batch driver keeps one per worker.
type EditMeter struct {
	edits  int
	refLen int
}

// Add computes the Levenshtein edit distance between a predicted sequence
// and a reference sequence and folds it into the running totals.
func (m *EditMeter) Add(predicted, reference []string) {
	m.edits += EditDistance(predicted, reference)
	m.refLen += len(reference)
}

// Value returns 100 * totalEdits / totalReferenceLength, or 0 when no
// reference symbols have been accumulated.
func (m *EditMeter) Value() float64 {
	if m.refLen == 0 {
		return 0
	}
	return 100 * float64(m.edits) / float64(m.refLen)
}

// Reset clears the accumulated counts.
func (m *EditMeter) Reset() {
	m.edits = 0
	m.refLen = 0
}

// EditDistance computes the Levenshtein edit distance between two sequences.
func EditDistance(a, b []string) int {
	la, lb := len(a), len(b)
	if la == 0 {
		return lb
	}
	if lb == 0 {
		return la
	}

	// Use single-row DP to save memory.
	prev := make([]int, lb+1)
	for j := 0; j <= lb; j++ {
		prev[j] = j
	}

	for i := 1; i <= la; i++ {
		cur := make([]int, lb+1)
		cur[0] = i
		for j := 1; j <= lb; j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			del := prev[j] + 1
			ins := cur[j-1] + 1
			sub := prev[j-1] + cost
			m := del
			if ins < m {
				m = ins
			}
			if sub < m {
				m = sub
			}
			cur[j] = m
		}
		prev = cur
	}
	return prev[lb]
}

// TimeMeter accumulates wall time across resume/stop intervals.
type TimeMeter struct {
	total   time.Duration
	started time.Time
	running bool
}

// Resume starts (or restarts) the meter.
func (m *TimeMeter) Resume() {
	if !m.running {
		m.started = time.Now()
		m.running = true
	}
}

// Stop pauses the meter, folding the current interval into the total.
func (m *TimeMeter) Stop() {
	if m.running {
		m.total += time.Since(m.started)
		m.running = false
	}
}

// Value returns the accumulated duration.
func (m *TimeMeter) Value() time.Duration {
	if m.running {
		return m.total + time.Since(m.started)
	}
	return m.total
}
