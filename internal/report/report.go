// Package report summarizes the position transitions of a completed run
// (live or replay) into trade-level statistics.
package report

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"orderflow-lab/internal/domain"
	"orderflow-lab/internal/storage"
)

// ErrNoTransitions is returned when a run has no recorded transitions.
var ErrNoTransitions = errors.New("no transitions recorded for run")

// Summary aggregates the behavior of one run. A closed trade is a close or
// reverse transition; its outcome is the PnL realized on that transition.
type Summary struct {
	RunID  string
	Symbol string

	Transitions  int
	ClosedTrades int
	Wins         int
	Losses       int
	WinRate      float64

	TotalRealizedPnL float64
	PnLMean          float64
	PnLMedian        float64
	PnLP10           float64
	PnLP90           float64
	PnLMin           float64
	PnLMax           float64
	PnLStddev        float64

	MaxDrawdown          float64
	MaxConsecutiveLosses int

	FirstTransitionMs int64
	LastTransitionMs  int64

	ExitReasons []ExitReasonCount
}

// ExitReasonCount is one row of the exit-reason breakdown.
type ExitReasonCount struct {
	Reason string
	Count  int
}

// Summarizer loads transitions from storage and computes summaries.
type Summarizer struct {
	transitions storage.PositionTransitionStore
}

// NewSummarizer creates a summarizer backed by the given store.
func NewSummarizer(transitions storage.PositionTransitionStore) *Summarizer {
	return &Summarizer{transitions: transitions}
}

// SummarizeRun loads a run's transitions and computes its summary.
// Returns ErrNoTransitions when the run recorded nothing.
func (s *Summarizer) SummarizeRun(ctx context.Context, runID string) (*Summary, error) {
	trs, err := s.transitions.GetByRunID(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("load transitions for run %s: %w", runID, err)
	}
	if len(trs) == 0 {
		return nil, ErrNoTransitions
	}
	return ComputeSummary(runID, trs), nil
}

// ComputeSummary calculates all statistics from a slice of transitions.
// Transitions are sorted by TimestampMs ASC, TransitionID ASC before
// computing order-dependent metrics (MaxDrawdown, MaxConsecutiveLosses).
func ComputeSummary(runID string, transitions []*domain.PositionTransition) *Summary {
	sorted := make([]*domain.PositionTransition, len(transitions))
	copy(sorted, transitions)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].TimestampMs != sorted[j].TimestampMs {
			return sorted[i].TimestampMs < sorted[j].TimestampMs
		}
		return sorted[i].TransitionID < sorted[j].TransitionID
	})

	sum := &Summary{RunID: runID, Transitions: len(sorted)}
	if len(sorted) == 0 {
		return sum
	}
	sum.Symbol = sorted[0].Symbol
	sum.FirstTransitionMs = sorted[0].TimestampMs
	sum.LastTransitionMs = sorted[len(sorted)-1].TimestampMs

	// Closed trades in chronological order, with outcomes.
	var outcomes []float64
	reasons := make(map[string]int)
	for _, tr := range sorted {
		if tr.Kind != domain.TransitionClose && tr.Kind != domain.TransitionReverse {
			continue
		}
		outcomes = append(outcomes, tr.RealizedPnL)
		sum.TotalRealizedPnL += tr.RealizedPnL
		if tr.RealizedPnL > 0 {
			sum.Wins++
		} else {
			sum.Losses++
		}
		if tr.ExitReason != "" {
			reasons[tr.ExitReason]++
		}
	}
	sum.ClosedTrades = len(outcomes)
	sum.ExitReasons = sortedReasonCounts(reasons)
	if sum.ClosedTrades == 0 {
		return sum
	}
	sum.WinRate = float64(sum.Wins) / float64(sum.ClosedTrades)

	sortedOutcomes := make([]float64, len(outcomes))
	copy(sortedOutcomes, outcomes)
	sort.Float64s(sortedOutcomes)

	sum.PnLMean = computeMean(outcomes)
	sum.PnLMedian = computePercentile(sortedOutcomes, 0.50)
	sum.PnLP10 = computePercentile(sortedOutcomes, 0.10)
	sum.PnLP90 = computePercentile(sortedOutcomes, 0.90)
	sum.PnLMin = sortedOutcomes[0]
	sum.PnLMax = sortedOutcomes[len(sortedOutcomes)-1]
	sum.PnLStddev = computeStddev(outcomes, sum.PnLMean)
	sum.MaxDrawdown = computeMaxDrawdown(outcomes)
	sum.MaxConsecutiveLosses = computeMaxConsecutiveLosses(outcomes)

	return sum
}

func sortedReasonCounts(reasons map[string]int) []ExitReasonCount {
	if len(reasons) == 0 {
		return nil
	}
	keys := make([]string, 0, len(reasons))
	for k := range reasons {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	rows := make([]ExitReasonCount, len(keys))
	for i, k := range keys {
		rows[i] = ExitReasonCount{Reason: k, Count: reasons[k]}
	}
	return rows
}

// computeMean calculates arithmetic mean of outcomes.
func computeMean(outcomes []float64) float64 {
	if len(outcomes) == 0 {
		return 0
	}
	sum := 0.0
	for _, o := range outcomes {
		sum += o
	}
	return sum / float64(len(outcomes))
}

// computeStddev calculates sample standard deviation (n-1 denominator).
func computeStddev(outcomes []float64, mean float64) float64 {
	n := len(outcomes)
	if n < 2 {
		return 0
	}
	sumSq := 0.0
	for _, o := range outcomes {
		diff := o - mean
		sumSq += diff * diff
	}
	return math.Sqrt(sumSq / float64(n-1))
}

// computePercentile uses linear interpolation. sorted must be pre-sorted ASC.
func computePercentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n == 1 {
		return sorted[0]
	}

	idx := p * float64(n-1)
	lower := int(idx)
	upper := lower + 1
	if upper >= n {
		return sorted[n-1]
	}

	frac := idx - float64(lower)
	return sorted[lower] + frac*(sorted[upper]-sorted[lower])
}

// computeMaxDrawdown calculates worst peak-to-trough on cumulative outcomes.
// Outcomes must be in chronological order.
func computeMaxDrawdown(outcomes []float64) float64 {
	cumulative := 0.0
	peak := 0.0
	maxDrawdown := 0.0

	for _, o := range outcomes {
		cumulative += o
		if cumulative > peak {
			peak = cumulative
		}
		drawdown := peak - cumulative
		if drawdown > maxDrawdown {
			maxDrawdown = drawdown
		}
	}
	return maxDrawdown
}

// computeMaxConsecutiveLosses finds the longest streak of outcome <= 0.
// Outcomes must be in chronological order.
func computeMaxConsecutiveLosses(outcomes []float64) int {
	maxStreak := 0
	currentStreak := 0

	for _, o := range outcomes {
		if o <= 0 {
			currentStreak++
			if currentStreak > maxStreak {
				maxStreak = currentStreak
			}
		} else {
			currentStreak = 0
		}
	}
	return maxStreak
}
