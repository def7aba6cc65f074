// Package sandbox simulates a single virtual position driven tick-by-tick
// by the microstructure signal. No real orders are placed: the sandbox
// trades the full configured balance at the current mid price and tracks
// realized and mark-to-market PnL in quote currency.
//
// The sandbox processes ticks exactly once and in arrival order, so two
// instances fed the same ordered (mid, signal) sequence produce identical
// transition histories.
package sandbox

import (
	"orderflow-lab/internal/domain"
	"orderflow-lab/internal/idhash"
)

// Config tunes the sandbox. Zero values select the defaults.
type Config struct {
	// InitialBalance is the quote-currency balance; each open sizes the
	// position as balance / price (full balance per trade).
	InitialBalance float64
	// MinConfidenceToOpen gates opening (and reversing into) a position.
	// Closing never requires confidence.
	MinConfidenceToOpen float64
	// TakerFeeRate is charged on notional at both entry and exit and
	// subtracted from realized PnL on close.
	TakerFeeRate float64
}

// Default config values. The fee matches the venue's taker rate for
// derivatives.
const (
	DefaultInitialBalance = 100.0
	DefaultTakerFeeRate   = 0.00055
)

func (c Config) withDefaults() Config {
	if c.InitialBalance <= 0 {
		c.InitialBalance = DefaultInitialBalance
	}
	// Negative disables fees; zero selects the default rate.
	switch {
	case c.TakerFeeRate == 0:
		c.TakerFeeRate = DefaultTakerFeeRate
	case c.TakerFeeRate < 0:
		c.TakerFeeRate = 0
	}
	return c
}

// Sandbox is the virtual position state machine. Not safe for concurrent
// use: exactly one evaluator or replay loop drives it.
type Sandbox struct {
	cfg    Config
	runID  string
	symbol string

	pos         domain.SandboxPosition
	transitions []domain.PositionTransition
	lastMid     float64
}

// New creates a flat sandbox for one run over one symbol.
func New(runID, symbol string, cfg Config) *Sandbox {
	return &Sandbox{
		cfg:    cfg.withDefaults(),
		runID:  runID,
		symbol: symbol,
		pos:    domain.SandboxPosition{Side: domain.PositionFlat},
	}
}

// Position returns a copy of the current position state.
func (s *Sandbox) Position() domain.SandboxPosition {
	return s.pos
}

// Transitions returns the transition history in tick order. The returned
// slice is a copy.
func (s *Sandbox) Transitions() []domain.PositionTransition {
	out := make([]domain.PositionTransition, len(s.transitions))
	copy(out, s.transitions)
	return out
}

// Equity returns balance + realized + unrealized at the last seen mid.
func (s *Sandbox) Equity() float64 {
	return s.cfg.InitialBalance + s.pos.RealizedPnL + s.pos.UnrealizedPnL
}

// Tick advances the sandbox by one evaluation: marks the open position to
// mid, then applies the signal. It returns the transitions produced by this
// tick: nil on most ticks, one on open/close, two on reverse.
func (s *Sandbox) Tick(sig domain.SignalResult, mid float64, tsMs int64) []domain.PositionTransition {
	if mid <= 0 {
		return nil
	}
	s.lastMid = mid
	s.markToMarket(mid)

	before := len(s.transitions)

	switch s.pos.Side {
	case domain.PositionFlat:
		if s.shouldOpen(sig) {
			s.open(sideFor(sig.Direction), sig, mid, tsMs, domain.TransitionOpen, "")
		}
	case domain.PositionLong:
		switch {
		case sig.Direction == domain.DirectionShort && s.shouldOpen(sig):
			s.close(sig, mid, tsMs, domain.ExitReasonOpposingSignal)
			s.open(domain.PositionShort, sig, mid, tsMs, domain.TransitionReverse, domain.ExitReasonOpposingSignal)
		case sig.Direction == domain.DirectionShort:
			s.close(sig, mid, tsMs, domain.ExitReasonOpposingSignal)
		case sig.Direction == domain.DirectionNone:
			s.close(sig, mid, tsMs, domain.ExitReasonNoneSignal)
		}
	case domain.PositionShort:
		switch {
		case sig.Direction == domain.DirectionLong && s.shouldOpen(sig):
			s.close(sig, mid, tsMs, domain.ExitReasonOpposingSignal)
			s.open(domain.PositionLong, sig, mid, tsMs, domain.TransitionReverse, domain.ExitReasonOpposingSignal)
		case sig.Direction == domain.DirectionLong:
			s.close(sig, mid, tsMs, domain.ExitReasonOpposingSignal)
		case sig.Direction == domain.DirectionNone:
			s.close(sig, mid, tsMs, domain.ExitReasonNoneSignal)
		}
	}

	if len(s.transitions) == before {
		return nil
	}
	out := make([]domain.PositionTransition, len(s.transitions)-before)
	copy(out, s.transitions[before:])
	return out
}

// ForceClose flattens the position at the last seen mid, e.g. at range end
// or shutdown. No-op while flat.
func (s *Sandbox) ForceClose(tsMs int64) *domain.PositionTransition {
	if s.pos.Side == domain.PositionFlat || s.lastMid <= 0 {
		return nil
	}
	s.markToMarket(s.lastMid)
	s.close(domain.SignalResult{Direction: domain.DirectionNone}, s.lastMid, tsMs, domain.ExitReasonForcedClose)
	tr := s.transitions[len(s.transitions)-1]
	return &tr
}

func (s *Sandbox) shouldOpen(sig domain.SignalResult) bool {
	if sig.Direction == domain.DirectionNone {
		return false
	}
	return sig.Confidence >= s.cfg.MinConfidenceToOpen
}

func (s *Sandbox) markToMarket(mid float64) {
	switch s.pos.Side {
	case domain.PositionLong:
		s.pos.UnrealizedPnL = (mid - s.pos.EntryPrice) * s.pos.Size
	case domain.PositionShort:
		s.pos.UnrealizedPnL = (s.pos.EntryPrice - mid) * s.pos.Size
	default:
		s.pos.UnrealizedPnL = 0
	}
}

func (s *Sandbox) open(side domain.PositionSide, sig domain.SignalResult, mid float64, tsMs int64, kind domain.TransitionKind, exitReason string) {
	size := s.cfg.InitialBalance / mid
	s.pos.Side = side
	s.pos.Size = size
	s.pos.EntryPrice = mid
	s.pos.EntryTimeMs = tsMs
	s.pos.UnrealizedPnL = 0

	s.record(domain.PositionTransition{
		Symbol:      s.symbol,
		TimestampMs: tsMs,
		Kind:        kind,
		Side:        side,
		Price:       mid,
		Size:        size,
		Direction:   sig.Direction,
		Confidence:  sig.Confidence,
		ExitReason:  exitReason,
	})
}

// close realizes PnL net of entry+exit taker fees and flattens. A reverse
// records its closing leg as a plain close; the opening leg that follows
// carries kind "reverse".
func (s *Sandbox) close(sig domain.SignalResult, mid float64, tsMs int64, exitReason string) {
	realized := s.pos.UnrealizedPnL
	fees := s.cfg.TakerFeeRate * s.pos.Size * (s.pos.EntryPrice + mid)
	realized -= fees

	size := s.pos.Size
	s.pos.RealizedPnL += realized
	s.pos.Side = domain.PositionFlat
	s.pos.Size = 0
	s.pos.EntryPrice = 0
	s.pos.EntryTimeMs = 0
	s.pos.UnrealizedPnL = 0

	s.record(domain.PositionTransition{
		Symbol:      s.symbol,
		TimestampMs: tsMs,
		Kind:        domain.TransitionClose,
		Side:        domain.PositionFlat,
		Price:       mid,
		Size:        size,
		Direction:   sig.Direction,
		Confidence:  sig.Confidence,
		RealizedPnL: realized,
		ExitReason:  exitReason,
	})
}

func (s *Sandbox) record(tr domain.PositionTransition) {
	tr.RunID = s.runID
	tr.TransitionID = idhash.ComputeTransitionID(s.runID, tr.Symbol, tr.TimestampMs, tr.Kind, tr.Side)
	s.transitions = append(s.transitions, tr)
}

func sideFor(d domain.Direction) domain.PositionSide {
	if d == domain.DirectionShort {
		return domain.PositionShort
	}
	return domain.PositionLong
}
