package domain

// PositionSide is the state of the virtual position.
type PositionSide string

// Position side constants.
const (
	PositionFlat  PositionSide = "flat"
	PositionLong  PositionSide = "long"
	PositionShort PositionSide = "short"
)

// TransitionKind classifies a position transition.
type TransitionKind string

// Transition kind constants.
const (
	TransitionOpen    TransitionKind = "open"
	TransitionClose   TransitionKind = "close"
	TransitionReverse TransitionKind = "reverse" // close and open against in one tick
)

// Exit reason codes recorded on closing transitions.
const (
	ExitReasonOpposingSignal = "OPPOSING_SIGNAL"
	ExitReasonNoneSignal     = "NONE_SIGNAL"
	ExitReasonForcedClose    = "FORCED_CLOSE"
)

// PositionTransition is one state change of the sandbox position. The
// ordered sequence of transitions is the full behavioral record of a run
// and must be reproducible bit-for-bit from the same input stream.
type PositionTransition struct {
	TransitionID string // deterministic hash of (run, symbol, timestamp, kind)
	RunID        string
	Symbol       string
	TimestampMs  int64
	Kind         TransitionKind
	Side         PositionSide // side after the transition
	Price        float64      // mid price at the transition
	Size         float64
	Direction    Direction // signal direction that caused it
	Confidence   float64
	RealizedPnL  float64 // realized on this transition (close/reverse), 0 on open
	ExitReason   string  // set on close/reverse
}

// SandboxPosition is the live position state between transitions.
type SandboxPosition struct {
	Side          PositionSide
	Size          float64
	EntryPrice    float64
	EntryTimeMs   int64
	RealizedPnL   float64 // cumulative over the run
	UnrealizedPnL float64 // mark-to-market against the last mid
}
