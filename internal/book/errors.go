package book

import "fmt"

// SequenceGapError is returned when a delta does not immediately follow the
// current sequence. The book is left unchanged; the owner must request a
// fresh snapshot before applying further deltas.
type SequenceGapError struct {
	Expected int64
	Got      int64
}

func (e *SequenceGapError) Error() string {
	return fmt.Sprintf("sequence gap: expected %d, got %d", e.Expected, e.Got)
}

// CrossedBookError is returned when applying an update would leave
// best bid >= best ask. This signals protocol desync, not a valid state;
// the book is left unchanged and the owner must resnapshot.
type CrossedBookError struct {
	BestBid float64
	BestAsk float64
}

func (e *CrossedBookError) Error() string {
	return fmt.Sprintf("crossed book: best bid %g >= best ask %g", e.BestBid, e.BestAsk)
}
