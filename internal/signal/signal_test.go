package signal

import (
	"math"
	"reflect"
	"testing"

	"orderflow-lab/internal/domain"
)

func baseFlow() domain.OrderFlowResult {
	return domain.OrderFlowResult{
		Symbol:      "BTCUSDT",
		TimestampMs: 1_700_000_000_000,
		MidPrice:    100,
		DOM: domain.DOMResult{
			ImbalanceRatio: 1,
			BidVolume:      10,
			AskVolume:      10,
		},
		Delta: domain.DeltaResult{TradeCount: 50},
	}
}

func TestCompute_NeutralInputsYieldNone(t *testing.T) {
	res := Compute(baseFlow(), 0, Options{})
	if res.Direction != domain.DirectionNone {
		t.Errorf("expected none, got %q", res.Direction)
	}
	if res.Score != 0 || res.Confidence != 0 {
		t.Errorf("expected zero score/confidence, got %+v", res)
	}
}

func TestCompute_EmptyBook(t *testing.T) {
	res := Compute(domain.OrderFlowResult{}, 0, Options{})
	if res.Direction != domain.DirectionNone || res.Reason != "no book data" {
		t.Errorf("unexpected empty-book result %+v", res)
	}
}

func TestCompute_StrongDeltaGoesLong(t *testing.T) {
	flow := baseFlow()
	flow.Delta.DeltaRatio = 0.6
	flow.Delta.FirstHalfRatio = 0.5
	flow.Delta.SecondHalfRatio = 0.7

	res := Compute(flow, 0, Options{})
	if res.Direction != domain.DirectionLong {
		t.Fatalf("expected long, got %q (%s)", res.Direction, res.Reason)
	}
	// delta ratio 0.6: 0.2 + (0.6-0.15)*0.5 = 0.425 -> capped at 0.4
	if res.Contributions.Delta != 0.4 {
		t.Errorf("expected delta contribution 0.4, got %g", res.Contributions.Delta)
	}
	if res.SweepOnly {
		t.Error("delta-backed signal must not be sweep-only")
	}
}

func TestCompute_DeltaDeadZone(t *testing.T) {
	flow := baseFlow()
	flow.Delta.DeltaRatio = 0.1
	res := Compute(flow, 0, Options{})
	if res.Contributions.Delta != 0 {
		t.Errorf("ratio inside the dead zone must not contribute, got %g", res.Contributions.Delta)
	}
}

func TestCompute_ImbalanceConversion(t *testing.T) {
	// bid/ask ratio 3 -> bid share 0.75 -> contribution (0.75-0.5)*2 = 0.5,
	// capped at 0.3.
	flow := baseFlow()
	flow.DOM.ImbalanceRatio = 3
	res := Compute(flow, 0, Options{})
	if res.Contributions.Imbalance != 0.3 {
		t.Errorf("expected imbalance contribution 0.3, got %g", res.Contributions.Imbalance)
	}

	// Inverted ratio mirrors to the short side.
	flow.DOM.ImbalanceRatio = 1.0 / 3.0
	res = Compute(flow, 0, Options{})
	if res.Contributions.Imbalance != -0.3 {
		t.Errorf("expected imbalance contribution -0.3, got %g", res.Contributions.Imbalance)
	}
}

func TestCompute_AskSweepIsBullish(t *testing.T) {
	nowMs := int64(1_700_000_000_000)
	flow := baseFlow()
	flow.Sweeps = domain.SweepResult{
		Ask:      []domain.SweepEvent{{Side: domain.AskSide, Level: 101, Volume: 5, TimestampMs: nowMs, FromBook: true}},
		LastSide: domain.AskSide,
		LastTime: nowMs,
	}
	res := Compute(flow, nowMs, Options{})
	if res.Contributions.Sweep <= 0 {
		t.Errorf("ask sweep must contribute positively, got %g", res.Contributions.Sweep)
	}
}

func TestCompute_SweepDecay(t *testing.T) {
	nowMs := int64(1_700_000_000_000)
	mk := func(ageSec int64) domain.OrderFlowResult {
		flow := baseFlow()
		ts := nowMs - ageSec*1000
		flow.Sweeps = domain.SweepResult{
			Bid:      []domain.SweepEvent{{Side: domain.BidSide, Level: 99, Volume: 5, TimestampMs: ts, FromBook: true}},
			LastSide: domain.BidSide,
			LastTime: ts,
		}
		return flow
	}

	fresh := Compute(mk(0), nowMs, Options{})
	half := Compute(mk(60), nowMs, Options{})
	dead := Compute(mk(200), nowMs, Options{})

	if fresh.Contributions.Sweep != -0.3 {
		t.Errorf("fresh bid sweep should contribute -0.3, got %g", fresh.Contributions.Sweep)
	}
	if math.Abs(half.Contributions.Sweep+0.15) > 1e-9 {
		t.Errorf("sweep at half decay should contribute -0.15, got %g", half.Contributions.Sweep)
	}
	if dead.Contributions.Sweep != 0 {
		t.Errorf("sweep past the decay horizon should contribute 0, got %g", dead.Contributions.Sweep)
	}
}

func TestCompute_SweepTieBreakBySourceWeight(t *testing.T) {
	nowMs := int64(1_700_000_000_000)
	flow := baseFlow()
	flow.Sweeps = domain.SweepResult{
		Ask:      []domain.SweepEvent{{Side: domain.AskSide, Level: 101, Volume: 5, TimestampMs: nowMs, FromBook: true}},
		Bid:      []domain.SweepEvent{{Side: domain.BidSide, Level: 99, Volume: 5, TimestampMs: nowMs - 1000, FromBook: false}},
		LastSide: domain.AskSide,
		LastTime: nowMs,
	}

	// Book sweeps weighted above zone sweeps: the ask (book) side wins.
	res := Compute(flow, nowMs, Options{SweepBookWeight: 2, SweepZoneWeight: 1})
	if res.Contributions.Sweep <= 0 {
		t.Errorf("book-weighted ask sweep should win the tie, got %g", res.Contributions.Sweep)
	}

	// Zone sweeps weighted above book sweeps: the bid (zone) side wins.
	res = Compute(flow, nowMs, Options{SweepBookWeight: 1, SweepZoneWeight: 3})
	if res.Contributions.Sweep >= 0 {
		t.Errorf("zone-weighted bid sweep should win the tie, got %g", res.Contributions.Sweep)
	}
}

func TestCompute_SweepOnlyFlag(t *testing.T) {
	nowMs := int64(1_700_000_000_000)
	flow := baseFlow()
	flow.Sweeps = domain.SweepResult{
		Ask:      []domain.SweepEvent{{Side: domain.AskSide, Level: 101, Volume: 5, TimestampMs: nowMs, FromBook: true}},
		LastSide: domain.AskSide,
		LastTime: nowMs,
	}
	res := Compute(flow, nowMs, Options{})
	if res.Direction != domain.DirectionLong {
		t.Fatalf("expected long from a fresh ask sweep, got %q", res.Direction)
	}
	if !res.SweepOnly {
		t.Error("direction resting on a sweep alone must set SweepOnly")
	}
}

func TestCompute_ConflictPenalty(t *testing.T) {
	nowMs := int64(1_700_000_000_000)
	flow := baseFlow()
	flow.Delta.DeltaRatio = 0.6 // +0.4
	flow.Sweeps = domain.SweepResult{
		Bid:      []domain.SweepEvent{{Side: domain.BidSide, Level: 99, Volume: 5, TimestampMs: nowMs, FromBook: true}},
		LastSide: domain.BidSide,
		LastTime: nowMs,
	}

	conflicted := Compute(flow, nowMs, Options{})
	flow.Sweeps = domain.SweepResult{}
	clean := Compute(flow, nowMs, Options{})

	// 0.4 - 0.3 = 0.1 raw vs 0.4; penalty applies only to the conflicted run.
	wantConflicted := 0.1 * (1 - DefaultConflictPenalty)
	if math.Abs(conflicted.Confidence-wantConflicted) > 1e-9 {
		t.Errorf("expected conflicted confidence %g, got %g", wantConflicted, conflicted.Confidence)
	}
	if clean.Confidence != 0.4 {
		t.Errorf("expected clean confidence 0.4, got %g", clean.Confidence)
	}
}

func TestCompute_VolumeSpikePenalty(t *testing.T) {
	flow := baseFlow()
	flow.Delta.DeltaRatio = 0.6
	flow.Tape.IsVolumeSpike = true

	res := Compute(flow, 0, Options{})
	want := 0.4 * (1 - DefaultVolumeSpikePenalty)
	if math.Abs(res.Confidence-want) > 1e-9 {
		t.Errorf("expected confidence %g after spike penalty, got %g", want, res.Confidence)
	}
}

func TestCompute_DegradedInputsLowerConfidence(t *testing.T) {
	flow := baseFlow()
	flow.Delta.DeltaRatio = 0.6
	flow.Degraded = true

	res := Compute(flow, 0, Options{})
	if !res.Degraded {
		t.Error("degraded flag must be carried through")
	}
	want := 0.4 * (1 - DefaultDegradedPenalty)
	if math.Abs(res.Confidence-want) > 1e-9 {
		t.Errorf("expected confidence %g on degraded inputs, got %g", want, res.Confidence)
	}
}

func TestCompute_MinScoreGate(t *testing.T) {
	flow := baseFlow()
	flow.Delta.DeltaRatio = 0.16 // contribution just above the base step: ~0.205

	res := Compute(flow, 0, Options{MinScore: 0.25})
	if res.Direction != domain.DirectionNone {
		t.Errorf("score below the gate must yield none, got %q", res.Direction)
	}

	res = Compute(flow, 0, Options{MinScore: 0.2})
	if res.Direction != domain.DirectionLong {
		t.Errorf("score above the gate must yield long, got %q", res.Direction)
	}
}

func TestCompute_Deterministic(t *testing.T) {
	nowMs := int64(1_700_000_000_000)
	flow := baseFlow()
	flow.Delta.DeltaRatio = 0.3
	flow.DOM.ImbalanceRatio = 1.8
	flow.DOM.Walls = []domain.Wall{{Price: 99, Size: 50, Side: domain.BidSide}}
	flow.Sweeps = domain.SweepResult{
		Ask:      []domain.SweepEvent{{Side: domain.AskSide, Level: 101, Volume: 5, TimestampMs: nowMs - 30_000, FromBook: true}},
		LastSide: domain.AskSide,
		LastTime: nowMs - 30_000,
	}

	a := Compute(flow, nowMs, Options{})
	b := Compute(flow, nowMs, Options{})
	if !reflect.DeepEqual(a, b) {
		t.Errorf("identical inputs must produce identical results:\n%+v\n%+v", a, b)
	}
}
