package match

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/kapu/llm-chess-arena/internal/rules"
	"github.com/kapu/llm-chess-arena/internal/suggest"
	"github.com/kapu/llm-chess-arena/pkg/arenadto"
)

type scriptStep struct {
	resp *suggest.Response
	err  error
}

// scriptedSuggester replays a fixed sequence of suggestion outcomes.
type scriptedSuggester struct {
	mu    sync.Mutex
	steps []scriptStep
	calls int
}

func (s *scriptedSuggester) Suggest(ctx context.Context, req *arenadto.SuggestionRequest) (*suggest.Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.calls >= len(s.steps) {
		return nil, errors.New("script exhausted")
	}
	step := s.steps[s.calls]
	s.calls++
	return step.resp, step.err
}

func (s *scriptedSuggester) Provider() string { return "scripted" }
func (s *scriptedSuggester) Model() string    { return "scripted-model" }

func wireResp(wire string) *suggest.Response {
	r := &suggest.Response{Origin: wire[:2], Destination: wire[2:4]}
	if len(wire) == 5 {
		r.Promotion = wire[4:]
	}
	return r
}

func moveSteps(wires ...string) []scriptStep {
	steps := make([]scriptStep, 0, len(wires))
	for _, w := range wires {
		steps = append(steps, scriptStep{resp: wireResp(w)})
	}
	return steps
}

func newTestMatch(t *testing.T, steps []scriptStep) *Match {
	t.Helper()
	m := newMatch("test-match", func() Engine { return rules.NewBoard() }, &scriptedSuggester{steps: steps}, 3, nil)
	if err := m.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	return m
}

func TestStartTransitions(t *testing.T) {
	m := newMatch("m1", func() Engine { return rules.NewBoard() }, &scriptedSuggester{}, 3, nil)
	snap := m.Snapshot()
	if snap.Status != string(StatusIdle) || snap.Active {
		t.Fatalf("fresh match should be idle: %+v", snap)
	}
	if err := m.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := m.Start(); err == nil {
		t.Fatalf("second Start should fail")
	}
	snap = m.Snapshot()
	if !snap.Active || snap.SideToMove != "w" || snap.InvalidAttempts != 0 {
		t.Fatalf("started match snapshot: %+v", snap)
	}
}

func TestValidMoveAppliesAndResetsCounter(t *testing.T) {
	// One malformed reply, then a valid move. The strike counter must drop
	// back to zero once a move lands.
	steps := []scriptStep{
		{err: &suggest.MalformedSuggestionError{Origin: "zz", Destination: "e4"}},
		{resp: wireResp("e2e4")},
	}
	m := newTestMatch(t, steps)

	res, err := m.RunSuggestionCycle(context.Background())
	if err != nil {
		t.Fatalf("cycle 1: %v", err)
	}
	if !res.Strike || res.Attempts != 1 {
		t.Fatalf("cycle 1 should strike: %+v", res)
	}
	if got := m.Snapshot().SideToMove; got != "w" {
		t.Fatalf("strike must leave the same side to move, got %q", got)
	}

	res, err = m.RunSuggestionCycle(context.Background())
	if err != nil {
		t.Fatalf("cycle 2: %v", err)
	}
	if !res.Applied || res.Move != "e2e4" {
		t.Fatalf("cycle 2 should apply e2e4: %+v", res)
	}
	snap := m.Snapshot()
	if snap.InvalidAttempts != 0 {
		t.Fatalf("counter should reset on applied move, got %d", snap.InvalidAttempts)
	}
	if snap.SideToMove != "b" {
		t.Fatalf("side to move after e2e4 = %q, want b", snap.SideToMove)
	}
	if len(snap.MovesUCI) != 1 || snap.MovesUCI[0] != "e2e4" {
		t.Fatalf("history = %v", snap.MovesUCI)
	}
}

func TestThreeInvalidSuggestionsForfeit(t *testing.T) {
	// White opens, then Black produces three bad suggestions in a row. The
	// forfeit goes against Black.
	steps := []scriptStep{
		{resp: wireResp("e2e4")},
		{err: &suggest.MalformedSuggestionError{Origin: "zz", Destination: "e5"}},
		{resp: wireResp("e5e4")}, // well formed, not legal for Black
		{err: &suggest.MalformedSuggestionError{Origin: "e7", Destination: "e99"}},
	}
	m := newTestMatch(t, steps)

	if _, err := m.RunSuggestionCycle(context.Background()); err != nil {
		t.Fatalf("white move: %v", err)
	}

	var last *CycleResult
	for i := 0; i < 3; i++ {
		res, err := m.RunSuggestionCycle(context.Background())
		if err != nil {
			t.Fatalf("black cycle %d: %v", i+1, err)
		}
		if !res.Strike || res.Attempts != i+1 {
			t.Fatalf("black cycle %d: %+v", i+1, res)
		}
		last = res
	}

	if !last.Terminal || last.Outcome == nil {
		t.Fatalf("third strike should terminate: %+v", last)
	}
	if last.Outcome.Result != ResultWhiteWins || last.Outcome.Method != MethodForfeit {
		t.Fatalf("outcome = %+v", last.Outcome)
	}
	if !m.IsTerminal() {
		t.Fatalf("match should be terminal")
	}
	if _, err := m.RunSuggestionCycle(context.Background()); !errors.Is(err, ErrMatchNotActive) {
		t.Fatalf("cycle on terminal match: %v", err)
	}
}

func TestIllegalButWellFormedMoveStrikes(t *testing.T) {
	m := newTestMatch(t, moveSteps("e2e5"))
	res, err := m.RunSuggestionCycle(context.Background())
	if err != nil {
		t.Fatalf("cycle: %v", err)
	}
	if !res.Strike || res.Attempts != 1 {
		t.Fatalf("illegal move should strike: %+v", res)
	}
}

func TestPromotionRequiresPieceLetter(t *testing.T) {
	factory := func() Engine {
		b, err := rules.NewBoardFromFEN("4k3/2P5/8/8/8/8/8/4K3 w - - 0 1")
		if err != nil {
			t.Fatalf("NewBoardFromFEN: %v", err)
		}
		return b
	}
	steps := []scriptStep{
		{resp: &suggest.Response{Origin: "c7", Destination: "c8"}},
		{resp: &suggest.Response{Origin: "c7", Destination: "c8", Promotion: "q"}},
	}
	m := newMatch("promo", factory, &scriptedSuggester{steps: steps}, 3, nil)
	if err := m.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	res, err := m.RunSuggestionCycle(context.Background())
	if err != nil {
		t.Fatalf("cycle 1: %v", err)
	}
	if !res.Strike || res.Attempts != 1 {
		t.Fatalf("bare promotion must strike: %+v", res)
	}

	res, err = m.RunSuggestionCycle(context.Background())
	if err != nil {
		t.Fatalf("cycle 2: %v", err)
	}
	if !res.Applied || res.Move != "c7c8q" {
		t.Fatalf("promotion with letter should apply: %+v", res)
	}
	if got := m.Snapshot().InvalidAttempts; got != 0 {
		t.Fatalf("counter after applied promotion = %d", got)
	}
}

func TestCheckmateEndsMatch(t *testing.T) {
	m := newTestMatch(t, moveSteps("f2f3", "e7e5", "g2g4", "d8h4"))

	var last *CycleResult
	for i := 0; i < 4; i++ {
		res, err := m.RunSuggestionCycle(context.Background())
		if err != nil {
			t.Fatalf("cycle %d: %v", i+1, err)
		}
		last = res
	}
	if !last.Terminal || last.Outcome == nil {
		t.Fatalf("mating move should terminate: %+v", last)
	}
	if last.Outcome.Result != ResultBlackWins || last.Outcome.Method != MethodCheckmate {
		t.Fatalf("outcome = %+v", last.Outcome)
	}
	if _, err := m.RunSuggestionCycle(context.Background()); !errors.Is(err, ErrMatchNotActive) {
		t.Fatalf("cycle after checkmate: %v", err)
	}
}

func TestProviderFailureEndsMatchWithoutStrike(t *testing.T) {
	providerErr := errors.New("provider unreachable after retries")
	steps := []scriptStep{
		{resp: wireResp("e2e4")},
		{err: providerErr},
	}
	m := newTestMatch(t, steps)

	if _, err := m.RunSuggestionCycle(context.Background()); err != nil {
		t.Fatalf("white move: %v", err)
	}

	res, err := m.RunSuggestionCycle(context.Background())
	if !errors.Is(err, providerErr) {
		t.Fatalf("provider error should surface unchanged, got %v", err)
	}
	if res == nil || !res.Terminal || res.Outcome == nil {
		t.Fatalf("provider failure should terminate: %+v", res)
	}
	if res.Outcome.Method != MethodAIFailure || res.Outcome.Result != "" {
		t.Fatalf("outcome = %+v", res.Outcome)
	}
	if got := m.Snapshot().InvalidAttempts; got != 0 {
		t.Fatalf("AI failure must not consume strikes, counter = %d", got)
	}
}

func TestResign(t *testing.T) {
	m := newTestMatch(t, nil)
	out, err := m.Resign()
	if err != nil {
		t.Fatalf("Resign: %v", err)
	}
	// White was to move, so White resigned.
	if out.Result != ResultBlackWins || out.Method != MethodResignation {
		t.Fatalf("outcome = %+v", out)
	}
	if _, err := m.Resign(); !errors.Is(err, ErrMatchNotActive) {
		t.Fatalf("second resign: %v", err)
	}
}

func TestExternalMoveBypassesStrikes(t *testing.T) {
	m := newTestMatch(t, nil)

	if _, err := m.ApplyExternalMove("e2", "e5", ""); err == nil {
		t.Fatalf("illegal external move should be rejected")
	}
	var illegal *IllegalSuggestionError
	_, err := m.ApplyExternalMove("e2", "e5", "")
	if !errors.As(err, &illegal) {
		t.Fatalf("expected IllegalSuggestionError, got %v", err)
	}
	if got := m.Snapshot().InvalidAttempts; got != 0 {
		t.Fatalf("external moves never strike, counter = %d", got)
	}

	res, err := m.ApplyExternalMove("E2", "e4 ", "")
	if err != nil {
		t.Fatalf("ApplyExternalMove: %v", err)
	}
	if !res.Applied || res.Move != "e2e4" {
		t.Fatalf("result = %+v", res)
	}
}

func TestResetIsIdempotent(t *testing.T) {
	m := newTestMatch(t, moveSteps("e2e4"))
	if _, err := m.RunSuggestionCycle(context.Background()); err != nil {
		t.Fatalf("cycle: %v", err)
	}

	m.Reset()
	m.Reset()
	snap := m.Snapshot()
	if snap.Status != string(StatusIdle) || snap.InvalidAttempts != 0 || len(snap.MovesUCI) != 0 {
		t.Fatalf("reset snapshot: %+v", snap)
	}
	if err := m.Start(); err != nil {
		t.Fatalf("Start after reset: %v", err)
	}
	if got := m.Snapshot().SideToMove; got != "w" {
		t.Fatalf("restarted match should be at the start position, side = %q", got)
	}
}

// blockingSuggester parks Suggest until released, to model a provider call in
// flight across a reset.
type blockingSuggester struct {
	entered chan struct{}
	release chan struct{}
	resp    *suggest.Response
}

func (s *blockingSuggester) Suggest(ctx context.Context, req *arenadto.SuggestionRequest) (*suggest.Response, error) {
	close(s.entered)
	<-s.release
	return s.resp, nil
}

func (s *blockingSuggester) Provider() string { return "blocking" }
func (s *blockingSuggester) Model() string    { return "blocking-model" }

func TestResetRendersInFlightCycleInert(t *testing.T) {
	bs := &blockingSuggester{
		entered: make(chan struct{}),
		release: make(chan struct{}),
		resp:    wireResp("e2e4"),
	}
	m := newMatch("inflight", func() Engine { return rules.NewBoard() }, bs, 3, nil)
	if err := m.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	type cycleOut struct {
		res *CycleResult
		err error
	}
	done := make(chan cycleOut, 1)
	go func() {
		res, err := m.RunSuggestionCycle(context.Background())
		done <- cycleOut{res, err}
	}()

	<-bs.entered
	if _, err := m.RunSuggestionCycle(context.Background()); !errors.Is(err, ErrAwaitingSuggestion) {
		t.Fatalf("concurrent cycle: %v", err)
	}

	m.Reset()
	close(bs.release)

	out := <-done
	if out.err != nil || out.res != nil {
		t.Fatalf("superseded cycle should be inert, got res=%+v err=%v", out.res, out.err)
	}
	snap := m.Snapshot()
	if snap.Status != string(StatusIdle) || len(snap.MovesUCI) != 0 {
		t.Fatalf("stale suggestion must not mutate a reset match: %+v", snap)
	}
}

func TestResignRendersInFlightCycleInert(t *testing.T) {
	bs := &blockingSuggester{
		entered: make(chan struct{}),
		release: make(chan struct{}),
		resp:    wireResp("e2e4"),
	}
	m := newMatch("resign-inflight", func() Engine { return rules.NewBoard() }, bs, 3, nil)
	if err := m.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	type cycleOut struct {
		res *CycleResult
		err error
	}
	done := make(chan cycleOut, 1)
	go func() {
		res, err := m.RunSuggestionCycle(context.Background())
		done <- cycleOut{res, err}
	}()

	<-bs.entered
	out, err := m.Resign()
	if err != nil {
		t.Fatalf("Resign: %v", err)
	}
	if out.Result != ResultBlackWins || out.Method != MethodResignation {
		t.Fatalf("outcome = %+v", out)
	}

	close(bs.release)
	co := <-done
	if co.err != nil || co.res != nil {
		t.Fatalf("superseded cycle should be inert, got res=%+v err=%v", co.res, co.err)
	}

	snap := m.Snapshot()
	if snap.Status != string(StatusTerminal) {
		t.Fatalf("match should stay terminal: %+v", snap)
	}
	if len(snap.MovesUCI) != 0 {
		t.Fatalf("stale suggestion mutated a terminal match: history=%v", snap.MovesUCI)
	}
	if snap.Result != ResultBlackWins || snap.ResultMethod != string(MethodResignation) {
		t.Fatalf("resignation outcome must stay fixed: %+v", snap)
	}
}

func TestThreefoldRepetitionEndsMatchAsDraw(t *testing.T) {
	// Both knights shuffle out and back twice, repeating the start position
	// for the third time on the eighth ply.
	m := newTestMatch(t, moveSteps(
		"g1f3", "g8f6", "f3g1", "f6g8",
		"g1f3", "g8f6", "f3g1", "f6g8",
	))

	var last *CycleResult
	for i := 0; i < 8; i++ {
		res, err := m.RunSuggestionCycle(context.Background())
		if err != nil {
			t.Fatalf("cycle %d: %v", i+1, err)
		}
		if !res.Applied {
			t.Fatalf("cycle %d should apply: %+v", i+1, res)
		}
		last = res
	}
	if !last.Terminal || last.Outcome == nil {
		t.Fatalf("third repetition should terminate: %+v", last)
	}
	if last.Outcome.Result != ResultDraw || last.Outcome.Method != MethodThreefoldRepetition {
		t.Fatalf("outcome = %+v", last.Outcome)
	}
}

func TestFiftyMoveRuleEndsMatchAsDraw(t *testing.T) {
	factory := func() Engine {
		b, err := rules.NewBoardFromFEN("8/8/8/4k3/8/4K3/8/R7 w - - 99 60")
		if err != nil {
			t.Fatalf("NewBoardFromFEN: %v", err)
		}
		return b
	}
	m := newMatch("fifty", factory, &scriptedSuggester{steps: moveSteps("a1a2")}, 3, nil)
	if err := m.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	res, err := m.RunSuggestionCycle(context.Background())
	if err != nil {
		t.Fatalf("cycle: %v", err)
	}
	if !res.Applied || !res.Terminal || res.Outcome == nil {
		t.Fatalf("hundredth half-move should end the match: %+v", res)
	}
	if res.Outcome.Result != ResultDraw || res.Outcome.Method != MethodDraw {
		t.Fatalf("outcome = %+v", res.Outcome)
	}
}

func TestPlayRunsToTerminal(t *testing.T) {
	m := newTestMatch(t, moveSteps("f2f3", "e7e5", "g2g4", "d8h4"))
	if err := m.Play(context.Background()); err != nil {
		t.Fatalf("Play: %v", err)
	}
	if !m.IsTerminal() {
		t.Fatalf("Play should leave the match terminal")
	}
	out := m.Outcome()
	if out == nil || out.Method != MethodCheckmate {
		t.Fatalf("outcome = %+v", out)
	}
}
