package match

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kapu/llm-chess-arena/internal/llm"
	"github.com/kapu/llm-chess-arena/internal/obslog"
	"github.com/kapu/llm-chess-arena/internal/suggest"
	"github.com/kapu/llm-chess-arena/pkg/arenadto"
)

// Match is the state machine driving one AI-vs-AI game. All state is owned
// and mutated here; the rules engine and the suggestion protocol are
// consumed capabilities. A single suggestion cycle may be outstanding at a
// time, enforced by the awaiting flag.
type Match struct {
	mu sync.Mutex

	id        string
	engine    Engine
	newEngine EngineFactory
	suggester Suggester
	events    Sink

	maxInvalid int

	history         []string
	invalidAttempts int
	status          Status
	awaiting        bool
	outcome         *Outcome

	// generation renders in-flight cycles from before a reset inert.
	generation uint64

	createdAt time.Time
	updatedAt time.Time
}

// CycleResult reports what one suggestion cycle did.
type CycleResult struct {
	Applied   bool
	Move      string
	Reasoning string
	Strike    bool
	Attempts  int
	Terminal  bool
	Outcome   *Outcome
}

func newMatch(id string, newEngine EngineFactory, suggester Suggester, maxInvalid int, events Sink) *Match {
	if events == nil {
		events = noopSink{}
	}
	if maxInvalid <= 0 {
		maxInvalid = 3
	}
	now := time.Now()
	return &Match{
		id:         id,
		newEngine:  newEngine,
		suggester:  suggester,
		events:     events,
		maxInvalid: maxInvalid,
		status:     StatusIdle,
		createdAt:  now,
		updatedAt:  now,
	}
}

func (m *Match) ID() string { return m.id }

// Start transitions Idle → Active with a fresh start position.
func (m *Match) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.status != StatusIdle {
		return fmt.Errorf("cannot start match in state %s", m.status)
	}
	m.engine = m.newEngine()
	m.history = nil
	m.invalidAttempts = 0
	m.outcome = nil
	m.awaiting = false
	m.status = StatusActive
	m.updatedAt = time.Now()
	m.events.Publish(Event{MatchID: m.id, Type: EventStarted, FEN: m.engine.FEN(), At: m.updatedAt})
	obslog.L().Info("match_start", zap.String("match_id", m.id))
	return nil
}

// RunSuggestionCycle executes one turn-cycle pass: enumerate legal moves,
// request a suggestion, validate and apply. It blocks while the provider
// call (with its retries) is in flight. The caller decides whether to
// enqueue the next cycle; a strike leaves the same side to move.
func (m *Match) RunSuggestionCycle(ctx context.Context) (*CycleResult, error) {
	m.mu.Lock()
	if m.status != StatusActive {
		m.mu.Unlock()
		return nil, ErrMatchNotActive
	}
	if m.awaiting {
		m.mu.Unlock()
		return nil, ErrAwaitingSuggestion
	}
	m.awaiting = true
	gen := m.generation
	side := m.engine.SideToMove()
	req := &arenadto.SuggestionRequest{
		Provider:    m.suggester.Provider(),
		Model:       m.suggester.Model(),
		Position:    m.engine.FEN(),
		MoveHistory: append([]string(nil), m.history...),
		SideToMove:  side,
		LegalMoves:  m.engine.LegalMoves(),
		PiecesMoves: m.engine.PieceMoves(),
	}
	m.mu.Unlock()

	resp, err := m.suggester.Suggest(ctx, req)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.generation != gen {
		// Reset happened while the request was in flight; drop the result.
		obslog.L().Debug("suggestion_cycle_superseded", zap.String("match_id", m.id))
		return nil, nil
	}
	m.awaiting = false
	if m.status != StatusActive {
		// The match ended while the request was in flight (resign or another
		// terminal transition). The outcome is fixed; drop the result.
		obslog.L().Debug("suggestion_cycle_superseded", zap.String("match_id", m.id))
		return nil, nil
	}

	if err != nil {
		var malformed *suggest.MalformedSuggestionError
		if errors.As(err, &malformed) {
			return m.strikeLocked(side, "", err.Error()), nil
		}
		// Provider failure with the retry budget exhausted. Hard stop: no
		// strike is consumed.
		m.terminateLocked(&Outcome{
			Method: MethodAIFailure,
			Reason: "provider failed after retries: " + err.Error(),
		})
		return &CycleResult{Terminal: true, Outcome: m.outcomeCopy()}, err
	}

	wire := resp.Wire()
	if !containsMove(req.LegalMoves, wire) {
		ierr := &IllegalSuggestionError{Move: wire, Reason: "not in legal move set"}
		return m.strikeLocked(side, wire, ierr.Error()), nil
	}
	if aerr := m.engine.Apply(wire); aerr != nil {
		// Passed the wire-format check but the engine still refused it:
		// treated exactly like an illegal suggestion.
		ierr := &IllegalSuggestionError{Move: wire, Reason: aerr.Error()}
		return m.strikeLocked(side, wire, ierr.Error()), nil
	}

	return m.appliedLocked(side, wire, resp.Reasoning), nil
}

// ApplyExternalMove is the manual/testing path that bypasses the AI. The
// move still passes the full grammar and legality checks but never touches
// the strike counter.
func (m *Match) ApplyExternalMove(origin, destination, promotion string) (*CycleResult, error) {
	resp, err := suggest.Normalize(&llm.MoveReply{Origin: origin, Destination: destination, Promotion: promotion})
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.status != StatusActive {
		return nil, ErrMatchNotActive
	}
	if m.awaiting {
		return nil, ErrAwaitingSuggestion
	}

	side := m.engine.SideToMove()
	wire := resp.Wire()
	if !containsMove(m.engine.LegalMoves(), wire) {
		return nil, &IllegalSuggestionError{Move: wire, Reason: "not in legal move set"}
	}
	if aerr := m.engine.Apply(wire); aerr != nil {
		return nil, &IllegalSuggestionError{Move: wire, Reason: aerr.Error()}
	}
	return m.appliedLocked(side, wire, ""), nil
}

// Resign ends the match in favor of the side currently not to move. Valid
// at any point while Active, independent of the turn cycle.
func (m *Match) Resign() (*Outcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.status != StatusActive {
		return nil, ErrMatchNotActive
	}
	loser := m.engine.SideToMove()
	winner := opponent(loser)
	m.terminateLocked(&Outcome{
		Result: resultToken(winner),
		Method: MethodResignation,
		Reason: fmt.Sprintf("%s resigned", sideName(loser)),
	})
	return m.outcomeCopy(), nil
}

// Reset returns the match to Idle from any state. Idempotent. Any cycle
// still in flight from before the reset becomes inert.
func (m *Match) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.generation++
	m.engine = nil
	m.history = nil
	m.invalidAttempts = 0
	m.outcome = nil
	m.awaiting = false
	m.status = StatusIdle
	m.updatedAt = time.Now()
	m.events.Publish(Event{MatchID: m.id, Type: EventReset, At: m.updatedAt})
	obslog.L().Info("match_reset", zap.String("match_id", m.id))
}

func (m *Match) IsTerminal() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status == StatusTerminal
}

func (m *Match) Outcome() *Outcome {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.outcomeCopy()
}

// Play drives suggestion cycles until the match leaves the Active state.
// This is the explicit event loop: each completed cycle decides whether the
// next one is enqueued.
func (m *Match) Play(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		res, err := m.RunSuggestionCycle(ctx)
		if err != nil {
			if errors.Is(err, ErrMatchNotActive) {
				return nil
			}
			return err
		}
		if res == nil || res.Terminal {
			return nil
		}
	}
}

// Snapshot renders the current state for API consumers.
func (m *Match) Snapshot() arenadto.MatchSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := arenadto.MatchSnapshot{
		ID:                 m.id,
		MovesUCI:           append([]string(nil), m.history...),
		InvalidAttempts:    m.invalidAttempts,
		Active:             m.status == StatusActive,
		AwaitingSuggestion: m.awaiting,
		Status:             string(m.status),
		CreatedAt:          m.createdAt,
		UpdatedAt:          m.updatedAt,
	}
	if m.engine != nil {
		snap.FEN = m.engine.FEN()
		snap.SideToMove = m.engine.SideToMove()
		snap.MovesSAN = m.engine.MovesSAN()
	}
	if m.outcome != nil {
		snap.Result = m.outcome.Result
		snap.ResultMethod = string(m.outcome.Method)
		snap.ResultReason = m.outcome.Reason
	}
	return snap
}

// --- internal, lock held ---

func (m *Match) appliedLocked(side, wire, reasoning string) *CycleResult {
	m.invalidAttempts = 0
	m.history = append(m.history, wire)
	m.updatedAt = time.Now()
	m.events.Publish(Event{
		MatchID: m.id, Type: EventMove, Side: side, Move: wire,
		Reasoning: reasoning, FEN: m.engine.FEN(), At: m.updatedAt,
	})
	obslog.L().Info("match_move",
		zap.String("match_id", m.id),
		zap.String("side", side),
		zap.String("move", wire),
		zap.Int("ply", len(m.history)),
	)

	res := &CycleResult{Applied: true, Move: wire, Reasoning: reasoning}
	if out := m.terminalOutcomeLocked(side); out != nil {
		m.terminateLocked(out)
		res.Terminal = true
		res.Outcome = m.outcomeCopy()
	}
	return res
}

// terminalOutcomeLocked evaluates the terminal predicates in fixed priority
// order after a successful application by side.
func (m *Match) terminalOutcomeLocked(side string) *Outcome {
	switch {
	case m.engine.IsCheckmate():
		return &Outcome{
			Result: resultToken(side),
			Method: MethodCheckmate,
			Reason: fmt.Sprintf("%s wins by checkmate", sideName(side)),
		}
	case m.engine.IsStalemate():
		return &Outcome{Result: ResultDraw, Method: MethodStalemate, Reason: "Draw by stalemate"}
	case m.engine.IsDraw():
		return &Outcome{Result: ResultDraw, Method: MethodDraw, Reason: "Draw by rule"}
	case m.engine.IsThreefoldRepetition():
		return &Outcome{Result: ResultDraw, Method: MethodThreefoldRepetition, Reason: "Draw by threefold repetition"}
	case m.engine.IsInsufficientMaterial():
		return &Outcome{Result: ResultDraw, Method: MethodInsufficientMaterial, Reason: "Draw by insufficient material"}
	default:
		return nil
	}
}

func (m *Match) strikeLocked(side, wire, reason string) *CycleResult {
	m.invalidAttempts++
	m.updatedAt = time.Now()
	m.events.Publish(Event{
		MatchID: m.id, Type: EventStrike, Side: side, Move: wire,
		Attempts: m.invalidAttempts, Reason: reason, At: m.updatedAt,
	})
	obslog.L().Warn("match_invalid_suggestion",
		zap.String("match_id", m.id),
		zap.String("side", side),
		zap.String("move", wire),
		zap.Int("attempts", m.invalidAttempts),
		zap.Int("max", m.maxInvalid),
		zap.String("reason", reason),
	)

	res := &CycleResult{Strike: true, Move: wire, Attempts: m.invalidAttempts}
	if m.invalidAttempts >= m.maxInvalid {
		winner := opponent(side)
		m.terminateLocked(&Outcome{
			Result: resultToken(winner),
			Method: MethodForfeit,
			Reason: fmt.Sprintf("%s forfeits after %d invalid moves", sideName(side), m.maxInvalid),
		})
		res.Terminal = true
		res.Outcome = m.outcomeCopy()
	}
	return res
}

func (m *Match) terminateLocked(out *Outcome) {
	m.status = StatusTerminal
	m.outcome = out
	m.awaiting = false
	m.updatedAt = time.Now()
	fen := ""
	if m.engine != nil {
		fen = m.engine.FEN()
	}
	m.events.Publish(Event{
		MatchID: m.id, Type: EventTerminal, Result: out.Result,
		Method: string(out.Method), Reason: out.Reason, FEN: fen, At: m.updatedAt,
	})
	obslog.L().Info("match_terminal",
		zap.String("match_id", m.id),
		zap.String("result", out.Result),
		zap.String("method", string(out.Method)),
		zap.String("reason", out.Reason),
	)
}

func (m *Match) outcomeCopy() *Outcome {
	if m.outcome == nil {
		return nil
	}
	out := *m.outcome
	return &out
}

func containsMove(moves []string, wire string) bool {
	wire = strings.ToLower(wire)
	for _, mv := range moves {
		if strings.ToLower(mv) == wire {
			return true
		}
	}
	return false
}
