package match

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/kapu/llm-chess-arena/internal/suggest"
	"github.com/kapu/llm-chess-arena/pkg/arenadto"
)

// Status is the match lifecycle state.
type Status string

const (
	StatusIdle     Status = "IDLE"
	StatusActive   Status = "ACTIVE"
	StatusTerminal Status = "TERMINAL"
)

// Method names how a match ended.
type Method string

const (
	MethodCheckmate            Method = "checkmate"
	MethodStalemate            Method = "stalemate"
	MethodDraw                 Method = "draw"
	MethodThreefoldRepetition  Method = "threefold_repetition"
	MethodInsufficientMaterial Method = "insufficient_material"
	MethodResignation          Method = "resignation"
	MethodForfeit              Method = "invalid_move_forfeit"
	MethodAIFailure            Method = "ai_failure"
)

// Result tokens.
const (
	ResultWhiteWins = "White wins"
	ResultBlackWins = "Black wins"
	ResultDraw      = "Draw"
)

// Outcome is the fixed terminal result of a match.
type Outcome struct {
	Result string `json:"result,omitempty"`
	Method Method `json:"method"`
	Reason string `json:"reason"`
}

var (
	ErrMatchNotActive     = errors.New("match is not active")
	ErrAwaitingSuggestion = errors.New("a suggestion cycle is already outstanding")
	ErrMatchNotFound      = errors.New("match not found")
)

// IllegalSuggestionError reports a well-formed move that is absent from the
// legal-move set or was rejected by the rules engine on application.
type IllegalSuggestionError struct {
	Move   string
	Reason string
}

func (e *IllegalSuggestionError) Error() string {
	return fmt.Sprintf("illegal suggestion %q: %s", e.Move, e.Reason)
}

// Engine is the rules capability the orchestrator consumes. It owns chess
// legality; the orchestrator never inspects piece semantics itself.
type Engine interface {
	FEN() string
	SideToMove() string
	LegalMoves() []string
	PieceMoves() []arenadto.PieceMoves
	Apply(move string) error
	MovesSAN() []string
	IsCheckmate() bool
	IsStalemate() bool
	IsDraw() bool
	IsThreefoldRepetition() bool
	IsInsufficientMaterial() bool
}

// EngineFactory produces a fresh start-position engine for start/reset.
type EngineFactory func() Engine

// Suggester is the move-suggestion protocol capability.
type Suggester interface {
	Suggest(ctx context.Context, req *arenadto.SuggestionRequest) (*suggest.Response, error)
	Provider() string
	Model() string
}

func opponent(side string) string {
	if strings.HasPrefix(strings.ToLower(side), "w") {
		return "b"
	}
	return "w"
}

func sideName(side string) string {
	if strings.HasPrefix(strings.ToLower(side), "b") {
		return "Black"
	}
	return "White"
}

func resultToken(winner string) string {
	if strings.HasPrefix(strings.ToLower(winner), "b") {
		return ResultBlackWins
	}
	return ResultWhiteWins
}
