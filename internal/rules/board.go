package rules

import (
	"fmt"
	"sort"
	"strings"

	nchess "github.com/corentings/chess/v2"

	"github.com/kapu/llm-chess-arena/pkg/arenadto"
)

// Board adapts the chess library to the capability surface the match
// orchestrator consumes: legal-move enumeration, application, side to move,
// and terminal predicates. All moves cross this boundary as wire-format
// coordinate strings (origin + destination + optional promotion letter).
type Board struct {
	game *nchess.Game
}

func NewBoard() *Board {
	return &Board{game: nchess.NewGame()}
}

// NewBoardFromFEN starts from an arbitrary position.
func NewBoardFromFEN(fen string) (*Board, error) {
	opt, err := nchess.FEN(strings.TrimSpace(fen))
	if err != nil {
		return nil, fmt.Errorf("invalid position: %w", err)
	}
	return &Board{game: nchess.NewGame(opt)}, nil
}

func (b *Board) FEN() string { return b.game.FEN() }

// SideToMove returns "w" or "b".
func (b *Board) SideToMove() string {
	return strings.ToLower(b.game.Position().Turn().String())
}

// LegalMoves returns every legal move in wire format.
func (b *Board) LegalMoves() []string {
	valid := b.game.ValidMoves()
	out := make([]string, 0, len(valid))
	for i := range valid {
		out = append(out, valid[i].String())
	}
	return out
}

// PieceMoves groups legal destinations per occupied origin square.
func (b *Board) PieceMoves() []arenadto.PieceMoves {
	pos := b.game.Position()
	board := pos.Board()

	grouped := make(map[nchess.Square][]string)
	valid := b.game.ValidMoves()
	for i := range valid {
		mv := valid[i]
		grouped[mv.S1()] = append(grouped[mv.S1()], mv.String())
	}

	squares := make([]nchess.Square, 0, len(grouped))
	for sq := range grouped {
		squares = append(squares, sq)
	}
	sort.Slice(squares, func(i, j int) bool { return squares[i] < squares[j] })

	out := make([]arenadto.PieceMoves, 0, len(squares))
	for _, sq := range squares {
		piece := board.Piece(sq)
		out = append(out, arenadto.PieceMoves{
			Piece:  PieceName(piece),
			Square: sq.String(),
			Moves:  grouped[sq],
		})
	}
	return out
}

// Apply plays a wire-format move. The library validates legality; a failure
// here surfaces as a rejection to the orchestrator.
func (b *Board) Apply(move string) error {
	move = strings.ToLower(strings.TrimSpace(move))
	if move == "" {
		return fmt.Errorf("empty move")
	}
	if err := b.game.PushNotationMove(move, nchess.UCINotation{}, nil); err != nil {
		return fmt.Errorf("apply %s: %w", move, err)
	}
	return nil
}

// MovesUCI returns the applied move history in wire format.
func (b *Board) MovesUCI() []string {
	moves := b.game.Moves()
	out := make([]string, 0, len(moves))
	for _, mv := range moves {
		out = append(out, mv.String())
	}
	return out
}

// MovesSAN returns the applied move history in standard algebraic notation.
func (b *Board) MovesSAN() []string {
	moves := b.game.Moves()
	positions := b.game.Positions()
	out := make([]string, 0, len(moves))
	for i, mv := range moves {
		if i >= len(positions) {
			break
		}
		out = append(out, nchess.AlgebraicNotation{}.Encode(positions[i], mv))
	}
	return out
}

func (b *Board) IsCheckmate() bool {
	return b.game.Position().Status() == nchess.Checkmate
}

func (b *Board) IsStalemate() bool {
	return b.game.Position().Status() == nchess.Stalemate
}

// IsDraw covers the generic rule draws: fifty/seventy-five move rule and
// fivefold repetition. Stalemate, threefold and insufficient material have
// their own predicates.
func (b *Board) IsDraw() bool {
	if b.game.Outcome() == nchess.Draw {
		switch b.game.Method() {
		case nchess.FiftyMoveRule, nchess.SeventyFiveMoveRule, nchess.FivefoldRepetition:
			return true
		}
	}
	for _, m := range b.game.EligibleDraws() {
		if m == nchess.FiftyMoveRule {
			return true
		}
	}
	return false
}

func (b *Board) IsThreefoldRepetition() bool {
	if b.game.Method() == nchess.ThreefoldRepetition {
		return true
	}
	for _, m := range b.game.EligibleDraws() {
		if m == nchess.ThreefoldRepetition {
			return true
		}
	}
	return false
}

func (b *Board) IsInsufficientMaterial() bool {
	return b.game.Outcome() == nchess.Draw && b.game.Method() == nchess.InsufficientMaterial
}

// PieceName renders a piece as "White Knight", "Black Pawn", etc.
func PieceName(p nchess.Piece) string {
	if p == nchess.NoPiece {
		return ""
	}
	color := "White"
	if p.Color() == nchess.Black {
		color = "Black"
	}
	return color + " " + pieceTypeName(p.Type())
}

func pieceTypeName(t nchess.PieceType) string {
	switch t {
	case nchess.King:
		return "King"
	case nchess.Queen:
		return "Queen"
	case nchess.Rook:
		return "Rook"
	case nchess.Bishop:
		return "Bishop"
	case nchess.Knight:
		return "Knight"
	case nchess.Pawn:
		return "Pawn"
	default:
		return "Piece"
	}
}

// Occupancy lists every occupied square of a FEN position in board order.
type Occupant struct {
	Square string
	Piece  string
}

func Occupancy(fen string) ([]Occupant, error) {
	opt, err := nchess.FEN(strings.TrimSpace(fen))
	if err != nil {
		return nil, fmt.Errorf("invalid position: %w", err)
	}
	game := nchess.NewGame(opt)
	squareMap := game.Position().Board().SquareMap()

	squares := make([]nchess.Square, 0, len(squareMap))
	for sq := range squareMap {
		squares = append(squares, sq)
	}
	sort.Slice(squares, func(i, j int) bool { return squares[i] < squares[j] })

	out := make([]Occupant, 0, len(squares))
	for _, sq := range squares {
		out = append(out, Occupant{Square: sq.String(), Piece: PieceName(squareMap[sq])})
	}
	return out, nil
}
