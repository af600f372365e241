package suggest

import (
	"fmt"
	"strings"

	"github.com/kapu/llm-chess-arena/internal/rules"
	"github.com/kapu/llm-chess-arena/pkg/arenadto"
)

// InvalidRequestError reports a suggestion request that cannot produce a
// prompt: the caller's fault, not the provider's.
type InvalidRequestError struct {
	Reason string
}

func (e *InvalidRequestError) Error() string {
	return "invalid suggestion request: " + e.Reason
}

// BuildPrompt renders the completion prompt from the request fields alone.
// The model is told whose turn it is, instructed to pick only from the
// supplied legal moves, and shown the exact JSON reply schema with a plain
// and a promoting example.
func BuildPrompt(req *arenadto.SuggestionRequest) (string, error) {
	if req == nil || strings.TrimSpace(req.Position) == "" {
		return "", &InvalidRequestError{Reason: "missing position"}
	}

	side := sideName(req.SideToMove)

	var b strings.Builder
	fmt.Fprintf(&b, "You are playing a chess game as %s. It is %s's turn to move.\n\n", side, side)

	b.WriteString("Current position (FEN): ")
	b.WriteString(strings.TrimSpace(req.Position))
	b.WriteString("\n\nOccupied squares:\n")
	occupants, err := rules.Occupancy(req.Position)
	if err != nil {
		return "", &InvalidRequestError{Reason: err.Error()}
	}
	for _, occ := range occupants {
		fmt.Fprintf(&b, "  %s: %s\n", occ.Square, occ.Piece)
	}

	b.WriteString("\nMove history: ")
	if len(req.MoveHistory) == 0 {
		b.WriteString("Game start")
	} else {
		b.WriteString(strings.Join(req.MoveHistory, ", "))
	}
	b.WriteString("\n\n")

	switch {
	case len(req.PiecesMoves) > 0:
		b.WriteString("Your legal moves, grouped per piece:\n")
		for _, pm := range req.PiecesMoves {
			fmt.Fprintf(&b, "  %s on %s: %s\n", pm.Piece, pm.Square, strings.Join(pm.Moves, ", "))
		}
	case len(req.LegalMoves) > 0:
		b.WriteString("Your legal moves: ")
		b.WriteString(strings.Join(req.LegalMoves, ", "))
		b.WriteString("\n")
	default:
		b.WriteString("Legal moves: Not provided\n")
	}

	fmt.Fprintf(&b, `
Instructions:
1. You MUST select your move only from the legal moves listed above.
2. It is %s's turn: move a %s piece.
3. Respond with a single JSON object in exactly this schema:
   {"origin": "<square>", "destination": "<square>", "promotion": "<q|r|b|n or empty>", "reasoning": "<short explanation>"}

Example (plain move):
   {"origin": "e2", "destination": "e4", "promotion": "", "reasoning": "Take the center."}
Example (promoting move):
   {"origin": "e7", "destination": "e8", "promotion": "q", "reasoning": "Promote to queen."}
`, side, side)

	return b.String(), nil
}

func sideName(side string) string {
	if strings.HasPrefix(strings.ToLower(strings.TrimSpace(side)), "b") {
		return "Black"
	}
	return "White"
}
