package arenadto

// PieceMoves groups the legal destinations of one piece on one square.
type PieceMoves struct {
	Piece  string   `json:"piece"`
	Square string   `json:"square"`
	Moves  []string `json:"moves"`
}

// SuggestionRequest is the wire request for a move suggestion.
type SuggestionRequest struct {
	Provider    string       `json:"provider"`
	Model       string       `json:"model,omitempty"`
	Position    string       `json:"position"`
	MoveHistory []string     `json:"moveHistory"`
	SideToMove  string       `json:"sideToMove"` // "w" | "b"
	LegalMoves  []string     `json:"legalMoves,omitempty"`
	PiecesMoves []PieceMoves `json:"piecesMoves,omitempty"`
}

// SuggestionResponse is the wire reply: a 4-5 character coordinate move
// (origin + destination + optional promotion letter).
type SuggestionResponse struct {
	Success    bool    `json:"success"`
	Move       string  `json:"move"`
	Reasoning  string  `json:"reasoning,omitempty"`
	Confidence float64 `json:"confidence,omitempty"`
}
