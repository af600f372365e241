package arenadto

import "time"

// MatchSnapshot is a read-only view of a match for API consumers.
type MatchSnapshot struct {
	ID                 string    `json:"id"`
	FEN                string    `json:"fen"`
	SideToMove         string    `json:"sideToMove"`
	MovesUCI           []string  `json:"movesUci"`
	MovesSAN           []string  `json:"movesSan"`
	InvalidAttempts    int       `json:"invalidAttempts"`
	Active             bool      `json:"active"`
	AwaitingSuggestion bool      `json:"awaitingSuggestion"`
	Status             string    `json:"status"`
	Result             string    `json:"result,omitempty"`
	ResultMethod       string    `json:"resultMethod,omitempty"`
	ResultReason       string    `json:"resultReason,omitempty"`
	CreatedAt          time.Time `json:"createdAt"`
	UpdatedAt          time.Time `json:"updatedAt"`
}

// ExternalMoveRequest is the manual/testing path that bypasses the AI.
type ExternalMoveRequest struct {
	Origin      string `json:"origin"`
	Destination string `json:"destination"`
	Promotion   string `json:"promotion,omitempty"`
}
