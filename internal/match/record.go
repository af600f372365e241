package match

import "time"

// Record is the archived summary of a finished match. Live match state never
// leaves memory; records are best-effort bookkeeping written on terminal
// transitions only.
type Record struct {
	ID        string    `json:"id"`
	Provider  string    `json:"provider"`
	Model     string    `json:"model"`
	Result    string    `json:"result"`
	Method    string    `json:"method"`
	Reason    string    `json:"reason"`
	FEN       string    `json:"fen"`
	MovesUCI  []string  `json:"moves_uci"`
	MovesSAN  []string  `json:"moves_san"`
	StartedAt time.Time `json:"started_at"`
	EndedAt   time.Time `json:"ended_at"`
}
