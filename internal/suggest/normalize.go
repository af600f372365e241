package suggest

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/kapu/llm-chess-arena/internal/llm"
	"github.com/kapu/llm-chess-arena/pkg/arenadto"
)

var squarePattern = regexp.MustCompile(`^[a-h][1-8]$`)

// MalformedSuggestionError reports a reply whose coordinates fail the
// square grammar after normalization.
type MalformedSuggestionError struct {
	Origin      string
	Destination string
}

func (e *MalformedSuggestionError) Error() string {
	return fmt.Sprintf("malformed suggestion: origin=%q destination=%q", e.Origin, e.Destination)
}

// Response is a validated, normalized move suggestion.
type Response struct {
	Origin      string
	Destination string
	Promotion   string
	Reasoning   string
	Confidence  float64
}

// Wire renders the 4-5 character coordinate move string.
func (r *Response) Wire() string {
	return r.Origin + r.Destination + r.Promotion
}

// ToDTO converts to the wire response schema.
func (r *Response) ToDTO() arenadto.SuggestionResponse {
	return arenadto.SuggestionResponse{
		Success:    true,
		Move:       r.Wire(),
		Reasoning:  r.Reasoning,
		Confidence: r.Confidence,
	}
}

// Normalize validates an untrusted model reply. Steps, in order: lowercase
// and truncate squares to two characters; keep only the first promotion
// character and only if it is q/r/b/n; reject unless both squares match
// [a-h][1-8]. Extra fields in the raw reply are ignored.
func Normalize(reply *llm.MoveReply) (*Response, error) {
	if reply == nil {
		return nil, &MalformedSuggestionError{}
	}

	origin := clampSquare(reply.Origin)
	destination := clampSquare(reply.Destination)

	promotion := ""
	if p := strings.ToLower(strings.TrimSpace(reply.Promotion)); p != "" {
		switch p[:1] {
		case "q", "r", "b", "n":
			promotion = p[:1]
		}
	}

	if !squarePattern.MatchString(origin) || !squarePattern.MatchString(destination) {
		return nil, &MalformedSuggestionError{Origin: reply.Origin, Destination: reply.Destination}
	}

	return &Response{
		Origin:      origin,
		Destination: destination,
		Promotion:   promotion,
		Reasoning:   strings.TrimSpace(reply.Reasoning),
		Confidence:  reply.Confidence,
	}, nil
}

func clampSquare(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if len(s) > 2 {
		s = s[:2]
	}
	return s
}
