package suggest

import (
	"context"

	"go.uber.org/zap"

	"github.com/kapu/llm-chess-arena/internal/llm"
	"github.com/kapu/llm-chess-arena/internal/obslog"
	"github.com/kapu/llm-chess-arena/internal/retry"
	"github.com/kapu/llm-chess-arena/pkg/arenadto"
)

// Completer is the outbound AI-provider capability.
type Completer interface {
	Complete(ctx context.Context, prompt string) (*llm.MoveReply, error)
	Provider() string
	Model() string
}

// Service turns match context into a validated move suggestion: build the
// prompt, call the provider under the retry policy, normalize the reply.
type Service struct {
	client Completer
	policy retry.Policy
}

func NewService(client Completer, policy retry.Policy) *Service {
	if policy.ShouldRetry == nil {
		policy.ShouldRetry = llm.IsTransient
	}
	return &Service{client: client, policy: policy}
}

func (s *Service) Provider() string { return s.client.Provider() }
func (s *Service) Model() string    { return s.client.Model() }

// Suggest requests one move suggestion. A transient provider failure is
// retried under the policy; the exhausted error is propagated unchanged so
// the orchestrator can end the match as an AI failure. A reply that parses
// but fails the grammar returns a MalformedSuggestionError.
func (s *Service) Suggest(ctx context.Context, req *arenadto.SuggestionRequest) (*Response, error) {
	prompt, err := BuildPrompt(req)
	if err != nil {
		return nil, err
	}

	var reply *llm.MoveReply
	err = retry.Do(ctx, s.policy, "move_suggestion", func(ctx context.Context) error {
		r, cerr := s.client.Complete(ctx, prompt)
		if cerr != nil {
			return cerr
		}
		reply = r
		return nil
	})
	if err != nil {
		return nil, err
	}

	resp, err := Normalize(reply)
	if err != nil {
		obslog.L().Warn("suggestion_malformed",
			zap.String("side", req.SideToMove),
			zap.String("origin", reply.Origin),
			zap.String("destination", reply.Destination),
		)
		return nil, err
	}

	obslog.L().Debug("suggestion_normalized",
		zap.String("side", req.SideToMove),
		zap.String("move", resp.Wire()),
	)
	return resp, nil
}
