package main

import (
	"context"
	"log"
	"os"
	"strings"
	"time"

	appcfg "github.com/kapu/llm-chess-arena/internal/config"
	"github.com/kapu/llm-chess-arena/internal/llm"
	"github.com/kapu/llm-chess-arena/internal/presets"
	"github.com/kapu/llm-chess-arena/internal/retry"
	"github.com/kapu/llm-chess-arena/internal/rules"
	"github.com/kapu/llm-chess-arena/internal/suggest"
	"github.com/kapu/llm-chess-arena/pkg/arenadto"
)

// providercheck asks the configured provider for one opening move from the
// start position and reports whether the reply normalizes.
func main() {
	cfg, err := appcfg.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	catalog, err := presets.Load(cfg.PresetsFile)
	if err != nil {
		log.Fatalf("presets error: %v", err)
	}
	name := cfg.PresetName
	if name == "" {
		name = cfg.ProviderName
	}
	if p, ok := catalog.Get(name); ok {
		if cfg.ProviderBaseURL == "" {
			cfg.ProviderBaseURL = p.BaseURL
		}
		if cfg.Model == "" {
			cfg.Model = p.Model
		}
		if cfg.ProviderAPIKey == "" && p.APIKeyEnv != "" {
			cfg.ProviderAPIKey = strings.TrimSpace(os.Getenv(p.APIKeyEnv))
		}
	}
	if err := cfg.ValidateProvider(); err != nil {
		log.Fatalf("configuration error: %v", err)
	}

	client := llm.NewClient(cfg.ProviderName, cfg.ProviderBaseURL, cfg.Model, cfg.ProviderAPIKey,
		llm.WithTimeout(cfg.ProviderTimeout),
	)
	svc := suggest.NewService(client, retry.Policy{MaxAttempts: 1, BaseDelay: 0})

	board := rules.NewBoard()
	req := &arenadto.SuggestionRequest{
		Provider:    cfg.ProviderName,
		Model:       cfg.Model,
		Position:    board.FEN(),
		MoveHistory: nil,
		SideToMove:  board.SideToMove(),
		LegalMoves:  board.LegalMoves(),
		PiecesMoves: board.PieceMoves(),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	resp, err := svc.Suggest(ctx, req)
	if err != nil {
		log.Fatalf("suggestion failed: %v", err)
	}
	log.Printf("provider ok: model=%s move=%s reasoning=%q", cfg.Model, resp.Wire(), resp.Reasoning)
}
