package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/kapu/llm-chess-arena/internal/api"
	appcfg "github.com/kapu/llm-chess-arena/internal/config"
	"github.com/kapu/llm-chess-arena/internal/llm"
	"github.com/kapu/llm-chess-arena/internal/match"
	"github.com/kapu/llm-chess-arena/internal/obslog"
	"github.com/kapu/llm-chess-arena/internal/presets"
	"github.com/kapu/llm-chess-arena/internal/retry"
	"github.com/kapu/llm-chess-arena/internal/rules"
	"github.com/kapu/llm-chess-arena/internal/stream"
	"github.com/kapu/llm-chess-arena/internal/suggest"
)

func main() {
	if err := obslog.InitFromEnv(); err != nil {
		log.Fatalf("logger init error: %v", err)
	}

	cfg, err := appcfg.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	catalog, err := presets.Load(cfg.PresetsFile)
	if err != nil {
		log.Fatalf("presets error: %v", err)
	}
	applyPreset(cfg, catalog)

	if err := cfg.ValidateProvider(); err != nil {
		log.Fatalf("configuration error: %v", err)
	}

	client := llm.NewClient(cfg.ProviderName, cfg.ProviderBaseURL, cfg.Model, cfg.ProviderAPIKey,
		llm.WithTimeout(cfg.ProviderTimeout),
		llm.WithTemperature(cfg.Temperature),
	)
	svc := suggest.NewService(client, retry.Policy{
		MaxAttempts: cfg.RetryMaxAttempts,
		BaseDelay:   cfg.RetryBaseDelay,
	})

	opts := []match.ManagerOption{match.WithMaxInvalidMoves(cfg.MaxInvalidMoves)}

	var hub *stream.Hub
	if cfg.EventsAddr != "" {
		hub = stream.NewHub()
		opts = append(opts, match.WithEvents(hub))
	}

	var archive *match.Archive
	if cfg.RedisURL != "" {
		archive, err = match.NewArchiveFromURL(cfg.RedisURL)
		if err != nil {
			log.Fatalf("archive init error: %v", err)
		}
		opts = append(opts, match.WithArchive(archive))
	}

	var repo *match.Repository
	if cfg.DatabaseURL != "" {
		repo, err = match.NewRepository(cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("repository init error: %v", err)
		}
		opts = append(opts, match.WithRepository(repo))
	}

	mgr := match.NewManager(svc, func() match.Engine { return rules.NewBoard() }, opts...)
	server := api.NewServer(mgr, svc, archive)

	obslog.L().Info("arena_server_start",
		zap.String("listen_addr", cfg.ListenAddr),
		zap.String("events_addr", cfg.EventsAddr),
		zap.String("provider", cfg.ProviderName),
		zap.String("model", cfg.Model),
	)

	var eventsSrv interface{ Shutdown(context.Context) error }
	if hub != nil {
		eventsSrv = stream.Serve(cfg.EventsAddr, hub)
	}

	go func() {
		if err := server.Listen(cfg.ListenAddr); err != nil {
			obslog.L().Fatal("api_server_error", zap.Error(err))
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	if eventsSrv != nil {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = eventsSrv.Shutdown(sctx)
		cancel()
	}
	if archive != nil {
		_ = archive.Close()
	}
	if repo != nil {
		_ = repo.Close()
	}
	obslog.L().Info("arena_server_stop")
}

// applyPreset fills provider fields from the named preset (or the provider
// name itself) without clobbering explicit environment settings.
func applyPreset(cfg *appcfg.AppConfig, catalog *presets.Catalog) {
	name := cfg.PresetName
	if name == "" {
		name = cfg.ProviderName
	}
	p, ok := catalog.Get(name)
	if !ok {
		return
	}
	if cfg.ProviderBaseURL == "" {
		cfg.ProviderBaseURL = p.BaseURL
	}
	if cfg.Model == "" {
		cfg.Model = p.Model
	}
	if cfg.Temperature == 0 && p.Temperature > 0 {
		cfg.Temperature = p.Temperature
	}
	if cfg.ProviderAPIKey == "" && p.APIKeyEnv != "" {
		cfg.ProviderAPIKey = strings.TrimSpace(os.Getenv(p.APIKeyEnv))
	}
}
