package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/zhouzirui/z-pilot/backend/internal/config"
	"github.com/zhouzirui/z-pilot/backend/internal/handler"
	"github.com/zhouzirui/z-pilot/backend/internal/service/ai"
	"github.com/zhouzirui/z-pilot/backend/internal/service/chat"
	"github.com/zhouzirui/z-pilot/backend/internal/service/imaging"
	"github.com/zhouzirui/z-pilot/backend/internal/service/pilot"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		envFile string
		addr    string
	)

	cmd := &cobra.Command{
		Use:           "z-pilot",
		Short:         "Screen pilot backend: relays prompts and screenshots to a multimodal model",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), envFile, addr)
		},
	}

	cmd.Flags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before reading the environment")
	cmd.Flags().StringVar(&addr, "addr", "", "listen address, overrides PORT")
	return cmd
}

func serve(parent context.Context, envFile, addr string) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	if err := godotenv.Load(envFile); err != nil {
		log.Warn().Err(err).Str("file", envFile).Msg("failed to load .env file, continuing with system environment variables only")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	setupLogging(cfg.Log)

	if addr != "" {
		server, err := config.ParseAddr(addr)
		if err != nil {
			return err
		}
		cfg.Server = server
	}

	gateway, err := ai.NewGateway(ctx, cfg.AI)
	if err != nil {
		log.Fatal().Err(err).Str("provider", cfg.AI.Provider).Msg("failed to initialize model gateway")
	}
	log.Info().Str("provider", cfg.AI.Provider).Msg("model gateway initialized")

	images, err := imaging.NewStore(imaging.Config{
		StaticDir: cfg.Storage.StaticDir,
		OutputDir: cfg.Storage.OutputDir,
		Order:     cfg.Storage.BoxOrder,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize image store")
	}
	if err := os.MkdirAll(cfg.Storage.OutputDir, 0o755); err != nil {
		log.Fatal().Err(err).Str("dir", cfg.Storage.OutputDir).Msg("failed to create output directory")
	}

	pilotService := pilot.NewService(chat.NewService(), gateway, images)
	router := handler.NewRouter(pilotService, cfg.Storage.StaticDir)

	return startServer(ctx, cfg.Server, router)
}

func setupLogging(cfg config.LogConfig) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Format == "json" {
		log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
		return
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) error {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Info().Str("addr", addr).Msg("z-pilot backend listening")
	if err := runServer(ctx, srv); err != nil {
		log.Error().Err(err).Msg("server error")
		return err
	}
	log.Info().Msg("server shutdown complete")
	return nil
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
