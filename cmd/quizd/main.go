package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/arafateasin/chainquiz/internal/bridge"
	"github.com/arafateasin/chainquiz/internal/config"
	"github.com/arafateasin/chainquiz/internal/countdown"
	"github.com/arafateasin/chainquiz/internal/gateway"
	"github.com/arafateasin/chainquiz/internal/lifecycle"
	"github.com/arafateasin/chainquiz/internal/poller"
)

func main() {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("could not load .env file")
	}

	// Setup logging
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if os.Getenv("QUIZ_DEBUG") != "" {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	log.Info().
		Str("rpc_endpoint", cfg.RPCEndpoint).
		Int("chain_id", cfg.ChainID).
		Str("contract", cfg.ContractAddress).
		Str("player", cfg.PlayerAddress).
		Dur("poll_interval", cfg.PollInterval).
		Msg("starting quiz client")

	clock := clockwork.NewRealClock()
	gw := gateway.NewRPCClient(cfg.RPCEndpoint, cfg.ContractAddress, cfg.PlayerAddress)
	machine := lifecycle.NewMachine(clock)
	engine := countdown.NewEngine(clock, cfg.CountdownTick)
	bridgeService := bridge.NewService(bridge.DefaultConnectionConfig(), machine, gw, cfg.PlayerAddress)

	quizPoller := poller.New(gw, machine, clock, cfg.PollInterval, cfg.PlayerAddress)
	quizPoller.OnApplied(func(view lifecycle.View) {
		if deadline, ok := machine.Deadline(); ok {
			engine.SetDeadline(deadline)
		} else {
			engine.Clear()
		}
		bridgeService.BroadcastView(view)
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go bridgeService.Start(ctx)
	go engine.Run(ctx, bridgeService.BroadcastTick)
	go func() {
		if err := quizPoller.Run(ctx); err != nil {
			log.Error().Err(err).Msg("poller failed")
		}
	}()

	// UI-facing HTTP server
	mux := http.NewServeMux()
	bridgeService.RegisterRoutes(mux)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	c := cors.New(cors.Options{
		AllowedMethods: []string{
			http.MethodHead,
			http.MethodGet,
			http.MethodPost,
		},
		AllowedOrigins: []string{"*"},
		AllowedHeaders: []string{"*"},
	})

	server := &http.Server{
		Addr:         cfg.BridgeAddr,
		Handler:      c.Handler(mux),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("bridge HTTP server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("bridge HTTP server failed")
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	sig := <-sigChan

	log.Info().Str("signal", sig.String()).Msg("received shutdown signal")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("bridge HTTP server shutdown failed")
	}

	cancel()
	time.Sleep(1 * time.Second)

	log.Info().Msg("quiz client shutdown complete")
}
