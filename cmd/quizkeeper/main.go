package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/arafateasin/chainquiz/internal/config"
	"github.com/arafateasin/chainquiz/internal/gateway"
	"github.com/arafateasin/chainquiz/internal/keeper"
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

	if cfg.PlayerAddress == "" {
		log.Fatal().Msg("QUIZ_PLAYER_ADDRESS is required: the keeper signs rotation transactions")
	}

	log.Info().
		Str("rpc_endpoint", cfg.RPCEndpoint).
		Str("contract", cfg.ContractAddress).
		Dur("check_interval", cfg.KeeperCheckInterval).
		Dur("rotation_interval", cfg.RotationInterval).
		Msg("starting automation keeper")

	gw := gateway.NewRPCClient(cfg.RPCEndpoint, cfg.ContractAddress, cfg.PlayerAddress)
	k := keeper.New(gw, clockwork.NewRealClock(), cfg.KeeperCheckInterval)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		sig := <-sigChan
		log.Info().Str("signal", sig.String()).Msg("received shutdown signal")
		cancel()
	}()

	if err := k.Run(ctx); err != nil {
		log.Fatal().Err(err).Msg("keeper failed")
	}

	log.Info().Msg("automation keeper shutdown complete")
}
