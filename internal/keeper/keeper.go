// Package keeper runs the automation loop that keeps the quiz rotating:
// revealing questions whose deadline has passed and requesting creation of
// the next one once the rotation interval elapses. The contract enforces the
// real timing; calling early is a no-op on its side.
package keeper

import (
	"context"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/arafateasin/chainquiz/internal/gateway"
)

// DefaultCheckInterval is how often the keeper probes the contract.
const DefaultCheckInterval = 5 * time.Second

// Keeper polls contract state and triggers rotation writes when due. Failed
// checks are logged and retried on the next interval; there is no backoff
// escalation, the contract tolerates redundant triggers.
type Keeper struct {
	gw            gateway.Gateway
	clock         clockwork.Clock
	checkInterval time.Duration
}

// New creates a keeper.
func New(gw gateway.Gateway, clock clockwork.Clock, checkInterval time.Duration) *Keeper {
	if checkInterval <= 0 {
		checkInterval = DefaultCheckInterval
	}
	return &Keeper{
		gw:            gw,
		clock:         clock,
		checkInterval: checkInterval,
	}
}

// Run checks immediately and then on the fixed interval until the context is
// cancelled.
func (k *Keeper) Run(ctx context.Context) error {
	log.Info().Dur("check_interval", k.checkInterval).Msg("automation keeper started")

	timer := k.clock.NewTimer(k.checkInterval)
	defer timer.Stop()

	for {
		if err := k.checkAndTrigger(ctx); err != nil {
			log.Error().Err(err).Msg("keeper check failed")
		}
		if ctx.Err() != nil {
			log.Info().Msg("automation keeper shutting down")
			return nil
		}

		timer.Reset(k.checkInterval)
		select {
		case <-ctx.Done():
			log.Info().Msg("automation keeper shutting down")
			return nil
		case <-timer.Chan():
		}
	}
}

// checkAndTrigger performs one keeper pass.
func (k *Keeper) checkAndTrigger(ctx context.Context) error {
	deployed, err := k.gw.IsDeployed(ctx)
	if err != nil {
		return fmt.Errorf("deployment probe: %w", err)
	}
	if !deployed {
		log.Warn().Msg("contract not deployed yet, waiting")
		return nil
	}

	autoMode, err := k.gw.IsAutomationEnabled(ctx)
	if err != nil {
		return fmt.Errorf("read auto mode: %w", err)
	}
	if !autoMode {
		log.Debug().Msg("auto mode disabled, waiting")
		return nil
	}

	question, err := k.gw.GetCurrentQuestion(ctx)
	if err != nil {
		return fmt.Errorf("read current question: %w", err)
	}

	now := k.clock.Now().Unix()
	if question != nil && question.IsActive && !question.IsRevealed && now > question.EndTime {
		log.Info().Uint64("question_id", question.ID).Msg("revealing expired question")
		return k.trigger(ctx)
	}

	nextIn, err := k.gw.TimeUntilNextQuestion(ctx)
	if err != nil {
		return fmt.Errorf("read time until next question: %w", err)
	}
	if nextIn == 0 {
		poolSize, err := k.gw.QuestionPoolSize(ctx)
		if err != nil {
			log.Warn().Err(err).Msg("question pool read failed")
		}
		log.Info().Uint64("pool_size", poolSize).Msg("rotation interval elapsed, creating next question")
		return k.trigger(ctx)
	}

	if question != nil && question.IsActive {
		log.Debug().
			Uint64("question_id", question.ID).
			Int64("time_left", question.EndTime-now).
			Msg("question in progress")
	} else {
		log.Debug().Int64("next_in", nextIn).Msg("waiting for next question")
	}
	return nil
}

func (k *Keeper) trigger(ctx context.Context) error {
	receipt, err := k.gw.AdvanceQuestion(ctx)
	if err != nil {
		return fmt.Errorf("advance question: %w", err)
	}
	log.Info().Str("tx_hash", receipt.TxHash).Msg("rotation triggered")
	return nil
}
