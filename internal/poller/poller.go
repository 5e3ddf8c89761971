// Package poller drives the fixed-interval reconciliation loop against the
// quiz contract. Each iteration performs the read set, assembles a
// sequence-tagged snapshot and hands it to the lifecycle machine. Reads are
// authoritative; the countdown ticker elsewhere is cosmetic.
package poller

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/arafateasin/chainquiz/internal/gateway"
	"github.com/arafateasin/chainquiz/internal/lifecycle"
	"github.com/arafateasin/chainquiz/internal/quiz"
)

// DefaultInterval is the poll cadence when none is configured.
const DefaultInterval = 5 * time.Second

// Poller owns the poll loop. Sequence numbers are assigned when a poll is
// issued, so a response applied out of order is recognized as stale by the
// machine and discarded.
type Poller struct {
	gw       gateway.Gateway
	machine  *lifecycle.Machine
	clock    clockwork.Clock
	interval time.Duration
	player   string
	seq      atomic.Uint64

	// onApplied fires after a snapshot visibly changed the machine state.
	onApplied func(lifecycle.View)
}

// New creates a poller for the given gateway and machine. player may be empty
// for a read-only session; viewer-answer and stats reads are skipped then.
func New(gw gateway.Gateway, machine *lifecycle.Machine, clock clockwork.Clock, interval time.Duration, player string) *Poller {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Poller{
		gw:       gw,
		machine:  machine,
		clock:    clock,
		interval: interval,
		player:   player,
	}
}

// OnApplied registers the callback invoked when an applied snapshot changed
// the visible state. Must be set before Run.
func (p *Poller) OnApplied(fn func(lifecycle.View)) {
	p.onApplied = fn
}

// Run polls immediately and then on the fixed interval until the context is
// cancelled. The timer is stopped deterministically on shutdown; a resumed
// session starts a fresh Run and re-polls from scratch.
func (p *Poller) Run(ctx context.Context) error {
	log.Info().Dur("interval", p.interval).Msg("poller started")

	timer := p.clock.NewTimer(p.interval)
	defer timer.Stop()

	failures := 0
	for {
		snap := p.pollOnce(ctx)
		if ctx.Err() != nil {
			log.Info().Msg("poller shutting down")
			return nil
		}

		if snap.Unavailable {
			failures++
			if failures == 1 || failures%12 == 0 {
				log.Warn().Int("consecutive_failures", failures).Msg("quiz source unavailable")
			}
		} else if failures > 0 {
			log.Info().Int("after_failures", failures).Msg("quiz source reachable again")
			failures = 0
		}

		if p.machine.Apply(snap) && p.onApplied != nil {
			p.onApplied(p.machine.View())
		}

		timer.Reset(p.interval)
		select {
		case <-ctx.Done():
			log.Info().Msg("poller shutting down")
			return nil
		case <-timer.Chan():
		}
	}
}

// pollOnce performs one full read of the source. Failure of the core reads
// (deployment probe, current question) degrades to an unavailable snapshot;
// aggregate reads (stats, leaderboard) are best-effort and only logged.
func (p *Poller) pollOnce(ctx context.Context) quiz.Snapshot {
	snap := quiz.Snapshot{
		Seq:        p.seq.Add(1),
		ObservedAt: p.clock.Now(),
	}

	deployed, err := p.gw.IsDeployed(ctx)
	if err != nil || !deployed {
		if err != nil {
			log.Debug().Err(err).Msg("deployment probe failed")
		}
		snap.Unavailable = true
		return snap
	}

	question, err := p.gw.GetCurrentQuestion(ctx)
	if err != nil {
		log.Debug().Err(err).Msg("get current question failed")
		snap.Unavailable = true
		return snap
	}
	snap.Question = question

	autoMode, err := p.gw.IsAutomationEnabled(ctx)
	if err != nil {
		log.Debug().Err(err).Msg("automation flag read failed")
		snap.Unavailable = true
		return snap
	}
	snap.AutoMode = autoMode

	if autoMode {
		nextIn, err := p.gw.TimeUntilNextQuestion(ctx)
		if err != nil {
			log.Debug().Err(err).Msg("time until next question read failed")
		} else {
			snap.NextIn = nextIn
		}
	}

	if p.player != "" && question != nil {
		answer, err := p.gw.GetUserAnswer(ctx, question.ID, p.player)
		if err != nil {
			log.Debug().Err(err).Uint64("question_id", question.ID).Msg("user answer read failed")
		} else {
			snap.Answer = answer
		}

		stats, err := p.gw.GetPlayerStats(ctx, p.player)
		if err != nil {
			log.Debug().Err(err).Msg("player stats read failed")
		} else {
			snap.Stats = stats
		}
	}

	leaderboard, err := p.gw.GetLeaderboard(ctx)
	if err != nil {
		log.Debug().Err(err).Msg("leaderboard read failed")
	} else {
		snap.Leaderboard = leaderboard
	}

	return snap
}
