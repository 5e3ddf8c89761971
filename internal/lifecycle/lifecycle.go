// Package lifecycle tracks the viewer's quiz state as a reducer over poll
// snapshots. All knowledge of "what question is active, have I answered, can
// I claim" is derived from applied snapshots of the authoritative source;
// local actions only stage intent, they never commit state.
package lifecycle

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/arafateasin/chainquiz/internal/quiz"
)

// Phase is the viewer-local state for the current question id.
type Phase string

const (
	// PhaseUnavailable means the source itself could not be read. Distinct
	// from PhaseNoQuestion, which is a successful read with nothing active.
	PhaseUnavailable Phase = "UNAVAILABLE"
	// PhaseNoQuestion means no active question and no unclaimed reveal.
	PhaseNoQuestion Phase = "NO_QUESTION"
	// PhaseOpen means the question is active and the viewer has not answered.
	PhaseOpen Phase = "OPEN"
	// PhaseSubmitted means a poll has observed hasAnswered=true. Never
	// entered from the local click alone.
	PhaseSubmitted Phase = "SUBMITTED"
	// PhaseRevealedClaimable means the question revealed, the viewer answered
	// correctly and the reward is unclaimed.
	PhaseRevealedClaimable Phase = "REVEALED_CLAIMABLE"
	// PhaseRevealedClaimed means the reward for this question was claimed.
	PhaseRevealedClaimed Phase = "REVEALED_CLAIMED"
	// PhaseRevealedIneligible means the question revealed but the viewer's
	// answer was wrong.
	PhaseRevealedIneligible Phase = "REVEALED_INELIGIBLE"
)

// NoSelection marks an empty local option selection.
const NoSelection = -1

// ErrPrecondition rejects a local action whose requirements do not hold.
// Raised before any network call so an invalid write never leaves the client.
var ErrPrecondition = errors.New("precondition not met")

// View is the local projection handed to presentation consumers. Rebuilt on
// every applied snapshot; never persisted.
type View struct {
	Phase        Phase                   `json:"phase"`
	Question     *quiz.Question          `json:"question,omitempty"`
	Selected     int                     `json:"selected"`
	Answer       *quiz.UserAnswer        `json:"answer,omitempty"`
	RemainingSec int64                   `json:"remaining_sec"`
	AutoMode     bool                    `json:"auto_mode"`
	NextIn       int64                   `json:"next_in"`
	Stats        *quiz.PlayerStats       `json:"stats,omitempty"`
	Leaderboard  []quiz.LeaderboardEntry `json:"leaderboard,omitempty"`
	ObservedAt   time.Time               `json:"observed_at"`
}

// Machine reconciles poll snapshots into the local view. Snapshots are
// applied last-writer-wins by sequence number, so an out-of-order response
// can never move state backward.
type Machine struct {
	clock clockwork.Clock

	mu          sync.Mutex
	lastSeq     uint64
	phase       Phase
	question    *quiz.Question
	answer      *quiz.UserAnswer
	selected    int
	autoMode    bool
	nextIn      int64
	stats       *quiz.PlayerStats
	leaderboard []quiz.LeaderboardEntry
	observedAt  time.Time
}

// NewMachine creates a machine in the NoQuestion phase.
func NewMachine(clock clockwork.Clock) *Machine {
	return &Machine{
		clock:    clock,
		phase:    PhaseNoQuestion,
		selected: NoSelection,
	}
}

// stateKey is the comparable summary used to detect whether an applied
// snapshot actually changed anything.
type stateKey struct {
	phase              Phase
	questionID         uint64
	hasQuestion        bool
	active, revealed   bool
	participants       uint64
	answered, correct  bool
	claimed            bool
	selected           int
	autoMode           bool
	nextIn             int64
	hasStats           bool
	leaderboardEntries int
}

func (m *Machine) key() stateKey {
	k := stateKey{
		phase:              m.phase,
		selected:           m.selected,
		autoMode:           m.autoMode,
		nextIn:             m.nextIn,
		hasStats:           m.stats != nil,
		leaderboardEntries: len(m.leaderboard),
	}
	if m.question != nil {
		k.hasQuestion = true
		k.questionID = m.question.ID
		k.active = m.question.IsActive
		k.revealed = m.question.IsRevealed
		k.participants = m.question.TotalParticipants
	}
	if m.answer != nil {
		k.answered = m.answer.HasAnswered
		k.correct = m.answer.IsCorrect
		k.claimed = m.answer.Claimed
	}
	return k
}

// Apply reduces one snapshot into the machine. Returns true when the visible
// state changed. Snapshots at or below the last applied sequence are stale
// and discarded without effect.
func (m *Machine) Apply(snap quiz.Snapshot) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if snap.Seq <= m.lastSeq {
		log.Debug().
			Uint64("seq", snap.Seq).
			Uint64("last_applied", m.lastSeq).
			Msg("discarding stale snapshot")
		return false
	}
	m.lastSeq = snap.Seq

	before := m.key()
	m.reduce(snap)
	m.observedAt = snap.ObservedAt

	changed := m.key() != before
	if changed {
		log.Debug().
			Uint64("seq", snap.Seq).
			Str("phase", string(m.phase)).
			Msg("snapshot applied")
	}
	return changed
}

func (m *Machine) reduce(snap quiz.Snapshot) {
	if snap.Stats != nil {
		m.stats = snap.Stats
	}
	if snap.Leaderboard != nil {
		m.leaderboard = snap.Leaderboard
	}

	if snap.Unavailable {
		// An outage hides state, it does not erase it. Question and answer
		// survive so a partial recovery cannot revert an observed submission.
		m.phase = PhaseUnavailable
		return
	}

	m.autoMode = snap.AutoMode
	m.nextIn = snap.NextIn

	q := snap.Question
	if q == nil {
		m.phase = PhaseNoQuestion
		m.question = nil
		m.answer = nil
		m.selected = NoSelection
		return
	}

	// A newer question id supersedes the old one: the prior id's local state
	// is discarded, only the chain-side aggregates keep its history.
	if m.question == nil || m.question.ID != q.ID {
		m.selected = NoSelection
		m.answer = nil
	}
	m.question = q

	ans := snap.Answer
	if ans != nil && ans.QuestionID != q.ID {
		// Answer fetched for a question this snapshot no longer shows.
		ans = nil
	}
	// hasAnswered never reverts for a question id. If a snapshot pairs the
	// same question with a blank answer, keep the one already observed.
	if ans == nil || !ans.HasAnswered {
		if m.answer != nil && m.answer.HasAnswered {
			ans = m.answer
		}
	}
	m.answer = ans

	answered := ans != nil && ans.HasAnswered
	switch {
	case q.IsActive && answered:
		m.phase = PhaseSubmitted
		m.selected = ans.AnswerIndex
	case q.IsActive:
		m.phase = PhaseOpen
	case q.IsRevealed && answered:
		switch {
		case ans.Claimed:
			m.phase = PhaseRevealedClaimed
		case ans.IsCorrect:
			m.phase = PhaseRevealedClaimable
		default:
			m.phase = PhaseRevealedIneligible
		}
	default:
		m.phase = PhaseNoQuestion
	}
}

// remainingLocked computes seconds left on the current question's deadline,
// clamped at zero. Zero does not mean inactive; only the source decides that.
func (m *Machine) remainingLocked() int64 {
	if m.question == nil || !m.question.IsActive {
		return 0
	}
	remaining := m.question.EndTime - m.clock.Now().Unix()
	if remaining < 0 {
		return 0
	}
	return remaining
}

// SelectOption stages a local answer choice. Permitted only while the
// question is open and the locally computed countdown has not reached zero;
// a stale active flag does not reopen selection past the deadline.
func (m *Machine) SelectOption(index int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.phase != PhaseOpen {
		return fmt.Errorf("%w: no open question to answer", ErrPrecondition)
	}
	if m.remainingLocked() <= 0 {
		return fmt.Errorf("%w: question deadline passed", ErrPrecondition)
	}
	if index < 0 || index >= len(m.question.Options) {
		return fmt.Errorf("%w: option index %d out of range", ErrPrecondition, index)
	}
	m.selected = index
	return nil
}

// BeginSubmit validates that a submit write may be attempted and returns the
// (questionID, optionIndex) pair to send. The machine does not change state;
// the submission only becomes visible once a poll observes it.
func (m *Machine) BeginSubmit() (uint64, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.phase != PhaseOpen {
		return 0, 0, fmt.Errorf("%w: cannot submit in phase %s", ErrPrecondition, m.phase)
	}
	if m.selected == NoSelection {
		return 0, 0, fmt.Errorf("%w: no option selected", ErrPrecondition)
	}
	if m.remainingLocked() <= 0 {
		return 0, 0, fmt.Errorf("%w: question deadline passed", ErrPrecondition)
	}
	return m.question.ID, m.selected, nil
}

// BeginClaim validates that a claim write may be attempted and returns the
// question id to claim for. Eligibility is whatever the latest snapshot said;
// it is never cached across polls.
func (m *Machine) BeginClaim() (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.phase != PhaseRevealedClaimable {
		return 0, fmt.Errorf("%w: cannot claim in phase %s", ErrPrecondition, m.phase)
	}
	return m.question.ID, nil
}

// View returns the current projection for presentation consumers.
func (m *Machine) View() View {
	m.mu.Lock()
	defer m.mu.Unlock()

	return View{
		Phase:        m.phase,
		Question:     m.question,
		Selected:     m.selected,
		Answer:       m.answer,
		RemainingSec: m.remainingLocked(),
		AutoMode:     m.autoMode,
		NextIn:       m.nextIn,
		Stats:        m.stats,
		Leaderboard:  m.leaderboard,
		ObservedAt:   m.observedAt,
	}
}

// Deadline returns the active question's deadline, or false when there is
// nothing to count down.
func (m *Machine) Deadline() (time.Time, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.question == nil || !m.question.IsActive {
		return time.Time{}, false
	}
	return m.question.Deadline(), true
}
