package lifecycle

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arafateasin/chainquiz/internal/quiz"
)

func newTestMachine(t *testing.T) (*Machine, *clockwork.FakeClock) {
	t.Helper()
	clock := clockwork.NewFakeClockAt(time.Unix(1_700_000_000, 0))
	return NewMachine(clock), clock
}

func openQuestion(id uint64, clock clockwork.Clock, openFor time.Duration) *quiz.Question {
	now := clock.Now().Unix()
	return &quiz.Question{
		ID:        id,
		Text:      "What consensus mechanism does Ethereum use?",
		Options:   []string{"Proof of Work", "Proof of Stake", "Proof of Authority", "Proof of History"},
		StartTime: now,
		EndTime:   now + int64(openFor/time.Second),
		IsActive:  true,
	}
}

func revealedQuestion(q *quiz.Question) *quiz.Question {
	revealed := *q
	revealed.IsActive = false
	revealed.IsRevealed = true
	return &revealed
}

func answered(questionID uint64, index int) *quiz.UserAnswer {
	return &quiz.UserAnswer{
		QuestionID:  questionID,
		AnswerIndex: index,
		HasAnswered: true,
	}
}

func TestMachine_OpenThenSubmittedOnPoll(t *testing.T) {
	m, clock := newTestMachine(t)
	q := openQuestion(7, clock, 30*time.Second)

	require.True(t, m.Apply(quiz.Snapshot{Seq: 1, Question: q}))
	assert.Equal(t, PhaseOpen, m.View().Phase)

	// Selecting stages intent only; the phase must not move.
	require.NoError(t, m.SelectOption(2))
	view := m.View()
	assert.Equal(t, PhaseOpen, view.Phase)
	assert.Equal(t, 2, view.Selected)

	questionID, optionIndex, err := m.BeginSubmit()
	require.NoError(t, err)
	assert.Equal(t, uint64(7), questionID)
	assert.Equal(t, 2, optionIndex)

	// Still Open: only an observed hasAnswered=true moves the phase.
	assert.Equal(t, PhaseOpen, m.View().Phase)

	require.True(t, m.Apply(quiz.Snapshot{Seq: 2, Question: q, Answer: answered(7, 2)}))
	view = m.View()
	assert.Equal(t, PhaseSubmitted, view.Phase)
	assert.Equal(t, 2, view.Selected)
}

func TestMachine_RevealSplitsOnEligibility(t *testing.T) {
	tests := []struct {
		name    string
		correct bool
		claimed bool
		want    Phase
	}{
		{"CorrectUnclaimed", true, false, PhaseRevealedClaimable},
		{"CorrectClaimed", true, true, PhaseRevealedClaimed},
		{"Incorrect", false, false, PhaseRevealedIneligible},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, clock := newTestMachine(t)
			q := openQuestion(7, clock, 30*time.Second)
			require.True(t, m.Apply(quiz.Snapshot{Seq: 1, Question: q, Answer: answered(7, 1)}))
			require.Equal(t, PhaseSubmitted, m.View().Phase)

			ans := answered(7, 1)
			ans.IsCorrect = tt.correct
			ans.Claimed = tt.claimed
			require.True(t, m.Apply(quiz.Snapshot{Seq: 2, Question: revealedQuestion(q), Answer: ans}))
			assert.Equal(t, tt.want, m.View().Phase)
		})
	}
}

func TestMachine_ClaimReflectedFromOtherSession(t *testing.T) {
	m, clock := newTestMachine(t)
	q := openQuestion(7, clock, 30*time.Second)
	ans := answered(7, 1)
	ans.IsCorrect = true

	require.True(t, m.Apply(quiz.Snapshot{Seq: 1, Question: revealedQuestion(q), Answer: ans}))
	require.Equal(t, PhaseRevealedClaimable, m.View().Phase)

	questionID, err := m.BeginClaim()
	require.NoError(t, err)
	assert.Equal(t, uint64(7), questionID)

	// A claim made elsewhere lands with the next poll; eligibility is never
	// cached across snapshots.
	claimedAns := *ans
	claimedAns.Claimed = true
	require.True(t, m.Apply(quiz.Snapshot{Seq: 2, Question: revealedQuestion(q), Answer: &claimedAns}))
	assert.Equal(t, PhaseRevealedClaimed, m.View().Phase)

	_, err = m.BeginClaim()
	assert.ErrorIs(t, err, ErrPrecondition)
}

func TestMachine_CountdownZeroBlocksSelection(t *testing.T) {
	m, clock := newTestMachine(t)
	q := openQuestion(7, clock, 30*time.Second)
	require.True(t, m.Apply(quiz.Snapshot{Seq: 1, Question: q}))

	clock.Advance(31 * time.Second)

	// The cached active flag is stale past the deadline; selection must be
	// rejected locally without waiting for the source.
	err := m.SelectOption(1)
	assert.ErrorIs(t, err, ErrPrecondition)

	_, _, err = m.BeginSubmit()
	assert.ErrorIs(t, err, ErrPrecondition)

	// The phase does not auto-advance; only the next poll decides.
	assert.Equal(t, PhaseOpen, m.View().Phase)
	assert.Equal(t, int64(0), m.View().RemainingSec)
}

func TestMachine_UnavailableDistinctFromNoQuestion(t *testing.T) {
	m, _ := newTestMachine(t)

	require.True(t, m.Apply(quiz.Snapshot{Seq: 1, Unavailable: true}))
	assert.Equal(t, PhaseUnavailable, m.View().Phase)

	require.True(t, m.Apply(quiz.Snapshot{Seq: 2}))
	assert.Equal(t, PhaseNoQuestion, m.View().Phase)
}

func TestMachine_OutageDoesNotRevertSubmission(t *testing.T) {
	m, clock := newTestMachine(t)
	q := openQuestion(7, clock, 30*time.Second)
	require.True(t, m.Apply(quiz.Snapshot{Seq: 1, Question: q, Answer: answered(7, 2)}))
	require.Equal(t, PhaseSubmitted, m.View().Phase)

	require.True(t, m.Apply(quiz.Snapshot{Seq: 2, Unavailable: true}))
	assert.Equal(t, PhaseUnavailable, m.View().Phase)

	// The source recovers with the same question but the viewer-answer read
	// failed mid-poll; the observed submission must survive the gap.
	require.True(t, m.Apply(quiz.Snapshot{Seq: 3, Question: q}))
	view := m.View()
	assert.Equal(t, PhaseSubmitted, view.Phase)
	require.NotNil(t, view.Answer)
	assert.Equal(t, 2, view.Answer.AnswerIndex)

	assert.ErrorIs(t, m.SelectOption(1), ErrPrecondition)
	_, _, err := m.BeginSubmit()
	assert.ErrorIs(t, err, ErrPrecondition)
}

func TestMachine_StaleSnapshotDiscarded(t *testing.T) {
	m, clock := newTestMachine(t)
	q := openQuestion(7, clock, 30*time.Second)

	require.True(t, m.Apply(quiz.Snapshot{Seq: 5, Question: q, Answer: answered(7, 3)}))
	require.Equal(t, PhaseSubmitted, m.View().Phase)

	// A response issued earlier arrives late; it must not downgrade
	// Submitted back to Open.
	assert.False(t, m.Apply(quiz.Snapshot{Seq: 4, Question: q}))
	assert.Equal(t, PhaseSubmitted, m.View().Phase)
}

func TestMachine_ReapplyIsNoChange(t *testing.T) {
	m, clock := newTestMachine(t)
	q := openQuestion(7, clock, 30*time.Second)

	require.True(t, m.Apply(quiz.Snapshot{Seq: 1, Question: q}))

	// Same sequence: stale, discarded.
	assert.False(t, m.Apply(quiz.Snapshot{Seq: 1, Question: q}))

	// Newer sequence with identical content: applied but nothing changed.
	assert.False(t, m.Apply(quiz.Snapshot{Seq: 2, Question: q}))
	assert.Equal(t, PhaseOpen, m.View().Phase)
}

func TestMachine_NewQuestionSupersedesOld(t *testing.T) {
	m, clock := newTestMachine(t)
	q7 := openQuestion(7, clock, 30*time.Second)
	require.True(t, m.Apply(quiz.Snapshot{Seq: 1, Question: q7, Answer: answered(7, 0)}))
	require.Equal(t, PhaseSubmitted, m.View().Phase)

	q8 := openQuestion(8, clock, 30*time.Second)
	require.True(t, m.Apply(quiz.Snapshot{Seq: 2, Question: q8}))

	view := m.View()
	assert.Equal(t, PhaseOpen, view.Phase)
	assert.Equal(t, NoSelection, view.Selected)
	assert.Nil(t, view.Answer)

	// No action can target question 7 anymore.
	_, err := m.BeginClaim()
	assert.ErrorIs(t, err, ErrPrecondition)
	require.NoError(t, m.SelectOption(1))
	questionID, _, err := m.BeginSubmit()
	require.NoError(t, err)
	assert.Equal(t, uint64(8), questionID)
}

func TestMachine_HasAnsweredNeverReverts(t *testing.T) {
	m, clock := newTestMachine(t)
	q := openQuestion(7, clock, 30*time.Second)
	require.True(t, m.Apply(quiz.Snapshot{Seq: 1, Question: q, Answer: answered(7, 2)}))
	require.Equal(t, PhaseSubmitted, m.View().Phase)

	// A newer snapshot pairing the same question with a blank answer (e.g.
	// the answer read failed mid-poll) must not reopen the question.
	assert.False(t, m.Apply(quiz.Snapshot{Seq: 2, Question: q}))
	view := m.View()
	assert.Equal(t, PhaseSubmitted, view.Phase)
	require.NotNil(t, view.Answer)
	assert.Equal(t, 2, view.Answer.AnswerIndex)
}

func TestMachine_RevealWithoutAnswerIsNoQuestion(t *testing.T) {
	m, clock := newTestMachine(t)
	q := openQuestion(7, clock, 30*time.Second)
	require.True(t, m.Apply(quiz.Snapshot{Seq: 1, Question: q}))

	require.True(t, m.Apply(quiz.Snapshot{Seq: 2, Question: revealedQuestion(q)}))
	assert.Equal(t, PhaseNoQuestion, m.View().Phase)
}

func TestMachine_SelectOptionValidation(t *testing.T) {
	m, clock := newTestMachine(t)

	// Nothing open yet.
	assert.ErrorIs(t, m.SelectOption(0), ErrPrecondition)

	q := openQuestion(7, clock, 30*time.Second)
	require.True(t, m.Apply(quiz.Snapshot{Seq: 1, Question: q}))

	assert.ErrorIs(t, m.SelectOption(-1), ErrPrecondition)
	assert.ErrorIs(t, m.SelectOption(4), ErrPrecondition)
	assert.NoError(t, m.SelectOption(3))

	// Submitted questions cannot be re-answered.
	require.True(t, m.Apply(quiz.Snapshot{Seq: 2, Question: q, Answer: answered(7, 3)}))
	assert.ErrorIs(t, m.SelectOption(1), ErrPrecondition)
}

func TestMachine_BeginSubmitRequiresSelection(t *testing.T) {
	m, clock := newTestMachine(t)
	q := openQuestion(7, clock, 30*time.Second)
	require.True(t, m.Apply(quiz.Snapshot{Seq: 1, Question: q}))

	_, _, err := m.BeginSubmit()
	assert.ErrorIs(t, err, ErrPrecondition)
}

func TestMachine_RemainingTracksClock(t *testing.T) {
	m, clock := newTestMachine(t)
	q := openQuestion(7, clock, 30*time.Second)
	require.True(t, m.Apply(quiz.Snapshot{Seq: 1, Question: q}))

	assert.Equal(t, int64(30), m.View().RemainingSec)
	clock.Advance(12 * time.Second)
	assert.Equal(t, int64(18), m.View().RemainingSec)

	deadline, ok := m.Deadline()
	require.True(t, ok)
	assert.Equal(t, q.EndTime, deadline.Unix())
}

func TestMachine_AggregatesRetainedAcrossSnapshots(t *testing.T) {
	m, clock := newTestMachine(t)
	q := openQuestion(7, clock, 30*time.Second)
	stats := &quiz.PlayerStats{TotalAnswered: 10, CorrectAnswers: 8, TotalEarned: "0"}

	require.True(t, m.Apply(quiz.Snapshot{Seq: 1, Question: q, Stats: stats}))
	// The next poll's aggregate reads failed; the last observed aggregates
	// remain visible.
	m.Apply(quiz.Snapshot{Seq: 2, Question: q})
	require.NotNil(t, m.View().Stats)
	assert.Equal(t, uint64(10), m.View().Stats.TotalAnswered)
}
