package quiz

import (
	"time"
)

// Question is one round of the quiz as reported by the contract. The chain
// owns it; the client never mutates a question, it only re-fetches.
type Question struct {
	ID                uint64   `json:"id"`
	Text              string   `json:"text"`
	Options           []string `json:"options"`
	StartTime         int64    `json:"start_time"` // epoch seconds
	EndTime           int64    `json:"end_time"`   // epoch seconds
	IsActive          bool     `json:"is_active"`
	IsRevealed        bool     `json:"is_revealed"`
	TotalParticipants uint64   `json:"total_participants"`
}

// Deadline returns the question's end time as wall-clock time.
func (q *Question) Deadline() time.Time {
	return time.Unix(q.EndTime, 0)
}

// DisplayNumber is the 1-based number shown to players (chain ids start at 0).
func (q *Question) DisplayNumber() uint64 {
	return q.ID + 1
}

// UserAnswer is the viewer's recorded answer for one question, keyed on chain
// by (questionID, address). IsCorrect is only meaningful once the parent
// question is revealed.
type UserAnswer struct {
	QuestionID  uint64 `json:"question_id"`
	AnswerIndex int    `json:"answer_index"`
	HasAnswered bool   `json:"has_answered"`
	IsCorrect   bool   `json:"is_correct"`
	Claimed     bool   `json:"claimed"`
}

// PlayerStats is the contract-side aggregate for one player. The client only
// formats these; it never derives them locally.
type PlayerStats struct {
	TotalAnswered  uint64 `json:"total_answered"`
	CorrectAnswers uint64 `json:"correct_answers"`
	TotalEarned    string `json:"total_earned"` // base units, decimal string (uint256)
	CurrentStreak  uint64 `json:"current_streak"`
	BestStreak     uint64 `json:"best_streak"`
}

// LeaderboardEntry pairs a player address with its stats snapshot.
type LeaderboardEntry struct {
	Address string      `json:"address"`
	Stats   PlayerStats `json:"stats"`
}

// Snapshot is one completed poll of the authoritative source. Snapshots carry
// a sequence number assigned when the poll was issued; the lifecycle discards
// any snapshot older than the last one applied, so an in-flight response can
// never move state backward.
type Snapshot struct {
	Seq         uint64             `json:"seq"`
	Unavailable bool               `json:"unavailable"` // source unreachable or not deployed
	Question    *Question          `json:"question,omitempty"`
	Answer      *UserAnswer        `json:"answer,omitempty"` // viewer's answer for Question.ID
	AutoMode    bool               `json:"auto_mode"`
	NextIn      int64              `json:"next_in"` // seconds until next question, automation only
	Stats       *PlayerStats       `json:"stats,omitempty"`
	Leaderboard []LeaderboardEntry `json:"leaderboard,omitempty"`
	ObservedAt  time.Time          `json:"observed_at"`
}
