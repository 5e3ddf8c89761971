package gateway

import (
	"context"
	"errors"

	"github.com/arafateasin/chainquiz/internal/quiz"
)

// ErrSourceUnavailable reports that the quiz contract is unreachable or not
// deployed at the configured address. This is a different condition from "no
// active question", which is a successful read.
var ErrSourceUnavailable = errors.New("quiz source unavailable")

// ErrWriteRejected reports that a write request failed: user rejection,
// reverted execution or a network error. The caller decides whether to retry;
// this layer never does.
var ErrWriteRejected = errors.New("write rejected")

// Receipt identifies a broadcast write request. A receipt is not confirmation;
// the effect of a write is only trusted once a later poll re-observes it.
type Receipt struct {
	TxHash string `json:"tx_hash"`
}

// Gateway is the narrow read/write surface of the deployed quiz contract.
// Reads are side-effect-free and may be polled on a fixed interval. Writes are
// independent round trips with an eventual pass/fail outcome and are never
// silently retried here.
type Gateway interface {
	// IsDeployed probes for contract code at the configured address.
	IsDeployed(ctx context.Context) (bool, error)

	GetCurrentQuestion(ctx context.Context) (*quiz.Question, error)
	GetUserAnswer(ctx context.Context, questionID uint64, address string) (*quiz.UserAnswer, error)
	IsAutomationEnabled(ctx context.Context) (bool, error)
	TimeUntilNextQuestion(ctx context.Context) (int64, error)
	GetPlayerStats(ctx context.Context, address string) (*quiz.PlayerStats, error)
	GetLeaderboard(ctx context.Context) ([]quiz.LeaderboardEntry, error)
	QuestionPoolSize(ctx context.Context) (uint64, error)

	SubmitAnswer(ctx context.Context, questionID uint64, optionIndex int) (Receipt, error)
	ClaimReward(ctx context.Context, questionID uint64) (Receipt, error)
	ToggleAutomation(ctx context.Context) (Receipt, error)
	AdvanceQuestion(ctx context.Context) (Receipt, error)
}
