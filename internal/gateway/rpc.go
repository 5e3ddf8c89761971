package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/arafateasin/chainquiz/internal/quiz"
)

// Provider method names exposed by the RPC sidecar that wraps the contract.
// ABI encoding is the provider's concern; this client only speaks JSON.
const (
	methodGetCurrentQuestion    = "quiz_getCurrentQuestion"
	methodGetUserAnswer         = "quiz_getUserAnswer"
	methodIsAutoModeEnabled     = "quiz_isAutoModeEnabled"
	methodTimeUntilNextQuestion = "quiz_getTimeUntilNextQuestion"
	methodGetPlayerStats        = "quiz_getPlayerStats"
	methodGetLeaderboard        = "quiz_getLeaderboard"
	methodGetQuestionPool       = "quiz_getQuestionPool"
	methodSubmitAnswer          = "quiz_submitAnswer"
	methodClaimReward           = "quiz_claimReward"
	methodToggleAutoMode        = "quiz_toggleAutoMode"
	methodAdvanceQuestion       = "quiz_checkAndCreateNextQuestion"
	methodGetCode               = "eth_getCode"
)

// JSON-RPC error codes this client distinguishes.
const (
	codeUserRejected   = 4001   // wallet/user declined to sign
	codeExecutionError = -32000 // reverted or no contract code
)

// RPCClient talks JSON-RPC 2.0 over HTTP to the quiz provider. It holds no
// quiz state; every method is a single request/response round trip.
type RPCClient struct {
	endpoint string
	contract string
	from     string
	client   *http.Client
	nextID   atomic.Uint64
}

// NewRPCClient creates a gateway client for the given provider endpoint,
// deployed contract address and sender address. The sender address may be
// empty for read-only sessions.
func NewRPCClient(endpoint, contract, from string) *RPCClient {
	return &RPCClient{
		endpoint: endpoint,
		contract: contract,
		from:     from,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// SetTimeout overrides the HTTP timeout for all calls.
func (c *RPCClient) SetTimeout(timeout time.Duration) {
	c.client.Timeout = timeout
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      uint64          `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *rpcError       `json:"error"`
}

// call performs one JSON-RPC round trip and decodes the result into out.
// Transport failures map to ErrSourceUnavailable: an unreachable provider is
// indistinguishable from an unreachable contract for this client's purposes.
func (c *RPCClient) call(ctx context.Context, method string, params []any, out any) error {
	reqBody, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      c.nextID.Add(1),
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(reqBody))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: provider returned status %d", ErrSourceUnavailable, resp.StatusCode)
	}

	var rpcResp rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if rpcResp.Error != nil {
		if rpcResp.Error.Code == codeExecutionError {
			return fmt.Errorf("%w: %v", ErrSourceUnavailable, rpcResp.Error)
		}
		return rpcResp.Error
	}
	if out != nil {
		if err := json.Unmarshal(rpcResp.Result, out); err != nil {
			return fmt.Errorf("decode result: %w", err)
		}
	}
	return nil
}

// send performs a write call and maps any provider error to ErrWriteRejected.
func (c *RPCClient) send(ctx context.Context, method string, params []any) (Receipt, error) {
	var txHash string
	if err := c.call(ctx, method, params, &txHash); err != nil {
		log.Warn().Err(err).Str("method", method).Msg("write request failed")
		return Receipt{}, fmt.Errorf("%w: %v", ErrWriteRejected, err)
	}
	return Receipt{TxHash: txHash}, nil
}

func (c *RPCClient) IsDeployed(ctx context.Context) (bool, error) {
	var code string
	if err := c.call(ctx, methodGetCode, []any{c.contract, "latest"}, &code); err != nil {
		return false, err
	}
	return code != "" && code != "0x", nil
}

func (c *RPCClient) GetCurrentQuestion(ctx context.Context) (*quiz.Question, error) {
	var wire wireQuestion
	if err := c.call(ctx, methodGetCurrentQuestion, []any{c.contract}, &wire); err != nil {
		return nil, fmt.Errorf("get current question: %w", err)
	}
	return wire.toModel(), nil
}

func (c *RPCClient) GetUserAnswer(ctx context.Context, questionID uint64, address string) (*quiz.UserAnswer, error) {
	var wire wireUserAnswer
	if err := c.call(ctx, methodGetUserAnswer, []any{c.contract, questionID, address}, &wire); err != nil {
		return nil, fmt.Errorf("get user answer: %w", err)
	}
	return wire.toModel(questionID), nil
}

func (c *RPCClient) IsAutomationEnabled(ctx context.Context) (bool, error) {
	var enabled bool
	if err := c.call(ctx, methodIsAutoModeEnabled, []any{c.contract}, &enabled); err != nil {
		return false, fmt.Errorf("get auto mode: %w", err)
	}
	return enabled, nil
}

func (c *RPCClient) TimeUntilNextQuestion(ctx context.Context) (int64, error) {
	var secs flexUint
	if err := c.call(ctx, methodTimeUntilNextQuestion, []any{c.contract}, &secs); err != nil {
		return 0, fmt.Errorf("get time until next question: %w", err)
	}
	return int64(secs), nil
}

func (c *RPCClient) GetPlayerStats(ctx context.Context, address string) (*quiz.PlayerStats, error) {
	var wire wirePlayerStats
	if err := c.call(ctx, methodGetPlayerStats, []any{c.contract, address}, &wire); err != nil {
		return nil, fmt.Errorf("get player stats: %w", err)
	}
	return wire.toModel(), nil
}

func (c *RPCClient) GetLeaderboard(ctx context.Context) ([]quiz.LeaderboardEntry, error) {
	var addresses []string
	if err := c.call(ctx, methodGetLeaderboard, []any{c.contract}, &addresses); err != nil {
		return nil, fmt.Errorf("get leaderboard: %w", err)
	}

	entries := make([]quiz.LeaderboardEntry, 0, len(addresses))
	for _, addr := range addresses {
		stats, err := c.GetPlayerStats(ctx, addr)
		if err != nil {
			return nil, fmt.Errorf("leaderboard stats for %s: %w", addr, err)
		}
		entries = append(entries, quiz.LeaderboardEntry{Address: addr, Stats: *stats})
	}
	return entries, nil
}

func (c *RPCClient) QuestionPoolSize(ctx context.Context) (uint64, error) {
	var size flexUint
	if err := c.call(ctx, methodGetQuestionPool, []any{c.contract}, &size); err != nil {
		return 0, fmt.Errorf("get question pool: %w", err)
	}
	return uint64(size), nil
}

func (c *RPCClient) SubmitAnswer(ctx context.Context, questionID uint64, optionIndex int) (Receipt, error) {
	return c.send(ctx, methodSubmitAnswer, []any{c.contract, c.from, questionID, optionIndex})
}

func (c *RPCClient) ClaimReward(ctx context.Context, questionID uint64) (Receipt, error) {
	return c.send(ctx, methodClaimReward, []any{c.contract, c.from, questionID})
}

func (c *RPCClient) ToggleAutomation(ctx context.Context) (Receipt, error) {
	return c.send(ctx, methodToggleAutoMode, []any{c.contract, c.from})
}

func (c *RPCClient) AdvanceQuestion(ctx context.Context) (Receipt, error) {
	return c.send(ctx, methodAdvanceQuestion, []any{c.contract, c.from})
}

// flexUint decodes an unsigned integer that providers serialize either as a
// JSON number or as a decimal string (uint256 results routinely exceed the
// range providers are willing to emit as numbers).
type flexUint uint64

func (u *flexUint) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		v, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			return fmt.Errorf("parse uint %q: %w", s, err)
		}
		*u = flexUint(v)
		return nil
	}
	var v uint64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*u = flexUint(v)
	return nil
}

type wireQuestion struct {
	ID                flexUint `json:"id"`
	Question          string   `json:"question"`
	Options           []string `json:"options"`
	StartTime         flexUint `json:"startTime"`
	EndTime           flexUint `json:"endTime"`
	IsActive          bool     `json:"isActive"`
	IsRevealed        bool     `json:"isRevealed"`
	TotalParticipants flexUint `json:"totalParticipants"`
}

func (w *wireQuestion) toModel() *quiz.Question {
	return &quiz.Question{
		ID:                uint64(w.ID),
		Text:              w.Question,
		Options:           w.Options,
		StartTime:         int64(w.StartTime),
		EndTime:           int64(w.EndTime),
		IsActive:          w.IsActive,
		IsRevealed:        w.IsRevealed,
		TotalParticipants: uint64(w.TotalParticipants),
	}
}

type wireUserAnswer struct {
	AnswerIndex flexUint `json:"answerIndex"`
	HasAnswered bool     `json:"hasAnswered"`
	IsCorrect   bool     `json:"isCorrect"`
	Claimed     bool     `json:"claimed"`
}

func (w *wireUserAnswer) toModel(questionID uint64) *quiz.UserAnswer {
	return &quiz.UserAnswer{
		QuestionID:  questionID,
		AnswerIndex: int(w.AnswerIndex),
		HasAnswered: w.HasAnswered,
		IsCorrect:   w.IsCorrect,
		Claimed:     w.Claimed,
	}
}

// wirePlayerStats tolerates both tuple namings seen in the wild for
// getPlayerStats: totalAnswered/totalEarned and totalQuestions/totalRewards.
type wirePlayerStats struct {
	TotalAnswered  *flexUint `json:"totalAnswered"`
	TotalQuestions *flexUint `json:"totalQuestions"`
	CorrectAnswers flexUint  `json:"correctAnswers"`
	TotalEarned    *string   `json:"totalEarned"`
	TotalRewards   *string   `json:"totalRewards"`
	CurrentStreak  flexUint  `json:"currentStreak"`
	BestStreak     flexUint  `json:"bestStreak"`
}

func (w *wirePlayerStats) toModel() *quiz.PlayerStats {
	stats := &quiz.PlayerStats{
		CorrectAnswers: uint64(w.CorrectAnswers),
		CurrentStreak:  uint64(w.CurrentStreak),
		BestStreak:     uint64(w.BestStreak),
		TotalEarned:    "0",
	}
	if w.TotalAnswered != nil {
		stats.TotalAnswered = uint64(*w.TotalAnswered)
	} else if w.TotalQuestions != nil {
		stats.TotalAnswered = uint64(*w.TotalQuestions)
	}
	if w.TotalEarned != nil {
		stats.TotalEarned = *w.TotalEarned
	} else if w.TotalRewards != nil {
		stats.TotalEarned = *w.TotalRewards
	}
	return stats
}
