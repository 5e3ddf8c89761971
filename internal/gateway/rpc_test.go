package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// rpcFixture serves canned JSON-RPC results keyed by method name.
type rpcFixture struct {
	results map[string]any
	errors  map[string]*rpcError
	calls   []rpcRequest
}

func newRPCFixture() *rpcFixture {
	return &rpcFixture{
		results: make(map[string]any),
		errors:  make(map[string]*rpcError),
	}
}

func (f *rpcFixture) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		f.calls = append(f.calls, req)

		resp := rpcResponse{JSONRPC: "2.0", ID: req.ID}
		if rpcErr, ok := f.errors[req.Method]; ok {
			resp.Error = rpcErr
		} else {
			result, ok := f.results[req.Method]
			require.True(t, ok, "unexpected method %s", req.Method)
			data, err := json.Marshal(result)
			require.NoError(t, err)
			resp.Result = data
		}
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}
}

func newTestClient(t *testing.T, fixture *rpcFixture) *RPCClient {
	t.Helper()
	server := httptest.NewServer(fixture.handler(t))
	t.Cleanup(server.Close)
	return NewRPCClient(server.URL, "0xcontract", "0xplayer")
}

func TestRPCClient_GetCurrentQuestion(t *testing.T) {
	fixture := newRPCFixture()
	// Providers serialize uint256 values as strings or numbers; both decode.
	fixture.results[methodGetCurrentQuestion] = map[string]any{
		"id":                "7",
		"question":          "What is the native token of zkSync?",
		"options":           []string{"ETH", "ZK", "MATIC", "BNB"},
		"startTime":         1_700_000_000,
		"endTime":           "1700000030",
		"isActive":          true,
		"isRevealed":        false,
		"totalParticipants": 42,
	}
	client := newTestClient(t, fixture)

	question, err := client.GetCurrentQuestion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(7), question.ID)
	assert.Equal(t, "What is the native token of zkSync?", question.Text)
	assert.Len(t, question.Options, 4)
	assert.Equal(t, int64(1_700_000_000), question.StartTime)
	assert.Equal(t, int64(1_700_000_030), question.EndTime)
	assert.True(t, question.IsActive)
	assert.False(t, question.IsRevealed)
	assert.Equal(t, uint64(42), question.TotalParticipants)
	assert.Equal(t, uint64(8), question.DisplayNumber())
}

func TestRPCClient_GetUserAnswer(t *testing.T) {
	fixture := newRPCFixture()
	fixture.results[methodGetUserAnswer] = map[string]any{
		"answerIndex": 2,
		"hasAnswered": true,
		"isCorrect":   true,
		"claimed":     false,
	}
	client := newTestClient(t, fixture)

	answer, err := client.GetUserAnswer(context.Background(), 7, "0xplayer")
	require.NoError(t, err)
	assert.Equal(t, uint64(7), answer.QuestionID)
	assert.Equal(t, 2, answer.AnswerIndex)
	assert.True(t, answer.HasAnswered)
	assert.True(t, answer.IsCorrect)
	assert.False(t, answer.Claimed)
}

func TestRPCClient_GetPlayerStatsToleratesBothTupleNamings(t *testing.T) {
	t.Run("ContractNaming", func(t *testing.T) {
		fixture := newRPCFixture()
		fixture.results[methodGetPlayerStats] = map[string]any{
			"totalAnswered":  10,
			"correctAnswers": 8,
			"totalEarned":    "80000000000000000000",
			"currentStreak":  3,
			"bestStreak":     5,
		}
		client := newTestClient(t, fixture)

		stats, err := client.GetPlayerStats(context.Background(), "0xplayer")
		require.NoError(t, err)
		assert.Equal(t, uint64(10), stats.TotalAnswered)
		assert.Equal(t, "80000000000000000000", stats.TotalEarned)
	})

	t.Run("FrontendNaming", func(t *testing.T) {
		fixture := newRPCFixture()
		fixture.results[methodGetPlayerStats] = map[string]any{
			"totalQuestions": "10",
			"correctAnswers": 8,
			"totalRewards":   "80000000000000000000",
			"currentStreak":  3,
			"bestStreak":     5,
		}
		client := newTestClient(t, fixture)

		stats, err := client.GetPlayerStats(context.Background(), "0xplayer")
		require.NoError(t, err)
		assert.Equal(t, uint64(10), stats.TotalAnswered)
		assert.Equal(t, "80000000000000000000", stats.TotalEarned)
	})
}

func TestRPCClient_GetLeaderboardFetchesStatsPerAddress(t *testing.T) {
	fixture := newRPCFixture()
	fixture.results[methodGetLeaderboard] = []string{"0xaaa", "0xbbb"}
	fixture.results[methodGetPlayerStats] = map[string]any{
		"totalAnswered":  4,
		"correctAnswers": 4,
		"totalEarned":    "40000000000000000000",
		"currentStreak":  4,
		"bestStreak":     4,
	}
	client := newTestClient(t, fixture)

	entries, err := client.GetLeaderboard(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "0xaaa", entries[0].Address)
	assert.Equal(t, uint64(4), entries[0].Stats.CorrectAnswers)
}

func TestRPCClient_IsDeployed(t *testing.T) {
	t.Run("NoCode", func(t *testing.T) {
		fixture := newRPCFixture()
		fixture.results[methodGetCode] = "0x"
		client := newTestClient(t, fixture)

		deployed, err := client.IsDeployed(context.Background())
		require.NoError(t, err)
		assert.False(t, deployed)
	})

	t.Run("Deployed", func(t *testing.T) {
		fixture := newRPCFixture()
		fixture.results[methodGetCode] = "0x6080604052"
		client := newTestClient(t, fixture)

		deployed, err := client.IsDeployed(context.Background())
		require.NoError(t, err)
		assert.True(t, deployed)
	})
}

func TestRPCClient_ExecutionErrorMapsToSourceUnavailable(t *testing.T) {
	fixture := newRPCFixture()
	fixture.errors[methodGetCurrentQuestion] = &rpcError{
		Code:    codeExecutionError,
		Message: "no contract code at given address",
	}
	client := newTestClient(t, fixture)

	_, err := client.GetCurrentQuestion(context.Background())
	assert.ErrorIs(t, err, ErrSourceUnavailable)
}

func TestRPCClient_TransportFailureMapsToSourceUnavailable(t *testing.T) {
	fixture := newRPCFixture()
	server := httptest.NewServer(fixture.handler(t))
	client := NewRPCClient(server.URL, "0xcontract", "0xplayer")
	server.Close()

	_, err := client.GetCurrentQuestion(context.Background())
	assert.ErrorIs(t, err, ErrSourceUnavailable)
}

func TestRPCClient_WriteRejection(t *testing.T) {
	fixture := newRPCFixture()
	fixture.errors[methodSubmitAnswer] = &rpcError{
		Code:    codeUserRejected,
		Message: "user rejected the request",
	}
	client := newTestClient(t, fixture)

	_, err := client.SubmitAnswer(context.Background(), 7, 2)
	assert.ErrorIs(t, err, ErrWriteRejected)
}

func TestRPCClient_WriteReturnsReceipt(t *testing.T) {
	fixture := newRPCFixture()
	fixture.results[methodSubmitAnswer] = "0xdeadbeef"
	client := newTestClient(t, fixture)

	receipt, err := client.SubmitAnswer(context.Background(), 7, 2)
	require.NoError(t, err)
	assert.Equal(t, "0xdeadbeef", receipt.TxHash)

	// Params carry contract, sender and the (questionId, optionIndex) pair.
	require.Len(t, fixture.calls, 1)
	assert.Equal(t, methodSubmitAnswer, fixture.calls[0].Method)
	require.Len(t, fixture.calls[0].Params, 4)
}
