// Package bridge serves the local quiz projection to UI clients: state and
// countdown pushes over WebSocket plus a small REST surface for reads and
// write actions. It is a consumer of the lifecycle machine; it never mutates
// quiz state directly.
package bridge

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/arafateasin/chainquiz/internal/gateway"
	"github.com/arafateasin/chainquiz/internal/lifecycle"
	"github.com/arafateasin/chainquiz/internal/quiz"
)

// Service wires the connection manager, the lifecycle machine and the
// contract gateway behind HTTP routes.
type Service struct {
	connectionManager *ConnectionManager
	machine           *lifecycle.Machine
	gw                gateway.Gateway
	player            string
}

// NewService creates the bridge service. player is the ambient wallet
// address; when empty, write routes respond 403 so a session-less viewer
// still gets reads and pushes.
func NewService(config ConnectionConfig, machine *lifecycle.Machine, gw gateway.Gateway, player string) *Service {
	return &Service{
		connectionManager: NewConnectionManager(config),
		machine:           machine,
		gw:                gw,
		player:            player,
	}
}

// Start runs the broadcast loop until the context is cancelled.
func (s *Service) Start(ctx context.Context) {
	s.connectionManager.Start(ctx)
}

// BroadcastView pushes a quiz_state event to all UI clients.
func (s *Service) BroadcastView(view lifecycle.View) {
	event, err := NewStateEvent(view)
	if err != nil {
		log.Error().Err(err).Msg("failed to build state event")
		return
	}
	s.connectionManager.Broadcast(event)
}

// BroadcastTick pushes a countdown_tick event to all UI clients.
func (s *Service) BroadcastTick(remaining int64) {
	event, err := NewTickEvent(TickPayload{
		RemainingSec: remaining,
		Display:      quiz.FormatClock(remaining),
	})
	if err != nil {
		log.Error().Err(err).Msg("failed to build tick event")
		return
	}
	s.connectionManager.Broadcast(event)
}

// ConnectionCount reports connected UI clients.
func (s *Service) ConnectionCount() int {
	return s.connectionManager.ConnectionCount()
}

// RegisterRoutes mounts the bridge's WebSocket and REST routes.
func (s *Service) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/api/quiz/state", s.handleState)
	mux.HandleFunc("/api/quiz/stats", s.handleStats)
	mux.HandleFunc("/api/quiz/leaderboard", s.handleLeaderboard)
	mux.HandleFunc("/api/quiz/select", s.handleSelect)
	mux.HandleFunc("/api/quiz/submit", s.handleSubmit)
	mux.HandleFunc("/api/quiz/claim", s.handleClaim)
	mux.HandleFunc("/api/quiz/automation/toggle", s.handleToggleAutomation)
	mux.HandleFunc("/api/quiz/advance", s.handleAdvance)
	log.Info().Msg("bridge routes registered")
}

func (s *Service) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if err := s.connectionManager.UpgradeConnection(w, r); err != nil {
		http.Error(w, "failed to establish connection", http.StatusInternalServerError)
	}
}

func (s *Service) handleState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, s.machine.View())
}

func (s *Service) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	view := s.machine.View()
	if view.Stats == nil {
		writeError(w, http.StatusNotFound, "no stats observed yet")
		return
	}
	stats := view.Stats
	writeJSON(w, http.StatusOK, map[string]any{
		"address":         s.player,
		"total_answered":  stats.TotalAnswered,
		"correct_answers": stats.CorrectAnswers,
		"accuracy":        stats.Accuracy(),
		"performance":     quiz.PerformanceLevel(stats.Accuracy()),
		"rewards":         quiz.FormatRewards(stats.TotalEarned),
		"rewards_base":    stats.TotalEarned,
		"current_streak":  stats.CurrentStreak,
		"best_streak":     stats.BestStreak,
	})
}

func (s *Service) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	view := s.machine.View()

	type row struct {
		Rank     int    `json:"rank"`
		Address  string `json:"address"`
		Display  string `json:"display"`
		Rewards  string `json:"rewards"`
		Correct  uint64 `json:"correct_answers"`
		Accuracy int    `json:"accuracy"`
	}
	rows := make([]row, 0, len(view.Leaderboard))
	for i, entry := range view.Leaderboard {
		rows = append(rows, row{
			Rank:     i + 1,
			Address:  entry.Address,
			Display:  quiz.FormatAddress(entry.Address),
			Rewards:  quiz.FormatRewards(entry.Stats.TotalEarned),
			Correct:  entry.Stats.CorrectAnswers,
			Accuracy: entry.Stats.Accuracy(),
		})
	}
	writeJSON(w, http.StatusOK, rows)
}

type selectRequest struct {
	OptionIndex int `json:"option_index"`
}

func (s *Service) handleSelect(w http.ResponseWriter, r *http.Request) {
	if !s.requireWrite(w, r) {
		return
	}

	var req selectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.machine.SelectOption(req.OptionIndex); err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s.machine.View())
}

func (s *Service) handleSubmit(w http.ResponseWriter, r *http.Request) {
	if !s.requireWrite(w, r) {
		return
	}

	questionID, optionIndex, err := s.machine.BeginSubmit()
	if err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}

	receipt, err := s.gw.SubmitAnswer(r.Context(), questionID, optionIndex)
	if err != nil {
		// No optimistic commit: the machine is unchanged, the UI may retry,
		// and the next poll reports whatever actually happened on-chain.
		log.Warn().Err(err).Uint64("question_id", questionID).Msg("submit answer failed")
		writeError(w, http.StatusBadGateway, "submit rejected")
		return
	}

	log.Info().
		Uint64("question_id", questionID).
		Int("option_index", optionIndex).
		Str("tx_hash", receipt.TxHash).
		Msg("answer submitted")
	writeJSON(w, http.StatusAccepted, receipt)
}

func (s *Service) handleClaim(w http.ResponseWriter, r *http.Request) {
	if !s.requireWrite(w, r) {
		return
	}

	questionID, err := s.machine.BeginClaim()
	if err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}

	receipt, err := s.gw.ClaimReward(r.Context(), questionID)
	if err != nil {
		log.Warn().Err(err).Uint64("question_id", questionID).Msg("claim reward failed")
		writeError(w, http.StatusBadGateway, "claim rejected")
		return
	}

	log.Info().Uint64("question_id", questionID).Str("tx_hash", receipt.TxHash).Msg("reward claimed")
	writeJSON(w, http.StatusAccepted, receipt)
}

func (s *Service) handleToggleAutomation(w http.ResponseWriter, r *http.Request) {
	if !s.requireWrite(w, r) {
		return
	}

	receipt, err := s.gw.ToggleAutomation(r.Context())
	if err != nil {
		log.Warn().Err(err).Msg("toggle automation failed")
		writeError(w, http.StatusBadGateway, "toggle rejected")
		return
	}
	writeJSON(w, http.StatusAccepted, receipt)
}

func (s *Service) handleAdvance(w http.ResponseWriter, r *http.Request) {
	if !s.requireWrite(w, r) {
		return
	}

	receipt, err := s.gw.AdvanceQuestion(r.Context())
	if err != nil {
		log.Warn().Err(err).Msg("advance question failed")
		writeError(w, http.StatusBadGateway, "advance rejected")
		return
	}
	writeJSON(w, http.StatusAccepted, receipt)
}

// requireWrite gates write routes on method and wallet session presence.
func (s *Service) requireWrite(w http.ResponseWriter, r *http.Request) bool {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return false
	}
	if s.player == "" {
		writeError(w, http.StatusForbidden, "no wallet session")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
