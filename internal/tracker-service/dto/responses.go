package dto

import (
	"time"

	"github.com/radieske/live-bet-tracker/internal/tracker-service/cache"
	"github.com/radieske/live-bet-tracker/internal/tracker-service/ledger"
	"github.com/radieske/live-bet-tracker/internal/tracker-service/model"
)

type WagerResponse struct {
	ID         string            `json:"id"`
	Position   int               `json:"position"`
	Sport      string            `json:"sport"`
	Teams      string            `json:"teams"`
	Pick       string            `json:"pick"`
	Odds       int               `json:"odds"`
	Stake      string            `json:"stake"`
	AddedAt    time.Time         `json:"added_at"`
	Status     string            `json:"status"`
	Evaluation *cache.Evaluation `json:"evaluation,omitempty"`
}

// NewWagerResponse monta a linha do ledger; stake sempre com 2 casas
func NewWagerResponse(pos int, w model.Wager) WagerResponse {
	return WagerResponse{
		ID:       w.ID,
		Position: pos,
		Sport:    string(w.Sport),
		Teams:    w.Teams,
		Pick:     w.Pick,
		Odds:     w.Odds,
		Stake:    w.Stake.StringFixed(2),
		AddedAt:  w.AddedAt,
		Status:   w.Status,
	}
}

type StatusResponse struct {
	WagerID    string            `json:"wager_id"`
	Label      string            `json:"label"`
	Evaluation *cache.Evaluation `json:"evaluation,omitempty"`
}

type EvaluationResponse struct {
	WagerID        string `json:"wager_id"`
	Teams          string `json:"teams"`
	Previous       string `json:"previous"`
	Label          string `json:"label"`
	Status         string `json:"status"`
	Symbol         string `json:"symbol"`
	WinProbability int    `json:"win_probability"`
	ScoreLine      string `json:"score_line,omitempty"`
	Warning        string `json:"warning,omitempty"`
	Changed        bool   `json:"changed"`
}

func NewEvaluationResponse(ev ledger.Evaluation) EvaluationResponse {
	out := EvaluationResponse{
		WagerID:        ev.Wager.ID,
		Teams:          ev.Wager.Teams,
		Previous:       ev.Previous,
		Label:          ev.Result.Label,
		Status:         string(ev.Result.Status),
		Symbol:         ev.Result.Symbol,
		WinProbability: ev.Result.WinProbability,
		Changed:        ev.Changed(),
	}
	if ev.Game != nil {
		out.ScoreLine = ev.Game.ScoreLine()
	}
	if ev.Warning != nil {
		out.Warning = ev.Warning.Error()
	}
	return out
}

type RefreshResponse struct {
	Evaluations []EvaluationResponse `json:"evaluations"`
	Error       string               `json:"error,omitempty"`
}

type SummaryResponse struct {
	Total      int    `json:"total"`
	TotalStake string `json:"total_stake"`
	Won        int    `json:"won"`
	Lost       int    `json:"lost"`
	Push       int    `json:"push"`
	Live       int    `json:"live"`
	Pending    int    `json:"pending"`
}

func NewSummaryResponse(s ledger.Summary) SummaryResponse {
	return SummaryResponse{
		Total:      s.Total,
		TotalStake: s.TotalStake.StringFixed(2),
		Won:        s.Won,
		Lost:       s.Lost,
		Push:       s.Push,
		Live:       s.Live,
		Pending:    s.Pending,
	}
}
