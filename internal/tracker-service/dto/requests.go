package dto

import "github.com/shopspring/decimal"

type CreateWagerRequest struct {
	Sport string          `json:"sport"` // NCAAB | NCAAF | NFL | NBA | MLB
	Teams string          `json:"teams"` // "Duke vs UNC"
	Pick  string          `json:"pick"`  // "Duke -5.5"
	Odds  *int            `json:"odds"`  // americana; ausente = -110
	Stake decimal.Decimal `json:"stake"` // aceita 10, 10.5 ou "10.50"
}
