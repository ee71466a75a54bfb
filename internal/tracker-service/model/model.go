package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Sport é o código do esporte informado na aposta
type Sport string

const (
	SportNCAAB Sport = "NCAAB"
	SportNCAAF Sport = "NCAAF"
	SportNFL   Sport = "NFL"
	SportNBA   Sport = "NBA"
	SportMLB   Sport = "MLB"
)

// Sports lista os códigos aceitos no formulário, na ordem de exibição
var Sports = []Sport{SportNCAAB, SportNCAAF, SportNFL, SportNBA, SportMLB}

// TeamsSeparator separa os dois times em Wager.Teams ("Duke vs UNC")
const TeamsSeparator = " vs "

// Wager é uma aposta registrada no ledger.
// Status é derivado: guarda apenas o último label calculado.
type Wager struct {
	ID      string
	Sport   Sport
	Teams   string
	Pick    string
	Odds    int // americana, ex: -110; só exibição
	Stake   decimal.Decimal
	AddedAt time.Time
	Status  string
}

// TeamPair separa Teams em exatamente dois nomes não vazios.
// ok=false quando a aposta não pode ser correlacionada com um jogo.
func (w Wager) TeamPair() (team1, team2 string, ok bool) {
	parts := strings.Split(w.Teams, TeamsSeparator)
	if len(parts) != 2 {
		return "", "", false
	}
	team1, team2 = strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])
	if team1 == "" || team2 == "" {
		return "", "", false
	}
	return team1, team2, true
}

// LiveGame é uma leitura pontual do placar de um jogo. Nunca é persistido.
// A ordem dos lados é a da fonte (competitor 0 e 1), não a da aposta.
type LiveGame struct {
	TeamA      string `json:"team_a"`
	TeamB      string `json:"team_b"`
	ScoreA     int    `json:"score_a"`
	ScoreB     int    `json:"score_b"`
	StatusText string `json:"status"`
}

// ScoreLine formata o placar para exibição: "Duke Blue Devils 70 - UNC Tar Heels 60"
func (g LiveGame) ScoreLine() string {
	return fmt.Sprintf("%s %d - %s %d", g.TeamA, g.ScoreA, g.TeamB, g.ScoreB)
}
