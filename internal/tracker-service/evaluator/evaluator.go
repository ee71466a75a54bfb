package evaluator

import (
	"fmt"
	"math"
	"strings"

	"github.com/radieske/live-bet-tracker/internal/tracker-service/model"
	"github.com/radieske/live-bet-tracker/internal/tracker-service/pick"
)

// Status é a classificação de uma aposta em um passe de avaliação
type Status string

const (
	StatusPending Status = "PENDING"
	StatusLive    Status = "LIVE"
	StatusWon     Status = "WON"
	StatusLost    Status = "LOST"
	StatusPush    Status = "PUSH"
)

// Symbol retorna o emoji exibido junto ao status
func (s Status) Symbol() string {
	switch s {
	case StatusLive:
		return "🔄"
	case StatusWon:
		return "✅"
	case StatusLost:
		return "❌"
	case StatusPush:
		return "🟡"
	default:
		return "⏳"
	}
}

// Terminal indica WON, LOST ou PUSH
func (s Status) Terminal() bool {
	return s == StatusWon || s == StatusLost || s == StatusPush
}

const (
	LabelPending    = "⏳ Pending"
	LabelWon        = "✅ Won"
	LabelLost       = "❌ Lost"
	LabelPush       = "🟡 Push"
	LabelUnresolved = "⚠️ Unresolved pick"
)

// Result é o que a camada de exibição renderiza para cada aposta
type Result struct {
	Label          string `json:"label"`
	Status         Status `json:"status"`
	Symbol         string `json:"symbol"`
	WinProbability int    `json:"win_probability"`
}

func newResult(label string, s Status, prob int) Result {
	return Result{Label: label, Status: s, Symbol: s.Symbol(), WinProbability: prob}
}

// Pending é o resultado de uma aposta sem jogo correlacionado
func Pending() Result { return newResult(LabelPending, StatusPending, 0) }

// Evaluator classifica apostas a partir do placar.
// Strict=false mantém o comportamento histórico: token que não casa com o lado A
// é tratado como lado B. Strict=true devolve "Unresolved pick" (PENDING) quando o
// token não casa com nenhum dos dois lados.
type Evaluator struct {
	Strict bool
}

func New(strict bool) *Evaluator { return &Evaluator{Strict: strict} }

// Evaluate combina o pick da aposta com o snapshot (nil = jogo não encontrado)
func (e *Evaluator) Evaluate(w model.Wager, game *model.LiveGame) Result {
	if game == nil {
		return Pending()
	}

	team, spread := pick.Parse(w.Pick)
	token := strings.ToLower(team)

	isSideA := strings.Contains(strings.ToLower(game.TeamA), token)
	if !isSideA && e.Strict && !strings.Contains(strings.ToLower(game.TeamB), token) {
		return newResult(LabelUnresolved, StatusPending, 0)
	}

	var own, opp int
	if isSideA {
		own, opp = game.ScoreA, game.ScoreB
	} else {
		own, opp = game.ScoreB, game.ScoreA
	}

	m := Margin(own, opp, spread)
	prob := WinProbability(m)

	switch {
	case strings.Contains(game.StatusText, "Final") || strings.Contains(game.StatusText, "End"):
		switch {
		case m > 0:
			return newResult(LabelWon, StatusWon, 100)
		case m < 0:
			return newResult(LabelLost, StatusLost, 0)
		default:
			return newResult(LabelPush, StatusPush, 50)
		}
	case strings.Contains(game.StatusText, "Live") || strings.Contains(game.StatusText, "In Progress"):
		return newResult(fmt.Sprintf("🔄 In Progress (%d%%)", prob), StatusLive, prob)
	default:
		return Pending()
	}
}

// Margin é a diferença de placar ajustada pelo spread do pick.
// Spread negativo (favorito) precisa ser superado: "Duke -5.5" com 70x60 dá 4.5.
func Margin(own, opp int, spread float64) float64 {
	return float64(own-opp) + spread
}

// WinProbability é a heurística linear 50 + 2*margin, limitada a [0,100].
// Não é um modelo calibrado; serve só como indicador durante o jogo.
func WinProbability(margin float64) int {
	p := 50 + margin*2
	if math.IsNaN(p) {
		return 50
	}
	return int(math.Round(math.Min(100, math.Max(0, p))))
}
