package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/radieske/live-bet-tracker/internal/tracker-service/evaluator"
	"github.com/radieske/live-bet-tracker/internal/tracker-service/model"
)

var (
	ErrNotFound        = errors.New("wager not found")
	ErrInvalidWager    = errors.New("invalid wager")
	ErrIndexOutOfRange = errors.New("wager index out of range")
)

// DefaultOdds é usado quando a aposta chega sem odds
const DefaultOdds = -110

var MinStake = decimal.RequireFromString("0.01")

// Store persiste o ledger inteiro. Save reescreve tudo (last-writer-wins).
type Store interface {
	Load(ctx context.Context) ([]model.Wager, error)
	Save(ctx context.Context, wagers []model.Wager) error
}

// FetchFunc busca o snapshot do jogo. (nil, nil) = jogo não encontrado;
// erro é tratado como "não encontrado" + aviso
type FetchFunc func(ctx context.Context, team1, team2 string, sport model.Sport) (*model.LiveGame, error)

// EvalFunc classifica a aposta dado o snapshot (nil = sem jogo)
type EvalFunc func(w model.Wager, game *model.LiveGame) evaluator.Result

// NewWager são os campos informados pelo usuário ao registrar uma aposta
type NewWager struct {
	Sport string
	Teams string
	Pick  string
	Odds  *int
	Stake decimal.Decimal
}

// Evaluation é o resultado de um passe para uma aposta
type Evaluation struct {
	Wager     model.Wager
	Game      *model.LiveGame // nil quando não houve correlação
	Result    evaluator.Result
	Previous  string // label antes do passe
	Fetched   bool   // false quando Teams não tem dois nomes
	Warning   error  // falha de rede/HTTP ao buscar o placar
	Evaluated time.Time
}

// Changed indica que o label mudou neste passe
func (e Evaluation) Changed() bool { return e.Previous != e.Result.Label }

// Summary agrega o ledger para exibição
type Summary struct {
	Total      int             `json:"total"`
	TotalStake decimal.Decimal `json:"total_stake"`
	Won        int             `json:"won"`
	Lost       int             `json:"lost"`
	Push       int             `json:"push"`
	Live       int             `json:"live"`
	Pending    int             `json:"pending"`
}

// Ledger é a sequência ordenada de apostas com ciclo explícito de load/save.
// Cada aposta tem um ID estável; remoções por ID nunca atingem a entrada errada
// mesmo com um passe de avaliação em andamento.
type Ledger struct {
	mu     sync.RWMutex
	store  Store
	wagers []model.Wager
	now    func() time.Time
}

// Open carrega o ledger do store (arquivo ausente = ledger vazio)
func Open(ctx context.Context, store Store) (*Ledger, error) {
	wagers, err := store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load ledger: %w", err)
	}
	l := &Ledger{store: store, wagers: wagers, now: time.Now}
	assigned := false
	for i := range l.wagers {
		if l.wagers[i].ID == "" {
			l.wagers[i].ID = uuid.NewString()
			assigned = true
		}
	}
	// IDs novos são gravados já, para continuarem estáveis entre reinícios
	if assigned {
		if err := store.Save(ctx, l.wagers); err != nil {
			return nil, fmt.Errorf("save assigned ids: %w", err)
		}
	}
	return l, nil
}

// Len retorna a quantidade de apostas
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.wagers)
}

// List retorna uma cópia ordenada do ledger
func (l *Ledger) List() []model.Wager {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]model.Wager, len(l.wagers))
	copy(out, l.wagers)
	return out
}

// Get busca uma aposta pelo ID
func (l *Ledger) Get(id string) (model.Wager, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if i := l.indexOf(id); i >= 0 {
		return l.wagers[i], nil
	}
	return model.Wager{}, ErrNotFound
}

// Add valida, anexa ao final e persiste. Devolve a aposta e a posição em que entrou.
func (l *Ledger) Add(ctx context.Context, in NewWager) (model.Wager, int, error) {
	w, err := l.build(in)
	if err != nil {
		return model.Wager{}, -1, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	next := append(l.snapshotLocked(), w)
	if err := l.store.Save(ctx, next); err != nil {
		return model.Wager{}, -1, fmt.Errorf("save ledger: %w", err)
	}
	l.wagers = next
	return w, len(next) - 1, nil
}

// Remove exclui a aposta pelo ID estável e persiste
func (l *Ledger) Remove(ctx context.Context, id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	i := l.indexOf(id)
	if i < 0 {
		return ErrNotFound
	}
	_, err := l.removeLocked(ctx, i)
	return err
}

// RemoveAt exclui pela posição e devolve a aposta removida;
// as entradas seguintes descem uma posição
func (l *Ledger) RemoveAt(ctx context.Context, index int) (model.Wager, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if index < 0 || index >= len(l.wagers) {
		return model.Wager{}, fmt.Errorf("%w: %d", ErrIndexOutOfRange, index)
	}
	return l.removeLocked(ctx, index)
}

func (l *Ledger) removeLocked(ctx context.Context, i int) (model.Wager, error) {
	cur := l.snapshotLocked()
	removed := cur[i]
	next := append(cur[:i:i], cur[i+1:]...)
	if err := l.store.Save(ctx, next); err != nil {
		return model.Wager{}, fmt.Errorf("save ledger: %w", err)
	}
	l.wagers = next
	return removed, nil
}

// ReEvaluateAll avalia cada aposta em sequência, sem estado compartilhado entre elas.
// A rede é acessada fora do lock; os labels são gravados de volta pelo ID, então
// apostas removidas durante o passe são ignoradas. Ao final o ledger é persistido.
// As avaliações são devolvidas mesmo quando o save falha.
func (l *Ledger) ReEvaluateAll(ctx context.Context, fetch FetchFunc, eval EvalFunc) ([]Evaluation, error) {
	wagers := l.List()
	out := make([]Evaluation, 0, len(wagers))

	for _, w := range wagers {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		out = append(out, evaluateOne(ctx, w, fetch, eval, l.now()))
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	next := l.snapshotLocked()
	for _, ev := range out {
		if i := indexIn(next, ev.Wager.ID); i >= 0 {
			next[i].Status = ev.Result.Label
		}
	}
	if err := l.store.Save(ctx, next); err != nil {
		return out, fmt.Errorf("save ledger: %w", err)
	}
	l.wagers = next
	return out, nil
}

func evaluateOne(ctx context.Context, w model.Wager, fetch FetchFunc, eval EvalFunc, now time.Time) Evaluation {
	ev := Evaluation{Wager: w, Previous: w.Status, Evaluated: now}

	team1, team2, ok := w.TeamPair()
	if ok {
		ev.Fetched = true
		game, err := fetch(ctx, team1, team2, w.Sport)
		if err != nil {
			ev.Warning = err
		} else {
			ev.Game = game
		}
	}

	ev.Result = eval(w, ev.Game)
	ev.Wager.Status = ev.Result.Label
	return ev
}

// Summary conta apostas por status (pelo label gravado) e soma o stake
func (l *Ledger) Summary() Summary {
	l.mu.RLock()
	defer l.mu.RUnlock()

	s := Summary{Total: len(l.wagers), TotalStake: decimal.Zero}
	for _, w := range l.wagers {
		s.TotalStake = s.TotalStake.Add(w.Stake)
		switch {
		case strings.Contains(w.Status, "Won"):
			s.Won++
		case strings.Contains(w.Status, "Lost"):
			s.Lost++
		case strings.Contains(w.Status, "Push"):
			s.Push++
		case strings.Contains(w.Status, "In Progress"):
			s.Live++
		default:
			s.Pending++
		}
	}
	return s
}

func (l *Ledger) build(in NewWager) (model.Wager, error) {
	sport := strings.ToUpper(strings.TrimSpace(in.Sport))
	teams := strings.TrimSpace(in.Teams)
	p := strings.TrimSpace(in.Pick)

	switch {
	case sport == "":
		return model.Wager{}, fmt.Errorf("%w: sport is required", ErrInvalidWager)
	case teams == "":
		return model.Wager{}, fmt.Errorf("%w: teams is required", ErrInvalidWager)
	case p == "":
		return model.Wager{}, fmt.Errorf("%w: pick is required", ErrInvalidWager)
	case in.Stake.LessThan(MinStake):
		return model.Wager{}, fmt.Errorf("%w: stake must be at least %s", ErrInvalidWager, MinStake.StringFixed(2))
	}

	odds := DefaultOdds
	if in.Odds != nil {
		odds = *in.Odds
	}

	return model.Wager{
		ID:      uuid.NewString(),
		Sport:   model.Sport(sport),
		Teams:   teams,
		Pick:    p,
		Odds:    odds,
		Stake:   in.Stake.Round(2),
		AddedAt: l.now(),
		Status:  evaluator.LabelPending,
	}, nil
}

func (l *Ledger) snapshotLocked() []model.Wager {
	out := make([]model.Wager, len(l.wagers), len(l.wagers)+1)
	copy(out, l.wagers)
	return out
}

func (l *Ledger) indexOf(id string) int { return indexIn(l.wagers, id) }

func indexIn(ws []model.Wager, id string) int {
	for i := range ws {
		if ws[i].ID == id {
			return i
		}
	}
	return -1
}
