package refresher

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/radieske/live-bet-tracker/internal/tracker-service/cache"
	"github.com/radieske/live-bet-tracker/internal/tracker-service/ledger"
	"github.com/radieske/live-bet-tracker/internal/tracker-service/model"
	"github.com/radieske/live-bet-tracker/internal/tracker-service/scoreboard"
	"github.com/radieske/live-bet-tracker/pkg/contracts/events"
)

// LiveGameFetcher é implementado por *scoreboard.Client
type LiveGameFetcher interface {
	FetchLiveGame(ctx context.Context, team1, team2 string, sport model.Sport) (*model.LiveGame, error)
}

// EvaluationCache guarda a última avaliação de cada aposta
type EvaluationCache interface {
	SetEvaluation(ctx context.Context, e cache.Evaluation) error
}

// StatusPublisher publica mudanças de label
type StatusPublisher interface {
	PublishStatusChanged(ctx context.Context, e events.WagerStatusChanged) error
}

// FetchFrom adapta o client do scoreboard ao contrato do ledger:
// ErrNotFound vira (nil, nil); demais erros seguem como aviso
func FetchFrom(c LiveGameFetcher) ledger.FetchFunc {
	return func(ctx context.Context, team1, team2 string, sport model.Sport) (*model.LiveGame, error) {
		g, err := c.FetchLiveGame(ctx, team1, team2, sport)
		if errors.Is(err, scoreboard.ErrNotFound) {
			return nil, nil
		}
		return g, err
	}
}

// Refresher executa passes de avaliação, sob demanda ou por timer.
// Passes nunca se sobrepõem. Cache e Publisher são opcionais.
type Refresher struct {
	Log       *zap.Logger
	Ledger    *ledger.Ledger
	Fetch     ledger.FetchFunc
	Evaluate  ledger.EvalFunc
	Cache     EvaluationCache
	Publisher StatusPublisher
	Interval  time.Duration // 0 = auto-refresh desligado

	OnPass         func(time.Duration) // métricas
	OnFetchWarning func()              // métricas
	OnEvaluated    func(status string) // métricas por status
	OnError        func(stage string)  // métricas por fase

	mu sync.Mutex
}

// RunOnce reavalia o ledger inteiro e devolve as avaliações do passe.
// Erro de persistência é devolvido junto com as avaliações já calculadas.
func (r *Refresher) RunOnce(ctx context.Context) ([]ledger.Evaluation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	start := time.Now()
	evs, err := r.Ledger.ReEvaluateAll(ctx, r.Fetch, r.Evaluate)
	persisted := err == nil

	for _, ev := range evs {
		r.record(ctx, ev, persisted)
	}

	if err != nil {
		if ctx.Err() != nil {
			return evs, err
		}
		r.Log.Error("ledger persist failed", zap.Error(err))
		r.fail("persist")
		return evs, err
	}

	d := time.Since(start)
	if r.OnPass != nil {
		r.OnPass(d)
	}
	r.Log.Debug("refresh pass done", zap.Int("wagers", len(evs)), zap.Duration("took", d))
	return evs, nil
}

func (r *Refresher) record(ctx context.Context, ev ledger.Evaluation, persisted bool) {
	if ev.Warning != nil {
		r.Log.Warn("scoreboard fetch failed, treating as not found",
			zap.String("wager_id", ev.Wager.ID),
			zap.String("teams", ev.Wager.Teams),
			zap.String("sport", string(ev.Wager.Sport)),
			zap.Error(ev.Warning),
		)
		if r.OnFetchWarning != nil {
			r.OnFetchWarning()
		}
	}
	if r.OnEvaluated != nil {
		r.OnEvaluated(string(ev.Result.Status))
	}

	if r.Cache != nil {
		if err := r.Cache.SetEvaluation(ctx, CacheRecord(ev)); err != nil {
			r.Log.Warn("evaluation cache set failed", zap.String("wager_id", ev.Wager.ID), zap.Error(err))
			r.fail("cache")
		}
	}

	// só publica o que foi de fato gravado no ledger
	if r.Publisher == nil || !persisted || !ev.Changed() {
		return
	}
	e := events.WagerStatusChanged{
		WagerID:        ev.Wager.ID,
		Sport:          string(ev.Wager.Sport),
		Teams:          ev.Wager.Teams,
		Pick:           ev.Wager.Pick,
		OldStatus:      ev.Previous,
		NewStatus:      ev.Result.Label,
		Status:         string(ev.Result.Status),
		WinProbability: ev.Result.WinProbability,
		Ts:             ev.Evaluated.UTC(),
	}
	if err := r.Publisher.PublishStatusChanged(ctx, e); err != nil {
		r.Log.Warn("status change publish failed", zap.String("wager_id", ev.Wager.ID), zap.Error(err))
		r.fail("publish")
	}
}

// Run dispara RunOnce a cada Interval até o contexto ser cancelado.
// Com Interval <= 0 retorna imediatamente.
func (r *Refresher) Run(ctx context.Context) error {
	if r.Interval <= 0 {
		r.Log.Info("auto refresh off")
		return nil
	}

	t := time.NewTicker(r.Interval)
	defer t.Stop()

	r.Log.Info("auto refresh on", zap.Duration("interval", r.Interval))
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			if _, err := r.RunOnce(ctx); err != nil && ctx.Err() == nil {
				r.Log.Warn("scheduled refresh failed", zap.Error(err))
			}
		}
	}
}

func (r *Refresher) fail(stage string) {
	if r.OnError != nil {
		r.OnError(stage)
	}
}

// CacheRecord converte a avaliação do passe no registro servido pela API
func CacheRecord(ev ledger.Evaluation) cache.Evaluation {
	rec := cache.Evaluation{
		WagerID:     ev.Wager.ID,
		Result:      ev.Result,
		Game:        ev.Game,
		EvaluatedAt: ev.Evaluated,
	}
	if ev.Game != nil {
		rec.ScoreLine = ev.Game.ScoreLine()
	}
	if ev.Warning != nil {
		rec.Warning = ev.Warning.Error()
	}
	return rec
}
