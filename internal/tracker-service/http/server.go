package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/radieske/live-bet-tracker/internal/tracker-service/cache"
	"github.com/radieske/live-bet-tracker/internal/tracker-service/dto"
	"github.com/radieske/live-bet-tracker/internal/tracker-service/ledger"
)

// Refresher dispara um passe de avaliação sob demanda
type Refresher interface {
	RunOnce(ctx context.Context) ([]ledger.Evaluation, error)
}

// EvaluationStore é a leitura do cache de avaliações (opcional)
type EvaluationStore interface {
	GetEvaluation(ctx context.Context, wagerID string) (cache.Evaluation, bool, error)
	DeleteEvaluation(ctx context.Context, wagerID string) error
}

// API expõe o ledger para a camada de exibição/edição
type API struct {
	Log         *zap.Logger
	Ledger      *ledger.Ledger
	Refresher   Refresher
	Cache       EvaluationStore // nil = sem cache
	CORSOrigins []string

	OnError func(stage string) // métricas
}

// Router retorna o roteador HTTP com os endpoints REST
func (a *API) Router() http.Handler {
	origins := a.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/v1/wagers", a.listWagers)                  // Ledger na ordem de inserção
	r.Post("/v1/wagers", a.createWager)                // Registra aposta
	r.Delete("/v1/wagers/{id}", a.removeWager)         // Remove pelo ID
	r.Delete("/v1/wagers/at/{index}", a.removeWagerAt) // Remove pela posição
	r.Get("/v1/wagers/{id}/status", a.wagerStatus)     // Última avaliação
	r.Post("/v1/refresh", a.refresh)                   // Passe imediato
	r.Get("/v1/summary", a.summary)                    // Totais
	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError traduz os erros do ledger para status HTTP
func (a *API) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, ledger.ErrInvalidWager):
		status = http.StatusBadRequest
	case errors.Is(err, ledger.ErrNotFound), errors.Is(err, ledger.ErrIndexOutOfRange):
		status = http.StatusNotFound
	default:
		a.Log.Error("ledger operation failed", zap.Error(err))
		a.fail("persist")
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func (a *API) fail(stage string) {
	if a.OnError != nil {
		a.OnError(stage)
	}
}

func (a *API) listWagers(w http.ResponseWriter, r *http.Request) {
	ws := a.Ledger.List()
	out := make([]dto.WagerResponse, 0, len(ws))
	for i, wg := range ws {
		resp := dto.NewWagerResponse(i, wg)
		resp.Evaluation = a.cachedEvaluation(r.Context(), wg.ID)
		out = append(out, resp)
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *API) createWager(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateWagerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad json"})
		return
	}

	wg, pos, err := a.Ledger.Add(r.Context(), ledger.NewWager{
		Sport: req.Sport,
		Teams: req.Teams,
		Pick:  req.Pick,
		Odds:  req.Odds,
		Stake: req.Stake,
	})
	if err != nil {
		a.writeError(w, err)
		return
	}

	a.Log.Info("wager added", zap.String("wager_id", wg.ID), zap.String("teams", wg.Teams), zap.String("pick", wg.Pick))
	writeJSON(w, http.StatusCreated, dto.NewWagerResponse(pos, wg))
}

func (a *API) removeWager(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := a.Ledger.Remove(r.Context(), id); err != nil {
		a.writeError(w, err)
		return
	}
	a.forget(r.Context(), id)
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) removeWagerAt(w http.ResponseWriter, r *http.Request) {
	idx, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "index must be an integer"})
		return
	}

	removed, err := a.Ledger.RemoveAt(r.Context(), idx)
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.forget(r.Context(), removed.ID)
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) wagerStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	wg, err := a.Ledger.Get(id)
	if err != nil {
		a.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.StatusResponse{
		WagerID:    wg.ID,
		Label:      wg.Status,
		Evaluation: a.cachedEvaluation(r.Context(), wg.ID),
	})
}

func (a *API) refresh(w http.ResponseWriter, r *http.Request) {
	evs, err := a.Refresher.RunOnce(r.Context())

	resp := dto.RefreshResponse{Evaluations: make([]dto.EvaluationResponse, 0, len(evs))}
	for _, ev := range evs {
		resp.Evaluations = append(resp.Evaluations, dto.NewEvaluationResponse(ev))
	}
	if err != nil {
		resp.Error = err.Error()
		writeJSON(w, http.StatusInternalServerError, resp)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) summary(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, dto.NewSummaryResponse(a.Ledger.Summary()))
}

// cachedEvaluation lê o cache sem falhar a requisição
func (a *API) cachedEvaluation(ctx context.Context, id string) *cache.Evaluation {
	if a.Cache == nil {
		return nil
	}
	e, ok, err := a.Cache.GetEvaluation(ctx, id)
	if err != nil {
		a.Log.Debug("evaluation cache get failed", zap.String("wager_id", id), zap.Error(err))
		a.fail("cache")
		return nil
	}
	if !ok {
		return nil
	}
	return &e
}

func (a *API) forget(ctx context.Context, id string) {
	if a.Cache == nil {
		return
	}
	if err := a.Cache.DeleteEvaluation(ctx, id); err != nil {
		a.Log.Debug("evaluation cache delete failed", zap.String("wager_id", id), zap.Error(err))
	}
}
