package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/radieske/live-bet-tracker/internal/tracker-service/cache"
	"github.com/radieske/live-bet-tracker/internal/tracker-service/dto"
	"github.com/radieske/live-bet-tracker/internal/tracker-service/evaluator"
	"github.com/radieske/live-bet-tracker/internal/tracker-service/ledger"
	"github.com/radieske/live-bet-tracker/internal/tracker-service/model"
)

type memStore struct {
	mu      sync.Mutex
	wagers  []model.Wager
	saveErr error
}

func (m *memStore) Load(context.Context) ([]model.Wager, error) {
	return append([]model.Wager(nil), m.wagers...), nil
}

func (m *memStore) Save(_ context.Context, ws []model.Wager) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.wagers = append([]model.Wager(nil), ws...)
	return nil
}

type fakeRefresher struct {
	l   *ledger.Ledger
	err error
}

func (f *fakeRefresher) RunOnce(ctx context.Context) ([]ledger.Evaluation, error) {
	if f.err != nil {
		return nil, f.err
	}
	fetch := func(context.Context, string, string, model.Sport) (*model.LiveGame, error) {
		return &model.LiveGame{TeamA: "Duke Blue Devils", TeamB: "UNC", ScoreA: 50, ScoreB: 48, StatusText: "In Progress"}, nil
	}
	return f.l.ReEvaluateAll(ctx, fetch, evaluator.New(false).Evaluate)
}

type fakeCache struct {
	recs    map[string]cache.Evaluation
	deleted []string
}

func (c *fakeCache) GetEvaluation(_ context.Context, id string) (cache.Evaluation, bool, error) {
	e, ok := c.recs[id]
	return e, ok, nil
}

func (c *fakeCache) DeleteEvaluation(_ context.Context, id string) error {
	c.deleted = append(c.deleted, id)
	return nil
}

func newAPI(t *testing.T, store *memStore) (*API, *fakeCache) {
	t.Helper()
	l, err := ledger.Open(context.Background(), store)
	require.NoError(t, err)
	c := &fakeCache{recs: map[string]cache.Evaluation{}}
	return &API{
		Log:       zap.NewNop(),
		Ledger:    l,
		Refresher: &fakeRefresher{l: l},
		Cache:     c,
	}, c
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestCreateAndList(t *testing.T) {
	api, _ := newAPI(t, &memStore{})
	h := api.Router()

	rec := do(t, h, http.MethodPost, "/v1/wagers",
		`{"sport":"ncaab","teams":"Duke vs UNC","pick":"Duke -5.5","stake":"10"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	var created dto.WagerResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, 0, created.Position)
	assert.Equal(t, "NCAAB", created.Sport)
	assert.Equal(t, -110, created.Odds)
	assert.Equal(t, "10.00", created.Stake)
	assert.Equal(t, evaluator.LabelPending, created.Status)

	rec = do(t, h, http.MethodPost, "/v1/wagers",
		`{"sport":"NBA","teams":"Lakers vs Celtics","pick":"Lakers","odds":150,"stake":2.5}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	var second dto.WagerResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &second))
	assert.Equal(t, 1, second.Position)

	rec = do(t, h, http.MethodGet, "/v1/wagers", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var list []dto.WagerResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 2)
	assert.Equal(t, created.ID, list[0].ID)
	assert.Equal(t, 1, list[1].Position)
	assert.Equal(t, 150, list[1].Odds)
	assert.Equal(t, "2.50", list[1].Stake)
}

func TestCreate_BadRequest(t *testing.T) {
	api, _ := newAPI(t, &memStore{})
	h := api.Router()

	rec := do(t, h, http.MethodPost, "/v1/wagers", `{not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodPost, "/v1/wagers", `{"sport":"NBA","teams":"A vs B","pick":"A","stake":0}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "stake")
}

func TestCreate_PersistFailure(t *testing.T) {
	store := &memStore{saveErr: errors.New("disk full")}
	api, _ := newAPI(t, store)
	var stages []string
	api.OnError = func(s string) { stages = append(stages, s) }

	rec := do(t, api.Router(), http.MethodPost, "/v1/wagers", `{"sport":"NBA","teams":"A vs B","pick":"A","stake":1}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "disk full")
	assert.Equal(t, []string{"persist"}, stages)
}

func seed() *memStore {
	return &memStore{wagers: []model.Wager{
		{ID: "w0", Sport: model.SportNCAAB, Teams: "Duke vs UNC", Pick: "Duke -5.5", Status: evaluator.LabelPending},
		{ID: "w1", Sport: model.SportNBA, Teams: "Lakers vs Celtics", Pick: "Lakers", Status: evaluator.LabelWon},
		{ID: "w2", Sport: model.SportNFL, Teams: "Chiefs vs Bills", Pick: "Bills +3", Status: evaluator.LabelLost},
	}}
}

func TestRemoveByID(t *testing.T) {
	api, c := newAPI(t, seed())
	h := api.Router()

	rec := do(t, h, http.MethodDelete, "/v1/wagers/w1", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, []string{"w1"}, c.deleted)

	rec = do(t, h, http.MethodDelete, "/v1/wagers/w1", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, 2, api.Ledger.Len())
}

func TestRemoveAt(t *testing.T) {
	api, c := newAPI(t, seed())
	h := api.Router()

	rec := do(t, h, http.MethodDelete, "/v1/wagers/at/1", "")
	require.Equal(t, http.StatusNoContent, rec.Code)

	ws := api.Ledger.List()
	require.Len(t, ws, 2)
	assert.Equal(t, "w0", ws[0].ID)
	assert.Equal(t, "w2", ws[1].ID)
	assert.Equal(t, []string{"w1"}, c.deleted)

	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodDelete, "/v1/wagers/at/5", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodDelete, "/v1/wagers/at/abc", "").Code)
}

func TestWagerStatus(t *testing.T) {
	api, c := newAPI(t, seed())
	h := api.Router()
	c.recs["w0"] = cache.Evaluation{
		WagerID: "w0",
		Result:  evaluator.Result{Label: "🔄 In Progress (43%)", Status: evaluator.StatusLive, WinProbability: 43},
	}

	rec := do(t, h, http.MethodGet, "/v1/wagers/w0/status", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var st dto.StatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
	assert.Equal(t, evaluator.LabelPending, st.Label)
	require.NotNil(t, st.Evaluation)
	assert.Equal(t, 43, st.Evaluation.Result.WinProbability)

	rec = do(t, h, http.MethodGet, "/v1/wagers/w1/status", "")
	require.Equal(t, http.StatusOK, rec.Code)
	st = dto.StatusResponse{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
	assert.Equal(t, evaluator.LabelWon, st.Label)
	assert.Nil(t, st.Evaluation)

	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/v1/wagers/nope/status", "").Code)
}

func TestRefresh(t *testing.T) {
	api, _ := newAPI(t, seed())

	rec := do(t, api.Router(), http.MethodPost, "/v1/refresh", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp dto.RefreshResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Evaluations, 3)

	// Duke -5.5 com 50x48 em andamento: margem -3.5, probabilidade 43
	assert.Equal(t, "🔄 In Progress (43%)", resp.Evaluations[0].Label)
	assert.Equal(t, "LIVE", resp.Evaluations[0].Status)
	assert.Equal(t, 43, resp.Evaluations[0].WinProbability)
	assert.Equal(t, "Duke Blue Devils 50 - UNC 48", resp.Evaluations[0].ScoreLine)
	assert.True(t, resp.Evaluations[0].Changed)
	assert.Empty(t, resp.Error)
}

func TestRefresh_Error(t *testing.T) {
	api, _ := newAPI(t, seed())
	api.Refresher = &fakeRefresher{err: errors.New("save ledger: disk full")}

	rec := do(t, api.Router(), http.MethodPost, "/v1/refresh", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "disk full")
}

func TestSummary(t *testing.T) {
	api, _ := newAPI(t, seed())

	rec := do(t, api.Router(), http.MethodGet, "/v1/summary", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var s dto.SummaryResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &s))
	assert.Equal(t, 3, s.Total)
	assert.Equal(t, "0.00", s.TotalStake)
	assert.Equal(t, 1, s.Won)
	assert.Equal(t, 1, s.Lost)
	assert.Equal(t, 1, s.Pending)
}

func TestCORSPreflight(t *testing.T) {
	api, _ := newAPI(t, &memStore{})
	api.CORSOrigins = []string{"http://localhost:3000"}

	req := httptest.NewRequest(http.MethodOptions, "/v1/wagers", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	api.Router().ServeHTTP(rec, req)

	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
}
