package refresher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/radieske/live-bet-tracker/internal/tracker-service/cache"
	"github.com/radieske/live-bet-tracker/internal/tracker-service/evaluator"
	"github.com/radieske/live-bet-tracker/internal/tracker-service/ledger"
	"github.com/radieske/live-bet-tracker/internal/tracker-service/model"
	"github.com/radieske/live-bet-tracker/internal/tracker-service/scoreboard"
	"github.com/radieske/live-bet-tracker/pkg/contracts/events"
)

type memStore struct {
	mu      sync.Mutex
	wagers  []model.Wager
	saveErr error
}

func (m *memStore) Load(context.Context) ([]model.Wager, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
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

type fakeFetcher struct {
	games map[string]*model.LiveGame
	err   error
	calls int32
}

func (f *fakeFetcher) FetchLiveGame(_ context.Context, team1, _ string, _ model.Sport) (*model.LiveGame, error) {
	atomic.AddInt32(&f.calls, 1)
	if g, ok := f.games[team1]; ok {
		return g, nil
	}
	if f.err != nil {
		return nil, f.err
	}
	return nil, scoreboard.ErrNotFound
}

type fakeCache struct {
	mu   sync.Mutex
	recs map[string]cache.Evaluation
}

func (c *fakeCache) SetEvaluation(_ context.Context, e cache.Evaluation) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.recs[e.WagerID] = e
	return nil
}

type fakePublisher struct {
	mu     sync.Mutex
	events []events.WagerStatusChanged
}

func (p *fakePublisher) PublishStatusChanged(_ context.Context, e events.WagerStatusChanged) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func wager(id, teams, pick string) model.Wager {
	return model.Wager{
		ID: id, Sport: model.SportNCAAB, Teams: teams, Pick: pick, Odds: -110,
		Stake: decimal.NewFromInt(10), Status: evaluator.LabelPending,
	}
}

func newRefresher(t *testing.T, store *memStore, f *fakeFetcher) (*Refresher, *fakeCache, *fakePublisher) {
	t.Helper()
	l, err := ledger.Open(context.Background(), store)
	require.NoError(t, err)

	c := &fakeCache{recs: map[string]cache.Evaluation{}}
	p := &fakePublisher{}
	return &Refresher{
		Log:       zap.NewNop(),
		Ledger:    l,
		Fetch:     FetchFrom(f),
		Evaluate:  evaluator.New(false).Evaluate,
		Cache:     c,
		Publisher: p,
	}, c, p
}

func TestFetchFrom(t *testing.T) {
	f := &fakeFetcher{games: map[string]*model.LiveGame{"Duke": {TeamA: "Duke"}}}
	fetch := FetchFrom(f)

	g, err := fetch(context.Background(), "Duke", "UNC", model.SportNCAAB)
	require.NoError(t, err)
	assert.Equal(t, "Duke", g.TeamA)

	g, err = fetch(context.Background(), "Gonzaga", "Purdue", model.SportNCAAB)
	assert.NoError(t, err)
	assert.Nil(t, g)

	f.err = errors.New("ESPN API error: status=500")
	_, err = fetch(context.Background(), "Gonzaga", "Purdue", model.SportNCAAB)
	assert.Error(t, err)
}

func TestRunOnce(t *testing.T) {
	store := &memStore{wagers: []model.Wager{
		wager("w1", "Duke vs UNC", "Duke -5.5"),
		wager("w2", "Kansas vs Baylor", "Kansas"),
		wager("w3", "Gonzaga", "Gonzaga"),
	}}
	f := &fakeFetcher{
		games: map[string]*model.LiveGame{
			"Duke": {TeamA: "Duke Blue Devils", TeamB: "UNC", ScoreA: 70, ScoreB: 60, StatusText: "Final"},
		},
		err: errors.New("timeout"),
	}
	r, c, p := newRefresher(t, store, f)

	var warnings int
	var passes int
	statuses := map[string]int{}
	r.OnFetchWarning = func() { warnings++ }
	r.OnPass = func(time.Duration) { passes++ }
	r.OnEvaluated = func(s string) { statuses[s]++ }

	evs, err := r.RunOnce(context.Background())
	require.NoError(t, err)
	require.Len(t, evs, 3)

	assert.Equal(t, int32(2), atomic.LoadInt32(&f.calls))
	assert.Equal(t, 1, warnings)
	assert.Equal(t, 1, passes)
	assert.Equal(t, map[string]int{"WON": 1, "PENDING": 2}, statuses)

	require.Len(t, c.recs, 3)
	assert.Equal(t, "Duke Blue Devils 70 - UNC 60", c.recs["w1"].ScoreLine)
	assert.Equal(t, "timeout", c.recs["w2"].Warning)
	assert.Nil(t, c.recs["w3"].Game)

	require.Len(t, p.events, 1)
	assert.Equal(t, "w1", p.events[0].WagerID)
	assert.Equal(t, evaluator.LabelPending, p.events[0].OldStatus)
	assert.Equal(t, evaluator.LabelWon, p.events[0].NewStatus)
	assert.Equal(t, "WON", p.events[0].Status)
	assert.Equal(t, 100, p.events[0].WinProbability)

	assert.Equal(t, evaluator.LabelWon, store.wagers[0].Status)

	// segundo passe sem mudança não publica de novo
	_, err = r.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Len(t, p.events, 1)
}

func TestRunOnce_PersistFailure(t *testing.T) {
	store := &memStore{wagers: []model.Wager{wager("w1", "Duke vs UNC", "Duke -5.5")}}
	f := &fakeFetcher{games: map[string]*model.LiveGame{
		"Duke": {TeamA: "Duke", TeamB: "UNC", ScoreA: 50, ScoreB: 48, StatusText: "In Progress"},
	}}
	r, c, p := newRefresher(t, store, f)
	store.saveErr = errors.New("read-only file system")

	var stages []string
	r.OnError = func(s string) { stages = append(stages, s) }

	evs, err := r.RunOnce(context.Background())
	require.Error(t, err)
	require.Len(t, evs, 1)
	assert.Equal(t, []string{"persist"}, stages)
	assert.Len(t, c.recs, 1)
	assert.Empty(t, p.events)
}

func TestRun_Off(t *testing.T) {
	r, _, _ := newRefresher(t, &memStore{}, &fakeFetcher{})

	done := make(chan error, 1)
	go func() { done <- r.Run(context.Background()) }()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run with interval 0 must return")
	}
}

func TestRun_TicksUntilCanceled(t *testing.T) {
	r, _, _ := newRefresher(t, &memStore{wagers: []model.Wager{wager("w1", "Duke vs UNC", "Duke")}}, &fakeFetcher{})
	r.Interval = 10 * time.Millisecond

	var passes int32
	r.OnPass = func(time.Duration) { atomic.AddInt32(&passes, 1) }

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	require.Eventually(t, func() bool { return atomic.LoadInt32(&passes) >= 2 }, 2*time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Run must stop after cancel")
	}
}

func TestRunOnce_Serialized(t *testing.T) {
	ws := make([]model.Wager, 0, 5)
	for i := 0; i < 5; i++ {
		ws = append(ws, wager(fmt.Sprintf("w%d", i), "Duke vs UNC", "Duke"))
	}
	var inFlight, maxInFlight int32
	r, _, _ := newRefresher(t, &memStore{wagers: ws}, &fakeFetcher{})
	r.Fetch = func(context.Context, string, string, model.Sport) (*model.LiveGame, error) {
		n := atomic.AddInt32(&inFlight, 1)
		for {
			m := atomic.LoadInt32(&maxInFlight)
			if n <= m || atomic.CompareAndSwapInt32(&maxInFlight, m, n) {
				break
			}
		}
		time.Sleep(time.Millisecond)
		atomic.AddInt32(&inFlight, -1)
		return nil, nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = r.RunOnce(context.Background())
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&maxInFlight))
}
