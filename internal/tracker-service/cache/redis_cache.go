package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/radieske/live-bet-tracker/internal/tracker-service/evaluator"
	"github.com/radieske/live-bet-tracker/internal/tracker-service/model"
)

// Evaluation é o último resultado conhecido de uma aposta, servido pela API de status
type Evaluation struct {
	WagerID     string           `json:"wager_id"`
	Result      evaluator.Result `json:"result"`
	Game        *model.LiveGame  `json:"game,omitempty"`
	ScoreLine   string           `json:"score_line,omitempty"`
	Warning     string           `json:"warning,omitempty"`
	EvaluatedAt time.Time        `json:"evaluated_at"`
}

// RedisCache guarda a última avaliação por aposta e, opcionalmente,
// o documento bruto do scoreboard
// Client: cliente Redis
// TTL: expiração das avaliações
type RedisCache struct {
	Client *redis.Client
	TTL    time.Duration
}

// NewRedisCache cria o cache com TTL configurável
func NewRedisCache(c *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{Client: c, TTL: ttl}
}

func evaluationKey(wagerID string) string { return "tracker:eval:" + wagerID }

func scoreboardKey(sportPath string) string { return "tracker:scoreboard:" + sportPath }

// SetEvaluation grava a avaliação da aposta com o TTL do cache
func (r *RedisCache) SetEvaluation(ctx context.Context, e Evaluation) error {
	b, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal evaluation: %w", err)
	}
	return r.Client.Set(ctx, evaluationKey(e.WagerID), b, r.TTL).Err()
}

// GetEvaluation retorna (avaliação, true) ou (zero, false) quando não há registro
func (r *RedisCache) GetEvaluation(ctx context.Context, wagerID string) (Evaluation, bool, error) {
	b, err := r.Client.Get(ctx, evaluationKey(wagerID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Evaluation{}, false, nil
	}
	if err != nil {
		return Evaluation{}, false, err
	}

	var e Evaluation
	if err := json.Unmarshal(b, &e); err != nil {
		return Evaluation{}, false, fmt.Errorf("decode evaluation %s: %w", wagerID, err)
	}
	return e, true, nil
}

// DeleteEvaluation remove o registro quando a aposta sai do ledger
func (r *RedisCache) DeleteEvaluation(ctx context.Context, wagerID string) error {
	return r.Client.Del(ctx, evaluationKey(wagerID)).Err()
}

// GetScoreboard implementa scoreboard.DocumentCache
func (r *RedisCache) GetScoreboard(ctx context.Context, sportPath string) ([]byte, bool, error) {
	b, err := r.Client.Get(ctx, scoreboardKey(sportPath)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}

// SetScoreboard implementa scoreboard.DocumentCache
func (r *RedisCache) SetScoreboard(ctx context.Context, sportPath string, body []byte, ttl time.Duration) error {
	return r.Client.Set(ctx, scoreboardKey(sportPath), body, ttl).Err()
}
