package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/radieske/live-bet-tracker/pkg/contracts/events"
)

// MessageReader é o subconjunto de *kafka.Reader usado pelo Processor
type MessageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
}

// HistoryWriter grava a mudança de status
type HistoryWriter interface {
	InsertStatusChange(ctx context.Context, e events.WagerStatusChanged) error
}

var errMissingWagerID = errors.New("missing wager_id")

// Processor consome wager_status_changed e anexa cada mudança ao histórico.
// Mensagens inválidas ou que falharam ao persistir vão para a DLQ, se houver.
type Processor struct {
	Log        *zap.Logger
	Reader     MessageReader
	Repo       HistoryWriter
	DeadLetter func(ctx context.Context, key string, payload []byte) error // opcional

	RetryDelay time.Duration // espera após falha de leitura; 0 = 500ms

	OnConsumed func()       // métricas (counter++)
	OnPersist  func()       // métricas
	OnError    func(string) // métricas por fase
}

// Run inicia o loop de consumo até o contexto ser cancelado
func (p *Processor) Run(ctx context.Context) error {
	delay := p.RetryDelay
	if delay <= 0 {
		delay = 500 * time.Millisecond
	}

	for {
		m, err := p.Reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			p.Log.Warn("kafka read failed", zap.Error(err))
			p.fail("read")
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			continue
		}

		if p.OnConsumed != nil {
			p.OnConsumed()
		}
		p.handle(ctx, m)
	}
}

func (p *Processor) handle(ctx context.Context, m kafka.Message) {
	var ev events.WagerStatusChanged
	err := json.Unmarshal(m.Value, &ev)
	if err == nil && ev.WagerID == "" {
		err = errMissingWagerID
	}
	if err != nil {
		p.Log.Warn("invalid message", zap.Error(err), zap.Int64("offset", m.Offset))
		p.fail("decode")
		p.deadLetter(ctx, m)
		return
	}

	if ev.Ts.IsZero() {
		ev.Ts = m.Time
	}

	if err := p.Repo.InsertStatusChange(ctx, ev); err != nil {
		p.Log.Warn("db insert history failed", zap.String("wager_id", ev.WagerID), zap.Error(err))
		p.fail("db_history")
		p.deadLetter(ctx, m)
		return
	}

	p.Log.Debug("status change recorded",
		zap.String("wager_id", ev.WagerID),
		zap.String("old_status", ev.OldStatus),
		zap.String("new_status", ev.NewStatus),
	)
	if p.OnPersist != nil {
		p.OnPersist()
	}
}

func (p *Processor) deadLetter(ctx context.Context, m kafka.Message) {
	if p.DeadLetter == nil {
		return
	}
	if err := p.DeadLetter(ctx, string(m.Key), m.Value); err != nil {
		p.Log.Warn("dlq publish failed", zap.Error(err))
		p.fail("dlq")
	}
}

func (p *Processor) fail(stage string) {
	if p.OnError != nil {
		p.OnError(stage)
	}
}
