package repository

import (
	"context"
	"database/sql"

	"github.com/radieske/live-bet-tracker/pkg/contracts/events"
)

// Schema cria o histórico de mudanças de status das apostas
const Schema = `
	CREATE TABLE IF NOT EXISTS wager_status_history (
		id               BIGSERIAL PRIMARY KEY,
		wager_id         TEXT NOT NULL,
		sport            TEXT NOT NULL,
		teams            TEXT NOT NULL,
		pick             TEXT NOT NULL,
		old_status       TEXT NOT NULL,
		new_status       TEXT NOT NULL,
		status           TEXT NOT NULL,
		win_probability  INT NOT NULL,
		changed_at       TIMESTAMPTZ NOT NULL,
		recorded_at      TIMESTAMPTZ NOT NULL DEFAULT now()
	)`

const SchemaIndex = `
	CREATE INDEX IF NOT EXISTS wager_status_history_wager_idx
		ON wager_status_history (wager_id, changed_at)`

// PostgresRepo persiste o histórico de status
// DB: conexão com o banco de dados
type PostgresRepo struct {
	DB *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{DB: db}
}

// InsertStatusChange anexa uma mudança ao histórico (append-only)
func (r *PostgresRepo) InsertStatusChange(ctx context.Context, e events.WagerStatusChanged) error {
	const q = `
		INSERT INTO wager_status_history
		  (wager_id, sport, teams, pick, old_status, new_status, status, win_probability, changed_at)
		VALUES
		  ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`
	_, err := r.DB.ExecContext(ctx, q,
		e.WagerID, e.Sport, e.Teams, e.Pick,
		e.OldStatus, e.NewStatus, e.Status, e.WinProbability,
		e.Ts,
	)
	return err
}
