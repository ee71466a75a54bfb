package repo

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/radieske/live-bet-tracker/internal/tracker-service/model"
)

// Schema cria a tabela do ledger; position guarda a ordem de inserção
const Schema = `
	CREATE TABLE IF NOT EXISTS wagers (
		id        TEXT PRIMARY KEY,
		position  INT NOT NULL,
		sport     TEXT NOT NULL,
		teams     TEXT NOT NULL,
		pick      TEXT NOT NULL,
		odds      INT NOT NULL,
		stake     NUMERIC(12,2) NOT NULL,
		added_at  TIMESTAMPTZ NOT NULL,
		status    TEXT NOT NULL DEFAULT ''
	)`

// Postgres implementa ledger.Store sobre a tabela wagers
type Postgres struct{ db *sql.DB }

// NewPostgres retorna o store do ledger em Postgres
func NewPostgres(db *sql.DB) *Postgres { return &Postgres{db: db} }

// Load lê o ledger na ordem de inserção
func (p *Postgres) Load(ctx context.Context) ([]model.Wager, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, sport, teams, pick, odds, stake, added_at, status
		FROM wagers
		ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("query wagers: %w", err)
	}
	defer rows.Close()

	out := []model.Wager{}
	for rows.Next() {
		var (
			w     model.Wager
			sport string
		)
		if err := rows.Scan(&w.ID, &sport, &w.Teams, &w.Pick, &w.Odds, &w.Stake, &w.AddedAt, &w.Status); err != nil {
			return nil, fmt.Errorf("scan wager: %w", err)
		}
		w.Sport = model.Sport(sport)
		out = append(out, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate wagers: %w", err)
	}
	return out, nil
}

// Save reescreve o ledger inteiro numa transação (last-writer-wins)
func (p *Postgres) Save(ctx context.Context, wagers []model.Wager) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM wagers`); err != nil {
		return fmt.Errorf("clear wagers: %w", err)
	}

	for i, w := range wagers {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO wagers (id, position, sport, teams, pick, odds, stake, added_at, status)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
			w.ID, i, string(w.Sport), w.Teams, w.Pick, w.Odds, w.Stake, w.AddedAt, w.Status,
		)
		if err != nil {
			return fmt.Errorf("insert wager %s: %w", w.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit wagers: %w", err)
	}
	return nil
}
