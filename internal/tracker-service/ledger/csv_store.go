package ledger

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/radieske/live-bet-tracker/internal/tracker-service/model"
)

// Header é a ordem de colunas gravada pelo CSVStore
var Header = []string{"ID", "Sport", "Teams", "Pick", "Odds", "Stake", "Added", "Status"}

// formato de data dos arquivos antigos ("11/08 07:30 PM")
const legacyAddedLayout = "01/02 03:04 PM"

// CSVStore guarda o ledger num arquivo CSV, reescrito inteiro a cada Save.
// Arquivo ausente é lido como ledger vazio. Aceita arquivos antigos sem a coluna
// ID, com stake "$10.00" e data no formato "MM/DD hh:mm PM".
type CSVStore struct {
	Path string
	now  func() time.Time
}

func NewCSVStore(path string) *CSVStore {
	return &CSVStore{Path: path, now: time.Now}
}

func (s *CSVStore) Load(_ context.Context) ([]model.Wager, error) {
	f, err := os.Open(s.Path)
	if errors.Is(err, os.ErrNotExist) {
		return []model.Wager{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open ledger file: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	head, err := r.Read()
	if errors.Is(err, io.EOF) {
		return []model.Wager{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read ledger header: %w", err)
	}
	cols := make(map[string]int, len(head))
	for i, h := range head {
		cols[strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))] = i
	}

	wagers := []model.Wager{}
	for line := 2; ; line++ {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read ledger line %d: %w", line, err)
		}
		wagers = append(wagers, s.decode(cols, rec))
	}
	return wagers, nil
}

func (s *CSVStore) decode(cols map[string]int, rec []string) model.Wager {
	get := func(name string) string {
		if i, ok := cols[name]; ok && i < len(rec) {
			return strings.TrimSpace(rec[i])
		}
		return ""
	}

	return model.Wager{
		ID:      get("ID"),
		Sport:   model.Sport(get("Sport")),
		Teams:   get("Teams"),
		Pick:    get("Pick"),
		Odds:    parseOdds(get("Odds")),
		Stake:   parseStake(get("Stake")),
		AddedAt: s.parseAdded(get("Added")),
		Status:  get("Status"),
	}
}

// Save grava num arquivo temporário e renomeia, para nunca deixar o ledger pela metade
func (s *CSVStore) Save(_ context.Context, wagers []model.Wager) error {
	dir := filepath.Dir(s.Path)
	tmp, err := os.CreateTemp(dir, ".ledger-*.csv")
	if err != nil {
		return fmt.Errorf("create temp ledger: %w", err)
	}
	defer os.Remove(tmp.Name())

	w := csv.NewWriter(tmp)
	if err := w.Write(Header); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write ledger header: %w", err)
	}
	for _, wg := range wagers {
		rec := []string{
			wg.ID,
			string(wg.Sport),
			wg.Teams,
			wg.Pick,
			strconv.Itoa(wg.Odds),
			wg.Stake.StringFixed(2),
			wg.AddedAt.Format(time.RFC3339),
			wg.Status,
		}
		if err := w.Write(rec); err != nil {
			_ = tmp.Close()
			return fmt.Errorf("write ledger row %s: %w", wg.ID, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("flush ledger: %w", err)
	}
	// CreateTemp cria com 0600; mantém a permissão do arquivo atual
	mode := os.FileMode(0o644)
	if fi, err := os.Stat(s.Path); err == nil {
		mode = fi.Mode().Perm()
	}
	if err := tmp.Chmod(mode); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("chmod temp ledger: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp ledger: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.Path); err != nil {
		return fmt.Errorf("replace ledger file: %w", err)
	}
	return nil
}

func parseOdds(v string) int {
	if v == "" {
		return DefaultOdds
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return DefaultOdds
	}
	return int(f)
}

func parseStake(v string) decimal.Decimal {
	v = strings.TrimPrefix(strings.ReplaceAll(v, ",", ""), "$")
	d, err := decimal.NewFromString(v)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func (s *CSVStore) parseAdded(v string) time.Time {
	if v == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t
	}
	if t, err := time.ParseInLocation(legacyAddedLayout, v, time.Local); err == nil {
		// o formato antigo não tem ano
		return t.AddDate(s.now().Year(), 0, 0)
	}
	return time.Time{}
}
