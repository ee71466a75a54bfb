package scoreboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/radieske/live-bet-tracker/internal/tracker-service/model"
)

const (
	BaseURL        = "https://site.api.espn.com/apis/site/v2/sports"
	DefaultTimeout = 5 * time.Second
)

// ErrNotFound indica que nenhum evento listado contém os times da aposta
var ErrNotFound = errors.New("live game not found")

// sportPaths mapeia o código do esporte para o caminho da ESPN
var sportPaths = map[model.Sport]string{
	model.SportNCAAB: "basketball/mens-college-basketball",
	model.SportNCAAF: "football/college-football",
	model.SportNFL:   "football/nfl",
	model.SportNBA:   "basketball/nba",
	model.SportMLB:   "baseball/mlb",
}

// SportPath retorna o caminho ESPN do esporte; códigos desconhecidos caem no NCAAB
func SportPath(s model.Sport) string {
	if p, ok := sportPaths[model.Sport(strings.ToUpper(string(s)))]; ok {
		return p
	}
	return sportPaths[model.SportNCAAB]
}

// DocumentCache guarda o JSON bruto do scoreboard por alguns segundos (opcional)
type DocumentCache interface {
	GetScoreboard(ctx context.Context, sportPath string) ([]byte, bool, error)
	SetScoreboard(ctx context.Context, sportPath string, body []byte, ttl time.Duration) error
}

// Client consulta o scoreboard da ESPN.
// Não guarda estado mutável entre chamadas; pode ser usado por várias goroutines.
type Client struct {
	baseURL    string
	httpClient *http.Client
	userAgent  string
	log        *zap.Logger
	cache      DocumentCache
	cacheTTL   time.Duration
}

type Option func(*Client)

func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.httpClient = h }
}

// WithCache liga o cache do documento; ttl <= 0 mantém uma requisição por chamada
func WithCache(cache DocumentCache, ttl time.Duration) Option {
	return func(c *Client) {
		if cache != nil && ttl > 0 {
			c.cache = cache
			c.cacheTTL = ttl
		}
	}
}

// New cria o client com timeout padrão de 5s
func New(log *zap.Logger, opts ...Option) *Client {
	c := &Client{
		baseURL: BaseURL,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		userAgent: "Mozilla/5.0 (compatible; BetTracker/1.0)",
		log:       log,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FetchLiveGame procura o jogo que contém team1 ou team2 entre os eventos do esporte.
// Retorna ErrNotFound quando nenhum evento casa; erros de rede/HTTP/JSON são
// devolvidos embrulhados e o chamador deve tratá-los como "não encontrado".
func (c *Client) FetchLiveGame(ctx context.Context, team1, team2 string, sport model.Sport) (*model.LiveGame, error) {
	sb, err := c.FetchScoreboard(ctx, sport)
	if err != nil {
		return nil, err
	}

	game, matches := FindGame(sb, team1, team2)
	if matches > 1 {
		c.log.Warn("ambiguous scoreboard match, using first event",
			zap.String("team1", team1),
			zap.String("team2", team2),
			zap.String("sport", string(sport)),
			zap.Int("matches", matches),
		)
	}
	if game == nil {
		return nil, ErrNotFound
	}
	return game, nil
}

// FetchScoreboard baixa e decodifica o scoreboard atual do esporte
func (c *Client) FetchScoreboard(ctx context.Context, sport model.Sport) (*Scoreboard, error) {
	path := SportPath(sport)

	body, err := c.scoreboardBody(ctx, path)
	if err != nil {
		return nil, err
	}

	var sb Scoreboard
	if err := json.Unmarshal(body, &sb); err != nil {
		return nil, fmt.Errorf("decoding scoreboard %s: %w", path, err)
	}
	return &sb, nil
}

func (c *Client) scoreboardBody(ctx context.Context, path string) ([]byte, error) {
	if c.cache != nil {
		if b, ok, err := c.cache.GetScoreboard(ctx, path); err == nil && ok {
			return b, nil
		} else if err != nil {
			c.log.Debug("scoreboard cache get failed", zap.String("path", path), zap.Error(err))
		}
	}

	b, err := c.fetch(ctx, fmt.Sprintf("%s/%s/scoreboard", c.baseURL, path))
	if err != nil {
		return nil, err
	}

	if c.cache != nil {
		if err := c.cache.SetScoreboard(ctx, path, b, c.cacheTTL); err != nil {
			c.log.Debug("scoreboard cache set failed", zap.String("path", path), zap.Error(err))
		}
	}
	return b, nil
}

// fetch faz o GET e devolve o corpo; qualquer status fora de 2xx é erro
func (c *Client) fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("making request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("ESPN API error: status=%d, body=%s", resp.StatusCode, string(body))
	}

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	return b, nil
}

// FindGame aplica a regra de correlação: um evento casa quando team1 ou team2
// (sem diferenciar maiúsculas) aparece nos nomes dos competidores concatenados.
// O primeiro evento que casa vence; matches informa quantos casaram.
func FindGame(sb *Scoreboard, team1, team2 string) (game *model.LiveGame, matches int) {
	if sb == nil {
		return nil, 0
	}
	needles := make([]string, 0, 2)
	for _, t := range []string{team1, team2} {
		if t = strings.ToLower(strings.TrimSpace(t)); t != "" {
			needles = append(needles, t)
		}
	}
	if len(needles) == 0 {
		return nil, 0
	}

	for _, ev := range sb.Events {
		comps := ev.competitors()
		if len(comps) < 2 {
			continue
		}

		names := make([]string, 0, len(comps))
		for _, cp := range comps {
			names = append(names, strings.ToLower(cp.Team.DisplayName))
		}
		joined := strings.Join(names, " ")

		hit := false
		for _, n := range needles {
			if strings.Contains(joined, n) {
				hit = true
				break
			}
		}
		if !hit {
			continue
		}

		matches++
		if game == nil {
			game = &model.LiveGame{
				TeamA:      comps[0].Team.DisplayName,
				TeamB:      comps[1].Team.DisplayName,
				ScoreA:     int(comps[0].Score),
				ScoreB:     int(comps[1].Score),
				StatusText: ev.Status.Type.Description,
			}
		}
	}
	return game, matches
}
