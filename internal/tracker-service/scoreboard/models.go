package scoreboard

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Scoreboard é o subconjunto da resposta /scoreboard da ESPN usado pelo tracker.
// Campos ausentes decodificam para zero values.
type Scoreboard struct {
	Events []Event `json:"events"`
}

type Event struct {
	ID           string        `json:"id"`
	Name         string        `json:"name"`
	Competitions []Competition `json:"competitions"`
	Status       Status        `json:"status"`
}

type Competition struct {
	Competitors []Competitor `json:"competitors"`
}

type Competitor struct {
	HomeAway string `json:"homeAway"`
	Team     Team   `json:"team"`
	Score    Score  `json:"score"`
}

type Team struct {
	DisplayName  string `json:"displayName"`
	Abbreviation string `json:"abbreviation"`
}

type Status struct {
	Type StatusType `json:"type"`
}

type StatusType struct {
	State       string `json:"state"` // pre | in | post
	Completed   bool   `json:"completed"`
	Description string `json:"description"`
}

// Score aceita "70", 70, null ou ausente. Qualquer valor inválido vira 0.
type Score int

// maxScore limita placares absurdos da fonte; acima disso o valor é tratado como inválido
const maxScore = math.MaxInt32

func (s *Score) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*s = 0
		return nil
	}

	raw := string(b)
	if b[0] == '"' {
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			*s = 0
			return nil
		}
		raw = strings.TrimSpace(str)
	}

	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(f) || f < 0 || f > maxScore {
		*s = 0
		return nil
	}
	*s = Score(int(f))
	return nil
}

// competitors devolve os competidores da primeira competição do evento
func (e Event) competitors() []Competitor {
	if len(e.Competitions) == 0 {
		return nil
	}
	return e.Competitions[0].Competitors
}
