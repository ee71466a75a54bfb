package pick

import (
	"math"
	"strconv"
	"strings"
)

// Parse separa um pick ("Duke -5.5", "UNC +3") em token do time e spread.
// Nunca falha: spread ausente ou inválido vira 0.
func Parse(pick string) (team string, spread float64) {
	fields := strings.Fields(pick)
	if len(fields) == 0 {
		return "", 0
	}
	team = fields[0]
	if len(fields) < 2 {
		return team, 0
	}

	v, err := strconv.ParseFloat(fields[1], 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return team, 0
	}
	return team, v
}
