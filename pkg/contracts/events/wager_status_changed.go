package events

import "time"

// Evento emitido pelo tracker-service quando o label de uma aposta muda entre dois passes
type WagerStatusChanged struct {
	WagerID        string    `json:"wager_id"`
	Sport          string    `json:"sport"`
	Teams          string    `json:"teams"`
	Pick           string    `json:"pick"`
	OldStatus      string    `json:"old_status"` // label anterior, ex: "⏳ Pending"
	NewStatus      string    `json:"new_status"` // label novo, ex: "✅ Won"
	Status         string    `json:"status"`     // PENDING | LIVE | WON | LOST | PUSH
	WinProbability int       `json:"win_probability"`
	Ts             time.Time `json:"ts"`
}
