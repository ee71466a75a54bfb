package topics

const (
	// Wagers
	WagerStatusChanged = "wager_status_changed"

	// DLQs
	WagerStatusChangedDLQ = "wager_status_changed_dlq"
)
