package session

// Status is the connection state of a session.
type Status string

const (
	StatusDisconnected Status = "disconnected"
	StatusConnecting   Status = "connecting"

	// StatusSyncing means the channel is open and catch-up is in progress.
	StatusSyncing Status = "syncing"
	StatusSynced  Status = "synced"

	// StatusConflict means a divergent history awaits Resolve.
	StatusConflict Status = "conflict"
	StatusError    Status = "error"
)
