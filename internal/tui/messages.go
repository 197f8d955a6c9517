package tui

import "github.com/garrettladley/notisync/internal/xsync"

// refreshMsg asks the model to re-read the engine. It carries no data, so
// dropping one while another is queued loses nothing.
type refreshMsg struct{}

type systemMsg struct {
	Message string
}

type mutationFailedMsg struct {
	Err xsync.MutationError
}

type mutationDoneMsg struct {
	Err error
}
