package pipeline

import (
	"fmt"
	"log/slog"
)

// State of one request. A request starts at MenuRequested when a link
// arrives and ends at CleanedUp after a selection was handled.
type State int

const (
	MenuRequested State = iota
	FormatsListed
	SelectionReceived
	Downloading
	DownloadComplete
	DownloadFailed
	SizeCheck
	Uploading
	UploadComplete
	UploadFailed
	CleanedUp
	Failed
)

var stateNames = [...]string{
	MenuRequested:     "menu_requested",
	FormatsListed:     "formats_listed",
	SelectionReceived: "selection_received",
	Downloading:       "downloading",
	DownloadComplete:  "download_complete",
	DownloadFailed:    "download_failed",
	SizeCheck:         "size_check",
	Uploading:         "uploading",
	UploadComplete:    "upload_complete",
	UploadFailed:      "upload_failed",
	CleanedUp:         "cleaned_up",
	Failed:            "failed",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("state(%d)", int(s))
	}
	return stateNames[s]
}

// transitions lists the allowed successors of every state.
// Every failure funnels into CleanedUp so that no path skips cleanup.
var transitions = map[State][]State{
	MenuRequested:     {FormatsListed, Failed},
	FormatsListed:     {SelectionReceived, Failed},
	SelectionReceived: {Downloading, Failed},
	Downloading:       {DownloadComplete, DownloadFailed},
	DownloadComplete:  {SizeCheck},
	DownloadFailed:    {CleanedUp},
	SizeCheck:         {Uploading, Failed},
	Uploading:         {UploadComplete, UploadFailed},
	UploadComplete:    {CleanedUp},
	UploadFailed:      {CleanedUp},
	Failed:            {CleanedUp},
	CleanedUp:         nil,
}

// Terminal reports whether no transition leaves s.
func (s State) Terminal() bool {
	return len(transitions[s]) == 0
}

func transition(from, to State) error {
	for _, next := range transitions[from] {
		if next == to {
			return nil
		}
	}
	return fmt.Errorf("invalid state transition %s -> %s", from, to)
}

// machine tracks the state of one request.
type machine struct {
	state  State
	logger *slog.Logger
}

func newMachine(start State, logger *slog.Logger) *machine {
	return &machine{state: start, logger: logger}
}

// advance moves to the next state. An invalid transition is a programming
// error: it is logged and counted but the state still changes so that the
// request can finish.
func (m *machine) advance(to State) {
	if err := transition(m.state, to); err != nil {
		recordInvalidTransition()
		m.logger.Error("state machine violation", "error", err)
	}
	m.logger.Debug("state changed", "from", m.state.String(), "to", to.String())
	m.state = to
}

func (m *machine) current() State {
	return m.state
}
