// Package session owns the client state: which screen is active, the
// current session identifier, plan, result and streamed output, plus
// the dispatch of backend messages and the user actions that mutate
// that state.
package session

import (
	"fmt"
	"time"

	"github.com/eternisai/deepr-console/internal/protocol"
)

// Screen is one console surface. Exactly one screen is active at a
// time; switching screens never mutates plan, result or output.
type Screen string

const (
	ScreenMain     Screen = "main"
	ScreenPlan     Screen = "plan"
	ScreenResearch Screen = "research"
	ScreenAbout    Screen = "about"
)

// Valid reports whether s names one of the four screens.
func (s Screen) Valid() bool {
	switch s {
	case ScreenMain, ScreenPlan, ScreenResearch, ScreenAbout:
		return true
	}
	return false
}

// ParseScreen maps user input to a Screen.
func ParseScreen(name string) (Screen, error) {
	s := Screen(name)
	if !s.Valid() {
		return "", fmt.Errorf("unknown screen %q", name)
	}
	return s, nil
}

// LogEntry is one line of the append-only status log.
type LogEntry struct {
	Time    time.Time
	Message string
}

// State is a copy of the client state at one point in time. The
// manager owns the live fields; Snapshot hands out State values.
type State struct {
	SessionID string
	Screen    Screen
	Depth     protocol.Depth
	Topic     string
	Plan      *protocol.Plan
	Result    *protocol.Result
	Status    string
	Output    string
	Progress  int
	Log       []LogEntry
}
