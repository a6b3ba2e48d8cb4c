package config

import "fmt"

// Mode selects what an intercepted operation does.
type Mode string

const (
	// ModeLive passes calls through untouched.
	ModeLive Mode = "live"

	// ModeCapture runs the real operation and records what it observed.
	ModeCapture Mode = "capture"

	// ModeReplay never runs the real operation; outcomes come from fixtures.
	ModeReplay Mode = "replay"
)

// DefaultMode is used when nothing selects a mode.
const DefaultMode = ModeReplay

// ParseMode validates s as a mode name.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(s); m {
	case ModeLive, ModeCapture, ModeReplay:
		return m, nil
	}
	return "", fmt.Errorf("unknown mode %q: want live, capture or replay", s)
}

// String implements fmt.Stringer.
func (m Mode) String() string {
	return string(m)
}
