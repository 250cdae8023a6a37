package intermediary

import "errors"

// ErrNotWaiting is returned when activation is requested outside the installed state.
var ErrNotWaiting = errors.New("intermediary: not waiting for activation")

// State is a lifecycle phase.
type State int

const (
	// StateParsed is the state before Install.
	StateParsed State = iota
	StateInstalling
	// StateInstalled means installed and waiting for activation.
	StateInstalled
	StateActivating
	// StateActivated means requests are intercepted.
	StateActivated
	// StateRedundant means install failed; requests pass through.
	StateRedundant
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateParsed:
		return "parsed"
	case StateInstalling:
		return "installing"
	case StateInstalled:
		return "installed"
	case StateActivating:
		return "activating"
	case StateActivated:
		return "activated"
	case StateRedundant:
		return "redundant"
	default:
		return "unknown"
	}
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}
