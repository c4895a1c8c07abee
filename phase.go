package trafficlight

import "fmt"

type Phase string

const (
	PhaseRed   Phase = "red"
	PhaseGreen Phase = "green"
)

func (p Phase) String() string {
	return string(p)
}

// Next returns the phase a light switches to from p.
func (p Phase) Next() Phase {
	if p == PhaseRed {
		return PhaseGreen
	}
	return PhaseRed
}

func ParsePhase(s string) (Phase, error) {
	switch p := Phase(s); p {
	case PhaseRed, PhaseGreen:
		return p, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidPhase, s)
	}
}
