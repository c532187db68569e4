package model

import "fmt"

// Phase is the state of a click-then-confirm protocol. Referrals read it as
// NONE/PENDING/CONFIRMED, tasks as NONE/CLICKED/COMPLETED.
type Phase int

const (
	PhaseNone Phase = iota
	PhasePending
	PhaseConfirmed
)

const (
	TaskPhaseClicked   = PhasePending
	TaskPhaseCompleted = PhaseConfirmed
)

func (p Phase) String() string {
	switch p {
	case PhaseNone:
		return "none"
	case PhasePending:
		return "pending"
	case PhaseConfirmed:
		return "confirmed"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

func ParsePhase(s string) (Phase, error) {
	switch s {
	case "", "none":
		return PhaseNone, nil
	case "pending", "clicked":
		return PhasePending, nil
	case "confirmed", "completed":
		return PhaseConfirmed, nil
	default:
		return PhaseNone, fmt.Errorf("unknown phase %q", s)
	}
}

func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

func (p *Phase) UnmarshalText(text []byte) error {
	parsed, err := ParsePhase(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}
