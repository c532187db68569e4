package service

import "points_bot/internal/model"

type step int

const (
	// stepRegistered: NONE -> PENDING.
	stepRegistered step = iota
	// stepConfirmed: PENDING -> CONFIRMED, award applied.
	stepConfirmed
	// stepDone: already CONFIRMED, nothing changes.
	stepDone
	// stepMismatch: PENDING, but the repeat did not pair with the first click.
	stepMismatch
)

// twoPhase is the click-then-confirm protocol shared by referrals and
// promotional tasks. The first submission registers, a matching second one
// confirms and runs award. award runs at most once per phase value.
type twoPhase struct {
	// matches reports whether a repeated submission pairs with the pending
	// one. nil accepts any repeat.
	matches func() bool
	award   func()
}

func (c twoPhase) advance(phase *model.Phase) step {
	switch *phase {
	case model.PhaseNone:
		*phase = model.PhasePending
		return stepRegistered
	case model.PhasePending:
		if c.matches != nil && !c.matches() {
			return stepMismatch
		}
		*phase = model.PhaseConfirmed
		if c.award != nil {
			c.award()
		}
		return stepConfirmed
	default:
		return stepDone
	}
}
