// Package system supplies the current time and fresh identifiers as effects,
// so even clock reads and id generation can be replaced in tests.
package system

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/on-the-ground/effect_ive_runtime/effects"
)

const Name = "system"

// Effect is the sealed set of system effects.
type Effect interface {
	effects.Effect
	systemEffect()
}

// GetCurrentTime resumes with a time.Time.
type GetCurrentTime struct{}

func (GetCurrentTime) EffectTag() string { return "GetCurrentTime" }
func (GetCurrentTime) systemEffect()     {}

// GenerateUUID resumes with a uuid.UUID.
type GenerateUUID struct{}

func (GenerateUUID) EffectTag() string { return "GenerateUUID" }
func (GenerateUUID) systemEffect()     {}

// Interpreter has no backend and never fails.
type Interpreter struct {
	now   func() time.Time
	newID func() uuid.UUID
}

type Option func(*Interpreter)

func WithClock(now func() time.Time) Option {
	return func(i *Interpreter) { i.now = now }
}

func WithIDSource(newID func() uuid.UUID) Option {
	return func(i *Interpreter) { i.newID = newID }
}

func NewInterpreter(opts ...Option) *Interpreter {
	i := &Interpreter{
		now:   func() time.Time { return time.Now().UTC() },
		newID: uuid.New,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

func (i *Interpreter) Interpret(_ context.Context, eff effects.Effect) effects.InterpretResult {
	e, ok := effects.Concrete(eff).(Effect)
	if !ok {
		return effects.Unhandled(eff, Name)
	}

	switch e := e.(type) {
	case GetCurrentTime:
		return effects.Returned(eff, i.now())
	case GenerateUUID:
		return effects.Returned(eff, i.newID())
	default:
		panic(fmt.Errorf("invalid system effect type: %T", e))
	}
}

// Now is a Program step reading the current time.
func Now(yield effects.Yield) time.Time {
	return effects.Perform[time.Time](yield, GetCurrentTime{})
}

// NewUUID is a Program step generating a fresh identifier.
func NewUUID(yield effects.Yield) uuid.UUID {
	return effects.Perform[uuid.UUID](yield, GenerateUUID{})
}
