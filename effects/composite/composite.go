// Package composite chains specialized interpreters into one.
//
// The chain is a statically known registry: four required interpreters,
// four optional ones and any number of extras for new effect families.
// Each effect is offered to the configured interpreters in a fixed order;
// the first one that does not answer with an UnhandledEffectError decides
// the outcome.
package composite

import (
	"context"
	"errors"
	"fmt"

	"github.com/on-the-ground/effect_ive_runtime/effects"
	"go.uber.org/zap"
)

var ErrMissingInterpreter = errors.New("composite: missing required interpreter")

// Named is an extra interpreter registered after the built-in ones.
type Named struct {
	Name        string
	Interpreter effects.Interpreter
}

// Config holds the interpreters of one composite. Optional interpreters
// left nil are never invoked and never listed.
type Config struct {
	Database  effects.Interpreter
	Cache     effects.Interpreter
	System    effects.Interpreter
	WebSocket effects.Interpreter

	Messaging effects.Interpreter
	Storage   effects.Interpreter
	Auth      effects.Interpreter
	Metrics   effects.Interpreter

	Extra []Named
}

type Interpreter struct {
	chain  []Named
	logger *zap.Logger
}

type Option func(*Interpreter)

func WithLogger(logger *zap.Logger) Option {
	return func(i *Interpreter) { i.logger = logger }
}

func New(cfg Config, opts ...Option) (*Interpreter, error) {
	required := []Named{
		{"database", cfg.Database},
		{"cache", cfg.Cache},
		{"system", cfg.System},
		{"websocket", cfg.WebSocket},
	}
	for _, r := range required {
		if r.Interpreter == nil {
			return nil, fmt.Errorf("%w: %s", ErrMissingInterpreter, r.Name)
		}
	}

	chain := required
	for _, o := range []Named{
		{"messaging", cfg.Messaging},
		{"storage", cfg.Storage},
		{"auth", cfg.Auth},
		{"metrics", cfg.Metrics},
	} {
		if o.Interpreter != nil {
			chain = append(chain, o)
		}
	}
	for _, x := range cfg.Extra {
		if x.Interpreter == nil {
			return nil, fmt.Errorf("%w: extra %q is nil", ErrMissingInterpreter, x.Name)
		}
		chain = append(chain, x)
	}

	i := &Interpreter{chain: chain, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(i)
	}
	return i, nil
}

// Names lists the configured interpreters in dispatch order.
func (i *Interpreter) Names() []string {
	names := make([]string, len(i.chain))
	for n, c := range i.chain {
		names[n] = c.Name
	}
	return names
}

func (i *Interpreter) Interpret(ctx context.Context, eff effects.Effect) effects.InterpretResult {
	tried := make([]string, 0, len(i.chain))
	for _, c := range i.chain {
		res := c.Interpreter.Interpret(ctx, eff)
		if ierr, failed := res.Err(); failed && effects.IsUnhandled(ierr) {
			i.logger.Debug("interpreter declined effect",
				zap.String("interpreter", c.Name),
				zap.String("effect", effects.TagOf(eff)))
			tried = append(tried, c.Name)
			continue
		}
		return res
	}
	return effects.Failed(&effects.UnhandledEffectError{Eff: eff, AvailableInterpreters: tried})
}
