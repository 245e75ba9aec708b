// Package observability lets Programs record metrics and structured logs
// as effects.
package observability

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/on-the-ground/effect_ive_runtime/effects"
	"github.com/on-the-ground/effect_ive_runtime/effects/retry"
	"go.uber.org/zap"
)

const Name = "observability"

// MetricsCollector records named metrics. Implementations create
// instruments lazily on first use.
type MetricsCollector interface {
	IncrementCounter(ctx context.Context, name string, labels map[string]string) error
	ObserveHistogram(ctx context.Context, name string, value float64, labels map[string]string) error
}

var ErrNilCollector = errors.New("observability: nil metrics collector")

type Interpreter struct {
	collector MetricsCollector
	logger    *zap.Logger
}

type Option func(*Interpreter)

// WithLogger sets the logger EmitLog effects are written to.
func WithLogger(logger *zap.Logger) Option {
	return func(i *Interpreter) { i.logger = logger }
}

func NewInterpreter(collector MetricsCollector, opts ...Option) (*Interpreter, error) {
	if collector == nil {
		return nil, ErrNilCollector
	}
	i := &Interpreter{collector: collector, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(i)
	}
	return i, nil
}

// Collector exposes the underlying collector, e.g. for the instrumentation
// decorator.
func (i *Interpreter) Collector() MetricsCollector { return i.collector }

func (i *Interpreter) Interpret(ctx context.Context, eff effects.Effect) effects.InterpretResult {
	e, ok := effects.Concrete(eff).(Effect)
	if !ok {
		return effects.Unhandled(eff, Name)
	}

	var err error
	switch e := e.(type) {
	case IncrementCounter:
		_, err = effects.Safely(func() (struct{}, error) {
			return struct{}{}, i.collector.IncrementCounter(ctx, e.Name, e.Labels)
		})
		if err == nil {
			return effects.Returned(eff, Recorded{Name: e.Name})
		}
	case ObserveHistogram:
		_, err = effects.Safely(func() (struct{}, error) {
			return struct{}{}, i.collector.ObserveHistogram(ctx, e.Name, e.Value, e.Labels)
		})
		if err == nil {
			return effects.Returned(eff, Recorded{Name: e.Name})
		}
	case EmitLog:
		i.emit(e)
		return effects.Returned(eff, Recorded{Name: string(e.Level)})
	default:
		panic(fmt.Errorf("invalid observability effect type: %T", e))
	}

	return effects.Failed(effects.NewObservabilityError(eff, err.Error(), retry.Observability.Classify(err), err))
}

func (i *Interpreter) emit(e EmitLog) {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	fields := make([]zap.Field, 0, len(keys))
	for _, k := range keys {
		fields = append(fields, zap.Any(k, e.Fields[k]))
	}

	switch e.Level {
	case LogDebug:
		i.logger.Debug(e.Message, fields...)
	case LogWarn:
		i.logger.Warn(e.Message, fields...)
	case LogError:
		i.logger.Error(e.Message, fields...)
	default:
		i.logger.Info(e.Message, fields...)
	}
}

// Log is a Program step emitting one structured log line.
func Log(yield effects.Yield, level LogLevel, msg string, fields map[string]any) {
	yield(EmitLog{Level: level, Message: msg, Fields: fields})
}
