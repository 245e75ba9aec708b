// Package instrument decorates an interpreter with interpretation metrics.
package instrument

import (
	"context"
	"fmt"
	"time"

	"github.com/on-the-ground/effect_ive_runtime/effects"
	"github.com/on-the-ground/effect_ive_runtime/effects/observability"
	"go.uber.org/zap"
)

const (
	CounterName   = "effect_interpretations_total"
	HistogramName = "effect_interpretation_duration_seconds"

	OutcomeOK    = "ok"
	OutcomeError = "error"
)

// Interpreter wraps an inner interpreter and records one counter increment
// and one duration observation per interpreted effect.
//
// Metric recording never changes the inner result: collector errors and
// panics are logged at debug level and dropped.
type Interpreter struct {
	inner     effects.Interpreter
	collector observability.MetricsCollector
	now       func() time.Time
	logger    *zap.Logger
}

type Option func(*Interpreter)

func WithClock(now func() time.Time) Option {
	return func(i *Interpreter) { i.now = now }
}

func WithLogger(logger *zap.Logger) Option {
	return func(i *Interpreter) { i.logger = logger }
}

func New(inner effects.Interpreter, collector observability.MetricsCollector, opts ...Option) *Interpreter {
	i := &Interpreter{
		inner:     inner,
		collector: collector,
		now:       time.Now,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

func (i *Interpreter) Interpret(ctx context.Context, eff effects.Effect) effects.InterpretResult {
	var res effects.InterpretResult
	span := effects.Measure(i.now, func() {
		res = i.inner.Interpret(ctx, eff)
	})

	outcome := OutcomeOK
	if res.IsErr() {
		outcome = OutcomeError
	}
	labels := map[string]string{"effect": effects.TagOf(eff), "outcome": outcome}

	i.record(CounterName, func() error {
		return i.collector.IncrementCounter(ctx, CounterName, labels)
	})
	i.record(HistogramName, func() error {
		return i.collector.ObserveHistogram(ctx, HistogramName, span.Duration().Seconds(), labels)
	})
	return res
}

func (i *Interpreter) record(metric string, fn func() error) {
	if i.collector == nil {
		return
	}
	if _, err := effects.Safely(func() (struct{}, error) { return struct{}{}, fn() }); err != nil {
		i.logger.Debug("failed to record metric",
			zap.String("metric", metric), zap.Error(fmt.Errorf("instrument: %w", err)))
	}
}
