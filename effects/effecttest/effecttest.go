// Package effecttest provides interpreters for testing Programs without
// any backend.
package effecttest

import (
	"context"
	"sync"

	"github.com/on-the-ground/effect_ive_runtime/effects"
)

// Recorder remembers every effect it is asked to interpret, in order, and
// delegates to an inner interpreter.
type Recorder struct {
	mu    sync.Mutex
	seen  []effects.Effect
	inner effects.Interpreter
}

func NewRecorder(inner effects.Interpreter) *Recorder {
	return &Recorder{inner: inner}
}

func (r *Recorder) Interpret(ctx context.Context, eff effects.Effect) effects.InterpretResult {
	r.mu.Lock()
	r.seen = append(r.seen, eff)
	r.mu.Unlock()
	return r.inner.Interpret(ctx, eff)
}

// Effects returns a copy of the effects seen so far.
func (r *Recorder) Effects() []effects.Effect {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]effects.Effect(nil), r.seen...)
}

// Tags returns the tags of the effects seen so far.
func (r *Recorder) Tags() []string {
	seen := r.Effects()
	tags := make([]string, len(seen))
	for n, eff := range seen {
		tags[n] = effects.TagOf(eff)
	}
	return tags
}

func (r *Recorder) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.seen)
}

// Handlers answers effects by tag. Tags without a handler are unhandled.
type Handlers struct {
	Name  string
	ByTag map[string]func(eff effects.Effect) effects.InterpretResult
}

func (h Handlers) Interpret(_ context.Context, eff effects.Effect) effects.InterpretResult {
	fn, ok := h.ByTag[effects.TagOf(eff)]
	if !ok {
		return effects.Unhandled(eff, h.name())
	}
	return fn(eff)
}

func (h Handlers) name() string {
	if h.Name == "" {
		return "test"
	}
	return h.Name
}

// Constant answers every effect with Ok(value).
func Constant(value any) effects.Interpreter {
	return effects.InterpreterFunc(func(_ context.Context, eff effects.Effect) effects.InterpretResult {
		return effects.Returned(eff, value)
	})
}

// Declining answers every effect as unhandled by name.
func Declining(name string) effects.Interpreter {
	return effects.InterpreterFunc(func(_ context.Context, eff effects.Effect) effects.InterpretResult {
		return effects.Unhandled(eff, name)
	})
}

// Script answers the n-th interpreted effect with the n-th result. Running
// past the end of the script answers unhandled.
type Script struct {
	mu      sync.Mutex
	results []effects.InterpretResult
	next    int
}

func NewScript(results ...effects.InterpretResult) *Script {
	return &Script{results: results}
}

func (s *Script) Interpret(_ context.Context, eff effects.Effect) effects.InterpretResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.next >= len(s.results) {
		return effects.Unhandled(eff, "script")
	}
	res := s.results[s.next]
	s.next++
	return res
}

// Remaining reports how many scripted results were never consumed.
func (s *Script) Remaining() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.results) - s.next
}

// Fail is a test error implementing effects.InterpreterError.
type Fail struct {
	Eff       effects.Effect
	Msg       string
	Transient bool
}

func (f *Fail) Error() string          { return f.Msg }
func (f *Fail) Effect() effects.Effect { return f.Eff }
func (f *Fail) Retryable() bool        { return f.Transient }

// Collector is an in-memory observability.MetricsCollector.
type Collector struct {
	mu         sync.Mutex
	Counters   []Sample
	Histograms []Sample
	Err        error
	Panic      any
}

// Sample is one recorded metric call.
type Sample struct {
	Name   string
	Value  float64
	Labels map[string]string
}

func (c *Collector) IncrementCounter(_ context.Context, name string, labels map[string]string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Counters = append(c.Counters, Sample{Name: name, Value: 1, Labels: labels})
	return c.fail()
}

func (c *Collector) ObserveHistogram(_ context.Context, name string, value float64, labels map[string]string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Histograms = append(c.Histograms, Sample{Name: name, Value: value, Labels: labels})
	return c.fail()
}

func (c *Collector) fail() error {
	if c.Panic != nil {
		panic(c.Panic)
	}
	return c.Err
}
