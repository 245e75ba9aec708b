package effects_test

import (
	"context"
	"errors"
	"runtime"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/on-the-ground/effect_ive_runtime/effects"
	"github.com/on-the-ground/effect_ive_runtime/effects/effecttest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"golang.org/x/sync/errgroup"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type step struct {
	N int
}

func (step) EffectTag() string { return "Step" }

type label struct {
	Names map[string]string
}

func (label) EffectTag() string { return "Label" }

// countTo yields n steps and sums what they resume with.
func countTo(n int) effects.Program[int] {
	return func(yield effects.Yield) int {
		sum := 0
		for i := 1; i <= n; i++ {
			sum += effects.Perform[int](yield, step{N: i})
		}
		return sum
	}
}

// echo resumes every step with its own N.
var echo = effects.InterpreterFunc(func(_ context.Context, eff effects.Effect) effects.InterpretResult {
	s, ok := eff.(step)
	if !ok {
		return effects.Unhandled(eff, "echo")
	}
	return effects.Returned(eff, s.N)
})

func TestRun_ReturnsProgramValueAndObservesEffectsInYieldOrder(t *testing.T) {
	rec := effecttest.NewRecorder(echo)

	res := effects.Run(context.Background(), countTo(4), rec)

	v, ok := res.Value()
	require.True(t, ok)
	assert.Equal(t, 10, v)

	want := []effects.Effect{step{1}, step{2}, step{3}, step{4}}
	if diff := cmp.Diff(want, rec.Effects()); diff != "" {
		t.Fatalf("effects mismatch (-want +got):\n%s", diff)
	}
}

func TestRun_ErrStopsProgramAtFailingStep(t *testing.T) {
	failure := &effecttest.Fail{Eff: step{3}, Msg: "boom"}
	rec := effecttest.NewRecorder(effects.InterpreterFunc(func(ctx context.Context, eff effects.Effect) effects.InterpretResult {
		if eff.(step).N == 3 {
			return effects.Failed(failure)
		}
		return echo(ctx, eff)
	}))

	res := effects.Run(context.Background(), countTo(6), rec)

	ierr, failed := res.Err()
	require.True(t, failed)
	assert.Same(t, failure, ierr)
	assert.Equal(t, 3, rec.Count(), "steps after the failing one must never be interpreted")
}

func TestRun_ProgramWithoutEffectsNeverInterprets(t *testing.T) {
	rec := effecttest.NewRecorder(echo)

	res := effects.Run(context.Background(), effects.Pure("done"), rec)

	v, ok := res.Value()
	require.True(t, ok)
	assert.Equal(t, "done", v)
	assert.Zero(t, rec.Count())
}

func TestRun_DeferredCallsOfAbortedProgramRunBeforeReturn(t *testing.T) {
	cleaned := false
	prog := func(yield effects.Yield) int {
		defer func() { cleaned = true }()
		return effects.Perform[int](yield, step{1})
	}
	failing := effects.InterpreterFunc(func(_ context.Context, eff effects.Effect) effects.InterpretResult {
		return effects.Failed(&effecttest.Fail{Eff: eff, Msg: "down"})
	})

	res := effects.Run(context.Background(), prog, failing)

	assert.True(t, res.IsErr())
	assert.True(t, cleaned)
}

func TestRun_YieldFromDeferredCallOfAbortedProgramIsRefused(t *testing.T) {
	interpreted := 0
	prog := func(yield effects.Yield) int {
		defer func() { yield(step{99}) }()
		return effects.Perform[int](yield, step{1})
	}
	failing := effects.InterpreterFunc(func(_ context.Context, eff effects.Effect) effects.InterpretResult {
		interpreted++
		return effects.Failed(&effecttest.Fail{Eff: eff, Msg: "down"})
	})

	res := effects.Run(context.Background(), prog, failing)

	assert.True(t, res.IsErr())
	assert.Equal(t, 1, interpreted)
}

func TestRun_ProgramPanicIsReraised(t *testing.T) {
	prog := func(yield effects.Yield) int {
		effects.Perform[int](yield, step{1})
		panic("program bug")
	}

	assert.PanicsWithValue(t, "program bug", func() {
		effects.Run(context.Background(), prog, echo)
	})
}

func TestRun_InterpreterPanicIsReraisedWithoutLeakingTheProgram(t *testing.T) {
	panicking := effects.InterpreterFunc(func(context.Context, effects.Effect) effects.InterpretResult {
		panic("interpreter bug")
	})

	assert.PanicsWithValue(t, "interpreter bug", func() {
		effects.Run(context.Background(), countTo(2), panicking)
	})
}

func TestRun_ProgramGoexitEndsCallerGoroutine(t *testing.T) {
	rec := effecttest.NewRecorder(echo)
	returned := false
	done := make(chan struct{})
	go func() {
		defer close(done)
		effects.Run(context.Background(), func(yield effects.Yield) int {
			yield(step{N: 1})
			runtime.Goexit()
			return 0
		}, rec)
		returned = true
	}()

	<-done
	assert.False(t, returned)
	assert.Equal(t, 1, rec.Count())
}

func TestPerform_PanicsOnUnexpectedResumeType(t *testing.T) {
	prog := func(yield effects.Yield) string {
		return effects.Perform[string](yield, step{1})
	}

	assert.Panics(t, func() {
		effects.Run(context.Background(), prog, echo)
	})
}

func TestRun_ConcurrentProgramsShareOneInterpreter(t *testing.T) {
	rec := effecttest.NewRecorder(echo)

	var g errgroup.Group
	for n := 1; n <= 16; n++ {
		g.Go(func() error {
			res := effects.Run(context.Background(), countTo(n), rec)
			v, ok := res.Value()
			if !ok || v != n*(n+1)/2 {
				return errors.New("wrong sum")
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
	assert.Equal(t, 136, rec.Count())
}

func TestRun_PassesContextToInterpreter(t *testing.T) {
	type key struct{}
	ctx := context.WithValue(context.Background(), key{}, "v")
	seen := ""
	in := effects.InterpreterFunc(func(ctx context.Context, eff effects.Effect) effects.InterpretResult {
		seen, _ = ctx.Value(key{}).(string)
		return effects.Returned(eff, 0)
	})

	effects.Run(ctx, countTo(1), in)

	assert.Equal(t, "v", seen)
}

func TestSingle(t *testing.T) {
	res := effects.Run(context.Background(), effects.Single[int](step{7}), echo)

	v, ok := res.Value()
	require.True(t, ok)
	assert.Equal(t, 7, v)
}

func TestEqual(t *testing.T) {
	assert.True(t, effects.Equal(step{1}, step{1}))
	assert.False(t, effects.Equal(step{1}, step{2}))
	assert.True(t, effects.Equal(
		label{Names: map[string]string{"a": "1"}},
		label{Names: map[string]string{"a": "1"}},
	))
	assert.False(t, effects.Equal(step{1}, label{}))
}

func TestSafely(t *testing.T) {
	v, err := effects.Safely(func() (int, error) { return 1, nil })
	assert.NoError(t, err)
	assert.Equal(t, 1, v)

	cause := errors.New("inner")
	_, err = effects.Safely(func() (int, error) { panic(cause) })
	assert.ErrorIs(t, err, cause)

	v, err = effects.Safely(func() (int, error) { panic("text") })
	assert.EqualError(t, err, "panic: text")
	assert.Zero(t, v)
}

func TestConcrete(t *testing.T) {
	assert.Equal(t, step{2}, effects.Concrete(&step{2}))
	assert.Equal(t, step{2}, effects.Concrete(step{2}))

	var nilStep *step
	assert.Nil(t, effects.Concrete(nilStep))
	assert.Nil(t, effects.Concrete(nil))
}

func TestTagOf(t *testing.T) {
	var nilStep *step
	assert.Equal(t, "Step", effects.TagOf(step{1}))
	assert.Equal(t, "Step", effects.TagOf(&step{1}))
	assert.Equal(t, "<nil>", effects.TagOf(nilStep))
	assert.Equal(t, "<nil>", effects.TagOf(nil))
}
