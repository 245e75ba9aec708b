package pure_test

import (
	"context"
	"errors"
	"testing"

	"github.com/on-the-ground/effect_ive_runtime/pure"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sumTo(n, acc int) pure.Trampoline[int] {
	if n == 0 {
		return pure.Done(acc)
	}
	return pure.Continue(func() pure.Trampoline[int] { return sumTo(n-1, acc+n) })
}

func naiveSum(n int) int {
	if n == 0 {
		return 0
	}
	return n + naiveSum(n-1)
}

func TestRun_DeepRecursionIsStackSafe(t *testing.T) {
	assert.Equal(t, 100_000*100_001/2, pure.Run(sumTo(100_000, 0)))
}

func TestRun_MatchesNaiveRecursion(t *testing.T) {
	for _, n := range []int{0, 1, 2, 10, 500} {
		assert.Equal(t, naiveSum(n), pure.Run(sumTo(n, 0)), "n=%d", n)
	}
}

// isEven and isOdd are mutually recursive.
func isEven(n int) pure.Trampoline[bool] {
	if n == 0 {
		return pure.Done(true)
	}
	return pure.Continue(func() pure.Trampoline[bool] { return isOdd(n - 1) })
}

func isOdd(n int) pure.Trampoline[bool] {
	if n == 0 {
		return pure.Done(false)
	}
	return pure.Continue(func() pure.Trampoline[bool] { return isEven(n - 1) })
}

func TestRun_MutualRecursion(t *testing.T) {
	assert.True(t, pure.Run(isEven(100_000)))
	assert.True(t, pure.Run(isOdd(100_001)))
}

func TestContinue_NilNextIsDone(t *testing.T) {
	tr := pure.Continue[int](nil)
	assert.True(t, tr.IsDone())
	assert.Zero(t, pure.Run(tr))
}

func countdown(n int) pure.AsyncTrampoline[string] {
	if n == 0 {
		return pure.DoneAsync("liftoff")
	}
	return pure.ContinueAsync(func(context.Context) (pure.AsyncTrampoline[string], error) {
		return countdown(n - 1), nil
	})
}

func TestRunAsync(t *testing.T) {
	v, err := pure.RunAsync(context.Background(), countdown(100_000))
	require.NoError(t, err)
	assert.Equal(t, "liftoff", v)
}

func TestRunAsync_StopsOnStepError(t *testing.T) {
	boom := errors.New("boom")
	steps := 0
	var failAt func(n int) pure.AsyncTrampoline[int]
	failAt = func(n int) pure.AsyncTrampoline[int] {
		return pure.ContinueAsync(func(context.Context) (pure.AsyncTrampoline[int], error) {
			steps++
			if n == 0 {
				return pure.AsyncTrampoline[int]{}, boom
			}
			return failAt(n - 1), nil
		})
	}

	_, err := pure.RunAsync(context.Background(), failAt(3))

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 4, steps)
}

func TestRunAsync_HonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	steps := 0
	var forever func() pure.AsyncTrampoline[int]
	forever = func() pure.AsyncTrampoline[int] {
		return pure.ContinueAsync(func(context.Context) (pure.AsyncTrampoline[int], error) {
			steps++
			if steps == 10 {
				cancel()
			}
			return forever(), nil
		})
	}

	_, err := pure.RunAsync(ctx, forever())

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 10, steps)
}
