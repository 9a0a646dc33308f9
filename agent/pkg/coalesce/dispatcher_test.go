package coalesce_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Avexra-AI/SAS-Chatbot/agent/pkg/coalesce"
	chattesting "github.com/Avexra-AI/SAS-Chatbot/utils/pkg/testing"
	"github.com/stretchr/testify/require"
)

type answer struct {
	Text string
	Rows int
}

func TestDispatch_ConcurrentCallsShareOneExecution(t *testing.T) {
	t.Parallel()

	d := coalesce.New[answer](chattesting.NewLogger())
	const n = 16
	const question = "What are total sales by customer?"

	var calls atomic.Int32
	release := make(chan struct{})
	fn := func(ctx context.Context) (answer, error) {
		calls.Add(1)
		<-release
		return answer{Text: "ok", Rows: 3}, nil
	}

	results := make([]answer, n)
	errs := make([]error, n)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		results[0], errs[0] = d.Dispatch(context.Background(), question, fn)
	}()
	require.Eventually(t, func() bool { return d.Waiters(question) == 0 }, time.Second, time.Millisecond)

	for i := 1; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = d.Dispatch(context.Background(), question, fn)
		}(i)
	}
	require.Eventually(t, func() bool { return d.Waiters(question) == n-1 }, 2*time.Second, time.Millisecond)

	close(release)
	wg.Wait()

	require.Equal(t, int32(1), calls.Load())
	for i := range n {
		require.NoError(t, errs[i])
		require.Equal(t, answer{Text: "ok", Rows: 3}, results[i])
	}
	require.Zero(t, d.InFlight())
	require.Equal(t, -1, d.Waiters(question))
}

func TestDispatch_NormalizesQuestion(t *testing.T) {
	t.Parallel()

	d := coalesce.New[int](chattesting.NewLogger())
	var calls atomic.Int32
	release := make(chan struct{})
	fn := func(context.Context) (int, error) {
		calls.Add(1)
		<-release
		return 7, nil
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, _ = d.Dispatch(context.Background(), "Top customers", fn)
	}()
	require.Eventually(t, func() bool { return d.InFlight() == 1 }, time.Second, time.Millisecond)

	var got int
	go func() {
		defer wg.Done()
		got, _ = d.Dispatch(context.Background(), "  TOP CUSTOMERS\n", fn)
	}()
	require.Eventually(t, func() bool { return d.Waiters("top customers") == 1 }, time.Second, time.Millisecond)

	close(release)
	wg.Wait()
	require.Equal(t, int32(1), calls.Load())
	require.Equal(t, 7, got)
}

func TestDispatch_SequentialCallsExecuteAgain(t *testing.T) {
	t.Parallel()

	d := coalesce.New[int](chattesting.NewLogger())
	var calls atomic.Int32
	fn := func(context.Context) (int, error) {
		return int(calls.Add(1)), nil
	}

	first, err := d.Dispatch(context.Background(), "q", fn)
	require.NoError(t, err)
	second, err := d.Dispatch(context.Background(), "q", fn)
	require.NoError(t, err)

	require.Equal(t, 1, first)
	require.Equal(t, 2, second)
	require.Equal(t, int32(2), calls.Load())
}

func TestDispatch_ErrorIsSharedWithWaiters(t *testing.T) {
	t.Parallel()

	d := coalesce.New[string](chattesting.NewLogger())
	boom := errors.New("database unavailable")
	release := make(chan struct{})
	fn := func(context.Context) (string, error) {
		<-release
		return "", boom
	}

	var wg sync.WaitGroup
	errs := make([]error, 3)
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, errs[0] = d.Dispatch(context.Background(), "q", fn)
	}()
	require.Eventually(t, func() bool { return d.InFlight() == 1 }, time.Second, time.Millisecond)
	for i := 1; i < 3; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = d.Dispatch(context.Background(), "q", fn)
		}(i)
	}
	require.Eventually(t, func() bool { return d.Waiters("q") == 2 }, time.Second, time.Millisecond)

	close(release)
	wg.Wait()
	for _, err := range errs {
		require.ErrorIs(t, err, boom)
	}
	require.Zero(t, d.InFlight())
}

func TestDispatch_WaiterCancellationDoesNotCancelExecution(t *testing.T) {
	t.Parallel()

	d := coalesce.New[string](chattesting.NewLogger())
	release := make(chan struct{})
	var sawCancel atomic.Bool
	fn := func(ctx context.Context) (string, error) {
		<-release
		if ctx.Err() != nil {
			sawCancel.Store(true)
		}
		return "done", nil
	}

	execCtx, cancelExec := context.WithCancel(context.Background())
	var execResult string
	var execErr error
	execDone := make(chan struct{})
	go func() {
		defer close(execDone)
		execResult, execErr = d.Dispatch(execCtx, "q", fn)
	}()
	require.Eventually(t, func() bool { return d.InFlight() == 1 }, time.Second, time.Millisecond)

	waitCtx, cancelWait := context.WithCancel(context.Background())
	waitDone := make(chan error, 1)
	go func() {
		_, err := d.Dispatch(waitCtx, "q", fn)
		waitDone <- err
	}()
	require.Eventually(t, func() bool { return d.Waiters("q") == 1 }, time.Second, time.Millisecond)

	cancelWait()
	require.ErrorIs(t, <-waitDone, context.Canceled)
	require.Equal(t, 0, d.Waiters("q"))

	// The executing caller stops waiting on its own cancellation, but the
	// shared work keeps running for callers still attached.
	type outcome struct {
		v   string
		err error
	}
	lateDone := make(chan outcome, 1)
	go func() {
		v, err := d.Dispatch(context.Background(), "q", fn)
		lateDone <- outcome{v, err}
	}()
	require.Eventually(t, func() bool { return d.Waiters("q") == 1 }, time.Second, time.Millisecond)

	cancelExec()
	<-execDone
	require.ErrorIs(t, execErr, context.Canceled)
	require.Empty(t, execResult)
	require.Equal(t, 1, d.InFlight())

	close(release)
	late := <-lateDone
	require.NoError(t, late.err)
	require.Equal(t, "done", late.v)
	require.False(t, sawCancel.Load())
	require.Eventually(t, func() bool { return d.InFlight() == 0 }, time.Second, time.Millisecond)
}

func TestDispatch_ExecutorDeadline(t *testing.T) {
	t.Parallel()

	d := coalesce.New[string](chattesting.NewLogger())
	release := make(chan struct{})
	finished := make(chan struct{})
	fn := func(context.Context) (string, error) {
		defer close(finished)
		<-release
		return "late", nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	start := time.Now()
	_, err := d.Dispatch(ctx, "slow question", fn)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Less(t, time.Since(start), time.Second)

	close(release)
	<-finished
	require.Eventually(t, func() bool { return d.InFlight() == 0 }, time.Second, time.Millisecond)
}

func TestDispatch_PanicReleasesWaiters(t *testing.T) {
	t.Parallel()

	d := coalesce.New[int](chattesting.NewLogger())
	release := make(chan struct{})
	fn := func(context.Context) (int, error) {
		<-release
		panic("kaboom")
	}

	panicked := make(chan any, 1)
	go func() {
		defer func() { panicked <- recover() }()
		_, _ = d.Dispatch(context.Background(), "q", fn)
	}()
	require.Eventually(t, func() bool { return d.InFlight() == 1 }, time.Second, time.Millisecond)

	waitErr := make(chan error, 1)
	go func() {
		_, err := d.Dispatch(context.Background(), "q", fn)
		waitErr <- err
	}()
	require.Eventually(t, func() bool { return d.Waiters("q") == 1 }, time.Second, time.Millisecond)

	close(release)
	require.Equal(t, "kaboom", <-panicked)
	err := <-waitErr
	require.Error(t, err)
	require.Contains(t, err.Error(), "kaboom")
	require.Zero(t, d.InFlight())
}

func TestFingerprint(t *testing.T) {
	t.Parallel()

	require.Equal(t, coalesce.Fingerprint("Sales by Month"), coalesce.Fingerprint("  sales BY month "))
	require.NotEqual(t, coalesce.Fingerprint("sales by month"), coalesce.Fingerprint("sales by year"))
	require.Len(t, coalesce.Fingerprint(""), 64)
}
