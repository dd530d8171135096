package future

import (
	"context"
	"errors"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fluxorio/filerepo/pkg/logging"
	"github.com/fluxorio/filerepo/pkg/reactor"
)

func newLoop(t *testing.T) *reactor.Reactor {
	t.Helper()
	r := reactor.NewReactor("future-test", 64)
	r.SetLogger(logging.Nop())
	if err := r.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { _ = r.Stop(context.Background()) })
	return r
}

func await[T any](t *testing.T, f *Future[T]) (T, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return f.Await(ctx)
}

func TestPromise_CompletesOnce(t *testing.T) {
	loop := newLoop(t)
	p := NewPromise[int](loop)

	if !p.TryComplete(1, nil) {
		t.Fatal("first completion should win")
	}
	if p.TryComplete(2, nil) {
		t.Fatal("second completion should be ignored")
	}
	p.Fail(errors.New("late"))

	v, err := await(t, p.Future)
	if err != nil || v != 1 {
		t.Fatalf("got (%d, %v), want (1, nil)", v, err)
	}
}

func TestFuture_CallbacksRunOnLoopInOrder(t *testing.T) {
	loop := newLoop(t)
	p := NewPromise[string](loop)

	var order []int
	done := make(chan struct{})
	p.OnSuccess(func(string) { order = append(order, 1) })
	p.OnSuccess(func(string) { order = append(order, 2) })
	p.OnComplete(func(string, error) {
		order = append(order, 3)
		close(done)
	})

	go p.Succeed("x")
	<-done
	if len(order) != 3 || order[0] != 1 || order[1] != 2 || order[2] != 3 {
		t.Fatalf("callbacks ran out of order: %v", order)
	}
}

func TestFuture_CallbackAfterCompletion(t *testing.T) {
	loop := newLoop(t)
	f := Succeeded(loop, 42)

	got := make(chan int, 1)
	f.OnSuccess(func(v int) { got <- v })
	select {
	case v := <-got:
		if v != 42 {
			t.Fatalf("got %d", v)
		}
	case <-time.After(time.Second):
		t.Fatal("late callback never ran")
	}
}

func TestFuture_AwaitCancelled(t *testing.T) {
	p := NewPromise[int](nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := p.Await(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestCompose_ShortCircuitsOnFailure(t *testing.T) {
	loop := newLoop(t)
	boom := errors.New("boom")
	var calls atomic.Int32

	f := FlatMap(Failed[int](loop, boom), func(v int) *Future[string] {
		calls.Add(1)
		return Succeeded(loop, strconv.Itoa(v))
	})
	g := Then(f, func(s string) (int, error) {
		calls.Add(1)
		return len(s), nil
	})
	h := Map(g, func(n int) int {
		calls.Add(1)
		return n * 2
	})

	if _, err := await(t, h); !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if calls.Load() != 0 {
		t.Fatalf("dependent steps ran %d times after failure", calls.Load())
	}
}

func TestCompose_Chain(t *testing.T) {
	loop := newLoop(t)
	f := FlatMap(Succeeded(loop, 20), func(v int) *Future[int] {
		p := NewPromise[int](loop)
		go p.Succeed(v + 1)
		return p.Future
	})
	g := Then(f, func(v int) (string, error) { return strconv.Itoa(v * 2), nil })

	v, err := await(t, g)
	if err != nil || v != "42" {
		t.Fatalf("got (%q, %v)", v, err)
	}
}

func TestCatch(t *testing.T) {
	loop := newLoop(t)
	f := Catch(Failed[int](loop, errors.New("x")), func(error) (int, error) { return 7, nil })
	if v, err := await(t, f); err != nil || v != 7 {
		t.Fatalf("got (%d, %v)", v, err)
	}

	g := FlatCatch(Succeeded(loop, 1), func(error) *Future[int] { return Succeeded(loop, 9) })
	if v, err := await(t, g); err != nil || v != 1 {
		t.Fatalf("success should pass through, got (%d, %v)", v, err)
	}
}

func TestAnd(t *testing.T) {
	loop := newLoop(t)
	pair, err := await(t, And(Succeeded(loop, 1), Succeeded(loop, "b")))
	if err != nil || pair.First != 1 || pair.Second != "b" {
		t.Fatalf("got (%+v, %v)", pair, err)
	}

	boom := errors.New("boom")
	if _, err := await(t, And(Succeeded(loop, 1), Failed[string](loop, boom))); !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
}

func TestWhenAllComplete_KeepsOrderAndFailures(t *testing.T) {
	loop := newLoop(t)
	e1 := errors.New("first")
	e3 := errors.New("third")

	slow := NewPromise[int](loop)
	fs := []*Future[int]{Failed[int](loop, e1), slow.Future, Failed[int](loop, e3)}
	go func() {
		time.Sleep(10 * time.Millisecond)
		slow.Succeed(2)
	}()

	results, err := await(t, WhenAllComplete(loop, fs))
	if err != nil {
		t.Fatalf("WhenAllComplete failed: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("got %d results", len(results))
	}
	if results[0].Err != e1 || results[1].Err != nil || results[1].Value != 2 || results[2].Err != e3 {
		t.Fatalf("unexpected results: %+v", results)
	}

	empty, err := await(t, WhenAllComplete[int](loop, nil))
	if err != nil || len(empty) != 0 {
		t.Fatalf("empty input: (%v, %v)", empty, err)
	}
}

func TestAllSucceed(t *testing.T) {
	loop := newLoop(t)
	if _, err := await(t, AllSucceed(loop, []*Future[int]{Succeeded(loop, 1), Succeeded(loop, 2)})); err != nil {
		t.Fatalf("AllSucceed: %v", err)
	}

	boom := errors.New("boom")
	if _, err := await(t, AllSucceed(loop, []*Future[int]{Succeeded(loop, 1), Failed[int](loop, boom)})); !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
}

func TestFuture_StoppedLoopDeliversInline(t *testing.T) {
	loop := reactor.NewReactor("stopped", 4)
	_ = loop.Stop(context.Background())

	p := NewPromise[int](loop)
	var got int
	p.OnSuccess(func(v int) { got = v })
	p.Succeed(5)
	if got != 5 {
		t.Fatalf("callback not run inline on stopped loop, got %d", got)
	}
}
