package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alexbilevskiy/tgdesk/internal/backend/backendtest"
	"github.com/alexbilevskiy/tgdesk/internal/metrics"
	"github.com/alexbilevskiy/tgdesk/internal/tdlib"
)

const okJSON = `{"@type":"ok"}`

func newTestDispatcher(t *testing.T, push Callback, opts ...Option) (*Dispatcher, *backendtest.Fake, *metrics.Metrics) {
	t.Helper()
	fake := backendtest.New()
	m := metrics.New(nil)
	opts = append([]Option{
		WithPollTimeout(20 * time.Millisecond),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithMetrics(m),
	}, opts...)
	d := New(fake, push, opts...)
	t.Cleanup(func() {
		_ = d.Shutdown(context.Background())
	})

	return d, fake, m
}

func waitFor(t *testing.T, ch <-chan tdlib.Response) tdlib.Response {
	t.Helper()
	select {
	case r := <-ch:
		return r
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for response")
	}

	return tdlib.Response{}
}

func TestIDsStartAtOneAndIncrease(t *testing.T) {
	d, _, _ := newTestDispatcher(t, nil)

	var prev uint64
	for i := 0; i < 10; i++ {
		id, err := d.Submit(tdlib.GetUser{UserID: int64(i)}, nil)
		require.NoError(t, err)
		if i == 0 {
			assert.Equal(t, uint64(1), id)
		} else {
			assert.Greater(t, id, prev)
		}
		prev = id
	}
}

func TestConcurrentSubmitUniqueIDs(t *testing.T) {
	d, _, _ := newTestDispatcher(t, nil)

	var mu sync.Mutex
	seen := make(map[uint64]bool)
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				id, err := d.Submit(tdlib.GetChat{ChatID: 1}, func(tdlib.Response) {})
				if err != nil {
					t.Error(err)
					return
				}
				mu.Lock()
				seen[id] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Len(t, seen, 800)
	assert.False(t, seen[0])
	assert.Equal(t, 800, d.Pending())
}

func TestRepliesRoutedToTheirCallbacks(t *testing.T) {
	d, fake, m := newTestDispatcher(t, nil)
	d.Start()

	first := make(chan tdlib.Response, 2)
	second := make(chan tdlib.Response, 2)
	id1, err := d.Submit(tdlib.GetUser{UserID: 1}, func(r tdlib.Response) { first <- r })
	require.NoError(t, err)
	id2, err := d.Submit(tdlib.GetUser{UserID: 2}, func(r tdlib.Response) { second <- r })
	require.NoError(t, err)

	fake.Reply(id2, `{"@type":"user","id":2,"first_name":"Bob"}`)
	fake.Reply(id1, `{"@type":"error","code":400,"message":"bad"}`)

	r2 := waitFor(t, second)
	assert.Equal(t, id2, r2.RequestID)
	u, ok := r2.Payload.(*tdlib.User)
	require.True(t, ok, "got %T", r2.Payload)
	assert.Equal(t, "Bob", u.FirstName)

	r1 := waitFor(t, first)
	_, isErr := r1.Payload.(*tdlib.Error)
	assert.True(t, isErr)

	assert.Equal(t, 0, d.Pending())
	assert.Equal(t, float64(2), testutil.ToFloat64(m.Responses.WithLabelValues(metrics.RouteReply)))
}

func TestCallbackInvokedOnce(t *testing.T) {
	d, fake, m := newTestDispatcher(t, nil)
	d.Start()

	got := make(chan tdlib.Response, 4)
	id, err := d.Submit(tdlib.GetChat{ChatID: 1}, func(r tdlib.Response) { got <- r })
	require.NoError(t, err)

	fake.Reply(id, okJSON)
	fake.Reply(id, okJSON)
	waitFor(t, got)

	assert.Eventually(t, func() bool {
		return testutil.ToFloat64(m.Responses.WithLabelValues(metrics.RouteOrphan)) == 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.Len(t, got, 0)
}

func TestCallbackMaySubmit(t *testing.T) {
	d, fake, _ := newTestDispatcher(t, nil)
	d.Start()

	second := make(chan tdlib.Response, 1)
	submitErr := make(chan error, 1)
	id, err := d.Submit(tdlib.GetChat{ChatID: 1}, func(tdlib.Response) {
		// runs on the polling goroutine
		id2, err := d.Submit(tdlib.GetChat{ChatID: 2}, func(r tdlib.Response) { second <- r })
		if err == nil {
			fake.Reply(id2, okJSON)
		}
		submitErr <- err
	})
	require.NoError(t, err)

	fake.Reply(id, okJSON)
	r := waitFor(t, second)
	require.NoError(t, <-submitErr)
	_, ok := r.Payload.(*tdlib.Ok)
	assert.True(t, ok)
	assert.Equal(t, 0, d.Pending())
}

func TestFastReplyFindsCallback(t *testing.T) {
	d, fake, _ := newTestDispatcher(t, nil)
	fake.OnSend(func(s backendtest.Sent) {
		// reply lands before Submit returns
		fake.Reply(s.RequestID, okJSON)
	})
	d.Start()

	got := make(chan tdlib.Response, 1)
	_, err := d.Submit(tdlib.OpenChat{ChatID: 3}, func(r tdlib.Response) { got <- r })
	require.NoError(t, err)

	r := waitFor(t, got)
	_, ok := r.Payload.(*tdlib.Ok)
	assert.True(t, ok)
}

func TestPushesGoToSink(t *testing.T) {
	pushes := make(chan tdlib.Response, 4)
	d, fake, _ := newTestDispatcher(t, func(r tdlib.Response) { pushes <- r })
	d.Start()

	fake.Push(`{"@type":"updateChatTitle","chat_id":5,"title":"New"}`)
	fake.Push(`{"@type":"updateBrandNew"}`)

	r := waitFor(t, pushes)
	upd, ok := r.Payload.(*tdlib.UpdateChatTitle)
	require.True(t, ok)
	assert.Equal(t, "New", upd.Title)

	r = waitFor(t, pushes)
	_, ok = r.Payload.(*tdlib.Unknown)
	assert.True(t, ok)
}

func TestOrphanReplyDropped(t *testing.T) {
	pushes := make(chan tdlib.Response, 1)
	d, fake, m := newTestDispatcher(t, func(r tdlib.Response) { pushes <- r })
	d.Start()

	fake.Reply(999, okJSON)

	assert.Eventually(t, func() bool {
		return testutil.ToFloat64(m.Responses.WithLabelValues(metrics.RouteOrphan)) == 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.Len(t, pushes, 0)
}

func TestPollErrorsAreEmptyPolls(t *testing.T) {
	pushes := make(chan tdlib.Response, 1)
	d, fake, m := newTestDispatcher(t, func(r tdlib.Response) { pushes <- r })
	d.Start()

	fake.Fail(errors.New("connection reset"))
	fake.Push(`{"@type":"updateChatTitle","chat_id":5,"title":"after"}`)

	waitFor(t, pushes)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.PollErrors))
}

func TestSubmitFailureRemovesEntry(t *testing.T) {
	d, fake, m := newTestDispatcher(t, nil)
	fake.FailSends(errors.New("queue full"))

	called := false
	id, err := d.Submit(tdlib.GetUser{UserID: 1}, func(tdlib.Response) { called = true })
	require.Error(t, err)
	assert.Equal(t, uint64(0), id)
	assert.Equal(t, 0, d.Pending())
	assert.Equal(t, float64(1), testutil.ToFloat64(m.SubmitFailures))

	fake.FailSends(nil)
	id, err = d.Submit(tdlib.GetUser{UserID: 1}, nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), id, "rejected ids are not reused")
	assert.False(t, called)
}

func TestShutdownDropsPendingWithoutInvoking(t *testing.T) {
	d, fake, _ := newTestDispatcher(t, nil)
	d.Start()

	var mu sync.Mutex
	calls := 0
	for i := 0; i < 5; i++ {
		_, err := d.Submit(tdlib.GetUser{UserID: int64(i)}, func(tdlib.Response) {
			mu.Lock()
			calls++
			mu.Unlock()
		})
		require.NoError(t, err)
	}

	start := time.Now()
	require.NoError(t, d.Shutdown(context.Background()))
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, 0, d.Pending())

	// late replies find nothing
	for _, s := range fake.Sent() {
		fake.Reply(s.RequestID, okJSON)
	}
	time.Sleep(50 * time.Millisecond)
	mu.Lock()
	assert.Equal(t, 0, calls)
	mu.Unlock()

	_, err := d.Submit(tdlib.GetUser{UserID: 1}, nil)
	assert.ErrorIs(t, err, ErrStopped)
	require.NoError(t, d.Shutdown(context.Background()))
}

func TestGracefulShutdownSendsClose(t *testing.T) {
	d, fake, _ := newTestDispatcher(t, nil, WithGracefulClose())
	d.Start()

	require.NoError(t, d.Shutdown(context.Background()))

	last, ok := fake.Last()
	require.True(t, ok)
	assert.Equal(t, "close", last.Function.Type())
}

func TestShutdownBeforeStart(t *testing.T) {
	d, _, _ := newTestDispatcher(t, nil)
	_, err := d.Submit(tdlib.GetUser{UserID: 1}, func(tdlib.Response) {})
	require.NoError(t, err)

	require.NoError(t, d.Shutdown(context.Background()))
	assert.Equal(t, 0, d.Pending())
}

func ExampleDispatcher_Submit() {
	fake := backendtest.New()
	d := New(fake, nil, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	id, _ := d.Submit(tdlib.GetUser{UserID: 42}, func(tdlib.Response) {})
	fmt.Println(id, d.Pending())
	// Output: 1 1
}
