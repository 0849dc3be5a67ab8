package progress

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runixer/grabber/internal/telegram"
	"github.com/runixer/grabber/internal/testutil"
)

type fakeEditor struct {
	mu    sync.Mutex
	reqs  []telegram.EditMessageTextRequest
	errs  []error
	calls int
}

func (f *fakeEditor) EditMessageText(_ context.Context, req telegram.EditMessageTextRequest) (*telegram.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reqs = append(f.reqs, req)
	f.calls++
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		return nil, err
	}
	return &telegram.Message{MessageID: req.MessageID}, nil
}

func (f *fakeEditor) requests() []telegram.EditMessageTextRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]telegram.EditMessageTextRequest(nil), f.reqs...)
}

// sequenceClock returns start for the first call and start+offsets[i] after.
func sequenceClock(offsets ...time.Duration) func() time.Time {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	var mu sync.Mutex
	i := -1
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		i++
		if i == 0 {
			return start
		}
		idx := i - 1
		if idx >= len(offsets) {
			idx = len(offsets) - 1
		}
		return start.Add(offsets[idx])
	}
}

func newTestReporter(api Editor, now func() time.Time, sleep func(context.Context, time.Duration) error) *Reporter {
	return NewReporter(ReporterConfig{
		API:       api,
		ChatID:    42,
		MessageID: 7,
		Title:     "Downloading",
		Translate: fakeTranslate,
		Throttle:  Throttle{Interval: 5 * time.Second},
		QueueSize: 64,
		Logger:    testutil.TestLogger(),
		Now:       now,
		Sleep:     sleep,
	})
}

func TestReporter_EmitsOnBoundariesAndCompletion(t *testing.T) {
	editor := &fakeEditor{}
	r := newTestReporter(editor,
		sequenceClock(time.Second, 5*time.Second, 7*time.Second, 10*time.Second, 12*time.Second),
		nil)
	r.Start(context.Background())

	r.Send(Sample{Transferred: 10, Total: 100})
	r.Send(Sample{Transferred: 20, Total: 100})
	r.Send(Sample{Transferred: 30, Total: 100})
	r.Send(Sample{Transferred: 40, Total: 100})
	r.Send(Sample{Transferred: 100, Total: 100})
	r.Close()

	reqs := editor.requests()
	require.Len(t, reqs, 3)
	for _, req := range reqs {
		assert.Equal(t, int64(42), req.ChatID)
		assert.Equal(t, 7, req.MessageID)
		assert.Nil(t, req.ReplyMarkup)
	}
	assert.Contains(t, reqs[0].Text, "progress.percent[20.00]")
	assert.Contains(t, reqs[1].Text, "progress.percent[40.00]")
	assert.Contains(t, reqs[2].Text, "progress.percent[100.00]")
}

func TestReporter_RateLimitWaitsExactlyRetryAfter(t *testing.T) {
	editor := &fakeEditor{errs: []error{
		&telegram.APIError{Method: "editMessageText", Code: 429, Description: "Too Many Requests", RetryAfter: 3 * time.Second},
	}}

	var slept []time.Duration
	sleep := func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}

	r := newTestReporter(editor, sequenceClock(5*time.Second), sleep)
	r.Start(context.Background())
	r.Send(Sample{Transferred: 1, Total: 10})
	r.Close()

	assert.Equal(t, []time.Duration{3 * time.Second}, slept)
	assert.Equal(t, 2, editor.calls)
}

func TestReporter_NotModifiedAndErrorsAreNotRetried(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"not modified", &telegram.APIError{Code: 400, Description: "Bad Request: message is not modified"}},
		{"other api error", &telegram.APIError{Code: 400, Description: "Bad Request: message to edit not found"}},
		{"transport error", errors.New("connection reset")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			editor := &fakeEditor{errs: []error{tt.err}}
			r := newTestReporter(editor, sequenceClock(5*time.Second), nil)
			r.Start(context.Background())
			r.Send(Sample{Transferred: 1, Total: 10})
			r.Close()

			assert.Equal(t, 1, editor.calls)
		})
	}
}

func TestReporter_SkipsIdenticalText(t *testing.T) {
	editor := &fakeEditor{}
	r := newTestReporter(editor, sequenceClock(5*time.Second, 5*time.Second), nil)
	r.Start(context.Background())
	r.Send(Sample{Phase: Finished, Transferred: 10, Total: 10})
	r.Send(Sample{Phase: Finished, Transferred: 10, Total: 10})
	r.Close()

	assert.Equal(t, 1, editor.calls)
}

func TestReporter_SendAfterClose(t *testing.T) {
	editor := &fakeEditor{}
	r := newTestReporter(editor, sequenceClock(5*time.Second), nil)
	r.Start(context.Background())
	r.Close()

	assert.NotPanics(t, func() {
		r.Send(Sample{Phase: Finished})
		r.UploadFunc()(10, 10)
		r.Close()
	})
	assert.Zero(t, editor.calls)
}

func TestReporter_UploadFunc(t *testing.T) {
	editor := &fakeEditor{}
	r := newTestReporter(editor, sequenceClock(3*time.Second), nil)
	r.Start(context.Background())

	fn := r.UploadFunc()
	fn(50, 50)
	r.Close()

	reqs := editor.requests()
	require.Len(t, reqs, 1)
	assert.Contains(t, reqs[0].Text, "progress.size[50 B 50 B]")
}

func TestLimiterPool(t *testing.T) {
	pool := NewLimiterPool(1, 1)
	a := pool.Get(1)
	assert.Same(t, a, pool.Get(1))
	assert.NotSame(t, a, pool.Get(2))

	unlimited := NewLimiterPool(0, 0)
	l := unlimited.Get(1)
	for i := 0; i < 100; i++ {
		assert.True(t, l.Allow())
	}
}
