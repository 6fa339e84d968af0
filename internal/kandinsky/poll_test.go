package kandinsky_test

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dataset-generator/internal/kandinsky"
)

// scriptedStatusServer отдает статусы по порядку; последний повторяется.
func scriptedStatusServer(t *testing.T, statuses ...string) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var checks atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/key/api/v1/pipeline/status/"+testJobID, r.URL.Path)
		n := int(checks.Add(1))
		status := statuses[len(statuses)-1]
		if n <= len(statuses) {
			status = statuses[n-1]
		}
		if status == "DONE" {
			_, _ = fmt.Fprintf(w, `{"uuid":%q,"status":"DONE","result":{"files":["aGVsbG8="],"censored":false}}`, testJobID)
			return
		}
		_, _ = fmt.Fprintf(w, `{"uuid":%q,"status":%q}`, testJobID, status)
	}))
	t.Cleanup(ts.Close)
	return ts, &checks
}

func TestPoll_InvalidAttemptsFailsBeforeNetwork(t *testing.T) {
	ts, checks := scriptedStatusServer(t, "DONE")
	sleeper := &countingSleeper{}
	client := newTestClient(t, ts.URL, sleeper)

	for _, attempts := range []int{0, -3} {
		_, err := client.Poll(context.Background(), testJobID, kandinsky.PollOptions{MaxAttempts: attempts, Delay: time.Second})
		assert.ErrorIs(t, err, kandinsky.ErrInvalidArgument)
	}
	_, err := client.Poll(context.Background(), testJobID, kandinsky.PollOptions{MaxAttempts: 1, Delay: -time.Second})
	assert.ErrorIs(t, err, kandinsky.ErrInvalidArgument)

	assert.Equal(t, int32(0), checks.Load())
	assert.Equal(t, 0, sleeper.calls)
}

func TestPoll_SingleAttemptChecksOnceWithoutSleeping(t *testing.T) {
	ts, checks := scriptedStatusServer(t, "PROCESSING")
	sleeper := &countingSleeper{}

	res, err := newTestClient(t, ts.URL, sleeper).Poll(context.Background(), testJobID,
		kandinsky.PollOptions{MaxAttempts: 1, Delay: 10 * time.Second})
	require.NoError(t, err)

	assert.Equal(t, int32(1), checks.Load())
	assert.Equal(t, 0, sleeper.calls)
	assert.Equal(t, kandinsky.OutcomeTimedOut, res.Outcome)
	assert.Equal(t, kandinsky.StatusProcessing, res.Result.Status)
	assert.Equal(t, 1, res.Attempts)
}

func TestPoll_ReturnsDoneAfterNChecks(t *testing.T) {
	for _, n := range []int{1, 2, 5} {
		t.Run(fmt.Sprintf("done on check %d", n), func(t *testing.T) {
			script := make([]string, 0, n)
			for i := 0; i < n-1; i++ {
				script = append(script, "PROCESSING")
			}
			script = append(script, "DONE")
			ts, checks := scriptedStatusServer(t, script...)
			sleeper := &countingSleeper{}

			res, err := newTestClient(t, ts.URL, sleeper).Poll(context.Background(), testJobID,
				kandinsky.PollOptions{MaxAttempts: 10, Delay: 3 * time.Second})
			require.NoError(t, err)

			assert.True(t, res.Completed())
			assert.Equal(t, kandinsky.StatusDone, res.Result.Status)
			assert.Equal(t, []string{"aGVsbG8="}, res.Result.Files)
			assert.Equal(t, int32(n), checks.Load())
			assert.Equal(t, n, res.Attempts)
			assert.Equal(t, n-1, sleeper.calls)
			for _, d := range sleeper.delays {
				assert.Equal(t, 3*time.Second, d)
			}
		})
	}
}

func TestPoll_ExhaustionReturnsLastObservedStatus(t *testing.T) {
	ts, checks := scriptedStatusServer(t, "INITIAL", "PROCESSING", "FAIL")
	sleeper := &countingSleeper{}

	res, err := newTestClient(t, ts.URL, sleeper).Poll(context.Background(), testJobID,
		kandinsky.PollOptions{MaxAttempts: 4, Delay: time.Millisecond})
	require.NoError(t, err)

	assert.Equal(t, kandinsky.OutcomeTimedOut, res.Outcome)
	assert.Equal(t, kandinsky.StatusFail, res.Result.Status)
	assert.Equal(t, kandinsky.JobID(testJobID), res.Result.JobID)
	assert.Equal(t, int32(4), checks.Load())
	assert.Equal(t, 3, sleeper.calls)
}

func TestPoll_TransportFailureIsDistinctOutcome(t *testing.T) {
	var checks atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if checks.Add(1) == 1 {
			_, _ = io.WriteString(w, `{"uuid":"`+testJobID+`","status":"PROCESSING"}`)
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer ts.Close()

	res, err := newTestClient(t, ts.URL, &countingSleeper{}).Poll(context.Background(), testJobID,
		kandinsky.PollOptions{MaxAttempts: 5, Delay: time.Millisecond})
	require.NoError(t, err)

	assert.Equal(t, kandinsky.OutcomeTransportFailure, res.Outcome)
	assert.ErrorIs(t, res.Cause, kandinsky.ErrTransport)
	assert.Equal(t, kandinsky.StatusProcessing, res.Result.Status)
	assert.Equal(t, 2, res.Attempts)
	assert.Equal(t, int32(2), checks.Load())
}

func TestPoll_UnreachableServiceOnFirstCheck(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := ts.URL
	ts.Close()

	res, err := newTestClient(t, url, &countingSleeper{}).Poll(context.Background(), testJobID,
		kandinsky.PollOptions{MaxAttempts: 3, Delay: time.Millisecond})
	require.NoError(t, err)
	assert.Equal(t, kandinsky.OutcomeTransportFailure, res.Outcome)
	assert.Equal(t, 1, res.Attempts)
	assert.Empty(t, res.Result.Status)
}

func TestPoll_AuthErrorIsReturned(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer ts.Close()

	_, err := newTestClient(t, ts.URL, &countingSleeper{}).Poll(context.Background(), testJobID,
		kandinsky.PollOptions{MaxAttempts: 3, Delay: time.Millisecond})
	assert.ErrorIs(t, err, kandinsky.ErrAuth)
}

func TestPoll_CancelledDuringSleep(t *testing.T) {
	ts, checks := scriptedStatusServer(t, "PROCESSING")

	ctx, cancel := context.WithCancel(context.Background())
	sleeper := kandinsky.SleeperFunc(func(ctx context.Context, d time.Duration) error {
		cancel()
		return ctx.Err()
	})

	_, err := newTestClient(t, ts.URL, sleeper).Poll(ctx, testJobID,
		kandinsky.PollOptions{MaxAttempts: 5, Delay: time.Hour})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int32(1), checks.Load())
}

func TestPoll_CancelledWhileReadingStatusBody(t *testing.T) {
	release := make(chan struct{})
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"uuid":"`+testJobID+`",`)
		w.(http.Flusher).Flush()
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	t.Cleanup(ts.Close)
	t.Cleanup(func() { close(release) })

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	res, err := newTestClient(t, ts.URL, &countingSleeper{}).Poll(ctx, testJobID,
		kandinsky.PollOptions{MaxAttempts: 3, Delay: time.Second})
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.NotErrorIs(t, err, kandinsky.ErrTransport)
	assert.NotEqual(t, kandinsky.OutcomeTransportFailure, res.Outcome)
	assert.Equal(t, 1, res.Attempts)
}

func TestPoll_CancelledBeforeHeadersIsNotTransportFailure(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	t.Cleanup(ts.Close)

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)

	res, err := newTestClient(t, ts.URL, &countingSleeper{}).Poll(ctx, testJobID,
		kandinsky.PollOptions{MaxAttempts: 3, Delay: time.Second})
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, res.Outcome)
}

func TestPoll_DefaultSleeperWaitsBetweenChecks(t *testing.T) {
	ts, checks := scriptedStatusServer(t, "PROCESSING", "DONE")

	start := time.Now()
	res, err := newTestClient(t, ts.URL, nil).Poll(context.Background(), testJobID,
		kandinsky.PollOptions{MaxAttempts: 3, Delay: 20 * time.Millisecond})
	require.NoError(t, err)

	assert.True(t, res.Completed())
	assert.Equal(t, int32(2), checks.Load())
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}

func TestGenerate_SubmitsThenPolls(t *testing.T) {
	var polled atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/key/api/v1/pipeline/run":
			_, _ = io.WriteString(w, `{"uuid":"`+testJobID+`","status":"INITIAL"}`)
		case "/key/api/v1/pipeline/status/" + testJobID:
			polled.Add(1)
			_, _ = io.WriteString(w, `{"uuid":"`+testJobID+`","status":"DONE","result":{"files":["eA=="]}}`)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer ts.Close()

	id, res, err := newTestClient(t, ts.URL, &countingSleeper{}).Generate(context.Background(),
		kandinsky.SubmitRequest{Prompt: "photo of cat", Pipeline: testPipeline, Images: 1, Width: 320, Height: 320},
		kandinsky.PollOptions{MaxAttempts: 2, Delay: time.Second})
	require.NoError(t, err)
	assert.Equal(t, kandinsky.JobID(testJobID), id)
	assert.True(t, res.Completed())
	assert.Equal(t, int32(1), polled.Load())
}
