package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aatumaykin/cryptopilot/internal/cycle"
	"github.com/aatumaykin/cryptopilot/internal/handlers"
	"github.com/aatumaykin/cryptopilot/internal/schedule"
	"github.com/aatumaykin/cryptopilot/internal/tracker"
)

func TestMetrics_Cycles(t *testing.T) {
	m := New("")

	m.ObserveCycle("main", cycle.StatusSuccess, 2*time.Second)
	m.ObserveCycle("main", cycle.StatusSuccess, time.Second)
	m.ObserveCycle("main", cycle.StatusSkipped, 0)
	m.ObserveCycle("polls", cycle.StatusPanic, time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.cycleRuns.WithLabelValues("main", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.cycleRuns.WithLabelValues("main", "skipped")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.cycleRuns.WithLabelValues("polls", "panic")))
	// skipped runs are not timed
	assert.Equal(t, 2, testutil.CollectAndCount(m.cycleDuration))
}

func TestMetrics_Actions(t *testing.T) {
	m := New("")

	m.ObserveAction("post", handlers.OutcomeSuccess)
	m.ObserveAction("post", handlers.OutcomeSuccess)
	m.ObserveAction("post", handlers.OutcomeDuplicate)
	m.ObserveAction("retweet", handlers.OutcomeFail)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.actions.WithLabelValues("post", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.actions.WithLabelValues("post", "duplicate")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.actions.WithLabelValues("retweet", "fail")))
}

func TestMetrics_WatchState(t *testing.T) {
	m := New("test")
	q := schedule.NewQueues()
	tr := tracker.New(1, nil)
	m.WatchState("test", q, tr)

	q.Posts.AddSchedule(&schedule.Schedule{ActionMeta: schedule.ActionMeta{ScheduledTime: time.Now().Add(time.Hour)}})
	q.Polls.AddPoll(&schedule.PollSchedule{Options: []string{"a", "b"}})
	tr.AddPost("p-1")
	require.NoError(t, tr.AddComment("r-1", "p-1"))
	_ = tr.AddComment("r-2", "p-1")

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()
	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	text := string(body)
	assert.Contains(t, text, `test_queue_pending{queue="post"} 1`)
	assert.Contains(t, text, `test_queue_pending{queue="poll"} 1`)
	assert.Contains(t, text, `test_queue_completed{queue="post"} 0`)
	assert.Contains(t, text, `test_tracked_tweets 3`)
	assert.Contains(t, text, `test_invariant_violations_total{invariant="comment_limit"} 1`)
}
