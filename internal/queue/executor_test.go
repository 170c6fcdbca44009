package queue

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/MrKhantee/andstatus/internal/config"
	"github.com/MrKhantee/andstatus/internal/connection"
	"github.com/MrKhantee/andstatus/internal/model"
	"github.com/MrKhantee/andstatus/internal/transport"
)

const reblogResponse = `{
	"id": 10341833,
	"text": "RT @igor: the original note",
	"created_at": "Wed Nov 04 11:04:09 +0000 2015",
	"user": {"id": 119, "screen_name": "andstatus",
		"statusnet_profile_url": "https://loadaverage.org/andstatus"},
	"retweeted_status": {
		"id": 10341561,
		"text": "the original note",
		"created_at": "Wed Nov 04 10:48:12 +0000 2015",
		"statusnet_conversation_id": 9118253,
		"user": {"id": 542, "screen_name": "igor",
			"statusnet_profile_url": "https://herds.eu/igor"}
	}
}`

type execHarness struct {
	queues   *Queues
	exec     *Executor
	results  []Result
	maxRetry int
}

func newExecHarness(t *testing.T, maxRetries int, handler http.Handler) *execHarness {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := config.TestConfig()
	client, err := transport.NewClient(srv.URL, transport.Credentials{}, transport.Options{
		Timeout:   cfg.HTTP.Timeout,
		UserAgent: cfg.HTTP.UserAgent,
	})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	account := model.ActorFromOid("quitter", "1177")
	registry := connection.NewRegistry()
	registry.Register("quitter", connection.NewGnuSocial(client, "quitter", account))

	queues, err := Open(filepath.Join(t.TempDir(), "queue.db"), maxRetries)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { queues.Close() })

	h := &execHarness{queues: queues, maxRetry: maxRetries}
	h.exec = NewExecutor(queues, registry, ExecutorOptions{
		PollInterval:   cfg.Queue.PollInterval,
		CommandTimeout: cfg.Queue.CommandTimeout,
		MinBackoff:     cfg.Queue.MinBackoff,
		MaxBackoff:     cfg.Queue.MaxBackoff,
		Listener:       func(r Result) { h.results = append(h.results, r) },
	})
	return h
}

func TestExecutorRunsReblogToCompletion(t *testing.T) {
	h := newExecHarness(t, 3, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/statuses/retweet/10341561.json" {
			t.Errorf("path = %s", r.URL.Path)
		}
		w.Write([]byte(reblogResponse))
	}))

	cmd := NewCommand(Reblog, "quitter", "1177")
	cmd.ItemOid = "10341561"
	if _, err := h.queues.Add(cmd); err != nil {
		t.Fatalf("Add: %v", err)
	}
	h.exec.Drain()

	totals, _ := h.queues.Totals()
	for qt, n := range totals {
		if n != 0 {
			t.Errorf("queue %s still holds %d command(s)", qt, n)
		}
	}
	if len(h.results) != 1 {
		t.Fatalf("results = %d, want 1", len(h.results))
	}
	res := h.results[0]
	if res.Err != nil {
		t.Fatalf("result error: %v", res.Err)
	}
	if len(res.Activities) != 1 || res.Activities[0].Type != model.ActivityAnnounce {
		t.Errorf("activities = %+v", res.Activities)
	}
	if res.Activities[0].GetNote().Oid != "10341561" {
		t.Errorf("inner note oid = %q", res.Activities[0].GetNote().Oid)
	}
}

func TestExecutorRetriesTransientFailures(t *testing.T) {
	h := newExecHarness(t, 3, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))

	cmd := NewCommand(FetchTimeline, "quitter", "1177")
	cmd.TimelineRoutine = connection.HomeTimeline
	h.queues.Add(cmd)
	h.exec.Drain()

	retrying, err := h.queues.List(QueueRetry)
	if err != nil || len(retrying) != 1 {
		t.Fatalf("retry queue = %v, %v", retrying, err)
	}
	got := retrying[0]
	if got.RetriesLeft != 2 {
		t.Errorf("retries left = %d, want 2", got.RetriesLeft)
	}
	if got.NumIoExceptions != 1 || got.NumAuthExceptions != 0 || got.NumParseExceptions != 0 {
		t.Errorf("counters = io:%d auth:%d parse:%d",
			got.NumIoExceptions, got.NumAuthExceptions, got.NumParseExceptions)
	}
	if !got.NextAttemptAt.After(time.Now().Add(-time.Second)) {
		t.Errorf("next attempt = %v, should be scheduled", got.NextAttemptAt)
	}
	if got.ErrorMessage == "" {
		t.Error("error message should be recorded")
	}
}

func TestExecutorMovesHardFailuresToError(t *testing.T) {
	h := newExecHarness(t, 3, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error": "bad credentials"}`))
	}))

	cmd := NewCommand(GetStatus, "quitter", "1177")
	cmd.ItemOid = "1"
	h.queues.Add(cmd)
	h.exec.Drain()

	failed, err := h.queues.List(QueueError)
	if err != nil || len(failed) != 1 {
		t.Fatalf("error queue = %v, %v", failed, err)
	}
	// retries were available, but auth failures never recover by retrying
	if failed[0].RetriesLeft == 0 {
		t.Error("hard failure should not burn through all retries")
	}
	if failed[0].NumAuthExceptions != 1 {
		t.Errorf("auth counter = %d, want 1", failed[0].NumAuthExceptions)
	}
	totals, _ := h.queues.Totals()
	if totals[QueueRetry] != 0 {
		t.Error("hard failure must not land in the retry queue")
	}
}

func TestExecutorGivesUpWhenRetriesExhausted(t *testing.T) {
	h := newExecHarness(t, 1, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))

	cmd := NewCommand(FetchTimeline, "quitter", "1177")
	cmd.TimelineRoutine = connection.HomeTimeline
	h.queues.Add(cmd)
	h.exec.Drain()

	totals, _ := h.queues.Totals()
	if totals[QueueError] != 1 {
		t.Errorf("error queue = %d, want 1", totals[QueueError])
	}
	if totals[QueueCurrent] != 0 || totals[QueueRetry] != 0 {
		t.Errorf("totals = %v", totals)
	}
}

func TestExecutorCountsParseFailures(t *testing.T) {
	h := newExecHarness(t, 3, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"unexpected": "shape"}`))
	}))

	// a timeline answer without an items array is a parse failure
	cmd := NewCommand(SearchNotes, "quitter", "1177")
	cmd.SearchQuery = "anything"
	h.queues.Add(cmd)
	h.exec.Drain()

	retrying, err := h.queues.List(QueueRetry)
	if err != nil || len(retrying) != 1 {
		t.Fatalf("retry queue = %v, %v", retrying, err)
	}
	if retrying[0].NumParseExceptions != 1 {
		t.Errorf("parse counter = %d, want 1", retrying[0].NumParseExceptions)
	}
}

func TestExecutorBackoffDoublesAndCaps(t *testing.T) {
	e := NewExecutor(nil, nil, ExecutorOptions{
		MinBackoff: time.Minute,
		MaxBackoff: 4 * time.Hour,
	})
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, time.Minute},
		{2, 2 * time.Minute},
		{3, 4 * time.Minute},
		{8, 128 * time.Minute},
		{9, 4 * time.Hour},
		{20, 4 * time.Hour},
	}
	for _, tt := range tests {
		if got := e.backoff(tt.attempt); got != tt.want {
			t.Errorf("backoff(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}
