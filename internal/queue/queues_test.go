package queue

import (
	"path/filepath"
	"testing"
	"time"
)

func openTestQueues(t *testing.T) *Queues {
	t.Helper()
	q, err := Open(filepath.Join(t.TempDir(), "queue.db"), 3)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { q.Close() })
	return q
}

func TestAddSkipsDuplicates(t *testing.T) {
	q := openTestQueues(t)
	cmd := NewCommand(Reblog, "quitter", "42")
	cmd.ItemOid = "10341561"

	added, err := q.Add(cmd)
	if err != nil || !added {
		t.Fatalf("first Add = %v, %v", added, err)
	}
	dup := NewCommand(Reblog, "quitter", "42")
	dup.ItemOid = "10341561"
	added, err = q.Add(dup)
	if err != nil {
		t.Fatalf("second Add: %v", err)
	}
	if added {
		t.Error("duplicate command should not be enqueued")
	}
	totals, err := q.Totals()
	if err != nil {
		t.Fatalf("Totals: %v", err)
	}
	if totals[QueueCurrent] != 1 {
		t.Errorf("current = %d, want 1", totals[QueueCurrent])
	}
}

func TestAddSetsRetries(t *testing.T) {
	q := openTestQueues(t)
	cmd := NewCommand(GetStatus, "quitter", "42")
	if _, err := q.Add(cmd); err != nil {
		t.Fatalf("Add: %v", err)
	}
	cmds, err := q.List(QueueCurrent)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(cmds) != 1 || cmds[0].RetriesLeft != 3 {
		t.Errorf("retries = %+v, want 3", cmds)
	}
}

func TestMoveBetweenQueuesKeepsSingleHome(t *testing.T) {
	q := openTestQueues(t)
	cmd := NewCommand(FetchTimeline, "quitter", "42")
	if _, err := q.Add(cmd); err != nil {
		t.Fatalf("Add: %v", err)
	}

	cmd.RetriesLeft = 2
	cmd.NextAttemptAt = time.Now().Add(time.Hour)
	if err := q.MoveTo(cmd, QueueRetry); err != nil {
		t.Fatalf("MoveTo retry: %v", err)
	}
	totals, _ := q.Totals()
	if totals[QueueCurrent] != 0 || totals[QueueRetry] != 1 {
		t.Errorf("totals after move = %v", totals)
	}

	if err := q.MoveTo(cmd, QueueError); err != nil {
		t.Fatalf("MoveTo error: %v", err)
	}
	totals, _ = q.Totals()
	if totals[QueueRetry] != 0 || totals[QueueError] != 1 {
		t.Errorf("totals after second move = %v", totals)
	}
}

func TestPromoteDue(t *testing.T) {
	q := openTestQueues(t)
	due := NewCommand(FetchTimeline, "quitter", "42")
	q.Add(due)
	due.NextAttemptAt = time.Now().Add(-time.Minute)
	q.MoveTo(due, QueueRetry)

	notYet := NewCommand(FetchTimeline, "identica", "42")
	q.Add(notYet)
	notYet.NextAttemptAt = time.Now().Add(time.Hour)
	q.MoveTo(notYet, QueueRetry)

	n, err := q.PromoteDue(time.Now())
	if err != nil {
		t.Fatalf("PromoteDue: %v", err)
	}
	if n != 1 {
		t.Errorf("promoted = %d, want 1", n)
	}
	totals, _ := q.Totals()
	if totals[QueueCurrent] != 1 || totals[QueueRetry] != 1 {
		t.Errorf("totals = %v", totals)
	}
}

func TestResendRestoresRetriesAndKeepsHistory(t *testing.T) {
	q := openTestQueues(t)
	cmd := NewCommand(UpdateStatus, "quitter", "42")
	cmd.Content = "hello"
	q.Add(cmd)
	cmd.RetriesLeft = 0
	cmd.NumIoExceptions = 3
	cmd.ErrorMessage = "server down"
	if err := q.MoveTo(cmd, QueueError); err != nil {
		t.Fatalf("MoveTo: %v", err)
	}

	if err := q.Resend(cmd.ID()); err != nil {
		t.Fatalf("Resend: %v", err)
	}
	cmds, err := q.List(QueueCurrent)
	if err != nil || len(cmds) != 1 {
		t.Fatalf("List = %v, %v", cmds, err)
	}
	got := cmds[0]
	if got.ID() != cmd.ID() {
		t.Error("resend must keep the same command identity")
	}
	if got.RetriesLeft != 3 {
		t.Errorf("retries = %d, want restored to 3", got.RetriesLeft)
	}
	if !got.ManuallyLaunched {
		t.Error("resent command should be marked manually launched")
	}
	if got.NumIoExceptions != 3 || got.ErrorMessage != "server down" {
		t.Error("failure history should survive a resend")
	}
}

func TestResendMissingCommand(t *testing.T) {
	q := openTestQueues(t)
	if err := q.Resend("deadbeefdeadbeef"); err == nil {
		t.Error("resend of an unknown command should fail")
	}
}

func TestQueuesSurviveReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "queue.db")
	q, err := Open(path, 3)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	cmd := NewCommand(Reblog, "quitter", "42")
	cmd.ItemOid = "10341561"
	q.Add(cmd)
	if err := q.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	q2, err := Open(path, 3)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer q2.Close()
	cmds, err := q2.List(QueueCurrent)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(cmds) != 1 || cmds[0].ItemOid != "10341561" {
		t.Errorf("persisted commands = %+v", cmds)
	}
}

func TestListOrdersByPriority(t *testing.T) {
	q := openTestQueues(t)
	avatar := NewCommand(FetchAvatar, "quitter", "42")
	avatar.ItemOid = "http://example.org/a.png"
	post := NewCommand(UpdateStatus, "quitter", "42")
	post.Content = "hello"
	fetch := NewCommand(FetchTimeline, "quitter", "42")
	for _, c := range []*CommandData{avatar, post, fetch} {
		if _, err := q.Add(c); err != nil {
			t.Fatalf("Add: %v", err)
		}
	}
	cmds, err := q.List(QueueCurrent)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(cmds) != 3 {
		t.Fatalf("commands = %d", len(cmds))
	}
	if cmds[0].Code != UpdateStatus || cmds[1].Code != FetchTimeline || cmds[2].Code != FetchAvatar {
		t.Errorf("order = %v, %v, %v", cmds[0].Code, cmds[1].Code, cmds[2].Code)
	}
}
