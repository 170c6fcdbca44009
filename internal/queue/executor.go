package queue

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/MrKhantee/andstatus/internal/connection"
	"github.com/MrKhantee/andstatus/internal/debuglog"
	"github.com/MrKhantee/andstatus/internal/model"
	"github.com/MrKhantee/andstatus/internal/transport"
)

// Result is handed to the executor's listener after every attempt,
// successful or not.
type Result struct {
	Command    *CommandData
	Activities []*model.Activity
	Actor      model.Actor
	Err        error
}

// ExecutorOptions tunes the background loop. Zero values get defaults.
type ExecutorOptions struct {
	PollInterval   time.Duration
	CommandTimeout time.Duration
	MinBackoff     time.Duration
	MaxBackoff     time.Duration
	// Listener, when set, observes every execution result.
	Listener func(Result)
	// Downloads receives attachment and avatar payloads; when nil they
	// are fetched and discarded.
	Downloads func(url string) (io.WriteCloser, error)
}

const (
	defaultPollInterval   = 15 * time.Second
	defaultCommandTimeout = 60 * time.Second
	defaultMinBackoff     = time.Minute
	defaultMaxBackoff     = 4 * time.Hour
)

// Executor drains the CURRENT queue on a single background goroutine.
// One command runs at a time; ordering and durability live in Queues.
type Executor struct {
	queues   *Queues
	registry *connection.Registry
	opts     ExecutorOptions

	stop chan struct{}
	done chan struct{}
}

func NewExecutor(queues *Queues, registry *connection.Registry, opts ExecutorOptions) *Executor {
	if opts.PollInterval <= 0 {
		opts.PollInterval = defaultPollInterval
	}
	if opts.CommandTimeout <= 0 {
		opts.CommandTimeout = defaultCommandTimeout
	}
	if opts.MinBackoff <= 0 {
		opts.MinBackoff = defaultMinBackoff
	}
	if opts.MaxBackoff <= 0 {
		opts.MaxBackoff = defaultMaxBackoff
	}
	return &Executor{
		queues:   queues,
		registry: registry,
		opts:     opts,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start launches the polling loop. Call Stop to shut it down; Stop waits
// for the in-flight command to finish.
func (e *Executor) Start() {
	go func() {
		defer close(e.done)
		ticker := time.NewTicker(e.opts.PollInterval)
		defer ticker.Stop()
		debuglog.Infof("queue executor started, polling every %s", e.opts.PollInterval)
		e.Drain()
		for {
			select {
			case <-e.stop:
				return
			case <-ticker.C:
				e.Drain()
			}
		}
	}()
}

func (e *Executor) Stop() {
	close(e.stop)
	<-e.done
	debuglog.Infof("queue executor stopped")
}

// Drain promotes due retries and executes CURRENT commands until the
// queue is empty or a stop is requested.
func (e *Executor) Drain() {
	if n, err := e.queues.PromoteDue(time.Now()); err != nil {
		debuglog.Errorf("promoting due retries: %v", err)
	} else if n > 0 {
		debuglog.Debugf("promoted %d retry command(s)", n)
	}
	for {
		select {
		case <-e.stop:
			return
		default:
		}
		cmd, err := e.queues.Peek()
		if err != nil {
			debuglog.Errorf("peeking queue: %v", err)
			return
		}
		if cmd == nil {
			return
		}
		e.executeOne(cmd)
	}
}

func (e *Executor) executeOne(cmd *CommandData) {
	cmd.ExecutionCount++
	cmd.LastExecutedAt = time.Now().UTC()
	debuglog.Debugf("executing %s", cmd.Summary())

	ctx, cancel := context.WithTimeout(context.Background(), e.opts.CommandTimeout)
	res := e.execute(ctx, cmd)
	cancel()

	if res.Err == nil {
		cmd.ErrorMessage = ""
		if err := e.queues.Remove(cmd.ID()); err != nil {
			debuglog.Errorf("removing finished command %s: %v", cmd.ID(), err)
		}
		debuglog.Infof("done: %s (%d item(s))", cmd.Summary(), cmd.ItemsFetched)
	} else {
		e.recordFailure(cmd, res.Err)
	}
	if e.opts.Listener != nil {
		e.opts.Listener(res)
	}
}

// recordFailure classifies the error, bumps the matching counter, and
// decides where the command goes next. Hard failures (bad credentials,
// gone resources) skip the retry ladder entirely.
func (e *Executor) recordFailure(cmd *CommandData, err error) {
	cmd.ErrorMessage = err.Error()
	hard := false
	var connErr *transport.ConnError
	if errors.As(err, &connErr) {
		hard = connErr.Hard()
		switch connErr.Kind {
		case transport.KindAuth:
			cmd.NumAuthExceptions++
		case transport.KindParse:
			cmd.NumParseExceptions++
		default:
			cmd.NumIoExceptions++
		}
	} else {
		cmd.NumIoExceptions++
	}

	cmd.RetriesLeft--
	if hard || cmd.RetriesLeft <= 0 {
		debuglog.Errorf("giving up: %s", cmd.Summary())
		if err := e.queues.MoveTo(cmd, QueueError); err != nil {
			debuglog.Errorf("moving command %s to error queue: %v", cmd.ID(), err)
		}
		return
	}
	backoff := e.backoff(cmd.ExecutionCount)
	cmd.NextAttemptAt = time.Now().UTC().Add(backoff)
	debuglog.Warnf("will retry in %s: %s", backoff, cmd.Summary())
	if err := e.queues.MoveTo(cmd, QueueRetry); err != nil {
		debuglog.Errorf("moving command %s to retry queue: %v", cmd.ID(), err)
	}
}

// backoff doubles per attempt from MinBackoff up to MaxBackoff.
func (e *Executor) backoff(attempt int) time.Duration {
	d := e.opts.MinBackoff
	for i := 1; i < attempt && d < e.opts.MaxBackoff; i++ {
		d *= 2
	}
	if d > e.opts.MaxBackoff {
		d = e.opts.MaxBackoff
	}
	return d
}

func (e *Executor) execute(ctx context.Context, cmd *CommandData) Result {
	res := Result{Command: cmd}
	conn, err := e.registry.ForOrigin(cmd.Origin)
	if err != nil {
		res.Err = err
		return res
	}
	switch cmd.Code {
	case GetStatus:
		res.Activities, res.Err = one(conn.GetNote(ctx, cmd.ItemOid))
	case GetUser:
		res.Actor, res.Err = conn.GetActor(ctx, cmd.ItemOid)
	case UpdateStatus:
		res.Activities, res.Err = one(conn.UpdateNote(ctx, cmd.Content, cmd.InReplyToOid, model.NewAudience(), cmd.MediaURI))
	case CreateFavorite:
		res.Activities, res.Err = one(conn.Favorite(ctx, cmd.ItemOid))
	case DestroyFavorite:
		res.Activities, res.Err = one(conn.Unfavorite(ctx, cmd.ItemOid))
	case Reblog:
		res.Activities, res.Err = one(conn.Announce(ctx, cmd.ItemOid))
	case DestroyReblog:
		res.Activities, res.Err = one(conn.UndoAnnounce(ctx, cmd.ItemOid))
	case DestroyStatus:
		res.Err = conn.DeleteNote(ctx, cmd.ItemOid)
	case FetchTimeline:
		res.Activities, res.Err = conn.GetTimeline(ctx, cmd.TimelineRoutine,
			model.EmptyPosition, model.EmptyPosition, defaultFetchLimit, cmd.ItemOid)
	case SearchNotes:
		res.Activities, res.Err = conn.SearchNotes(ctx, model.EmptyPosition, defaultFetchLimit, cmd.SearchQuery)
	case FetchAttachment, FetchAvatar:
		res.Err = e.download(ctx, conn, cmd.ItemOid)
	case FollowUser:
		res.Activities, res.Err = one(conn.Follow(ctx, cmd.ItemOid, true))
	case StopFollowingUser:
		res.Activities, res.Err = one(conn.Follow(ctx, cmd.ItemOid, false))
	default:
		res.Err = fmt.Errorf("unknown command code %d", cmd.Code)
	}
	cmd.ItemsFetched = len(res.Activities)
	return res
}

// defaultFetchLimit mirrors the connection package's page size for
// background timeline fetches.
const defaultFetchLimit = 20

func (e *Executor) download(ctx context.Context, conn connection.Connection, url string) error {
	if e.opts.Downloads == nil {
		return conn.DownloadFile(ctx, url, io.Discard)
	}
	w, err := e.opts.Downloads(url)
	if err != nil {
		return err
	}
	if err := conn.DownloadFile(ctx, url, w); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}

func one(act *model.Activity, err error) ([]*model.Activity, error) {
	if err != nil {
		return nil, err
	}
	if act == nil || act.IsEmpty() {
		return nil, nil
	}
	return []*model.Activity{act}, nil
}
