package queue

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/MrKhantee/andstatus/internal/debuglog"
)

// QueueType names the three disjoint homes a command can have.
type QueueType string

const (
	QueueCurrent QueueType = "current"
	QueueRetry   QueueType = "retry"
	QueueError   QueueType = "error"
)

func (t QueueType) Acronym() string {
	switch t {
	case QueueCurrent:
		return "C"
	case QueueRetry:
		return "R"
	case QueueError:
		return "E"
	default:
		return "?"
	}
}

var queueTypes = []QueueType{QueueCurrent, QueueRetry, QueueError}

// Queues is the durable command store: one bbolt database with a bucket
// per queue. A command lives in at most one bucket at a time; every move
// happens inside a single write transaction so a crash never duplicates
// or loses a command.
type Queues struct {
	mu         sync.Mutex
	db         *bolt.DB
	maxRetries int
}

// Open opens or creates the queue database at path.
func Open(path string, maxRetries int) (*Queues, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening queue database: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		for _, t := range queueTypes {
			if _, err := tx.CreateBucketIfNotExists([]byte(t)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating queue buckets: %w", err)
	}
	return &Queues{db: db, maxRetries: maxRetries}, nil
}

func (q *Queues) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.db.Close()
}

// Add puts a command into CURRENT. A command already present in any
// queue (same semantic hash) is left where it is; Add reports whether
// the command was actually enqueued.
func (q *Queues) Add(cmd *CommandData) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if cmd.RetriesLeft == 0 {
		cmd.RetriesLeft = q.maxRetries
	}
	key := []byte(cmd.ID())
	added := false
	err := q.db.Update(func(tx *bolt.Tx) error {
		for _, t := range queueTypes {
			if tx.Bucket([]byte(t)).Get(key) != nil {
				debuglog.Debugf("command %s already queued in %s, skipping", cmd.ID(), t)
				return nil
			}
		}
		data, err := json.Marshal(cmd)
		if err != nil {
			return err
		}
		added = true
		return tx.Bucket([]byte(QueueCurrent)).Put(key, data)
	})
	return added, err
}

// Remove deletes the command from whichever queue holds it.
func (q *Queues) Remove(id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.db.Update(func(tx *bolt.Tx) error {
		for _, t := range queueTypes {
			if err := tx.Bucket([]byte(t)).Delete([]byte(id)); err != nil {
				return err
			}
		}
		return nil
	})
}

// Resend moves a failed command from ERROR back to CURRENT as a manual
// relaunch: retries are restored, failure counters and the error message
// are kept so the history stays visible.
func (q *Queues) Resend(id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.db.Update(func(tx *bolt.Tx) error {
		errBucket := tx.Bucket([]byte(QueueError))
		data := errBucket.Get([]byte(id))
		if data == nil {
			return fmt.Errorf("command %s not found in the error queue", id)
		}
		var cmd CommandData
		if err := json.Unmarshal(data, &cmd); err != nil {
			return err
		}
		cmd.RetriesLeft = q.maxRetries
		cmd.ManuallyLaunched = true
		cmd.NextAttemptAt = time.Time{}
		moved, err := json.Marshal(&cmd)
		if err != nil {
			return err
		}
		if err := errBucket.Delete([]byte(id)); err != nil {
			return err
		}
		return tx.Bucket([]byte(QueueCurrent)).Put([]byte(id), moved)
	})
}

// List returns the commands of one queue in dequeue order.
func (q *Queues) List(t QueueType) ([]*CommandData, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.list(t)
}

func (q *Queues) list(t QueueType) ([]*CommandData, error) {
	var out []*CommandData
	err := q.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(t)).ForEach(func(_, v []byte) error {
			var cmd CommandData
			if err := json.Unmarshal(v, &cmd); err != nil {
				return err
			}
			out = append(out, &cmd)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out, nil
}

// Totals reports the size of each queue.
func (q *Queues) Totals() (map[QueueType]int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	totals := make(map[QueueType]int, len(queueTypes))
	err := q.db.View(func(tx *bolt.Tx) error {
		for _, t := range queueTypes {
			totals[t] = tx.Bucket([]byte(t)).Stats().KeyN
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return totals, nil
}

// PromoteDue moves RETRY commands whose next attempt time has passed back
// into CURRENT. Returns how many were promoted.
func (q *Queues) PromoteDue(now time.Time) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	promoted := 0
	err := q.db.Update(func(tx *bolt.Tx) error {
		retry := tx.Bucket([]byte(QueueRetry))
		current := tx.Bucket([]byte(QueueCurrent))
		var due [][]byte
		err := retry.ForEach(func(k, v []byte) error {
			var cmd CommandData
			if err := json.Unmarshal(v, &cmd); err != nil {
				return err
			}
			if !cmd.NextAttemptAt.After(now) {
				due = append(due, append([]byte(nil), k...))
			}
			return nil
		})
		if err != nil {
			return err
		}
		for _, k := range due {
			v := retry.Get(k)
			if err := current.Put(k, append([]byte(nil), v...)); err != nil {
				return err
			}
			if err := retry.Delete(k); err != nil {
				return err
			}
			promoted++
		}
		return nil
	})
	return promoted, err
}

// Peek returns a copy of the highest-priority CURRENT command, or nil
// when CURRENT is empty.
func (q *Queues) Peek() (*CommandData, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	cmds, err := q.list(QueueCurrent)
	if err != nil || len(cmds) == 0 {
		return nil, err
	}
	return cmds[0], nil
}

// MoveTo replaces the command's stored record and homes it in the given
// queue, removing it from the others in the same transaction.
func (q *Queues) MoveTo(cmd *CommandData, t QueueType) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	key := []byte(cmd.ID())
	data, err := json.Marshal(cmd)
	if err != nil {
		return err
	}
	return q.db.Update(func(tx *bolt.Tx) error {
		for _, other := range queueTypes {
			if other == t {
				continue
			}
			if err := tx.Bucket([]byte(other)).Delete(key); err != nil {
				return err
			}
		}
		return tx.Bucket([]byte(t)).Put(key, data)
	})
}
