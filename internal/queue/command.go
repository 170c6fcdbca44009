package queue

import (
	"fmt"
	"hash/fnv"
	"strconv"
	"time"

	"github.com/MrKhantee/andstatus/internal/connection"
)

// CommandCode identifies what a queued command does.
type CommandCode int

const (
	CommandEmpty CommandCode = iota
	GetStatus
	GetUser
	UpdateStatus
	CreateFavorite
	DestroyFavorite
	Reblog
	DestroyReblog
	DestroyStatus
	FetchTimeline
	SearchNotes
	FetchAttachment
	FetchAvatar
	FollowUser
	StopFollowingUser
)

func (c CommandCode) String() string {
	switch c {
	case GetStatus:
		return "get-status"
	case GetUser:
		return "get-user"
	case UpdateStatus:
		return "update-status"
	case CreateFavorite:
		return "create-favorite"
	case DestroyFavorite:
		return "destroy-favorite"
	case Reblog:
		return "reblog"
	case DestroyReblog:
		return "destroy-reblog"
	case DestroyStatus:
		return "destroy-status"
	case FetchTimeline:
		return "fetch-timeline"
	case SearchNotes:
		return "search-notes"
	case FetchAttachment:
		return "fetch-attachment"
	case FetchAvatar:
		return "fetch-avatar"
	case FollowUser:
		return "follow-user"
	case StopFollowingUser:
		return "stop-following-user"
	default:
		return "empty"
	}
}

// Priority orders dequeueing: user-initiated actions run before background
// fetches, media downloads last.
func (c CommandCode) Priority() int {
	switch c {
	case UpdateStatus, CreateFavorite, DestroyFavorite, Reblog, DestroyReblog,
		DestroyStatus, FollowUser, StopFollowingUser:
		return 10
	case GetStatus, GetUser:
		return 5
	case FetchTimeline, SearchNotes:
		return 3
	case FetchAttachment, FetchAvatar:
		return 1
	default:
		return 0
	}
}

// CommandData is one unit of scheduled work. It lives in exactly one of
// the three queues at a time and is mutated in place by the execution
// loop.
type CommandData struct {
	Code            CommandCode `json:"code"`
	Origin          string      `json:"origin"`
	AccountActorOid string      `json:"account_actor_oid"`

	// ItemOid is the note oid, actor oid, or download URL the command
	// targets, depending on the code.
	ItemOid         string                `json:"item_oid,omitempty"`
	SearchQuery     string                `json:"search_query,omitempty"`
	TimelineRoutine connection.ApiRoutine `json:"timeline_routine,omitempty"`
	Content         string                `json:"content,omitempty"`
	InReplyToOid    string                `json:"in_reply_to_oid,omitempty"`
	MediaURI        string                `json:"media_uri,omitempty"`

	CreatedAt      time.Time `json:"created_at"`
	LastExecutedAt time.Time `json:"last_executed_at,omitempty"`
	NextAttemptAt  time.Time `json:"next_attempt_at,omitempty"`

	ExecutionCount int `json:"execution_count"`
	RetriesLeft    int `json:"retries_left"`

	// Failure counters per category, so "server down" is told apart from
	// "bad credentials" and "bad response shape" without reading logs.
	NumAuthExceptions  int64 `json:"num_auth_exceptions"`
	NumIoExceptions    int64 `json:"num_io_exceptions"`
	NumParseExceptions int64 `json:"num_parse_exceptions"`

	ManuallyLaunched bool   `json:"manually_launched"`
	ErrorMessage     string `json:"error_message,omitempty"`
	ItemsFetched     int    `json:"items_fetched"`
}

func NewCommand(code CommandCode, origin, accountActorOid string) *CommandData {
	return &CommandData{
		Code:            code,
		Origin:          origin,
		AccountActorOid: accountActorOid,
		CreatedAt:       time.Now().UTC(),
	}
}

// Hash identifies the command by its semantic fields only; bookkeeping
// (counters, timestamps) never participates. Two commands hash identically
// iff they request the same work.
func (c *CommandData) Hash() uint64 {
	h := fnv.New64a()
	for _, field := range []string{
		strconv.Itoa(int(c.Code)),
		c.Origin,
		c.AccountActorOid,
		c.ItemOid,
		c.SearchQuery,
		strconv.Itoa(int(c.TimelineRoutine)),
		c.Content,
		c.InReplyToOid,
		c.MediaURI,
	} {
		h.Write([]byte(field))
		h.Write([]byte{0})
	}
	return h.Sum64()
}

// ID is the queue key: the semantic hash in fixed-width hex.
func (c *CommandData) ID() string {
	return fmt.Sprintf("%016x", c.Hash())
}

// Before orders commands for dequeueing: higher priority first, older
// creation first within a priority, hash as the final tie-break so the
// order is total.
func (c *CommandData) Before(other *CommandData) bool {
	if p, po := c.Code.Priority(), other.Code.Priority(); p != po {
		return p > po
	}
	if !c.CreatedAt.Equal(other.CreatedAt) {
		return c.CreatedAt.Before(other.CreatedAt)
	}
	return c.Hash() < other.Hash()
}

// Summary is the one-line form shown in queue listings.
func (c *CommandData) Summary() string {
	s := fmt.Sprintf("%s @%s/%s", c.Code, c.Origin, c.AccountActorOid)
	if c.ItemOid != "" {
		s += " item=" + c.ItemOid
	}
	if c.SearchQuery != "" {
		s += fmt.Sprintf(" q=%q", c.SearchQuery)
	}
	s += fmt.Sprintf(" executed=%d retries-left=%d", c.ExecutionCount, c.RetriesLeft)
	if c.ErrorMessage != "" {
		s += fmt.Sprintf(" err=%q (auth=%d io=%d parse=%d)",
			c.ErrorMessage, c.NumAuthExceptions, c.NumIoExceptions, c.NumParseExceptions)
	}
	return s
}
