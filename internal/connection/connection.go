package connection

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strconv"
	"time"

	"github.com/MrKhantee/andstatus/internal/model"
	"github.com/MrKhantee/andstatus/internal/transport"
)

// ApiRoutine names a timeline-shaped provider endpoint.
type ApiRoutine int

const (
	PublicTimeline ApiRoutine = iota
	HomeTimeline
	ActorTimeline
	SearchTimeline
)

func (r ApiRoutine) String() string {
	switch r {
	case PublicTimeline:
		return "public_timeline"
	case HomeTimeline:
		return "home_timeline"
	case ActorTimeline:
		return "actor_timeline"
	case SearchTimeline:
		return "search"
	default:
		return "unknown"
	}
}

// Connection is the capability set every provider variant implements.
// Implementations never retain the returned model values beyond a call.
type Connection interface {
	// GetTimeline fetches one page of a timeline. since/until are
	// provider-native position tokens; actorOid scopes actor timelines.
	GetTimeline(ctx context.Context, routine ApiRoutine, since, until model.TimelinePosition,
		limit int, actorOid string) ([]*model.Activity, error)
	SearchNotes(ctx context.Context, since model.TimelinePosition, limit int, query string) ([]*model.Activity, error)
	GetNote(ctx context.Context, oid string) (*model.Activity, error)
	GetActor(ctx context.Context, oid string) (model.Actor, error)
	// UpdateNote posts a new note or a reply; mediaURI, when non-empty,
	// attaches a local media file.
	UpdateNote(ctx context.Context, content, inReplyToOid string, audience model.Audience, mediaURI string) (*model.Activity, error)
	Announce(ctx context.Context, oid string) (*model.Activity, error)
	UndoAnnounce(ctx context.Context, oid string) (*model.Activity, error)
	Favorite(ctx context.Context, oid string) (*model.Activity, error)
	Unfavorite(ctx context.Context, oid string) (*model.Activity, error)
	DeleteNote(ctx context.Context, oid string) error
	Follow(ctx context.Context, actorOid string, follow bool) (*model.Activity, error)
	// DownloadFile streams an attachment or avatar into dst.
	DownloadFile(ctx context.Context, url string, dst io.Writer) error
}

const (
	defaultFetchLimit = 20
	maxFetchLimit     = 200
)

// base carries what every provider variant needs: the signed transport,
// the origin name, and the local account's identity for viewer-relative
// fields.
type base struct {
	client       *transport.Client
	origin       string
	accountActor model.Actor
}

func (b *base) DownloadFile(ctx context.Context, url string, dst io.Writer) error {
	return b.client.Download(ctx, url, dst)
}

func fixLimit(limit int) int {
	if limit <= 0 {
		return defaultFetchLimit
	}
	if limit > maxFetchLimit {
		return maxFetchLimit
	}
	return limit
}

// twitterTimeLayout is the classic statuses timestamp format, shared by
// Twitter and GNUSocial.
const twitterTimeLayout = "Mon Jan 02 15:04:05 -0700 2006"

func parseTwitterDate(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(twitterTimeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}

func parseISODate(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}

func formatCount(n int) string {
	return strconv.Itoa(n)
}

// Registry maps origin names to their live connections. Register once at
// startup, look up per command.
type Registry struct {
	connections map[string]Connection
}

func NewRegistry() *Registry {
	return &Registry{connections: make(map[string]Connection)}
}

func (r *Registry) Register(origin string, conn Connection) {
	r.connections[origin] = conn
}

func (r *Registry) ForOrigin(origin string) (Connection, error) {
	conn, ok := r.connections[origin]
	if !ok {
		return nil, fmt.Errorf("no connection registered for origin %q", origin)
	}
	return conn, nil
}

func (r *Registry) Origins() []string {
	out := make([]string, 0, len(r.connections))
	for origin := range r.connections {
		out = append(out, origin)
	}
	sort.Strings(out)
	return out
}
