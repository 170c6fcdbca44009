package connection

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/mmcdole/gofeed"

	"github.com/MrKhantee/andstatus/internal/debuglog"
	"github.com/MrKhantee/andstatus/internal/model"
	"github.com/MrKhantee/andstatus/internal/transport"
)

// GnuSocial talks to a GNUSocial/StatusNet endpoint: a Twitter-compatible
// API with its own conversation ids, HTML bodies, attachments, and the
// synthesized favoriting notices this variant re-normalizes.
type GnuSocial struct {
	*TwitterAPI
}

func NewGnuSocial(client *transport.Client, origin string, accountActor model.Actor) *GnuSocial {
	c := &GnuSocial{TwitterAPI: NewTwitterAPI(client, origin, accountActor)}
	c.quirks = statusQuirks{preferHTML: true, conversationID: true}
	c.parser = c
	return c
}

func (c *GnuSocial) activityFromRaw(raw json.RawMessage) (*model.Activity, error) {
	var st wireStatus
	if err := json.Unmarshal(raw, &st); err != nil {
		return nil, transport.ParseError("parse status", string(raw), err)
	}
	if st.oid() == "" {
		return nil, transport.ParseError("parse status", string(raw), nil)
	}
	return CreateLikeActivity(c.activityFromStatus(&st)), nil
}

// GetTimeline falls back to the origin's Atom rendition of the same
// timeline when the JSON endpoint answers with a non-JSON body. Some
// GNUSocial deployments only serve certain timelines as feeds.
func (c *GnuSocial) GetTimeline(ctx context.Context, routine ApiRoutine, since, until model.TimelinePosition,
	limit int, actorOid string) ([]*model.Activity, error) {
	activities, err := c.TwitterAPI.GetTimeline(ctx, routine, since, until, limit, actorOid)
	var connErr *transport.ConnError
	if err != nil && errors.As(err, &connErr) && connErr.Kind == transport.KindParse {
		debuglog.Debugf("JSON timeline failed for %s, trying Atom: %v", c.origin, err)
		return c.atomTimeline(ctx, routine)
	}
	return activities, err
}

// atomTimeline fetches and normalizes the feed rendition of a timeline.
// Atom entries carry far less than the JSON API does; actors are known by
// name only and positions come from the entry ids.
func (c *GnuSocial) atomTimeline(ctx context.Context, routine ApiRoutine) ([]*model.Activity, error) {
	const op = "atom timeline"
	path := strings.TrimSuffix(c.routinePath(routine), ".json") + ".atom"
	u, err := c.client.Origin().Parse(path)
	if err != nil {
		return nil, transport.IOError(op, err)
	}
	var buf bytes.Buffer
	if err := c.client.Download(ctx, u.String(), &buf); err != nil {
		return nil, err
	}
	feed, err := gofeed.NewParser().Parse(&buf)
	if err != nil {
		return nil, transport.ParseError(op, buf.String(), err)
	}
	activities := make([]*model.Activity, 0, len(feed.Items))
	for _, item := range feed.Items {
		activities = append(activities, c.activityFromFeedItem(item))
	}
	return activities, nil
}

func (c *GnuSocial) activityFromFeedItem(item *gofeed.Item) *model.Activity {
	oid := atomEntryOid(item)
	actor := model.EmptyActor
	if item.Author != nil && item.Author.Name != "" {
		actor = model.ActorFromOid(c.origin, item.Author.Name)
		actor.Username = item.Author.Name
	}
	act := model.NewActivity(c.accountActor, actor, model.ActivityUpdate)
	act.Oid = oid
	act.Position = model.TimelinePosition(oid)
	if item.UpdatedParsed != nil {
		act.Updated = item.UpdatedParsed.UTC()
	} else if item.PublishedParsed != nil {
		act.Updated = item.PublishedParsed.UTC()
	}
	note := act.Note
	note.Oid = oid
	note.UpdatedAt = act.Updated
	note.Content = item.Content
	if note.Content == "" {
		note.Content = item.Description
	}
	return CreateLikeActivity(act)
}

// atomEntryOid extracts a status oid from a GNUSocial Atom entry id of the
// form "tag:host,2017:noticeId=12345:objectType=note" or a plain notice URL.
func atomEntryOid(item *gofeed.Item) string {
	id := item.GUID
	if id == "" {
		id = item.Link
	}
	if i := strings.Index(id, "noticeId="); i >= 0 {
		rest := id[i+len("noticeId="):]
		if j := strings.IndexByte(rest, ':'); j >= 0 {
			return rest[:j]
		}
		return rest
	}
	if i := strings.LastIndexByte(id, '/'); i >= 0 && i < len(id)-1 {
		return id[i+1:]
	}
	return id
}

// CreateLikeActivity detects GNUSocial's synthesized favoriting notice
// ("<favoriter> favorited something by <author>: <original text>") and
// re-emits it as a LIKE around a note that carries only the original text.
// The note's updated date is forced to the SomeTimeAgo sentinel: the
// notice reports when the favoriting happened, not when the note was
// written. Anything that doesn't match passes through unchanged. A text
// heuristic, fragile by construction; the colon-delimited split is exactly
// what the provider emits.
func CreateLikeActivity(in *model.Activity) *model.Activity {
	liked, ok := parseFavoritingBody(in.GetNote().Content)
	if !ok {
		return in
	}
	out := &model.Activity{
		Type:         model.ActivityLike,
		AccountActor: in.AccountActor,
		Actor:        in.Actor,
		Oid:          in.Oid,
		Position:     in.Position,
		Updated:      in.Updated,
	}
	note := model.NewNote("")
	note.Content = liked
	note.ConversationOid = in.GetNote().ConversationOid
	note.UpdatedAt = model.SomeTimeAgo
	// the notice's in-reply-to fields point at the favorited note itself
	if parent := in.GetNote().GetInReplyTo(); parent.NonEmpty() {
		note.Oid = parent.GetNote().Oid
		out.Author = parent.Actor
	}
	out.Note = note
	return out
}

// parseFavoritingBody splits "<actor> favorited something by <author>:
// <text>" into just <text>. Both the "favorited" and "favourited"
// spellings occur in the wild.
func parseFavoritingBody(content string) (string, bool) {
	fields := strings.SplitN(content, " ", 3)
	if len(fields) < 3 {
		return "", false
	}
	if fields[1] != "favorited" && fields[1] != "favourited" {
		return "", false
	}
	rest := fields[2]
	if strings.HasPrefix(rest, "something by ") {
		if i := strings.Index(rest, ": "); i >= 0 {
			rest = rest[i+2:]
		}
	}
	return rest, true
}
