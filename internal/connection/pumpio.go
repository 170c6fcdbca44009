package connection

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/MrKhantee/andstatus/internal/model"
	"github.com/MrKhantee/andstatus/internal/transport"
)

// publicCollectionID addresses an activity to the world in
// ActivityStreams terms.
const publicCollectionID = "http://activityschema.org/collection/public"

// pumpObject is an ActivityStreams object: a person, note, comment or
// image depending on objectType.
type pumpObject struct {
	ID                string       `json:"id"`
	ObjectType        string       `json:"objectType"`
	DisplayName       string       `json:"displayName"`
	PreferredUsername string       `json:"preferredUsername"`
	Summary           string       `json:"summary"`
	Content           string       `json:"content"`
	URL               string       `json:"url"`
	Published         string       `json:"published"`
	Updated           string       `json:"updated"`
	Author            *pumpObject  `json:"author"`
	InReplyTo         *pumpObject  `json:"inReplyTo"`
	Image             *pumpImage   `json:"image"`
	FullImage         *pumpImage   `json:"fullImage"`
	Location          *pumpObject  `json:"location"`
	Followers         *pumpStream  `json:"followers"`
	Following         *pumpStream  `json:"following"`
	Favorites         *pumpStream  `json:"favorites"`
	Links             *pumpLinkSet `json:"links"`
}

type pumpImage struct {
	URL string `json:"url"`
}

type pumpStream struct {
	TotalItems int64 `json:"totalItems"`
}

type pumpLinkSet struct {
	Self *pumpLink `json:"self"`
}

type pumpLink struct {
	Href string `json:"href"`
}

// pumpActivity is one ActivityStreams activity entry.
type pumpActivity struct {
	ID        string       `json:"id"`
	Verb      string       `json:"verb"`
	Updated   string       `json:"updated"`
	Published string       `json:"published"`
	Actor     *pumpObject  `json:"actor"`
	Object    *pumpObject  `json:"object"`
	To        []pumpObject `json:"to"`
	CC        []pumpObject `json:"cc"`
}

// PumpIo talks to a pump.io endpoint using ActivityStreams JSON. Object
// ids are URLs, actors are addressed by acct: ids, and cross-host calls
// authenticate via dialback instead of a shared token.
type PumpIo struct {
	base
}

func NewPumpIo(client *transport.Client, origin string, accountActor model.Actor) *PumpIo {
	return &PumpIo{base: base{client: client, origin: origin, accountActor: accountActor}}
}

// nickname extracts the user part from an "acct:user@host" or plain
// "user@host" oid.
func nickname(oid string) string {
	s := strings.TrimPrefix(oid, "acct:")
	if i := strings.IndexByte(s, '@'); i >= 0 {
		return s[:i]
	}
	return s
}

func hostOfOid(oid string) string {
	s := strings.TrimPrefix(oid, "acct:")
	if i := strings.IndexByte(s, '@'); i >= 0 {
		return s[i+1:]
	}
	return ""
}

func (c *PumpIo) userPath(oid, box string) string {
	nick := nickname(oid)
	if host := hostOfOid(oid); host != "" && host != c.client.Origin().Host {
		return fmt.Sprintf("https://%s/api/user/%s/%s", host, nick, box)
	}
	return fmt.Sprintf("api/user/%s/%s", nick, box)
}

func (c *PumpIo) GetTimeline(ctx context.Context, routine ApiRoutine, since, until model.TimelinePosition,
	limit int, actorOid string) ([]*model.Activity, error) {
	var path string
	switch routine {
	case HomeTimeline:
		path = c.userPath(c.accountActor.Oid, "inbox")
	case ActorTimeline:
		if actorOid == "" {
			actorOid = c.accountActor.Oid
		}
		path = c.userPath(actorOid, "feed")
	default:
		return nil, &transport.ConnError{
			Kind: transport.KindIO, Code: transport.StatusUnsupportedAPI,
			Op: "get timeline", Message: fmt.Sprintf("pump.io has no %s endpoint", routine),
		}
	}
	params := url.Values{}
	if !since.IsEmpty() {
		params.Set("since", since.String())
	}
	if !until.IsEmpty() {
		params.Set("before", until.String())
	}
	params.Set("count", formatCount(fixLimit(limit)))
	items, err := c.client.GetItems(ctx, path+"?"+params.Encode())
	if err != nil {
		return nil, err
	}
	activities := make([]*model.Activity, 0, len(items))
	for _, item := range items {
		activity, err := c.activityFromRaw(item)
		if err != nil {
			return nil, err
		}
		activities = append(activities, activity)
	}
	return activities, nil
}

// SearchNotes is not part of the pump.io API.
func (c *PumpIo) SearchNotes(ctx context.Context, since model.TimelinePosition, limit int, query string) ([]*model.Activity, error) {
	return nil, &transport.ConnError{
		Kind: transport.KindIO, Code: transport.StatusUnsupportedAPI,
		Op: "search notes", Message: "pump.io has no search endpoint",
	}
}

func (c *PumpIo) GetNote(ctx context.Context, oid string) (*model.Activity, error) {
	body, err := c.client.GetObject(ctx, oid)
	if err != nil {
		return nil, err
	}
	var obj pumpObject
	if err := json.Unmarshal(body, &obj); err != nil {
		return nil, transport.ParseError("get note", string(body), err)
	}
	return c.activityFromObject(&obj), nil
}

func (c *PumpIo) GetActor(ctx context.Context, oid string) (model.Actor, error) {
	path := c.userPath(oid, "profile")
	body, err := c.client.GetObject(ctx, path)
	if err != nil {
		return model.EmptyActor, err
	}
	var obj pumpObject
	if err := json.Unmarshal(body, &obj); err != nil {
		return model.EmptyActor, transport.ParseError("get actor", string(body), err)
	}
	return c.actorFromObject(&obj), nil
}

func (c *PumpIo) UpdateNote(ctx context.Context, content, inReplyToOid string,
	audience model.Audience, mediaURI string) (*model.Activity, error) {
	object := map[string]any{
		"objectType": "note",
		"content":    content,
	}
	if inReplyToOid != "" {
		object = map[string]any{
			"objectType": "comment",
			"content":    content,
			"inReplyTo": map[string]any{
				"id":         inReplyToOid,
				"objectType": "note",
			},
		}
	}
	if mediaURI != "" {
		uploaded, err := c.uploadMedia(ctx, mediaURI)
		if err != nil {
			return nil, err
		}
		uploaded["content"] = content
		object = uploaded
	}
	return c.postActivity(ctx, "post", object, audience)
}

// uploadMedia pushes the file to the account's upload endpoint and returns
// the created media object for embedding into the subsequent post.
func (c *PumpIo) uploadMedia(ctx context.Context, mediaURI string) (map[string]any, error) {
	body, err := c.client.PostMedia(ctx, c.userPath(c.accountActor.Oid, "uploads"), nil, mediaURI)
	if err != nil {
		return nil, err
	}
	var uploaded map[string]any
	if err := json.Unmarshal(body, &uploaded); err != nil {
		return nil, transport.ParseError("upload media", string(body), err)
	}
	return uploaded, nil
}

func (c *PumpIo) Announce(ctx context.Context, oid string) (*model.Activity, error) {
	return c.postVerbOnNote(ctx, "share", oid)
}

func (c *PumpIo) UndoAnnounce(ctx context.Context, oid string) (*model.Activity, error) {
	return c.postVerbOnNote(ctx, "unshare", oid)
}

func (c *PumpIo) Favorite(ctx context.Context, oid string) (*model.Activity, error) {
	return c.postVerbOnNote(ctx, "favorite", oid)
}

func (c *PumpIo) Unfavorite(ctx context.Context, oid string) (*model.Activity, error) {
	return c.postVerbOnNote(ctx, "unfavorite", oid)
}

func (c *PumpIo) DeleteNote(ctx context.Context, oid string) error {
	_, err := c.postVerbOnNote(ctx, "delete", oid)
	return err
}

func (c *PumpIo) Follow(ctx context.Context, actorOid string, follow bool) (*model.Activity, error) {
	verb := "follow"
	if !follow {
		verb = "stop-following"
	}
	object := map[string]any{
		"id":         actorOid,
		"objectType": "person",
	}
	return c.postActivity(ctx, verb, object, model.Audience{})
}

func (c *PumpIo) postVerbOnNote(ctx context.Context, verb, oid string) (*model.Activity, error) {
	object := map[string]any{
		"id":         oid,
		"objectType": "note",
	}
	return c.postActivity(ctx, verb, object, model.Audience{})
}

func (c *PumpIo) postActivity(ctx context.Context, verb string, object map[string]any,
	audience model.Audience) (*model.Activity, error) {
	activity := map[string]any{
		"objectType": "activity",
		"verb":       verb,
		"object":     object,
	}
	if to := audienceToRecipients(audience); len(to) > 0 {
		activity["to"] = to
	} else {
		activity["to"] = []map[string]any{{
			"id":         publicCollectionID,
			"objectType": "collection",
		}}
	}
	body, err := c.client.PostObject(ctx, c.userPath(c.accountActor.Oid, "feed"), activity)
	if err != nil {
		return nil, err
	}
	return c.activityFromRaw(body)
}

func audienceToRecipients(audience model.Audience) []map[string]any {
	recipients := audience.Recipients()
	out := make([]map[string]any, 0, len(recipients))
	for _, actor := range recipients {
		out = append(out, map[string]any{
			"id":         actor.Oid,
			"objectType": "person",
		})
	}
	return out
}

func (c *PumpIo) activityFromRaw(raw json.RawMessage) (*model.Activity, error) {
	var p pumpActivity
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, transport.ParseError("parse activity", string(raw), err)
	}
	if p.ID == "" && p.Object == nil {
		return nil, transport.ParseError("parse activity", string(raw), nil)
	}
	return c.activityFromPump(&p), nil
}

func activityTypeFromVerb(verb string) model.ActivityType {
	switch verb {
	case "post":
		return model.ActivityCreate
	case "update":
		return model.ActivityUpdate
	case "share":
		return model.ActivityAnnounce
	case "favorite", "like":
		return model.ActivityLike
	case "unfavorite", "unlike":
		return model.ActivityUndoLike
	case "follow":
		return model.ActivityFollow
	case "stop-following", "unfollow":
		return model.ActivityUndoFollow
	case "unshare":
		return model.ActivityUndoAnnounce
	case "delete":
		return model.ActivityDelete
	default:
		return model.ActivityUpdate
	}
}

func (c *PumpIo) activityFromPump(p *pumpActivity) *model.Activity {
	typ := activityTypeFromVerb(p.Verb)
	actor := c.actorFromObject(p.Actor)
	act := model.NewActivity(c.accountActor, actor, typ)
	act.Oid = p.ID
	act.Position = model.TimelinePosition(p.ID)
	act.Updated = parseISODate(firstNonEmpty(p.Updated, p.Published))

	for _, recipient := range append(p.To, p.CC...) {
		r := recipient
		if r.ObjectType == "collection" && r.ID == publicCollectionID {
			act.GetNote().Public = model.TriTrue
			continue
		}
		if r.ObjectType == "person" {
			act.Recipients.Add(c.actorFromObject(&r))
		}
	}

	if p.Object == nil {
		return act
	}
	switch act.ObjectType() {
	case model.ObjectActor:
		act.ObjActor = c.actorFromObject(p.Object)
	default:
		c.fillNote(act, p.Object)
	}
	return act
}

// activityFromObject wraps a bare note object (e.g. a directly fetched
// note) into an UPDATE activity by its author.
func (c *PumpIo) activityFromObject(obj *pumpObject) *model.Activity {
	actor := c.actorFromObject(obj.Author)
	act := model.NewActivity(c.accountActor, actor, model.ActivityUpdate)
	act.Oid = obj.ID
	act.Position = model.TimelinePosition(obj.ID)
	act.Updated = parseISODate(firstNonEmpty(obj.Updated, obj.Published))
	c.fillNote(act, obj)
	return act
}

func (c *PumpIo) fillNote(act *model.Activity, obj *pumpObject) {
	note := act.GetNote()
	note.Oid = obj.ID
	note.Name = obj.DisplayName
	note.Content = obj.Content
	note.UpdatedAt = parseISODate(firstNonEmpty(obj.Updated, obj.Published))
	if obj.Author != nil {
		act.Author = c.actorFromObject(obj.Author)
	}
	if obj.Image != nil && obj.Image.URL != "" {
		note.AddAttachment(model.AttachmentFromURI(obj.Image.URL))
	}
	if obj.FullImage != nil && obj.FullImage.URL != "" {
		note.AddAttachment(model.AttachmentFromURI(obj.FullImage.URL))
	}
	if obj.InReplyTo != nil && obj.InReplyTo.ID != "" {
		parentActor := model.EmptyActor
		if obj.InReplyTo.Author != nil {
			parentActor = c.actorFromObject(obj.InReplyTo.Author)
		}
		note.InReplyTo = model.NewPartialNote(c.accountActor, parentActor,
			obj.InReplyTo.ID, parseISODate(obj.InReplyTo.Published))
		// threads share the root note's id as their conversation
		note.ConversationOid = obj.InReplyTo.ID
	}
}

func (c *PumpIo) actorFromObject(obj *pumpObject) model.Actor {
	if obj == nil || obj.ID == "" {
		return model.EmptyActor
	}
	actor := model.ActorFromOid(c.origin, obj.ID)
	actor.Username = nickname(obj.ID)
	if obj.PreferredUsername != "" {
		actor.Username = obj.PreferredUsername
	}
	if host := hostOfOid(obj.ID); host != "" {
		actor.WebFingerID = model.BuildWebFingerID(actor.Username, host)
	}
	actor.RealName = obj.DisplayName
	actor.Description = obj.Summary
	actor.ProfileURL = obj.URL
	if obj.Location != nil {
		actor.Location = obj.Location.DisplayName
	}
	if obj.Image != nil {
		actor.AvatarURL = obj.Image.URL
	}
	if obj.Followers != nil {
		actor.FollowersCount = obj.Followers.TotalItems
	}
	if obj.Following != nil {
		actor.FollowingCount = obj.Following.TotalItems
	}
	if obj.Favorites != nil {
		actor.FavoritesCount = obj.Favorites.TotalItems
	}
	actor.CreatedAt = parseISODate(obj.Published)
	actor.UpdatedAt = parseISODate(obj.Updated)
	return actor
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
