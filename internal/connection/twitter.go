package connection

import (
	"context"
	"encoding/json"
	"net/url"
	"time"

	"github.com/MrKhantee/andstatus/internal/model"
	"github.com/MrKhantee/andstatus/internal/transport"
)

// wireStatus is the Twitter-compatible status payload. GNUSocial extends
// the same shape with statusnet_* fields, so both variants share it.
type wireStatus struct {
	ID                   json.Number `json:"id"`
	IDStr                string      `json:"id_str"`
	Text                 string      `json:"text"`
	StatusNetHTML        string      `json:"statusnet_html"`
	CreatedAt            string      `json:"created_at"`
	InReplyToStatusID    json.Number `json:"in_reply_to_status_id"`
	InReplyToStatusIDStr string      `json:"in_reply_to_status_id_str"`
	InReplyToUserID      json.Number `json:"in_reply_to_user_id"`
	InReplyToUserIDStr   string      `json:"in_reply_to_user_id_str"`
	Favorited            bool        `json:"favorited"`
	RetweetedStatus      *wireStatus `json:"retweeted_status"`
	User                 *wireUser   `json:"user"`

	ConversationID json.Number      `json:"statusnet_conversation_id"`
	Attachments    []wireAttachment `json:"attachments"`
}

func (s *wireStatus) oid() string {
	if s.IDStr != "" {
		return s.IDStr
	}
	return s.ID.String()
}

func (s *wireStatus) replyToOid() string {
	if s.InReplyToStatusIDStr != "" {
		return s.InReplyToStatusIDStr
	}
	return s.InReplyToStatusID.String()
}

func (s *wireStatus) replyToUserOid() string {
	if s.InReplyToUserIDStr != "" {
		return s.InReplyToUserIDStr
	}
	return s.InReplyToUserID.String()
}

type wireUser struct {
	ID               json.Number `json:"id"`
	IDStr            string      `json:"id_str"`
	ScreenName       string      `json:"screen_name"`
	Name             string      `json:"name"`
	Description      string      `json:"description"`
	Location         string      `json:"location"`
	URL              string      `json:"url"`
	ProfileURL       string      `json:"statusnet_profile_url"`
	ProfileImageURL  string      `json:"profile_image_url"`
	ProfileBannerURL string      `json:"profile_banner_url"`
	StatusesCount    int64       `json:"statuses_count"`
	FavouritesCount  int64       `json:"favourites_count"`
	FriendsCount     int64       `json:"friends_count"`
	FollowersCount   int64       `json:"followers_count"`
	CreatedAt        string      `json:"created_at"`
}

func (u *wireUser) oid() string {
	if u.IDStr != "" {
		return u.IDStr
	}
	return u.ID.String()
}

type wireAttachment struct {
	URL      string `json:"url"`
	ThumbURL string `json:"thumb_url"`
	MimeType string `json:"mimetype"`
}

// statusQuirks selects the provider-specific parts of status parsing.
type statusQuirks struct {
	// preferHTML takes statusnet_html over text when present
	preferHTML bool
	// conversationID reads statusnet_conversation_id into the note
	conversationID bool
}

// statusParser lets the shared request methods dispatch into the concrete
// variant's parsing, quirks included.
type statusParser interface {
	activityFromRaw(raw json.RawMessage) (*model.Activity, error)
}

// TwitterAPI talks to a Twitter-compatible REST endpoint.
type TwitterAPI struct {
	base
	quirks statusQuirks
	parser statusParser
}

func NewTwitterAPI(client *transport.Client, origin string, accountActor model.Actor) *TwitterAPI {
	c := &TwitterAPI{base: base{client: client, origin: origin, accountActor: accountActor}}
	c.parser = c
	return c
}

func (c *TwitterAPI) routinePath(routine ApiRoutine) string {
	switch routine {
	case PublicTimeline:
		return "api/statuses/public_timeline.json"
	case HomeTimeline:
		return "api/statuses/home_timeline.json"
	case ActorTimeline:
		return "api/statuses/user_timeline.json"
	case SearchTimeline:
		return "api/search.json"
	default:
		return ""
	}
}

func (c *TwitterAPI) GetTimeline(ctx context.Context, routine ApiRoutine, since, until model.TimelinePosition,
	limit int, actorOid string) ([]*model.Activity, error) {
	params := url.Values{}
	if !since.IsEmpty() {
		params.Set("since_id", since.String())
	}
	if !until.IsEmpty() {
		params.Set("max_id", until.String())
	}
	params.Set("count", formatCount(fixLimit(limit)))
	if actorOid != "" {
		params.Set("user_id", actorOid)
	}
	items, err := c.client.GetItems(ctx, c.routinePath(routine)+"?"+params.Encode())
	if err != nil {
		return nil, err
	}
	return c.activitiesFromRaw(items)
}

func (c *TwitterAPI) SearchNotes(ctx context.Context, since model.TimelinePosition, limit int, query string) ([]*model.Activity, error) {
	params := url.Values{}
	params.Set("q", query)
	if !since.IsEmpty() {
		params.Set("since_id", since.String())
	}
	params.Set("rpp", formatCount(fixLimit(limit)))
	items, err := c.client.GetItems(ctx, c.routinePath(SearchTimeline)+"?"+params.Encode())
	if err != nil {
		return nil, err
	}
	return c.activitiesFromRaw(items)
}

func (c *TwitterAPI) activitiesFromRaw(items []json.RawMessage) ([]*model.Activity, error) {
	activities := make([]*model.Activity, 0, len(items))
	for _, item := range items {
		activity, err := c.parser.activityFromRaw(item)
		if err != nil {
			return nil, err
		}
		activities = append(activities, activity)
	}
	return activities, nil
}

func (c *TwitterAPI) GetNote(ctx context.Context, oid string) (*model.Activity, error) {
	body, err := c.client.GetObject(ctx, "api/statuses/show.json?id="+url.QueryEscape(oid))
	if err != nil {
		return nil, err
	}
	return c.parser.activityFromRaw(body)
}

func (c *TwitterAPI) GetActor(ctx context.Context, oid string) (model.Actor, error) {
	body, err := c.client.GetObject(ctx, "api/users/show.json?user_id="+url.QueryEscape(oid))
	if err != nil {
		return model.EmptyActor, err
	}
	var u wireUser
	if err := json.Unmarshal(body, &u); err != nil {
		return model.EmptyActor, transport.ParseError("get actor", string(body), err)
	}
	return actorFromWireUser(c.origin, &u), nil
}

func (c *TwitterAPI) UpdateNote(ctx context.Context, content, inReplyToOid string,
	audience model.Audience, mediaURI string) (*model.Activity, error) {
	var body json.RawMessage
	var err error
	if mediaURI != "" {
		fields := map[string]string{"status": content}
		if inReplyToOid != "" {
			fields["in_reply_to_status_id"] = inReplyToOid
		}
		body, err = c.client.PostMedia(ctx, "api/statuses/update_with_media.json", fields, mediaURI)
	} else {
		form := url.Values{}
		form.Set("status", content)
		if inReplyToOid != "" {
			form.Set("in_reply_to_status_id", inReplyToOid)
		}
		body, err = c.client.PostParams(ctx, "api/statuses/update.json", form)
	}
	if err != nil {
		return nil, err
	}
	return c.parser.activityFromRaw(body)
}

func (c *TwitterAPI) Announce(ctx context.Context, oid string) (*model.Activity, error) {
	body, err := c.client.PostParams(ctx, "api/statuses/retweet/"+oid+".json", nil)
	if err != nil {
		return nil, err
	}
	return c.parser.activityFromRaw(body)
}

func (c *TwitterAPI) UndoAnnounce(ctx context.Context, oid string) (*model.Activity, error) {
	if err := c.DeleteNote(ctx, oid); err != nil {
		return nil, err
	}
	out := model.NewActivity(c.accountActor, c.accountActor, model.ActivityUndoAnnounce)
	out.Note.Oid = oid
	return out, nil
}

func (c *TwitterAPI) Favorite(ctx context.Context, oid string) (*model.Activity, error) {
	body, err := c.client.PostParams(ctx, "api/favorites/create/"+oid+".json", nil)
	if err != nil {
		return nil, err
	}
	inner, err := c.parser.activityFromRaw(body)
	if err != nil {
		return nil, err
	}
	out := model.WrapInner(c.accountActor, model.ActivityLike, inner)
	// the endpoint usually echoes favorited=true already; fill it in only
	// when the response leaves it unsaid
	if !out.Note.Favorited.Known() {
		out.Note.Favorited = model.TriTrue
	}
	return out, nil
}

func (c *TwitterAPI) Unfavorite(ctx context.Context, oid string) (*model.Activity, error) {
	body, err := c.client.PostParams(ctx, "api/favorites/destroy/"+oid+".json", nil)
	if err != nil {
		return nil, err
	}
	inner, err := c.parser.activityFromRaw(body)
	if err != nil {
		return nil, err
	}
	out := model.WrapInner(c.accountActor, model.ActivityUndoLike, inner)
	out.Note.Favorited = model.TriFalse
	return out, nil
}

func (c *TwitterAPI) DeleteNote(ctx context.Context, oid string) error {
	_, err := c.client.PostParams(ctx, "api/statuses/destroy/"+oid+".json", nil)
	return err
}

func (c *TwitterAPI) Follow(ctx context.Context, actorOid string, follow bool) (*model.Activity, error) {
	path := "api/friendships/create.json"
	typ := model.ActivityFollow
	if !follow {
		path = "api/friendships/destroy.json"
		typ = model.ActivityUndoFollow
	}
	form := url.Values{}
	form.Set("user_id", actorOid)
	body, err := c.client.PostParams(ctx, path, form)
	if err != nil {
		return nil, err
	}
	var u wireUser
	if err := json.Unmarshal(body, &u); err != nil {
		return nil, transport.ParseError("follow", string(body), err)
	}
	out := model.NewActivity(c.accountActor, c.accountActor, typ)
	out.ObjActor = actorFromWireUser(c.origin, &u)
	return out, nil
}

func (c *TwitterAPI) activityFromRaw(raw json.RawMessage) (*model.Activity, error) {
	var st wireStatus
	if err := json.Unmarshal(raw, &st); err != nil {
		return nil, transport.ParseError("parse status", string(raw), err)
	}
	if st.oid() == "" {
		return nil, transport.ParseError("parse status", string(raw), nil)
	}
	return c.activityFromStatus(&st), nil
}

// activityFromStatus maps one status payload to exactly one activity. A
// payload carrying retweeted_status becomes an ANNOUNCE around the inner
// note; the inner note keeps its own oid and conversation while the
// announce carries the reblog event's id and position.
func (c *TwitterAPI) activityFromStatus(st *wireStatus) *model.Activity {
	updated := parseTwitterDate(st.CreatedAt)
	if st.RetweetedStatus != nil {
		inner := c.activityFromStatus(st.RetweetedStatus)
		out := model.WrapInner(actorFromWireUser(c.origin, st.User), model.ActivityAnnounce, inner)
		out.AccountActor = c.accountActor
		out.Oid = st.oid()
		out.Position = model.TimelinePosition(st.oid())
		out.Updated = updated
		return out
	}

	actor := actorFromWireUser(c.origin, st.User)
	act := model.NewActivity(c.accountActor, actor, model.ActivityUpdate)
	act.Oid = st.oid()
	act.Position = model.TimelinePosition(st.oid())
	act.Updated = updated

	note := act.Note
	note.Oid = st.oid()
	note.UpdatedAt = updated
	note.Content = st.Text
	if c.quirks.preferHTML && st.StatusNetHTML != "" {
		note.Content = st.StatusNetHTML
	}
	if c.quirks.conversationID {
		note.ConversationOid = st.ConversationID.String()
	}
	if st.Favorited {
		note.Favorited = model.TriTrue
	}
	for _, a := range st.Attachments {
		note.AddAttachment(model.AttachmentFromURI(a.URL))
	}
	if oid := st.replyToOid(); oid != "" {
		parentActor := model.ActorFromOid(c.origin, st.replyToUserOid())
		note.InReplyTo = model.NewPartialNote(c.accountActor, parentActor, oid, time.Time{})
	}
	return act
}

func actorFromWireUser(origin string, u *wireUser) model.Actor {
	if u == nil {
		return model.EmptyActor
	}
	actor := model.ActorFromOid(origin, u.oid())
	actor.Username = u.ScreenName
	actor.RealName = u.Name
	actor.Description = u.Description
	actor.Location = u.Location
	actor.HomepageURL = u.URL
	actor.ProfileURL = u.ProfileURL
	actor.AvatarURL = u.ProfileImageURL
	actor.BannerURL = u.ProfileBannerURL
	actor.NotesCount = u.StatusesCount
	actor.FavoritesCount = u.FavouritesCount
	actor.FollowingCount = u.FriendsCount
	actor.FollowersCount = u.FollowersCount
	actor.CreatedAt = parseTwitterDate(u.CreatedAt)
	if host := hostOfURL(u.ProfileURL); host != "" {
		actor.WebFingerID = model.BuildWebFingerID(u.ScreenName, host)
	}
	return actor
}

func hostOfURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Host
}
