package connection

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/MrKhantee/andstatus/internal/model"
	"github.com/MrKhantee/andstatus/internal/transport"
)

func fixture(t *testing.T, name string) []byte {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", name))
	if err != nil {
		t.Fatalf("reading fixture %s: %v", name, err)
	}
	return data
}

func newTestGnuSocial(t *testing.T, handler http.Handler) *GnuSocial {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client, err := transport.NewClient(srv.URL, transport.Credentials{}, transport.Options{
		UserAgent: "andstatus-test/1.0",
	})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	account := model.ActorFromOid("quitter", "1177")
	account.Username = "andstatus"
	return NewGnuSocial(client, "quitter", account)
}

func TestGnuSocialHomeTimeline(t *testing.T) {
	conn := newTestGnuSocial(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/statuses/home_timeline.json" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Write(fixture(t, "gnusocial_home_timeline.json"))
	}))

	activities, err := conn.GetTimeline(context.Background(), HomeTimeline,
		model.EmptyPosition, model.EmptyPosition, 20, "")
	if err != nil {
		t.Fatalf("GetTimeline: %v", err)
	}
	if len(activities) != 3 {
		t.Fatalf("activities = %d, want 3", len(activities))
	}
	// every entry of one fetch keeps its own position, the synthesized
	// LIKE included
	seen := make(map[model.TimelinePosition]bool)
	for _, act := range activities {
		if act.Position.IsEmpty() || seen[act.Position] {
			t.Errorf("position %q empty or repeated in one batch", act.Position)
		}
		seen[act.Position] = true
	}

	plain := activities[0]
	if plain.Type != model.ActivityUpdate {
		t.Errorf("first activity type = %v", plain.Type)
	}
	if plain.GetNote().Oid != "12339570" {
		t.Errorf("first note oid = %q", plain.GetNote().Oid)
	}
	// GNUSocial ships an HTML rendition; it wins over the plain text
	if got := plain.GetNote().Content; got != `Just a plain notice about <a href="http://status.vinilox.eu/tag/nothing">nothing</a> in particular` {
		t.Errorf("first note content = %q", got)
	}
	if plain.GetNote().ConversationOid != "1298047" {
		t.Errorf("conversation oid = %q", plain.GetNote().ConversationOid)
	}
	if plain.GetNote().Favorited != model.TriTrue {
		t.Errorf("favorited = %v, want true", plain.GetNote().Favorited)
	}
	if plain.Actor.WebFingerID != "aru@status.vinilox.eu" {
		t.Errorf("actor webfinger = %q", plain.Actor.WebFingerID)
	}
	if plain.Actor.NotesCount != 823 || plain.Actor.FollowersCount != 14 {
		t.Errorf("actor counts = %d/%d", plain.Actor.NotesCount, plain.Actor.FollowersCount)
	}

	reply := activities[1]
	parent := reply.GetNote().GetInReplyTo()
	if parent.GetNote().Oid != "10387390" {
		t.Errorf("reply parent oid = %q", parent.GetNote().Oid)
	}
	if parent.Actor.Oid != "144" {
		t.Errorf("reply parent actor oid = %q", parent.Actor.Oid)
	}
	if reply.GetNote().Favorited != model.TriUnknown {
		t.Errorf("reply favorited = %v, want unknown (false on the wire maps to unknown)", reply.GetNote().Favorited)
	}
}

// An explicit "favorited=false" from the wire must stay unknown: the API
// reports it relative to the fetching account only when true.
func TestGnuSocialFavoritedFalseStaysUnknown(t *testing.T) {
	conn := newTestGnuSocial(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id": 1, "text": "x", "favorited": false, "user": {"id": 2, "screen_name": "a"}}`))
	}))
	act, err := conn.GetNote(context.Background(), "1")
	if err != nil {
		t.Fatalf("GetNote: %v", err)
	}
	if act.GetNote().Favorited != model.TriUnknown {
		t.Errorf("favorited = %v, want unknown", act.GetNote().Favorited)
	}
}

func TestGnuSocialFavoritingNoticeInTimeline(t *testing.T) {
	conn := newTestGnuSocial(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(fixture(t, "gnusocial_home_timeline.json"))
	}))
	activities, err := conn.GetTimeline(context.Background(), HomeTimeline,
		model.EmptyPosition, model.EmptyPosition, 20, "")
	if err != nil {
		t.Fatalf("GetTimeline: %v", err)
	}

	like := activities[2]
	if like.Type != model.ActivityLike {
		t.Fatalf("type = %v, want LIKE", like.Type)
	}
	if like.Actor.Username != "andstatus" {
		t.Errorf("favoriter = %q", like.Actor.Username)
	}
	note := like.GetNote()
	if note.Content != "Linking the participants of a conversation" {
		t.Errorf("liked content = %q", note.Content)
	}
	// the notice's in-reply-to fields identify the favorited note
	if note.Oid != "12940131" {
		t.Errorf("liked note oid = %q", note.Oid)
	}
	if like.Author.Oid != "379323" {
		t.Errorf("liked note author = %q", like.Author.Oid)
	}
	if !note.UpdatedAt.Equal(model.SomeTimeAgo) {
		t.Errorf("liked note updated = %v, want the SomeTimeAgo sentinel", note.UpdatedAt)
	}
	// the activity itself keeps the real event time
	want := time.Date(2014, 10, 26, 22, 36, 25, 0, time.UTC)
	if !like.Updated.Equal(want) {
		t.Errorf("activity updated = %v, want %v", like.Updated, want)
	}
}

func TestGnuSocialReblog(t *testing.T) {
	conn := newTestGnuSocial(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(fixture(t, "gnusocial_reblog.json"))
	}))
	act, err := conn.GetNote(context.Background(), "10341833")
	if err != nil {
		t.Fatalf("GetNote: %v", err)
	}
	if act.Type != model.ActivityAnnounce {
		t.Fatalf("type = %v, want ANNOUNCE", act.Type)
	}
	if act.Oid != "10341833" || act.Position != model.TimelinePosition("10341833") {
		t.Errorf("announce oid/position = %q/%q", act.Oid, act.Position)
	}
	if act.Actor.WebFingerID != "andstatus@loadaverage.org" {
		t.Errorf("rebloger = %q", act.Actor.WebFingerID)
	}
	if act.Author.WebFingerID != "igor@herds.eu" {
		t.Errorf("author = %q", act.Author.WebFingerID)
	}
	note := act.GetNote()
	if note.Oid != "10341561" {
		t.Errorf("inner note oid = %q", note.Oid)
	}
	if note.ConversationOid != "9118253" {
		t.Errorf("inner conversation = %q", note.ConversationOid)
	}
}

func TestGnuSocialNoteWithAttachment(t *testing.T) {
	conn := newTestGnuSocial(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(fixture(t, "gnusocial_note_with_attachment.json"))
	}))
	act, err := conn.GetNote(context.Background(), "2215662")
	if err != nil {
		t.Fatalf("GetNote: %v", err)
	}
	note := act.GetNote()
	if note.Oid != "2215662" || note.ConversationOid != "1956322" {
		t.Errorf("note oid/conversation = %q/%q", note.Oid, note.ConversationOid)
	}
	if len(note.Attachments) != 1 {
		t.Fatalf("attachments = %d, want 1", len(note.Attachments))
	}
	a := note.Attachments[0]
	if a.URI != "https://quitter.se/file/mcscx-20131110T222250-427wlgn.png" {
		t.Errorf("attachment uri = %q", a.URI)
	}
	if a.Kind != model.KindImage {
		t.Errorf("attachment kind = %v, want image", a.Kind)
	}
}

func TestGnuSocialAtomFallback(t *testing.T) {
	conn := newTestGnuSocial(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/statuses/home_timeline.json":
			// some deployments answer timeline requests with an HTML page
			w.Write([]byte("<html><body>no api here</body></html>"))
		case "/api/statuses/home_timeline.atom":
			w.Write(fixture(t, "gnusocial_home_timeline.atom"))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))

	activities, err := conn.GetTimeline(context.Background(), HomeTimeline,
		model.EmptyPosition, model.EmptyPosition, 20, "")
	if err != nil {
		t.Fatalf("GetTimeline: %v", err)
	}
	if len(activities) != 2 {
		t.Fatalf("activities = %d, want 2", len(activities))
	}
	if activities[0].GetNote().Oid != "12345" {
		t.Errorf("first oid = %q", activities[0].GetNote().Oid)
	}
	if activities[0].Actor.Username != "aru" {
		t.Errorf("first actor = %q", activities[0].Actor.Username)
	}
	// the favoriting heuristic applies to feed entries too
	if activities[1].Type != model.ActivityLike {
		t.Errorf("second type = %v, want LIKE", activities[1].Type)
	}
	if activities[1].GetNote().Content != "First notice body" {
		t.Errorf("liked content = %q", activities[1].GetNote().Content)
	}
}

func TestCreateLikeActivity(t *testing.T) {
	account := model.ActorFromOid("quitter", "1")
	build := func(actorOid, content string) *model.Activity {
		act := model.NewActivity(account, model.ActorFromOid("quitter", actorOid), model.ActivityUpdate)
		act.Oid = "99"
		act.Note.Oid = "99"
		act.Note.Content = content
		return act
	}

	first := CreateLikeActivity(build("10", "firstUser favorited something by originalPoster: the very same note"))
	second := CreateLikeActivity(build("11", "secondUser favourited something by originalPoster: the very same note"))
	if first.Type != model.ActivityLike || second.Type != model.ActivityLike {
		t.Fatalf("types = %v/%v, want LIKE", first.Type, second.Type)
	}
	// two favoritings of the same note must agree on the note content
	if !first.GetNote().ContentEquals(second.GetNote()) {
		t.Errorf("liked notes differ: %q vs %q", first.GetNote().Content, second.GetNote().Content)
	}
	if first.GetNote().Content != "the very same note" {
		t.Errorf("liked content = %q", first.GetNote().Content)
	}

	passthrough := build("12", "just a regular notice, nothing favorited here")
	if got := CreateLikeActivity(passthrough); got != passthrough {
		t.Error("non-favoriting activity should pass through unchanged")
	}
}

func TestParseFavoritingBody(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
		ok      bool
	}{
		{"favorited", "joe favorited something by ann: hello there", "hello there", true},
		{"favourited", "joe favourited something by ann: hello there", "hello there", true},
		{"no author prefix", "joe favourited that thing", "that thing", true},
		{"different verb", "joe posted something by ann: hello", "", false},
		{"too short", "favorited", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := parseFavoritingBody(tt.content)
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v", ok, tt.ok)
			}
			if ok && got != tt.want {
				t.Errorf("body = %q, want %q", got, tt.want)
			}
		})
	}
}
