package model

import "time"

// ActivityType is the verb of an activity.
type ActivityType int

const (
	ActivityEmpty ActivityType = iota
	ActivityUpdate
	ActivityCreate
	ActivityAnnounce
	ActivityLike
	ActivityUndoLike
	ActivityFollow
	ActivityUndoFollow
	ActivityUndoAnnounce
	ActivityDelete
)

func (t ActivityType) String() string {
	switch t {
	case ActivityUpdate:
		return "UPDATE"
	case ActivityCreate:
		return "CREATE"
	case ActivityAnnounce:
		return "ANNOUNCE"
	case ActivityLike:
		return "LIKE"
	case ActivityUndoLike:
		return "UNDO_LIKE"
	case ActivityFollow:
		return "FOLLOW"
	case ActivityUndoFollow:
		return "UNDO_FOLLOW"
	case ActivityUndoAnnounce:
		return "UNDO_ANNOUNCE"
	case ActivityDelete:
		return "DELETE"
	default:
		return "EMPTY"
	}
}

// ObjectType says what kind of object an activity acts on.
type ObjectType int

const (
	ObjectEmpty ObjectType = iota
	ObjectNote
	ObjectActor
)

func (o ObjectType) String() string {
	switch o {
	case ObjectNote:
		return "NOTE"
	case ObjectActor:
		return "ACTOR"
	default:
		return "EMPTY"
	}
}

// Activity is one typed event: an actor did something to a note or to
// another actor.
type Activity struct {
	Type ActivityType

	// AccountActor is the local viewer on whose behalf the activity was
	// fetched; viewer-relative note fields are relative to it.
	AccountActor Actor

	// Actor performed the activity. Author wrote the note, which differs
	// from Actor for announces and likes.
	Actor  Actor
	Author Actor

	// Oid is the activity's own id when the provider has one; Position is
	// its ordering token within a timeline. For plain posts both usually
	// equal the note oid.
	Oid      string
	Position TimelinePosition

	Recipients Audience
	Updated    time.Time

	// Exactly one of Note / ObjActor is meaningful, per ObjectType().
	Note     *Note
	ObjActor Actor
}

func NewEmptyActivity() *Activity {
	return &Activity{Type: ActivityEmpty, Note: &Note{}}
}

// NewActivity starts an activity of the given type acting on a fresh note.
func NewActivity(accountActor, actor Actor, typ ActivityType) *Activity {
	return &Activity{
		Type:         typ,
		AccountActor: accountActor,
		Actor:        actor,
		Author:       actor,
		Note:         NewNote(""),
	}
}

// NewPartialNote builds an UPDATE activity around a note known only by oid,
// e.g. a reply parent that the payload references but does not embed.
func NewPartialNote(accountActor, actor Actor, noteOid string, updated time.Time) *Activity {
	a := NewActivity(accountActor, actor, ActivityUpdate)
	a.Oid = noteOid
	a.Position = TimelinePosition(noteOid)
	a.Note.Oid = noteOid
	a.Updated = updated
	return a
}

// WrapInner rewraps an inner activity as typ (ANNOUNCE or LIKE). The inner
// note is carried over unchanged except that viewer-relative fields may be
// set later; authorship stays with the inner actor.
func WrapInner(actor Actor, typ ActivityType, inner *Activity) *Activity {
	out := &Activity{
		Type:         typ,
		AccountActor: inner.AccountActor,
		Actor:        actor,
		Author:       inner.Actor,
		Note:         inner.Note,
		Updated:      inner.Updated,
	}
	if inner.Author.NonEmpty() && !inner.Author.SameAs(inner.Actor) {
		out.Author = inner.Author
	}
	return out
}

// ObjectType is derived from the activity type alone and is never stored.
func (a *Activity) ObjectType() ObjectType {
	if a == nil {
		return ObjectEmpty
	}
	switch a.Type {
	case ActivityFollow, ActivityUndoFollow:
		return ObjectActor
	case ActivityUpdate, ActivityCreate, ActivityAnnounce, ActivityLike,
		ActivityUndoLike, ActivityUndoAnnounce, ActivityDelete:
		return ObjectNote
	default:
		return ObjectEmpty
	}
}

func (a *Activity) IsEmpty() bool {
	if a == nil || a.Type == ActivityEmpty {
		return true
	}
	switch a.ObjectType() {
	case ObjectNote:
		return a.Note.IsEmpty() && a.Oid == ""
	case ObjectActor:
		return a.ObjActor.IsEmpty()
	default:
		return a.Oid == ""
	}
}

func (a *Activity) NonEmpty() bool {
	return !a.IsEmpty()
}

// GetNote never returns nil.
func (a *Activity) GetNote() *Note {
	if a == nil || a.Note == nil {
		return &Note{}
	}
	return a.Note
}

// GetInReplyTo never returns nil.
func (n *Note) GetInReplyTo() *Activity {
	if n == nil || n.InReplyTo == nil {
		return NewEmptyActivity()
	}
	return n.InReplyTo
}
