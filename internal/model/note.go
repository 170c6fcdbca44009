package model

import "time"

// SomeTimeAgo is the fixed "happened at some unknown earlier time"
// timestamp. It is distinct from the zero time, which means "never".
// Synthesized notes (e.g. the target of a favoriting activity) carry it
// because the provider only reports when the event happened, not when the
// underlying note was written.
var SomeTimeAgo = time.UnixMilli(1).UTC()

// Note is one unit of content. Content may carry HTML.
type Note struct {
	Oid             string
	ConversationOid string

	// Name is the optional title (pump.io displayName); most providers
	// leave it empty.
	Name    string
	Content string

	// Public is viewer-independent visibility as far as the provider
	// reported it.
	Public TriState

	Attachments []Attachment

	// InReplyTo is the full parent activity, never nil: rendering the
	// immediate parent must not require a second lookup. Empty when the
	// note is not a reply or the parent could not be resolved.
	InReplyTo *Activity

	// Favorited is relative to the account actor of the surrounding
	// activity.
	Favorited TriState

	UpdatedAt time.Time
}

func NewNote(oid string) *Note {
	return &Note{Oid: oid, InReplyTo: NewEmptyActivity()}
}

func (n *Note) IsEmpty() bool {
	return n == nil || (n.Oid == "" && n.Content == "" && len(n.Attachments) == 0)
}

func (n *Note) AddAttachment(a Attachment) {
	if a.IsEmpty() {
		return
	}
	for _, existing := range n.Attachments {
		if existing.Equal(a) {
			return
		}
	}
	n.Attachments = append(n.Attachments, a)
}

// ContentEquals reports whether two notes carry the same content. Only
// content-bearing fields participate; viewer-relative state (Favorited)
// and timestamps do not.
func (n *Note) ContentEquals(other *Note) bool {
	if n == nil || other == nil {
		return n == other
	}
	if n.Oid != other.Oid ||
		n.ConversationOid != other.ConversationOid ||
		n.Name != other.Name ||
		n.Content != other.Content ||
		len(n.Attachments) != len(other.Attachments) {
		return false
	}
	for i := range n.Attachments {
		if !n.Attachments[i].Equal(other.Attachments[i]) {
			return false
		}
	}
	return true
}

// Copy returns a deep copy with a replacement oid, preserving everything
// else including the reply reference.
func (n *Note) Copy(oid string) *Note {
	out := *n
	out.Oid = oid
	out.Attachments = make([]Attachment, len(n.Attachments))
	copy(out.Attachments, n.Attachments)
	return &out
}
