package model

import (
	"strings"
	"time"
)

// Actor is an identity within one origin. The (Origin, Oid) pair is the
// actor's identity; everything else is profile data that may lag behind
// what the origin currently serves.
type Actor struct {
	Origin string
	Oid    string

	Username    string
	WebFingerID string
	RealName    string
	Description string
	Location    string

	ProfileURL  string
	HomepageURL string
	AvatarURL   string
	BannerURL   string

	NotesCount     int64
	FavoritesCount int64
	FollowingCount int64
	FollowersCount int64

	CreatedAt time.Time
	UpdatedAt time.Time
}

// EmptyActor is the canonical "no actor" sentinel. It is never persisted.
var EmptyActor = Actor{}

func ActorFromOid(origin, oid string) Actor {
	return Actor{Origin: origin, Oid: oid}
}

func (a Actor) IsEmpty() bool {
	return a.Oid == ""
}

func (a Actor) NonEmpty() bool {
	return !a.IsEmpty()
}

// SameAs compares identity only, not profile data.
func (a Actor) SameAs(other Actor) bool {
	return a.Origin == other.Origin && a.Oid == other.Oid
}

// BuildWebFingerID normalizes a username@host pair into the canonical
// lower-case WebFinger form.
func BuildWebFingerID(username, host string) string {
	if username == "" || host == "" {
		return ""
	}
	return strings.ToLower(username + "@" + host)
}
