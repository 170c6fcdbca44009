package model

// Audience is the set of recipient actors of a note. An empty audience
// means the note is public or simply unaddressed.
type Audience struct {
	actors []Actor
}

func NewAudience(actors ...Actor) Audience {
	var a Audience
	for _, actor := range actors {
		a.Add(actor)
	}
	return a
}

// Add inserts a recipient unless it is empty or already present.
func (a *Audience) Add(actor Actor) {
	if actor.IsEmpty() || a.Contains(actor) {
		return
	}
	a.actors = append(a.actors, actor)
}

func (a Audience) Contains(actor Actor) bool {
	for _, existing := range a.actors {
		if existing.SameAs(actor) {
			return true
		}
	}
	return false
}

func (a Audience) IsEmpty() bool {
	return len(a.actors) == 0
}

func (a Audience) NonEmpty() bool {
	return !a.IsEmpty()
}

// Recipients returns a copy; the audience itself stays immutable to callers.
func (a Audience) Recipients() []Actor {
	out := make([]Actor, len(a.actors))
	copy(out, a.actors)
	return out
}
