package queue

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCommandHashIgnoresBookkeeping(t *testing.T) {
	a := NewCommand(Reblog, "quitter", "42")
	a.ItemOid = "10341561"
	b := NewCommand(Reblog, "quitter", "42")
	b.ItemOid = "10341561"
	b.ExecutionCount = 5
	b.RetriesLeft = 1
	b.NumIoExceptions = 3
	b.ErrorMessage = "it broke"
	b.LastExecutedAt = time.Now()

	assert.Equal(t, a.ID(), b.ID(), "same work must hash identically")
}

func TestCommandHashSeparatesDifferentWork(t *testing.T) {
	base := func() *CommandData {
		c := NewCommand(UpdateStatus, "quitter", "42")
		c.Content = "hello"
		return c
	}
	variants := map[string]func(*CommandData){
		"code":        func(c *CommandData) { c.Code = Reblog },
		"origin":      func(c *CommandData) { c.Origin = "identica" },
		"account":     func(c *CommandData) { c.AccountActorOid = "43" },
		"content":     func(c *CommandData) { c.Content = "other" },
		"reply":       func(c *CommandData) { c.InReplyToOid = "7" },
		"media":       func(c *CommandData) { c.MediaURI = "/tmp/a.png" },
		"search":      func(c *CommandData) { c.SearchQuery = "q" },
		"timeline":    func(c *CommandData) { c.TimelineRoutine = 2 },
		"target item": func(c *CommandData) { c.ItemOid = "1" },
	}
	ref := base()
	for name, mutate := range variants {
		c := base()
		mutate(c)
		assert.NotEqual(t, ref.ID(), c.ID(), "variant %q collided", name)
	}
}

func TestCommandOrdering(t *testing.T) {
	older := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	newer := older.Add(time.Hour)

	post := NewCommand(UpdateStatus, "quitter", "42")
	post.CreatedAt = newer
	fetch := NewCommand(FetchTimeline, "quitter", "42")
	fetch.CreatedAt = older
	avatar := NewCommand(FetchAvatar, "quitter", "42")
	avatar.CreatedAt = older

	assert.True(t, post.Before(fetch), "user action beats an older background fetch")
	assert.True(t, fetch.Before(avatar), "timeline fetch beats media downloads")

	early := NewCommand(FetchTimeline, "quitter", "42")
	early.CreatedAt = older
	late := NewCommand(FetchTimeline, "identica", "42")
	late.CreatedAt = newer
	assert.True(t, early.Before(late), "within a priority, older runs first")
}

func TestCommandSummary(t *testing.T) {
	c := NewCommand(Reblog, "quitter", "42")
	c.ItemOid = "10341561"
	c.ErrorMessage = "server down"
	c.NumIoExceptions = 2

	s := c.Summary()
	assert.Contains(t, s, "reblog")
	assert.Contains(t, s, "item=10341561")
	assert.Contains(t, s, `"server down"`)
	assert.Contains(t, s, "io=2")
}
