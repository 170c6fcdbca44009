package model

import (
	"mime"
	"path"
	"strings"
)

// ContentKind is the coarse classification of an attachment, derived from
// its URI. It drives how the downloaded file is handled, not how the
// provider described it.
type ContentKind int

const (
	KindUnknown ContentKind = iota
	KindImage
	KindVideo
	KindAudio
	KindText
)

func (k ContentKind) String() string {
	switch k {
	case KindImage:
		return "image"
	case KindVideo:
		return "video"
	case KindAudio:
		return "audio"
	case KindText:
		return "text"
	default:
		return "unknown"
	}
}

// Attachment is a single media reference. Two attachments are equal iff
// their URIs are equal; the derived kind never participates in equality.
type Attachment struct {
	URI  string
	Kind ContentKind
}

func AttachmentFromURI(uri string) Attachment {
	return Attachment{URI: uri, Kind: kindFromURI(uri)}
}

func (a Attachment) IsEmpty() bool {
	return a.URI == ""
}

func (a Attachment) Equal(other Attachment) bool {
	return a.URI == other.URI
}

func kindFromURI(uri string) ContentKind {
	ext := strings.ToLower(path.Ext(stripQuery(uri)))
	mimeType := mime.TypeByExtension(ext)
	switch {
	case strings.HasPrefix(mimeType, "image/"):
		return KindImage
	case strings.HasPrefix(mimeType, "video/"):
		return KindVideo
	case strings.HasPrefix(mimeType, "audio/"):
		return KindAudio
	case strings.HasPrefix(mimeType, "text/"):
		return KindText
	}
	// mime tables differ between systems; cover the formats the fediverse
	// actually serves before giving up
	switch ext {
	case ".png", ".jpg", ".jpeg", ".gif", ".webp", ".svg":
		return KindImage
	case ".mp4", ".webm", ".mov":
		return KindVideo
	case ".mp3", ".ogg", ".oga", ".flac":
		return KindAudio
	case ".txt", ".html", ".htm":
		return KindText
	}
	return KindUnknown
}

func stripQuery(uri string) string {
	if i := strings.IndexAny(uri, "?#"); i >= 0 {
		return uri[:i]
	}
	return uri
}
