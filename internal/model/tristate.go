package model

import "fmt"

// TriState is a three-valued boolean used for viewer-relative fields where
// the provider may simply not say (e.g. "favorited by me", "is public").
type TriState int8

const (
	TriUnknown TriState = iota
	TriTrue
	TriFalse
)

func TriStateOf(b bool) TriState {
	if b {
		return TriTrue
	}
	return TriFalse
}

func (t TriState) Known() bool {
	return t != TriUnknown
}

func (t TriState) ToBool(unknownAs bool) bool {
	switch t {
	case TriTrue:
		return true
	case TriFalse:
		return false
	default:
		return unknownAs
	}
}

func (t TriState) String() string {
	switch t {
	case TriTrue:
		return "true"
	case TriFalse:
		return "false"
	default:
		return "unknown"
	}
}

func (t TriState) MarshalJSON() ([]byte, error) {
	return []byte(`"` + t.String() + `"`), nil
}

func (t *TriState) UnmarshalJSON(data []byte) error {
	switch string(data) {
	case `"true"`, "true":
		*t = TriTrue
	case `"false"`, "false":
		*t = TriFalse
	case `"unknown"`, "null", `""`:
		*t = TriUnknown
	default:
		return fmt.Errorf("invalid tri-state value: %s", data)
	}
	return nil
}
