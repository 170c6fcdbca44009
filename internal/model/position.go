package model

// TimelinePosition is an opaque provider-native ordering/pagination token.
// Providers disagree about what it contains (a numeric status id, an
// ActivityStreams URL, a "max_id" cursor), so nothing here interprets it.
type TimelinePosition string

// EmptyPosition means "no position": start from the provider's default.
const EmptyPosition TimelinePosition = ""

func (p TimelinePosition) IsEmpty() bool {
	return p == ""
}

func (p TimelinePosition) String() string {
	return string(p)
}
