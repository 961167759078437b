package contentcache

import "time"

// ContentItem is one piece of content as stored and cached.
// NativeID is the store's own identifier; ID is always filled on returned items.
type ContentItem struct {
	NativeID  string         `json:"_id,omitempty" msgpack:"_id,omitempty" cbor:"_id,omitempty"`
	ID        string         `json:"id" msgpack:"id" cbor:"id"`
	Title     string         `json:"title" msgpack:"title" cbor:"title"`
	Summary   string         `json:"summary" msgpack:"summary" cbor:"summary"`
	Body      string         `json:"body" msgpack:"body" cbor:"body"`
	Quiz      []QuizQuestion `json:"quiz,omitempty" msgpack:"quiz,omitempty" cbor:"quiz,omitempty"`
	Notes     string         `json:"notes,omitempty" msgpack:"notes,omitempty" cbor:"notes,omitempty"`
	Media     []MediaRef     `json:"media,omitempty" msgpack:"media,omitempty" cbor:"media,omitempty"`
	CreatedAt time.Time      `json:"createdAt" msgpack:"createdAt" cbor:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt" msgpack:"updatedAt" cbor:"updatedAt"`
}

type QuizQuestion struct {
	Question string   `json:"question" msgpack:"question" cbor:"question"`
	Options  []string `json:"options" msgpack:"options" cbor:"options"`
	Answer   int      `json:"answer" msgpack:"answer" cbor:"answer"`
}

// MediaRef points at an uploaded asset. Kind is e.g. "image" or "video".
type MediaRef struct {
	Kind string `json:"kind" msgpack:"kind" cbor:"kind"`
	URL  string `json:"url" msgpack:"url" cbor:"url"`
}

// Envelope is the uniform {data, meta} wrapper returned by list-shaped reads.
type Envelope[M any] struct {
	Data []ContentItem `json:"data" msgpack:"data" cbor:"data"`
	Meta M             `json:"meta" msgpack:"meta" cbor:"meta"`
}

type ListMeta struct {
	Page  int `json:"page" msgpack:"page" cbor:"page"`
	Limit int `json:"limit" msgpack:"limit" cbor:"limit"`
	Total int `json:"total" msgpack:"total" cbor:"total"`
}

// TodayMeta carries the calendar date (YYYY-MM-DD in the reader's location).
type TodayMeta struct {
	Date  string `json:"date" msgpack:"date" cbor:"date"`
	Total int    `json:"total" msgpack:"total" cbor:"total"`
}

// normalizeID copies the store-native identifier into ID when the store left it empty.
func normalizeID(it ContentItem) ContentItem {
	if it.ID == "" {
		it.ID = it.NativeID
	}
	return it
}

func normalizeIDs(items []ContentItem) []ContentItem {
	out := make([]ContentItem, len(items))
	for i, it := range items {
		out[i] = normalizeID(it)
	}
	return out
}
