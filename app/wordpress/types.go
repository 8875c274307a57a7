package wordpress

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

type Query struct {
	BaseURL  string
	PostType string
	Page     int
	PerPage  int
	After    string // passed verbatim as the "after" filter
}

type Page struct {
	Items      []json.RawMessage
	TotalPages int
}

type Rendered struct {
	Rendered *string `json:"rendered"`
}

// Post is the subset of a REST post object the extractor reads.
type Post struct {
	ID      *int64    `json:"id"`
	Date    *string   `json:"date"`
	Title   *Rendered `json:"title"`
	Content *Rendered `json:"content"`
}

var errMissingField = errors.New("missing field")

// DecodePost decodes one raw item and checks the fields the extractor needs.
func DecodePost(raw json.RawMessage) (*Post, error) {
	var p Post
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("failed to decode post: %w", err)
	}

	switch {
	case p.ID == nil:
		return nil, fmt.Errorf("%w: id", errMissingField)
	case p.Date == nil:
		return nil, fmt.Errorf("%w: date", errMissingField)
	case p.Title == nil || p.Title.Rendered == nil:
		return nil, fmt.Errorf("%w: title.rendered", errMissingField)
	case p.Content == nil || p.Content.Rendered == nil:
		return nil, fmt.Errorf("%w: content.rendered", errMissingField)
	}

	return &p, nil
}

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
}

// ParseDate accepts the ISO 8601 forms WordPress emits, with or without a
// fractional part and a Z/offset suffix.
func ParseDate(s string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q", s)
}
