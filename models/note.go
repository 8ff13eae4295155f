package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// DefaultMood is applied when a note is saved without a mood
const DefaultMood = "Neutral"

// Note is a single journal entry owned by one user
type Note struct {
	ID        string    `json:"id" db:"id"`
	UserID    string    `json:"userId" db:"user_id"`
	Text      string    `json:"text" db:"text"`
	Mood      string    `json:"mood" db:"mood"`
	Tags      []string  `json:"tags" db:"-"`
	Prompt    string    `json:"prompt" db:"prompt"`
	Time      time.Time `json:"time" db:"entry_time"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

// NoteRequest is the body of POST /Notes and PUT /Notes/{id}.
// The web client sends the note body as "note".
type NoteRequest struct {
	Note   string  `json:"note"`
	Mood   string  `json:"mood"`
	Tags   TagList `json:"tags"`
	Prompt string  `json:"prompt"`
}

// TagList accepts either a JSON array of strings or a single
// comma-separated string, and normalizes both into trimmed, non-empty tags.
type TagList []string

// UnmarshalJSON implements json.Unmarshaler
func (t *TagList) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*t = TagList{}
		return nil
	}

	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*t = NormalizeTags(list)
		return nil
	}

	var joined string
	if err := json.Unmarshal(data, &joined); err != nil {
		return fmt.Errorf("tags must be a string or an array of strings")
	}
	*t = SplitTags(joined)
	return nil
}

// SplitTags splits a comma-separated tag string
func SplitTags(s string) []string {
	return NormalizeTags(strings.Split(s, ","))
}

// NormalizeTags trims every tag and drops the empty ones, keeping order.
// Always returns a non-nil slice.
func NormalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		out = append(out, tag)
	}
	return out
}

// NoteQuery holds the optional search dimensions of GET /getNotes.
// Zero values mean "no constraint".
type NoteQuery struct {
	Q    string
	Mood string
	Tag  string
	From *time.Time
	To   *time.Time
}

const dateOnly = "2006-01-02"

// ParseNoteQuery builds a NoteQuery from raw query-string values.
// Dates may be RFC 3339 timestamps or plain YYYY-MM-DD dates; a plain "to"
// date covers the whole day.
func ParseNoteQuery(q, mood, tag, from, to string) (NoteQuery, error) {
	query := NoteQuery{
		Q:    strings.TrimSpace(q),
		Mood: strings.TrimSpace(mood),
		Tag:  strings.TrimSpace(tag),
	}

	if from = strings.TrimSpace(from); from != "" {
		t, _, err := parseQueryTime(from)
		if err != nil {
			return NoteQuery{}, fmt.Errorf("invalid from date %q", from)
		}
		query.From = &t
	}

	if to = strings.TrimSpace(to); to != "" {
		t, isDate, err := parseQueryTime(to)
		if err != nil {
			return NoteQuery{}, fmt.Errorf("invalid to date %q", to)
		}
		if isDate {
			t = t.Add(24*time.Hour - time.Nanosecond)
		}
		query.To = &t
	}

	if query.From != nil && query.To != nil && query.From.After(*query.To) {
		return NoteQuery{}, fmt.Errorf("from date is after to date")
	}

	return query, nil
}

// parseQueryTime accepts RFC3339 or YYYY-MM-DD. A "+hh:mm" offset sent
// unescaped in a query string arrives as " hh:mm" and is restored.
func parseQueryTime(s string) (time.Time, bool, error) {
	if n := len(s); n > 6 && s[n-6] == ' ' && s[n-3] == ':' {
		s = s[:n-6] + "+" + s[n-5:]
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC(), false, nil
	}
	t, err := time.Parse(dateOnly, s)
	if err != nil {
		return time.Time{}, false, err
	}
	return t.UTC(), true, nil
}
