package repository

import (
	"strings"

	"journal-service/models"
)

// NoteFilter is a SQL predicate over the notes table (aliased "n") with its
// positional arguments. Placeholders are "?" and must be rebound per driver.
type NoteFilter struct {
	Where string
	Args  []interface{}
}

// noteOrder lists the most recent entries first
const noteOrder = "n.entry_time DESC, n.created_at DESC"

// BuildNoteFilter ANDs together the owner scope and every supplied search
// dimension. The owner scope is always present.
func BuildNoteFilter(ownerID string, q models.NoteQuery) NoteFilter {
	clauses := []string{"n.user_id = ?"}
	args := []interface{}{ownerID}

	if q.Q != "" {
		clauses = append(clauses, `LOWER(n.text) LIKE ? ESCAPE '\'`)
		args = append(args, "%"+escapeLike(strings.ToLower(q.Q))+"%")
	}
	if q.Mood != "" {
		clauses = append(clauses, "n.mood = ?")
		args = append(args, q.Mood)
	}
	if q.Tag != "" {
		clauses = append(clauses, "EXISTS (SELECT 1 FROM note_tags t WHERE t.note_id = n.id AND t.tag = ?)")
		args = append(args, q.Tag)
	}
	if q.From != nil {
		clauses = append(clauses, "n.entry_time >= ?")
		args = append(args, q.From.UTC())
	}
	if q.To != nil {
		clauses = append(clauses, "n.entry_time <= ?")
		args = append(args, q.To.UTC())
	}

	return NoteFilter{
		Where: strings.Join(clauses, " AND "),
		Args:  args,
	}
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// escapeLike makes user text match literally inside a LIKE pattern
func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
