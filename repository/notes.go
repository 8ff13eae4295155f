package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"journal-service/models"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// NoteRepository persists journal notes and their tags
type NoteRepository interface {
	Create(ctx context.Context, note *models.Note) error
	FindByID(ctx context.Context, id string) (*models.Note, error)
	List(ctx context.Context, ownerID string, q models.NoteQuery) ([]models.Note, error)
	Update(ctx context.Context, note *models.Note) error
	Delete(ctx context.Context, id string) error
}

type sqlNoteRepository struct {
	db *sqlx.DB
}

// NewNoteRepository returns a NoteRepository backed by sqlx
func NewNoteRepository(db *sqlx.DB) NoteRepository {
	return &sqlNoteRepository{db: db}
}

const noteColumns = "n.id, n.user_id, n.text, n.mood, n.prompt, n.entry_time, n.created_at, n.updated_at"

// Create inserts the note and its tags in one transaction.
// ID and bookkeeping timestamps are assigned here; a zero Time defaults to now.
func (r *sqlNoteRepository) Create(ctx context.Context, note *models.Note) error {
	now := time.Now().UTC()
	note.ID = uuid.New().String()
	note.CreatedAt = now
	note.UpdatedAt = now
	if note.Time.IsZero() {
		note.Time = now
	} else {
		note.Time = note.Time.UTC()
	}
	if note.Tags == nil {
		note.Tags = []string{}
	}

	return r.inTx(ctx, func(tx *sqlx.Tx) error {
		query := tx.Rebind(`INSERT INTO notes (id, user_id, text, mood, prompt, entry_time, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
		if _, err := tx.ExecContext(ctx, query,
			note.ID, note.UserID, note.Text, note.Mood, note.Prompt, note.Time, note.CreatedAt, note.UpdatedAt); err != nil {
			return fmt.Errorf("insert note: %w", err)
		}
		return insertTags(ctx, tx, note.ID, note.Tags)
	})
}

// FindByID returns the note with its tags
func (r *sqlNoteRepository) FindByID(ctx context.Context, id string) (*models.Note, error) {
	var note models.Note
	query := r.db.Rebind("SELECT " + noteColumns + " FROM notes n WHERE n.id = ?")
	err := r.db.GetContext(ctx, &note, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select note: %w", err)
	}

	notes := []models.Note{note}
	if err := r.attachTags(ctx, notes); err != nil {
		return nil, err
	}
	return &notes[0], nil
}

// List returns the owner's notes matching q, most recent first
func (r *sqlNoteRepository) List(ctx context.Context, ownerID string, q models.NoteQuery) ([]models.Note, error) {
	filter := BuildNoteFilter(ownerID, q)
	query := r.db.Rebind("SELECT " + noteColumns + " FROM notes n WHERE " + filter.Where + " ORDER BY " + noteOrder)

	notes := []models.Note{}
	if err := r.db.SelectContext(ctx, &notes, query, filter.Args...); err != nil {
		return nil, fmt.Errorf("select notes: %w", err)
	}
	if err := r.attachTags(ctx, notes); err != nil {
		return nil, err
	}
	return notes, nil
}

// Update overwrites text, mood, tags and time of an existing note
func (r *sqlNoteRepository) Update(ctx context.Context, note *models.Note) error {
	note.UpdatedAt = time.Now().UTC()
	note.Time = note.Time.UTC()
	if note.Tags == nil {
		note.Tags = []string{}
	}

	return r.inTx(ctx, func(tx *sqlx.Tx) error {
		query := tx.Rebind("UPDATE notes SET text = ?, mood = ?, entry_time = ?, updated_at = ? WHERE id = ?")
		result, err := tx.ExecContext(ctx, query, note.Text, note.Mood, note.Time, note.UpdatedAt, note.ID)
		if err != nil {
			return fmt.Errorf("update note: %w", err)
		}
		if rowsAffected, _ := result.RowsAffected(); rowsAffected == 0 {
			return ErrNotFound
		}

		if _, err := tx.ExecContext(ctx, tx.Rebind("DELETE FROM note_tags WHERE note_id = ?"), note.ID); err != nil {
			return fmt.Errorf("clear note tags: %w", err)
		}
		return insertTags(ctx, tx, note.ID, note.Tags)
	})
}

// Delete removes the note and its tags
func (r *sqlNoteRepository) Delete(ctx context.Context, id string) error {
	return r.inTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, tx.Rebind("DELETE FROM note_tags WHERE note_id = ?"), id); err != nil {
			return fmt.Errorf("delete note tags: %w", err)
		}

		result, err := tx.ExecContext(ctx, tx.Rebind("DELETE FROM notes WHERE id = ?"), id)
		if err != nil {
			return fmt.Errorf("delete note: %w", err)
		}
		if rowsAffected, _ := result.RowsAffected(); rowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

func (r *sqlNoteRepository) inTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func insertTags(ctx context.Context, tx *sqlx.Tx, noteID string, tags []string) error {
	query := tx.Rebind("INSERT INTO note_tags (note_id, position, tag) VALUES (?, ?, ?)")
	for i, tag := range tags {
		if _, err := tx.ExecContext(ctx, query, noteID, i, tag); err != nil {
			return fmt.Errorf("insert note tag: %w", err)
		}
	}
	return nil
}

type noteTag struct {
	NoteID string `db:"note_id"`
	Tag    string `db:"tag"`
}

// attachTags loads tags for every note in one query, keeping stored order
func (r *sqlNoteRepository) attachTags(ctx context.Context, notes []models.Note) error {
	if len(notes) == 0 {
		return nil
	}

	ids := make([]string, len(notes))
	byID := make(map[string]int, len(notes))
	for i := range notes {
		ids[i] = notes[i].ID
		byID[notes[i].ID] = i
		notes[i].Tags = []string{}
	}

	query, args, err := sqlx.In("SELECT note_id, tag FROM note_tags WHERE note_id IN (?) ORDER BY note_id, position", ids)
	if err != nil {
		return fmt.Errorf("build tag query: %w", err)
	}

	var rows []noteTag
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(query), args...); err != nil {
		return fmt.Errorf("select note tags: %w", err)
	}
	for _, row := range rows {
		i := byID[row.NoteID]
		notes[i].Tags = append(notes[i].Tags, row.Tag)
	}
	return nil
}
