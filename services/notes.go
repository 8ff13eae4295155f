package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/umakantv/go-utils/logger"
	"go.uber.org/zap"

	"journal-service/events"
	"journal-service/models"
	"journal-service/repository"
)

// NoteInput is the editable part of a note
type NoteInput struct {
	Text   string
	Mood   string
	Tags   []string
	Prompt string
}

type NoteService struct {
	notes     repository.NoteRepository
	publisher events.EventPublisher
	now       func() time.Time
}

func NewNoteService(notes repository.NoteRepository, publisher events.EventPublisher) *NoteService {
	return &NoteService{
		notes:     notes,
		publisher: publisher,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// CreateNote stores a new note for ownerID stamped with the current time
func (s *NoteService) CreateNote(ctx context.Context, ownerID string, in NoteInput) (*models.Note, error) {
	if strings.TrimSpace(in.Text) == "" {
		return nil, validationError("note text is required")
	}

	note := &models.Note{
		UserID: ownerID,
		Text:   in.Text,
		Mood:   moodOrDefault(in.Mood),
		Tags:   models.NormalizeTags(in.Tags),
		Prompt: in.Prompt,
		Time:   s.now(),
	}
	if err := s.notes.Create(ctx, note); err != nil {
		return nil, persistenceError("create note", err)
	}

	if err := s.publisher.PublishNoteCreated(note); err != nil {
		logger.Error("Failed to publish note created event", zap.String("note_id", note.ID), zap.Error(err))
	}
	return note, nil
}

// ListNotes returns ownerID's notes matching q, newest first
func (s *NoteService) ListNotes(ctx context.Context, ownerID string, q models.NoteQuery) ([]models.Note, error) {
	notes, err := s.notes.List(ctx, ownerID, q)
	if err != nil {
		return nil, persistenceError("list notes", err)
	}
	return notes, nil
}

// UpdateNote replaces text, mood and tags of a note owned by callerID and
// moves its time to now. The prompt is kept.
func (s *NoteService) UpdateNote(ctx context.Context, callerID, noteID string, in NoteInput) (*models.Note, error) {
	if strings.TrimSpace(in.Text) == "" {
		return nil, validationError("note text is required")
	}

	note, err := s.ownedNote(ctx, callerID, noteID)
	if err != nil {
		return nil, err
	}

	note.Text = in.Text
	note.Mood = moodOrDefault(in.Mood)
	note.Tags = models.NormalizeTags(in.Tags)
	note.Time = s.now()
	if err := s.notes.Update(ctx, note); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, persistenceError("update note", err)
	}

	if err := s.publisher.PublishNoteUpdated(note); err != nil {
		logger.Error("Failed to publish note updated event", zap.String("note_id", note.ID), zap.Error(err))
	}
	return note, nil
}

// DeleteNote removes a note owned by callerID
func (s *NoteService) DeleteNote(ctx context.Context, callerID, noteID string) error {
	if _, err := s.ownedNote(ctx, callerID, noteID); err != nil {
		return err
	}

	if err := s.notes.Delete(ctx, noteID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return persistenceError("delete note", err)
	}

	if err := s.publisher.PublishNoteDeleted(callerID, noteID); err != nil {
		logger.Error("Failed to publish note deleted event", zap.String("note_id", noteID), zap.Error(err))
	}
	return nil
}

func (s *NoteService) ownedNote(ctx context.Context, callerID, noteID string) (*models.Note, error) {
	note, err := s.notes.FindByID(ctx, noteID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, persistenceError("find note", err)
	}
	if note.UserID != callerID {
		logger.Info("Rejected access to foreign note", zap.String("note_id", noteID), zap.String("user_id", callerID))
		return nil, ErrForbidden
	}
	return note, nil
}

func moodOrDefault(mood string) string {
	if mood = strings.TrimSpace(mood); mood == "" {
		return models.DefaultMood
	}
	return mood
}
