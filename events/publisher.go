// Package events publishes journal activity to NATS.
package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/umakantv/go-utils/logger"
	"go.uber.org/zap"

	"journal-service/models"
)

const (
	SubjectUserRegistered = "journal.user.registered"
	SubjectNoteCreated    = "journal.note.created"
	SubjectNoteUpdated    = "journal.note.updated"
	SubjectNoteDeleted    = "journal.note.deleted"
)

type EventPublisher interface {
	PublishUserRegistered(user *models.User) error
	PublishNoteCreated(note *models.Note) error
	PublishNoteUpdated(note *models.Note) error
	PublishNoteDeleted(userID, noteID string) error
	Close()
}

type UserRegisteredEvent struct {
	EventType    string    `json:"event_type"`
	UserID       string    `json:"user_id"`
	Email        string    `json:"email"`
	RegisteredAt time.Time `json:"registered_at"`
}

type NoteEvent struct {
	EventType  string    `json:"event_type"`
	NoteID     string    `json:"note_id"`
	UserID     string    `json:"user_id"`
	Mood       string    `json:"mood,omitempty"`
	Tags       []string  `json:"tags,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

type conn interface {
	Publish(subject string, data []byte) error
	Drain() error
}

type NatsPublisher struct {
	conn conn
}

func NewNatsPublisher(natsURL string) (*NatsPublisher, error) {
	nc, err := nats.Connect(natsURL, nats.Name("journal-service"))
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}
	return &NatsPublisher{conn: nc}, nil
}

func (p *NatsPublisher) PublishUserRegistered(user *models.User) error {
	return p.publish(SubjectUserRegistered, UserRegisteredEvent{
		EventType:    SubjectUserRegistered,
		UserID:       user.ID,
		Email:        user.Email,
		RegisteredAt: user.CreatedAt,
	})
}

func (p *NatsPublisher) PublishNoteCreated(note *models.Note) error {
	return p.publish(SubjectNoteCreated, noteEvent(SubjectNoteCreated, note))
}

func (p *NatsPublisher) PublishNoteUpdated(note *models.Note) error {
	return p.publish(SubjectNoteUpdated, noteEvent(SubjectNoteUpdated, note))
}

func (p *NatsPublisher) PublishNoteDeleted(userID, noteID string) error {
	return p.publish(SubjectNoteDeleted, NoteEvent{
		EventType:  SubjectNoteDeleted,
		NoteID:     noteID,
		UserID:     userID,
		OccurredAt: time.Now().UTC(),
	})
}

// Close flushes pending messages and closes the connection
func (p *NatsPublisher) Close() {
	if err := p.conn.Drain(); err != nil {
		logger.Error("Error draining NATS connection", zap.Error(err))
	}
}

func (p *NatsPublisher) publish(subject string, event interface{}) error {
	eventJSON, err := json.Marshal(event)
	if err != nil {
		logger.Error("Error marshalling event JSON", zap.String("subject", subject), zap.Error(err))
		return err
	}

	if err := p.conn.Publish(subject, eventJSON); err != nil {
		logger.Error("Error publishing to NATS", zap.String("subject", subject), zap.Error(err))
		return err
	}

	logger.Debug("Published event to NATS", zap.String("subject", subject))
	return nil
}

func noteEvent(eventType string, note *models.Note) NoteEvent {
	return NoteEvent{
		EventType:  eventType,
		NoteID:     note.ID,
		UserID:     note.UserID,
		Mood:       note.Mood,
		Tags:       note.Tags,
		OccurredAt: time.Now().UTC(),
	}
}

// NoopPublisher drops every event. Used when NATS_URL is empty.
type NoopPublisher struct{}

func (NoopPublisher) PublishUserRegistered(*models.User) error { return nil }
func (NoopPublisher) PublishNoteCreated(*models.Note) error     { return nil }
func (NoopPublisher) PublishNoteUpdated(*models.Note) error     { return nil }
func (NoopPublisher) PublishNoteDeleted(string, string) error   { return nil }
func (NoopPublisher) Close()                                    {}
