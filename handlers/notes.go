package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/umakantv/go-utils/errs"
	"go.uber.org/zap"

	"journal-service/models"
	"journal-service/services"
	"journal-service/session"
)

// NoteHandler handles note CRUD and search for the logged-in user
type NoteHandler struct {
	notes *services.NoteService
}

// NewNoteHandler creates a new note handler
func NewNoteHandler(notes *services.NoteService) *NoteHandler {
	return &NoteHandler{notes: notes}
}

// CreateNote handles POST /Notes
func (h *NoteHandler) CreateNote(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}

	req, err := decodeNoteRequest(r)
	if err != nil {
		logRequest(ctx, "error", "Invalid note body", zap.Error(err))
		writeJSON(w, http.StatusBadRequest, &errs.AppError{Code: http.StatusBadRequest, Message: err.Error()})
		return
	}

	note, err := h.notes.CreateNote(ctx, identity.UserID, services.NoteInput{
		Text:   req.Note,
		Mood:   req.Mood,
		Tags:   req.Tags,
		Prompt: req.Prompt,
	})
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	logRequest(ctx, "info", "Note created", zap.String("note_id", note.ID))
	writeJSON(w, http.StatusOK, statusResponse{Success: true})
}

// GetNotes handles GET /getNotes?q=&mood=&tag=&from=&to=
func (h *NoteHandler) GetNotes(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}

	params := r.URL.Query()
	query, err := models.ParseNoteQuery(params.Get("q"), params.Get("mood"), params.Get("tag"), params.Get("from"), params.Get("to"))
	if err != nil {
		logRequest(ctx, "info", "Invalid note query", zap.Error(err))
		writeJSON(w, http.StatusBadRequest, &errs.AppError{Code: http.StatusBadRequest, Message: err.Error()})
		return
	}

	notes, err := h.notes.ListNotes(ctx, identity.UserID, query)
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	logRequest(ctx, "debug", "Notes listed", zap.Int("count", len(notes)))
	writeJSON(w, http.StatusOK, notes)
}

// UpdateNote handles PUT /Notes/{id}
func (h *NoteHandler) UpdateNote(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}
	noteID := mux.Vars(r)["id"]

	req, err := decodeNoteRequest(r)
	if err != nil {
		logRequest(ctx, "error", "Invalid note body", zap.Error(err))
		writeJSON(w, http.StatusBadRequest, &errs.AppError{Code: http.StatusBadRequest, Message: err.Error()})
		return
	}

	_, err = h.notes.UpdateNote(ctx, identity.UserID, noteID, services.NoteInput{
		Text: req.Note,
		Mood: req.Mood,
		Tags: req.Tags,
	})
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	logRequest(ctx, "info", "Note updated", zap.String("note_id", noteID))
	writeJSON(w, http.StatusOK, statusResponse{Success: true})
}

// DeleteNote handles DELETE /Notes/{id}
func (h *NoteHandler) DeleteNote(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}
	noteID := mux.Vars(r)["id"]

	if err := h.notes.DeleteNote(ctx, identity.UserID, noteID); err != nil {
		writeError(ctx, w, err)
		return
	}

	logRequest(ctx, "info", "Note deleted", zap.String("note_id", noteID))
	writeJSON(w, http.StatusOK, statusResponse{Success: true})
}

func requireIdentity(ctx context.Context, w http.ResponseWriter) (session.Identity, bool) {
	identity, ok := session.FromContext(ctx)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errs.NewAuthenticationError("Not logged in"))
	}
	return identity, ok
}

// decodeNoteRequest reads a JSON or urlencoded note body. In a form, a single
// tags value is split on commas while repeated tags values are kept whole.
func decodeNoteRequest(r *http.Request) (models.NoteRequest, error) {
	var req models.NoteRequest
	if isJSON(r) {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return models.NoteRequest{}, err
		}
		if req.Tags == nil {
			req.Tags = models.TagList{}
		}
		return req, nil
	}

	if err := r.ParseForm(); err != nil {
		return models.NoteRequest{}, err
	}
	req.Note = r.PostForm.Get("note")
	req.Mood = r.PostForm.Get("mood")
	req.Prompt = r.PostForm.Get("prompt")

	tags := r.PostForm["tags"]
	if len(tags) == 1 {
		req.Tags = models.SplitTags(tags[0])
	} else {
		req.Tags = models.NormalizeTags(tags)
	}
	return req, nil
}
