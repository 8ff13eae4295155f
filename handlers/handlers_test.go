package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/umakantv/go-utils/cache"
	"github.com/umakantv/go-utils/errs"

	"journal-service/database/dbtest"
	"journal-service/events"
	"journal-service/metrics"
	"journal-service/models"
	"journal-service/repository"
	"journal-service/services"
	"journal-service/session"
	"journal-service/uploads"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

type testEnv struct {
	db       *sqlx.DB
	auth     *AuthHandler
	notes    *NoteHandler
	pages    *PageHandler
	sessions *session.Manager
	users    *services.UserService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := dbtest.New(t)

	images, err := uploads.NewDiskStorage(filepath.Join(t.TempDir(), "images"))
	require.NoError(t, err)

	store, err := cache.New(cache.Config{Type: "memory"})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	reg := prometheus.NewRegistry()
	sessions := session.NewManager(store, "test-secret", time.Hour, false)
	users := services.NewUserService(repository.NewUserRepository(db), images, events.NoopPublisher{})
	notes := services.NewNoteService(repository.NewNoteRepository(db), events.NoopPublisher{})

	return &testEnv{
		db:       db,
		auth:     NewAuthHandler(users, sessions, metrics.New(reg, reg)),
		notes:    NewNoteHandler(notes),
		pages:    NewPageHandler(t.TempDir(), images),
		sessions: sessions,
		users:    users,
	}
}

func multipartRegister(t *testing.T, fields map[string]string, image []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if image != nil {
		fw, err := mw.CreateFormFile("profile", "me.png")
		require.NoError(t, err)
		_, err = fw.Write(image)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/register", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func formRequest(method, target string, values url.Values) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func jsonRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

// register creates a user through the handler and returns the identity
// stored for it
func (e *testEnv) register(t *testing.T, email, password string) session.Identity {
	t.Helper()
	rec := httptest.NewRecorder()
	e.auth.Register(context.Background(), rec, multipartRegister(t, map[string]string{
		"name": "Test", "email": email, "password": password,
	}, nil))
	require.Equal(t, http.StatusFound, rec.Code)

	user, err := e.users.Login(context.Background(), email, password)
	require.NoError(t, err)
	return session.Identity{UserID: user.ID, Email: user.Email}
}

func decodeStatus(t *testing.T, rec *httptest.ResponseRecorder) statusResponse {
	t.Helper()
	var resp statusResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp
}

func TestRegisterLoginGetUser(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	rec := httptest.NewRecorder()
	env.auth.Register(ctx, rec, multipartRegister(t, map[string]string{
		"name": "A", "email": "a@x.com", "password": "pw1",
	}, pngHeader))
	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get("Location"))

	rec = httptest.NewRecorder()
	env.auth.Login(ctx, rec, formRequest(http.MethodPost, "/login", url.Values{
		"email": {"a@x.com"}, "password": {"pw1"},
	}))
	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/Notes", rec.Header().Get("Location"))

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)

	req := httptest.NewRequest(http.MethodGet, "/getUser", nil)
	req.AddCookie(cookies[0])
	identity, err := env.sessions.Resolve(req)
	require.NoError(t, err)

	rec = httptest.NewRecorder()
	env.auth.GetUser(session.NewContext(ctx, identity), rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var user models.UserResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&user))
	assert.Equal(t, "a@x.com", user.Email)
	assert.Equal(t, "A", user.Name)
	assert.True(t, uploads.ValidName(user.Profile))
	assert.NotContains(t, rec.Body.String(), "password")

	// The uploaded image is served back
	rec = httptest.NewRecorder()
	imgReq := mux.SetURLVars(httptest.NewRequest(http.MethodGet, "/user/image/"+user.Profile, nil),
		map[string]string{"name": user.Profile})
	env.pages.Image(ctx, rec, imgReq)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.Equal(t, pngHeader, rec.Body.Bytes())
}

func TestRegister_Duplicate(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "a@x.com", "pw1")

	rec := httptest.NewRecorder()
	env.auth.Register(context.Background(), rec, multipartRegister(t, map[string]string{
		"name": "B", "email": "a@x.com", "password": "pw2",
	}, nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "user already exists")
}

func TestRegister_MissingFields(t *testing.T) {
	env := newTestEnv(t)

	rec := httptest.NewRecorder()
	env.auth.Register(context.Background(), rec, formRequest(http.MethodPost, "/register", url.Values{
		"email": {"a@x.com"},
	}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLogin_WrongPasswordRedirects(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "a@x.com", "pw1")

	rec := httptest.NewRecorder()
	env.auth.Login(context.Background(), rec, formRequest(http.MethodPost, "/login", url.Values{
		"email": {"a@x.com"}, "password": {"nope"},
	}))
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get("Location"))
	assert.Empty(t, rec.Result().Cookies())
}

func TestLogout(t *testing.T) {
	env := newTestEnv(t)

	rec := httptest.NewRecorder()
	env.auth.Logout(context.Background(), rec, httptest.NewRequest(http.MethodPost, "/logout", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, statusResponse{Success: true, Message: "logout successful"}, decodeStatus(t, rec))
}

func TestNotes_CreateAndSearch(t *testing.T) {
	env := newTestEnv(t)
	ctx := session.NewContext(context.Background(), env.register(t, "a@x.com", "pw1"))

	rec := httptest.NewRecorder()
	env.notes.CreateNote(ctx, rec, jsonRequest(http.MethodPost, "/Notes",
		`{"note":"slept well","mood":"Happy","tags":"sleep, good"}`))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decodeStatus(t, rec).Success)

	rec = httptest.NewRecorder()
	env.notes.CreateNote(ctx, rec, formRequest(http.MethodPost, "/Notes", url.Values{
		"note": {"went running"}, "tags": {"sport", " outdoors "},
	}))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	env.notes.GetNotes(ctx, rec, httptest.NewRequest(http.MethodGet, "/getNotes?tag=sleep", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var notes []models.Note
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&notes))
	require.Len(t, notes, 1)
	assert.Equal(t, "slept well", notes[0].Text)
	assert.Equal(t, []string{"sleep", "good"}, notes[0].Tags)

	rec = httptest.NewRecorder()
	env.notes.GetNotes(ctx, rec, httptest.NewRequest(http.MethodGet, "/getNotes?tag=outdoors", nil))
	notes = nil
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&notes))
	require.Len(t, notes, 1)
	assert.Equal(t, models.DefaultMood, notes[0].Mood)
	assert.Equal(t, []string{"sport", "outdoors"}, notes[0].Tags)
}

func TestNotes_EmptyListIsArray(t *testing.T) {
	env := newTestEnv(t)
	ctx := session.NewContext(context.Background(), env.register(t, "a@x.com", "pw1"))

	rec := httptest.NewRecorder()
	env.notes.GetNotes(ctx, rec, httptest.NewRequest(http.MethodGet, "/getNotes", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestNotes_StoreFailureCarriesDetail(t *testing.T) {
	env := newTestEnv(t)
	ctx := session.NewContext(context.Background(), env.register(t, "a@x.com", "pw1"))
	require.NoError(t, env.db.Close())

	rec := httptest.NewRecorder()
	env.notes.GetNotes(ctx, rec, httptest.NewRequest(http.MethodGet, "/getNotes", nil))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var appErr errs.AppError
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&appErr))
	assert.Equal(t, http.StatusInternalServerError, appErr.Code)
	assert.Contains(t, appErr.Message, "list notes")
	assert.Contains(t, appErr.Message, "database is closed")
}

func TestNotes_InvalidDate(t *testing.T) {
	env := newTestEnv(t)
	ctx := session.NewContext(context.Background(), env.register(t, "a@x.com", "pw1"))

	rec := httptest.NewRecorder()
	env.notes.GetNotes(ctx, rec, httptest.NewRequest(http.MethodGet, "/getNotes?from=yesterday", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestNotes_UpdateAndDeleteOwnership(t *testing.T) {
	env := newTestEnv(t)
	aliceCtx := session.NewContext(context.Background(), env.register(t, "a@x.com", "pw1"))
	bobCtx := session.NewContext(context.Background(), env.register(t, "b@x.com", "pw1"))

	rec := httptest.NewRecorder()
	env.notes.CreateNote(aliceCtx, rec, jsonRequest(http.MethodPost, "/Notes", `{"note":"mine"}`))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	env.notes.GetNotes(aliceCtx, rec, httptest.NewRequest(http.MethodGet, "/getNotes", nil))
	var notes []models.Note
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&notes))
	require.Len(t, notes, 1)
	id := notes[0].ID

	withID := func(r *http.Request) *http.Request {
		return mux.SetURLVars(r, map[string]string{"id": id})
	}

	rec = httptest.NewRecorder()
	env.notes.UpdateNote(bobCtx, rec, withID(jsonRequest(http.MethodPut, "/Notes/"+id, `{"note":"stolen"}`)))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = httptest.NewRecorder()
	env.notes.UpdateNote(aliceCtx, rec, withID(jsonRequest(http.MethodPut, "/Notes/"+id, `{"note":"edited","tags":["x"]}`)))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	env.notes.DeleteNote(bobCtx, rec, withID(httptest.NewRequest(http.MethodDelete, "/Notes/"+id, nil)))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = httptest.NewRecorder()
	env.notes.DeleteNote(aliceCtx, rec, withID(httptest.NewRequest(http.MethodDelete, "/Notes/"+id, nil)))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	env.notes.DeleteNote(aliceCtx, rec, withID(httptest.NewRequest(http.MethodDelete, "/Notes/"+id, nil)))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestChangePassword(t *testing.T) {
	env := newTestEnv(t)
	ctx := session.NewContext(context.Background(), env.register(t, "a@x.com", "pw1"))

	rec := httptest.NewRecorder()
	env.auth.ChangePassword(ctx, rec, jsonRequest(http.MethodPost, "/changeP", `{"Opass":"nope","Npass":"pw2"}`))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, statusResponse{Success: false, Message: "wrong old password"}, decodeStatus(t, rec))

	// Hash unchanged
	_, err := env.users.Login(context.Background(), "a@x.com", "pw1")
	require.NoError(t, err)

	rec = httptest.NewRecorder()
	env.auth.ChangePassword(ctx, rec, formRequest(http.MethodPost, "/changeP", url.Values{
		"Opass": {"pw1"}, "Npass": {"pw2"},
	}))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, statusResponse{Success: true}, decodeStatus(t, rec))

	_, err = env.users.Login(context.Background(), "a@x.com", "pw2")
	assert.NoError(t, err)
}

func TestProtectedHandlers_WithoutIdentity(t *testing.T) {
	env := newTestEnv(t)

	rec := httptest.NewRecorder()
	env.notes.GetNotes(context.Background(), rec, httptest.NewRequest(http.MethodGet, "/getNotes", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.NotContains(t, rec.Body.String(), "[")

	rec = httptest.NewRecorder()
	env.auth.GetUser(context.Background(), rec, httptest.NewRequest(http.MethodGet, "/getUser", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestPages(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, os.WriteFile(filepath.Join(env.pages.publicDir, "index.html"), []byte("<h1>journal</h1>"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(env.pages.publicDir, "style.css"), []byte("body{}"), 0o644))

	rec := httptest.NewRecorder()
	env.pages.Page("index.html")(context.Background(), rec, httptest.NewRequest(http.MethodGet, "/home", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "journal")

	rec = httptest.NewRecorder()
	req := mux.SetURLVars(httptest.NewRequest(http.MethodGet, "/style.css", nil), map[string]string{"file": "style.css"})
	env.pages.Static(context.Background(), rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "body{}", rec.Body.String())

	rec = httptest.NewRecorder()
	env.pages.Done(context.Background(), rec, httptest.NewRequest(http.MethodGet, "/done", nil))
	assert.Equal(t, "password changed successfully", rec.Body.String())

	rec = httptest.NewRecorder()
	env.pages.Health(context.Background(), rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.JSONEq(t, `{"status":"healthy","service":"journal-service"}`, rec.Body.String())

	rec = httptest.NewRecorder()
	req = mux.SetURLVars(httptest.NewRequest(http.MethodGet, "/user/image/x", nil), map[string]string{"name": "../secret"})
	env.pages.Image(context.Background(), rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
