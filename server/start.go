package server

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jmoiron/sqlx"
	"github.com/umakantv/go-utils/cache"
	"github.com/umakantv/go-utils/httpserver"
	"github.com/umakantv/go-utils/logger"
	"go.uber.org/zap"

	cachepackage "journal-service/cache"
	"journal-service/config"
	"journal-service/database"
	"journal-service/events"
	"journal-service/handlers"
	"journal-service/metrics"
	"journal-service/repository"
	"journal-service/services"
	"journal-service/session"
	"journal-service/uploads"
)

// app holds everything created at startup that must be closed on exit
type app struct {
	db        *sqlx.DB
	cache     cache.Cache
	publisher events.EventPublisher
	sessions  *session.Manager
	metrics   *metrics.Metrics

	authHandler *handlers.AuthHandler
	noteHandler *handlers.NoteHandler
	pageHandler *handlers.PageHandler
}

func (a *app) Close() {
	a.publisher.Close()
	if err := a.cache.Close(); err != nil {
		logger.Error("Failed to close cache", zap.Error(err))
	}
	if err := a.db.Close(); err != nil {
		logger.Error("Failed to close database", zap.Error(err))
	}
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	dbConn, err := database.InitializeDatabase(cfg)
	if err != nil {
		return nil, err
	}

	sessionStore, err := cachepackage.InitializeCache(cfg)
	if err != nil {
		dbConn.Close()
		return nil, err
	}

	images, err := newImageStorage(ctx, cfg)
	if err != nil {
		sessionStore.Close()
		dbConn.Close()
		return nil, err
	}

	publisher, err := newPublisher(cfg)
	if err != nil {
		sessionStore.Close()
		dbConn.Close()
		return nil, err
	}

	sessions := session.NewManager(sessionStore, cfg.SessionSecret, cfg.SessionTTL, cfg.CookieSecure)
	m := metrics.NewDefault()

	userService := services.NewUserService(repository.NewUserRepository(dbConn), images, publisher)
	noteService := services.NewNoteService(repository.NewNoteRepository(dbConn), publisher)

	return &app{
		db:          dbConn,
		cache:       sessionStore,
		publisher:   publisher,
		sessions:    sessions,
		metrics:     m,
		authHandler: handlers.NewAuthHandler(userService, sessions, m),
		noteHandler: handlers.NewNoteHandler(noteService),
		pageHandler: handlers.NewPageHandler(cfg.PublicDir, images),
	}, nil
}

func newImageStorage(ctx context.Context, cfg *config.Config) (uploads.Storage, error) {
	if cfg.UploadBackend == "s3" {
		logger.Info("Storing profile images in S3", zap.String("bucket", cfg.S3Bucket))
		return uploads.NewS3Storage(ctx, uploads.S3Config{
			Endpoint:     cfg.S3Endpoint,
			Region:       cfg.S3Region,
			Bucket:       cfg.S3Bucket,
			AccessKey:    cfg.S3AccessKey,
			SecretKey:    cfg.S3SecretKey,
			UsePathStyle: cfg.S3UsePathStyle,
		})
	}
	logger.Info("Storing profile images on disk", zap.String("dir", cfg.UploadDir))
	return uploads.NewDiskStorage(cfg.UploadDir)
}

func newPublisher(cfg *config.Config) (events.EventPublisher, error) {
	if cfg.NatsURL == "" {
		logger.Info("NATS_URL not set, events disabled")
		return events.NoopPublisher{}, nil
	}
	publisher, err := events.NewNatsPublisher(cfg.NatsURL)
	if err != nil {
		return nil, err
	}
	logger.Info("Publishing events to NATS", zap.String("url", cfg.NatsURL))
	return publisher, nil
}

func (a *app) registerRoutes(server *httpserver.Server) {
	for _, route := range a.routes() {
		handler := route.handler
		if route.protected {
			handler = a.sessions.Required(handler)
		}
		server.Register(route.Route, a.metrics.Instrument(route.Name, handler))
	}
}

// routeEntry is registered with AuthType "none"; protected routes are gated
// by session.Required so a rejected request still gets a JSON body.
type routeEntry struct {
	httpserver.Route
	handler   httpserver.HandlerFunc
	protected bool
}

func route(name, method, path string, handler httpserver.HandlerFunc) routeEntry {
	return routeEntry{
		Route: httpserver.Route{
			Name:     name,
			Method:   method,
			Path:     path,
			AuthType: "none",
		},
		handler: handler,
	}
}

func protectedRoute(name, method, path string, handler httpserver.HandlerFunc) routeEntry {
	entry := route(name, method, path, handler)
	entry.protected = true
	return entry
}

// routes lists every endpoint. The static asset route must stay last so it
// never shadows a named route.
func (a *app) routes() []routeEntry {
	pages, auth, notes := a.pageHandler, a.authHandler, a.noteHandler
	return []routeEntry{
		route("HealthCheck", "GET", "/health", pages.Health),
		route("Metrics", "GET", "/metrics", a.metrics.Handler()),

		route("Index", "GET", "/", pages.Page("index.html")),
		route("Home", "GET", "/home", pages.Page("index.html")),
		route("LoginPage", "GET", "/login", pages.Page("login.html")),
		route("RegisterPage", "GET", "/register", pages.Page("register.html")),
		protectedRoute("NotesPage", "GET", "/Notes", pages.Page("Notes.html")),
		route("Done", "GET", "/done", pages.Done),
		route("ProfileImage", "GET", "/user/image/{name}", pages.Image),

		route("Register", "POST", "/register", auth.Register),
		route("Login", "POST", "/login", auth.Login),
		route("Logout", "POST", "/logout", auth.Logout),
		protectedRoute("GetUser", "GET", "/getUser", auth.GetUser),
		protectedRoute("ChangePassword", "POST", "/changeP", auth.ChangePassword),

		protectedRoute("CreateNote", "POST", "/Notes", notes.CreateNote),
		protectedRoute("ListNotes", "GET", "/getNotes", notes.GetNotes),
		protectedRoute("UpdateNote", "PUT", "/Notes/{id}", notes.UpdateNote),
		protectedRoute("DeleteNote", "DELETE", "/Notes/{id}", notes.DeleteNote),

		route("Static", "GET", `/{file:[^/]+\.[A-Za-z0-9]+}`, pages.Static),
	}
}

func StartServer() {
	logger.Init(logger.LoggerConfig{
		CallerKey:  "file",
		TimeKey:    "timestamp",
		CallerSkip: 1,
	})

	logger.Info("Starting Journal Service...")

	cfg, err := config.Load()
	if err != nil {
		logger.Error("Invalid configuration", zap.Error(err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg)
	if err != nil {
		logger.Error("Failed to initialize service", zap.Error(err))
		os.Exit(1)
	}
	defer a.Close()

	// Protected routes are gated by the session manager before their handler runs
	server := httpserver.New(cfg.Port, nil)
	a.registerRoutes(server)

	logger.Info(fmt.Sprintf("Journal Service started on port %s", cfg.Port))
	logger.Info(fmt.Sprintf("Open http://localhost:%s/home", cfg.Port))

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	select {
	case err := <-errCh:
		logger.Error("Server stopped", zap.Error(err))
		a.Close()
		os.Exit(1)
	case <-ctx.Done():
		logger.Info("Shutting down")
	}
}
