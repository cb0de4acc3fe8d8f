package handlers

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"strings"
	"time"

	stealthwebui "github.com/MegaGrindStone/stealth-web-ui"
	"github.com/MegaGrindStone/stealth-web-ui/internal/chat"
	"github.com/MegaGrindStone/stealth-web-ui/internal/services"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tmaxmax/go-sse"
)

// Waitlist stores the addresses of people waiting for the next model version.
type Waitlist interface {
	Join(ctx context.Context, email string, now time.Time) (services.WaitlistEntry, bool, error)
}

// Renderer turns a bot answer into HTML.
type Renderer interface {
	Render(source string) (template.HTML, error)
}

// Model is an entry of the model selector on the landing page.
type Model struct {
	ID        string
	Name      string
	Available bool
}

// Config carries the collaborators of Main.
type Config struct {
	// Transport sends cycle requests to the chat backend.
	Transport chat.Transport
	Waitlist  Waitlist
	Renderer  Renderer
	Models    []Model
	// MaxThreads bounds the number of live threads. Zero uses chat.DefaultMaxThreads.
	MaxThreads int
	Logger     *slog.Logger
}

// Main serves the landing, login and chat-thread views and pushes thread updates to browsers over
// server-sent events.
type Main struct {
	sseSrv    *sse.Server
	templates *template.Template

	threads  *chat.Registry
	waitlist Waitlist
	renderer Renderer
	models   []Model

	logger *slog.Logger
}

const errLoggerKey = "err"

var messagesSSEType = sse.Type("messages")

// NewMain parses the embedded templates and creates the thread registry. Every thread created by
// the registry publishes its re-rendered message list to the thread's SSE topic on each change.
func NewMain(cfg Config) (Main, error) {
	if cfg.Transport == nil {
		return Main{}, errors.New("transport is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	// We parse templates from three distinct directories to separate layout, pages, and partial views
	tmpl, err := template.ParseFS(
		stealthwebui.TemplateFS,
		"templates/layout/*.html",
		"templates/pages/*.html",
		"templates/partials/*.html",
	)
	if err != nil {
		return Main{}, fmt.Errorf("failed to parse templates: %w", err)
	}

	m := Main{
		sseSrv:    &sse.Server{},
		templates: tmpl,
		waitlist:  cfg.Waitlist,
		renderer:  cfg.Renderer,
		models:    cfg.Models,
		logger:    logger.With(slog.String("module", "main")),
	}

	reg, err := chat.NewRegistry(cfg.MaxThreads, cfg.Transport, logger, chat.WithUpdateHandler(m.publishSnapshot))
	if err != nil {
		return Main{}, err
	}
	m.threads = reg
	m.sseSrv.OnSession = m.sseSession

	return m, nil
}

// Router returns the HTTP handler for every route of the UI server.
func (m Main) Router() http.Handler {
	staticFS, err := fs.Sub(stealthwebui.StaticFS, "static")
	if err != nil {
		// The embed directive guarantees the directory exists.
		panic(err)
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(requestLogger(m.logger))
	r.Use(chimw.Recoverer)

	r.Handle("/metrics", promhttp.Handler())
	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(staticFS))))

	r.Get("/", m.HandleHome)
	r.Get("/login", m.HandleLogin)
	r.Post("/login", m.HandleLoginSubmit)
	r.Post("/waitlist", m.HandleWaitlist)
	r.Post("/attachments", m.HandleAttachment)

	r.Post("/chats", m.HandleCreateThread)
	r.Route("/chats/{id}", func(r chi.Router) {
		r.Get("/", m.HandleThread)
		r.Delete("/", m.HandleCloseThread)
		r.Post("/close", m.HandleCloseThread)
		r.Get("/messages", m.HandleMessages)
		r.Post("/followups", m.HandleFollowup)
	})

	r.Get("/sse", m.HandleSSE)

	return r
}

// Shutdown closes every live thread, tells connected browsers the stream is over and terminates
// the SSE server, waiting up to 5 seconds for connections to end.
func (m Main) Shutdown(ctx context.Context) error {
	m.threads.CloseAll()

	e := &sse.Message{Type: sse.Type("closeThread")}
	// SSE requires data on every event.
	e.AppendData("bye")

	// We ignore the error here since we're shutting down anyway
	_ = m.sseSrv.Publish(e)

	ctx, cancel := context.WithTimeout(ctx, time.Second*5)
	defer cancel()

	return m.sseSrv.Shutdown(ctx)
}

func threadTopic(threadID string) string {
	return fmt.Sprintf("thread-%s", threadID)
}

// HandleSSE streams the updates of the thread named by the "thread_id" query parameter.
func (m Main) HandleSSE(w http.ResponseWriter, r *http.Request) {
	threadID := strings.TrimSpace(r.URL.Query().Get("thread_id"))
	if threadID == "" {
		http.Error(w, "thread_id is required", http.StatusBadRequest)
		return
	}
	if _, err := m.threads.Get(threadID); err != nil {
		http.Error(w, "Thread not found", http.StatusNotFound)
		return
	}

	m.sseSrv.ServeHTTP(w, r)
}

func (m Main) sseSession(s *sse.Session) (sse.Subscription, bool) {
	// Every session also listens on the default topic for server-wide events such as shutdown.
	topics := []string{sse.DefaultTopic}
	if threadID := strings.TrimSpace(s.Req.URL.Query().Get("thread_id")); threadID != "" {
		topics = append(topics, threadTopic(threadID))
	}

	return sse.Subscription{
		Client:      s,
		LastEventID: s.LastEventID,
		Topics:      topics,
	}, true
}

func (m Main) publishSnapshot(snap chat.Snapshot) {
	var sb strings.Builder
	if err := m.templates.ExecuteTemplate(&sb, "message_list", m.messageList(snap)); err != nil {
		m.logger.Error("Failed to render message list",
			slog.String("threadID", snap.ThreadID),
			slog.String(errLoggerKey, err.Error()))
		return
	}

	msg := sse.Message{
		Type: messagesSSEType,
	}
	msg.AppendData(sb.String())
	if err := m.sseSrv.Publish(&msg, threadTopic(snap.ThreadID)); err != nil {
		m.logger.Error("Failed to publish messages",
			slog.String("threadID", snap.ThreadID),
			slog.String(errLoggerKey, err.Error()))
	}
}
