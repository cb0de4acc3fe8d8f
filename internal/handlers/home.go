package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/MegaGrindStone/stealth-web-ui/internal/attachment"
	"github.com/MegaGrindStone/stealth-web-ui/internal/services"
)

type widget struct {
	Icon       string
	Title      string
	Subtitle   string
	ButtonText string
}

type homePageData struct {
	Models        []Model
	SelectedModel Model
	Draft         string
	Accept        string
	Widgets       []widget
}

type loginPageData struct {
	Widgets []widget
}

type waitlistData struct {
	Email         string
	AlreadyJoined bool
	Error         string
}

var promoWidgets = []widget{
	{
		Icon:       "code",
		Title:      "AI Powered DSA Masterclass",
		Subtitle:   "Master Data Structures & Algorithms with AI-guided lessons",
		ButtonText: "Preview",
	},
	{
		Icon:       "network",
		Title:      "Crack System Design interviews",
		Subtitle:   "Practice real mock interviews & sharpen your design skills",
		ButtonText: "Preview",
	},
	{
		Icon:       "layout",
		Title:      "Vibe-code Full-Stack web applications",
		Subtitle:   "Generate and customize websites instantly with AI",
		ButtonText: "Preview",
	},
	{
		Icon:       "sparkles",
		Title:      "Analyze your progress...",
		Subtitle:   "Your AI mentor analyzes your progress and gives you personalized feedback.",
		ButtonText: "Preview",
	},
}

var loginButtonTexts = []string{"Begin Journey", "Explore Now", "Let's go", "Unlock Access"}

// HandleHome renders the landing page. An optional "draft" query parameter pre-fills the prompt.
func (m Main) HandleHome(w http.ResponseWriter, r *http.Request) {
	data := homePageData{
		Models:        m.models,
		SelectedModel: selectedModel(m.models),
		Draft:         r.URL.Query().Get("draft"),
		Accept:        acceptList(),
		Widgets:       promoWidgets,
	}

	if err := m.templates.ExecuteTemplate(w, "home.html", data); err != nil {
		m.logger.Error("Failed to render home page", slog.String(errLoggerKey, err.Error()))
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// HandleLogin renders the sign-in page.
func (m Main) HandleLogin(w http.ResponseWriter, _ *http.Request) {
	widgets := make([]widget, len(promoWidgets))
	for i, wd := range promoWidgets {
		wd.ButtonText = loginButtonTexts[i%len(loginButtonTexts)]
		widgets[i] = wd
	}

	if err := m.templates.ExecuteTemplate(w, "login.html", loginPageData{Widgets: widgets}); err != nil {
		m.logger.Error("Failed to render login page", slog.String(errLoggerKey, err.Error()))
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// HandleLoginSubmit simulates a successful sign-in; there is no account backend.
func (m Main) HandleLoginSubmit(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// HandleWaitlist adds the "email" form value to the v2 waitlist and renders the confirmation.
func (m Main) HandleWaitlist(w http.ResponseWriter, r *http.Request) {
	if m.waitlist == nil {
		http.Error(w, "Waitlist is not available", http.StatusServiceUnavailable)
		return
	}

	email := r.FormValue("email")
	entry, added, err := m.waitlist.Join(r.Context(), email, time.Now())
	data := waitlistData{Email: entry.Email, AlreadyJoined: !added}
	status := http.StatusOK
	if err != nil {
		if !errors.Is(err, services.ErrInvalidEmail) {
			m.logger.Error("Failed to join waitlist", slog.String(errLoggerKey, err.Error()))
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		data = waitlistData{Email: email, Error: "Please enter a valid email address."}
		status = http.StatusBadRequest
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := m.templates.ExecuteTemplate(w, "waitlist_result", data); err != nil {
		m.logger.Error("Failed to render waitlist result", slog.String(errLoggerKey, err.Error()))
	}
}

func selectedModel(models []Model) Model {
	for _, md := range models {
		if md.Available {
			return md
		}
	}
	return Model{}
}

func acceptList() string {
	return strings.Join(attachment.AllowedExtensions, ",")
}
