package handlers

import (
	"errors"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/MegaGrindStone/stealth-web-ui/internal/chat"
	"github.com/MegaGrindStone/stealth-web-ui/internal/models"
	"github.com/go-chi/chi/v5"
)

type message struct {
	ID        string
	Sender    string
	Text      string
	HTML      template.HTML
	Timestamp string

	Thinking bool
	Failed   bool
}

type messageListData struct {
	ThreadID  string
	Initial   []message
	Followups []message

	FollowupEnabled bool
	Busy            bool
	Closed          bool
}

type threadPageData struct {
	ThreadID string
	List     messageListData
}

// HandleCreateThread opens a thread for the "message" form value and sends the browser to it.
// A blank message is an invalid entry and leads back to the landing page.
func (m Main) HandleCreateThread(w http.ResponseWriter, r *http.Request) {
	t, err := m.threads.Create(r.FormValue("message"))
	if err != nil {
		if errors.Is(err, chat.ErrEmptyPrompt) {
			http.Redirect(w, r, "/", http.StatusSeeOther)
			return
		}
		m.logger.Error("Failed to create thread", slog.String(errLoggerKey, err.Error()))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	http.Redirect(w, r, "/chats/"+t.ID(), http.StatusSeeOther)
}

// HandleThread renders the chat-thread page. Unknown threads lead back to the landing page.
func (m Main) HandleThread(w http.ResponseWriter, r *http.Request) {
	t, err := m.threads.Get(chi.URLParam(r, "id"))
	if err != nil {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	snap := t.Snapshot()
	data := threadPageData{
		ThreadID: snap.ThreadID,
		List:     m.messageList(snap),
	}
	if err := m.templates.ExecuteTemplate(w, "thread.html", data); err != nil {
		m.logger.Error("Failed to render thread page",
			slog.String("threadID", snap.ThreadID),
			slog.String(errLoggerKey, err.Error()))
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// HandleMessages renders the current message list of a thread. Browsers call it after the SSE
// stream opens so updates published before the connection are not missed.
func (m Main) HandleMessages(w http.ResponseWriter, r *http.Request) {
	t, err := m.threads.Get(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "Thread not found", http.StatusNotFound)
		return
	}

	m.renderMessageList(w, t.Snapshot())
}

// HandleFollowup submits the "question" form value as a follow-up. Submissions the thread refuses
// (blank question, no answer yet, a cycle still in flight, closed thread) are ignored with 204.
func (m Main) HandleFollowup(w http.ResponseWriter, r *http.Request) {
	t, err := m.threads.Get(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "Thread not found", http.StatusNotFound)
		return
	}

	if _, err := t.Followup(r.FormValue("question")); err != nil {
		switch {
		case errors.Is(err, chat.ErrBlankInput),
			errors.Is(err, chat.ErrNoAnswer),
			errors.Is(err, chat.ErrCycleInFlight),
			errors.Is(err, chat.ErrClosed):
			m.logger.Debug("Follow-up ignored",
				slog.String("threadID", t.ID()),
				slog.String("reason", err.Error()))
			w.WriteHeader(http.StatusNoContent)
		default:
			m.logger.Error("Failed to submit follow-up",
				slog.String("threadID", t.ID()),
				slog.String(errLoggerKey, err.Error()))
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
		return
	}

	m.renderMessageList(w, t.Snapshot())
}

// HandleCloseThread tears a thread down when its view is left. Closing an unknown thread is not an
// error.
func (m Main) HandleCloseThread(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := m.threads.Close(id); err != nil && !errors.Is(err, chat.ErrThreadNotFound) {
		m.logger.Error("Failed to close thread", slog.String("threadID", id), slog.String(errLoggerKey, err.Error()))
	}
	w.WriteHeader(http.StatusNoContent)
}

func (m Main) renderMessageList(w http.ResponseWriter, snap chat.Snapshot) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := m.templates.ExecuteTemplate(w, "message_list", m.messageList(snap)); err != nil {
		m.logger.Error("Failed to render message list",
			slog.String("threadID", snap.ThreadID),
			slog.String(errLoggerKey, err.Error()))
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func (m Main) messageList(snap chat.Snapshot) messageListData {
	return messageListData{
		ThreadID:        snap.ThreadID,
		Initial:         m.messages(snap.History(models.CycleInitial)),
		Followups:       m.messages(snap.History(models.CycleFollowup)),
		FollowupEnabled: snap.FollowupEnabled,
		Busy:            snap.Busy,
		Closed:          snap.Closed,
	}
}

func (m Main) messages(msgs []models.Message) []message {
	out := make([]message, len(msgs))
	for i, msg := range msgs {
		out[i] = message{
			ID:        msg.ID,
			Sender:    string(msg.Sender),
			Text:      msg.Text,
			Timestamp: msg.Timestamp,
			Thinking:  msg.Thinking,
			Failed:    msg.Failed,
		}
		if msg.Sender != models.SenderBot || msg.Thinking || msg.Failed || m.renderer == nil {
			continue
		}

		html, err := m.renderer.Render(msg.Text)
		if err != nil {
			// The template falls back to plain text.
			m.logger.Warn("Failed to render answer",
				slog.String("messageID", msg.ID),
				slog.String(errLoggerKey, err.Error()))
			continue
		}
		out[i].HTML = html
	}
	return out
}
