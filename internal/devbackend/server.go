// Package devbackend serves the chat backend contract on top of a language model, for local runs
// and integration tests of the UI server.
package devbackend

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/MegaGrindStone/stealth-web-ui/internal/services"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

const (
	errLoggerKey = "err"

	maxBodySize = 8 * 1024 * 1024
)

type textRequest struct {
	Prompt string `json:"prompt"`
}

type followupRequest struct {
	OriginalVisionText string `json:"original_vision_text"`
	LastAnswer         string `json:"last_answer"`
	UserFollowup       string `json:"user_followup"`
}

type answerResponse struct {
	Answer string `json:"answer"`
}

type errorResponse struct {
	Detail string `json:"detail"`
}

// Server answers /chat/text and /chat/followup requests with an Answerer.
type Server struct {
	answerer services.Answerer
	logger   *slog.Logger
}

// NewServer creates a Server backed by answerer.
func NewServer(answerer services.Answerer, logger *slog.Logger) Server {
	return Server{
		answerer: answerer,
		logger:   logger.With(slog.String("module", "devbackend")),
	}
}

// Router returns the HTTP handler exposing the backend endpoints.
func (s Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)

	r.Post("/chat/text", s.HandleText)
	r.Post("/chat/followup", s.HandleFollowup)
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	return r
}

// HandleText answers a standalone prompt.
func (s Server) HandleText(w http.ResponseWriter, r *http.Request) {
	var req textRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		s.writeError(w, http.StatusBadRequest, "prompt is required")
		return
	}

	s.answer(w, r, []services.Turn{
		{Role: services.RoleUser, Content: req.Prompt},
	})
}

// HandleFollowup answers a question asked about an earlier answer. The original prompt and the
// last answer are replayed as history before the question.
func (s Server) HandleFollowup(w http.ResponseWriter, r *http.Request) {
	var req followupRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.UserFollowup) == "" {
		s.writeError(w, http.StatusBadRequest, "user_followup is required")
		return
	}

	var turns []services.Turn
	if req.OriginalVisionText != "" {
		turns = append(turns, services.Turn{Role: services.RoleUser, Content: req.OriginalVisionText})
	}
	if req.LastAnswer != "" {
		turns = append(turns, services.Turn{Role: services.RoleAssistant, Content: req.LastAnswer})
	}
	turns = append(turns, services.Turn{Role: services.RoleUser, Content: req.UserFollowup})

	s.answer(w, r, turns)
}

func (s Server) answer(w http.ResponseWriter, r *http.Request, turns []services.Turn) {
	answer, err := s.answerer.Answer(r.Context(), turns)
	if err != nil {
		s.logger.Error("Failed to answer",
			slog.String("path", r.URL.Path),
			slog.String("requestID", chimw.GetReqID(r.Context())),
			slog.String(errLoggerKey, err.Error()))
		s.writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	s.writeJSON(w, http.StatusOK, answerResponse{Answer: answer})
}

func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodySize))
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is empty")
		}
		return errors.New("request body is not valid JSON")
	}
	return nil
}

func (s Server) writeError(w http.ResponseWriter, status int, detail string) {
	s.writeJSON(w, status, errorResponse{Detail: detail})
}

func (s Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Failed to encode response", slog.String(errLoggerKey, err.Error()))
	}
}
