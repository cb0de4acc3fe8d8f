package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/MegaGrindStone/stealth-web-ui/internal/attachment"
)

// multipart overhead allowed on top of the attachment itself
const attachmentFormOverhead = 1 << 20

type attachmentResponse struct {
	Draft string `json:"draft,omitempty"`
	Error string `json:"error,omitempty"`
}

// HandleAttachment reads the uploaded "file" and appends it to the "draft" form value. The new
// draft is returned as JSON; a rejected file leaves the draft untouched and returns the message to
// show to the user.
func (m Main) HandleAttachment(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, attachment.MaxSize+attachmentFormOverhead)
	if err := r.ParseMultipartForm(attachment.MaxSize + attachmentFormOverhead); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			m.writeAttachment(w, http.StatusUnprocessableEntity, attachmentResponse{Error: "File size must be less than 5MB"})
			return
		}
		m.writeAttachment(w, http.StatusBadRequest, attachmentResponse{Error: "Error reading file."})
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	file, header, err := r.FormFile("file")
	if err != nil {
		m.writeAttachment(w, http.StatusBadRequest, attachmentResponse{Error: "No file selected."})
		return
	}
	defer file.Close()

	content, err := attachment.Read(header.Filename, header.Size, file)
	if err != nil {
		var rej *attachment.RejectError
		if errors.As(err, &rej) {
			m.logger.Debug("Attachment rejected",
				slog.String("filename", header.Filename),
				slog.Int64("size", header.Size),
				slog.String("reason", rej.Message))
			m.writeAttachment(w, http.StatusUnprocessableEntity, attachmentResponse{Error: rej.Message})
			return
		}
		m.logger.Error("Failed to read attachment", slog.String(errLoggerKey, err.Error()))
		m.writeAttachment(w, http.StatusInternalServerError, attachmentResponse{Error: "Error reading file."})
		return
	}

	m.writeAttachment(w, http.StatusOK, attachmentResponse{
		Draft: attachment.AppendToDraft(r.FormValue("draft"), header.Filename, content),
	})
}

func (m Main) writeAttachment(w http.ResponseWriter, status int, res attachmentResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(res); err != nil {
		m.logger.Error("Failed to encode attachment response", slog.String(errLoggerKey, err.Error()))
	}
}
