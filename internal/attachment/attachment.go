// Package attachment validates files attached to a prompt draft and appends their text to it.
package attachment

import (
	"fmt"
	"io"
	"path"
	"slices"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// MaxSize is the largest accepted attachment, in bytes.
const MaxSize = 5 * 1024 * 1024

const (
	sizeMessage = "File size must be less than 5MB"
	readMessage = "Error reading file."
)

// AllowedExtensions lists the accepted file extensions, in display order.
var AllowedExtensions = []string{
	".txt", ".js", ".py", ".cpp", ".c", ".java", ".html", ".css", ".md", ".json", ".xml", ".ts", ".tsx", ".jsx",
}

// RejectError reports why a file was not attached. Its message is shown to the user verbatim.
type RejectError struct {
	Message string

	cause error
}

func (e *RejectError) Error() string {
	return e.Message
}

func (e *RejectError) Unwrap() error {
	return e.cause
}

// Extension returns the lower-cased extension of name the way the upload form sees it: everything
// after the last dot, or the whole name when there is no dot.
func Extension(name string) string {
	base := path.Base(strings.ReplaceAll(name, `\`, "/"))
	if i := strings.LastIndex(base, "."); i >= 0 {
		base = base[i+1:]
	}
	return "." + strings.ToLower(base)
}

// Validate checks name against the allow-list and size against MaxSize.
func Validate(name string, size int64) error {
	ext := Extension(name)
	if !slices.Contains(AllowedExtensions, ext) {
		return &RejectError{
			Message: fmt.Sprintf("Unsupported file type: %s\nPlease upload one of the following: %s",
				ext, strings.Join(AllowedExtensions, ", ")),
		}
	}
	if size > MaxSize {
		return &RejectError{Message: sizeMessage}
	}
	return nil
}

// Read validates the file and returns its content as text. Content that does not sniff as text is
// rejected.
func Read(name string, size int64, r io.Reader) (string, error) {
	if err := Validate(name, size); err != nil {
		return "", err
	}

	data, err := io.ReadAll(io.LimitReader(r, MaxSize+1))
	if err != nil {
		return "", &RejectError{Message: readMessage, cause: err}
	}
	if len(data) > MaxSize {
		return "", &RejectError{Message: sizeMessage}
	}

	if !isText(mimetype.Detect(data)) {
		return "", &RejectError{Message: readMessage}
	}

	return string(data), nil
}

// AppendToDraft appends a delimited copy of content to draft.
func AppendToDraft(draft, name, content string) string {
	return draft + "\n\n--- " + name + " ---\n" + content
}

func isText(mt *mimetype.MIME) bool {
	for m := mt; m != nil; m = m.Parent() {
		if m.Is("text/plain") {
			return true
		}
	}
	return false
}
