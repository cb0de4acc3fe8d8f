package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"html"
	"html/template"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/MegaGrindStone/stealth-web-ui/internal/backend"
	"github.com/MegaGrindStone/stealth-web-ui/internal/handlers"
	"github.com/MegaGrindStone/stealth-web-ui/internal/services"
	"github.com/stretchr/testify/require"
)

type mockReply struct {
	answer string
	err    error
}

type mockTransport struct {
	replies chan mockReply

	mu        sync.Mutex
	prompts   []string
	followups []backend.FollowupRequest
}

type mockWaitlist struct {
	mu     sync.Mutex
	joined map[string]bool
	err    error
}

type mockRenderer struct {
	err error
}

func newMockTransport() *mockTransport {
	return &mockTransport{replies: make(chan mockReply, 8)}
}

func newTestMain(t *testing.T, transport *mockTransport) handlers.Main {
	t.Helper()

	m, err := handlers.NewMain(handlers.Config{
		Transport: transport,
		Waitlist:  &mockWaitlist{joined: map[string]bool{}},
		Renderer:  mockRenderer{},
		Models: []handlers.Model{
			{ID: "v1.5", Name: "v1.5 Beta", Available: true},
			{ID: "v2", Name: "v2"},
		},
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = m.Shutdown(context.Background())
	})
	return m
}

func TestNewMain(t *testing.T) {
	_, err := handlers.NewMain(handlers.Config{})
	require.Error(t, err)

	m, err := handlers.NewMain(handlers.Config{Transport: newMockTransport()})
	require.NoError(t, err)
	require.NoError(t, m.Shutdown(context.Background()))
}

func TestHandleHome(t *testing.T) {
	srv := httptest.NewServer(newTestMain(t, newMockTransport()).Router())
	defer srv.Close()

	tests := []struct {
		name     string
		url      string
		wantBody []string
	}{
		{
			name: "Landing page",
			url:  "/",
			wantBody: []string{
				"What are we solving today?",
				"Ask anything, or attach a file...",
				"v1.5 Beta",
				"Coming Soon...",
				"AI Powered DSA Masterclass",
				".txt,.js,.py",
			},
		},
		{
			name:     "Landing page with draft",
			url:      "/?draft=" + url.QueryEscape("keep me"),
			wantBody: []string{"keep me</textarea>"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := http.Get(srv.URL + tt.url)
			require.NoError(t, err)
			body := readBody(t, res)

			require.Equal(t, http.StatusOK, res.StatusCode)
			for _, want := range tt.wantBody {
				require.Contains(t, body, want)
			}
		})
	}
}

func TestHandleLogin(t *testing.T) {
	srv := httptest.NewServer(newTestMain(t, newMockTransport()).Router())
	defer srv.Close()

	res, err := http.Get(srv.URL + "/login")
	require.NoError(t, err)
	body := readBody(t, res)

	require.Equal(t, http.StatusOK, res.StatusCode)
	for _, want := range []string{"Welcome back", "Login to continue your journey.", "Begin Journey", "Sign up"} {
		require.Contains(t, body, want)
	}

	res, err = noRedirectClient().PostForm(srv.URL+"/login", url.Values{"email": {"a@b.c"}})
	require.NoError(t, err)
	res.Body.Close()
	require.Equal(t, http.StatusSeeOther, res.StatusCode)
	require.Equal(t, "/", res.Header.Get("Location"))
}

func TestHandleCreateThread(t *testing.T) {
	transport := newMockTransport()
	srv := httptest.NewServer(newTestMain(t, transport).Router())
	defer srv.Close()

	tests := []struct {
		name         string
		message      string
		wantLocation string
	}{
		{name: "Empty message", message: "", wantLocation: "/"},
		{name: "Blank message", message: "   \n", wantLocation: "/"},
		{name: "New thread", message: "  What is 2+2?  ", wantLocation: "/chats/"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := noRedirectClient().PostForm(srv.URL+"/chats", url.Values{"message": {tt.message}})
			require.NoError(t, err)
			res.Body.Close()

			require.Equal(t, http.StatusSeeOther, res.StatusCode)
			if tt.wantLocation == "/" {
				require.Equal(t, "/", res.Header.Get("Location"))
				return
			}
			require.True(t, strings.HasPrefix(res.Header.Get("Location"), tt.wantLocation))
		})
	}

	require.Eventually(t, func() bool {
		prompts, _ := transport.requests()
		return len(prompts) == 1
	}, 2*time.Second, 10*time.Millisecond)
	prompts, _ := transport.requests()
	require.Equal(t, []string{"  What is 2+2?  "}, prompts)
}

func TestThreadConversation(t *testing.T) {
	transport := newMockTransport()
	srv := httptest.NewServer(newTestMain(t, transport).Router())
	defer srv.Close()

	id := createThread(t, srv.URL, "What is 2+2?")

	res, err := http.Get(srv.URL + "/chats/" + id)
	require.NoError(t, err)
	body := readBody(t, res)
	require.Equal(t, http.StatusOK, res.StatusCode)
	require.Contains(t, body, "Chat Thread")
	require.Contains(t, body, "What is 2&#43;2?")
	require.Contains(t, body, "Thinking...")
	require.Contains(t, body, `data-followup="false"`)

	// A follow-up before the first answer is ignored.
	res, err = http.PostForm(srv.URL+"/chats/"+id+"/followups", url.Values{"question": {"Why?"}})
	require.NoError(t, err)
	res.Body.Close()
	require.Equal(t, http.StatusNoContent, res.StatusCode)

	transport.replies <- mockReply{answer: "4"}
	body = waitForMessages(t, srv.URL, id, "rendered:4")
	require.NotContains(t, body, "Thinking...")
	require.Contains(t, body, `data-followup="true"`)

	tests := []struct {
		name       string
		question   string
		wantStatus int
	}{
		{name: "Blank question", question: "  ", wantStatus: http.StatusNoContent},
		{name: "Follow-up question", question: "Why?", wantStatus: http.StatusOK},
		{name: "Overlapping question", question: "And then?", wantStatus: http.StatusNoContent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := http.PostForm(srv.URL+"/chats/"+id+"/followups", url.Values{"question": {tt.question}})
			require.NoError(t, err)
			body := readBody(t, res)

			require.Equal(t, tt.wantStatus, res.StatusCode)
			if tt.wantStatus == http.StatusOK {
				require.Contains(t, body, "Why?")
				require.Contains(t, body, "Thinking...")
			}
		})
	}

	// The refused question is neither shown nor sent.
	body = waitForMessages(t, srv.URL, id, `data-busy="true"`)
	require.NotContains(t, body, "And then?")
	require.Eventually(t, func() bool {
		_, followups := transport.requests()
		return len(followups) == 1
	}, 2*time.Second, 10*time.Millisecond)

	transport.replies <- mockReply{err: errors.New("HTTP error 500")}
	body = waitForMessages(t, srv.URL, id, html.EscapeString("❌ Error: HTTP error 500"))
	require.Contains(t, body, "rendered:4")
	require.NotContains(t, body, "Thinking...")

	_, followups := transport.requests()
	require.Equal(t, []backend.FollowupRequest{{
		OriginalVisionText: "What is 2+2?",
		LastAnswer:         "4",
		UserFollowup:       "Why?",
	}}, followups)
}

func TestHandleUnknownThread(t *testing.T) {
	srv := httptest.NewServer(newTestMain(t, newMockTransport()).Router())
	defer srv.Close()

	tests := []struct {
		name       string
		method     string
		path       string
		wantStatus int
	}{
		{name: "Thread page", method: http.MethodGet, path: "/chats/missing", wantStatus: http.StatusSeeOther},
		{name: "Messages", method: http.MethodGet, path: "/chats/missing/messages", wantStatus: http.StatusNotFound},
		{name: "Follow-up", method: http.MethodPost, path: "/chats/missing/followups", wantStatus: http.StatusNotFound},
		{name: "Close", method: http.MethodPost, path: "/chats/missing/close", wantStatus: http.StatusNoContent},
		{name: "SSE without thread", method: http.MethodGet, path: "/sse", wantStatus: http.StatusBadRequest},
		{name: "SSE unknown thread", method: http.MethodGet, path: "/sse?thread_id=missing", wantStatus: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := http.NewRequest(tt.method, srv.URL+tt.path, nil)
			require.NoError(t, err)
			res, err := noRedirectClient().Do(req)
			require.NoError(t, err)
			res.Body.Close()

			require.Equal(t, tt.wantStatus, res.StatusCode)
		})
	}
}

func TestHandleCloseThread(t *testing.T) {
	transport := newMockTransport()
	srv := httptest.NewServer(newTestMain(t, transport).Router())
	defer srv.Close()

	id := createThread(t, srv.URL, "Hello")

	res, err := http.Post(srv.URL+"/chats/"+id+"/close", "text/plain", nil)
	require.NoError(t, err)
	res.Body.Close()
	require.Equal(t, http.StatusNoContent, res.StatusCode)

	res, err = http.Get(srv.URL + "/chats/" + id + "/messages")
	require.NoError(t, err)
	res.Body.Close()
	require.Equal(t, http.StatusNotFound, res.StatusCode)

	// The answer of a closed thread is dropped without blocking anything.
	transport.replies <- mockReply{answer: "late"}
}

func TestHandleAttachment(t *testing.T) {
	srv := httptest.NewServer(newTestMain(t, newMockTransport()).Router())
	defer srv.Close()

	tests := []struct {
		name       string
		filename   string
		content    string
		draft      string
		wantStatus int
		wantDraft  string
		wantError  string
	}{
		{
			name:       "Text file",
			filename:   "notes.txt",
			content:    "hello",
			draft:      "Review this",
			wantStatus: http.StatusOK,
			wantDraft:  "Review this\n\n--- notes.txt ---\nhello",
		},
		{
			name:       "Unsupported type",
			filename:   "tool.exe",
			content:    "MZ",
			wantStatus: http.StatusUnprocessableEntity,
			wantError:  "Unsupported file type: .exe",
		},
		{
			name:       "No file",
			wantStatus: http.StatusBadRequest,
			wantError:  "No file selected.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			mw := multipart.NewWriter(&buf)
			require.NoError(t, mw.WriteField("draft", tt.draft))
			if tt.filename != "" {
				fw, err := mw.CreateFormFile("file", tt.filename)
				require.NoError(t, err)
				_, err = fw.Write([]byte(tt.content))
				require.NoError(t, err)
			}
			require.NoError(t, mw.Close())

			res, err := http.Post(srv.URL+"/attachments", mw.FormDataContentType(), &buf)
			require.NoError(t, err)
			defer res.Body.Close()

			var got struct {
				Draft string `json:"draft"`
				Error string `json:"error"`
			}
			require.NoError(t, json.NewDecoder(res.Body).Decode(&got))

			require.Equal(t, tt.wantStatus, res.StatusCode)
			if tt.wantDraft != "" {
				require.Equal(t, tt.wantDraft, got.Draft)
			}
			if tt.wantError != "" {
				require.Contains(t, got.Error, tt.wantError)
			}
		})
	}
}

func TestHandleWaitlist(t *testing.T) {
	srv := httptest.NewServer(newTestMain(t, newMockTransport()).Router())
	defer srv.Close()

	tests := []struct {
		name       string
		email      string
		wantStatus int
		wantBody   string
	}{
		{name: "Invalid email", email: "nope", wantStatus: http.StatusBadRequest, wantBody: "Please enter a valid email address."},
		{name: "New email", email: "ada@example.com", wantStatus: http.StatusOK, wantBody: "has joined the waitlist"},
		{name: "Repeated email", email: "ada@example.com", wantStatus: http.StatusOK, wantBody: "already on the waitlist"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := http.PostForm(srv.URL+"/waitlist", url.Values{"email": {tt.email}})
			require.NoError(t, err)
			body := readBody(t, res)

			require.Equal(t, tt.wantStatus, res.StatusCode)
			require.Contains(t, body, tt.wantBody)
		})
	}
}

func TestRenderFailureFallsBackToText(t *testing.T) {
	transport := newMockTransport()
	m, err := handlers.NewMain(handlers.Config{
		Transport: transport,
		Renderer:  mockRenderer{err: errors.New("broken")},
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	require.NoError(t, err)
	defer m.Shutdown(context.Background())

	srv := httptest.NewServer(m.Router())
	defer srv.Close()

	id := createThread(t, srv.URL, "Say <b>")
	transport.replies <- mockReply{answer: "<b>bold</b>"}

	body := waitForMessages(t, srv.URL, id, "&lt;b&gt;bold&lt;/b&gt;")
	require.NotContains(t, body, "rendered:")
}

func createThread(t *testing.T, baseURL, message string) string {
	t.Helper()

	res, err := noRedirectClient().PostForm(baseURL+"/chats", url.Values{"message": {message}})
	require.NoError(t, err)
	res.Body.Close()
	require.Equal(t, http.StatusSeeOther, res.StatusCode)

	id := strings.TrimPrefix(res.Header.Get("Location"), "/chats/")
	require.NotEmpty(t, id)
	return id
}

func waitForMessages(t *testing.T, baseURL, id, want string) string {
	t.Helper()

	var body string
	require.Eventually(t, func() bool {
		res, err := http.Get(baseURL + "/chats/" + id + "/messages")
		if err != nil {
			return false
		}
		defer res.Body.Close()
		b, err := io.ReadAll(res.Body)
		if err != nil {
			return false
		}
		body = string(b)
		return strings.Contains(body, want)
	}, 2*time.Second, 10*time.Millisecond)
	return body
}

func readBody(t *testing.T, res *http.Response) string {
	t.Helper()
	defer res.Body.Close()

	b, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	return string(b)
}

func noRedirectClient() *http.Client {
	return &http.Client{
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

func (m *mockTransport) SendInitial(ctx context.Context, prompt string) (string, error) {
	m.mu.Lock()
	m.prompts = append(m.prompts, prompt)
	m.mu.Unlock()
	return m.wait(ctx)
}

func (m *mockTransport) SendFollowup(ctx context.Context, req backend.FollowupRequest) (string, error) {
	m.mu.Lock()
	m.followups = append(m.followups, req)
	m.mu.Unlock()
	return m.wait(ctx)
}

func (m *mockTransport) wait(ctx context.Context) (string, error) {
	select {
	case r := <-m.replies:
		return r.answer, r.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (m *mockTransport) requests() ([]string, []backend.FollowupRequest) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.prompts...), append([]backend.FollowupRequest(nil), m.followups...)
}

func (m *mockWaitlist) Join(_ context.Context, email string, now time.Time) (services.WaitlistEntry, bool, error) {
	if m.err != nil {
		return services.WaitlistEntry{}, false, m.err
	}
	normalized, err := services.NormalizeEmail(email)
	if err != nil {
		return services.WaitlistEntry{}, false, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	entry := services.WaitlistEntry{Email: normalized, JoinedAt: now}
	if m.joined[normalized] {
		return entry, false, nil
	}
	m.joined[normalized] = true
	return entry, true, nil
}

func (m mockRenderer) Render(source string) (template.HTML, error) {
	if m.err != nil {
		return "", m.err
	}
	return template.HTML("<p>rendered:" + html.EscapeString(source) + "</p>"), nil //nolint:gosec
}
