package backend

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	textPath     = "/chat/text"
	followupPath = "/chat/followup"
)

// Client talks to the chat backend. It issues one POST per call and never retries.
type Client struct {
	baseURL string
	client  *resty.Client
	logger  *slog.Logger

	timeout    time.Duration
	httpClient *http.Client
}

// Option customises a Client.
type Option func(*Client)

// FollowupRequest carries the context the backend needs to answer a follow-up question.
type FollowupRequest struct {
	OriginalVisionText string `json:"original_vision_text"`
	LastAnswer         string `json:"last_answer"`
	UserFollowup       string `json:"user_followup"`
}

type textRequest struct {
	Prompt string `json:"prompt"`
}

type answerResponse struct {
	Answer string `json:"answer"`
}

type errorResponse struct {
	Detail json.RawMessage `json:"detail"`
}

// WithTimeout bounds every call. A zero duration, the default, leaves calls unbounded so a hung
// backend keeps the caller waiting until its context is cancelled.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithLogger sets the logger used for request tracing.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithHTTPClient replaces the underlying HTTP client, e.g. to use an httptest server client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// NewClient creates a Client for the backend reachable at baseURL.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With(slog.String("module", "backend"))

	if c.httpClient != nil {
		c.client = resty.NewWithClient(c.httpClient)
	} else {
		c.client = resty.New()
	}
	if c.timeout > 0 {
		c.client.SetTimeout(c.timeout)
	}

	c.client.
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json").
		OnAfterResponse(func(_ *resty.Client, r *resty.Response) error {
			c.logger.Debug("Backend response",
				slog.String("method", r.Request.Method),
				slog.String("url", r.Request.URL),
				slog.Int("status", r.StatusCode()),
				slog.Duration("latency", r.Time()))
			return nil
		})

	return c
}

// SendInitial asks the backend to answer prompt.
func (c *Client) SendInitial(ctx context.Context, prompt string) (string, error) {
	return c.post(ctx, textPath, textRequest{Prompt: prompt}, "")
}

// SendFollowup asks the backend to answer a follow-up question in the context of the initial
// prompt and the last answer.
func (c *Client) SendFollowup(ctx context.Context, req FollowupRequest) (string, error) {
	return c.post(ctx, followupPath, req, followupFailedMessage)
}

// post sends body to path. fallback is the message used when an error response carries no detail;
// empty means "HTTP error <status>".
func (c *Client) post(ctx context.Context, path string, body any, fallback string) (string, error) {
	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(body).
		Post(c.baseURL + path)
	if err != nil {
		c.logger.Warn("Backend request failed",
			slog.String("path", path),
			slog.String("err", err.Error()))
		return "", transportFailure(err)
	}

	if !resp.IsSuccess() {
		return "", failureFromResponse(resp.StatusCode(), resp.Body(), fallback)
	}

	var ar answerResponse
	if err := json.Unmarshal(resp.Body(), &ar); err != nil || ar.Answer == "" {
		return "", &Failure{
			Kind:       KindMalformedResponse,
			Message:    invalidFormatMessage,
			StatusCode: resp.StatusCode(),
		}
	}

	return ar.Answer, nil
}

// failureFromResponse converts a non-success response into a Failure, preferring the detail the
// server put into its JSON body.
func failureFromResponse(status int, body []byte, fallback string) *Failure {
	if !json.Valid(body) {
		return &Failure{
			Kind:       KindInvalidResponseBody,
			Message:    invalidJSONMessage,
			StatusCode: status,
		}
	}

	// Only a string detail is shown; structured details (e.g. validation lists) and non-object
	// bodies fall back to the generic message.
	var er errorResponse
	var detail string
	if err := json.Unmarshal(body, &er); err == nil && len(er.Detail) > 0 {
		_ = json.Unmarshal(er.Detail, &detail)
	}
	return serverFailure(status, detail, fallback)
}
