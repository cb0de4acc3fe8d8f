package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/MegaGrindStone/stealth-web-ui/internal/backend"
	"github.com/MegaGrindStone/stealth-web-ui/internal/metrics"
	"github.com/MegaGrindStone/stealth-web-ui/internal/models"
	"github.com/google/uuid"
)

// Transport sends cycle requests to the chat backend. backend.Client satisfies it.
type Transport interface {
	SendInitial(ctx context.Context, prompt string) (string, error)
	SendFollowup(ctx context.Context, req backend.FollowupRequest) (string, error)
}

// Snapshot is a point-in-time copy of a thread, safe to read without holding any lock.
type Snapshot struct {
	ThreadID      string
	InitialPrompt string
	LastAnswer    string
	Messages      []models.Message

	// FollowupEnabled is true once an answer has been received and the thread is still open.
	FollowupEnabled bool
	// Busy is true while a cycle awaits its response.
	Busy   bool
	Closed bool
}

// Thread owns the conversation of one chat-thread view and runs its cycles.
type Thread struct {
	id        string
	transport Transport
	logger    *slog.Logger
	now       func() time.Time
	onUpdate  func(Snapshot)

	ctx    context.Context
	cancel context.CancelFunc

	notifyMu sync.Mutex

	mu         sync.Mutex
	conv       *models.Conversation
	started    bool
	closed     bool
	generation uint64
	inFlight   *Cycle
}

// Option customises a Thread.
type Option func(*Thread)

var (
	// ErrEmptyPrompt is returned when a thread is opened without a prompt.
	ErrEmptyPrompt = errors.New("initial prompt is empty")
	// ErrAlreadyStarted is returned when the initial cycle is started twice.
	ErrAlreadyStarted = errors.New("thread already started")
	// ErrBlankInput is returned for a whitespace-only follow-up question.
	ErrBlankInput = errors.New("input is blank")
	// ErrNoAnswer is returned for a follow-up asked before any answer was received.
	ErrNoAnswer = errors.New("no answer to follow up on")
	// ErrCycleInFlight is returned when a cycle is submitted while another awaits its response.
	ErrCycleInFlight = errors.New("another cycle is awaiting its response")
	// ErrClosed is returned for operations on a closed thread.
	ErrClosed = errors.New("thread is closed")
)

// WithLogger sets the thread logger.
func WithLogger(logger *slog.Logger) Option {
	return func(t *Thread) {
		t.logger = logger
	}
}

// WithClock sets the clock used for message timestamps.
func WithClock(now func() time.Time) Option {
	return func(t *Thread) {
		t.now = now
	}
}

// WithUpdateHandler registers fn to be called after every change to the conversation. Calls are
// serialised per thread and each receives the latest snapshot.
func WithUpdateHandler(fn func(Snapshot)) Option {
	return func(t *Thread) {
		t.onUpdate = fn
	}
}

// NewThread opens a thread for prompt. A prompt that is blank after trimming is rejected; any other
// prompt is kept as typed. The initial cycle is not started until Start is called.
func NewThread(prompt string, transport Transport, opts ...Option) (*Thread, error) {
	if strings.TrimSpace(prompt) == "" {
		return nil, ErrEmptyPrompt
	}

	ctx, cancel := context.WithCancel(context.Background())
	t := &Thread{
		id:        uuid.NewString(),
		transport: transport,
		logger:    slog.Default(),
		now:       time.Now,
		ctx:       ctx,
		cancel:    cancel,
		conv:      models.NewConversation(),
	}
	for _, opt := range opts {
		opt(t)
	}
	t.logger = t.logger.With(slog.String("module", "chat"), slog.String("thread", t.id))
	t.conv.SetInitialPrompt(prompt)

	return t, nil
}

// ID returns the thread identifier.
func (t *Thread) ID() string {
	return t.id
}

// Start runs the initial cycle against the text endpoint.
func (t *Thread) Start() (*Cycle, error) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil, ErrClosed
	}
	if t.started {
		t.mu.Unlock()
		return nil, ErrAlreadyStarted
	}
	t.started = true

	prompt := t.conv.InitialPrompt()
	c, err := t.submitLocked(models.CycleInitial, prompt, func(ctx context.Context) (string, error) {
		return t.transport.SendInitial(ctx, prompt)
	})
	t.mu.Unlock()
	if err != nil {
		return nil, err
	}

	t.notify()
	return c, nil
}

// Followup runs a follow-up cycle for question. Guard violations leave the conversation untouched
// and send nothing.
func (t *Thread) Followup(question string) (*Cycle, error) {
	question = strings.TrimSpace(question)

	t.mu.Lock()
	switch {
	case t.closed:
		t.mu.Unlock()
		return nil, ErrClosed
	case question == "":
		t.mu.Unlock()
		return nil, ErrBlankInput
	case t.conv.LastAnswer() == "":
		t.mu.Unlock()
		return nil, ErrNoAnswer
	case t.inFlight != nil:
		t.mu.Unlock()
		return nil, ErrCycleInFlight
	}

	req := backend.FollowupRequest{
		OriginalVisionText: t.conv.InitialPrompt(),
		LastAnswer:         t.conv.LastAnswer(),
		UserFollowup:       question,
	}
	c, err := t.submitLocked(models.CycleFollowup, question, func(ctx context.Context) (string, error) {
		return t.transport.SendFollowup(ctx, req)
	})
	t.mu.Unlock()
	if err != nil {
		return nil, err
	}

	t.notify()
	return c, nil
}

// Close tears the thread down: in-flight requests are cancelled and their results discarded.
// Closing twice is a no-op.
func (t *Thread) Close() {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.closed = true
	t.generation++
	removed := t.conv.RemoveThinkingMessages()
	t.mu.Unlock()

	t.cancel()
	t.logger.Debug("Thread closed", slog.Int("droppedPlaceholders", removed))
	t.notify()
}

// Snapshot returns a copy of the current thread state.
func (t *Thread) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	return Snapshot{
		ThreadID:        t.id,
		InitialPrompt:   t.conv.InitialPrompt(),
		LastAnswer:      t.conv.LastAnswer(),
		Messages:        t.conv.Messages(),
		FollowupEnabled: t.conv.LastAnswer() != "" && !t.closed,
		Busy:            t.inFlight != nil,
		Closed:          t.closed,
	}
}

// History returns the messages of the given cycle kind in display order.
func (s Snapshot) History(kind models.CycleKind) []models.Message {
	var out []models.Message
	for _, m := range s.Messages {
		if m.Cycle == kind {
			out = append(out, m)
		}
	}
	return out
}

func (t *Thread) submitLocked(
	kind models.CycleKind,
	text string,
	call func(ctx context.Context) (string, error),
) (*Cycle, error) {
	c := newCycle(kind, text, t.conv, t.now)
	if err := c.submit(t.ctx); err != nil {
		return nil, fmt.Errorf("failed to submit %s cycle: %w", kind, err)
	}
	t.inFlight = c

	go t.await(c, t.generation, call)
	return c, nil
}

func (t *Thread) await(c *Cycle, gen uint64, call func(ctx context.Context) (string, error)) {
	answer, callErr := call(t.ctx)

	t.mu.Lock()
	var outcome string
	var err error
	switch {
	case gen != t.generation:
		outcome = metrics.OutcomeAbandoned
		err = c.abandon(context.Background())
	case callErr != nil:
		outcome = metrics.OutcomeFailed
		err = c.fail(context.Background(), callErr)
	default:
		outcome = metrics.OutcomeResolved
		err = c.succeed(context.Background(), answer)
	}
	if t.inFlight == c {
		t.inFlight = nil
	}
	t.mu.Unlock()

	if err != nil {
		t.logger.Error("Failed to transition cycle", slog.String("cycle", c.ID), slog.String(errLoggerKey, err.Error()))
	}
	t.record(c, outcome, callErr)
	c.finish()

	if outcome != metrics.OutcomeAbandoned {
		t.notify()
	}
}

func (t *Thread) record(c *Cycle, outcome string, callErr error) {
	kind := string(c.Kind)
	metrics.CyclesTotal.WithLabelValues(kind, outcome).Inc()
	metrics.CycleDuration.WithLabelValues(kind).Observe(t.now().Sub(c.started).Seconds())

	switch outcome {
	case metrics.OutcomeFailed:
		failureKind := "unknown"
		if k, ok := backend.KindOf(callErr); ok {
			failureKind = string(k)
		}
		metrics.BackendFailures.WithLabelValues(failureKind).Inc()
		t.logger.Warn("Cycle failed",
			slog.String("cycle", c.ID),
			slog.String("kind", kind),
			slog.String("failure", failureKind),
			slog.String(errLoggerKey, callErr.Error()))
	case metrics.OutcomeAbandoned:
		t.logger.Debug("Discarded result of closed thread", slog.String("cycle", c.ID))
	default:
		t.logger.Debug("Cycle resolved", slog.String("cycle", c.ID), slog.String("kind", kind))
	}
}

func (t *Thread) notify() {
	if t.onUpdate == nil {
		return
	}
	t.notifyMu.Lock()
	defer t.notifyMu.Unlock()
	t.onUpdate(t.Snapshot())
}
