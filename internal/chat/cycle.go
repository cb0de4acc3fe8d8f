package chat

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MegaGrindStone/stealth-web-ui/internal/models"
	"github.com/google/uuid"
	"github.com/qmuntal/stateless"
)

// State is the position of a Cycle in its lifecycle.
type State string

type trigger string

const (
	StateIdle             State = "Idle"
	StateAwaitingResponse State = "AwaitingResponse"
	StateResolved         State = "Resolved"
	StateFailed           State = "Failed"
	// StateAbandoned is entered when the result arrives after the owning thread was closed.
	StateAbandoned State = "Abandoned"

	triggerSubmit  trigger = "Submit"
	triggerSucceed trigger = "Succeed"
	triggerFail    trigger = "Fail"
	triggerAbandon trigger = "Abandon"
)

// ErrorPrefix starts the text of every bot bubble that reports a failed cycle.
const ErrorPrefix = "❌ Error: "

// Cycle is one request/response exchange. Transitions mutate the thread's conversation and must
// be fired while the owning Thread holds its lock.
type Cycle struct {
	ID            string
	Kind          models.CycleKind
	Text          string
	UserMessageID string
	PlaceholderID string

	fsm     *stateless.StateMachine
	conv    *models.Conversation
	now     func() time.Time
	started time.Time

	done   chan struct{}
	result models.Message
	err    error
}

func newCycle(kind models.CycleKind, text string, conv *models.Conversation, now func() time.Time) *Cycle {
	c := &Cycle{
		ID:   uuid.NewString(),
		Kind: kind,
		Text: text,
		conv: conv,
		now:  now,
		done: make(chan struct{}),
	}

	fsm := stateless.NewStateMachine(StateIdle)
	fsm.Configure(StateIdle).
		Permit(triggerSubmit, StateAwaitingResponse)

	fsm.Configure(StateAwaitingResponse).
		OnEntry(c.enterAwaiting).
		Permit(triggerSucceed, StateResolved).
		Permit(triggerFail, StateFailed).
		Permit(triggerAbandon, StateAbandoned)

	fsm.Configure(StateResolved).
		OnEntry(c.enterResolved)

	fsm.Configure(StateFailed).
		OnEntry(c.enterFailed)

	fsm.Configure(StateAbandoned).
		OnEntry(func(_ context.Context, _ ...any) error {
			c.err = ErrClosed
			return nil
		})

	c.fsm = fsm
	return c
}

// State returns the current state of the cycle.
func (c *Cycle) State() State {
	return c.fsm.MustState().(State)
}

// Done is closed once the cycle reaches a terminal state.
func (c *Cycle) Done() <-chan struct{} {
	return c.done
}

// Wait blocks until the cycle finishes and returns the bot message that replaced the placeholder.
// A cycle abandoned because its thread was closed returns ErrClosed.
func (c *Cycle) Wait(ctx context.Context) (models.Message, error) {
	select {
	case <-c.done:
		return c.result, c.err
	case <-ctx.Done():
		return models.Message{}, ctx.Err()
	}
}

func (c *Cycle) submit(ctx context.Context) error {
	c.started = c.now()
	return c.fsm.FireCtx(ctx, triggerSubmit)
}

func (c *Cycle) succeed(ctx context.Context, answer string) error {
	return c.fsm.FireCtx(ctx, triggerSucceed, answer)
}

func (c *Cycle) fail(ctx context.Context, cause error) error {
	return c.fsm.FireCtx(ctx, triggerFail, cause)
}

func (c *Cycle) abandon(ctx context.Context) error {
	return c.fsm.FireCtx(ctx, triggerAbandon)
}

func (c *Cycle) finish() {
	close(c.done)
}

func (c *Cycle) enterAwaiting(_ context.Context, _ ...any) error {
	now := c.now()
	user := models.NewMessage("user", models.SenderUser, c.Kind, c.Text, now)
	placeholder := models.NewThinkingMessage(c.Kind, now)
	c.UserMessageID = user.ID
	c.PlaceholderID = placeholder.ID

	c.conv.AppendMessage(user)
	c.conv.AppendMessage(placeholder)
	return nil
}

func (c *Cycle) enterResolved(_ context.Context, args ...any) error {
	if len(args) != 1 {
		return fmt.Errorf("resolve cycle %s: expected answer argument, got %d args", c.ID, len(args))
	}
	answer, ok := args[0].(string)
	if !ok {
		return fmt.Errorf("resolve cycle %s: answer is %T, not string", c.ID, args[0])
	}

	c.conv.RemoveMessage(c.PlaceholderID)
	c.result = models.NewMessage("bot", models.SenderBot, c.Kind, answer, c.now())
	c.conv.AppendMessage(c.result)
	c.conv.SetLastAnswer(answer)
	return nil
}

func (c *Cycle) enterFailed(_ context.Context, args ...any) error {
	cause := errors.New("unknown failure")
	if len(args) == 1 {
		if err, ok := args[0].(error); ok && err != nil {
			cause = err
		}
	}

	c.conv.RemoveMessage(c.PlaceholderID)
	c.result = models.NewMessage("bot-error", models.SenderBot, c.Kind, ErrorPrefix+cause.Error(), c.now())
	c.result.Failed = true
	c.conv.AppendMessage(c.result)
	return nil
}
