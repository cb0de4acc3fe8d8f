package models

import "slices"

// Conversation holds the state of one chat thread: the prompt that opened it, the last answer
// received from the backend, and the ordered list of displayed messages.
//
// Conversation has no business rules and is not safe for concurrent use; its owner serialises
// access.
type Conversation struct {
	initialPrompt string
	lastAnswer    string
	messages      []Message
}

// NewConversation returns an empty conversation.
func NewConversation() *Conversation {
	return &Conversation{}
}

// InitialPrompt returns the first prompt of the thread.
func (c *Conversation) InitialPrompt() string {
	return c.initialPrompt
}

// SetInitialPrompt records the first prompt. The prompt is immutable once set, so subsequent calls
// report false and leave the stored value untouched.
func (c *Conversation) SetInitialPrompt(prompt string) bool {
	if c.initialPrompt != "" {
		return false
	}
	c.initialPrompt = prompt
	return true
}

// LastAnswer returns the most recent answer text, or empty if no cycle has resolved yet.
func (c *Conversation) LastAnswer() string {
	return c.lastAnswer
}

// SetLastAnswer records the most recent answer text.
func (c *Conversation) SetLastAnswer(answer string) {
	c.lastAnswer = answer
}

// AppendMessage adds msg to the end of the list.
func (c *Conversation) AppendMessage(msg Message) {
	c.messages = append(c.messages, msg)
}

// RemoveMessage deletes the message whose ID equals id. Matching is exact, so messages sharing a
// prefix with id are kept. It reports whether a message was removed.
func (c *Conversation) RemoveMessage(id string) bool {
	idx := slices.IndexFunc(c.messages, func(m Message) bool { return m.ID == id })
	if idx == -1 {
		return false
	}
	c.messages = slices.Delete(c.messages, idx, idx+1)
	return true
}

// RemoveThinkingMessages deletes every placeholder message and returns how many were removed.
func (c *Conversation) RemoveThinkingMessages() int {
	before := len(c.messages)
	c.messages = slices.DeleteFunc(c.messages, func(m Message) bool { return m.Thinking })
	return before - len(c.messages)
}

// Messages returns a copy of all messages in display order.
func (c *Conversation) Messages() []Message {
	return slices.Clone(c.messages)
}

// HasThinking reports whether a placeholder is currently displayed.
func (c *Conversation) HasThinking() bool {
	return slices.ContainsFunc(c.messages, func(m Message) bool { return m.Thinking })
}
