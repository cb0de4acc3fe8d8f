package services

import (
	"context"
	"strings"
)

// Echo answers with the last user turn. It needs no model and is meant for local runs and tests.
type Echo struct {
	prefix string
}

// NewEcho creates an Echo answerer that prepends prefix to every answer.
func NewEcho(prefix string) Echo {
	return Echo{prefix: prefix}
}

// Answer implements Answerer.
func (e Echo) Answer(ctx context.Context, turns []Turn) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	for i := len(turns) - 1; i >= 0; i-- {
		if turns[i].Role == RoleUser && strings.TrimSpace(turns[i].Content) != "" {
			return e.prefix + turns[i].Content, nil
		}
	}
	return "", ErrEmptyAnswer
}
