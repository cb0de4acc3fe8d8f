package chat

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/MegaGrindStone/stealth-web-ui/internal/metrics"
	lru "github.com/hashicorp/golang-lru"
)

const errLoggerKey = "err"

// DefaultMaxThreads bounds the registry when no size is configured.
const DefaultMaxThreads = 1024

// ErrThreadNotFound is returned when the id does not name a live thread.
var ErrThreadNotFound = errors.New("thread not found")

// Registry keeps the live threads of the server. The least recently used thread is closed when
// the registry is full.
type Registry struct {
	transport Transport
	opts      []Option
	base      *slog.Logger
	logger    *slog.Logger

	threads *lru.Cache
}

// NewRegistry creates a registry holding at most size threads. opts are applied to every thread
// it creates.
func NewRegistry(size int, transport Transport, logger *slog.Logger, opts ...Option) (*Registry, error) {
	if size <= 0 {
		size = DefaultMaxThreads
	}
	r := &Registry{
		transport: transport,
		opts:      opts,
		base:      logger,
		logger:    logger.With(slog.String("module", "registry")),
	}

	cache, err := lru.NewWithEvict(size, r.evicted)
	if err != nil {
		return nil, fmt.Errorf("failed to create thread cache: %w", err)
	}
	r.threads = cache

	return r, nil
}

// Create opens a thread for prompt and starts its initial cycle.
func (r *Registry) Create(prompt string) (*Thread, error) {
	opts := append([]Option{WithLogger(r.base)}, r.opts...)
	t, err := NewThread(prompt, r.transport, opts...)
	if err != nil {
		return nil, err
	}

	r.threads.Add(t.ID(), t)
	metrics.ThreadsActive.Inc()

	if _, err := t.Start(); err != nil {
		r.threads.Remove(t.ID())
		return nil, fmt.Errorf("failed to start thread: %w", err)
	}
	return t, nil
}

// Get returns the live thread with the given id.
func (r *Registry) Get(id string) (*Thread, error) {
	v, ok := r.threads.Get(id)
	if !ok {
		return nil, ErrThreadNotFound
	}
	return v.(*Thread), nil
}

// Close closes and forgets the thread with the given id.
func (r *Registry) Close(id string) error {
	if !r.threads.Remove(id) {
		return ErrThreadNotFound
	}
	return nil
}

// CloseAll closes every live thread.
func (r *Registry) CloseAll() {
	r.threads.Purge()
}

// Len returns the number of live threads.
func (r *Registry) Len() int {
	return r.threads.Len()
}

func (r *Registry) evicted(key, value interface{}) {
	t, ok := value.(*Thread)
	if !ok {
		return
	}
	t.Close()
	metrics.ThreadsActive.Dec()
	r.logger.Debug("Thread released", slog.Any("thread", key))
}
