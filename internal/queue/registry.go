package queue

import (
	"context"
	"fmt"
	"sort"
)

// HandlerFunc processes one job. A non-nil error schedules a retry.
type HandlerFunc func(ctx context.Context, job Job) error

// Registry maps job names to handlers. Build it once at startup and pass it
// to the Worker; it is not safe to Register while a Worker is running.
type Registry struct {
	handlers map[string]HandlerFunc
}

func NewRegistry() *Registry {
	return &Registry{handlers: map[string]HandlerFunc{}}
}

func (r *Registry) Register(name string, h HandlerFunc) error {
	if name == "" || h == nil {
		return fmt.Errorf("queue: invalid registration for %q", name)
	}
	if _, dup := r.handlers[name]; dup {
		return fmt.Errorf("queue: handler for %q already registered", name)
	}
	r.handlers[name] = h
	return nil
}

func (r *Registry) Lookup(name string) (HandlerFunc, bool) {
	h, ok := r.handlers[name]
	return h, ok
}

func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
