package team

import (
	"context"
	"sync"
)

// Notifier fans out "members changed" signals. Handlers must not block.
type Notifier interface {
	PublishMembersChanged(ctx context.Context) error
	// SubscribeMembersChanged registers handler and returns a function that removes it.
	SubscribeMembersChanged(ctx context.Context, handler func()) (cancel func(), err error)
}

// LocalNotifier delivers signals within a single process.
type LocalNotifier struct {
	mu       sync.Mutex
	next     int
	handlers map[int]func()
}

// NewLocalNotifier creates an in-process notifier.
func NewLocalNotifier() *LocalNotifier {
	return &LocalNotifier{handlers: make(map[int]func())}
}

func (n *LocalNotifier) PublishMembersChanged(_ context.Context) error {
	n.mu.Lock()
	hs := make([]func(), 0, len(n.handlers))
	for _, h := range n.handlers {
		hs = append(hs, h)
	}
	n.mu.Unlock()
	for _, h := range hs {
		h()
	}
	return nil
}

func (n *LocalNotifier) SubscribeMembersChanged(_ context.Context, handler func()) (func(), error) {
	n.mu.Lock()
	id := n.next
	n.next++
	n.handlers[id] = handler
	n.mu.Unlock()
	return func() {
		n.mu.Lock()
		delete(n.handlers, id)
		n.mu.Unlock()
	}, nil
}

// Subscribers returns the number of registered handlers.
func (n *LocalNotifier) Subscribers() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.handlers)
}
