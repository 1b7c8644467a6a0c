package team

import (
	"context"
	"fmt"
	"sync"

	"github.com/teamfaces/teamfaces/internal/models"
)

// Snapshot is one delivery of a member subscription: the full member list, or a terminal error.
type Snapshot struct {
	Members []models.Member
	Err     error
}

// Subscription delivers a full member snapshot on start and after every change.
// Bursts of changes are coalesced into one snapshot. After an error snapshot the channel closes.
type Subscription struct {
	ch     chan Snapshot
	signal chan struct{}
	cancel context.CancelFunc
	stop   func()
	done   chan struct{}
	once   sync.Once
}

func newSubscription(ctx context.Context, notifier Notifier, list func(context.Context) ([]models.Member, error)) (*Subscription, error) {
	ctx, cancel := context.WithCancel(ctx)
	s := &Subscription{
		ch:     make(chan Snapshot),
		signal: make(chan struct{}, 1),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	// Register before the first read so no change between read and subscribe is lost.
	stop, err := notifier.SubscribeMembersChanged(ctx, s.notify)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("%w: %v", ErrSubscription, err)
	}
	s.stop = stop
	go s.run(ctx, list)
	return s, nil
}

func (s *Subscription) notify() {
	select {
	case s.signal <- struct{}{}:
	default:
	}
}

func (s *Subscription) run(ctx context.Context, list func(context.Context) ([]models.Member, error)) {
	defer close(s.done)
	defer close(s.ch)
	for {
		members, err := list(ctx)
		if ctx.Err() != nil {
			return
		}
		snap := Snapshot{Members: members}
		if err != nil {
			snap = Snapshot{Err: fmt.Errorf("%w: %v", ErrSubscription, err)}
		}
		select {
		case s.ch <- snap:
		case <-ctx.Done():
			return
		}
		if err != nil {
			return
		}
		select {
		case <-s.signal:
		case <-ctx.Done():
			return
		}
	}
}

// C returns the snapshot channel. It is closed after Close or a terminal error.
func (s *Subscription) C() <-chan Snapshot {
	return s.ch
}

// Close stops the subscription and waits for the producer to exit. Safe to call more than once.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.stop()
		s.cancel()
		<-s.done
	})
}
