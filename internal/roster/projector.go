// Package roster keeps the live, display-ordered member snapshot behind the projection board.
package roster

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/teamfaces/teamfaces/internal/models"
	"github.com/teamfaces/teamfaces/pkg/client"
)

// ErrSetupRequired is returned by Mount when no team exists yet.
var ErrSetupRequired = errors.New("team setup required")

// ErrRemount is returned when Mount is called twice. Create a new projector per mount.
var ErrRemount = errors.New("projector cannot be mounted twice")

// ErrUnmounted is returned by a Mount that was cancelled by Unmount.
var ErrUnmounted = errors.New("projector unmounted while mounting")

// ClockInterval is how often the displayed time refreshes.
const ClockInterval = time.Minute

// Feed is a live member feed. *client.Watch satisfies it.
type Feed interface {
	C() <-chan client.Roster
	Close()
}

// Source is what the projector reads from.
type Source interface {
	GetTeam(ctx context.Context) (*models.Team, error)
	WatchMembers(ctx context.Context) (Feed, error)
}

type clientSource struct{ c *client.Client }

// FromClient adapts an API client into a Source.
func FromClient(c *client.Client) Source { return clientSource{c: c} }

func (s clientSource) GetTeam(ctx context.Context) (*models.Team, error) { return s.c.GetTeam(ctx) }

func (s clientSource) WatchMembers(ctx context.Context) (Feed, error) { return s.c.WatchMembers(ctx) }

// View is what the board renders.
type View struct {
	Team    *models.Team
	Members []models.Member
	// Loading is true until the first snapshot arrives.
	Loading bool
	// Err is set once the feed fails. The feed is not resubscribed.
	Err error
	Now time.Time
}

// StatusColor maps a status to the indicator color name.
func StatusColor(s models.Status) string {
	switch s {
	case models.StatusAvailable:
		return "green"
	case models.StatusBusy:
		return "red"
	case models.StatusMeeting:
		return "yellow"
	case models.StatusBreak:
		return "blue"
	}
	return "gray"
}

// Projector mounts a live roster. Create one per board; Unmount releases the feed.
type Projector struct {
	src      Source
	now      func() time.Time
	interval time.Duration

	mu        sync.RWMutex
	view      View
	mounted   bool
	unmounted bool
	used      bool
	feed      Feed
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	updates   chan struct{}
}

// Option configures a Projector.
type Option func(*Projector)

// WithClock overrides the time source and the clock tick interval.
func WithClock(now func() time.Time, interval time.Duration) Option {
	return func(p *Projector) {
		p.now = now
		p.interval = interval
	}
}

// NewProjector creates an unmounted projector.
func NewProjector(src Source, opts ...Option) *Projector {
	p := &Projector{src: src, now: time.Now, interval: ClockInterval, updates: make(chan struct{}, 1)}
	for _, o := range opts {
		o(p)
	}
	p.view = View{Loading: true, Now: p.now()}
	return p
}

// Mount reads the team once and subscribes to the member feed. A missing team yields
// ErrSetupRequired and nothing is subscribed. An Unmount that arrives while Mount is
// still loading aborts it with ErrUnmounted.
func (p *Projector) Mount(ctx context.Context) error {
	p.mu.Lock()
	if p.used {
		p.mu.Unlock()
		return ErrRemount
	}
	p.used = true
	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.mu.Unlock()

	t, err := p.src.GetTeam(ctx)
	if err != nil {
		cancel()
		if p.isUnmounted() {
			return ErrUnmounted
		}
		if client.IsStatus(err, http.StatusNotFound) {
			return ErrSetupRequired
		}
		return fmt.Errorf("load team: %w", err)
	}

	feed, err := p.src.WatchMembers(ctx)
	if err != nil {
		cancel()
		if p.isUnmounted() {
			return ErrUnmounted
		}
		return fmt.Errorf("subscribe members: %w", err)
	}

	p.mu.Lock()
	if p.unmounted {
		p.mu.Unlock()
		cancel()
		feed.Close()
		return ErrUnmounted
	}
	p.view.Team = t
	p.feed = feed
	p.mounted = true
	p.wg.Add(2)
	p.mu.Unlock()
	p.signal()

	go p.consume(ctx, feed)
	go p.tick(ctx)
	return nil
}

func (p *Projector) isUnmounted() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.unmounted
}

// Unmount releases the feed. No view change is applied after it returns.
// Calling it while Mount is in flight cancels the mount.
func (p *Projector) Unmount() {
	p.mu.Lock()
	if p.unmounted {
		p.mu.Unlock()
		return
	}
	p.unmounted = true
	wasMounted := p.mounted
	p.mounted = false
	feed, cancel := p.feed, p.cancel
	p.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if !wasMounted {
		return
	}
	feed.Close()
	p.wg.Wait()
}

// View returns the current view.
func (p *Projector) View() View {
	p.mu.RLock()
	defer p.mu.RUnlock()
	v := p.view
	v.Members = append([]models.Member(nil), p.view.Members...)
	return v
}

// Updates signals view changes. Signals coalesce; read View after each.
func (p *Projector) Updates() <-chan struct{} { return p.updates }

func (p *Projector) signal() {
	select {
	case p.updates <- struct{}{}:
	default:
	}
}

// update applies fn unless the projector was unmounted meanwhile.
func (p *Projector) update(fn func(v *View)) bool {
	p.mu.Lock()
	if !p.mounted {
		p.mu.Unlock()
		return false
	}
	fn(&p.view)
	p.mu.Unlock()
	p.signal()
	return true
}

func (p *Projector) consume(ctx context.Context, feed Feed) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case r, ok := <-feed.C():
			if !ok {
				return
			}
			if r.Err != nil {
				p.update(func(v *View) {
					v.Err = r.Err
					v.Loading = false
				})
				return
			}
			if !p.update(func(v *View) {
				if r.Team != nil {
					v.Team = r.Team
				}
				v.Members = r.Members
				v.Loading = false
			}) {
				return
			}
		}
	}
}

func (p *Projector) tick(ctx context.Context) {
	defer p.wg.Done()
	t := time.NewTicker(p.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			now := p.now()
			if !p.update(func(v *View) { v.Now = now }) {
				return
			}
		}
	}
}
