package fsm

import (
	"context"
	"sync"
	"time"
)

// CachedObserver keeps the latest notifications of the state machines it
// observes. Callers can wait for an observed machine to enter a state.
type CachedObserver struct {
	maxLen int

	mu            sync.Mutex
	notifications []Notification
	entries       map[StateType]int

	// changed is closed and replaced on every notification.
	changed chan struct{}
}

// NewCachedObserver creates an observer keeping at most maxLen
// notifications. The oldest notification is dropped first.
func NewCachedObserver(maxLen int) *CachedObserver {
	return &CachedObserver{
		maxLen:        maxLen,
		notifications: make([]Notification, 0, maxLen),
		entries:       make(map[StateType]int),
		changed:       make(chan struct{}),
	}
}

// Notify implements the Observer interface.
func (c *CachedObserver) Notify(n Notification) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.maxLen > 0 && len(c.notifications) == c.maxLen {
		copy(c.notifications, c.notifications[1:])
		c.notifications = c.notifications[:c.maxLen-1]
	}
	c.notifications = append(c.notifications, n)

	if n.PreviousState != n.NextState {
		c.entries[n.NextState]++
	}

	close(c.changed)
	c.changed = make(chan struct{})
}

// GetCachedNotifications returns a copy of the cached notifications, oldest
// first.
func (c *CachedObserver) GetCachedNotifications() []Notification {
	c.mu.Lock()
	defer c.mu.Unlock()

	notifications := make([]Notification, len(c.notifications))
	copy(notifications, c.notifications)

	return notifications
}

// Entries returns how often an observed machine moved into the state.
func (c *CachedObserver) Entries(state StateType) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.entries[state]
}

// current returns the state of the last notification and the channel closed
// by the next one.
func (c *CachedObserver) current() (StateType, chan struct{}) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.notifications) == 0 {
		return Default, c.changed
	}

	return c.notifications[len(c.notifications)-1].NextState, c.changed
}

// WaitForState waits until the last notification moves into the given state.
// An ErrWaitingForStateTimeout is returned if that doesn't happen within the
// timeout.
func (c *CachedObserver) WaitForState(ctx context.Context,
	timeout time.Duration, state StateType) error {

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		current, changed := c.current()
		if current == state {
			return nil
		}

		select {
		case <-changed:

		case <-timer.C:
			return NewErrWaitingForStateTimeout(state)

		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
