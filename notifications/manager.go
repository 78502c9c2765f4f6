package notifications

import (
	"context"
	"sync"

	"github.com/lightninglabs/beamswap/atomicswap"
	"github.com/lightninglabs/beamswap/swapparams"
	"github.com/lightningnetwork/lnd/queue"
)

// defaultQueueSize is the number of batches buffered per subscriber before
// the queue starts to grow its overflow list.
const defaultQueueSize = 16

// Manager keeps the last known view of every swap and forwards the changes
// to its subscribers. It implements atomicswap.ChangeNotifier.
type Manager struct {
	// views is the cached set in the order last reported. Views of swaps
	// that did not change keep their identity across updates.
	views  []*atomicswap.SwapView
	loaded bool

	subscribers []*subscriber
	sync.Mutex
}

// A compile time check to ensure that Manager implements the
// atomicswap.ChangeNotifier interface.
var _ atomicswap.ChangeNotifier = (*Manager)(nil)

// NewManager creates a new notification manager.
func NewManager() *Manager {
	return &Manager{}
}

type subscriber struct {
	queue *queue.ConcurrentQueue
}

// Subscribe returns a channel delivering change batches until the context is
// canceled, after which the channel is closed. If the set was loaded
// already, the first batch is a reset carrying the current set.
func (m *Manager) Subscribe(ctx context.Context) <-chan *Change {
	sub := &subscriber{
		queue: queue.NewConcurrentQueue(defaultQueueSize),
	}
	sub.queue.Start()

	m.Lock()
	if m.loaded {
		sub.queue.ChanIn() <- &Change{
			Type:  ChangeReset,
			Views: copyViews(m.views),
		}
	}
	m.subscribers = append(m.subscribers, sub)
	m.Unlock()

	notifChan := make(chan *Change)

	// Start a goroutine to forward the queued batches and to remove the
	// subscriber when the context is canceled.
	go func() {
		defer close(notifChan)
		defer sub.queue.Stop()

		for {
			select {
			case item := <-sub.queue.ChanOut():
				select {
				case notifChan <- item.(*Change):
				case <-ctx.Done():
					m.removeSubscriber(sub)
					return
				}

			case <-ctx.Done():
				m.removeSubscriber(sub)
				return
			}
		}
	}()

	return notifChan
}

// Reset replaces the cached set. It is only expected on a cold load.
func (m *Manager) Reset(views []*atomicswap.SwapView) {
	m.Lock()
	defer m.Unlock()

	m.views = copyViews(views)
	m.loaded = true

	log.Debugf("Reset with %d swaps", len(views))

	m.dispatch(&Change{
		Type:  ChangeReset,
		Views: copyViews(m.views),
	})
}

// Update reconciles the cached set with the given views and sends the
// minimal set of batches to the subscribers.
func (m *Manager) Update(views []*atomicswap.SwapView) {
	m.Lock()
	defer m.Unlock()

	changes := Diff(m.views, views)
	m.loaded = true
	if changes.Empty() {
		return
	}

	prevByID := make(
		map[swapparams.TxID]*atomicswap.SwapView, len(m.views),
	)
	for _, v := range m.views {
		prevByID[v.ID] = v
	}

	next := make([]*atomicswap.SwapView, 0, len(views))
	for _, v := range views {
		old, ok := prevByID[v.ID]
		if ok && *old == *v {
			next = append(next, old)
			continue
		}
		next = append(next, v)
	}
	m.views = next

	log.Debugf("Swap changes: %d added, %d removed, %d updated",
		len(changes.Added), len(changes.Removed), len(changes.Updated))

	for _, batch := range changes.Batches() {
		m.dispatch(batch)
	}
}

// Views returns the cached set.
func (m *Manager) Views() []*atomicswap.SwapView {
	m.Lock()
	defer m.Unlock()

	return copyViews(m.views)
}

// dispatch queues a batch for every subscriber. The caller must hold the
// lock.
func (m *Manager) dispatch(change *Change) {
	for _, sub := range m.subscribers {
		sub.queue.ChanIn() <- change
	}
}

// removeSubscriber removes a subscriber from the manager.
func (m *Manager) removeSubscriber(sub *subscriber) {
	m.Lock()
	defer m.Unlock()

	newSubs := make([]*subscriber, 0, len(m.subscribers))
	for _, s := range m.subscribers {
		if s != sub {
			newSubs = append(newSubs, s)
		}
	}
	m.subscribers = newSubs
}

func copyViews(views []*atomicswap.SwapView) []*atomicswap.SwapView {
	return append([]*atomicswap.SwapView(nil), views...)
}
