package notifications

import (
	"context"
	"testing"
	"time"

	"github.com/lightninglabs/beamswap/atomicswap"
	"github.com/lightninglabs/beamswap/fsm"
	"github.com/lightninglabs/beamswap/swapparams"
	"github.com/lightninglabs/beamswap/test"
	"github.com/stretchr/testify/require"
)

func testView(id byte, state fsm.StateType) *atomicswap.SwapView {
	return &atomicswap.SwapView{
		ID:    swapparams.TxID{id},
		State: state,
	}
}

func TestDiff(t *testing.T) {
	a := testView(1, atomicswap.Initial)
	b := testView(2, atomicswap.Initial)
	c := testView(3, atomicswap.Initial)

	// Same content in a new value is not an update.
	prev := []*atomicswap.SwapView{a, b}
	changes := Diff(prev, []*atomicswap.SwapView{
		testView(1, atomicswap.Initial),
		testView(2, atomicswap.Initial),
	})
	require.True(t, changes.Empty())
	require.Empty(t, changes.Batches())

	bUpdated := testView(2, atomicswap.SendingBeamLockTx)
	changes = Diff(prev, []*atomicswap.SwapView{bUpdated, c})
	require.Equal(t, []*atomicswap.SwapView{c}, changes.Added)
	require.Equal(t, []*atomicswap.SwapView{a}, changes.Removed)
	require.Equal(t, []*atomicswap.SwapView{bUpdated}, changes.Updated)

	batches := changes.Batches()
	require.Len(t, batches, 3)
	require.Equal(t, ChangeRemoved, batches[0].Type)
	require.Equal(t, ChangeAdded, batches[1].Type)
	require.Equal(t, ChangeUpdated, batches[2].Type)

	// Empty batches are omitted.
	changes = Diff(nil, []*atomicswap.SwapView{a})
	batches = changes.Batches()
	require.Len(t, batches, 1)
	require.Equal(t, ChangeAdded, batches[0].Type)
}

func receive(t *testing.T, c <-chan *Change) *Change {
	t.Helper()

	select {
	case change, ok := <-c:
		require.True(t, ok)
		return change

	case <-time.After(test.Timeout):
		t.Fatalf("no change received")
		return nil
	}
}

func TestManagerNotifications(t *testing.T) {
	defer test.Guard(t)()

	mgr := NewManager()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Nothing is loaded yet, so no initial reset is sent.
	subChan := mgr.Subscribe(ctx)

	a := testView(1, atomicswap.Initial)
	b := testView(2, atomicswap.Initial)
	mgr.Reset([]*atomicswap.SwapView{a, b})

	change := receive(t, subChan)
	require.Equal(t, ChangeReset, change.Type)
	require.Equal(t, []*atomicswap.SwapView{a, b}, change.Views)

	// An unchanged set sends nothing and keeps the cached views.
	mgr.Update([]*atomicswap.SwapView{
		testView(1, atomicswap.Initial),
		testView(2, atomicswap.Initial),
	})
	views := mgr.Views()
	require.Same(t, a, views[0])
	require.Same(t, b, views[1])

	bUpdated := testView(2, atomicswap.HandlingContractTx)
	mgr.Update([]*atomicswap.SwapView{
		testView(1, atomicswap.Initial), bUpdated,
	})

	change = receive(t, subChan)
	require.Equal(t, ChangeUpdated, change.Type)
	require.Equal(t, []*atomicswap.SwapView{bUpdated}, change.Views)

	views = mgr.Views()
	require.Same(t, a, views[0])
	require.Same(t, bUpdated, views[1])

	mgr.Update([]*atomicswap.SwapView{bUpdated})
	change = receive(t, subChan)
	require.Equal(t, ChangeRemoved, change.Type)
	require.Equal(t, []*atomicswap.SwapView{a}, change.Views)

	// A late subscriber starts from the current set.
	lateCtx, lateCancel := context.WithCancel(ctx)
	lateChan := mgr.Subscribe(lateCtx)
	change = receive(t, lateChan)
	require.Equal(t, ChangeReset, change.Type)
	require.Equal(t, []*atomicswap.SwapView{bUpdated}, change.Views)

	// Canceling the subscription closes the channel and removes the
	// subscriber.
	lateCancel()
	require.Eventually(t, func() bool {
		select {
		case _, ok := <-lateChan:
			return !ok
		default:
			return false
		}
	}, test.Timeout, 10*time.Millisecond)

	require.Eventually(t, func() bool {
		mgr.Lock()
		defer mgr.Unlock()
		return len(mgr.subscribers) == 1
	}, test.Timeout, 10*time.Millisecond)

	c := testView(3, atomicswap.Initial)
	mgr.Update([]*atomicswap.SwapView{bUpdated, c})
	change = receive(t, subChan)
	require.Equal(t, ChangeAdded, change.Type)
	require.Equal(t, []*atomicswap.SwapView{c}, change.Views)

	cancel()
	for range subChan {
	}
}

func TestManagerSlowSubscriber(t *testing.T) {
	defer test.Guard(t)()

	mgr := NewManager()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	subChan := mgr.Subscribe(ctx)
	mgr.Reset(nil)

	// Updates never block on a subscriber that is not reading.
	var views []*atomicswap.SwapView
	for i := 0; i < 3*defaultQueueSize; i++ {
		views = append(views, testView(byte(i), atomicswap.Initial))
		mgr.Update(views)
	}

	change := receive(t, subChan)
	require.Equal(t, ChangeReset, change.Type)
	for i := 0; i < 3*defaultQueueSize; i++ {
		change = receive(t, subChan)
		require.Equal(t, ChangeAdded, change.Type)
		require.Len(t, change.Views, 1)
		require.Equal(t, swapparams.TxID{byte(i)}, change.Views[0].ID)
	}

	cancel()
	for range subChan {
	}
}
