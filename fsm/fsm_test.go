package fsm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var (
	errAction = errors.New("action error")
)

// TestStateMachineContext is a test context for the state machine.
type TestStateMachineContext struct {
	*StateMachine
}

// GetStates returns the states for the test state machine.
// The StateMap looks like this:
// State1 -> Event1 -> State2 .
func (c *TestStateMachineContext) GetStates() States {
	return States{
		"State1": State{
			Action: func(context.Context, EventContext) EventType {
				return "Event1"
			},
			Transitions: Transitions{
				"Event1": "State2",
			},
		},
		"State2": State{
			Action:      NoOpAction,
			Transitions: Transitions{},
		},
	}
}

// errorAction returns an error.
func (c *TestStateMachineContext) errorAction(context.Context,
	EventContext) EventType {

	return c.StateMachine.HandleError(errAction)
}

func setupTestStateMachineContext() *TestStateMachineContext {
	ctx := &TestStateMachineContext{}
	ctx.StateMachine = NewStateMachineWithState(ctx.GetStates(), "State1")

	return ctx
}

// TestStateMachine_Success tests the state machine with a successful event.
func TestStateMachine_Success(t *testing.T) {
	ctx := setupTestStateMachineContext()

	// Send an event to the state machine.
	err := ctx.SendEvent(context.Background(), "Event1", nil)
	require.NoError(t, err)

	// Check that the state machine has transitioned to the next state.
	require.Equal(t, StateType("State2"), ctx.CurrentState())
}

// TestStateMachine_ConfigurationError tests the state machine with a
// configuration error.
func TestStateMachine_ConfigurationError(t *testing.T) {
	ctx := setupTestStateMachineContext()
	ctx.StateMachine.States = nil

	err := ctx.SendEvent(context.Background(), "Event1", nil)
	require.EqualError(
		t, err,
		NewErrConfigError("state machine config is nil").Error(),
	)
}

// TestStateMachine_Rejected tests that unknown events leave the state
// untouched.
func TestStateMachine_Rejected(t *testing.T) {
	ctx := setupTestStateMachineContext()

	err := ctx.SendEvent(context.Background(), "Unknown", nil)
	require.ErrorIs(t, err, ErrEventRejected)
	require.Equal(t, StateType("State1"), ctx.CurrentState())
}

// TestStateMachine_ActionError tests the state machine with an action error.
func TestStateMachine_ActionError(t *testing.T) {
	ctx := setupTestStateMachineContext()

	states := ctx.StateMachine.States

	// Add a Transition to State2 if the Action on Stat2 fails.
	// The new StateMap looks like this:
	// 	State1 -> Event1 -> State2
	//
	// 	State2 -> OnError -> ErrorState
	states["State2"] = State{
		Action: ctx.errorAction,
		Transitions: Transitions{
			OnError: "ErrorState",
		},
	}

	states["ErrorState"] = State{
		Action:      NoOpAction,
		Transitions: Transitions{},
	}

	observer := NewCachedObserver(10)
	ctx.RegisterObserver(observer)

	err := ctx.SendEvent(context.Background(), "Event1", nil)

	// Sending an event to the state machine should not return an error.
	require.NoError(t, err)

	// Ensure that the last error is set.
	require.Equal(t, errAction, ctx.StateMachine.LastActionError)

	// Expect the state machine to have transitioned to the ErrorState.
	require.Equal(t, StateType("ErrorState"), ctx.CurrentState())

	notifications := observer.GetCachedNotifications()
	require.Len(t, notifications, 2)
	require.Equal(t, OnError, notifications[1].Event)
	require.Equal(t, errAction, notifications[1].LastActionError)

	require.True(t, ctx.RemoveObserver(observer))
	require.False(t, ctx.RemoveObserver(observer))
}

// TestStateMachine_SelfTransition tests a state that re-evaluates itself
// until its action has nothing left to do.
func TestStateMachine_SelfTransition(t *testing.T) {
	const onCheck = EventType("OnCheck")

	var (
		runs    int
		entries []Notification
	)
	states := States{
		"Polling": State{
			Action: func(context.Context, EventContext) EventType {
				runs++
				if runs < 3 {
					return onCheck
				}

				return NoOp
			},
			Transitions: Transitions{
				onCheck: "Polling",
			},
		},
	}

	sm := NewStateMachineWithState(states, "Polling")
	sm.ActionEntryFunc = func(n Notification) {
		entries = append(entries, n)
	}

	require.NoError(t, sm.SendEvent(context.Background(), onCheck, nil))
	require.Equal(t, 3, runs)
	require.Len(t, entries, 3)
	require.Equal(t, StateType("Polling"), entries[0].PreviousState)

	// An action that never settles is cut off.
	sm.States["Polling"] = State{
		Action: func(context.Context, EventContext) EventType {
			return onCheck
		},
		Transitions: Transitions{onCheck: "Polling"},
	}
	err := sm.SendEvent(context.Background(), onCheck, nil)
	require.ErrorIs(t, err, ErrTooManySteps)
}

// TestCachedObserverWaitForState tests waiting for a state reached by an
// event sent concurrently.
func TestCachedObserverWaitForState(t *testing.T) {
	ctx := setupTestStateMachineContext()
	observer := NewCachedObserver(1)
	ctx.RegisterObserver(observer)

	err := observer.WaitForState(
		context.Background(), 10*time.Millisecond, "State2",
	)
	require.ErrorIs(t, err, ErrWaitForStateTimedOut)

	go func() {
		_ = ctx.SendEvent(context.Background(), "Event1", nil)
	}()

	err = observer.WaitForState(
		context.Background(), time.Second, "State2",
	)
	require.NoError(t, err)
	require.Equal(t, 1, observer.Entries("State2"))
	require.Zero(t, observer.Entries("State1"))

	// Only the last notification is kept.
	notifications := observer.GetCachedNotifications()
	require.Len(t, notifications, 1)
	require.Equal(t, StateType("State2"), notifications[0].NextState)

	// A canceled wait returns right away.
	canceled, cancel := context.WithCancel(context.Background())
	cancel()
	err = observer.WaitForState(canceled, time.Second, "State1")
	require.ErrorIs(t, err, context.Canceled)
}

// TestCachedObserverDropsOldest tests that the oldest notifications are
// dropped once the cache is full.
func TestCachedObserverDropsOldest(t *testing.T) {
	observer := NewCachedObserver(2)
	for _, state := range []StateType{"A", "B", "C"} {
		observer.Notify(Notification{NextState: state})
	}

	notifications := observer.GetCachedNotifications()
	require.Len(t, notifications, 2)
	require.Equal(t, StateType("B"), notifications[0].NextState)
	require.Equal(t, StateType("C"), notifications[1].NextState)
	require.Equal(t, 1, observer.Entries("A"))
}
