package events

import (
	"sync"
	"testing"
	"time"
)

func TestBus_Subscribe(t *testing.T) {
	bus := NewBus(10)
	defer bus.Close()

	ch := bus.Subscribe()

	bus.Publish(NewExecutionStartedEvent("exec-1", "build", 3))

	select {
	case received := <-ch:
		if received.EventType() != TypeExecutionStarted {
			t.Errorf("expected %s, got %s", TypeExecutionStarted, received.EventType())
		}
		if received.ExecutionID() != "exec-1" {
			t.Errorf("expected exec-1, got %s", received.ExecutionID())
		}
	case <-time.After(100 * time.Millisecond):
		t.Error("timeout waiting for event")
	}
}

func TestBus_SubscribeByType(t *testing.T) {
	bus := NewBus(10)
	defer bus.Close()

	stepCh := bus.Subscribe(TypeStepStarted, TypeStepCompleted)
	allCh := bus.Subscribe()

	bus.Publish(NewExecutionStartedEvent("exec-1", "build", 1))
	bus.Publish(NewStepStartedEvent("exec-1", "step-1", "design", 0, 1))

	// allCh should receive both
	select {
	case <-allCh:
	case <-time.After(100 * time.Millisecond):
		t.Error("allCh should receive execution event")
	}
	select {
	case <-allCh:
	case <-time.After(100 * time.Millisecond):
		t.Error("allCh should receive step event")
	}

	// stepCh should only receive the step event
	select {
	case received := <-stepCh:
		if received.EventType() != TypeStepStarted {
			t.Errorf("expected step_started, got %s", received.EventType())
		}
	case <-time.After(100 * time.Millisecond):
		t.Error("stepCh should receive step event")
	}
	select {
	case received := <-stepCh:
		t.Errorf("stepCh received unexpected event %s", received.EventType())
	default:
	}
}

func TestBus_PriorityNeverDrops(t *testing.T) {
	bus := NewBus(5) // small buffer
	defer bus.Close()

	priorityCh := bus.SubscribePriority()

	for i := 0; i < 100; i++ {
		bus.Publish(NewStepStartedEvent("exec-1", "step-1", "design", 0, 1))
	}

	bus.PublishPriority(NewExecutionFailedEvent("exec-1", "build", nil))

	select {
	case received := <-priorityCh:
		if received.EventType() != TypeExecutionFailed {
			t.Errorf("expected execution_failed, got %s", received.EventType())
		}
	case <-time.After(100 * time.Millisecond):
		t.Error("priority channel should have the event")
	}
}

func TestBus_RingBufferDropsOldest(t *testing.T) {
	bus := NewBus(2)
	defer bus.Close()

	ch := bus.Subscribe()

	bus.Publish(NewStepStartedEvent("exec-1", "step-1", "first", 0, 1))
	bus.Publish(NewStepStartedEvent("exec-1", "step-2", "second", 0, 1))
	bus.Publish(NewStepStartedEvent("exec-1", "step-3", "third", 0, 1))

	if bus.DroppedCount() == 0 {
		t.Error("expected dropped events when buffer overflows")
	}

	// Oldest was dropped; the remaining events are the newer ones.
	first := (<-ch).(StepStartedEvent)
	if first.StepName == "first" {
		t.Errorf("expected oldest event to be dropped, got %s", first.StepName)
	}
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := NewBus(10)
	defer bus.Close()

	ch := bus.Subscribe()
	bus.Unsubscribe(ch)

	// Channel should be closed.
	select {
	case _, ok := <-ch:
		if ok {
			t.Error("expected closed channel after unsubscribe")
		}
	case <-time.After(100 * time.Millisecond):
		t.Error("channel not closed after unsubscribe")
	}
}

func TestBus_ConcurrentPublish(t *testing.T) {
	bus := NewBus(1000)
	defer bus.Close()

	ch := bus.Subscribe()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				bus.Publish(NewStepStartedEvent("exec-1", "step-1", "design", 0, 1))
			}
		}()
	}
	wg.Wait()

	received := 0
	for {
		select {
		case <-ch:
			received++
		default:
			if received != 500 {
				t.Errorf("received %d events, want 500", received)
			}
			return
		}
	}
}

func TestBus_PublishAfterClose(t *testing.T) {
	bus := NewBus(10)
	ch := bus.Subscribe()
	bus.Close()

	// Must not panic.
	bus.Publish(NewExecutionStartedEvent("exec-1", "build", 1))
	bus.PublishPriority(NewExecutionFailedEvent("exec-1", "build", nil))

	if _, ok := <-ch; ok {
		t.Error("expected closed subscriber channel after Close")
	}
}
