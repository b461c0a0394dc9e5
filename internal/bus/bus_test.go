package bus

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"
)

func TestPubSubBusDeliversInPublishOrder(t *testing.T) {
	b := New(slog.New(slog.NewTextHandler(io.Discard, nil)))
	defer b.Close()

	sub := b.Subscribe("frames")
	for i := 1; i <= 5; i++ {
		b.Publish("frames", i)
	}

	for want := 1; want <= 5; want++ {
		select {
		case raw := <-sub:
			got, ok := raw.(int)
			if !ok || got != want {
				t.Fatalf("expected %d, got %v", want, raw)
			}
		case <-time.After(time.Second):
			t.Fatalf("timeout waiting for message %d", want)
		}
	}
}

func TestPubSubBusMultiTopicSubscription(t *testing.T) {
	b := New(nil)
	defer b.Close()

	sub := b.Subscribe("a", "b")
	b.Publish("b", "from-b")
	b.Publish("c", "from-c")
	b.Publish("a", "from-a")

	var got []string
	for len(got) < 2 {
		select {
		case raw := <-sub:
			got = append(got, raw.(string))
		case <-time.After(time.Second):
			t.Fatalf("timeout, got %v", got)
		}
	}
	if got[0] != "from-b" || got[1] != "from-a" {
		t.Fatalf("unexpected messages: %v", got)
	}
}

func TestUnsubscribeWithoutTopicsClosesSubscription(t *testing.T) {
	b := New(nil)
	defer b.Close()

	sub := b.Subscribe("a", "b")
	b.Unsubscribe(sub)

	select {
	case _, ok := <-sub:
		if ok {
			t.Fatalf("expected closed subscription")
		}
	case <-time.After(time.Second):
		t.Fatalf("subscription still open")
	}
}

func TestDispatchStopsOnCancelAndReleasesBus(t *testing.T) {
	b := New(nil)
	defer b.Close()

	sub := b.Subscribe("frames")
	ctx, cancel := context.WithCancel(context.Background())
	received := make(chan int, 16)
	done := make(chan struct{})
	go func() {
		defer close(done)
		Dispatch(ctx, b, sub, func(msg any) {
			received <- msg.(int)
		})
	}()

	b.Publish("frames", 1)
	select {
	case got := <-received:
		if got != 1 {
			t.Fatalf("expected 1, got %d", got)
		}
	case <-time.After(time.Second):
		t.Fatalf("timeout waiting for dispatched message")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("dispatch did not return after cancel")
	}

	// Publishing after the subscriber left must not block.
	published := make(chan struct{})
	go func() {
		for i := 0; i < 300; i++ {
			b.Publish("frames", i)
		}
		close(published)
	}()
	select {
	case <-published:
	case <-time.After(time.Second):
		t.Fatalf("publish blocked after dispatch returned")
	}
}

func TestDispatchReturnsWhenBusCloses(t *testing.T) {
	b := New(nil)
	sub := b.Subscribe("frames")

	done := make(chan struct{})
	go func() {
		defer close(done)
		Dispatch(context.Background(), b, sub, func(any) {})
	}()
	b.Close()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("dispatch did not return after bus close")
	}
}

type sharedSlice []int

func (s sharedSlice) CloneMessage() any {
	return append(sharedSlice(nil), s...)
}

func TestDispatchGivesEachHandlerItsOwnCopy(t *testing.T) {
	b := New(nil)
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mutated := make(chan struct{})
	seen := make(chan int, 1)
	go Dispatch(ctx, b, b.Subscribe("frames"), func(msg any) {
		msg.(sharedSlice)[0] = 99
		close(mutated)
	})
	go Dispatch(ctx, b, b.Subscribe("frames"), func(msg any) {
		<-mutated
		seen <- msg.(sharedSlice)[0]
	})

	orig := sharedSlice{1}
	b.Publish("frames", orig)

	select {
	case got := <-seen:
		if got != 1 {
			t.Fatalf("second handler saw %d, want 1", got)
		}
	case <-time.After(time.Second):
		t.Fatalf("timeout waiting for handlers")
	}
	if orig[0] != 1 {
		t.Fatalf("publisher slice changed to %v", orig)
	}
}
