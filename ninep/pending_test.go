package ninep

import (
	"context"
	"testing"
	"time"
)

func TestPendingReadReturnsAlreadyQueuedData(t *testing.T) {
	p := NewPending()
	p.Subscribe(1)
	p.Write([]byte("hello"))

	data, interrupted, err := p.ReadPending(context.Background(), 1)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if interrupted {
		t.Fatalf("expected interrupted=false")
	}
	if string(data) != "hello" {
		t.Fatalf("expected %q, got %q", "hello", data)
	}
}

func TestPendingWriteFansOutToEverySubscriber(t *testing.T) {
	p := NewPending()
	p.Subscribe(1)
	p.Subscribe(2)
	p.Write([]byte("event"))

	for _, fid := range []Fid{1, 2} {
		data, interrupted, err := p.ReadPending(context.Background(), fid)
		if err != nil {
			t.Fatalf("fid %d: unexpected error: %s", fid, err)
		}
		if interrupted {
			t.Fatalf("fid %d: expected interrupted=false", fid)
		}
		if string(data) != "event" {
			t.Fatalf("fid %d: expected %q, got %q", fid, "event", data)
		}
	}
}

func TestPendingReadParksUntilWrite(t *testing.T) {
	p := NewPending()
	p.Subscribe(1)

	type result struct {
		data        []byte
		interrupted bool
		err         error
	}
	done := make(chan result, 1)
	go func() {
		data, interrupted, err := p.ReadPending(context.Background(), 1)
		done <- result{data, interrupted, err}
	}()

	select {
	case r := <-done:
		t.Fatalf("ReadPending returned before any data was written: %+v", r)
	case <-time.After(20 * time.Millisecond):
	}

	p.Write([]byte("late"))

	select {
	case r := <-done:
		if r.err != nil {
			t.Fatalf("unexpected error: %s", r.err)
		}
		if r.interrupted {
			t.Fatalf("expected interrupted=false")
		}
		if string(r.data) != "late" {
			t.Fatalf("expected %q, got %q", "late", r.data)
		}
	case <-time.After(time.Second):
		t.Fatalf("ReadPending never returned after Write")
	}
}

func TestPendingClunkInterruptsParkedRead(t *testing.T) {
	p := NewPending()
	p.Subscribe(1)

	type result struct {
		data        []byte
		interrupted bool
		err         error
	}
	done := make(chan result, 1)
	go func() {
		data, interrupted, err := p.ReadPending(context.Background(), 1)
		done <- result{data, interrupted, err}
	}()

	time.Sleep(20 * time.Millisecond)
	p.ClunkPending(1)

	select {
	case r := <-done:
		if r.err != nil {
			t.Fatalf("unexpected error: %s", r.err)
		}
		if !r.interrupted {
			t.Fatalf("expected interrupted=true after ClunkPending")
		}
	case <-time.After(time.Second):
		t.Fatalf("ReadPending never returned after ClunkPending")
	}
}

func TestPendingReadCancelledByContext(t *testing.T) {
	p := NewPending()
	p.Subscribe(1)

	ctx, cancel := context.WithCancel(context.Background())

	type result struct {
		data        []byte
		interrupted bool
		err         error
	}
	done := make(chan result, 1)
	go func() {
		data, interrupted, err := p.ReadPending(ctx, 1)
		done <- result{data, interrupted, err}
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case r := <-done:
		if r.err == nil {
			t.Fatalf("expected a non-nil error once ctx was cancelled while parked")
		}
	case <-time.After(time.Second):
		t.Fatalf("ReadPending never returned after context cancellation")
	}

	// A Write arriving after the cancelled read must not be lost: the next
	// reader on the same fid should still see it queued.
	p.Write([]byte("after-cancel"))
	data, interrupted, err := p.ReadPending(context.Background(), 1)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if interrupted {
		t.Fatalf("expected interrupted=false")
	}
	if string(data) != "after-cancel" {
		t.Fatalf("expected %q, got %q", "after-cancel", data)
	}
}
