package fanout

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

type recorder struct {
	mu   sync.Mutex
	got  []string
	fail bool
}

func (r *recorder) Send(p []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail {
		return errors.New("peer gone")
	}
	r.got = append(r.got, string(p))
	return nil
}

func (r *recorder) messages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.got...)
}

func TestBroadcastExcludesSender(t *testing.T) {
	h := NewHub(nil)
	a, b, c := &recorder{}, &recorder{}, &recorder{}
	h.Add(1, a)
	h.Add(1, b)
	h.Add(2, c)

	if n := h.Broadcast(1, a, []byte("move")); n != 1 {
		t.Fatalf("delivered = %d, want 1", n)
	}
	if n := h.Broadcast(1, nil, []byte("board")); n != 2 {
		t.Fatalf("delivered = %d, want 2", n)
	}
	if diff := cmp.Diff([]string{"board"}, a.messages()); diff != "" {
		t.Fatalf("a (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"move", "board"}, b.messages()); diff != "" {
		t.Fatalf("b (-want +got):\n%s", diff)
	}
	if len(c.messages()) != 0 {
		t.Fatalf("other game received %v", c.messages())
	}
}

func TestBroadcastIsolatesFailures(t *testing.T) {
	h := NewHub(nil)
	bad, good := &recorder{fail: true}, &recorder{}
	h.Add(7, bad)
	h.Add(7, good)
	if n := h.Broadcast(7, nil, []byte("x")); n != 1 {
		t.Fatalf("delivered = %d, want 1", n)
	}
	if len(good.messages()) != 1 {
		t.Fatalf("healthy handle missed the event")
	}
	// failed handles stay until the transport drops them
	if !h.Contains(7, bad) {
		t.Fatalf("broadcast must not remove handles")
	}
	h.Drop(bad)
	if h.Contains(7, bad) || h.Len(7) != 1 {
		t.Fatalf("Drop did not detach the handle")
	}
}

func TestRemoveAndUnknownGame(t *testing.T) {
	h := NewHub(nil)
	a := &recorder{}
	h.Remove(3, a)
	if n := h.Broadcast(3, nil, []byte("x")); n != 0 {
		t.Fatalf("unknown game delivered %d", n)
	}
	h.Add(3, a)
	h.Remove(3, a)
	if h.Len(3) != 0 {
		t.Fatalf("Len = %d after Remove", h.Len(3))
	}
}

func TestConcurrentAddRemoveBroadcast(t *testing.T) {
	h := NewHub(nil)
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(game int) {
			defer wg.Done()
			r := &recorder{}
			for j := 0; j < 100; j++ {
				h.Add(game%4, r)
				h.Broadcast(game%4, r, []byte("x"))
				h.Remove(game%4, r)
			}
		}(i)
	}
	wg.Wait()
	for g := 0; g < 4; g++ {
		if h.Len(g) != 0 {
			t.Fatalf("game %d still has %d handles", g, h.Len(g))
		}
	}
}

func TestOutboxPreservesOrder(t *testing.T) {
	var (
		mu  sync.Mutex
		got []string
	)
	o := NewOutbox(8, func(_ context.Context, p []byte) error {
		mu.Lock()
		got = append(got, string(p))
		mu.Unlock()
		return nil
	})
	for _, s := range []string{"a", "b", "c"} {
		if err := o.Send([]byte(s)); err != nil {
			t.Fatalf("Send(%s): %v", s, err)
		}
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- o.Run(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for {
		mu.Lock()
		n := len(got)
		mu.Unlock()
		if n == 3 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("writer delivered %d of 3", n)
		}
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	<-done
	if diff := cmp.Diff([]string{"a", "b", "c"}, got); diff != "" {
		t.Fatalf("order (-want +got):\n%s", diff)
	}
}

func TestOutboxFullAndClosed(t *testing.T) {
	o := NewOutbox(1, func(context.Context, []byte) error { return nil })
	if err := o.Send([]byte("1")); err != nil {
		t.Fatalf("first Send: %v", err)
	}
	if err := o.Send([]byte("2")); !errors.Is(err, ErrFull) {
		t.Fatalf("Send on full queue err = %v, want ErrFull", err)
	}
	o.Close()
	o.Close()
	if err := o.Send([]byte("3")); !errors.Is(err, ErrClosed) {
		t.Fatalf("Send after Close err = %v, want ErrClosed", err)
	}
}

func TestOutboxStopsOnWriteError(t *testing.T) {
	boom := errors.New("write failed")
	o := NewOutbox(4, func(context.Context, []byte) error { return boom })
	_ = o.Send([]byte("x"))
	if err := o.Run(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("Run err = %v, want write error", err)
	}
	if err := o.Send([]byte("y")); !errors.Is(err, ErrClosed) {
		t.Fatalf("Send after failed write err = %v, want ErrClosed", err)
	}
}
