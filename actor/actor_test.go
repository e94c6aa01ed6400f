package actor

import (
	"context"
	"errors"
	"testing"
	"time"
)

func testCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// -----------------------------------------------------------------------------
// Cell tests
// -----------------------------------------------------------------------------

func TestCell_FirstPollYieldsSeed(t *testing.T) {
	c := NewCell(42)

	sub, err := c.Subscribe()
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	v, err := sub.Next(testCtx(t))
	if err != nil {
		t.Fatalf("Next failed: %v", err)
	}
	if v != 42 {
		t.Errorf("first poll should yield the seeded value 42, got %d", v)
	}
}

func TestCell_FirstPollYieldsLatest(t *testing.T) {
	c := NewCell(1)
	c.Set(2)
	c.Set(3)

	sub, err := c.Subscribe()
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	v, err := sub.Next(testCtx(t))
	if err != nil {
		t.Fatalf("Next failed: %v", err)
	}
	if v != 3 {
		t.Errorf("first poll should yield the latest value 3, got %d", v)
	}
}

func TestCell_Coalesces(t *testing.T) {
	c := NewCell(0)
	sub, err := c.Subscribe()
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	if _, err := sub.Next(testCtx(t)); err != nil {
		t.Fatalf("Next failed: %v", err)
	}

	// N unobserved sets collapse to the most recent value.
	for i := 1; i <= 10; i++ {
		c.Set(i)
	}

	v, err := sub.Next(testCtx(t))
	if err != nil {
		t.Fatalf("Next failed: %v", err)
	}
	if v != 10 {
		t.Errorf("coalesced poll should yield 10, got %d", v)
	}

	// Nothing further is pending.
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := sub.Next(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected a blocked poll after coalescing, got %v", err)
	}
}

func TestCell_NextBlocksUntilSet(t *testing.T) {
	c := NewCell(0)
	sub, err := c.Subscribe()
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	if _, err := sub.Next(testCtx(t)); err != nil {
		t.Fatalf("Next failed: %v", err)
	}

	done := make(chan int, 1)
	go func() {
		v, err := sub.Next(testCtx(t))
		if err != nil {
			done <- -1
			return
		}
		done <- v
	}()

	time.Sleep(10 * time.Millisecond)
	c.Set(7)

	select {
	case v := <-done:
		if v != 7 {
			t.Errorf("expected 7, got %d", v)
		}
	case <-time.After(time.Second):
		t.Fatal("Next did not wake on Set")
	}
}

func TestCell_SubscriberLimit(t *testing.T) {
	c := NewCell(0)

	for i := 0; i < MaxSubscribers; i++ {
		if _, err := c.Subscribe(); err != nil {
			t.Fatalf("subscriber %d rejected: %v", i, err)
		}
	}

	if _, err := c.Subscribe(); !errors.Is(err, ErrSubscriberLimit) {
		t.Errorf("expected ErrSubscriberLimit, got %v", err)
	}
}

func TestCell_SubCloseFreesSlot(t *testing.T) {
	c := NewCell(0)

	subs := make([]*CellSub[int], MaxSubscribers)
	for i := range subs {
		s, err := c.Subscribe()
		if err != nil {
			t.Fatalf("Subscribe failed: %v", err)
		}
		subs[i] = s
	}

	subs[0].Close()
	if _, err := c.Subscribe(); err != nil {
		t.Errorf("closing a subscription should free its slot, got %v", err)
	}
}

func TestCell_Close(t *testing.T) {
	c := NewCell(1)
	sub, err := c.Subscribe()
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	c.Close()

	// The final value is still drained before the stream ends.
	v, err := sub.Next(testCtx(t))
	if err != nil {
		t.Fatalf("Next after close should drain the final value, got %v", err)
	}
	if v != 1 {
		t.Errorf("expected 1, got %d", v)
	}

	if _, err := sub.Next(testCtx(t)); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
}

// -----------------------------------------------------------------------------
// Topic tests
// -----------------------------------------------------------------------------

func TestTopic_DeliversInOrder(t *testing.T) {
	tp := NewTopic[int](8)
	sub, err := tp.Subscribe()
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	for i := 0; i < 5; i++ {
		tp.Publish(i)
	}

	for i := 0; i < 5; i++ {
		v, err := sub.Next(testCtx(t))
		if err != nil {
			t.Fatalf("Next failed: %v", err)
		}
		if v != i {
			t.Errorf("expected %d, got %d", i, v)
		}
	}
}

func TestTopic_EvictsOldest(t *testing.T) {
	tp := NewTopic[int](8)
	sub, err := tp.Subscribe()
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	// 12 publishes against a depth-8 queue: the oldest 4 are evicted and
	// the newest 8 arrive in emission order.
	for i := 0; i < 12; i++ {
		tp.Publish(i)
	}

	for want := 4; want < 12; want++ {
		v, err := sub.Next(testCtx(t))
		if err != nil {
			t.Fatalf("Next failed: %v", err)
		}
		if v != want {
			t.Errorf("expected %d, got %d", want, v)
		}
	}
}

func TestTopic_LagIsPerSubscriber(t *testing.T) {
	tp := NewTopic[int](2)

	lagging, err := tp.Subscribe()
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	prompt, err := tp.Subscribe()
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	tp.Publish(1)
	if v, _ := prompt.Next(testCtx(t)); v != 1 {
		t.Errorf("prompt subscriber expected 1, got %d", v)
	}
	tp.Publish(2)
	tp.Publish(3)

	// The prompt subscriber saw everything.
	if v, _ := prompt.Next(testCtx(t)); v != 2 {
		t.Errorf("prompt subscriber expected 2, got %d", v)
	}
	if v, _ := prompt.Next(testCtx(t)); v != 3 {
		t.Errorf("prompt subscriber expected 3, got %d", v)
	}

	// The lagging subscriber lost only its own oldest item.
	if v, _ := lagging.Next(testCtx(t)); v != 2 {
		t.Errorf("lagging subscriber expected 2, got %d", v)
	}
	if v, _ := lagging.Next(testCtx(t)); v != 3 {
		t.Errorf("lagging subscriber expected 3, got %d", v)
	}
}

func TestTopic_SubscriberLimit(t *testing.T) {
	tp := NewTopic[int](8)

	for i := 0; i < MaxSubscribers; i++ {
		if _, err := tp.Subscribe(); err != nil {
			t.Fatalf("subscriber %d rejected: %v", i, err)
		}
	}

	if _, err := tp.Subscribe(); !errors.Is(err, ErrSubscriberLimit) {
		t.Errorf("expected ErrSubscriberLimit, got %v", err)
	}
}

func TestTopic_CloseDrainsThenEnds(t *testing.T) {
	tp := NewTopic[int](8)
	sub, err := tp.Subscribe()
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	tp.Publish(9)
	tp.Close()

	v, err := sub.Next(testCtx(t))
	if err != nil || v != 9 {
		t.Fatalf("expected to drain 9, got %d, %v", v, err)
	}
	if _, err := sub.Next(testCtx(t)); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
}

// -----------------------------------------------------------------------------
// RunGuard tests
// -----------------------------------------------------------------------------

func TestRunGuard(t *testing.T) {
	var g RunGuard

	if err := g.Acquire(); err != nil {
		t.Fatalf("first Acquire failed: %v", err)
	}
	if err := g.Acquire(); !errors.Is(err, ErrControllerRunning) {
		t.Errorf("expected ErrControllerRunning, got %v", err)
	}

	g.Release()
	if err := g.Acquire(); err != nil {
		t.Errorf("Acquire after Release failed: %v", err)
	}
}
