package tasks

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestPollResourceProbesUntilAvailable(t *testing.T) {
	var probes, connects atomic.Int32
	available := atomic.Bool{}

	err := PollResource(context.Background(), PollConfig{
		Name:      "daq",
		Indicator: func(ctx context.Context) bool { return available.Load() },
		Probe: func(ctx context.Context) error {
			if probes.Add(1) >= 3 {
				available.Store(true)
			}
			return errors.New("still offline")
		},
		OnConnect: func(ctx context.Context) { connects.Add(1) },
		Interval:  time.Millisecond,
	})
	if err != nil {
		t.Fatalf("poll: %v", err)
	}
	if probes.Load() < 3 {
		t.Fatalf("probed %d times, want >= 3", probes.Load())
	}
	if connects.Load() != 1 {
		t.Fatalf("onConnect ran %d times, want 1", connects.Load())
	}
}

func TestPollResourceReturnsImmediatelyWhenAvailable(t *testing.T) {
	var probes atomic.Int32
	err := PollResource(context.Background(), PollConfig{
		Name:      "daq",
		Indicator: func(ctx context.Context) bool { return true },
		Probe: func(ctx context.Context) error {
			probes.Add(1)
			return nil
		},
		Interval: time.Millisecond,
	})
	if err != nil {
		t.Fatalf("poll: %v", err)
	}
	if probes.Load() != 0 {
		t.Fatal("probe called for an available resource")
	}
}

func TestPollResourceContinuousDetectsLoss(t *testing.T) {
	available := atomic.Bool{}
	available.Store(true)
	var disconnects atomic.Int32

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- PollResource(ctx, PollConfig{
			Name:         "daq",
			Indicator:    func(ctx context.Context) bool { return available.Load() },
			OnDisconnect: func(ctx context.Context) { disconnects.Add(1) },
			Interval:     time.Millisecond,
			Continuous:   true,
		})
	}()

	time.Sleep(10 * time.Millisecond)
	available.Store(false)
	deadline := time.Now().Add(time.Second)
	for disconnects.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if disconnects.Load() == 0 {
		t.Fatal("loss not detected")
	}

	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("got %v, want context.Canceled", err)
	}
}

func TestRepeatStopsWhenConditionFails(t *testing.T) {
	runs := 0
	err := Repeat(context.Background(), time.Millisecond,
		func(ctx context.Context) error {
			runs++
			return nil
		},
		func(ctx context.Context) bool { return runs < 3 })
	if err != nil {
		t.Fatalf("repeat: %v", err)
	}
	if runs != 3 {
		t.Fatalf("ran %d times, want 3", runs)
	}
}

func TestRepeatPropagatesError(t *testing.T) {
	boom := errors.New("balancer broke")
	err := Repeat(context.Background(), time.Millisecond,
		func(ctx context.Context) error { return boom }, nil)
	if !errors.Is(err, boom) {
		t.Fatalf("got %v, want wrapped error", err)
	}
}

func TestRepeatSpacesIterations(t *testing.T) {
	const period = 20 * time.Millisecond
	var stamps []time.Time
	err := Repeat(context.Background(), period,
		func(ctx context.Context) error {
			stamps = append(stamps, time.Now())
			return nil
		},
		func(ctx context.Context) bool { return len(stamps) < 3 })
	if err != nil {
		t.Fatalf("repeat: %v", err)
	}
	for i := 1; i < len(stamps); i++ {
		if gap := stamps[i].Sub(stamps[i-1]); gap < period {
			t.Fatalf("iterations %v apart, want >= %v", gap, period)
		}
	}
}

func TestRepeatObservesCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Repeat(ctx, time.Hour, func(ctx context.Context) error { return nil }, nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("got %v, want context.Canceled", err)
	}
}

func TestCoalescerReplacesStalePendingWork(t *testing.T) {
	c := NewCoalescer()

	var mu sync.Mutex
	var ran []int
	release := make(chan struct{})
	started := make(chan struct{})

	// The first item blocks the runner so later submissions pile up.
	c.Submit("scan", func(ctx context.Context) {
		close(started)
		<-release
		mu.Lock()
		ran = append(ran, 0)
		mu.Unlock()
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = c.Run(ctx)
	}()

	<-started
	for i := 1; i <= 3; i++ {
		i := i
		c.Submit("scan", func(ctx context.Context) {
			mu.Lock()
			ran = append(ran, i)
			mu.Unlock()
		})
	}
	close(release)

	deadline := time.Now().Add(time.Second)
	for {
		mu.Lock()
		n := len(ran)
		mu.Unlock()
		if n >= 2 || time.Now().After(deadline) {
			break
		}
		time.Sleep(time.Millisecond)
	}
	cancel()
	<-done

	mu.Lock()
	defer mu.Unlock()
	if len(ran) != 2 || ran[0] != 0 || ran[1] != 3 {
		t.Fatalf("ran %v, want [0 3]: only the newest pending item may survive", ran)
	}
}

func TestCoalescerKeepsDistinctTopics(t *testing.T) {
	c := NewCoalescer()
	var mu sync.Mutex
	seen := map[string]bool{}
	for _, topic := range []string{"status", "scan", "events"} {
		topic := topic
		c.Submit(topic, func(ctx context.Context) {
			mu.Lock()
			seen[topic] = true
			mu.Unlock()
		})
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = c.Run(ctx)
	}()

	deadline := time.Now().Add(time.Second)
	for {
		mu.Lock()
		n := len(seen)
		mu.Unlock()
		if n == 3 || time.Now().After(deadline) {
			break
		}
		time.Sleep(time.Millisecond)
	}
	cancel()
	<-done

	mu.Lock()
	defer mu.Unlock()
	if len(seen) != 3 {
		t.Fatalf("saw %v, want all three topics", seen)
	}
}
