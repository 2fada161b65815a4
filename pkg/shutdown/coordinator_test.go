package shutdown

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShutdownReverseOrder(t *testing.T) {
	c := New(nil)

	var mu sync.Mutex
	var order []string
	for _, name := range []string{"store", "monitor", "health"} {
		name := name
		c.Register(name, func(context.Context) error {
			mu.Lock()
			defer mu.Unlock()
			order = append(order, name)
			return nil
		})
	}

	c.Shutdown("test")
	assert.Equal(t, []string{"health", "monitor", "store"}, order)
	assert.Equal(t, "test", c.Reason())

	select {
	case <-c.Done():
	default:
		t.Fatal("Done not closed after Shutdown")
	}
}

func TestShutdownRunsOnce(t *testing.T) {
	c := New(nil)

	var calls atomic.Int32
	c.Register("store", func(context.Context) error {
		calls.Add(1)
		time.Sleep(10 * time.Millisecond)
		return nil
	})

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Shutdown("concurrent")
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	c.Shutdown("again")
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, "concurrent", c.Reason())
}

func TestShutdownHookFailuresDoNotStopOthers(t *testing.T) {
	c := New(nil)

	var ran []string
	c.Register("first", func(context.Context) error {
		ran = append(ran, "first")
		return nil
	})
	c.Register("panics", func(context.Context) error {
		panic("boom")
	})
	c.Register("fails", func(context.Context) error {
		ran = append(ran, "fails")
		return errors.New("nope")
	})

	c.Shutdown("test")
	assert.Equal(t, []string{"fails", "first"}, ran)
}

func TestShutdownTimeout(t *testing.T) {
	c := New(nil, WithTimeout(20*time.Millisecond))

	release := make(chan struct{})
	defer close(release)
	c.Register("stuck", func(context.Context) error {
		<-release
		return nil
	})

	start := time.Now()
	c.Shutdown("test")
	assert.Less(t, time.Since(start), time.Second)
}

func TestRegisterAfterShutdownIgnored(t *testing.T) {
	c := New(nil)
	c.Shutdown("test")

	called := false
	ok := c.Register("late", func(context.Context) error {
		called = true
		return nil
	})
	c.Shutdown("test")
	assert.False(t, ok)
	assert.False(t, called)
	assert.False(t, c.OnStart(func(string) {}))
}

func TestRegisterRejectedWhileHooksRun(t *testing.T) {
	c := New(nil)

	running := make(chan struct{})
	release := make(chan struct{})
	c.Register("slow", func(context.Context) error {
		close(running)
		<-release
		return nil
	})

	go c.Shutdown("signal")
	<-running

	lateRan := false
	ok := c.Register("late", func(context.Context) error {
		lateRan = true
		return nil
	})
	assert.False(t, ok, "hooks added after the snapshot would never run")

	close(release)
	<-c.Done()
	assert.False(t, lateRan)
}

func TestListenOnSignal(t *testing.T) {
	c := New(nil, WithSignals(syscall.SIGUSR1))

	closed := make(chan struct{})
	c.Register("store", func(context.Context) error {
		close(closed)
		return nil
	})

	// Keep the default action from killing the test binary before Listen subscribes.
	guard := make(chan os.Signal, 1)
	signal.Notify(guard, syscall.SIGUSR1)
	defer signal.Stop(guard)

	listening := make(chan struct{})
	go func() {
		defer close(listening)
		c.Listen(context.Background())
	}()

	require.Eventually(t, func() bool {
		_ = syscall.Kill(syscall.Getpid(), syscall.SIGUSR1)
		select {
		case <-closed:
			return true
		default:
			return false
		}
	}, 2*time.Second, 20*time.Millisecond)

	<-listening
	assert.Contains(t, c.Reason(), "signal")
}

func TestListenReturnsOnContextCancel(t *testing.T) {
	c := New(nil, WithSignals(syscall.SIGUSR2))
	ctx, cancel := context.WithCancel(context.Background())

	returned := make(chan struct{})
	go func() {
		defer close(returned)
		c.Listen(ctx)
	}()
	cancel()

	select {
	case <-returned:
	case <-time.After(time.Second):
		t.Fatal("Listen did not return after cancel")
	}
	assert.Empty(t, c.Reason())
}

func TestOnStartRunsBeforeHooks(t *testing.T) {
	c := New(nil)

	var events []string
	c.Register("store", func(context.Context) error {
		events = append(events, "hook")
		return nil
	})
	c.OnStart(func(reason string) {
		events = append(events, "start:"+reason)
	})

	c.Shutdown("exit")
	assert.Equal(t, []string{"start:exit", "hook"}, events)
}
