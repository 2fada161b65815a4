package bot

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bft-labs/taverna/pkg/extension"
	"github.com/bft-labs/taverna/pkg/lifecycle"
	"github.com/bft-labs/taverna/pkg/shutdown"
)

type fakePlatform struct {
	mu        sync.Mutex
	opens     int
	closes    int
	presences []Activity
	syncs     [][]uint64
	openErr   error
}

func (p *fakePlatform) Open(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.opens++
	return p.openErr
}

func (p *fakePlatform) Close(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closes++
	return nil
}

func (p *fakePlatform) ChangePresence(_ context.Context, a Activity) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.presences = append(p.presences, a)
	return nil
}

func (p *fakePlatform) SyncCommands(_ context.Context, ids []uint64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.syncs = append(p.syncs, ids)
	return nil
}

func (p *fakePlatform) GuildIDs() []uint64 { return []uint64{10, 20} }
func (p *fakePlatform) MemberCount() int   { return 42 }

func (p *fakePlatform) counts() (opens, presences, syncs int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.opens, len(p.presences), len(p.syncs)
}

type fakeStore struct {
	connects   atomic.Int32
	closes     atomic.Int32
	connectErr error
}

func (s *fakeStore) Connect(context.Context) error {
	s.connects.Add(1)
	return s.connectErr
}

func (s *fakeStore) Close(context.Context) error {
	s.closes.Add(1)
	return nil
}

type fakeMonitor struct {
	started atomic.Int32
	stopped atomic.Int32
}

func (m *fakeMonitor) Start(context.Context) { m.started.Add(1) }
func (m *fakeMonitor) Stop()                 { m.stopped.Add(1) }

type stubExtension struct {
	name    string
	loadErr error
}

func (e stubExtension) Name() string                                { return e.name }
func (e stubExtension) Load(context.Context, extension.Host) error { return e.loadErr }
func (e stubExtension) Unload(context.Context) error               { return nil }

type harness struct {
	orch      *Orchestrator
	platform  *fakePlatform
	store     *fakeStore
	monitor   *fakeMonitor
	tracker   *extension.Tracker
	lifecycle *lifecycle.DefaultManager
	shutdown  *shutdown.Coordinator
}

func newHarness(t *testing.T, cfg Config, exts ...stubExtension) *harness {
	t.Helper()

	ids := make([]string, 0, len(exts))
	impls := make([]extension.Extension, 0, len(exts))
	for _, e := range exts {
		ids = append(ids, e.name)
		impls = append(impls, e)
	}
	registry, err := extension.NewRegistry(impls...)
	require.NoError(t, err)

	tracker := extension.NewTracker(nil)
	loader := extension.NewLoader(extension.NewCatalog(ids...), registry, tracker, nil, nil)

	h := &harness{
		platform:  &fakePlatform{},
		store:     &fakeStore{},
		monitor:   &fakeMonitor{},
		tracker:   tracker,
		lifecycle: lifecycle.NewManager(nil, nil),
		shutdown:  shutdown.New(nil),
	}
	if cfg.ReadinessInterval == 0 {
		cfg.ReadinessInterval = 5 * time.Millisecond
	}
	if cfg.PresenceDelay == 0 {
		cfg.PresenceDelay = 10 * time.Millisecond
	}
	h.orch = New(cfg, h.platform, h.store, loader, tracker,
		WithMonitor(h.monitor),
		WithShutdown(h.shutdown),
		WithLifecycle(h.lifecycle))
	return h
}

func TestBootMissingCredential(t *testing.T) {
	h := newHarness(t, Config{Version: "1.0"})

	err := h.orch.Boot(context.Background())
	assert.ErrorIs(t, err, ErrMissingCredential)
	assert.Equal(t, lifecycle.StateFatalInit, h.orch.State())
	assert.Equal(t, int32(0), h.store.connects.Load())
}

func TestBootStoreFailureIsFatal(t *testing.T) {
	h := newHarness(t, Config{Credential: "token"}, stubExtension{name: "economy"})
	cause := errors.New("connection refused")
	h.store.connectErr = cause

	err := h.orch.Boot(context.Background())
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, lifecycle.StateFatalInit, h.orch.State())

	opens, _, _ := h.platform.counts()
	assert.Equal(t, 0, opens, "nothing else is attempted")
	assert.Equal(t, map[string]bool{"economy": false}, h.tracker.Snapshot())
}

func TestBootEmptyCatalogReachesServing(t *testing.T) {
	h := newHarness(t, Config{Credential: "token", Version: "2.3.1"})

	require.NoError(t, h.orch.Boot(context.Background()))
	assert.Equal(t, lifecycle.StateServing, h.orch.State())
	assert.True(t, h.orch.Ready())
	assert.Equal(t, int32(1), h.monitor.started.Load())

	require.Len(t, h.platform.presences, 1)
	assert.Equal(t, Activity{Type: ActivityWatching, Name: "42 users | v2.3.1"}, h.platform.presences[0])
	assert.Equal(t, [][]uint64{{10, 20}}, h.platform.syncs)
}

func TestBootAllExtensionsReady(t *testing.T) {
	h := newHarness(t, Config{Credential: "token", Version: "1.0"},
		stubExtension{name: "economy"}, stubExtension{name: "moderation"})

	require.NoError(t, h.orch.Boot(context.Background()))
	assert.Equal(t, lifecycle.StateServing, h.orch.State())
	assert.True(t, h.tracker.AllReady())
}

func TestBootFailedExtensionBlocksReadiness(t *testing.T) {
	h := newHarness(t, Config{Credential: "token"},
		stubExtension{name: "economy"},
		stubExtension{name: "moderation", loadErr: errors.New("broken")})

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- h.orch.Boot(ctx) }()

	require.Eventually(t, func() bool {
		return h.orch.State() == lifecycle.StateAwaitingReadiness
	}, time.Second, time.Millisecond)

	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, lifecycle.StateAwaitingReadiness, h.orch.State())
	assert.Equal(t, map[string]bool{"economy": true, "moderation": false}, h.tracker.Snapshot())
	_, presences, _ := h.platform.counts()
	assert.Equal(t, 0, presences)
	assert.Equal(t, int32(0), h.monitor.started.Load())

	cancel()
	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Boot did not return after cancel")
	}
}

func TestBootReadinessTimeoutDegrades(t *testing.T) {
	h := newHarness(t, Config{Credential: "token", ReadinessTimeout: 20 * time.Millisecond},
		stubExtension{name: "economy"},
		stubExtension{name: "moderation", loadErr: errors.New("broken")})

	require.NoError(t, h.orch.Boot(context.Background()))
	assert.Equal(t, lifecycle.StateServing, h.orch.State())
	assert.False(t, h.orch.Ready())
}

func TestBootTwice(t *testing.T) {
	h := newHarness(t, Config{Credential: "token"})
	require.NoError(t, h.orch.Boot(context.Background()))
	assert.ErrorIs(t, h.orch.Boot(context.Background()), ErrAlreadyBooted)
}

func TestHandleConnected(t *testing.T) {
	h := newHarness(t, Config{Credential: "token"}, stubExtension{name: "economy"})

	// Before boot: nothing happens.
	require.NoError(t, h.orch.HandleConnected(context.Background()))
	_, presences, syncs := h.platform.counts()
	assert.Equal(t, 0, presences)
	assert.Equal(t, 0, syncs)

	require.NoError(t, h.orch.Boot(context.Background()))

	// Reconnect re-announces without reloading or reconnecting.
	require.NoError(t, h.orch.HandleConnected(context.Background()))
	opens, presences, syncs := h.platform.counts()
	assert.Equal(t, 1, opens)
	assert.Equal(t, 2, presences)
	assert.Equal(t, 2, syncs)
	assert.Equal(t, int32(1), h.store.connects.Load())
	assert.Equal(t, lifecycle.StateServing, h.orch.State())
}

func TestShutdownAfterBoot(t *testing.T) {
	h := newHarness(t, Config{Credential: "token"}, stubExtension{name: "economy"})
	require.NoError(t, h.orch.Boot(context.Background()))

	h.shutdown.Shutdown("test")
	assert.Equal(t, lifecycle.StateStopped, h.orch.State())
	assert.Equal(t, int32(1), h.monitor.stopped.Load())
	assert.Equal(t, int32(1), h.store.closes.Load())
	assert.Equal(t, 1, h.platform.closes)
}

func TestShutdownAfterFatalInit(t *testing.T) {
	h := newHarness(t, Config{})
	require.Error(t, h.orch.Boot(context.Background()))

	h.shutdown.Shutdown("exit")
	assert.Equal(t, lifecycle.StateFatalInit, h.orch.State())
	assert.Equal(t, int32(0), h.store.closes.Load())
}

func TestBootPlatformFailure(t *testing.T) {
	h := newHarness(t, Config{Credential: "token"})
	h.platform.openErr = errors.New("invalid token")

	err := h.orch.Boot(context.Background())
	assert.ErrorContains(t, err, "invalid token")
	assert.Equal(t, lifecycle.StateFatalInit, h.orch.State())

	h.shutdown.Shutdown("exit")
	assert.Equal(t, int32(1), h.store.closes.Load())
}

// blockingStore holds Connect open until released. Close waits for an
// in-flight Connect, as store.Manager does.
type blockingStore struct {
	mu        sync.Mutex
	entered   chan struct{}
	release   chan struct{}
	connected bool
	closes    int
}

func (s *blockingStore) Connect(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	close(s.entered)
	<-s.release
	s.connected = true
	return nil
}

func (s *blockingStore) Close(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.connected {
		s.connected = false
		s.closes++
	}
	return nil
}

func TestShutdownDuringStoreConnectClosesStore(t *testing.T) {
	st := &blockingStore{entered: make(chan struct{}), release: make(chan struct{})}
	platform := &fakePlatform{}
	co := shutdown.New(nil)
	lc := lifecycle.NewManager(nil, nil)
	registry, err := extension.NewRegistry()
	require.NoError(t, err)
	tracker := extension.NewTracker(nil)
	loader := extension.NewLoader(extension.NewCatalog(), registry, tracker, nil, nil)

	orch := New(Config{Credential: "token"}, platform, st, loader, tracker,
		WithShutdown(co), WithLifecycle(lc))

	bootErr := make(chan error, 1)
	go func() { bootErr <- orch.Boot(context.Background()) }()
	<-st.entered

	stopped := make(chan struct{})
	go func() {
		co.Shutdown("signal")
		close(stopped)
	}()
	require.Eventually(t, func() bool { return co.Reason() != "" }, time.Second, time.Millisecond)
	close(st.release)

	select {
	case err := <-bootErr:
		assert.ErrorIs(t, err, ErrStopping)
	case <-time.After(time.Second):
		t.Fatal("Boot did not return")
	}
	<-stopped

	st.mu.Lock()
	defer st.mu.Unlock()
	assert.False(t, st.connected)
	assert.Equal(t, 1, st.closes)
	assert.Equal(t, lifecycle.StateStopped, orch.State())
	opens, _, _ := platform.counts()
	assert.Equal(t, 0, opens)
}

func TestBootAfterShutdownAcquiresNothing(t *testing.T) {
	h := newHarness(t, Config{Credential: "token"})
	h.shutdown.Shutdown("early")

	assert.ErrorIs(t, h.orch.Boot(context.Background()), ErrStopping)
	assert.Equal(t, int32(0), h.store.connects.Load())
	assert.Equal(t, int32(0), h.monitor.started.Load())
}

func TestHandleGuildAvailable(t *testing.T) {
	h := newHarness(t, Config{Credential: "token", Version: "1.0"})

	require.NoError(t, h.orch.HandleGuildAvailable(context.Background(), 30))
	_, presences, syncs := h.platform.counts()
	assert.Equal(t, 0, presences, "boot announcement covers guilds seen before it")
	assert.Equal(t, 0, syncs)

	require.NoError(t, h.orch.Boot(context.Background()))
	require.NoError(t, h.orch.HandleGuildAvailable(context.Background(), 30))

	h.platform.mu.Lock()
	assert.Equal(t, [][]uint64{{10, 20}, {30}}, h.platform.syncs)
	h.platform.mu.Unlock()

	require.Eventually(t, func() bool {
		_, presences, _ := h.platform.counts()
		return presences == 2
	}, time.Second, time.Millisecond)
}

func TestRefreshPresenceFoldsBursts(t *testing.T) {
	h := newHarness(t, Config{Credential: "token", PresenceDelay: 30 * time.Millisecond})
	require.NoError(t, h.orch.Boot(context.Background()))

	for i := 0; i < 5; i++ {
		h.orch.RefreshPresence()
	}
	require.Eventually(t, func() bool {
		_, presences, _ := h.platform.counts()
		return presences == 2
	}, time.Second, time.Millisecond)

	time.Sleep(60 * time.Millisecond)
	_, presences, _ := h.platform.counts()
	assert.Equal(t, 2, presences)
}

func TestRefreshPresenceStopsOnShutdown(t *testing.T) {
	h := newHarness(t, Config{Credential: "token", PresenceDelay: 20 * time.Millisecond})
	require.NoError(t, h.orch.Boot(context.Background()))

	h.orch.RefreshPresence()
	h.shutdown.Shutdown("exit")
	h.orch.RefreshPresence()

	time.Sleep(50 * time.Millisecond)
	_, presences, _ := h.platform.counts()
	assert.Equal(t, 1, presences, "only the boot announcement")
}
