package fakeplugin_test

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/GriffinCanCode/plugstore/internal/domain/root"
	"github.com/GriffinCanCode/plugstore/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/plugstore/internal/plugin"
	"github.com/GriffinCanCode/plugstore/internal/plugin/fakeplugin"
	"github.com/GriffinCanCode/plugstore/internal/shared/id"
	"github.com/GriffinCanCode/plugstore/internal/shared/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	origin1 = "https://example1.com"
	origin2 = "https://example2.com"
	origin3 = "https://example3.com"
	origin4 = "https://example4.com"
)

type harness struct {
	t       *testing.T
	root    *root.Root
	manager *plugin.Manager

	mu    sync.Mutex
	inbox map[id.InstanceID]chan string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	r, err := root.New(root.Options{
		Dir:             t.TempDir(),
		Compression:     true,
		ShutdownTimeout: time.Second,
		Metrics:         monitoring.NewMetrics(prometheus.NewRegistry()),
	})
	require.NoError(t, err)

	h := &harness{t: t, root: r, inbox: make(map[id.InstanceID]chan string)}
	h.manager = plugin.NewManager(r, plugin.ManagerOptions{
		Forward: func(host *plugin.Host, ev plugin.Event) {
			if msg, ok := ev.(plugin.SessionMessage); ok {
				h.messages(host.InstanceID()) <- msg.Payload
			}
		},
	})
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = h.manager.ShutdownAll(ctx, 100*time.Millisecond)
		_ = r.Close(ctx)
	})
	return h
}

func (h *harness) messages(instanceID id.InstanceID) chan string {
	h.mu.Lock()
	defer h.mu.Unlock()
	ch, ok := h.inbox[instanceID]
	if !ok {
		ch = make(chan string, 256)
		h.inbox[instanceID] = ch
	}
	return ch
}

func (h *harness) launch(origin, top string, mode types.Mode) *plugin.Host {
	h.t.Helper()
	host, err := h.manager.Launch(context.Background(), origin, top, mode, fakeplugin.New())
	require.NoError(h.t, err)
	return host
}

// call sends a command and waits for the expected reply
func (h *harness) call(host *plugin.Host, cmd, want string) {
	h.t.Helper()
	require.NoError(h.t, host.Update(cmd))
	select {
	case got := <-h.messages(host.InstanceID()):
		require.Equal(h.t, want, got, "reply to %q", cmd)
	case <-time.After(5 * time.Second):
		h.t.Fatalf("no reply to %q, want %q", cmd, want)
	}
}

func (h *harness) shutdown(host *plugin.Host, timeout time.Duration) types.ShutdownOutcome {
	h.t.Helper()
	f, err := h.manager.Shutdown(host.InstanceID(), timeout)
	require.NoError(h.t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	outcome, err := f.Wait(ctx)
	require.NoError(h.t, err)

	select {
	case <-host.Done():
	case <-ctx.Done():
		h.t.Fatal("host did not exit after shutdown")
	}
	return outcome
}

func TestStorageSelfTest(t *testing.T) {
	for _, mode := range []types.Mode{types.ModePersistent, types.ModePrivate} {
		t.Run(mode.String(), func(t *testing.T) {
			h := newHarness(t)
			host := h.launch(origin1, origin2, mode)
			h.call(host, "test-storage", "test-storage complete")
		})
	}
}

func TestCrossOriginIsolation(t *testing.T) {
	h := newHarness(t)

	a := h.launch(origin1, origin2, types.ModePersistent)
	h.call(a, "store crossOriginTestRecordId crossOriginData", "stored crossOriginTestRecordId crossOriginData")
	assert.Equal(t, types.OutcomeClosed, h.shutdown(a, time.Second))

	b := h.launch(origin3, origin4, types.ModePersistent)
	h.call(b, "retrieve crossOriginTestRecordId", "retrieve crossOriginTestRecordId succeeded (length 0 bytes)")

	again := h.launch(origin1, origin2, types.ModePersistent)
	h.call(again, "retrieve crossOriginTestRecordId", "retrieve crossOriginTestRecordId succeeded (length 15 bytes)")
}

func TestPrivateDataDiscardedWithSession(t *testing.T) {
	h := newHarness(t)

	a := h.launch(origin1, origin2, types.ModePrivate)
	h.call(a, "store pbdata test-pb-data", "stored pbdata test-pb-data")
	h.call(a, "retrieve pbdata", "retrieve pbdata succeeded (length 12 bytes)")

	// persistent instance for the same pair cannot see it
	p := h.launch(origin1, origin2, types.ModePersistent)
	h.call(p, "retrieve pbdata", "retrieve pbdata succeeded (length 0 bytes)")

	assert.Equal(t, types.OutcomeClosed, h.shutdown(a, time.Second))
	require.NoError(t, h.root.EndPrivateSession(context.Background()))

	b := h.launch(origin1, origin2, types.ModePrivate)
	h.call(b, "retrieve pbdata", "retrieve pbdata succeeded (length 0 bytes)")

	empty, err := h.root.IsStorageEmpty(context.Background())
	require.NoError(t, err)
	assert.False(t, empty, "the persistent salt survives the private session")
}

func TestShutdownTokenWrittenDuringShutdown(t *testing.T) {
	h := newHarness(t)

	a := h.launch(origin1, origin2, types.ModePersistent)
	h.call(a, "shutdown-mode token 1234", "shutdown-token received 1234")
	assert.Equal(t, types.OutcomeClosed, h.shutdown(a, 3*time.Second))

	b := h.launch(origin1, origin2, types.ModePersistent)
	h.call(b, "retrieve-shutdown-token", "retrieved shutdown-token 1234")
}

func TestShutdownTimeoutForceCloses(t *testing.T) {
	h := newHarness(t)

	a := h.launch(origin1, origin2, types.ModePersistent)
	require.NoError(t, a.Update("shutdown-mode timeout"))
	h.call(a, "store before-timeout v", "stored before-timeout v")

	start := time.Now()
	assert.Equal(t, types.OutcomeForceClosed, h.shutdown(a, 150*time.Millisecond))
	assert.Less(t, time.Since(start), 2*time.Second)

	b := h.launch(origin1, origin2, types.ModePersistent)
	h.call(b, "retrieve before-timeout", "retrieve before-timeout succeeded (length 1 bytes)")
}

func TestConcurrentShutdownTimeouts(t *testing.T) {
	h := newHarness(t)

	hosts := []*plugin.Host{
		h.launch(origin1, origin2, types.ModePersistent),
		h.launch(origin3, origin4, types.ModePersistent),
		h.launch(origin1, origin4, types.ModePrivate),
	}
	for _, host := range hosts {
		require.NoError(t, host.Update("shutdown-mode timeout"))
		h.call(host, "retrieve-plugin-voucher", "retrieved plugin-voucher: "+fakeplugin.DefaultVoucher)
	}

	start := time.Now()
	var wg sync.WaitGroup
	outcomes := make([]types.ShutdownOutcome, len(hosts))
	for i, host := range hosts {
		f, err := h.manager.Shutdown(host.InstanceID(), 200*time.Millisecond)
		require.NoError(t, err)
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			outcomes[i], _ = f.Wait(context.Background())
		}(i)
	}
	wg.Wait()

	assert.Less(t, time.Since(start), time.Second)
	for _, o := range outcomes {
		assert.Equal(t, types.OutcomeForceClosed, o)
	}
}

func TestHundredRecordNames(t *testing.T) {
	h := newHarness(t)
	a := h.launch(origin1, origin2, types.ModePersistent)

	names := make([]string, 0, 100)
	for i := 0; i < 100; i++ {
		name := fmt.Sprintf("data%02d", i)
		h.call(a, fmt.Sprintf("store %s test-data%02d", name, i), fmt.Sprintf("stored %s test-data%02d", name, i))
		names = append(names, name)
	}
	h.call(a, "retrieve-record-names", "record-names "+strings.Join(names, ","))
}

func TestLongRecordName(t *testing.T) {
	h := newHarness(t)
	a := h.launch(origin1, origin2, types.ModePersistent)

	name := strings.Repeat("A", types.MaxRecordNameSize)
	h.call(a, "store "+name+" long", "stored "+name+" long")
	h.call(a, "retrieve "+name, "retrieve "+name+" succeeded (length 4 bytes)")

	tooLong := name + "A"
	h.call(a, "store "+tooLong+" x", "store "+tooLong+" failed: invalid")
}

func TestPluginVoucher(t *testing.T) {
	h := newHarness(t)
	host, err := h.manager.Launch(context.Background(), origin1, origin2, types.ModePersistent,
		fakeplugin.New(fakeplugin.WithVoucher("custom voucher")))
	require.NoError(t, err)
	h.call(host, "retrieve-plugin-voucher", "retrieved plugin-voucher: custom voucher")
}

func TestSecondInstanceOnNodeIsBusy(t *testing.T) {
	h := newHarness(t)
	h.launch(origin1, origin2, types.ModePersistent)

	_, err := h.manager.Launch(context.Background(), origin1, origin2, types.ModePersistent, fakeplugin.New())
	assert.ErrorIs(t, err, types.ErrNodeBusy)
}

func TestClosedPluginRejectsCommands(t *testing.T) {
	p := fakeplugin.New()
	require.NoError(t, p.Close())

	assert.ErrorIs(t, p.Send(plugin.Update{Payload: "test-storage"}), fakeplugin.ErrClosed)
	_, open := <-p.Events()
	assert.False(t, open)
}
