package knowledge

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/mtzanidakis/kinema/internal/config"
	"github.com/mtzanidakis/kinema/internal/natsbus"
)

func newTestNATS(t *testing.T, bus *natsbus.Bus) (*NATS, *natsbus.Client) {
	t.Helper()
	client, err := natsbus.NewClient(bus)
	if err != nil {
		t.Fatalf("client: %v", err)
	}
	t.Cleanup(client.Close)

	kv, err := client.KeyValue(t.Context(), "knowledge")
	if err != nil {
		t.Fatalf("bucket: %v", err)
	}
	n, err := NewNATS(t.Context(), kv)
	if err != nil {
		t.Fatalf("new nats store: %v", err)
	}
	t.Cleanup(func() { _ = n.Close() })
	return n, client
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

func TestNATSReplicatesBetweenAgents(t *testing.T) {
	bus, err := natsbus.New(config.NATSConfig{Port: -1, DataDir: t.TempDir()})
	if err != nil {
		t.Fatalf("bus: %v", err)
	}
	defer bus.Close()

	a, _ := newTestNATS(t, bus)
	b, _ := newTestNATS(t, bus)

	loc := NewDoubleArray(a, "self.0.agent.location", 3)
	if err := loc.Set([]float64{1, 2, 3}); err != nil {
		t.Fatalf("set: %v", err)
	}

	// the writer sees its own value immediately
	got, _ := loc.Get()
	if got[2] != 3 {
		t.Errorf("expected local read-your-write, got %v", got)
	}

	remote := NewDoubleArray(b, "self.0.agent.location", 3)
	waitFor(t, func() bool {
		v, _ := remote.Get()
		return v[0] == 1 && v[1] == 2 && v[2] == 3
	})
}

func TestNATSLocalKeysStayLocal(t *testing.T) {
	bus, err := natsbus.New(config.NATSConfig{Port: -1, DataDir: t.TempDir()})
	if err != nil {
		t.Fatalf("bus: %v", err)
	}
	defer bus.Close()

	a, _ := newTestNATS(t, bus)
	b, _ := newTestNATS(t, bus)

	_ = a.Set(".scratch", IntValue(7))
	_ = a.Set("marker", IntValue(1))

	waitFor(t, func() bool {
		_, ok, _ := b.Get("marker")
		return ok
	})
	if _, ok, _ := b.Get(".scratch"); ok {
		t.Error("local key must not replicate")
	}
	if v, _, _ := a.Get(".scratch"); v.AsInt() != 7 {
		t.Error("local key must stay readable by its owner")
	}
}

func TestNATSLoadsExistingValues(t *testing.T) {
	bus, err := natsbus.New(config.NATSConfig{Port: -1, DataDir: t.TempDir()})
	if err != nil {
		t.Fatalf("bus: %v", err)
	}
	defer bus.Close()

	a, _ := newTestNATS(t, bus)
	_ = a.Set("swarm.size", IntValue(5))
	if err := a.Close(); err != nil {
		t.Fatalf("close flushes: %v", err)
	}

	b, _ := newTestNATS(t, bus)
	v, ok, err := b.Get("swarm.size")
	if err != nil || !ok || v.AsInt() != 5 {
		t.Errorf("expected swarm.size=5 at startup, got %v ok=%v err=%v", v, ok, err)
	}
}

func TestNATSUnavailableAfterConnectionLoss(t *testing.T) {
	bus, err := natsbus.New(config.NATSConfig{Port: -1, DataDir: t.TempDir()})
	if err != nil {
		t.Fatalf("bus: %v", err)
	}
	defer bus.Close()

	n, client := newTestNATS(t, bus)
	lost := make(chan struct{})
	client.OnClosed(func() {
		n.Fail(errors.New("connection closed"))
		close(lost)
	})
	client.Close()

	select {
	case <-lost:
	case <-time.After(3 * time.Second):
		t.Fatal("closed handler not called")
	}

	if _, _, err := n.Get("anything"); !errors.Is(err, ErrUnavailable) {
		t.Errorf("expected ErrUnavailable, got %v", err)
	}
	if err := n.Set("anything", IntValue(1)); !errors.Is(err, ErrUnavailable) {
		t.Errorf("expected ErrUnavailable on set, got %v", err)
	}
}

func TestNATSRejectsNonFiniteAndStaysAvailable(t *testing.T) {
	bus, err := natsbus.New(config.NATSConfig{Port: -1, DataDir: t.TempDir()})
	if err != nil {
		t.Fatalf("bus: %v", err)
	}
	defer bus.Close()

	a, _ := newTestNATS(t, bus)
	b, _ := newTestNATS(t, bus)

	err = a.Set("self.0.agent.dest", DoublesValue([]float64{math.NaN(), 0, 0}))
	if !errors.Is(err, ErrInvalidValue) {
		t.Fatalf("expected ErrInvalidValue, got %v", err)
	}
	if _, ok, _ := a.Get("self.0.agent.dest"); ok {
		t.Error("rejected value reached the local view")
	}

	if err := a.Set("self.0.agent.location", DoublesValue([]float64{1, 2, 3})); err != nil {
		t.Fatalf("set after rejected write: %v", err)
	}
	waitFor(t, func() bool {
		v, ok, err := b.Get("self.0.agent.location")
		return err == nil && ok && v.Equal(DoublesValue([]float64{1, 2, 3}))
	})
	if _, _, err := a.Get("self.0.agent.location"); err != nil {
		t.Errorf("store unavailable after rejected write: %v", err)
	}
}
