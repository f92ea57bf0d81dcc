package knowledge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats.go/jetstream"
)

const putTimeout = 5 * time.Second

// NATS replicates the store through a JetStream key-value bucket. Reads and
// writes hit a local cache; a flusher goroutine pushes dirty keys to the
// bucket and a watcher goroutine folds in writes made by other agents.
type NATS struct {
	kv jetstream.KeyValue

	mu      sync.RWMutex
	cache   map[string]Value
	dirty   map[string]Value
	revs    map[string]uint64
	err     error
	closed  bool
	watcher jetstream.KeyWatcher

	kick   chan struct{}
	done   chan struct{}
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewNATS loads the current bucket contents and starts replication. It
// returns once the initial values are in the local cache.
func NewNATS(ctx context.Context, kv jetstream.KeyValue) (*NATS, error) {
	wctx, cancel := context.WithCancel(context.Background())
	w, err := kv.WatchAll(wctx)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("watch bucket: %w", err)
	}

	n := &NATS{
		kv:      kv,
		cache:   make(map[string]Value),
		dirty:   make(map[string]Value),
		revs:    make(map[string]uint64),
		watcher: w,
		kick:    make(chan struct{}, 1),
		done:    make(chan struct{}),
		cancel:  cancel,
	}

	// The watcher sends a nil entry once the initial values are delivered.
initial:
	for {
		select {
		case e, ok := <-w.Updates():
			if !ok {
				cancel()
				return nil, fmt.Errorf("watch bucket: %w", ErrUnavailable)
			}
			if e == nil {
				break initial
			}
			n.apply(e)
		case <-ctx.Done():
			_ = w.Stop()
			cancel()
			return nil, fmt.Errorf("load bucket: %w", ctx.Err())
		}
	}

	n.wg.Add(2)
	go n.watch()
	go n.flush()
	return n, nil
}

func (n *NATS) Get(key string) (Value, bool, error) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	if err := n.failure(); err != nil {
		return Value{}, false, err
	}
	v, ok := n.cache[key]
	return v, ok, nil
}

// Set updates the local view immediately and schedules replication. It never
// waits on the network.
func (n *NATS) Set(key string, v Value) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	if err := v.Validate(); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	n.mu.Lock()
	if err := n.failure(); err != nil {
		n.mu.Unlock()
		return err
	}
	n.cache[key] = v
	if !IsLocal(key) {
		n.dirty[key] = v
	}
	n.mu.Unlock()

	if !IsLocal(key) {
		select {
		case n.kick <- struct{}{}:
		default:
		}
	}
	return nil
}

func (n *NATS) Keys(prefix string) ([]string, error) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	if err := n.failure(); err != nil {
		return nil, err
	}
	var keys []string
	for k := range n.cache {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys)
	return keys, nil
}

func (n *NATS) Snapshot() (map[string]Value, error) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	if err := n.failure(); err != nil {
		return nil, err
	}
	return maps.Clone(n.cache), nil
}

// Fail marks the store unavailable, for example when the underlying
// connection closes. Later calls return an error wrapping ErrUnavailable.
func (n *NATS) Fail(cause error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err == nil {
		n.err = fmt.Errorf("%w: %v", ErrUnavailable, cause)
		slog.Error("knowledge base failed", "error", cause)
	}
}

// Close flushes pending writes and stops replication.
func (n *NATS) Close() error {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return nil
	}
	n.closed = true
	n.mu.Unlock()

	close(n.done)
	_ = n.watcher.Stop()
	n.cancel()
	n.wg.Wait()

	n.mu.RLock()
	defer n.mu.RUnlock()
	if n.err != nil && !errors.Is(n.err, ErrUnavailable) {
		return n.err
	}
	return nil
}

// failure must be called with n.mu held.
func (n *NATS) failure() error {
	if n.err != nil {
		return n.err
	}
	if n.closed {
		return ErrUnavailable
	}
	return nil
}

func (n *NATS) watch() {
	defer n.wg.Done()
	for {
		select {
		case <-n.done:
			return
		case e, ok := <-n.watcher.Updates():
			if !ok {
				select {
				case <-n.done:
				default:
					n.Fail(errors.New("bucket watcher stopped"))
				}
				return
			}
			if e != nil {
				n.apply(e)
			}
		}
	}
}

func (n *NATS) apply(e jetstream.KeyValueEntry) {
	key := e.Key()
	n.mu.Lock()
	defer n.mu.Unlock()

	// Pending local writes win; so do entries we already superseded.
	if _, pending := n.dirty[key]; pending {
		return
	}
	if e.Revision() < n.revs[key] {
		return
	}
	n.revs[key] = e.Revision()

	switch e.Operation() {
	case jetstream.KeyValueDelete, jetstream.KeyValuePurge:
		delete(n.cache, key)
	default:
		var v Value
		if err := json.Unmarshal(e.Value(), &v); err != nil {
			slog.Warn("ignoring undecodable knowledge entry", "key", key, "error", err)
			return
		}
		n.cache[key] = v
	}
}

func (n *NATS) flush() {
	defer n.wg.Done()
	for {
		select {
		case <-n.kick:
			n.push()
		case <-n.done:
			n.push()
			return
		}
	}
}

func (n *NATS) push() {
	n.mu.RLock()
	if n.err != nil {
		n.mu.RUnlock()
		return
	}
	batch := maps.Clone(n.dirty)
	n.mu.RUnlock()

	for key, v := range batch {
		data, err := json.Marshal(v)
		if err != nil {
			slog.Error("dropping unencodable value", "key", key, "error", err)
			n.mu.Lock()
			delete(n.dirty, key)
			n.mu.Unlock()
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), putTimeout)
		rev, err := n.kv.Put(ctx, key, data)
		cancel()
		if err != nil {
			n.Fail(fmt.Errorf("put %s: %w", key, err))
			return
		}

		n.mu.Lock()
		if rev > n.revs[key] {
			n.revs[key] = rev
		}
		// Only clear the key if nobody wrote it again meanwhile.
		if cur, ok := n.dirty[key]; ok && cur.Equal(v) {
			delete(n.dirty, key)
		}
		n.mu.Unlock()
	}
}
