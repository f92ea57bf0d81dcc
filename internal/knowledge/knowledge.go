// Package knowledge is the client side of the shared key-value store every
// agent reads and writes. Reads are served from a local view and never block;
// replication, when present, happens behind the handle.
//
// Keys are dot-separated paths ("self.0.agent.location"). A key that starts
// with a dot is local to the process and is never replicated.
package knowledge

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnavailable reports that the connection to the shared store is gone.
// It is fatal to the current cycle and must reach the scheduler.
var ErrUnavailable = errors.New("knowledge base unavailable")

// ErrInvalidValue rejects a write the store cannot carry, such as a NaN or
// infinite double.
var ErrInvalidValue = errors.New("invalid value")

// ErrUnbound is returned by containers that were never given a store.
var ErrUnbound = errors.New("container not bound to a knowledge base")

// Variables is the minimal read/write view of the store.
type Variables interface {
	Get(key string) (Value, bool, error)
	Set(key string, v Value) error
}

// KnowledgeBase is a full store handle owned by one agent process.
type KnowledgeBase interface {
	Variables
	// Keys lists the known keys with the given prefix, sorted.
	Keys(prefix string) ([]string, error)
	// Snapshot copies the current local view.
	Snapshot() (map[string]Value, error)
	Close() error
}

// Join builds a key from path segments.
func Join(parts ...string) string {
	return strings.Join(parts, ".")
}

// IsLocal reports whether key is process-local.
func IsLocal(key string) bool {
	return strings.HasPrefix(key, ".")
}

// ValidateKey checks key against the alphabet shared by every store backend.
func ValidateKey(key string) error {
	name := strings.TrimPrefix(key, ".")
	if name == "" {
		return fmt.Errorf("invalid key %q: empty", key)
	}
	if strings.HasSuffix(name, ".") || strings.Contains(name, "..") || strings.HasPrefix(name, ".") {
		return fmt.Errorf("invalid key %q: empty path segment", key)
	}
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '.', r == '_', r == '-', r == '/', r == '=':
		default:
			return fmt.Errorf("invalid key %q: character %q", key, r)
		}
	}
	return nil
}
