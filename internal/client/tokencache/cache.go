// Package tokencache holds the client's access token in one of two scopes:
// ephemeral (this process only) or persistent (survives restarts via a Store).
package tokencache

import (
	"fmt"
	"sync"
)

// Scope says where a token lives. Login with rememberMe picks Persistent,
// otherwise Ephemeral.
type Scope string

const (
	ScopeEphemeral  Scope = "ephemeral"
	ScopePersistent Scope = "persistent"
)

// Store persists the token for the persistent scope. Implementations must
// treat a missing token as ("", nil) from Load.
type Store interface {
	Load() (string, error)
	Save(token string) error
	Delete() error
}

// Cache is safe for concurrent use. A token lives in exactly one scope at a
// time: Set clears the other scope's entry.
type Cache struct {
	mu        sync.Mutex
	ephemeral string
	store     Store
}

func New(store Store) *Cache {
	return &Cache{store: store}
}

// Set stores the token in the given scope and clears the other one.
func (c *Cache) Set(token string, scope Scope) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch scope {
	case ScopeEphemeral:
		c.ephemeral = token
		if err := c.store.Delete(); err != nil {
			return fmt.Errorf("clear persistent token: %w", err)
		}
	case ScopePersistent:
		c.ephemeral = ""
		if err := c.store.Save(token); err != nil {
			return fmt.Errorf("save persistent token: %w", err)
		}
	default:
		return fmt.Errorf("unknown token scope %q", scope)
	}
	return nil
}

// Get returns the current token and the scope it came from. The ephemeral
// scope wins when both are somehow populated. ok is false when no token is
// cached.
func (c *Cache) Get() (token string, scope Scope, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.ephemeral != "" {
		return c.ephemeral, ScopeEphemeral, true
	}

	stored, err := c.store.Load()
	if err != nil || stored == "" {
		return "", "", false
	}
	return stored, ScopePersistent, true
}

// Clear empties both scopes.
func (c *Cache) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.ephemeral = ""
	if err := c.store.Delete(); err != nil {
		return fmt.Errorf("clear persistent token: %w", err)
	}
	return nil
}
