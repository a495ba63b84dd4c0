package flows

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/romavesna/bausteinbot/storage"
)

// roleTTL bounds how long a cached role is trusted before re-querying the
// store. Role changes take effect within this window.
const roleTTL = time.Minute

type roleEntry struct {
	role    storage.Role
	expires time.Time
}

type roleCache struct {
	mu      sync.Mutex
	entries map[int64]roleEntry
	now     func() time.Time
}

func newRoleCache() *roleCache {
	return &roleCache{entries: make(map[int64]roleEntry), now: time.Now}
}

func (c *roleCache) get(userID int64) (storage.Role, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[userID]
	if !ok || c.now().After(e.expires) {
		delete(c.entries, userID)
		return "", false
	}
	return e.role, true
}

func (c *roleCache) put(userID int64, role storage.Role) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[userID] = roleEntry{role: role, expires: c.now().Add(roleTTL)}
}

// role resolves the user's role, consulting the cache first.
func (e *Engine) role(ctx context.Context, userID int64) (storage.Role, error) {
	if role, ok := e.roles.get(userID); ok {
		return role, nil
	}
	user, err := e.repo.UserByID(ctx, userID)
	if errors.Is(err, storage.ErrNotFound) {
		return storage.RoleUser, nil
	}
	if err != nil {
		return "", repoErr("role lookup", err)
	}
	e.roles.put(userID, user.Role)
	return user.Role, nil
}

// authorizeEditor rejects non-editors with ErrUnauthorized.
func (e *Engine) authorizeEditor(ctx context.Context, userID int64) error {
	role, err := e.role(ctx, userID)
	if err != nil {
		return err
	}
	if !role.Editor() {
		return ErrUnauthorized
	}
	return nil
}
