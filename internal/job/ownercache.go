package job

import (
	"context"
	"sync"

	"github.com/prozo/dealpulse/pkg/hubspot"
)

// OwnerCache memoizes owner ID to email lookups for the duration of a run,
// so a thousand deals owned by ten people cost ten API calls.
type OwnerCache struct {
	client hubspot.Client

	mu     sync.Mutex
	emails map[string]string
}

func NewOwnerCache(client hubspot.Client) *OwnerCache {
	return &OwnerCache{client: client, emails: make(map[string]string)}
}

// Email resolves an owner ID, hitting the API at most once per ID. Failed
// lookups are not cached so a transient error does not poison the run.
func (c *OwnerCache) Email(ctx context.Context, ownerID string) (string, error) {
	c.mu.Lock()
	email, ok := c.emails[ownerID]
	c.mu.Unlock()
	if ok {
		return email, nil
	}

	email, err := c.client.OwnerEmail(ctx, ownerID)
	if err != nil {
		return "", err
	}

	c.mu.Lock()
	c.emails[ownerID] = email
	c.mu.Unlock()
	return email, nil
}
