package indexer

import (
	"os"
	"sync"
	"time"

	"github.com/complyance/auditor/pkg/config"
)

// credentialMargin is the safety margin before expiry at which a cached
// credential is treated as stale and re-resolved (spec 4.E step 1: "Cache
// per-installation with 5-minute safety margin before expiry").
const credentialMargin = 5 * time.Minute

// CredentialCache resolves and caches repository read credentials per
// installation. Our GitHubConfig carries a single long-lived token (an env
// var name, not an expiring installation JWT exchange), so there is
// nothing to actually refresh — but the cache still honors the 5-minute
// margin contract so a future installation-token exchange can drop in
// without changing the Indexer's call site.
type CredentialCache struct {
	cfg *config.GitHubConfig

	mu      sync.Mutex
	entries map[int64]cachedCredential
}

type cachedCredential struct {
	token     string
	expiresAt time.Time
}

// NewCredentialCache builds a cache reading the static token named by cfg.
func NewCredentialCache(cfg *config.GitHubConfig) *CredentialCache {
	return &CredentialCache{cfg: cfg, entries: make(map[int64]cachedCredential)}
}

// Resolve returns a read credential for installationID, serving a cached
// value unless it is within credentialMargin of expiry.
func (c *CredentialCache) Resolve(installationID int64) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if cached, ok := c.entries[installationID]; ok && time.Until(cached.expiresAt) > credentialMargin {
		return cached.token, nil
	}

	token := os.Getenv(c.cfg.TokenEnv)
	// A static PAT never expires on its own; give it a long nominal TTL so
	// it still participates in the margin-based cache invalidation above.
	c.entries[installationID] = cachedCredential{token: token, expiresAt: time.Now().Add(24 * time.Hour)}
	return token, nil
}
