package redcap

import (
	"fmt"
	"sync"

	"github.com/yungbote/specimenhub-backend/internal/platform/logger"
)

type cacheKey struct {
	apiURL    string
	apiToken  string
	projectID int64
}

// ProjectCache memoizes clients by (api url, token, project id) so that
// loading projects dynamically, e.g. from DET notifications, skips the
// project-details fetch after the first construction.
type ProjectCache struct {
	log *logger.Logger

	mu      sync.Mutex
	clients map[cacheKey]Client
}

func NewProjectCache(log *logger.Logger) *ProjectCache {
	return &ProjectCache{
		log:     log.With("component", "redcap.project_cache"),
		clients: make(map[cacheKey]Client),
	}
}

// GetOrCreate returns the cached client for the config, constructing and
// caching one on first use. Construction failures are not cached; a later
// call retries.
func (c *ProjectCache) GetOrCreate(cfg Config) (Client, error) {
	key := cacheKey{apiURL: cfg.APIURL, apiToken: cfg.APIToken, projectID: cfg.ProjectID}

	c.mu.Lock()
	defer c.mu.Unlock()
	if client, ok := c.clients[key]; ok {
		return client, nil
	}

	client, err := New(c.log, cfg)
	if err != nil {
		return nil, fmt.Errorf("project %d: %w", cfg.ProjectID, err)
	}
	c.clients[key] = client
	c.log.Debug("cached redcap project client", "project_id", cfg.ProjectID)
	return client, nil
}

// Invalidate drops the cached client for the config, forcing the next
// GetOrCreate to re-verify the token. Use after rotating a project token.
func (c *ProjectCache) Invalidate(cfg Config) {
	key := cacheKey{apiURL: cfg.APIURL, apiToken: cfg.APIToken, projectID: cfg.ProjectID}
	c.mu.Lock()
	delete(c.clients, key)
	c.mu.Unlock()
}

// Len reports how many project clients are cached.
func (c *ProjectCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.clients)
}
