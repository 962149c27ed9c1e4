package llm

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"

	"github.com/goccy/go-json"
)

// Cache keeps responses in memory for the lifetime of a run.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]string
}

// NewCache creates an empty response cache.
func NewCache() *Cache {
	return &Cache{entries: make(map[string]string)}
}

type cacheKeyPayload struct {
	Messages []Message      `json:"messages"`
	Params   map[string]any `json:"params"`
}

// Key returns the SHA-256 hex digest of the request messages and parameters.
func Key(messages []Message, params map[string]any) string {
	// Maps encode with sorted keys, so equal requests produce equal keys.
	data, err := json.Marshal(cacheKeyPayload{Messages: messages, Params: params})
	if err != nil {
		return ""
	}

	sum := sha256.Sum256(data)

	return hex.EncodeToString(sum[:])
}

// Get returns a cached response.
func (c *Cache) Get(key string) (string, bool) {
	if c == nil || key == "" {
		return "", false
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	v, ok := c.entries[key]

	return v, ok
}

// Set stores a response.
func (c *Cache) Set(key, value string) {
	if c == nil || key == "" {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = value
}

// Len returns the number of cached responses.
func (c *Cache) Len() int {
	if c == nil {
		return 0
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.entries)
}
