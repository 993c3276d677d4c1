package usecase

import (
	"crypto/sha256"
	"encoding/hex"

	lru "github.com/hashicorp/golang-lru/v2"
)

// ResponseCache memoizes generated replies so identical prompts from
// the same requester are not regenerated. Capacity bounded with LRU
// eviction; entries otherwise live for the process lifetime.
type ResponseCache struct {
	entries *lru.Cache[string, string]
}

// NewResponseCache creates a cache holding at most size entries
func NewResponseCache(size int) (*ResponseCache, error) {
	entries, err := lru.New[string, string](size)
	if err != nil {
		return nil, err
	}
	return &ResponseCache{entries: entries}, nil
}

// CacheKey derives the deterministic cache key for a prompt and
// requester. Keyed per requester so distinct users never share a
// cached answer, even for identical prompts.
func CacheKey(prompt, requesterID string) string {
	h := sha256.New()
	h.Write([]byte(prompt))
	h.Write([]byte{0})
	h.Write([]byte(requesterID))
	return hex.EncodeToString(h.Sum(nil))
}

// Get looks up a cached reply by key
func (c *ResponseCache) Get(key string) (string, bool) {
	return c.entries.Get(key)
}

// Put stores a generated reply under key
func (c *ResponseCache) Put(key, text string) {
	c.entries.Add(key, text)
}

// Len returns the current number of cached entries
func (c *ResponseCache) Len() int {
	return c.entries.Len()
}
