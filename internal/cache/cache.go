// Copyright (c) 2025 ToeiRei
// Keymaster - SSH key management system
// This source code is licensed under the MIT license found in the LICENSE file.

// package cache is the Caching Client (C3): a process-wide, reader-preferring
// memoization layer over the wire client, keyed by (host, verb, args).
// Concurrent identical requests against a cold entry coalesce onto a single
// underlying invocation via singleflight; errors are never memoized.
package cache // import "github.com/toeirei/ssm/internal/cache"

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/toeirei/ssm/internal/model"
	"github.com/toeirei/ssm/internal/probe"
	"golang.org/x/sync/singleflight"
)

// Fetcher is the narrow slice of the wire client the cache depends on. Kept
// as an interface so reconcile-engine tests can substitute a fake without
// standing up real SSH.
type Fetcher interface {
	Execute(ctx context.Context, h model.Host, verb probe.Verb, args []string, stdin []byte) ([]byte, error)
}

// Entry is one cached (value, fetched_at) pair.
type Entry struct {
	Value     []byte
	FetchedAt time.Time
}

// Client wraps a Fetcher with the cache described in §4.3: no TTL, explicit
// invalidation, single-flight coalescing, and no memoization of errors.
type Client struct {
	fetcher Fetcher
	group   singleflight.Group

	mu      sync.RWMutex
	entries map[string]Entry
}

// New builds a Client over the given wire client.
func New(fetcher Fetcher) *Client {
	return &Client{
		fetcher: fetcher,
		entries: make(map[string]Entry),
	}
}

func cacheKey(hostID int, verb probe.Verb, args []string) string {
	var b strings.Builder
	b.WriteString(strconv.Itoa(hostID))
	b.WriteByte(0)
	b.WriteString(string(verb))
	for _, a := range args {
		b.WriteByte(0)
		b.WriteString(a)
	}
	return b.String()
}

func hostPrefix(hostID int) string {
	return strconv.Itoa(hostID) + "\x00"
}

// Get returns the cached value for (h, verb, args) if one exists and
// forceRefresh is false; otherwise it invokes the wire client and stores the
// result before returning it. Concurrent identical requests against a cold
// entry coalesce onto one Execute call.
func (c *Client) Get(ctx context.Context, h model.Host, verb probe.Verb, args []string, forceRefresh bool) ([]byte, time.Time, error) {
	key := cacheKey(h.ID, verb, args)

	if !forceRefresh {
		c.mu.RLock()
		entry, ok := c.entries[key]
		c.mu.RUnlock()
		if ok {
			return entry.Value, entry.FetchedAt, nil
		}
	}

	result, err, _ := c.group.Do(key, func() (interface{}, error) {
		value, err := c.fetcher.Execute(ctx, h, verb, args, nil)
		if err != nil {
			return nil, err
		}
		fetchedAt := now()
		c.mu.Lock()
		c.entries[key] = Entry{Value: value, FetchedAt: fetchedAt}
		c.mu.Unlock()
		return Entry{Value: value, FetchedAt: fetchedAt}, nil
	})
	if err != nil {
		// Errors are never memoized: nothing was written to c.entries above.
		return nil, time.Time{}, err
	}
	entry := result.(Entry)
	return entry.Value, entry.FetchedAt, nil
}

// Invalidate drops all cached entries for a host. Called automatically
// after any set_keys, and available for a manual operator-triggered refresh.
func (c *Client) Invalidate(hostID int) {
	prefix := hostPrefix(hostID)
	c.mu.Lock()
	defer c.mu.Unlock()
	for key := range c.entries {
		if strings.HasPrefix(key, prefix) {
			delete(c.entries, key)
		}
	}
}

// now is a seam so tests can observe FetchedAt without real-time flakiness
// if ever needed; production always uses time.Now.
var now = time.Now
