// Package ifcache maps kernel interface indexes to names and back.
//
// Routes reference egress interfaces and VRF masters by index. The cache is
// filled from the kernel link table and refilled once when a lookup misses,
// since interfaces can be created after the last fill.
package ifcache

import (
	"fmt"
	"sync"

	"github.com/vishvananda/netlink"

	"github.com/newtron-network/fpmsyncd/pkg/util"
)

// LinkLister lists the kernel's links.
type LinkLister interface {
	LinkList() ([]netlink.Link, error)
}

type kernelLinks struct{}

func (kernelLinks) LinkList() ([]netlink.Link, error) {
	return netlink.LinkList()
}

// Cache is a refill-on-miss index↔name table. Safe for concurrent use: a
// miss holds the write lock only for its own refill.
type Cache struct {
	lister LinkLister

	mu      sync.RWMutex
	byIndex map[int]string
	byName  map[string]int
}

// New creates an empty cache backed by lister. The first lookup fills it.
func New(lister LinkLister) *Cache {
	return &Cache{
		lister:  lister,
		byIndex: map[int]string{},
		byName:  map[string]int{},
	}
}

// NewNetlink creates a cache over the host's links.
func NewNetlink() *Cache {
	return New(kernelLinks{})
}

// Refill replaces the cache contents with the current link table.
func (c *Cache) Refill() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.refillLocked()
}

func (c *Cache) refillLocked() error {
	links, err := c.lister.LinkList()
	if err != nil {
		return fmt.Errorf("listing links: %w", err)
	}
	byIndex := make(map[int]string, len(links))
	byName := make(map[string]int, len(links))
	for _, l := range links {
		attrs := l.Attrs()
		if attrs == nil {
			continue
		}
		byIndex[attrs.Index] = attrs.Name
		byName[attrs.Name] = attrs.Index
	}
	c.byIndex, c.byName = byIndex, byName
	util.Logger.Debugf("ifcache: refilled with %d links", len(links))
	return nil
}

// Name returns the interface name for index. On a miss the cache is
// refilled once; a second miss returns util.ErrNotFound.
func (c *Cache) Name(index int) (string, error) {
	c.mu.RLock()
	name, ok := c.byIndex[index]
	c.mu.RUnlock()
	if ok {
		return name, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if name, ok := c.byIndex[index]; ok {
		return name, nil
	}
	if err := c.refillLocked(); err != nil {
		return "", err
	}
	if name, ok := c.byIndex[index]; ok {
		return name, nil
	}
	return "", fmt.Errorf("interface index %d: %w", index, util.ErrNotFound)
}

// Index returns the interface index for name, refilling once on a miss.
func (c *Cache) Index(name string) (int, error) {
	c.mu.RLock()
	index, ok := c.byName[name]
	c.mu.RUnlock()
	if ok {
		return index, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if index, ok := c.byName[name]; ok {
		return index, nil
	}
	if err := c.refillLocked(); err != nil {
		return 0, err
	}
	if index, ok := c.byName[name]; ok {
		return index, nil
	}
	return 0, fmt.Errorf("interface %q: %w", name, util.ErrNotFound)
}

// Len returns the number of cached links.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.byIndex)
}
