// Package linkcache resolves interface names and indexes from a
// snapshot of the kernel link table.
//
// The snapshot is only as fresh as the last Refill; it is not updated by
// team change notifications, so callers refill before every lookup.
package linkcache

import (
	"fmt"

	"github.com/vishvananda/netlink"
	"golang.org/x/sys/unix"

	"github.com/frobware/go-team/netns"
)

// Lister returns the current link table. *netlink.Handle satisfies it.
type Lister interface {
	LinkList() ([]netlink.Link, error)
}

// Cache is a name/index map of network interfaces.
type Cache struct {
	lister Lister
	handle *netlink.Handle
	byName map[string]uint32
	byIdx  map[uint32]string
}

// Open creates a Cache backed by an rtnetlink socket in the namespace
// at netnsPath (the current namespace when empty). The cache starts
// empty.
func Open(netnsPath string) (*Cache, error) {
	var h *netlink.Handle
	err := netns.Run(netnsPath, func() error {
		var err error
		h, err = netlink.NewHandle(unix.NETLINK_ROUTE)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("open rtnetlink handle: %w", err)
	}
	c := New(h)
	c.handle = h
	return c, nil
}

// New creates a Cache over an arbitrary link lister.
func New(l Lister) *Cache {
	return &Cache{
		lister: l,
		byName: map[string]uint32{},
		byIdx:  map[uint32]string{},
	}
}

// Refill replaces the snapshot with the current link table. On error
// the previous snapshot is kept.
func (c *Cache) Refill() error {
	links, err := c.lister.LinkList()
	if err != nil {
		return fmt.Errorf("list links: %w", err)
	}
	byName := make(map[string]uint32, len(links))
	byIdx := make(map[uint32]string, len(links))
	for _, l := range links {
		a := l.Attrs()
		if a == nil || a.Index <= 0 {
			continue
		}
		byName[a.Name] = uint32(a.Index)
		byIdx[uint32(a.Index)] = a.Name
	}
	c.byName, c.byIdx = byName, byIdx
	return nil
}

// NameToIndex returns the ifindex of the named interface.
func (c *Cache) NameToIndex(name string) (uint32, bool) {
	idx, ok := c.byName[name]
	return idx, ok
}

// IndexToName returns the name of the interface with the given ifindex.
func (c *Cache) IndexToName(ifindex uint32) (string, bool) {
	name, ok := c.byIdx[ifindex]
	return name, ok
}

// Close releases the rtnetlink socket when the Cache owns one.
func (c *Cache) Close() error {
	if c.handle != nil {
		c.handle.Close()
		c.handle = nil
	}
	c.byName, c.byIdx = map[string]uint32{}, map[uint32]string{}
	return nil
}
