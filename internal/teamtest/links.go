package teamtest

import (
	"sync"

	"github.com/vishvananda/netlink"

	"github.com/frobware/go-team/linkcache"
)

// Links is a link table for linkcache. Tests edit it between lookups
// to simulate interfaces coming and going.
type Links struct {
	mu    sync.Mutex
	links map[uint32]string
	Err   error
	calls int
}

// NewLinks creates a link table from an ifindex to name map.
func NewLinks(links map[uint32]string) *Links {
	l := &Links{links: make(map[uint32]string, len(links))}
	for idx, name := range links {
		l.links[idx] = name
	}
	return l
}

// Set adds or renames a link.
func (l *Links) Set(ifindex uint32, name string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.links[ifindex] = name
}

// Delete removes a link.
func (l *Links) Delete(ifindex uint32) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.links, ifindex)
}

// Calls returns how many times the table was listed.
func (l *Links) Calls() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.calls
}

// LinkList implements linkcache.Lister.
func (l *Links) LinkList() ([]netlink.Link, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls++
	if l.Err != nil {
		return nil, l.Err
	}
	out := make([]netlink.Link, 0, len(l.links))
	for idx, name := range l.links {
		out = append(out, &netlink.Device{LinkAttrs: netlink.LinkAttrs{Index: int(idx), Name: name}})
	}
	return out, nil
}

// Resolver returns a link cache over l.
func (l *Links) Resolver() *linkcache.Cache {
	return linkcache.New(l)
}
