package linkcache_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vishvananda/netlink"

	"github.com/frobware/go-team/linkcache"
)

type fakeLister struct {
	links []netlink.Link
	err   error
	calls int
}

func (f *fakeLister) LinkList() ([]netlink.Link, error) {
	f.calls++
	return f.links, f.err
}

func dummy(index int, name string) netlink.Link {
	return &netlink.Dummy{LinkAttrs: netlink.LinkAttrs{Index: index, Name: name}}
}

func TestCache_EmptyUntilRefill(t *testing.T) {
	l := &fakeLister{links: []netlink.Link{dummy(3, "eth0")}}
	c := linkcache.New(l)

	_, ok := c.NameToIndex("eth0")
	assert.False(t, ok)

	require.NoError(t, c.Refill())
	idx, ok := c.NameToIndex("eth0")
	require.True(t, ok)
	assert.Equal(t, uint32(3), idx)

	name, ok := c.IndexToName(3)
	require.True(t, ok)
	assert.Equal(t, "eth0", name)
}

func TestCache_RefillReplacesSnapshot(t *testing.T) {
	l := &fakeLister{links: []netlink.Link{dummy(3, "eth0"), dummy(4, "eth1")}}
	c := linkcache.New(l)
	require.NoError(t, c.Refill())

	l.links = []netlink.Link{dummy(4, "eth1"), dummy(9, "team0")}
	require.NoError(t, c.Refill())

	_, ok := c.NameToIndex("eth0")
	assert.False(t, ok, "removed link must not survive a refill")
	idx, ok := c.NameToIndex("team0")
	require.True(t, ok)
	assert.Equal(t, uint32(9), idx)
	assert.Equal(t, 2, l.calls)
}

func TestCache_RefillErrorKeepsSnapshot(t *testing.T) {
	l := &fakeLister{links: []netlink.Link{dummy(3, "eth0")}}
	c := linkcache.New(l)
	require.NoError(t, c.Refill())

	l.err = errors.New("netlink down")
	require.Error(t, c.Refill())

	idx, ok := c.NameToIndex("eth0")
	require.True(t, ok)
	assert.Equal(t, uint32(3), idx)
}

func TestCache_Close(t *testing.T) {
	l := &fakeLister{links: []netlink.Link{dummy(3, "eth0")}}
	c := linkcache.New(l)
	require.NoError(t, c.Refill())
	require.NoError(t, c.Close())

	_, ok := c.IndexToName(3)
	assert.False(t, ok)
}
