package genl

import (
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vishvananda/netlink/nl"
	"golang.org/x/sys/unix"
)

func errorPayload(code int32) []byte {
	b := make([]byte, 4+unix.SizeofNlMsghdr)
	nl.NativeEndian().PutUint32(b[:4], uint32(code))
	return b
}

func TestConvert(t *testing.T) {
	raw := []syscall.NetlinkMessage{
		{Header: syscall.NlMsghdr{Type: 0x1c, Seq: 5}, Data: []byte{3, 1, 0, 0, 8, 0, 1, 0, 7, 0, 0, 0}},
		{Header: syscall.NlMsghdr{Type: unix.NLMSG_NOOP, Seq: 5}},
		{Header: syscall.NlMsghdr{Type: unix.NLMSG_ERROR, Seq: 5}, Data: errorPayload(0)},
		{Header: syscall.NlMsghdr{Type: unix.NLMSG_ERROR, Seq: 6}, Data: errorPayload(-int32(unix.EOPNOTSUPP))},
		{Header: syscall.NlMsghdr{Type: unix.NLMSG_DONE, Seq: 7}},
	}

	msgs, err := convert(raw)
	require.NoError(t, err)
	require.Len(t, msgs, 4)

	assert.Equal(t, KindData, msgs[0].Kind)
	assert.Equal(t, uint16(0x1c), msgs[0].Family)
	assert.Equal(t, uint8(3), msgs[0].Command)
	assert.Equal(t, uint8(1), msgs[0].Version)
	assert.Len(t, msgs[0].Attrs, 8)

	assert.Equal(t, KindAck, msgs[1].Kind)
	assert.Equal(t, uint32(5), msgs[1].Seq)

	assert.Equal(t, KindError, msgs[2].Kind)
	assert.Equal(t, unix.EOPNOTSUPP, msgs[2].Errno)

	assert.Equal(t, KindDone, msgs[3].Kind)
}

func TestConvert_Overrun(t *testing.T) {
	_, err := convert([]syscall.NetlinkMessage{{Header: syscall.NlMsghdr{Type: unix.NLMSG_OVERRUN}}})
	require.ErrorIs(t, err, unix.ENOBUFS)
}

func TestConvert_TruncatedError(t *testing.T) {
	_, err := convert([]syscall.NetlinkMessage{{Header: syscall.NlMsghdr{Type: unix.NLMSG_ERROR}, Data: []byte{1}}})
	require.ErrorIs(t, err, unix.EINVAL)
}

func TestFamilyGroup(t *testing.T) {
	f := Family{ID: 0x1c, Name: "team", Groups: map[string]uint32{"change_event": 9}}
	id, ok := f.Group("change_event")
	assert.True(t, ok)
	assert.Equal(t, uint32(9), id)
	_, ok = f.Group("missing")
	assert.False(t, ok)
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "ack", KindAck.String())
	assert.Equal(t, "Kind(42)", Kind(42).String())
}

func TestConvert_MultipartFlag(t *testing.T) {
	raw := []syscall.NetlinkMessage{
		{Header: syscall.NlMsghdr{Type: 0x1c, Flags: unix.NLM_F_MULTI, Seq: 0}, Data: []byte{2, 1, 0, 0}},
		{Header: syscall.NlMsghdr{Type: 0x1c, Seq: 0}, Data: []byte{2, 1, 0, 0}},
		{Header: syscall.NlMsghdr{Type: unix.NLMSG_DONE, Flags: unix.NLM_F_MULTI, Seq: 0}},
	}
	msgs, err := convert(raw)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.True(t, msgs[0].Multi)
	assert.False(t, msgs[1].Multi)
	assert.Equal(t, KindDone, msgs[2].Kind)
	assert.True(t, msgs[2].Multi)
}

func TestReadable(t *testing.T) {
	assert.True(t, readable(unix.POLLIN))
	assert.True(t, readable(unix.POLLERR), "a pending socket error is read by Receive")
	assert.True(t, readable(unix.POLLIN|unix.POLLERR))
	assert.False(t, readable(0))
	assert.False(t, readable(unix.POLLOUT))
}
