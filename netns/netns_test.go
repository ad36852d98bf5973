package netns_test

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/frobware/go-team/netns"
)

func TestRun_EmptyPathRunsInPlace(t *testing.T) {
	called := false
	err := netns.Run("", func() error {
		called = true
		return nil
	})
	require.NoError(t, err)
	assert.True(t, called)
}

func TestRun_PropagatesError(t *testing.T) {
	want := errors.New("boom")
	err := netns.Run("", func() error { return want })
	require.ErrorIs(t, err, want)
}

func TestRun_MissingNamespace(t *testing.T) {
	called := false
	err := netns.Run(filepath.Join(t.TempDir(), "missing"), func() error {
		called = true
		return nil
	})
	require.Error(t, err)
	assert.False(t, called)
}

func TestCheck(t *testing.T) {
	require.NoError(t, netns.Check(""))
	require.Error(t, netns.Check(t.TempDir()))
	require.Error(t, netns.Check(filepath.Join(t.TempDir(), "missing")))
}
