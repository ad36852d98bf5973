// Package netns runs code inside another network namespace.
//
// Netlink sockets are bound to the namespace of the thread that creates
// them, so a team device living in a container namespace is reached by
// opening its sockets inside Run and using them from anywhere afterwards.
package netns

import (
	"fmt"
	"runtime"

	vnetns "github.com/vishvananda/netns"
	"golang.org/x/sys/unix"
)

// Run executes fn in the network namespace at path. An empty path runs
// fn in the current namespace. The calling thread is locked for the
// duration and switched back before Run returns, including on panic.
func Run(path string, fn func() error) error {
	if path == "" {
		return fn()
	}

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	self, err := vnetns.Get()
	if err != nil {
		return fmt.Errorf("open current netns: %w", err)
	}
	defer self.Close()

	target, err := vnetns.GetFromPath(path)
	if err != nil {
		return fmt.Errorf("open netns %s: %w", path, err)
	}
	defer target.Close()

	if err := vnetns.Set(target); err != nil {
		return fmt.Errorf("enter netns %s: %w", path, err)
	}
	defer func() {
		// A thread that cannot be switched back stays locked and is
		// discarded by the runtime when the goroutine exits.
		if err := vnetns.Set(self); err == nil {
			return
		}
		runtime.LockOSThread()
	}()

	return fn()
}

// Check verifies that path names a network namespace.
func Check(path string) error {
	if path == "" {
		return nil
	}
	var fs unix.Statfs_t
	if err := unix.Statfs(path, &fs); err != nil {
		return fmt.Errorf("stat netns %s: %w", path, err)
	}
	if fs.Type != unix.NSFS_MAGIC && fs.Type != unix.PROC_SUPER_MAGIC {
		return fmt.Errorf("%s is not a network namespace", path)
	}
	return nil
}
