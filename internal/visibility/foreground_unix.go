//go:build linux || darwin || freebsd || netbsd || openbsd || dragonfly

package visibility

import (
	"golang.org/x/sys/unix"
)

// foreground compares the terminal's foreground process group with ours.
func foreground(fd uintptr) bool {
	pgrp, err := unix.IoctlGetInt(int(fd), unix.TIOCGPGRP)
	if err != nil {
		// Not a terminal (pipe, redirected file): nothing to hide behind
		return true
	}
	return pgrp == unix.Getpgrp()
}
