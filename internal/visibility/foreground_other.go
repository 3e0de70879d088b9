//go:build !(linux || darwin || freebsd || netbsd || openbsd || dragonfly)

package visibility

// foreground is always true where job control doesn't exist.
func foreground(fd uintptr) bool {
	return true
}
