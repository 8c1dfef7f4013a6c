package wrapper

import (
	"errors"
	"syscall"

	"golang.org/x/sys/unix"
)

// Signal delivers sig to the process group led by pid
func Signal(pid int, sig syscall.Signal) error {
	if pid <= 0 {
		return unix.EINVAL
	}
	return unix.Kill(-pid, sig)
}

// Exists reports whether pid is still alive
func Exists(pid int) bool {
	if pid <= 0 {
		return false
	}
	err := unix.Kill(pid, 0)
	return err == nil || errors.Is(err, unix.EPERM)
}
