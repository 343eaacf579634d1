package dumpdir

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// secureOpenAt opens name relative to dirFd without following symlinks,
// then verifies the result is a regular file with exactly one hard link.
// A privileged process reading a user-controlled directory must refuse
// dangling symlinks and hard-linked files — both can be used to trick it
// into reading or overwriting an inode the caller never intended to touch.
func secureOpenAt(dirFd int, name string, flags int, mode uint32) (int, error) {
	fd, err := unix.Openat(dirFd, name, flags|unix.O_NOFOLLOW|unix.O_CLOEXEC, mode)
	if err != nil {
		return -1, err
	}

	var st unix.Stat_t
	if err := unix.Fstat(fd, &st); err != nil {
		unix.Close(fd)
		return -1, err
	}
	if st.Mode&unix.S_IFMT != unix.S_IFREG {
		unix.Close(fd)
		return -1, fmt.Errorf("%w: %q is not a regular file", ErrCorruptItem, name)
	}
	if st.Nlink > 1 {
		unix.Close(fd)
		return -1, fmt.Errorf("%w: %q has more than one hard link", ErrCorruptItem, name)
	}
	return fd, nil
}
