package dumpdir

import (
	"fmt"
	"strconv"

	"golang.org/x/sys/unix"
)

// timeBufSize comfortably holds the largest possible decimal
// representation of a 64-bit signed timestamp plus a trailing newline; a
// read that fills the buffer means the file is too long to be valid.
const timeBufSize = 24

// parseTimeFile reads and validates the "time" item relative to dirFd. Its
// presence and validity is what distinguishes a problem directory from an
// arbitrary directory.
func parseTimeFile(dirFd int) (int64, error) {
	fd, err := secureOpenAt(dirFd, timeFileName, unix.O_RDONLY, 0)
	if err != nil {
		return -1, err
	}
	defer unix.Close(fd)

	buf := make([]byte, timeBufSize)
	n, err := unix.Read(fd, buf)
	if err != nil {
		return -1, err
	}
	if n == len(buf) {
		return -1, fmt.Errorf("%w: time file is too long", ErrCorruptItem)
	}
	data := buf[:n]
	if len(data) > 0 && data[len(data)-1] == '\n' {
		data = data[:len(data)-1]
	}
	if len(data) == 0 {
		return -1, fmt.Errorf("%w: time file is empty", ErrCorruptItem)
	}
	for _, b := range data {
		if b < '0' || b > '9' {
			return -1, fmt.Errorf("%w: time file contains non-digit bytes", ErrCorruptItem)
		}
	}

	v, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return -1, fmt.Errorf("%w: %v", ErrCorruptItem, err)
	}
	if v >= maxTimeValue {
		return -1, fmt.Errorf("%w: time value out of range", ErrCorruptItem)
	}
	return v, nil
}
