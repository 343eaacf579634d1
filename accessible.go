package dumpdir

import (
	"os/user"
	"strconv"

	"golang.org/x/sys/unix"
)

// AccessibleByUID reports whether uid may read the directory at path: uid
// 0 and the directory owner always pass; otherwise the directory must be
// world-readable or uid must belong to the directory's group. A stat
// failure returns (false, err) rather than panicking, since this query is
// typically used to decide whether to even attempt an open.
func AccessibleByUID(path string, uid int) (bool, error) {
	var st unix.Stat_t
	if err := unix.Stat(path, &st); err != nil {
		return false, err
	}
	return statAccessible(&st, uid), nil
}

// AccessibleByUID is the Handle-bound equivalent, using the already-open
// directory fd instead of re-resolving the path.
func (h *Handle) AccessibleByUID(uid int) (bool, error) {
	var st unix.Stat_t
	if err := unix.Fstat(h.dirFd, &st); err != nil {
		return false, err
	}
	return statAccessible(&st, uid), nil
}

func statAccessible(st *unix.Stat_t, uid int) bool {
	if uid == 0 || uint32(uid) == st.Uid {
		return true
	}
	if st.Mode&0o004 != 0 {
		return true
	}
	return groupMember(uid, st.Gid)
}

// groupMember reports whether uid belongs to gid, either as a primary or a
// supplementary group.
func groupMember(uid int, gid uint32) bool {
	u, err := user.LookupId(strconv.Itoa(uid))
	if err != nil {
		return false
	}
	if u.Gid == strconv.FormatUint(uint64(gid), 10) {
		return true
	}

	group, err := user.LookupGroupId(strconv.FormatUint(uint64(gid), 10))
	if err != nil {
		return false
	}
	groupIDs, err := u.GroupIds()
	if err != nil {
		return false
	}
	for _, g := range groupIDs {
		if g == group.Gid {
			return true
		}
	}
	return false
}
