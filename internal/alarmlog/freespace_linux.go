//go:build linux

package alarmlog

import "golang.org/x/sys/unix"

// freeSpaceKB returns the free kilobytes on the filesystem holding dir, or
// -1 when it cannot be determined.
func freeSpaceKB(dir string) int64 {
	var st unix.Statfs_t
	if err := unix.Statfs(dir, &st); err != nil {
		return -1
	}
	return int64(st.Bavail) * st.Bsize / 1024
}
