//go:build !linux

package alarmlog

// freeSpaceKB reports -1 on platforms without a statfs call; the caller
// treats that as unknown and keeps appending.
func freeSpaceKB(dir string) int64 { return -1 }
