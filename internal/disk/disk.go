// Package disk reports filesystem capacity for the free-space summary
// printed after a commit run.
package disk

import (
	"syscall"
)

// Usage describes the filesystem holding a path
type Usage struct {
	TotalBytes int64
	FreeBytes  int64
}

// UsedBytes returns the number of bytes in use
func (u Usage) UsedBytes() int64 {
	return u.TotalBytes - u.FreeBytes
}

// UsedPercent returns the percentage of disk space used
func (u Usage) UsedPercent() float64 {
	if u.TotalBytes <= 0 {
		return 0
	}
	return (float64(u.UsedBytes()) / float64(u.TotalBytes)) * 100.0
}

// FreePercent returns the percentage of free disk space
func (u Usage) FreePercent() float64 {
	return 100.0 - u.UsedPercent()
}

// Stat returns usage for the filesystem containing path
func Stat(path string) (Usage, error) {
	var stat syscall.Statfs_t
	if err := syscall.Statfs(path, &stat); err != nil {
		return Usage{}, err
	}

	return Usage{
		TotalBytes: int64(stat.Blocks) * int64(stat.Bsize),
		FreeBytes:  int64(stat.Bavail) * int64(stat.Bsize),
	}, nil
}
