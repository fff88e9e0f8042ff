package psrfits

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
)

// FileName returns the physical file name for sequence number num of base.
func FileName(base string, num int) string {
	return fmt.Sprintf("%s_%04d.fits", base, num)
}

// SplitBase splits a physical file name such as "obs_55529_0001.fits" into its
// base ("obs_55529") and sequence number (1). Only names ending in ".fits"
// carry a sequence number; anything else, including a bare base name such as
// "obs_55529", returns the name minus any ".fits" extension and 0.
func SplitBase(name string) (string, int) {
	root, ok := strings.CutSuffix(name, ".fits")
	if !ok {
		return name, 0
	}
	i := strings.LastIndexByte(root, '_')
	if i < 0 || i == len(root)-1 {
		return root, 0
	}
	num, err := strconv.Atoi(root[i+1:])
	if err != nil || num < 0 {
		return root, 0
	}
	return root[:i], num
}

// OutputBase places base's final element inside dir. An empty dir keeps base.
func OutputBase(dir, base string) string {
	if dir == "" {
		return base
	}
	return filepath.Join(dir, filepath.Base(base))
}
