//go:build !(darwin || linux || freebsd || netbsd || openbsd || dragonfly || windows)

package store

import "os"

// Platforms without advisory locks only get in-process serialization.
func tryLock(*os.File) (bool, error) {
	return true, nil
}

func unlock(*os.File) error {
	return nil
}
