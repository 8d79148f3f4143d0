// Package file wraps the os file-opening calls so that callers have a
// single place to add platform-specific behaviour. On every platform
// these are plain pass-throughs, and IsReserved makes no check; it exists
// only so calling code doesn't need a build-tag switch of its own.
package file

import "os"

// Create is like os.Create.
func Create(name string) (*os.File, error) {
	return os.Create(name)
}

// Open is like os.Open.
func Open(name string) (*os.File, error) {
	return os.Open(name)
}

// OpenFile is like os.OpenFile.
func OpenFile(name string, flag int, perm os.FileMode) (*os.File, error) {
	return os.OpenFile(name, flag, perm)
}

// IsReserved always returns nil: reserved device names are not checked on
// any platform, Windows included.
func IsReserved(name string) error {
	return nil
}
