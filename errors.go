// Copyright 2015 Google Inc. All Rights Reserved.
// Author: jacobsa@google.com (Aaron Jacobs)

package kvfs

import (
	"fmt"
	"syscall"
)

const (
	// Error kinds corresponding to kernel error numbers. Every error
	// returned by a file system method for a path-level condition is an
	// *Error carrying one of these.
	EIO       = syscall.EIO
	ENOENT    = syscall.ENOENT
	EEXIST    = syscall.EEXIST
	ENOTDIR   = syscall.ENOTDIR
	EISDIR    = syscall.EISDIR
	EPERM     = syscall.EPERM
	EBUSY     = syscall.EBUSY
	ENOTEMPTY = syscall.ENOTEMPTY
)

// An Error records the operation, the offending path, and the error
// kind, in the manner of os.PathError.
type Error struct {
	Op    string
	Path  string
	Errno syscall.Errno
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s %s: %s", e.Op, e.Path, e.Errno.Error())
}

func (e *Error) Unwrap() error {
	return e.Errno
}

// Errno returns the error kind carried by err, or zero if err is not an
// *Error produced by this package.
func Errno(err error) syscall.Errno {
	if typed, ok := err.(*Error); ok {
		return typed.Errno
	}

	return 0
}
