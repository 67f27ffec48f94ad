// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

//go:build linux && 386

package unpack

import (
	"time"

	"golang.org/x/sys/unix"
)

// lchtimes modifies the access and modified timestamps on a target path.
// Timeval fields are 32 bit wide on linux/386.
func lchtimes(path string, atime, mtime time.Time) error {
	return unix.Lutimes(path, []unix.Timeval{
		{Sec: int32(atime.Unix()), Usec: int32(atime.Nanosecond() / 1e3)},
		{Sec: int32(mtime.Unix()), Usec: int32(mtime.Nanosecond() / 1e3)}},
	)
}

// canMaintainSymlinkTimestamps see target_disk_unix.go
const canMaintainSymlinkTimestamps = true
