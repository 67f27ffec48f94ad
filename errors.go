// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package unpack

import (
	"errors"
	"fmt"
)

var (
	// ErrOpenArchive is returned if the archive cannot be opened or its central
	// directory cannot be read.
	ErrOpenArchive = errors.New("cannot open archive")

	// ErrExtraction is returned if an entry of an opened archive cannot be
	// extracted to the destination.
	ErrExtraction = errors.New("extraction failed")

	// ErrMaxFilesExceeded indicates that the maximum number of files is exceeded.
	ErrMaxFilesExceeded = errors.New("maximum files exceeded")

	// ErrMaxExtractionSizeExceeded indicates that the maximum size is exceeded.
	ErrMaxExtractionSizeExceeded = errors.New("maximum extraction size exceeded")

	// ErrMaxInputSizeExceeded indicates that the archive is larger than the maximum input size.
	ErrMaxInputSizeExceeded = errors.New("maximum input size exceeded")

	// ErrUnsupportedFile indicates an entry type that cannot be extracted, e.g. a fifo
	// or a device. Denied symlinks are reported the same way.
	ErrUnsupportedFile = errors.New("unsupported file")
)

// unsupportedFile returns an error wrapping [ErrUnsupportedFile] for name.
func unsupportedFile(name string) error {
	return fmt.Errorf("%w: %s", ErrUnsupportedFile, name)
}
