// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package unpack

import (
	"bytes"
	"fmt"
	"io"
)

// Listing is a bounded preview of the entry names of an archive.
type Listing struct {
	// Total is the number of entries in the archive
	Total int `json:"total"`

	// Preview holds the first names in central directory order
	Preview []string `json:"preview"`

	// Remaining is the number of names not part of Preview
	Remaining int `json:"remaining"`
}

// NewListing creates a [Listing] showing the first limit names. A limit <= 0 shows all names.
func NewListing(names []string, limit int) Listing {
	shown := names
	if limit > 0 && len(names) > limit {
		shown = names[:limit]
	}
	preview := make([]string, len(shown))
	copy(preview, shown)
	return Listing{
		Total:     len(names),
		Preview:   preview,
		Remaining: len(names) - len(preview),
	}
}

// WriteTo writes the human-readable report to w. It implements [io.WriterTo].
//
//	Found 12 files in archive:
//	  index.html
//	  ...
//	  ... and 2 more files
func (l Listing) WriteTo(w io.Writer) (int64, error) {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "Found %d files in archive:\n", l.Total)
	for _, name := range l.Preview {
		fmt.Fprintf(&buf, "  %s\n", name)
	}
	if l.Remaining > 0 {
		fmt.Fprintf(&buf, "  ... and %d more files\n", l.Remaining)
	}
	return buf.WriteTo(w)
}

// String returns the report as a string.
func (l Listing) String() string {
	var buf bytes.Buffer
	l.WriteTo(&buf)
	return buf.String()
}
