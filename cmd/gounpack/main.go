// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package main

import "github.com/hashicorp/go-unpack/cmd"

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// main start go-unpack cli `gounpack`
func main() {
	cmd.Run(version, commit, date)
}
