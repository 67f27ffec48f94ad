// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

// Package unpack lists and extracts zip archives.
//
// An archive is opened as a scoped [Archive] handle, a bounded [Listing] of its entries is
// written to the configured output and every entry is extracted to a destination directory
// through a [Target]. The destination can be the underlying OS ([TargetDisk]) or an in-memory
// filesystem ([TargetMemory]).
//
// Two calling conventions exist. [Unpack] returns every failure to the caller. [TryUnpack]
// reports a failure as a message on the configured output and returns false.
//
// Configuration is done using the [Config], adjusted with options in the option pattern style.
// [TelemetryData] is captured during the extraction and handed to a [TelemetryHook].
package unpack
