// SPDX-License-Identifier: MPL-2.0

// Package archive extracts zip and tar archives into a directory, optionally
// rewriting entry names on the way. It is used to unpack tool distributions
// before driving the tools they contain.
package archive
