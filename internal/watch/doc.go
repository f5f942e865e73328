// SPDX-License-Identifier: MPL-2.0

// Package watch reports debounced file changes under a directory tree.
//
// Events for paths matching the watch globs are collected until the tree has
// been quiet for the debounce period, then handed to a callback in one batch.
// Callbacks never overlap: changes that arrive while one runs are delivered
// in the next batch.
package watch
