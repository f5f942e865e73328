// SPDX-License-Identifier: MPL-2.0

// Package testutil provides helper functions for tests that handle errors
// appropriately, reducing boilerplate and ensuring consistent error handling.
//
// Common helpers include environment variable management (MustSetenv, SetConfigHome),
// file operations (MustMkdirAll, MustWriteFile), waiting on asynchronous
// state (Eventually, MustReceive), and skips for tests that spawn real processes
// (RequireProcesses).
package testutil
