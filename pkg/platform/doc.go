// SPDX-License-Identifier: MPL-2.0

// Package platform provides cross-platform compatibility utilities: OS name
// constants, detection of application sandboxes whose programs must be
// spawned on the host, and Windows reserved file names.
package platform
