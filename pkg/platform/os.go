// SPDX-License-Identifier: MPL-2.0

package platform

import "runtime"

// runtime.GOOS values procdrive branches on.
const (
	Windows = "windows"
	Darwin  = "darwin"
	Linux   = "linux"
)

// IsWindows reports whether procdrive is running on Windows, where archive
// entries with reserved device names cannot be created.
func IsWindows() bool { return runtime.GOOS == Windows }
