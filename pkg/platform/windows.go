// SPDX-License-Identifier: MPL-2.0

package platform

import "strings"

// windowsReservedNames are device names Windows reserves regardless of
// extension.
var windowsReservedNames = map[string]bool{
	"CON": true, "PRN": true, "AUX": true, "NUL": true,
	"COM1": true, "COM2": true, "COM3": true, "COM4": true,
	"COM5": true, "COM6": true, "COM7": true, "COM8": true, "COM9": true,
	"LPT1": true, "LPT2": true, "LPT3": true, "LPT4": true,
	"LPT5": true, "LPT6": true, "LPT7": true, "LPT8": true, "LPT9": true,
}

// IsWindowsReservedName reports whether a single file name is reserved on
// Windows. Everything from the first dot on is ignored, as is trailing
// whitespace, so "nul.tar.gz" and "CON " are reserved too.
func IsWindowsReservedName(name string) bool {
	base, _, _ := strings.Cut(name, ".")
	return windowsReservedNames[strings.ToUpper(strings.TrimRight(base, " "))]
}

// HasWindowsReservedElement reports whether any element of a slash or
// backslash separated path is a reserved name.
func HasWindowsReservedElement(path string) bool {
	for elem := range strings.FieldsFuncSeq(path, func(r rune) bool { return r == '/' || r == '\\' }) {
		if IsWindowsReservedName(elem) {
			return true
		}
	}
	return false
}
