// SPDX-License-Identifier: MPL-2.0

package platform

import (
	"os"
	"slices"
	"sync"
)

const (
	// SandboxNone indicates no sandbox environment detected.
	SandboxNone SandboxType = ""
	// SandboxFlatpak indicates a Flatpak sandbox environment.
	SandboxFlatpak SandboxType = "flatpak"
	// SandboxSnap indicates a Snap sandbox environment.
	SandboxSnap SandboxType = "snap"
)

// SandboxType identifies the type of application sandbox, if any.
type SandboxType string

// detectOnce caches the sandbox of the running process; it cannot change.
// detectSandboxFrom must not panic: sync.OnceValue re-panics on every call.
var detectOnce = sync.OnceValue(func() SandboxType {
	return detectSandboxFrom(os.Getenv, statFile)
})

// DetectSandbox returns the sandbox the current process runs in. Flatpak is
// recognized by /.flatpak-info, Snap by the SNAP_NAME variable.
func DetectSandbox() SandboxType {
	return detectOnce()
}

// HostSpawnPrefix returns the tokens that run a program on the host from
// inside the given sandbox, or nil when there is no way out. Only Flatpak
// offers one; strict snaps cannot reach the host.
func HostSpawnPrefix(st SandboxType) []string {
	if st == SandboxFlatpak {
		return []string{"flatpak-spawn", "--host"}
	}
	return nil
}

// HostCommand rewrites tokens so that the program runs on the host when the
// current process is sandboxed. Outside a sandbox tokens are returned as is.
func HostCommand(tokens []string) []string {
	return hostCommandFor(DetectSandbox(), tokens)
}

func hostCommandFor(st SandboxType, tokens []string) []string {
	prefix := HostSpawnPrefix(st)
	if prefix == nil {
		return tokens
	}
	return append(slices.Clip(prefix), tokens...)
}

// detectSandboxFrom takes its lookups as parameters so tests can fake them.
func detectSandboxFrom(getenv func(string) string, stat func(string) error) SandboxType {
	// Flatpak takes precedence; the file is always present inside one.
	if err := stat("/.flatpak-info"); err == nil {
		return SandboxFlatpak
	}
	if getenv("SNAP_NAME") != "" {
		return SandboxSnap
	}
	return SandboxNone
}

func statFile(path string) error {
	_, err := os.Stat(path)
	return err
}
