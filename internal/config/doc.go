// SPDX-License-Identifier: MPL-2.0

// Package config handles application configuration using Viper with CUE as the file format.
//
// Configuration is loaded from ~/.config/procdrive/config.cue (or XDG equivalent on Linux,
// ~/Library/Application Support/procdrive/config.cue on macOS, %APPDATA%\procdrive\config.cue
// on Windows), falling back to ./config.cue. PROCDRIVE_* environment variables override
// file values, e.g. PROCDRIVE_LAUNCHER=pty or PROCDRIVE_OUTPUT_QUIET=true.
//
// Configuration validation is performed against a CUE schema (config_schema.cue) to ensure
// type safety and provide clear error messages for invalid configurations.
package config
