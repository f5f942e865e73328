// SPDX-License-Identifier: MPL-2.0

// Package session loads session files: CUE documents describing a complete
// interactive run. A session names the command to start, the launcher and
// environment to start it with, and the answers to give to its prompts.
//
//	command: ["ssh-keygen", "-t", "ed25519", "-f", "id_test"]
//	answers: [
//		{when: "Enter passphrase.*: ", reply: ""},
//		{when: "Enter same passphrase again: ", reply: ""},
//	]
//
// Files are validated against an embedded schema (session_schema.cue) and
// converted into the values internal/process consumes.
package session
