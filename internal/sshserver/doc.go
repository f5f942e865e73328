// SPDX-License-Identifier: MPL-2.0

// Package sshserver exposes a directory of session files over SSH. A client
// authenticates with a token as its password and names a session as the SSH
// command; the session runs on the server and its output, filtered by the
// session's strategy, is streamed back with the program's exit status.
package sshserver
