// SPDX-License-Identifier: MPL-2.0

// Package process launches child processes and drives them interactively.
//
// A Launcher starts a command and exposes its standard input together with a
// single merged stdout/stderr stream. Three launchers are available:
//   - native: os/exec with stdout and stderr sharing one pipe
//   - pty: the child runs attached to a pseudo-terminal (creack/pty)
//   - virtual: the command line runs inside the embedded mvdan/sh interpreter
//
// An Execution is the caller's handle on a running child. The Consumer reads
// the child's output one rune at a time, feeds it to an interaction.Strategy,
// writes the strategy's answers back, and records every finished sentence on
// the Execution. Executor ties launching and consuming together:
//
//	exec := process.NewExecutor(
//		process.WithStrategy(strategy),
//		process.WithLauncher(process.NewNativeLauncher()),
//	)
//	result, err := exec.Run(ctx, command.Of("passwd"))
//
// The Consumer has no timeout of its own. Use AwaitTimeout, or cancel the
// context given to Execute, to bound how long a child may run.
//
// Daemon commands are not awaited. Once their interaction is finished they
// register a hook in the process-wide ShutdownRegistry; call Shutdown before
// the driving program exits to kill them.
package process
