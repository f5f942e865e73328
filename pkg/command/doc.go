// SPDX-License-Identifier: MPL-2.0

// Package command provides the immutable Command value describing a program
// invocation and the Builder used to stage its tokens.
//
// A Command is an ordered list of tokens. The first token is the program name,
// the remaining tokens are its arguments. Commands are produced by
// Builder.Build, which always returns a fresh snapshot: later changes to the
// builder never leak into a Command built earlier.
//
//	cmd := command.NewBuilder().
//		Add("git", "commit").
//		AddTokenized(`-m "initial import"`).
//		Build()
//
//	cmd.ProgramName() // "git"
//	cmd.Args()        // ["commit", "-m", "initial import"]
//
// AddTokenized understands double quotes only. It does not expand variables,
// so `"${HOME}"` yields the literal token ${HOME}.
package command
