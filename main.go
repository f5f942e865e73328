// SPDX-License-Identifier: MPL-2.0

// procdrive drives interactive command-line programs.
package main

import cmd "github.com/procdrive/procdrive/cmd/procdrive"

func main() {
	cmd.Execute()
}
