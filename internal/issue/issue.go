// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"strings"

	"github.com/charmbracelet/glamour"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

type Id int

const (
	ProgramNotFoundId Id = iota + 1
	LaunchFailedId
	StrategyFailedId
	TimeoutId
	ConfigLoadFailedId
	SessionInvalidId
	ArchiveExtractFailedId
	PermissionDeniedId
	PTYUnsupportedId
	ServeFailedId
)

type MarkdownMsg string

type HttpLink string

type Renderer interface {
	Render(in string, stylePath string) (string, error)
}

type Issue struct {
	id       Id          // ID used to lookup the issue
	mdMsg    MarkdownMsg // Markdown text that will be rendered
	docLinks []HttpLink
	extLinks []HttpLink // external links that might be useful for the user
}

func (i *Issue) Id() Id {
	return i.id
}

func (i *Issue) MarkdownMsg() MarkdownMsg {
	return i.mdMsg
}

func (i *Issue) DocLinks() []HttpLink {
	return slices.Clone(i.docLinks)
}

func (i *Issue) ExtLinks() []HttpLink {
	return slices.Clone(i.extLinks)
}

// Render renders the issue's Markdown, followed by its links, for a terminal.
// stylePath is a glamour style name ("dark", "light", "notty") or a JSON file.
func (i *Issue) Render(stylePath string) (string, error) {
	var md strings.Builder
	md.WriteString(string(i.mdMsg))
	if len(i.docLinks) > 0 || len(i.extLinks) > 0 {
		md.WriteString("\n\n## See also\n")
		for _, links := range [][]HttpLink{i.docLinks, i.extLinks} {
			for _, link := range links {
				md.WriteString("- <" + string(link) + ">\n")
			}
		}
	}
	return render(md.String(), stylePath)
}

var (
	render = glamour.Render

	programNotFoundIssue = &Issue{
		id: ProgramNotFoundId,
		mdMsg: `
# Program not found

The program you asked procdrive to drive could not be found.

## Things you can try
- Check the spelling of the first token; it is the program name.
- Make sure the program is on your ` + "`PATH`" + `, or pass an absolute path.
- If you use a clean environment (` + "`process.inherit_env: false`" + `), remember that
  ` + "`PATH`" + ` is still resolved from procdrive's own environment, but the child
  will not see it.`,
		extLinks: []HttpLink{"https://pkg.go.dev/os/exec#LookPath"},
	}

	launchFailedIssue = &Issue{
		id: LaunchFailedId,
		mdMsg: `
# The process could not be started

procdrive failed to start the child process. No output was captured.

## Things you can try
- Verify the working directory exists (` + "`--dir`" + `).
- Check that the program is executable:
~~~
$ ls -l $(command -v <program>)
~~~
- Try another launcher: ` + "`--launcher native`" + `, ` + "`pty`" + ` or ` + "`virtual`" + `.`,
	}

	strategyFailedIssue = &Issue{
		id: StrategyFailedId,
		mdMsg: `
# The interaction failed

An answer rule or output filter failed while reading the program's output.
The process was terminated; output captured so far is still reported.

## Things you can try
- Check your ` + "`answers`" + ` and ` + "`outputs`" + ` patterns. They must match the
  whole sentence, e.g. ` + "`Password: `" + ` including the trailing space.
- Run with ` + "`--verbose`" + ` to see every sentence as it is recognized.`,
	}

	timeoutIssue = &Issue{
		id: TimeoutId,
		mdMsg: `
# The program did not finish in time

procdrive terminated the program after the configured timeout.

## Things you can try
- Raise the limit with ` + "`--timeout 5m`" + ` or ` + "`timeout`" + ` in your config.
- A program waiting for input it never gets looks like a hang. Add an answer
  for its prompt, or run with ` + "`--verbose`" + ` to see the last sentence.`,
	}

	configLoadFailedIssue = &Issue{
		id: ConfigLoadFailedId,
		mdMsg: `
# Failed to load configuration

Your ` + "`config.cue`" + ` could not be read or did not match the schema.

## Things you can try
- Show the effective configuration:
~~~
$ procdrive config show
~~~
- Recreate the file with defaults:
~~~
$ procdrive config init --force
~~~`,
	}

	sessionInvalidIssue = &Issue{
		id: SessionInvalidId,
		mdMsg: `
# Invalid session file

The session file did not match the expected structure.

## Example session
~~~cue
command: ["passwd"]
launcher: "pty"
answers: [
  {when: "Current password: ", reply: "old\n"},
  {when: "New password: ", reply: "new\n"},
  {when: "Retype new password: ", reply: "new\n", terminate: true},
]
outputs: [".*"]
~~~`,
	}

	archiveExtractFailedIssue = &Issue{
		id: ArchiveExtractFailedId,
		mdMsg: `
# Failed to extract archive

## Things you can try
- Supported formats are ` + "`.zip`" + `, ` + "`.tar`" + `, ` + "`.tar.gz`" + `/` + "`.tgz`" + ` and ` + "`.tar.zst`" + `.
- Entries that would land outside the destination are rejected; inspect the
  archive with ` + "`tar -tvf`" + ` or ` + "`unzip -l`" + `.
- Check ` + "`--remap`" + ` patterns; they are regular expressions.`,
	}

	permissionDeniedIssue = &Issue{
		id: PermissionDeniedId,
		mdMsg: `
# Permission denied

procdrive could not access a file or execute a program.

## Things you can try
- Make the program executable:
~~~
$ chmod +x ./program
~~~
- Check the permissions of the working and destination directories.`,
	}

	ptyUnsupportedIssue = &Issue{
		id: PTYUnsupportedId,
		mdMsg: `
# Pseudo-terminals are not supported here

The ` + "`pty`" + ` launcher needs a Unix-like system.

## Things you can try
- Use ` + "`--launcher native`" + ` or ` + "`--launcher virtual`" + `.`,
	}

	serveFailedIssue = &Issue{
		id: ServeFailedId,
		mdMsg: `
# Failed to start the session server

## Things you can try
- Pick another port, or let the system choose one:
~~~
$ procdrive serve --port 0
~~~
- Make sure the sessions directory exists and is readable.
- Bind to ` + "`127.0.0.1`" + ` unless remote hosts must connect.`,
	}

	issues = map[Id]*Issue{
		programNotFoundIssue.Id():      programNotFoundIssue,
		launchFailedIssue.Id():         launchFailedIssue,
		strategyFailedIssue.Id():       strategyFailedIssue,
		timeoutIssue.Id():              timeoutIssue,
		configLoadFailedIssue.Id():     configLoadFailedIssue,
		sessionInvalidIssue.Id():       sessionInvalidIssue,
		archiveExtractFailedIssue.Id(): archiveExtractFailedIssue,
		permissionDeniedIssue.Id():     permissionDeniedIssue,
		ptyUnsupportedIssue.Id():       ptyUnsupportedIssue,
		serveFailedIssue.Id():         serveFailedIssue,
	}
)

// Values returns every catalog entry ordered by id.
func Values() []*Issue {
	ids := maps.Keys(issues)
	slices.Sort(ids)
	out := make([]*Issue, len(ids))
	for i, id := range ids {
		out[i] = issues[id]
	}
	return out
}

func Get(id Id) *Issue {
	return issues[id]
}
