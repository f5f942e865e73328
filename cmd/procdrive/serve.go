// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/procdrive/procdrive/internal/issue"
	"github.com/procdrive/procdrive/internal/process"
	"github.com/procdrive/procdrive/internal/sshserver"

	"github.com/spf13/cobra"
)

type serveOptions struct {
	host     string
	port     int
	dir      string
	token    string
	tokenTTL time.Duration
	session  string

	// started is called once the server accepts connections.
	started func(*sshserver.Server)
}

func newServeCommand(app *App) *cobra.Command {
	opts := &serveOptions{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve session files over SSH",
		Long: `Serve the session files of a directory over SSH.

Clients authenticate with the printed token as their password and name a
session as the SSH command. The session runs on this host; its output and
exit status are returned to the client. Without a command the available
sessions are listed.

` + SubtitleStyle.Render("Examples:") + `
  procdrive serve --dir ./sessions --port 2222
  ssh -p 2222 procdrive@127.0.0.1 deploy`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.serve(cmd.Context(), opts); err != nil {
				app.explain(err)
				return err
			}
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.host, "host", "127.0.0.1", "address to bind to")
	flags.IntVar(&opts.port, "port", 0, "port to listen on (0 picks a free port)")
	flags.StringVarP(&opts.dir, "dir", "C", ".", "directory holding <name>.cue session files")
	flags.StringVar(&opts.token, "token", "", "token clients must present (generated when empty)")
	flags.DurationVar(&opts.tokenTTL, "token-ttl", time.Hour, "lifetime of the token")
	flags.StringVar(&opts.session, "session", "", "restrict the token to one session")

	return cmd
}

// serve runs the session server until ctx is cancelled.
func (a *App) serve(ctx context.Context, opts *serveOptions) error {
	defer a.shutdown()

	timeout, err := a.cfg.TimeoutDuration()
	if err != nil {
		return serveError(err, opts.dir)
	}

	srv := sshserver.New(sshserver.Config{
		Host:       sshserver.HostAddress(opts.host),
		Port:       opts.port,
		SessionDir: opts.dir,
		TokenTTL:   opts.tokenTTL,
		Launcher:   process.LauncherKind(a.cfg.Launcher),
		LaunchOptions: process.LaunchOptions{
			InheritEnv:    a.cfg.Process.InheritEnv,
			DisableColors: a.cfg.Process.DisableColors,
			SpawnOnHost:   a.cfg.Process.SpawnOnHost,
		},
		Timeout:  timeout,
		Registry: a.Registry,
		Logger:   a.logger,
	})

	var token *sshserver.Token
	if opts.token != "" {
		token, err = srv.AddToken(sshserver.TokenValue(opts.token), opts.session, opts.tokenTTL)
	} else {
		token, err = srv.GenerateToken(opts.session)
	}
	if err != nil {
		return serveError(err, opts.dir)
	}

	if err := srv.Start(ctx); err != nil {
		return serveError(err, opts.dir)
	}
	defer func() {
		if err := srv.Stop(); err != nil {
			a.logger.Warn("stopping server", "error", err)
		}
	}()

	fmt.Fprintln(a.stdout, SuccessStyle.Render("Serving ")+opts.dir+" on "+CmdStyle.Render(srv.Address()))
	if opts.token == "" {
		fmt.Fprintln(a.stdout, "Token: "+token.Value.String())
	}
	if opts.started != nil {
		opts.started(srv)
	}

	select {
	case <-ctx.Done():
		return nil
	case err, ok := <-srv.Err():
		if !ok {
			return nil
		}
		return serveError(err, opts.dir)
	}
}

func serveError(err error, dir string) error {
	return issue.NewErrorContext().
		WithOperation("serve sessions").
		WithResource(dir).
		WithIssue(issue.ServeFailedId).
		Wrap(err).
		BuildError()
}
