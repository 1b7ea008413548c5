package main

import (
	"context"
	"io"

	"github.com/manifold/lsptrace/pkg/console"
	"github.com/manifold/lsptrace/pkg/daemon"
	"github.com/manifold/lsptrace/pkg/session"
	"github.com/spf13/cobra"
)

// `lsptrace session` command
func sessionCmd() *cobra.Command {
	cfg := session.DefaultConfig()
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Runs a scripted session against a language server",
		Long: "Starts the language server in the root dir, opens a file, optionally replaces its content " +
			"and runs the requested queries, printing diagnostics and results.",
		Args: cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fatal(runSession(context.Background(), cfg, cmd.OutOrStdout()))
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&cfg.Server, "server", cfg.Server, "language server binary (env "+session.ServerEnv+")")
	flags.StringSliceVar(&cfg.ServerArgs, "server-arg", nil, "argument passed to the language server")
	flags.StringVarP(&cfg.RootDir, "root", "r", "", "workspace root directory")
	flags.StringVar(&cfg.LanguageID, "language", cfg.LanguageID, "language id of opened documents")
	flags.StringVarP(&cfg.Open, "open", "o", "", "file to open")
	flags.StringVar(&cfg.Replace, "replace", "", "file whose content replaces the opened file's")
	flags.StringArrayVarP(&cfg.Completions, "complete", "c", nil, "request completion at line:col")
	flags.StringArrayVar(&cfg.Definitions, "definition", nil, "request the definition at line:col")
	flags.StringArrayVar(&cfg.Signatures, "signature", nil, "request signature help at line:col")
	flags.BoolVar(&cfg.Tokens, "tokens", false, "request semantic tokens of the opened file")
	flags.StringVarP(&cfg.TracePath, "trace", "t", "", "write the server traffic to this binary log")
	flags.BoolVar(&cfg.AutoTrace, "auto-trace", false, "write the server traffic to a generated log name")
	flags.BoolVarP(&cfg.Watch, "watch", "w", false, "keep running and resend the file when it changes")
	flags.BoolVar(&cfg.Raw, "raw", false, "dump results instead of summarizing them")
	flags.DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "timeout for each request")
	flags.BoolVarP(&cfg.Debug, "debug", "d", false, "log debug output")
	return cmd
}

func runSession(ctx context.Context, cfg *session.Config, out io.Writer) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	d, script := newSession(cfg, out)
	if err := d.Run(ctx); err != nil {
		return err
	}
	return script.Err()
}

func newSession(cfg *session.Config, out io.Writer) (*daemon.Daemon, *session.Script) {
	script := &session.Script{Config: cfg, Out: out}
	d := daemon.New(
		console.New("lsptrace", cfg.Debug),
		&session.Trace{Config: cfg},
		&session.Server{Config: cfg},
		&session.Watcher{Config: cfg},
		script,
	)
	return d, script
}
