package session

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/davecgh/go-spew/spew"
	"github.com/manifold/lsptrace/pkg/daemon"
	"github.com/manifold/lsptrace/pkg/lsp"
	"github.com/manifold/lsptrace/pkg/misc/logging"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"github.com/spf13/afero"
)

// Script drives the server through the configured document and queries,
// printing diagnostics and results to Out.
type Script struct {
	Config *Config
	Server *Server
	Daemon *daemon.Daemon
	Log    logging.Logger
	Out    io.Writer

	mu  sync.Mutex
	err error
}

func (s *Script) InitializeDaemon() error {
	if s.Out == nil {
		s.Out = os.Stdout
	}
	s.Server.Client().OnDiagnostics(s.printDiagnostics)
	return nil
}

func (s *Script) Serve(ctx context.Context) {
	err := s.Run(ctx)
	if err != nil {
		logging.Error(s.Log, "[script]", err)
		s.mu.Lock()
		s.err = err
		s.mu.Unlock()
	}
	if s.Config.Watch && err == nil {
		logging.Info(s.Log, "[script] watching", s.Config.OpenPath())
		<-ctx.Done()
		return
	}
	s.Daemon.Terminate()
}

// Err is the error that ended the script, if any.
func (s *Script) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Run opens the document, applies the replacement and runs every query.
// The document is closed afterwards unless it is being watched.
func (s *Script) Run(ctx context.Context) error {
	cfg := s.Config
	if cfg.Open == "" {
		return nil
	}
	client := s.Server.Client()
	path := cfg.OpenPath()
	if _, err := client.Open(path); err != nil {
		return errors.Wrap(err, "open")
	}

	if cfg.Replace != "" {
		data, err := afero.ReadFile(s.fs(), cfg.ReplacePath())
		if err != nil {
			return errors.Wrap(err, "replace")
		}
		if err := client.Change(path, string(data)); err != nil {
			return errors.Wrap(err, "change")
		}
	}

	completions, _ := parsePositions(cfg.Completions)
	for _, pos := range completions {
		if err := s.query(ctx, func(ctx context.Context) error {
			list, err := client.Completion(ctx, path, pos.Line, pos.Col)
			if err != nil {
				return err
			}
			s.printCompletion(pos, list)
			return nil
		}); err != nil {
			return errors.Wrapf(err, "completion %s", pos)
		}
	}

	definitions, _ := parsePositions(cfg.Definitions)
	for _, pos := range definitions {
		if err := s.query(ctx, func(ctx context.Context) error {
			locs, err := client.Definition(ctx, path, pos.Line, pos.Col)
			if err != nil {
				return err
			}
			s.printDefinition(pos, locs)
			return nil
		}); err != nil {
			return errors.Wrapf(err, "definition %s", pos)
		}
	}

	signatures, _ := parsePositions(cfg.Signatures)
	for _, pos := range signatures {
		if err := s.query(ctx, func(ctx context.Context) error {
			help, err := client.SignatureHelp(ctx, path, pos.Line, pos.Col)
			if err != nil {
				return err
			}
			s.printSignature(pos, help)
			return nil
		}); err != nil {
			return errors.Wrapf(err, "signature %s", pos)
		}
	}

	if cfg.Tokens {
		if err := s.query(ctx, func(ctx context.Context) error {
			tokens, err := client.SemanticTokens(ctx, path)
			if err != nil {
				return err
			}
			s.printf("TOKENS %d\n", tokens.Count())
			return nil
		}); err != nil {
			return errors.Wrap(err, "tokens")
		}
	}

	if cfg.Watch {
		return nil
	}
	return errors.Wrap(client.CloseDocument(path), "close")
}

func (s *Script) query(ctx context.Context, fn func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, s.Config.Timeout)
	defer cancel()
	return fn(ctx)
}

func (s *Script) fs() afero.Fs {
	if s.Server.Fs != nil {
		return s.Server.Fs
	}
	return afero.NewOsFs()
}

func (s *Script) printf(format string, args ...interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintf(s.Out, format, args...)
}

func (s *Script) printDiagnostics(params lsp.PublishDiagnosticsParams) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintf(s.Out, "DIAG %s (%d)\n", params.URI, len(params.Diagnostics))
	if s.Config.Raw {
		spew.Fdump(s.Out, params.Diagnostics)
		return
	}
	for _, d := range params.Diagnostics {
		fmt.Fprintf(s.Out, "  %d:%d %s: %s\n",
			d.Range.Start.Line, d.Range.Start.Character, d.SeverityName(), d.Message)
	}
}

func (s *Script) printCompletion(pos Position, list *lsp.CompletionList) {
	names := lo.Map(list.Items, func(item lsp.CompletionItem, _ int) string {
		return item.Name()
	})
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintf(s.Out, "COMPLETION %s\n", pos)
	if s.Config.Raw {
		spew.Fdump(s.Out, list.Items)
		return
	}
	fmt.Fprintln(s.Out, names)
}

func (s *Script) printDefinition(pos Position, locs []lsp.Location) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintf(s.Out, "DEFINITION %s\n", pos)
	for _, loc := range locs {
		fmt.Fprintf(s.Out, "  %s:%d:%d\n", loc.URI, loc.Range.Start.Line, loc.Range.Start.Character)
	}
}

func (s *Script) printSignature(pos Position, help *lsp.SignatureHelp) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintf(s.Out, "SIGNATURE %s\n", pos)
	if help == nil {
		return
	}
	for _, sig := range help.Signatures {
		fmt.Fprintf(s.Out, "  %s\n", sig.Label)
	}
}
