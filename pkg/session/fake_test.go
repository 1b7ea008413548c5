package session

import (
	"fmt"
	"io"
	"os"
	"testing"

	"github.com/manifold/lsptrace/pkg/jsonrpc"
	"github.com/manifold/lsptrace/pkg/lsp"
	"github.com/stretchr/testify/require"
)

const (
	helperEnv = "LSPTRACE_HELPER_SERVER"
	lingerEnv = "LSPTRACE_HELPER_LINGER"
)

// methodExiting is sent by the fake server right before it exits.
const methodExiting = "fake/exiting"

// TestHelperServer is not a test: it is the language server the session
// tests start, by running the test binary again with helperEnv set.
func TestHelperServer(t *testing.T) {
	if os.Getenv(helperEnv) != "1" {
		return
	}
	fmt.Fprintln(os.Stderr, "fake server ready")
	fake := &fakeServer{
		conn:   jsonrpc.NewConn(os.Stdin, os.Stdout, nil),
		linger: os.Getenv(lingerEnv) == "1",
	}
	fake.serve()
	os.Exit(0)
}

// helperConfig returns a config starting TestHelperServer in root.
func helperConfig(t *testing.T, root string) *Config {
	exe, err := os.Executable()
	require.Nil(t, err)
	cfg := DefaultConfig()
	cfg.Server = exe
	cfg.ServerArgs = []string{"-test.run=^TestHelperServer$"}
	cfg.ServerEnv = []string{helperEnv + "=1"}
	cfg.RootDir = root
	return cfg
}

// fakeServer answers just enough of the protocol for a session. Full
// document texts it receives with didChange are passed on to changes.
// With linger set it ignores exit.
type fakeServer struct {
	conn    *jsonrpc.Conn
	changes chan string
	linger  bool
}

func pipeServer() (*jsonrpc.Conn, *fakeServer) {
	cr, sw := io.Pipe()
	sr, cw := io.Pipe()
	fake := &fakeServer{
		conn:    jsonrpc.NewConn(sr, sw, nil),
		changes: make(chan string, 16),
	}
	go fake.serve()
	return jsonrpc.NewConn(cr, cw, nil), fake
}

func (f *fakeServer) serve() {
	for msg := range f.conn.Incoming() {
		switch msg.Method {
		case lsp.MethodInitialize:
			f.conn.Send(jsonrpc.NewResponse(msg.ID, map[string]interface{}{
				"capabilities": map[string]interface{}{
					"completionProvider": map[string]interface{}{
						"triggerCharacters": []string{"."},
					},
					"definitionProvider": true,
				},
			}))
		case lsp.MethodDidOpen:
			var params lsp.DidOpenTextDocumentParams
			jsonrpc.DecodeValue(msg.Params, &params)
			f.conn.Send(jsonrpc.NewNotification(lsp.MethodPublishDiagnostics, lsp.PublishDiagnosticsParams{
				URI:     params.TextDocument.URI,
				Version: params.TextDocument.Version,
				Diagnostics: []lsp.Diagnostic{{
					Range:    lsp.Range{Start: lsp.Position{Line: 4, Character: 2}},
					Severity: lsp.SeverityError,
					Message:  "expected unqualified-id",
				}},
			}))
		case lsp.MethodDidChange:
			var params lsp.DidChangeTextDocumentParams
			jsonrpc.DecodeValue(msg.Params, &params)
			if f.changes != nil && len(params.ContentChanges) > 0 {
				f.changes <- params.ContentChanges[0].Text
			}
		case lsp.MethodCompletion:
			f.conn.Send(jsonrpc.NewResponse(msg.ID, lsp.CompletionList{
				Items: []lsp.CompletionItem{
					{Label: " square(int a)", FilterText: "square"},
					{Label: "test"},
				},
			}))
		case lsp.MethodDefinition:
			var params lsp.TextDocumentPositionParams
			jsonrpc.DecodeValue(msg.Params, &params)
			f.conn.Send(jsonrpc.NewResponse(msg.ID, lsp.Location{
				URI:   params.TextDocument.URI,
				Range: lsp.Range{Start: lsp.Position{Line: 1, Character: 6}},
			}))
		case lsp.MethodShutdown:
			f.conn.Send(jsonrpc.NewResponse(msg.ID, nil))
		case lsp.MethodExit:
			if f.linger {
				continue
			}
			f.conn.Send(jsonrpc.NewNotification(methodExiting, nil))
			f.conn.Close()
			return
		default:
			if msg.IsRequest() {
				f.conn.Send(jsonrpc.NewResponse(msg.ID, nil))
			}
		}
	}
}
