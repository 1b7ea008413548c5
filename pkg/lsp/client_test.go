package lsp

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/manifold/lsptrace/pkg/jsonrpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const mainSource = `class Base
{
public:
	int square(int a) { return a*a; }
};
`

// fakeServer is the server end of a client connection.
type fakeServer struct {
	t    *testing.T
	conn *jsonrpc.Conn
}

func (s *fakeServer) next() *jsonrpc.Inbound {
	s.t.Helper()
	select {
	case msg, ok := <-s.conn.Incoming():
		require.True(s.t, ok, "client hung up")
		return msg
	case <-time.After(5 * time.Second):
		s.t.Fatal("timed out waiting for the client")
	}
	return nil
}

func (s *fakeServer) expect(method string) *jsonrpc.Inbound {
	s.t.Helper()
	msg := s.next()
	require.Equal(s.t, method, msg.Method)
	return msg
}

func (s *fakeServer) reply(req *jsonrpc.Inbound, result interface{}) {
	s.t.Helper()
	require.Nil(s.t, s.conn.Send(jsonrpc.NewResponse(req.ID, result)))
}

func (s *fakeServer) notify(method string, params interface{}) {
	s.t.Helper()
	require.Nil(s.t, s.conn.Send(jsonrpc.NewNotification(method, params)))
}

func setup(t *testing.T) (*Client, *fakeServer, func()) {
	cr, sw := io.Pipe()
	sr, cw := io.Pipe()
	clientConn := jsonrpc.NewConn(cr, cw, nil)
	serverConn := jsonrpc.NewConn(sr, sw, nil)

	fs := memFS(t, map[string]string{
		"/ws/main.cpp":  mainSource,
		"/ws/cmain.cpp": mainSource + "int main() { Base b; b. }\n",
	})
	client := NewClient(clientConn, NewStore(fs))
	server := &fakeServer{t: t, conn: serverConn}
	return client, server, func() {
		clientConn.Close()
		serverConn.Close()
	}
}

func params(t *testing.T, msg *jsonrpc.Inbound) map[string]interface{} {
	t.Helper()
	p, ok := msg.Params.(map[string]interface{})
	require.True(t, ok, "params is %T", msg.Params)
	return p
}

func initialize(t *testing.T, client *Client, server *fakeServer) {
	errs := make(chan error, 1)
	go func() { errs <- client.Initialize(context.Background(), "/ws") }()

	req := server.expect(MethodInitialize)
	p := params(t, req)
	assert.Equal(t, "file:///ws", p["rootUri"])
	assert.NotZero(t, p["processId"])
	assert.Equal(t, map[string]interface{}{
		"textDocument": map[string]interface{}{
			"completion": map[string]interface{}{
				"completionItem": map[string]interface{}{
					"documentationFormat": []interface{}{"plaintext"},
				},
			},
		},
	}, p["capabilities"])

	server.reply(req, map[string]interface{}{
		"capabilities": map[string]interface{}{
			"hoverProvider": true,
			"completionProvider": map[string]interface{}{
				"triggerCharacters": []interface{}{".", ">"},
			},
			"semanticTokensProvider": map[string]interface{}{
				"full": true,
				"legend": map[string]interface{}{
					"tokenTypes":     []interface{}{"class", "function"},
					"tokenModifiers": []interface{}{},
				},
			},
		},
	})
	server.expect(MethodInitialized)
	require.Nil(t, <-errs)
}

func TestInitialize(t *testing.T) {
	client, server, teardown := setup(t)
	defer teardown()

	initialize(t, client, server)

	caps := client.Capabilities()
	assert.True(t, Supports(caps.HoverProvider))
	assert.False(t, Supports(caps.DefinitionProvider))
	require.NotNil(t, caps.CompletionProvider)
	assert.Equal(t, []string{".", ">"}, caps.CompletionProvider.TriggerCharacters)
	require.NotNil(t, caps.SemanticTokensProvider)
	assert.Equal(t, []string{"class", "function"}, caps.SemanticTokensProvider.Legend.TokenTypes)
	assert.Contains(t, client.RawCapabilities(), "hoverProvider")
	assert.Empty(t, client.Pending())
}

func TestDocumentSync(t *testing.T) {
	client, server, teardown := setup(t)
	defer teardown()

	t.Run("open", func(t *testing.T) {
		go client.Open("/ws/main.cpp")
		msg := server.expect(MethodDidOpen)
		assert.False(t, msg.HasID())
		doc := params(t, msg)["textDocument"].(map[string]interface{})
		assert.Equal(t, "file:///ws/main.cpp", doc["uri"])
		assert.Equal(t, "cpp", doc["languageId"])
		assert.Equal(t, float64(1), doc["version"])
		assert.Equal(t, mainSource, doc["text"])
	})

	t.Run("change", func(t *testing.T) {
		go client.Change("/ws/main.cpp", "// new\n")
		msg := server.expect(MethodDidChange)
		p := params(t, msg)
		assert.Equal(t, map[string]interface{}{
			"uri":     "file:///ws/main.cpp",
			"version": float64(2),
		}, p["textDocument"])
		assert.Equal(t, []interface{}{
			map[string]interface{}{"text": "// new\n"},
		}, p["contentChanges"])
	})

	t.Run("close", func(t *testing.T) {
		go client.CloseDocument("/ws/main.cpp")
		msg := server.expect(MethodDidClose)
		assert.Equal(t, map[string]interface{}{"uri": "file:///ws/main.cpp"}, params(t, msg)["textDocument"])
	})

	t.Run("missing document", func(t *testing.T) {
		_, err := client.Open("/ws/missing.cpp")
		assert.NotNil(t, err)
	})
}

func TestTransactions(t *testing.T) {
	client, server, teardown := setup(t)
	defer teardown()

	t.Run("async completion", func(t *testing.T) {
		got := make(chan *jsonrpc.Inbound, 1)
		go func() {
			assert.Nil(t, client.RequestCompletion("/ws/cmain.cpp", 5, 22, func(msg *jsonrpc.Inbound) {
				got <- msg
			}))
		}()

		req := server.expect(MethodCompletion)
		p := params(t, req)
		assert.Equal(t, map[string]interface{}{"line": float64(5), "character": float64(22)}, p["position"])
		assert.Equal(t, map[string]interface{}{"uri": "file:///ws/cmain.cpp"}, p["textDocument"])

		server.reply(req, map[string]interface{}{
			"isIncomplete": false,
			"items": []interface{}{
				map[string]interface{}{"label": " square(int a)", "filterText": "square", "kind": float64(2)},
			},
		})
		msg := <-got
		list, err := DecodeCompletion(msg.Result)
		require.Nil(t, err)
		require.Len(t, list.Items, 1)
		assert.Equal(t, "square", list.Items[0].Name())
		assert.Equal(t, 2, list.Items[0].Kind)
	})

	t.Run("ids increase", func(t *testing.T) {
		go client.Request("a", nil, nil)
		first := server.expect("a")
		go client.Request("b", nil, nil)
		second := server.expect("b")

		a, _ := first.IntID()
		b, _ := second.IntID()
		assert.Equal(t, a+1, b)
		assert.Equal(t, []int64{a, b}, client.Pending())

		// unknown ids are ignored
		server.reply(&jsonrpc.Inbound{ID: float64(999)}, nil)
		server.reply(second, nil)
		server.reply(first, nil)
		assert.Eventually(t, func() bool { return len(client.Pending()) == 0 }, time.Second, 5*time.Millisecond)
	})

	t.Run("error response", func(t *testing.T) {
		errs := make(chan error, 1)
		go func() {
			_, err := client.Call(context.Background(), "bogus", nil)
			errs <- err
		}()
		req := server.expect("bogus")
		require.Nil(t, server.conn.Send(jsonrpc.NewErrorResponse(req.ID, &jsonrpc.Error{
			Code:    jsonrpc.MethodNotFound,
			Message: "no",
		})))
		err := <-errs
		rpcErr, ok := err.(*jsonrpc.Error)
		require.True(t, ok)
		assert.Equal(t, jsonrpc.MethodNotFound, rpcErr.Code)
	})

	t.Run("canceled call", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		errs := make(chan error, 1)
		go func() {
			_, err := client.Call(ctx, "slow", nil)
			errs <- err
		}()
		server.expect("slow")
		cancel()
		assert.Equal(t, context.Canceled, <-errs)
		assert.Empty(t, client.Pending())
	})
}

func TestSyncQueries(t *testing.T) {
	client, server, teardown := setup(t)
	defer teardown()
	ctx := context.Background()

	t.Run("completion array", func(t *testing.T) {
		done := make(chan *CompletionList, 1)
		go func() {
			list, err := client.Completion(ctx, "/ws/cmain.cpp", 5, 22)
			assert.Nil(t, err)
			done <- list
		}()
		server.reply(server.expect(MethodCompletion), []interface{}{
			map[string]interface{}{"label": "square"},
		})
		list := <-done
		require.Len(t, list.Items, 1)
		assert.Equal(t, "square", list.Items[0].Name())
	})

	t.Run("definition", func(t *testing.T) {
		done := make(chan []Location, 1)
		go func() {
			locs, err := client.Definition(ctx, "/ws/cmain.cpp", 5, 20)
			assert.Nil(t, err)
			done <- locs
		}()
		server.reply(server.expect(MethodDefinition), map[string]interface{}{
			"uri": "file:///ws/cmain.cpp",
			"range": map[string]interface{}{
				"start": map[string]interface{}{"line": float64(3), "character": float64(5)},
				"end":   map[string]interface{}{"line": float64(3), "character": float64(11)},
			},
		})
		locs := <-done
		require.Len(t, locs, 1)
		assert.Equal(t, Position{Line: 3, Character: 5}, locs[0].Range.Start)
	})

	t.Run("signature help", func(t *testing.T) {
		done := make(chan *SignatureHelp, 1)
		go func() {
			help, err := client.SignatureHelp(ctx, "/ws/cmain.cpp", 5, 30)
			assert.Nil(t, err)
			done <- help
		}()
		server.reply(server.expect(MethodSignatureHelp), map[string]interface{}{
			"signatures":      []interface{}{map[string]interface{}{"label": "square(int a) -> int"}},
			"activeSignature": float64(0),
		})
		help := <-done
		require.Len(t, help.Signatures, 1)
		assert.Equal(t, "square(int a) -> int", help.Signatures[0].Label)
	})

	t.Run("semantic tokens", func(t *testing.T) {
		done := make(chan *SemanticTokens, 1)
		go func() {
			tokens, err := client.SemanticTokens(ctx, "/ws/main.cpp")
			assert.Nil(t, err)
			done <- tokens
		}()
		server.reply(server.expect(MethodSemanticTokensFull), map[string]interface{}{
			"data": []interface{}{float64(0), float64(6), float64(4), float64(0), float64(1)},
		})
		tokens := <-done
		assert.Equal(t, 1, tokens.Count())
		assert.Equal(t, []uint32{0, 6, 4, 0, 1}, tokens.Data)
	})
}

func TestNotifications(t *testing.T) {
	client, server, teardown := setup(t)
	defer teardown()

	diags := make(chan PublishDiagnosticsParams, 1)
	client.OnDiagnostics(func(p PublishDiagnosticsParams) { diags <- p })
	other := make(chan *jsonrpc.Inbound, 1)
	client.HandleNotification("$/progress", func(msg *jsonrpc.Inbound) { other <- msg })

	server.notify(MethodPublishDiagnostics, map[string]interface{}{
		"uri": "file:///ws/cmain.cpp",
		"diagnostics": []interface{}{
			map[string]interface{}{
				"message":  "expected unqualified-id",
				"severity": float64(1),
				"range": map[string]interface{}{
					"start": map[string]interface{}{"line": float64(5), "character": float64(22)},
					"end":   map[string]interface{}{"line": float64(5), "character": float64(23)},
				},
			},
		},
	})
	p := <-diags
	assert.Equal(t, "file:///ws/cmain.cpp", p.URI)
	require.Len(t, p.Diagnostics, 1)
	assert.Equal(t, "error", p.Diagnostics[0].SeverityName())
	assert.Equal(t, 22, p.Diagnostics[0].Range.Start.Character)

	server.notify("$/progress", map[string]interface{}{"token": "x"})
	assert.Equal(t, "$/progress", (<-other).Method)
}

func TestServerRequestsAreRefused(t *testing.T) {
	client, server, teardown := setup(t)
	defer teardown()
	_ = client

	require.Nil(t, server.conn.Send(jsonrpc.NewRequest(0, "window/workDoneProgress/create", map[string]interface{}{})))
	reply := server.next()
	assert.True(t, reply.IsResponse())
	require.NotNil(t, reply.Error)
	assert.Equal(t, jsonrpc.MethodNotFound, reply.Error.Code)
}

func TestShutdownAndClose(t *testing.T) {
	client, server, teardown := setup(t)
	defer teardown()

	errs := make(chan error, 1)
	go func() { errs <- client.Shutdown(context.Background()) }()
	req := server.expect(MethodShutdown)
	assert.Nil(t, req.Params)
	server.reply(req, nil)
	server.expect(MethodExit)
	require.Nil(t, <-errs)

	go func() {
		_, err := client.Call(context.Background(), "late", nil)
		errs <- err
	}()
	server.expect("late")
	server.conn.Close()
	assert.Equal(t, ErrClosed, <-errs)
	<-client.Done()
}

func TestResponseBeforeClose(t *testing.T) {
	for i := 0; i < 20; i++ {
		client, server, teardown := setup(t)

		type result struct {
			msg *jsonrpc.Inbound
			err error
		}
		results := make(chan result, 1)
		go func() {
			msg, err := client.Call(context.Background(), "last", nil)
			results <- result{msg, err}
		}()
		server.reply(server.expect("last"), "done")
		server.conn.Close()
		<-client.Done()

		res := <-results
		require.Nil(t, res.err)
		assert.Equal(t, "done", res.msg.Result)
		teardown()
	}
}
