// Package lsp is a minimal language server client: it keeps the documents
// it has opened in sync with the server and routes responses back to the
// callers that issued the requests.
package lsp

import (
	"context"
	"os"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/manifold/lsptrace/pkg/jsonrpc"
	"github.com/manifold/lsptrace/pkg/misc/logging"
	"github.com/pkg/errors"
	"github.com/samber/lo"
)

// ErrClosed is returned for calls still waiting when the connection ends.
var ErrClosed = errors.New("lsp: connection closed")

// ResponseHandler receives the response to a request.
type ResponseHandler func(*jsonrpc.Inbound)

// NotificationHandler receives a server notification.
type NotificationHandler func(*jsonrpc.Inbound)

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the client logger.
func WithLogger(log logging.Logger) Option {
	return func(c *Client) {
		c.log = log
	}
}

// WithLanguageID sets the language id used when opening documents.
func WithLanguageID(id string) Option {
	return func(c *Client) {
		c.languageID = id
	}
}

// Client talks to one language server.
type Client struct {
	conn       *jsonrpc.Conn
	docs       *Store
	log        logging.Logger
	languageID string

	lastID int64

	mu            sync.Mutex
	transactions  map[int64]ResponseHandler
	notifications map[string]NotificationHandler
	diagnostics   func(PublishDiagnosticsParams)
	capabilities  ServerCapabilities
	rawCaps       map[string]interface{}

	done chan struct{}
}

// NewClient starts dispatching the messages arriving on conn.
func NewClient(conn *jsonrpc.Conn, docs *Store, opts ...Option) *Client {
	c := &Client{
		conn:          conn,
		docs:          docs,
		languageID:    "cpp",
		transactions:  make(map[int64]ResponseHandler),
		notifications: make(map[string]NotificationHandler),
		done:          make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	go c.dispatch()
	return c
}

// Done is closed once the connection ended and every waiting call was
// released.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Documents is the store the client opens documents from.
func (c *Client) Documents() *Store {
	return c.docs
}

// OnDiagnostics sets the callback for published diagnostics.
func (c *Client) OnDiagnostics(fn func(PublishDiagnosticsParams)) {
	c.mu.Lock()
	c.diagnostics = fn
	c.mu.Unlock()
}

// HandleNotification routes notifications of method to fn.
func (c *Client) HandleNotification(method string, fn NotificationHandler) {
	c.mu.Lock()
	c.notifications[method] = fn
	c.mu.Unlock()
}

// Capabilities are the server capabilities from the initialize response.
func (c *Client) Capabilities() ServerCapabilities {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.capabilities
}

// RawCapabilities are the capabilities exactly as the server sent them.
func (c *Client) RawCapabilities() map[string]interface{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rawCaps
}

// Pending returns the ids of requests still waiting for a response.
func (c *Client) Pending() []int64 {
	c.mu.Lock()
	ids := lo.Keys(c.transactions)
	c.mu.Unlock()
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (c *Client) nextID() int64 {
	return atomic.AddInt64(&c.lastID, 1)
}

// Notify sends a notification.
func (c *Client) Notify(method string, params interface{}) error {
	return c.conn.Send(jsonrpc.NewNotification(method, params))
}

// Request sends a request; handler runs on the dispatch goroutine when the
// response arrives.
func (c *Client) Request(method string, params interface{}, handler ResponseHandler) (int64, error) {
	id := c.nextID()
	c.mu.Lock()
	c.transactions[id] = handler
	c.mu.Unlock()

	if err := c.conn.Send(jsonrpc.NewRequest(id, method, params)); err != nil {
		c.forget(id)
		return 0, err
	}
	return id, nil
}

// Call sends a request and waits for its response. A response carrying an
// error is returned as a *jsonrpc.Error.
func (c *Client) Call(ctx context.Context, method string, params interface{}) (*jsonrpc.Inbound, error) {
	ch := make(chan *jsonrpc.Inbound, 1)
	id, err := c.Request(method, params, func(msg *jsonrpc.Inbound) {
		ch <- msg
	})
	if err != nil {
		return nil, err
	}

	select {
	case msg := <-ch:
		return callResult(msg)
	case <-ctx.Done():
		c.forget(id)
		return nil, ctx.Err()
	case <-c.done:
		// the handler runs before dispatch closes done
		select {
		case msg := <-ch:
			return callResult(msg)
		default:
			return nil, ErrClosed
		}
	}
}

func callResult(msg *jsonrpc.Inbound) (*jsonrpc.Inbound, error) {
	if msg.Error != nil {
		return msg, msg.Error
	}
	return msg, nil
}

func (c *Client) forget(id int64) {
	c.mu.Lock()
	delete(c.transactions, id)
	c.mu.Unlock()
}

// Initialize runs the initialize handshake for rootFolder.
func (c *Client) Initialize(ctx context.Context, rootFolder string) error {
	params := InitializeParams{
		ProcessID: os.Getpid(),
		RootURI:   URI(rootFolder),
		Capabilities: ClientCapabilities{
			TextDocument: TextDocumentClientCapabilities{
				Completion: CompletionClientCapabilities{
					CompletionItem: CompletionItemCapabilities{
						DocumentationFormat: []string{"plaintext"},
					},
				},
			},
		},
	}
	msg, err := c.Call(ctx, MethodInitialize, params)
	if err != nil {
		return errors.Wrap(err, "initialize")
	}

	var result InitializeResult
	if err := jsonrpc.DecodeValue(msg.Result, &result); err != nil {
		return errors.Wrap(err, "initialize result")
	}
	var caps ServerCapabilities
	if err := jsonrpc.DecodeValue(result.Capabilities, &caps); err != nil {
		return errors.Wrap(err, "server capabilities")
	}
	c.mu.Lock()
	c.capabilities = caps
	c.rawCaps = result.Capabilities
	c.mu.Unlock()

	return c.Notify(MethodInitialized, struct{}{})
}

// Open sends didOpen for path.
func (c *Client) Open(path string) (*Document, error) {
	doc, err := c.docs.Get(path)
	if err != nil {
		return nil, err
	}
	version, content := doc.Snapshot()
	return doc, c.Notify(MethodDidOpen, DidOpenTextDocumentParams{
		TextDocument: TextDocumentItem{
			URI:        doc.URI,
			LanguageID: c.languageID,
			Version:    version,
			Text:       content,
		},
	})
}

// CloseDocument sends didClose for path.
func (c *Client) CloseDocument(path string) error {
	doc, err := c.docs.Get(path)
	if err != nil {
		return err
	}
	return c.Notify(MethodDidClose, DidCloseTextDocumentParams{
		TextDocument: TextDocumentIdentifier{URI: doc.URI},
	})
}

// Change replaces the content of path and sends it in full.
func (c *Client) Change(path, content string) error {
	doc, err := c.docs.Get(path)
	if err != nil {
		return err
	}
	doc.Update(content)
	return c.SendChange(doc)
}

// SendChange sends the current content of doc.
func (c *Client) SendChange(doc *Document) error {
	version, content := doc.Snapshot()
	return c.Notify(MethodDidChange, DidChangeTextDocumentParams{
		TextDocument: VersionedTextDocumentIdentifier{
			URI:     doc.URI,
			Version: version,
		},
		ContentChanges: []TextDocumentContentChangeEvent{
			{Text: content},
		},
	})
}

func (c *Client) positionParams(path string, line, char int) (TextDocumentPositionParams, error) {
	doc, err := c.docs.Get(path)
	if err != nil {
		return TextDocumentPositionParams{}, err
	}
	return TextDocumentPositionParams{
		TextDocument: TextDocumentIdentifier{URI: doc.URI},
		Position:     Position{Line: line, Character: char},
	}, nil
}

// RequestCompletion asks for completions at line:char and hands the raw
// response to handler.
func (c *Client) RequestCompletion(path string, line, char int, handler ResponseHandler) error {
	params, err := c.positionParams(path, line, char)
	if err != nil {
		return err
	}
	_, err = c.Request(MethodCompletion, params, handler)
	return err
}

// Completion returns the completions at line:char. A bare item array is
// returned as a complete list.
func (c *Client) Completion(ctx context.Context, path string, line, char int) (*CompletionList, error) {
	params, err := c.positionParams(path, line, char)
	if err != nil {
		return nil, err
	}
	msg, err := c.Call(ctx, MethodCompletion, params)
	if err != nil {
		return nil, err
	}
	return DecodeCompletion(msg.Result)
}

// DecodeCompletion converts a completion result into a list.
func DecodeCompletion(result interface{}) (*CompletionList, error) {
	list := &CompletionList{}
	switch result.(type) {
	case nil:
		return list, nil
	case []interface{}:
		err := jsonrpc.DecodeValue(result, &list.Items)
		return list, errors.Wrap(err, "completion items")
	}
	err := jsonrpc.DecodeValue(result, list)
	return list, errors.Wrap(err, "completion list")
}

// SignatureHelp returns the signatures active at line:char.
func (c *Client) SignatureHelp(ctx context.Context, path string, line, char int) (*SignatureHelp, error) {
	params, err := c.positionParams(path, line, char)
	if err != nil {
		return nil, err
	}
	msg, err := c.Call(ctx, MethodSignatureHelp, params)
	if err != nil {
		return nil, err
	}
	help := &SignatureHelp{}
	if msg.Result == nil {
		return help, nil
	}
	return help, errors.Wrap(jsonrpc.DecodeValue(msg.Result, help), "signature help")
}

// Definition returns the definition locations of the symbol at line:char.
func (c *Client) Definition(ctx context.Context, path string, line, char int) ([]Location, error) {
	params, err := c.positionParams(path, line, char)
	if err != nil {
		return nil, err
	}
	msg, err := c.Call(ctx, MethodDefinition, params)
	if err != nil {
		return nil, err
	}
	var locations []Location
	switch msg.Result.(type) {
	case nil:
		return nil, nil
	case []interface{}:
		err = jsonrpc.DecodeValue(msg.Result, &locations)
	default:
		var loc Location
		err = jsonrpc.DecodeValue(msg.Result, &loc)
		locations = []Location{loc}
	}
	return locations, errors.Wrap(err, "definition")
}

// SemanticTokens returns the semantic tokens of the whole document.
func (c *Client) SemanticTokens(ctx context.Context, path string) (*SemanticTokens, error) {
	doc, err := c.docs.Get(path)
	if err != nil {
		return nil, err
	}
	msg, err := c.Call(ctx, MethodSemanticTokensFull, SemanticTokensParams{
		TextDocument: TextDocumentIdentifier{URI: doc.URI},
	})
	if err != nil {
		return nil, err
	}
	tokens := &SemanticTokens{}
	if msg.Result == nil {
		return tokens, nil
	}
	return tokens, errors.Wrap(jsonrpc.DecodeValue(msg.Result, tokens), "semantic tokens")
}

// Shutdown asks the server to shut down and then to exit.
func (c *Client) Shutdown(ctx context.Context) error {
	if _, err := c.Call(ctx, MethodShutdown, nil); err != nil {
		return errors.Wrap(err, "shutdown")
	}
	return c.Notify(MethodExit, nil)
}

func (c *Client) dispatch() {
	defer close(c.done)
	for msg := range c.conn.Incoming() {
		switch {
		case msg.IsResponse():
			c.handleResponse(msg)
		case msg.IsRequest():
			c.handleRequest(msg)
		case msg.IsNotification():
			c.handleNotification(msg)
		}
	}
	if err := c.conn.Err(); err != nil {
		logging.Error(c.log, "lsp: read:", err)
	}

	c.mu.Lock()
	c.transactions = make(map[int64]ResponseHandler)
	c.mu.Unlock()
}

func (c *Client) handleResponse(msg *jsonrpc.Inbound) {
	id, err := msg.IntID()
	if err != nil {
		logging.Debug(c.log, "lsp: response with unusable id:", msg.ID)
		return
	}
	c.mu.Lock()
	handler, ok := c.transactions[id]
	delete(c.transactions, id)
	c.mu.Unlock()
	if !ok {
		logging.Debug(c.log, "lsp: response for unknown id:", id)
		return
	}
	if handler != nil {
		handler(msg)
	}
}

// handleRequest refuses server requests; this client offers no methods.
func (c *Client) handleRequest(msg *jsonrpc.Inbound) {
	logging.Debug(c.log, "lsp: refusing server request:", msg.Method)
	err := c.conn.Send(jsonrpc.NewErrorResponse(msg.ID, &jsonrpc.Error{
		Code:    jsonrpc.MethodNotFound,
		Message: "method not supported: " + msg.Method,
	}))
	if err != nil {
		logging.Error(c.log, "lsp: reply:", err)
	}
}

func (c *Client) handleNotification(msg *jsonrpc.Inbound) {
	c.mu.Lock()
	diagnostics := c.diagnostics
	handler := c.notifications[msg.Method]
	c.mu.Unlock()

	if msg.Method == MethodPublishDiagnostics && diagnostics != nil {
		var params PublishDiagnosticsParams
		if err := jsonrpc.DecodeValue(msg.Params, &params); err != nil {
			logging.Error(c.log, "lsp: diagnostics:", err)
			return
		}
		diagnostics(params)
		return
	}
	if handler != nil {
		handler(msg)
	}
}
