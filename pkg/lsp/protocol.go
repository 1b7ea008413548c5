package lsp

// Method names.
const (
	MethodInitialize         = "initialize"
	MethodInitialized        = "initialized"
	MethodShutdown           = "shutdown"
	MethodExit               = "exit"
	MethodDidOpen            = "textDocument/didOpen"
	MethodDidClose           = "textDocument/didClose"
	MethodDidChange          = "textDocument/didChange"
	MethodCompletion         = "textDocument/completion"
	MethodSignatureHelp      = "textDocument/signatureHelp"
	MethodDefinition         = "textDocument/definition"
	MethodSemanticTokensFull = "textDocument/semanticTokens/full"
	MethodPublishDiagnostics = "textDocument/publishDiagnostics"
)

type InitializeParams struct {
	ProcessID    int                `json:"processId"`
	RootURI      string             `json:"rootUri"`
	Capabilities ClientCapabilities `json:"capabilities"`
}

type ClientCapabilities struct {
	TextDocument TextDocumentClientCapabilities `json:"textDocument"`
}

type TextDocumentClientCapabilities struct {
	Completion CompletionClientCapabilities `json:"completion"`
}

type CompletionClientCapabilities struct {
	CompletionItem CompletionItemCapabilities `json:"completionItem"`
}

type CompletionItemCapabilities struct {
	DocumentationFormat []string `json:"documentationFormat"`
}

// InitializeResult is the answer to initialize.
type InitializeResult struct {
	Capabilities map[string]interface{} `json:"capabilities"`
}

// ServerCapabilities is the part of the server's capabilities the client
// looks at. Providers that may be a bool or an options object are left
// untyped.
type ServerCapabilities struct {
	TextDocumentSync       interface{}            `json:"textDocumentSync"`
	HoverProvider          interface{}            `json:"hoverProvider"`
	DefinitionProvider     interface{}            `json:"definitionProvider"`
	CompletionProvider     *CompletionOptions     `json:"completionProvider"`
	SignatureHelpProvider  *SignatureHelpOptions  `json:"signatureHelpProvider"`
	SemanticTokensProvider *SemanticTokensOptions `json:"semanticTokensProvider"`
}

type CompletionOptions struct {
	TriggerCharacters []string `json:"triggerCharacters"`
	ResolveProvider   bool     `json:"resolveProvider"`
}

type SignatureHelpOptions struct {
	TriggerCharacters []string `json:"triggerCharacters"`
}

type SemanticTokensOptions struct {
	Legend SemanticTokensLegend `json:"legend"`
	Full   interface{}          `json:"full"`
}

type SemanticTokensLegend struct {
	TokenTypes     []string `json:"tokenTypes"`
	TokenModifiers []string `json:"tokenModifiers"`
}

// Supports reports whether a provider value announces support.
func Supports(provider interface{}) bool {
	switch p := provider.(type) {
	case nil:
		return false
	case bool:
		return p
	default:
		return true
	}
}

type TextDocumentItem struct {
	URI        string `json:"uri"`
	LanguageID string `json:"languageId"`
	Version    int    `json:"version"`
	Text       string `json:"text"`
}

type TextDocumentIdentifier struct {
	URI string `json:"uri"`
}

type VersionedTextDocumentIdentifier struct {
	URI     string `json:"uri"`
	Version int    `json:"version"`
}

// TextDocumentContentChangeEvent replaces the whole document text.
type TextDocumentContentChangeEvent struct {
	Text string `json:"text"`
}

type DidOpenTextDocumentParams struct {
	TextDocument TextDocumentItem `json:"textDocument"`
}

type DidCloseTextDocumentParams struct {
	TextDocument TextDocumentIdentifier `json:"textDocument"`
}

type DidChangeTextDocumentParams struct {
	TextDocument   VersionedTextDocumentIdentifier  `json:"textDocument"`
	ContentChanges []TextDocumentContentChangeEvent `json:"contentChanges"`
}

// Position is zero based.
type Position struct {
	Line      int `json:"line"`
	Character int `json:"character"`
}

type Range struct {
	Start Position `json:"start"`
	End   Position `json:"end"`
}

type Location struct {
	URI   string `json:"uri"`
	Range Range  `json:"range"`
}

type TextDocumentPositionParams struct {
	TextDocument TextDocumentIdentifier `json:"textDocument"`
	Position     Position               `json:"position"`
}

type SemanticTokensParams struct {
	TextDocument TextDocumentIdentifier `json:"textDocument"`
}

type CompletionList struct {
	IsIncomplete bool             `json:"isIncomplete"`
	Items        []CompletionItem `json:"items"`
}

type CompletionItem struct {
	Label         string      `json:"label"`
	Kind          int         `json:"kind"`
	Detail        string      `json:"detail"`
	Documentation interface{} `json:"documentation"`
	FilterText    string      `json:"filterText"`
	InsertText    string      `json:"insertText"`
	SortText      string      `json:"sortText"`
}

// Name is the filter text, falling back to the label.
func (i CompletionItem) Name() string {
	if i.FilterText != "" {
		return i.FilterText
	}
	return i.Label
}

const (
	SeverityError       = 1
	SeverityWarning     = 2
	SeverityInformation = 3
	SeverityHint        = 4
)

type Diagnostic struct {
	Range    Range       `json:"range"`
	Severity int         `json:"severity"`
	Code     interface{} `json:"code"`
	Source   string      `json:"source"`
	Message  string      `json:"message"`
}

// SeverityName is a short label for Severity.
func (d Diagnostic) SeverityName() string {
	switch d.Severity {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	case SeverityInformation:
		return "info"
	case SeverityHint:
		return "hint"
	}
	return "unknown"
}

type PublishDiagnosticsParams struct {
	URI         string       `json:"uri"`
	Version     int          `json:"version"`
	Diagnostics []Diagnostic `json:"diagnostics"`
}

type SignatureHelp struct {
	Signatures      []SignatureInformation `json:"signatures"`
	ActiveSignature int                    `json:"activeSignature"`
	ActiveParameter int                    `json:"activeParameter"`
}

type SignatureInformation struct {
	Label         string      `json:"label"`
	Documentation interface{} `json:"documentation"`
}

type SemanticTokens struct {
	ResultID string   `json:"resultId"`
	Data     []uint32 `json:"data"`
}

// Count is the number of tokens; each token takes five integers.
func (t *SemanticTokens) Count() int {
	return len(t.Data) / 5
}
