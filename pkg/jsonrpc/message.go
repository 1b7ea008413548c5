package jsonrpc

import (
	"fmt"

	"github.com/bytedance/sonic"
	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
	"github.com/spf13/cast"
)

// Version is the protocol version sent with every message.
const Version = "2.0"

// Standard error codes.
const (
	ParseError     = -32700
	InvalidRequest = -32600
	MethodNotFound = -32601
	InvalidParams  = -32602
	InternalError  = -32603
)

// Request is a call expecting a response with the same ID.
type Request struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      int64       `json:"id"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params,omitempty"`
}

func NewRequest(id int64, method string, params interface{}) *Request {
	return &Request{JSONRPC: Version, ID: id, Method: method, Params: params}
}

// Notification is a message without an ID. No response follows.
type Notification struct {
	JSONRPC string      `json:"jsonrpc"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params,omitempty"`
}

func NewNotification(method string, params interface{}) *Notification {
	return &Notification{JSONRPC: Version, Method: method, Params: params}
}

// Response answers a request successfully.
type Response struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result"`
}

func NewResponse(id interface{}, result interface{}) *Response {
	return &Response{JSONRPC: Version, ID: id, Result: result}
}

// ErrorResponse answers a request with an error.
type ErrorResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Error   *Error      `json:"error"`
}

func NewErrorResponse(id interface{}, err *Error) *ErrorResponse {
	return &ErrorResponse{JSONRPC: Version, ID: id, Error: err}
}

// Error is the error object of a response.
type Error struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("jsonrpc: %s (%d)", e.Message, e.Code)
}

// Inbound is a message read from the peer. Raw holds the decoded object as
// received.
type Inbound struct {
	ID     interface{} `json:"id"`
	Method string      `json:"method"`
	Params interface{} `json:"params"`
	Result interface{} `json:"result"`
	Error  *Error      `json:"error"`

	Raw map[string]interface{} `json:"-"`
}

// Decode parses a message payload.
func Decode(payload []byte) (*Inbound, error) {
	var raw map[string]interface{}
	if err := sonic.ConfigStd.Unmarshal(payload, &raw); err != nil {
		return nil, errors.Wrap(err, "decode")
	}
	if raw == nil {
		return nil, errors.New("decode: not an object")
	}
	msg := &Inbound{Raw: raw}
	if err := DecodeValue(raw, msg); err != nil {
		return nil, errors.Wrap(err, "decode")
	}
	return msg, nil
}

// DecodeValue converts a decoded JSON value into out using its json tags.
func DecodeValue(in interface{}, out interface{}) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName: "json",
		Result:  out,
	})
	if err != nil {
		return err
	}
	return dec.Decode(in)
}

// HasID reports whether the message carries an id member.
func (m *Inbound) HasID() bool {
	_, ok := m.Raw["id"]
	return ok
}

// IntID converts the id to an integer.
func (m *Inbound) IntID() (int64, error) {
	return cast.ToInt64E(m.ID)
}

// IsResponse reports whether the message answers one of our requests.
func (m *Inbound) IsResponse() bool {
	return m.HasID() && m.Method == ""
}

// IsRequest reports whether the peer expects an answer.
func (m *Inbound) IsRequest() bool {
	return m.HasID() && m.Method != ""
}

// IsNotification reports whether the message is a notification.
func (m *Inbound) IsNotification() bool {
	return !m.HasID() && m.Method != ""
}
