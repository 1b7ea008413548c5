package jsonrpc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode(t *testing.T) {
	t.Run("response", func(t *testing.T) {
		msg, err := Decode([]byte(`{"jsonrpc":"2.0","id":3,"result":{"capabilities":{"hoverProvider":true}}}`))
		require.Nil(t, err)
		assert.True(t, msg.IsResponse())
		assert.False(t, msg.IsRequest())
		assert.False(t, msg.IsNotification())
		id, err := msg.IntID()
		require.Nil(t, err)
		assert.Equal(t, int64(3), id)
		assert.Nil(t, msg.Error)
		assert.Equal(t, map[string]interface{}{
			"capabilities": map[string]interface{}{"hoverProvider": true},
		}, msg.Result)
	})

	t.Run("error response", func(t *testing.T) {
		msg, err := Decode([]byte(`{"jsonrpc":"2.0","id":"4","error":{"code":-32601,"message":"nope"}}`))
		require.Nil(t, err)
		require.NotNil(t, msg.Error)
		assert.Equal(t, MethodNotFound, msg.Error.Code)
		assert.Equal(t, "jsonrpc: nope (-32601)", msg.Error.Error())
		id, err := msg.IntID()
		require.Nil(t, err)
		assert.Equal(t, int64(4), id)
	})

	t.Run("notification", func(t *testing.T) {
		msg, err := Decode([]byte(`{"jsonrpc":"2.0","method":"textDocument/publishDiagnostics","params":{"uri":"file:///a"}}`))
		require.Nil(t, err)
		assert.True(t, msg.IsNotification())
		assert.Equal(t, "textDocument/publishDiagnostics", msg.Method)
	})

	t.Run("server request", func(t *testing.T) {
		msg, err := Decode([]byte(`{"jsonrpc":"2.0","id":0,"method":"window/workDoneProgress/create","params":{}}`))
		require.Nil(t, err)
		assert.True(t, msg.IsRequest())
	})

	t.Run("not an object", func(t *testing.T) {
		_, err := Decode([]byte(`null`))
		assert.NotNil(t, err)
		_, err = Decode([]byte(`{`))
		assert.NotNil(t, err)
	})
}

func TestDecodeValue(t *testing.T) {
	type position struct {
		Line      int `json:"line"`
		Character int `json:"character,omitempty"`
	}
	var p position
	require.Nil(t, DecodeValue(map[string]interface{}{"line": float64(4), "character": float64(2)}, &p))
	assert.Equal(t, position{Line: 4, Character: 2}, p)
}
