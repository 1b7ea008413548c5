package zap

import (
	"bytes"
	"testing"

	"github.com/manifold/lsptrace/pkg/misc/logging"
	"github.com/stretchr/testify/assert"
)

var _ logging.Logger = Nop()

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	log := NewLogger(&buf, false)
	log.Debug("hidden")
	log.Infof("shown %d", 1)
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown 1")

	buf.Reset()
	log = NewLogger(&buf, true)
	log.Debug("visible")
	assert.Contains(t, buf.String(), "visible")
}
