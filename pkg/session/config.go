package session

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/xid"
)

// DefaultServer is the language server started when none is configured.
const DefaultServer = "clangd-11"

// ServerEnv overrides DefaultServer.
const ServerEnv = "LSPTRACE_SERVER"

// Position is a zero based line:col pair as given on the command line.
type Position struct {
	Line int
	Col  int
}

func (p Position) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Col)
}

// ParsePosition parses "line:col".
func ParsePosition(s string) (Position, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return Position{}, errors.Errorf("position %q: want line:col", s)
	}
	line, err := strconv.Atoi(parts[0])
	if err != nil || line < 0 {
		return Position{}, errors.Errorf("position %q: bad line", s)
	}
	col, err := strconv.Atoi(parts[1])
	if err != nil || col < 0 {
		return Position{}, errors.Errorf("position %q: bad column", s)
	}
	return Position{Line: line, Col: col}, nil
}

// Config drives a session.
type Config struct {
	Server     string
	ServerArgs []string
	ServerEnv  []string
	RootDir    string
	LanguageID string

	// TracePath is the binary log written for the session. Empty disables
	// tracing unless AutoTrace is set.
	TracePath string
	AutoTrace bool

	Open        string
	Replace     string
	Completions []string
	Definitions []string
	Signatures  []string
	Tokens      bool

	Watch   bool
	Raw     bool
	Debug   bool
	Timeout time.Duration
}

// DefaultConfig returns a config with defaults and environment overrides
// applied.
func DefaultConfig() *Config {
	c := &Config{
		Server:     DefaultServer,
		LanguageID: "cpp",
		Timeout:    10 * time.Second,
	}
	if s := os.Getenv(ServerEnv); s != "" {
		c.Server = s
	}
	return c
}

// Validate checks the config and resolves the trace path.
func (c *Config) Validate() error {
	if c.Server == "" {
		return errors.New("no language server configured")
	}
	if c.RootDir == "" {
		return errors.New("root dir is required")
	}
	if c.Timeout <= 0 {
		return errors.Errorf("timeout must be positive, got %s", c.Timeout)
	}
	if c.Open == "" && (c.Replace != "" || c.Tokens || c.Watch ||
		len(c.Completions)+len(c.Definitions)+len(c.Signatures) > 0) {
		return errors.New("queries need a file to open")
	}
	for _, list := range [][]string{c.Completions, c.Definitions, c.Signatures} {
		if _, err := parsePositions(list); err != nil {
			return err
		}
	}
	if c.TracePath == "" && c.AutoTrace {
		c.TracePath = fmt.Sprintf("lsptrace-%s.binlog", xid.New().String())
	}
	return nil
}

// OpenPath is the file to open, relative paths taken from RootDir.
func (c *Config) OpenPath() string {
	return c.resolve(c.Open)
}

// ReplacePath is the file holding the replacement content, relative paths
// taken from RootDir.
func (c *Config) ReplacePath() string {
	return c.resolve(c.Replace)
}

func (c *Config) resolve(path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(c.RootDir, path)
}

func parsePositions(list []string) ([]Position, error) {
	positions := make([]Position, 0, len(list))
	for _, s := range list {
		p, err := ParsePosition(s)
		if err != nil {
			return nil, err
		}
		positions = append(positions, p)
	}
	return positions, nil
}
