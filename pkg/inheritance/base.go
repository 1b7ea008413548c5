// Package inheritance shows capability reuse through struct embedding: a
// Derived value carries a Base and calls its promoted methods.
package inheritance

import (
	"fmt"
	"io"
)

// Base announces its construction and destruction on its output.
type Base struct {
	out io.Writer
}

// NewBase writes "Base" to out.
func NewBase(out io.Writer) *Base {
	b := &Base{out: out}
	fmt.Fprintln(b.out, "Base")
	return b
}

// Close writes "~Base". It plays the part of a destructor and is only
// called by owners that want the teardown message.
func (b *Base) Close() error {
	_, err := fmt.Fprintln(b.out, "~Base")
	return err
}

// Test writes "Test".
func (b *Base) Test() {
	fmt.Fprintln(b.out, "Test")
}

// Square returns a*a.
func (b *Base) Square(a int) int {
	return a * a
}
