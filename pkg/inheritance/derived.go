package inheritance

import "io"

// Derived extends Base with Cubed.
type Derived struct {
	*Base
}

// NewDerived constructs the embedded Base first, so "Base" is written
// exactly once before it returns.
func NewDerived(out io.Writer) *Derived {
	return &Derived{Base: NewBase(out)}
}

// Cubed returns a*a*a using the promoted Square.
func (d *Derived) Cubed(a int) int {
	return a * d.Square(a)
}
