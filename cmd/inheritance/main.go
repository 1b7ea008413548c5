package main

import (
	"io"
	"os"

	"github.com/manifold/lsptrace/pkg/inheritance"
)

func main() {
	run(os.Stdout)
}

// run builds one Derived value that lives until run returns. It is never
// closed, so only the construction line is written.
func run(out io.Writer) {
	d := inheritance.NewDerived(out)
	_ = d
}
