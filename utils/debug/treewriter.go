package debug

import (
	"fmt"
	"strings"
)

// TreeWriter builds indented text dumps of indexes and trees.
type TreeWriter struct {
	w *strings.Builder
}

func NewTreeWriter() *TreeWriter {
	return &TreeWriter{
		w: &strings.Builder{},
	}
}

func (tw TreeWriter) String() string {
	return tw.w.String()
}

func (tw TreeWriter) indent(depth int) {
	for range depth {
		tw.w.WriteString("  ")
	}
}

func (tw TreeWriter) Line(depth int, format string, args ...any) {
	tw.indent(depth)
	fmt.Fprintf(tw.w, format, args...)
	tw.w.WriteByte('\n')
}

// Entry writes "key => value" line. Empty value is shown as <empty>.
func (tw TreeWriter) Entry(depth int, key, value string) {
	tw.indent(depth)
	tw.w.WriteString(key)
	tw.w.WriteString(" => ")
	if len(value) == 0 {
		value = "<empty>"
	}
	tw.w.WriteString(value)
	tw.w.WriteByte('\n')
}
