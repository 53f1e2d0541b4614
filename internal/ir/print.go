package ir

import (
	"fmt"
	"io"
	"strings"

	"github.com/mattn/go-runewidth"
)

// Fprint writes a compact textual listing of the world: continuations with
// their jumps, then the live primops in ascending gid order.
func Fprint(out io.Writer, w *World) error {
	var width int
	for _, c := range w.conts {
		if l := runewidth.StringWidth(c.UniqueName()); l > width {
			width = l
		}
	}
	for _, c := range w.conts {
		if c.IsIntrinsic() {
			continue
		}
		marker := " "
		if c.IsExternal() {
			marker = "*"
		}
		name := runewidth.FillRight(c.UniqueName(), width)
		if c.Empty() {
			if _, err := fmt.Fprintf(out, "%s %s %s = <empty>\n", marker, name, c.Type()); err != nil {
				return err
			}
			continue
		}
		args := make([]string, c.NumArgs())
		for i := range args {
			args[i] = c.Arg(i).UniqueName()
		}
		_, err := fmt.Fprintf(out, "%s %s %s = %s(%s)\n",
			marker, name, c.Type(), c.Callee().UniqueName(), strings.Join(args, ", "))
		if err != nil {
			return err
		}
	}
	for _, p := range w.primops {
		ops := make([]string, p.NumOps())
		for i := range ops {
			ops[i] = p.Op(i).UniqueName()
		}
		line := fmt.Sprintf("  %s: %s %s(%s)", p.UniqueName(), p.Type(), p.Tag(), strings.Join(ops, ", "))
		if p.Tag() == TagLit {
			line = fmt.Sprintf("  %s: %s lit %d", p.UniqueName(), p.Type(), p.Value())
		}
		if _, err := fmt.Fprintln(out, line); err != nil {
			return err
		}
	}
	return nil
}

// Sprint returns the textual listing of the world.
func Sprint(w *World) string {
	var sb strings.Builder
	_ = Fprint(&sb, w)
	return sb.String()
}
