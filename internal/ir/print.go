package ir

import (
	"fmt"
	"io"
	"strings"
)

// Fprint writes the textual form of the module: one [FUNCTION name]
// banner per function, block names as labels, instructions indented
// two spaces.
func Fprint(w io.Writer, m *Module) error {
	for _, f := range m.Funcs {
		if err := fprintFunc(w, f); err != nil {
			return err
		}
	}
	return nil
}

func fprintFunc(w io.Writer, f *Function) error {
	header := f.Name
	if len(f.Params) > 0 {
		header += "(" + strings.Join(f.Params, ", ") + ")"
	}
	if _, err := fmt.Fprintf(w, "\n[FUNCTION %s]\n", header); err != nil {
		return err
	}
	for _, b := range f.Blocks {
		if _, err := fmt.Fprintf(w, "%s:\n", b.Name); err != nil {
			return err
		}
		for i := range b.Instrs {
			if _, err := fmt.Fprintf(w, "  %s\n", b.Instrs[i].String()); err != nil {
				return err
			}
		}
	}
	return nil
}

// String renders the whole module.
func (m *Module) String() string {
	var sb strings.Builder
	Fprint(&sb, m) //nolint:errcheck // strings.Builder never fails
	return sb.String()
}

// String renders a single function.
func (f *Function) String() string {
	var sb strings.Builder
	fprintFunc(&sb, f) //nolint:errcheck // strings.Builder never fails
	return sb.String()
}
