package snoc

import (
	"os"

	"github.com/kolkov/snoc/internal/diag"
	"github.com/kolkov/snoc/internal/lower"
	"github.com/kolkov/snoc/internal/parser"
)

// Version is the snoc version string.
const Version = "0.1.0"

// Compile parses a Snow program and lowers it to linear IR. The
// returned Program can be optimized and translated to SSA any number
// of times.
//
// Example:
//
//	prog, err := snoc.Compile(`let x = 2 + 3 * 4;`)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	stats, _ := prog.Optimize(nil)
func Compile(source string) (*Program, error) {
	return CompileNamed(source, "<input>")
}

// CompileNamed is Compile with an explicit source name for
// diagnostics.
func CompileNamed(source, filename string) (*Program, error) {
	astProg, err := parser.Parse([]byte(source), filename)
	if err != nil {
		if el, ok := err.(parser.ErrorList); ok && len(el) > 0 {
			return nil, &ParseError{
				Line:    el[0].Pos.Line,
				Column:  el[0].Pos.Column,
				Message: el[0].Message,
			}
		}
		if pe, ok := err.(*parser.ParseError); ok {
			return nil, &ParseError{
				Line:    pe.Pos.Line,
				Column:  pe.Pos.Column,
				Message: pe.Message,
			}
		}
		return nil, &ParseError{Message: err.Error()}
	}

	diags := &diag.List{}
	mod := lower.Lower(astProg, diags)
	if diags.HasErrors() {
		return nil, &LowerError{Message: diags.Records()[0].String()}
	}

	return &Program{
		source: source,
		ast:    astProg,
		mod:    mod,
		diags:  diags,
	}, nil
}

// CompileFile reads and compiles a Snow source file.
func CompileFile(path string) (*Program, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return CompileNamed(string(src), path)
}

// EmitSSA runs the whole pipeline in one call: compile, optimize at
// the configured level, build SSA, annotate types, and render the SSA
// module as text. With config.EmitIR set, the optimized linear IR is
// rendered instead.
//
// Example:
//
//	out, err := snoc.EmitSSA(`let x = 0; while x < 10: x = x + 1; end;`,
//	    &snoc.Config{OptLevel: 2})
func EmitSSA(source string, config *Config) (string, error) {
	if config == nil {
		config = &Config{}
	}
	config.applyDefaults()

	prog, err := CompileNamed(source, config.Filename)
	if err != nil {
		return "", err
	}
	if _, err := prog.Optimize(config); err != nil {
		return "", err
	}

	var out string
	if config.EmitIR {
		out, err = prog.EmitIR(config)
	} else {
		out, err = prog.EmitSSAText(config)
	}
	if err != nil {
		return "", err
	}
	if config.Stderr != nil {
		prog.diags.Write(config.Stderr)
	}
	return out, nil
}

// MustCompile is like Compile but panics if the program cannot be
// compiled. It simplifies initialization of global program variables.
func MustCompile(source string) *Program {
	prog, err := Compile(source)
	if err != nil {
		panic(err)
	}
	return prog
}
