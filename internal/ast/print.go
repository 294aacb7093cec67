package ast

import (
	"fmt"
	"io"
	"strings"
)

// Printer writes a human-readable tree dump of AST nodes, one node per
// line with two-space indentation.
type Printer struct {
	w      io.Writer
	indent int
	err    error
}

// NewPrinter creates a new Printer that writes to w.
func NewPrinter(w io.Writer) *Printer {
	return &Printer{w: w}
}

// Print writes the dump of node and returns the first write error.
func (p *Printer) Print(node Node) error {
	p.printNode(node)
	return p.err
}

// Dump renders node to a string.
func Dump(node Node) string {
	var sb strings.Builder
	NewPrinter(&sb).Print(node) //nolint:errcheck // strings.Builder never fails
	return sb.String()
}

func (p *Printer) line(format string, args ...interface{}) {
	if p.err != nil {
		return
	}
	_, p.err = fmt.Fprintf(p.w, "%s%s\n", strings.Repeat("  ", p.indent), fmt.Sprintf(format, args...))
}

func (p *Printer) nested(fn func()) {
	p.indent++
	fn()
	p.indent--
}

func (p *Printer) printNode(node Node) {
	switch n := node.(type) {
	case *Program:
		p.line("Program")
		p.nested(func() {
			for _, s := range n.Stmts {
				p.printNode(s)
			}
		})

	case *NumLit:
		p.line("NumLit %d (%s)", n.Value, n.Raw)
	case *StrLit:
		p.line("StrLit %q", n.Value)
	case *DurationLit:
		p.line("DurationLit %d%s = %dns", n.Magnitude, n.Unit, n.Nanos)
	case *Ident:
		p.line("Ident %s", n.Name)
	case *BinaryExpr:
		p.line("BinaryExpr %s", n.Op)
		p.nested(func() {
			p.printNode(n.Left)
			p.printNode(n.Right)
		})
	case *AssignExpr:
		p.line("AssignExpr %s", n.Target.Name)
		p.nested(func() { p.printNode(n.Value) })
	case *CallExpr:
		p.line("CallExpr %s/%d", n.Name, len(n.Args))
		p.nested(func() {
			for _, a := range n.Args {
				p.printNode(a)
			}
		})
	case *DerivExpr:
		p.line("DerivExpr")
		p.nested(func() { p.printNode(n.Inner) })

	case *ExprStmt:
		p.line("ExprStmt")
		p.nested(func() { p.printNode(n.X) })
	case *VarDecl:
		p.line("VarDecl %s", n.Name)
		if n.Init != nil {
			p.nested(func() { p.printNode(n.Init) })
		}
	case *FuncDecl:
		p.line("FuncDecl %s(%s)", n.Name, strings.Join(n.Params, ", "))
		p.nested(func() { p.printNode(n.Body) })
	case *BlockStmt:
		p.line("Block")
		p.nested(func() {
			for _, s := range n.Stmts {
				p.printNode(s)
			}
		})
	case *IfStmt:
		p.line("If")
		p.nested(func() {
			p.printNode(n.Cond)
			p.printNode(n.Then)
			if n.Else != nil {
				p.printNode(n.Else)
			}
		})
	case *WhileStmt:
		p.line("While")
		p.nested(func() {
			p.printNode(n.Cond)
			p.printNode(n.Body)
		})
	case *BreakStmt:
		p.line("Break")
	case *ContinueStmt:
		p.line("Continue")
	case *ReturnStmt:
		p.line("Return")
		if n.Value != nil {
			p.nested(func() { p.printNode(n.Value) })
		}
	case *EveryStmt:
		p.line("Every")
		p.nested(func() {
			p.printNode(n.Interval)
			p.printNode(n.Body)
		})
	case *DeriveStmt:
		if n.Body != nil {
			p.line("Derive %s over", n.Name)
			p.nested(func() {
				p.printNode(n.Interval)
				p.printNode(n.Body)
			})
		} else {
			p.line("Derive %s =", n.Name)
			p.nested(func() { p.printNode(n.Expr) })
		}
	case *WaitStmt:
		p.line("Wait")
		p.nested(func() { p.printNode(n.Duration) })

	case nil:
		p.line("<nil>")
	default:
		p.line("<unknown %T>", n)
	}
}
