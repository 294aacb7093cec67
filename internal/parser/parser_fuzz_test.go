package parser

import "testing"

// FuzzParse feeds arbitrary input through the full parse pipeline. The
// parser must terminate and always hand back a program, no matter how
// mangled the source is.
func FuzzParse(f *testing.F) {
	f.Add("let x = 3b;")
	f.Add("fn = [tick n];")
	f.Add("every 10ms:\n  wait 1s;\nend;")
	f.Add("if x == 0:\n  x = 1;\nelse:\n  x = 2;")
	f.Add("derive v = d(pos);")
	f.Add("let = ;;; fn (")
	f.Add("\"unterminated")
	f.Add("10#3b 12#aa @@")

	f.Fuzz(func(t *testing.T, src string) {
		prog, _ := ParseString(src)
		if prog == nil {
			t.Fatal("nil program")
		}
	})
}

// FuzzParseExpr checks the expression entry point in isolation.
func FuzzParseExpr(f *testing.F) {
	f.Add("1 + 2 * 3")
	f.Add("-x")
	f.Add("d(a + b)")
	f.Add("f(1, 2s, \"x\")")
	f.Add("((((")

	f.Fuzz(func(t *testing.T, src string) {
		ParseExpr(src) //nolint:errcheck // looking for panics and hangs only
	})
}
