// Package snoc compiles the Snow language, an imperative language
// with native base-twelve numerics and first-class temporal
// constructs.
//
// The pipeline lowers source text through four coupled forms: tokens,
// an abstract syntax tree, a linear three-address IR, and a
// static-single-assignment IR ready for an assembly emitter. A
// multi-pass optimizer rewrites the linear IR at levels 0 through 3,
// optionally guided by an execution profile.
//
// # Quick Start
//
// For one-off translation to SSA text:
//
//	out, err := snoc.EmitSSA(`let x = 2 + 3 * 4;`, nil)
//
// # Compiled Programs
//
// For finer control, compile once and drive the stages yourself:
//
//	prog, err := snoc.Compile(src)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	stats, err := prog.Optimize(&snoc.Config{OptLevel: 2})
//	ssaMod, err := prog.SSA()
//
// # Configuration
//
// The [Config] type selects the optimization level, an execution
// profile for profile-guided passes, and a regular-expression filter
// restricting dumps to matching functions.
//
// # Error Handling
//
// Errors are returned as specific types for detailed handling:
//   - [ParseError]: syntax errors in Snow source
//   - [LowerError]: errors while translating the AST to linear IR
//   - [CompileError]: bad configuration or profile input
//   - [InternalError]: a violated invariant in a rewriting pass
//
// Lexer and lowering warnings do not abort compilation; they are
// available through [Program.Diagnostics].
package snoc
