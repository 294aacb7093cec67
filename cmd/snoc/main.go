// snoc - Snow compiler
//
// Compiles Snow source files to SSA or linear IR text.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kolkov/snoc"
	"github.com/kolkov/snoc/internal/ast"
	"github.com/kolkov/snoc/internal/lexer"
)

// Options holds the flags for the snoc command.
type Options struct {
	OptLevel   int
	EmitIR     bool
	Output     string
	Profile    string
	Only       string
	Stats      bool
	DumpTokens bool
	DumpAST    bool
	DumpSSA    bool
}

// NewRootCommand creates the snoc root command.
func NewRootCommand() *cobra.Command {
	opts := &Options{}

	cmd := &cobra.Command{
		Use:   "snoc [flags] file.sno",
		Short: "snoc - Snow compiler",
		Long: `Compile a Snow source file and print its SSA form.

The pipeline lowers the source to a linear IR, optimizes it at the
selected level, and converts the result to SSA. --emit-ir stops after
optimization and prints the linear IR instead.`,
		Version:       snoc.Version,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(opts, args[0], cmd)
		},
	}

	cmd.Flags().IntVarP(&opts.OptLevel, "opt", "O", 0, "optimization level (0-3)")
	cmd.Flags().BoolVar(&opts.EmitIR, "emit-ir", false, "print the linear IR instead of SSA")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file path (default stdout)")
	cmd.Flags().StringVar(&opts.Profile, "profile", "", "YAML execution profile for profile-guided passes")
	cmd.Flags().StringVar(&opts.Only, "only", "", "restrict emission to functions matching this regex")
	cmd.Flags().BoolVar(&opts.Stats, "stats", false, "print optimizer statistics to stderr")
	cmd.Flags().BoolVar(&opts.DumpTokens, "dump-tokens", false, "print the token stream and exit")
	cmd.Flags().BoolVar(&opts.DumpAST, "dump-ast", false, "print the syntax tree and exit")
	cmd.Flags().BoolVar(&opts.DumpSSA, "dump-ssa", false, "print the SSA form to stderr")

	return cmd
}

func run(opts *Options, path string, cmd *cobra.Command) error {
	src, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	if opts.DumpTokens {
		l := lexer.New(src, path)
		for _, tok := range l.TokenizeAll() {
			fmt.Fprintln(cmd.OutOrStdout(), tok.String())
		}
		if l.Errors().HasErrors() {
			l.Errors().Write(cmd.ErrOrStderr())
			return fmt.Errorf("%s: lexing failed", path)
		}
		return nil
	}

	prog, err := snoc.CompileNamed(string(src), path)
	if err != nil {
		return err
	}

	if opts.DumpAST {
		fmt.Fprint(cmd.OutOrStdout(), ast.Dump(prog.AST()))
		return nil
	}

	config := &snoc.Config{
		Filename:      path,
		OptLevel:      opts.OptLevel,
		EmitIR:        opts.EmitIR,
		ProfilePath:   opts.Profile,
		OnlyFunctions: opts.Only,
		Stderr:        cmd.ErrOrStderr(),
	}

	stats, err := prog.Optimize(config)
	if err != nil {
		return err
	}
	if opts.Stats {
		fmt.Fprint(cmd.ErrOrStderr(), stats.String())
	}

	if opts.DumpSSA {
		text, err := prog.EmitSSAText(&snoc.Config{OnlyFunctions: opts.Only})
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.ErrOrStderr(), text)
	}

	out := cmd.OutOrStdout()
	if opts.Output != "" {
		f, err := os.Create(opts.Output)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}

	var text string
	if opts.EmitIR {
		text, err = prog.EmitIR(&snoc.Config{OnlyFunctions: opts.Only})
	} else {
		text, err = prog.EmitSSAText(&snoc.Config{OnlyFunctions: opts.Only})
	}
	if err != nil {
		return err
	}
	if _, err := fmt.Fprint(out, text); err != nil {
		return err
	}

	for _, d := range prog.Diagnostics() {
		fmt.Fprintln(cmd.ErrOrStderr(), d.String())
	}
	return nil
}

func main() {
	if err := NewRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "snoc: %v\n", err)
		os.Exit(1)
	}
}
