package snoc

import (
	"strings"

	"github.com/kolkov/snoc/internal/ast"
	"github.com/kolkov/snoc/internal/diag"
	"github.com/kolkov/snoc/internal/filter"
	"github.com/kolkov/snoc/internal/ir"
	"github.com/kolkov/snoc/internal/optimizer"
	"github.com/kolkov/snoc/internal/ssa"
	"github.com/kolkov/snoc/internal/types"
)

// Program is a compiled Snow program: the AST and the linear IR
// lowered from it. Optimize rewrites the IR in place; SSA derives a
// fresh SSA module each call.
type Program struct {
	source string
	ast    *ast.Program
	mod    *ir.Module
	diags  *diag.List
}

// Source returns the original Snow source code.
func (p *Program) Source() string { return p.source }

// AST returns the parsed syntax tree.
func (p *Program) AST() *ast.Program { return p.ast }

// IR returns the linear IR module. Callers that mutate it own the
// consequences.
func (p *Program) IR() *ir.Module { return p.mod }

// Diagnostics returns the warnings and errors collected so far.
func (p *Program) Diagnostics() []diag.Diagnostic { return p.diags.Records() }

// Optimize rewrites the linear IR at the configured level and returns
// the pass statistics. An in-memory config.Profile takes precedence
// over config.ProfilePath.
func (p *Program) Optimize(config *Config) (*optimizer.Stats, error) {
	if config == nil {
		config = &Config{}
	}
	config.applyDefaults()

	profile := config.Profile
	if profile == nil && config.ProfilePath != "" {
		loaded, err := optimizer.LoadProfile(config.ProfilePath)
		if err != nil {
			return nil, &CompileError{Message: err.Error()}
		}
		profile = loaded
	}

	stats, err := optimizer.Optimize(p.mod, config.OptLevel, profile)
	if err != nil {
		return nil, &InternalError{Invariant: err.Error()}
	}
	return stats, nil
}

// SSA builds the SSA form of the current linear IR and annotates its
// values with types from the global registry.
func (p *Program) SSA() (*ssa.Module, error) {
	sm, err := ssa.Build(p.mod)
	if err != nil {
		return nil, &InternalError{Invariant: err.Error()}
	}
	ssa.Annotate(sm, types.Default)
	return sm, nil
}

// Disassemble renders the whole linear IR module as text.
func (p *Program) Disassemble() string { return p.mod.String() }

// EmitIR writes the linear IR to config.Output, or returns it when no
// writer is set. A non-empty config.OnlyFunctions restricts emission
// to functions whose name matches it.
func (p *Program) EmitIR(config *Config) (string, error) {
	if config == nil {
		config = &Config{}
	}
	config.applyDefaults()

	f, err := filter.Cached(config.OnlyFunctions)
	if err != nil {
		return "", &CompileError{Message: "invalid function filter: " + err.Error()}
	}

	var sb strings.Builder
	for _, fn := range p.mod.Funcs {
		if !f.Match(fn.Name) {
			continue
		}
		sb.WriteString(fn.String())
	}
	text := sb.String()

	if config.Output != nil {
		if _, err := config.Output.Write([]byte(text)); err != nil {
			return "", err
		}
		return "", nil
	}
	return text, nil
}

// EmitSSAText builds, annotates, and renders the SSA module, applying
// the config.OnlyFunctions filter.
func (p *Program) EmitSSAText(config *Config) (string, error) {
	if config == nil {
		config = &Config{}
	}
	config.applyDefaults()

	f, err := filter.Cached(config.OnlyFunctions)
	if err != nil {
		return "", &CompileError{Message: "invalid function filter: " + err.Error()}
	}

	sm, err := p.SSA()
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	for _, fn := range sm.Funcs {
		if !f.Match(fn.Name) {
			continue
		}
		sb.WriteString(fn.String())
	}
	text := sb.String()

	if config.Output != nil {
		if _, err := config.Output.Write([]byte(text)); err != nil {
			return "", err
		}
		return "", nil
	}
	return text, nil
}
