package snoc

import (
	"io"

	"github.com/kolkov/snoc/internal/optimizer"
)

// MaxOptLevel is the highest optimization level the pipeline knows.
const MaxOptLevel = 3

// Config holds configuration options for compiling a Snow program.
type Config struct {
	// Filename names the source in diagnostics (default: "<input>").
	Filename string

	// OptLevel selects the optimization pass set, 0 through 3.
	//   0: no optimization
	//   1: folding, propagation, dead code, peephole, branch cleanup
	//   2: adds loop unrolling and tail-call marking
	//   3: adds instruction scheduling and profile-guided block layout
	// Values outside the range are clamped.
	OptLevel int

	// EmitIR selects the linear IR as the emitted text instead of the
	// SSA form.
	EmitIR bool

	// Output is the writer for emitted IR or SSA text. If nil, output
	// is returned from the emitting call instead.
	Output io.Writer

	// Stderr is the writer for diagnostics. If nil, diagnostics are
	// only available through Program.Diagnostics.
	Stderr io.Writer

	// Profile supplies execution counts to the profile-guided passes.
	// It takes precedence over ProfilePath.
	Profile *optimizer.ProfileData

	// ProfilePath points at a YAML execution profile to load.
	// Empty means no profile.
	ProfilePath string

	// OnlyFunctions restricts emission and dumps to functions whose
	// name matches this regular expression. Empty matches every
	// function.
	OnlyFunctions string
}

// applyDefaults fills in default values for unset Config fields.
func (c *Config) applyDefaults() {
	if c.Filename == "" {
		c.Filename = "<input>"
	}
	if c.OptLevel < 0 {
		c.OptLevel = 0
	}
	if c.OptLevel > MaxOptLevel {
		c.OptLevel = MaxOptLevel
	}
}
