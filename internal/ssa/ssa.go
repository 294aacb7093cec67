// Package ssa defines the static-single-assignment form of a
// compiled program and its construction from the linear IR: explicit
// value identities, Φ-nodes placed at dominance frontiers, and basic
// blocks with symmetric predecessor/successor links.
package ssa

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/kolkov/snoc/internal/types"
)

// -----------------------------------------------------------------------------
// Values
// -----------------------------------------------------------------------------

// ValueKind discriminates how a value comes into existence.
type ValueKind uint8

const (
	ValueRegister  ValueKind = iota // result of an instruction
	ValueConstant                   // interned literal
	ValueParameter                  // function formal
	ValueGlobal                     // memory address
)

// Value is an SSA value. Every value has exactly one definition. The
// Int payload holds the literal for constants and the address for
// globals. Type is filled in by the annotation pass.
type Value struct {
	ID   int
	Kind ValueKind
	Int  int64
	Type types.Type
}

func (v *Value) String() string {
	switch v.Kind {
	case ValueConstant:
		return strconv.FormatInt(v.Int, 10)
	case ValueParameter:
		return "%p" + strconv.Itoa(v.ID)
	case ValueGlobal:
		return "@g" + strconv.FormatInt(v.Int, 10)
	}
	return "%r" + strconv.Itoa(v.ID)
}

// -----------------------------------------------------------------------------
// Opcodes
// -----------------------------------------------------------------------------

// Op is an SSA instruction opcode.
type Op uint8

const (
	// Arithmetic.
	Add Op = iota
	Sub
	Mul
	Div
	Mod

	// Logical.
	And
	Or
	Xor
	Not

	// Comparison. Results are boolean.
	Eq
	Ne
	Lt
	Le
	Gt
	Ge

	// Memory.
	Load
	Store
	Alloca

	// Control flow.
	Br
	CondBr
	Ret
	Call

	// Phi merges one value per predecessor.
	Phi

	// Vector-prefixed variants for the wide backend.
	VecLoad
	VecStore
	VecAdd
	VecMul

	// Domain operations.
	DodecConvert
	DurationCreate
	DurationCompare
	Sample
	Delta
)

var opNames = [...]string{
	Add: "add", Sub: "sub", Mul: "mul", Div: "div", Mod: "mod",
	And: "and", Or: "or", Xor: "xor", Not: "not",
	Eq: "eq", Ne: "ne", Lt: "lt", Le: "le", Gt: "gt", Ge: "ge",
	Load: "load", Store: "store", Alloca: "alloca",
	Br: "br", CondBr: "condbr", Ret: "ret", Call: "call",
	Phi: "phi",
	VecLoad: "vload", VecStore: "vstore", VecAdd: "vadd", VecMul: "vmul",
	DodecConvert: "dodec.convert", DurationCreate: "duration.create",
	DurationCompare: "duration.compare", Sample: "sample", Delta: "delta",
}

func (op Op) String() string {
	if int(op) < len(opNames) && opNames[op] != "" {
		return opNames[op]
	}
	return "op(" + strconv.Itoa(int(op)) + ")"
}

// IsCompare reports whether op yields a boolean comparison result.
func (op Op) IsCompare() bool { return op >= Eq && op <= Ge }

// IsTerminator reports whether op ends a block.
func (op Op) IsTerminator() bool { return op == Br || op == CondBr || op == Ret }

// -----------------------------------------------------------------------------
// Instructions
// -----------------------------------------------------------------------------

// Instruction is one SSA operation. Result is nil for instructions
// that produce no value. Targets holds branch destinations: one for
// Br, taken-then-fallthrough for CondBr. Callee names the function a
// Call transfers to. Phi operands align index-for-index with the
// owning block's predecessor list.
type Instruction struct {
	Op       Op
	Result   *Value
	Operands []*Value
	Targets  []*BasicBlock
	Callee   string

	// reg is the linear-IR register the instruction defines (for a
	// Phi, the register it merges), or noReg / retMarker; it is only
	// meaningful between translation and renaming.
	reg int
}

func (i *Instruction) String() string {
	var sb strings.Builder
	if i.Result != nil {
		sb.WriteString(i.Result.String())
		sb.WriteString(" = ")
	}
	sb.WriteString(i.Op.String())
	switch i.Op {
	case Br:
		sb.WriteString(" " + i.Targets[0].Name)
	case CondBr:
		fmt.Fprintf(&sb, " %s, %s, %s", i.Operands[0], i.Targets[0].Name, i.Targets[1].Name)
	case Call:
		args := make([]string, len(i.Operands))
		for k, o := range i.Operands {
			args[k] = o.String()
		}
		sb.WriteString(" " + i.Callee + "(" + strings.Join(args, ", ") + ")")
	default:
		for k, o := range i.Operands {
			if k == 0 {
				sb.WriteString(" ")
			} else {
				sb.WriteString(", ")
			}
			sb.WriteString(o.String())
		}
	}
	return sb.String()
}

// -----------------------------------------------------------------------------
// Blocks, functions, modules
// -----------------------------------------------------------------------------

// BasicBlock owns an ordered instruction sequence. Preds and Succs
// are kept symmetric: b lists s as a successor exactly when s lists b
// as a predecessor.
type BasicBlock struct {
	Name   string
	Instrs []*Instruction
	Preds  []*BasicBlock
	Succs  []*BasicBlock
}

// Phis returns the Φ-prefix of the block.
func (b *BasicBlock) Phis() []*Instruction {
	for i, ins := range b.Instrs {
		if ins.Op != Phi {
			return b.Instrs[:i]
		}
	}
	return b.Instrs
}

// Terminator returns the block's final instruction if it transfers
// control, else nil.
func (b *BasicBlock) Terminator() *Instruction {
	if len(b.Instrs) == 0 {
		return nil
	}
	last := b.Instrs[len(b.Instrs)-1]
	if last.Op.IsTerminator() {
		return last
	}
	return nil
}

func (b *BasicBlock) predIndex(p *BasicBlock) int {
	for i, q := range b.Preds {
		if q == p {
			return i
		}
	}
	return -1
}

// Function owns its blocks and every value defined inside them. The
// first block is the entry.
type Function struct {
	Name   string
	Params []*Value
	Blocks []*BasicBlock

	nextID int
	consts map[int64]*Value
	globs  map[int64]*Value
}

// NewValue mints a fresh register value.
func (f *Function) NewValue() *Value {
	v := &Value{ID: f.nextID, Kind: ValueRegister}
	f.nextID++
	return v
}

// Const returns the interned constant for n.
func (f *Function) Const(n int64) *Value {
	if f.consts == nil {
		f.consts = map[int64]*Value{}
	}
	if v, ok := f.consts[n]; ok {
		return v
	}
	v := &Value{ID: f.nextID, Kind: ValueConstant, Int: n}
	f.nextID++
	f.consts[n] = v
	return v
}

// Global returns the interned global for the memory address addr.
func (f *Function) Global(addr int64) *Value {
	if f.globs == nil {
		f.globs = map[int64]*Value{}
	}
	if v, ok := f.globs[addr]; ok {
		return v
	}
	v := &Value{ID: f.nextID, Kind: ValueGlobal, Int: addr}
	f.nextID++
	f.globs[addr] = v
	return v
}

// NewBlock creates a block owned by f; the first becomes the entry.
func (f *Function) NewBlock(name string) *BasicBlock {
	b := &BasicBlock{Name: name}
	f.Blocks = append(f.Blocks, b)
	return b
}

// Entry returns the function's entry block, or nil.
func (f *Function) Entry() *BasicBlock {
	if len(f.Blocks) == 0 {
		return nil
	}
	return f.Blocks[0]
}

// Block returns the block with the given name, or nil.
func (f *Function) Block(name string) *BasicBlock {
	for _, b := range f.Blocks {
		if b.Name == name {
			return b
		}
	}
	return nil
}

func link(from, to *BasicBlock) {
	from.Succs = append(from.Succs, to)
	to.Preds = append(to.Preds, from)
}

func (f *Function) String() string {
	var sb strings.Builder
	params := make([]string, len(f.Params))
	for i, p := range f.Params {
		params[i] = p.String()
	}
	fmt.Fprintf(&sb, "fn %s(%s) {\n", f.Name, strings.Join(params, ", "))
	for _, b := range f.Blocks {
		sb.WriteString(b.Name + ":")
		if len(b.Preds) > 0 {
			names := make([]string, len(b.Preds))
			for i, p := range b.Preds {
				names[i] = p.Name
			}
			sb.WriteString(" ; preds: " + strings.Join(names, ", "))
		}
		sb.WriteString("\n")
		for _, ins := range b.Instrs {
			if ins.Op == Phi {
				sb.WriteString("  " + formatPhi(b, ins) + "\n")
				continue
			}
			sb.WriteString("  " + ins.String() + "\n")
		}
	}
	sb.WriteString("}\n")
	return sb.String()
}

func formatPhi(b *BasicBlock, ins *Instruction) string {
	arms := make([]string, len(ins.Operands))
	for i, o := range ins.Operands {
		from := "?"
		if i < len(b.Preds) {
			from = b.Preds[i].Name
		}
		val := "?"
		if o != nil {
			val = o.String()
		}
		arms[i] = "[" + val + ", " + from + "]"
	}
	return ins.Result.String() + " = phi " + strings.Join(arms, ", ")
}

// Module is the root of the SSA IR, the form the assembly emitter
// consumes.
type Module struct {
	Funcs []*Function
}

// Func returns the function with the given name, or nil.
func (m *Module) Func(name string) *Function {
	for _, f := range m.Funcs {
		if f.Name == name {
			return f
		}
	}
	return nil
}

func (m *Module) String() string {
	var sb strings.Builder
	for i, f := range m.Funcs {
		if i > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(f.String())
	}
	return sb.String()
}

// -----------------------------------------------------------------------------
// Verification
// -----------------------------------------------------------------------------

// Verify checks the structural SSA invariants: every value defined at
// most once, Φ-nodes only as a block prefix with one operand per
// predecessor, and symmetric predecessor/successor edges.
func Verify(f *Function) error {
	defs := map[*Value]int{}
	for _, b := range f.Blocks {
		inPrefix := true
		for _, ins := range b.Instrs {
			if ins.Op == Phi {
				if !inPrefix {
					return fmt.Errorf("ssa: %s: phi after non-phi in block %s", f.Name, b.Name)
				}
				if len(ins.Operands) != len(b.Preds) {
					return fmt.Errorf("ssa: %s: phi in %s has %d operands for %d predecessors",
						f.Name, b.Name, len(ins.Operands), len(b.Preds))
				}
			} else {
				inPrefix = false
			}
			if ins.Result != nil {
				defs[ins.Result]++
				if defs[ins.Result] > 1 {
					return fmt.Errorf("ssa: %s: value %s defined more than once", f.Name, ins.Result)
				}
			}
		}
		for _, s := range b.Succs {
			if s.predIndex(b) < 0 {
				return fmt.Errorf("ssa: %s: edge %s -> %s has no matching predecessor link",
					f.Name, b.Name, s.Name)
			}
		}
		for _, p := range b.Preds {
			found := false
			for _, s := range p.Succs {
				if s == b {
					found = true
					break
				}
			}
			if !found {
				return fmt.Errorf("ssa: %s: predecessor link %s -> %s has no matching successor",
					f.Name, p.Name, b.Name)
			}
		}
	}
	return nil
}
