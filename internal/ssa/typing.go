package ssa

import "github.com/kolkov/snoc/internal/types"

// Annotate fills in the Type field of every value in the module using
// the registry. The default numeric type is int64; comparison results
// are boolean, dodecagram conversions carry the dodecagram type, and
// the argument of a runtime wait is a duration. Globals are typed as
// pointers to the default numeric type.
func Annotate(m *Module, reg *types.Registry) {
	for _, f := range m.Funcs {
		annotateFunc(f, reg)
	}
}

func annotateFunc(f *Function, reg *types.Registry) {
	for _, p := range f.Params {
		p.Type = reg.Int64()
	}
	for _, b := range f.Blocks {
		for _, ins := range b.Instrs {
			for _, o := range ins.Operands {
				if o != nil && o.Type == nil {
					switch o.Kind {
					case ValueConstant:
						o.Type = reg.Int64()
					case ValueGlobal:
						o.Type = reg.PointerTo(reg.Int64())
					}
				}
			}
			if ins.Op == Call && ins.Callee == "snow_wait" && len(ins.Operands) == 1 {
				ins.Operands[0].Type = reg.Duration()
			}
			if ins.Result == nil {
				continue
			}
			switch {
			case ins.Op.IsCompare() || ins.Op == DurationCompare:
				ins.Result.Type = reg.Bool()
			case ins.Op == DodecConvert:
				ins.Result.Type = reg.Dodecagram()
			case ins.Op == DurationCreate:
				ins.Result.Type = reg.Duration()
			case ins.Op == Phi:
				ins.Result.Type = phiType(ins, reg)
			default:
				ins.Result.Type = reg.Int64()
			}
		}
	}

	// A second sweep settles Φ-nodes whose operands were typed after
	// the Φ itself.
	for _, b := range f.Blocks {
		for _, phi := range b.Phis() {
			phi.Result.Type = phiType(phi, reg)
		}
	}
}

// phiType unifies the operand types of a Φ-node, falling back to the
// default numeric type when nothing is known yet.
func phiType(phi *Instruction, reg *types.Registry) types.Type {
	var t types.Type
	for _, o := range phi.Operands {
		if o == nil || o.Type == nil {
			continue
		}
		if t == nil {
			t = o.Type
			continue
		}
		if u := reg.Unify(t, o.Type); u != nil {
			t = u
		}
	}
	if t == nil {
		return reg.Int64()
	}
	return t
}
