package model

import "strings"

// MaxDecisionBits caps the exhaustive search space at 2^30 vectors. Larger
// pipelines need pruning, which the optimizer does not implement.
const MaxDecisionBits = 30

// DecisionVector holds one boolean per decision position, in the order
// described by DecisionLayout. The order is a file-format contract.
type DecisionVector []bool

// String renders v as a tuple of True/False literals, the same form the
// decision-vector file parser accepts.
func (v DecisionVector) String() string {
	var b strings.Builder
	b.WriteByte('(')
	for i, f := range v {
		if i > 0 {
			b.WriteString(", ")
		}
		if f {
			b.WriteString("True")
		} else {
			b.WriteString("False")
		}
	}
	b.WriteByte(')')
	return b.String()
}

// Equal reports whether v and o hold the same flags.
func (v DecisionVector) Equal(o DecisionVector) bool {
	if len(v) != len(o) {
		return false
	}
	for i := range v {
		if v[i] != o[i] {
			return false
		}
	}
	return true
}

// DecisionKind distinguishes the two kinds of policy flag.
type DecisionKind string

const (
	DecisionInspect     DecisionKind = "inspect"
	DecisionDisassemble DecisionKind = "disassemble"
)

// DecisionField names one position in a DecisionVector.
type DecisionField struct {
	Position int
	Entity   string
	Kind     DecisionKind
}

// Name is the column name used in result tables, e.g. "inspect_c1".
func (f DecisionField) Name() string {
	return string(f.Kind) + "_" + f.Entity
}

// DecisionLayout is the named mapping from vector positions to flags.
type DecisionLayout []DecisionField

// Layout returns the canonical decision layout for p.
func (p Pipeline) Layout() DecisionLayout {
	out := make(DecisionLayout, 0, p.DecisionBits())
	add := func(entity string, kind DecisionKind) {
		out = append(out, DecisionField{Position: len(out), Entity: entity, Kind: kind})
	}
	for _, c := range p.Components {
		add(c.ID, DecisionInspect)
	}
	for _, sp := range p.SemiProducts {
		add(sp.ID, DecisionInspect)
		add(sp.ID, DecisionDisassemble)
	}
	add(p.Final.ID, DecisionInspect)
	add(p.Final.ID, DecisionDisassemble)
	return out
}

// Names returns the column names of the layout in order.
func (l DecisionLayout) Names() []string {
	names := make([]string, len(l))
	for i, f := range l {
		names[i] = f.Name()
	}
	return names
}

// VectorAt returns the index-th vector of the canonical enumeration of
// 2^bits vectors. The first vector is all true and the last position varies
// fastest, so index 1 differs from index 0 only in its final flag.
func VectorAt(index uint64, bits int) DecisionVector {
	v := make(DecisionVector, bits)
	for j := 0; j < bits; j++ {
		v[j] = (index>>uint(bits-1-j))&1 == 0
	}
	return v
}

// SpaceSize returns 2^bits.
func SpaceSize(bits int) uint64 { return uint64(1) << uint(bits) }
