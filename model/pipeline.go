package model

// ComponentSpec describes a purchased raw part.
type ComponentSpec struct {
	ID             string
	DefectRate     float64
	PurchaseCost   float64
	InspectionCost float64
	Inspect        bool
}

// SemiProductSpec describes an intermediate assembly built from components.
type SemiProductSpec struct {
	ID string
	// Inputs lists component IDs in declaration order.
	Inputs []string

	DefectRate      float64 // assembly-induced
	AssemblyCost    float64
	InspectionCost  float64
	DisassemblyCost float64

	Inspect     bool
	Disassemble bool
}

// FinalProductSpec describes the sellable assembly.
type FinalProductSpec struct {
	ID              string
	DefectRate      float64
	AssemblyCost    float64
	InspectionCost  float64
	DisassemblyCost float64
	ReturnLoss      float64
	MarketPrice     float64

	Inspect     bool
	Disassemble bool
}

// CarryOverPolicy decides what happens to qualified semi-products left over
// after the final-assembly bottleneck.
type CarryOverPolicy string

const (
	// CarryOverDiscard drops the excess at the end of every cycle.
	CarryOverDiscard CarryOverPolicy = "discard"
	// CarryOverRetain keeps the excess, with its true-good share, and merges
	// it into the next cycle's output of the same semi-product.
	CarryOverRetain CarryOverPolicy = "retain"
)

// Pipeline bundles every spec needed for one simulation run.
//
// A pipeline with no semi-products is single-stage: the final product is
// assembled directly from the component inventories.
type Pipeline struct {
	Name            string
	InitialQuantity int

	Components   []ComponentSpec
	SemiProducts []SemiProductSpec
	Final        FinalProductSpec

	CarryOver CarryOverPolicy
}

// SingleStage reports whether the final product consumes components directly.
func (p Pipeline) SingleStage() bool { return len(p.SemiProducts) == 0 }

// Component returns the component with the given ID and whether it exists.
func (p Pipeline) Component(id string) (ComponentSpec, bool) {
	for _, c := range p.Components {
		if c.ID == id {
			return c, true
		}
	}
	return ComponentSpec{}, false
}

// Clone returns a deep copy; slices are never shared with p.
func (p Pipeline) Clone() Pipeline {
	out := p
	out.Components = append([]ComponentSpec(nil), p.Components...)
	out.SemiProducts = make([]SemiProductSpec, len(p.SemiProducts))
	for i, sp := range p.SemiProducts {
		sp.Inputs = append([]string(nil), sp.Inputs...)
		out.SemiProducts[i] = sp
	}
	return out
}

// Apply returns a snapshot of p with every inspect/disassemble flag taken
// from v. p itself is not modified.
func (p Pipeline) Apply(v DecisionVector) (Pipeline, error) {
	if err := p.ValidateVector(v); err != nil {
		return Pipeline{}, err
	}
	out := p.Clone()
	i := 0
	for c := range out.Components {
		out.Components[c].Inspect = v[i]
		i++
	}
	for s := range out.SemiProducts {
		out.SemiProducts[s].Inspect = v[i]
		out.SemiProducts[s].Disassemble = v[i+1]
		i += 2
	}
	out.Final.Inspect = v[i]
	out.Final.Disassemble = v[i+1]
	return out, nil
}

// Decisions extracts the flags currently set on p in canonical order.
func (p Pipeline) Decisions() DecisionVector {
	v := make(DecisionVector, 0, p.DecisionBits())
	for _, c := range p.Components {
		v = append(v, c.Inspect)
	}
	for _, sp := range p.SemiProducts {
		v = append(v, sp.Inspect, sp.Disassemble)
	}
	return append(v, p.Final.Inspect, p.Final.Disassemble)
}

// DecisionBits is D = |components| + 2*|semi-products| + 2.
func (p Pipeline) DecisionBits() int {
	return len(p.Components) + 2*len(p.SemiProducts) + 2
}
