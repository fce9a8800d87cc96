package core

import "github.com/signalsfoundry/production-optimizer/model"

// Ledger accumulates money flows for one simulation run.
type Ledger struct {
	Revenue float64
	Cost    float64
}

func (l *Ledger) charge(units int, unitCost float64) {
	l.Cost += float64(units) * unitCost
}

// Lot is the output of a semi-product stage for one cycle: the nominal batch
// size handed downstream and how many of those units are actually good.
// Without inspection the two differ and the defects travel on silently.
type Lot struct {
	Qualified       int
	ActualQualified int
}

// Purity is ActualQualified/Qualified, with 0/0 resolving to 0.
func (l Lot) Purity() float64 { return Purity(l.Qualified, l.ActualQualified) }

// Batch is one input of the final assembly: a unit count and its true-good
// share.
type Batch struct {
	Qualified int
	Purity    float64
}

// SemiProductStage assembles one semi-product per cycle.
type SemiProductStage struct {
	spec model.SemiProductSpec

	// inputQuality holds (1 - defect rate) for each uninspected input, in
	// input order. Inspected inputs are treated as fully conforming.
	inputQuality []float64

	// carry holds disassembled final products waiting to be reassembled.
	carry int
	// stock holds qualified units retained under model.CarryOverRetain.
	stock Lot
}

func newSemiProductStage(spec model.SemiProductSpec, p model.Pipeline) *SemiProductStage {
	s := &SemiProductStage{spec: spec}
	for _, id := range spec.Inputs {
		c, _ := p.Component(id)
		if !c.Inspect {
			s.inputQuality = append(s.inputQuality, 1-c.DefectRate)
		}
	}
	return s
}

// ID returns the semi-product ID.
func (s *SemiProductStage) ID() string { return s.spec.ID }

// Process runs one cycle against the shared component inventory and returns
// the lot handed to final assembly.
func (s *SemiProductStage) Process(inv *Inventory, l *Ledger) (Lot, error) {
	assembled := inv.Min(s.spec.Inputs) + s.carry
	s.carry = 0

	for _, id := range s.spec.Inputs {
		inv.Take(id, assembled)
	}
	l.charge(assembled, s.spec.AssemblyCost)

	y, err := CompoundYield(s.inputQuality, s.spec.DefectRate)
	if err != nil {
		return Lot{}, err
	}
	actual := floorUnits(float64(assembled) * y)

	qualified := assembled
	if s.spec.Inspect {
		qualified = actual
		defective := assembled - qualified
		l.charge(assembled, s.spec.InspectionCost)
		if s.spec.Disassemble {
			l.charge(defective, s.spec.DisassemblyCost)
			for _, id := range s.spec.Inputs {
				inv.Add(id, defective)
			}
		}
	}

	out := Lot{Qualified: qualified, ActualQualified: actual}
	out.Qualified += s.stock.Qualified
	out.ActualQualified += s.stock.ActualQualified
	s.stock = Lot{}
	return out, nil
}

// retain keeps whatever final assembly did not consume from lot. The
// consumed units take their proportional share of the good ones.
func (s *SemiProductStage) retain(lot Lot, consumed int) {
	if consumed > lot.Qualified {
		consumed = lot.Qualified
	}
	usedGood := floorUnits(float64(consumed) * lot.Purity())
	if usedGood > lot.ActualQualified {
		usedGood = lot.ActualQualified
	}
	left := Lot{
		Qualified:       lot.Qualified - consumed,
		ActualQualified: lot.ActualQualified - usedGood,
	}
	if left.ActualQualified > left.Qualified {
		left.ActualQualified = left.Qualified
	}
	s.stock = left
}

// FinalOutcome summarises one cycle of final assembly.
type FinalOutcome struct {
	Assembled int
	Qualified int
	Defective int
	Returned  int
	// Reworked is the number of defective units sent back for disassembly.
	Reworked int
}

// FinalProductStage assembles, optionally inspects, and sells the final
// product.
type FinalProductStage struct {
	spec model.FinalProductSpec
}

// Process runs one cycle of final assembly from batches. Redistribution of
// reworked units is left to the caller, which knows the upstream layout.
func (f *FinalProductStage) Process(batches []Batch, l *Ledger) (FinalOutcome, error) {
	var out FinalOutcome
	purities := make([]float64, len(batches))
	for i, b := range batches {
		if i == 0 || b.Qualified < out.Assembled {
			out.Assembled = b.Qualified
		}
		purities[i] = b.Purity
	}
	if out.Assembled < 0 {
		out.Assembled = 0
	}
	l.charge(out.Assembled, f.spec.AssemblyCost)

	y, err := CompoundYield(purities, f.spec.DefectRate)
	if err != nil {
		return FinalOutcome{}, err
	}
	out.Qualified = floorUnits(float64(out.Assembled) * y)
	out.Defective = out.Assembled - out.Qualified

	if f.spec.Inspect {
		l.charge(out.Assembled, f.spec.InspectionCost)
	} else {
		out.Returned = out.Defective
		l.charge(out.Returned, f.spec.ReturnLoss)
	}

	l.Revenue += float64(out.Qualified) * f.spec.MarketPrice

	if out.Defective > 0 && f.spec.Disassemble {
		l.charge(out.Defective, f.spec.DisassemblyCost)
		out.Reworked = out.Defective
	}
	return out, nil
}
