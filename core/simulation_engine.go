package core

import (
	"fmt"

	"github.com/signalsfoundry/production-optimizer/model"
)

// SimulationResult is the money summary of one run under one fixed policy.
type SimulationResult struct {
	Revenue float64
	Cost    float64
	Profit  float64 // always Revenue - Cost

	// Cycles is the number of ticks that ran.
	Cycles int
	// Starved is set when a required component ran out before the last tick.
	Starved bool
}

// CycleReport is handed to tick listeners after every completed cycle.
type CycleReport struct {
	Cycle     int
	Inventory map[string]int
	Lots      []Lot // per semi-product, in declaration order
	Final     FinalOutcome
	Revenue   float64
	Cost      float64
}

// SimulationEngine runs a fixed number of production cycles for one pipeline
// snapshot. It has no internal randomness, so a given pipeline always yields
// the same result.
type SimulationEngine struct {
	pipeline model.Pipeline

	inv    *Inventory
	semis  []*SemiProductStage
	final  *FinalProductStage
	ledger Ledger

	// required lists the component inventories whose exhaustion starves
	// the pipeline.
	required []string

	tickListeners []func(CycleReport)
}

// NewSimulationEngine validates p and prepares an engine for it. The engine
// keeps its own copy of p.
func NewSimulationEngine(p model.Pipeline) (*SimulationEngine, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	se := &SimulationEngine{
		pipeline:      p.Clone(),
		tickListeners: []func(CycleReport){},
	}
	se.required = requiredComponents(se.pipeline)
	return se, nil
}

func (se *SimulationEngine) RegisterTickListener(fn func(CycleReport)) {
	se.tickListeners = append(se.tickListeners, fn)
}

// Run resets the engine to its initial stock and simulates up to maxCycles
// cycles. It stops early, without error, when the pipeline starves.
func (se *SimulationEngine) Run(maxCycles int) (SimulationResult, error) {
	se.reset()

	res := SimulationResult{}
	for cycle := 0; cycle < maxCycles; cycle++ {
		if se.starved() {
			res.Starved = true
			break
		}

		report, err := se.tick(cycle)
		if err != nil {
			return SimulationResult{}, fmt.Errorf("cycle %d: %w", cycle, err)
		}
		res.Cycles++

		for _, fn := range se.tickListeners {
			fn(report)
		}
	}

	res.Revenue = se.ledger.Revenue
	res.Cost = se.ledger.Cost
	res.Profit = res.Revenue - res.Cost
	return res, nil
}

// reset purchases the initial stock and, for inspected components, pays for
// inspection and discards the defective share up front.
func (se *SimulationEngine) reset() {
	p := se.pipeline
	se.inv = NewInventory()
	se.ledger = Ledger{}

	for _, c := range p.Components {
		se.ledger.charge(p.InitialQuantity, c.PurchaseCost)
	}
	for _, c := range p.Components {
		if c.Inspect {
			se.inv.Set(c.ID, floorUnits(float64(p.InitialQuantity)*(1-c.DefectRate)))
			se.ledger.charge(p.InitialQuantity, c.InspectionCost)
		} else {
			se.inv.Set(c.ID, p.InitialQuantity)
		}
	}

	se.semis = make([]*SemiProductStage, len(p.SemiProducts))
	for i, sp := range p.SemiProducts {
		se.semis[i] = newSemiProductStage(sp, p)
	}
	se.final = &FinalProductStage{spec: p.Final}
}

func (se *SimulationEngine) starved() bool {
	for _, id := range se.required {
		if se.inv.Get(id) == 0 {
			return true
		}
	}
	return false
}

func (se *SimulationEngine) tick(cycle int) (CycleReport, error) {
	var (
		outcome FinalOutcome
		lots    []Lot
		err     error
	)
	if se.pipeline.SingleStage() {
		outcome, err = se.tickSingleStage()
	} else {
		lots, outcome, err = se.tickMultiStage()
	}
	if err != nil {
		return CycleReport{}, err
	}
	return CycleReport{
		Cycle:     cycle,
		Inventory: se.inv.Snapshot(),
		Lots:      lots,
		Final:     outcome,
		Revenue:   se.ledger.Revenue,
		Cost:      se.ledger.Cost,
	}, nil
}

// tickSingleStage assembles the final product straight from components.
// Reworked units go back to every component inventory.
func (se *SimulationEngine) tickSingleStage() (FinalOutcome, error) {
	comps := se.pipeline.Components
	batches := make([]Batch, len(comps))
	for i, c := range comps {
		q := 1.0
		if !c.Inspect {
			q = 1 - c.DefectRate
		}
		batches[i] = Batch{Qualified: se.inv.Get(c.ID), Purity: q}
	}

	outcome, err := se.final.Process(batches, &se.ledger)
	if err != nil {
		return FinalOutcome{}, err
	}
	for _, c := range comps {
		se.inv.Take(c.ID, outcome.Assembled)
	}
	for _, c := range comps {
		se.inv.Add(c.ID, outcome.Reworked)
	}
	return outcome, nil
}

// tickMultiStage runs every semi-product stage in declaration order, then
// final assembly. Reworked final products are split evenly across the
// semi-product carry-over slots; the remainder of the division is lost.
func (se *SimulationEngine) tickMultiStage() ([]Lot, FinalOutcome, error) {
	lots := make([]Lot, len(se.semis))
	batches := make([]Batch, len(se.semis))
	for i, s := range se.semis {
		lot, err := s.Process(se.inv, &se.ledger)
		if err != nil {
			return nil, FinalOutcome{}, fmt.Errorf("semi-product %q: %w", s.ID(), err)
		}
		lots[i] = lot
		batches[i] = Batch{Qualified: lot.Qualified, Purity: lot.Purity()}
	}

	outcome, err := se.final.Process(batches, &se.ledger)
	if err != nil {
		return nil, FinalOutcome{}, fmt.Errorf("final product %q: %w", se.pipeline.Final.ID, err)
	}

	if se.pipeline.CarryOver == model.CarryOverRetain {
		for i, s := range se.semis {
			s.retain(lots[i], outcome.Assembled)
		}
	}

	if outcome.Reworked > 0 {
		share := outcome.Reworked / len(se.semis)
		for _, s := range se.semis {
			s.carry += share
		}
	}
	return lots, outcome, nil
}

func requiredComponents(p model.Pipeline) []string {
	if p.SingleStage() {
		ids := make([]string, len(p.Components))
		for i, c := range p.Components {
			ids[i] = c.ID
		}
		return ids
	}
	seen := make(map[string]struct{})
	var ids []string
	for _, sp := range p.SemiProducts {
		for _, id := range sp.Inputs {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}
	return ids
}

// Simulate validates p and runs it for maxCycles cycles.
func Simulate(p model.Pipeline, maxCycles int) (SimulationResult, error) {
	se, err := NewSimulationEngine(p)
	if err != nil {
		return SimulationResult{}, err
	}
	return se.Run(maxCycles)
}
