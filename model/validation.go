package model

import (
	"math"
	"strings"
)

// Validate checks every range and reference in p. It returns the first
// ConfigurationError found.
func (p Pipeline) Validate() error {
	if p.InitialQuantity < 0 {
		return configErr("", "initial_quantity", "must be >= 0, got %d", p.InitialQuantity)
	}
	if len(p.Components) == 0 {
		return configErr("", "components", "at least one component is required")
	}
	switch p.CarryOver {
	case "", CarryOverDiscard, CarryOverRetain:
	default:
		return configErr("", "carry_over", "unknown policy %q", p.CarryOver)
	}

	seen := make(map[string]struct{}, len(p.Components)+len(p.SemiProducts)+1)
	claim := func(id string) error {
		if strings.TrimSpace(id) == "" {
			return configErr("", "id", "entity IDs must not be empty")
		}
		if _, dup := seen[id]; dup {
			return configErr(id, "id", "duplicate entity ID")
		}
		seen[id] = struct{}{}
		return nil
	}

	for _, c := range p.Components {
		if err := claim(c.ID); err != nil {
			return err
		}
		if err := checkRate(c.ID, c.DefectRate); err != nil {
			return err
		}
		if err := checkCosts(c.ID, map[string]float64{
			"purchase_cost":   c.PurchaseCost,
			"inspection_cost": c.InspectionCost,
		}); err != nil {
			return err
		}
	}

	for _, sp := range p.SemiProducts {
		if err := claim(sp.ID); err != nil {
			return err
		}
		if len(sp.Inputs) == 0 {
			return configErr(sp.ID, "inputs", "semi-product needs at least one input component")
		}
		for _, in := range sp.Inputs {
			if _, ok := p.Component(in); !ok {
				return configErr(sp.ID, "inputs", "unknown component %q", in)
			}
		}
		if err := checkRate(sp.ID, sp.DefectRate); err != nil {
			return err
		}
		if err := checkCosts(sp.ID, map[string]float64{
			"assembly_cost":    sp.AssemblyCost,
			"inspection_cost":  sp.InspectionCost,
			"disassembly_cost": sp.DisassemblyCost,
		}); err != nil {
			return err
		}
	}

	f := p.Final
	if err := claim(f.ID); err != nil {
		return err
	}
	if err := checkRate(f.ID, f.DefectRate); err != nil {
		return err
	}
	if err := checkCosts(f.ID, map[string]float64{
		"assembly_cost":    f.AssemblyCost,
		"inspection_cost":  f.InspectionCost,
		"disassembly_cost": f.DisassemblyCost,
		"return_loss":      f.ReturnLoss,
		"market_price":     f.MarketPrice,
	}); err != nil {
		return err
	}

	if bits := p.DecisionBits(); bits > MaxDecisionBits {
		return configErr("", "decisions", "%d decision flags exceed the exhaustive search limit of %d", bits, MaxDecisionBits)
	}
	return nil
}

// ValidateVector checks that v fits p's layout.
func (p Pipeline) ValidateVector(v DecisionVector) error {
	if want := p.DecisionBits(); len(v) != want {
		return configErr("", "decisions", "vector has %d flags, want %d", len(v), want)
	}
	return nil
}

// CheckFraction rejects values outside [0,1], including NaN.
func CheckFraction(entity, field string, v float64) error {
	if math.IsNaN(v) || v < 0 || v > 1 {
		return configErr(entity, field, "must be within [0,1], got %v", v)
	}
	return nil
}

func checkRate(entity string, rate float64) error {
	return CheckFraction(entity, "defect_rate", rate)
}

func checkCosts(entity string, costs map[string]float64) error {
	// Fixed order keeps the reported field deterministic.
	for _, field := range []string{"purchase_cost", "assembly_cost", "inspection_cost", "disassembly_cost", "return_loss", "market_price"} {
		v, ok := costs[field]
		if !ok {
			continue
		}
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return configErr(entity, field, "must be a finite value >= 0, got %v", v)
		}
	}
	return nil
}
