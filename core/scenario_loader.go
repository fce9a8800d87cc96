package core

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/signalsfoundry/production-optimizer/model"
)

// Scenario is what a scenario file yields: one or more named pipeline cases
// plus the cycle count the file asks for.
type Scenario struct {
	Name      string
	MaxCycles int
	Cases     []model.Pipeline
}

// Case returns the named case, or the first case when name is empty.
func (s *Scenario) Case(name string) (model.Pipeline, bool) {
	if len(s.Cases) == 0 {
		return model.Pipeline{}, false
	}
	if name == "" {
		return s.Cases[0], true
	}
	for _, c := range s.Cases {
		if c.Name == name {
			return c, true
		}
	}
	return model.Pipeline{}, false
}

// DefaultMaxCycles is used when a scenario file does not set max_cycles.
const DefaultMaxCycles = 3

// YAML shapes stay unexported so the file format can evolve separately from
// the model types.
type scenarioYAML struct {
	Name      string       `yaml:"name"`
	MaxCycles *int         `yaml:"max_cycles"`
	Pipeline  pipelineYAML `yaml:",inline"`
	// Cases override fields of the inline pipeline, one pipeline per case.
	Cases []caseYAML `yaml:"cases"`
}

type pipelineYAML struct {
	InitialQuantity *int            `yaml:"initial_quantity"`
	CarryOver       string          `yaml:"carry_over"`
	Components      []componentYAML `yaml:"components"`
	SemiProducts    []semiYAML      `yaml:"semi_products"`
	Final           *finalYAML      `yaml:"final_product"`
}

type caseYAML struct {
	Name         string `yaml:"name"`
	pipelineYAML `yaml:",inline"`
}

type componentYAML struct {
	ID             string   `yaml:"id"`
	DefectRate     *float64 `yaml:"defect_rate"`
	PurchaseCost   *float64 `yaml:"purchase_cost"`
	InspectionCost *float64 `yaml:"inspection_cost"`
	Inspect        *bool    `yaml:"inspect"`
}

type semiYAML struct {
	ID              string   `yaml:"id"`
	Inputs          []string `yaml:"inputs"`
	DefectRate      *float64 `yaml:"defect_rate"`
	AssemblyCost    *float64 `yaml:"assembly_cost"`
	InspectionCost  *float64 `yaml:"inspection_cost"`
	DisassemblyCost *float64 `yaml:"disassembly_cost"`
	Inspect         *bool    `yaml:"inspect"`
	Disassemble     *bool    `yaml:"disassemble"`
}

type finalYAML struct {
	ID              string   `yaml:"id"`
	DefectRate      *float64 `yaml:"defect_rate"`
	AssemblyCost    *float64 `yaml:"assembly_cost"`
	InspectionCost  *float64 `yaml:"inspection_cost"`
	DisassemblyCost *float64 `yaml:"disassembly_cost"`
	ReturnLoss      *float64 `yaml:"return_loss"`
	MarketPrice     *float64 `yaml:"market_price"`
	Inspect         *bool    `yaml:"inspect"`
	Disassemble     *bool    `yaml:"disassemble"`
}

// LoadScenario decodes a YAML scenario from r. Unknown keys are rejected.
// Every resulting pipeline is validated, so a returned Scenario is safe to
// search.
//
// Case entries are merged over the top-level pipeline: a case component,
// semi-product or final-product entry with a matching ID overrides only the
// fields it sets; scalar fields such as initial_quantity replace the base.
func LoadScenario(r io.Reader) (*Scenario, error) {
	var payload scenarioYAML
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&payload); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("LoadScenario: empty document")
		}
		return nil, fmt.Errorf("LoadScenario: decode failed: %w", err)
	}

	sc := &Scenario{Name: payload.Name, MaxCycles: DefaultMaxCycles}
	if payload.MaxCycles != nil {
		if *payload.MaxCycles < 0 {
			return nil, &model.ConfigurationError{Field: "max_cycles", Reason: fmt.Sprintf("must be >= 0, got %d", *payload.MaxCycles)}
		}
		sc.MaxCycles = *payload.MaxCycles
	}

	if len(payload.Cases) == 0 {
		p, err := payload.Pipeline.build(payload.Name)
		if err != nil {
			return nil, err
		}
		sc.Cases = []model.Pipeline{p}
		return sc, nil
	}

	seen := make(map[string]struct{}, len(payload.Cases))
	for i, c := range payload.Cases {
		name := strings.TrimSpace(c.Name)
		if name == "" {
			name = fmt.Sprintf("case-%d", i+1)
		}
		if _, dup := seen[name]; dup {
			return nil, &model.ConfigurationError{Field: "cases", Reason: fmt.Sprintf("duplicate case name %q", name)}
		}
		seen[name] = struct{}{}

		merged := payload.Pipeline.merge(c.pipelineYAML)
		p, err := merged.build(name)
		if err != nil {
			return nil, fmt.Errorf("case %q: %w", name, err)
		}
		sc.Cases = append(sc.Cases, p)
	}
	return sc, nil
}

// LoadScenarioFile opens path and decodes it with LoadScenario.
func LoadScenarioFile(path string) (*Scenario, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open scenario %q: %w", path, err)
	}
	defer f.Close()

	sc, err := LoadScenario(f)
	if err != nil {
		return nil, fmt.Errorf("scenario %q: %w", path, err)
	}
	return sc, nil
}

func (py pipelineYAML) build(name string) (model.Pipeline, error) {
	p := model.Pipeline{
		Name:      name,
		CarryOver: carryOverFromString(py.CarryOver),
	}
	if py.InitialQuantity != nil {
		p.InitialQuantity = *py.InitialQuantity
	}
	for _, c := range py.Components {
		p.Components = append(p.Components, model.ComponentSpec{
			ID:             c.ID,
			DefectRate:     deref(c.DefectRate),
			PurchaseCost:   deref(c.PurchaseCost),
			InspectionCost: deref(c.InspectionCost),
			Inspect:        derefBool(c.Inspect),
		})
	}
	for _, s := range py.SemiProducts {
		p.SemiProducts = append(p.SemiProducts, model.SemiProductSpec{
			ID:              s.ID,
			Inputs:          append([]string(nil), s.Inputs...),
			DefectRate:      deref(s.DefectRate),
			AssemblyCost:    deref(s.AssemblyCost),
			InspectionCost:  deref(s.InspectionCost),
			DisassemblyCost: deref(s.DisassemblyCost),
			Inspect:         derefBool(s.Inspect),
			Disassemble:     derefBool(s.Disassemble),
		})
	}
	if py.Final == nil {
		return model.Pipeline{}, &model.ConfigurationError{Field: "final_product", Reason: "final_product is required"}
	}
	f := py.Final
	p.Final = model.FinalProductSpec{
		ID:              f.ID,
		DefectRate:      deref(f.DefectRate),
		AssemblyCost:    deref(f.AssemblyCost),
		InspectionCost:  deref(f.InspectionCost),
		DisassemblyCost: deref(f.DisassemblyCost),
		ReturnLoss:      deref(f.ReturnLoss),
		MarketPrice:     deref(f.MarketPrice),
		Inspect:         derefBool(f.Inspect),
		Disassemble:     derefBool(f.Disassemble),
	}
	if p.Final.ID == "" {
		p.Final.ID = "product"
	}

	if err := p.Validate(); err != nil {
		return model.Pipeline{}, err
	}
	return p, nil
}

func (py pipelineYAML) merge(o pipelineYAML) pipelineYAML {
	out := py
	if o.InitialQuantity != nil {
		out.InitialQuantity = o.InitialQuantity
	}
	if o.CarryOver != "" {
		out.CarryOver = o.CarryOver
	}

	out.Components = append([]componentYAML(nil), py.Components...)
	for _, oc := range o.Components {
		if i := indexComponent(out.Components, oc.ID); i >= 0 {
			out.Components[i] = mergeComponent(out.Components[i], oc)
		} else {
			out.Components = append(out.Components, oc)
		}
	}

	out.SemiProducts = append([]semiYAML(nil), py.SemiProducts...)
	for _, s := range o.SemiProducts {
		if i := indexSemi(out.SemiProducts, s.ID); i >= 0 {
			out.SemiProducts[i] = mergeSemi(out.SemiProducts[i], s)
		} else {
			out.SemiProducts = append(out.SemiProducts, s)
		}
	}

	switch {
	case o.Final == nil:
	case py.Final == nil:
		out.Final = o.Final
	default:
		merged := mergeFinal(*py.Final, *o.Final)
		out.Final = &merged
	}
	return out
}

func indexComponent(cs []componentYAML, id string) int {
	for i, c := range cs {
		if c.ID == id {
			return i
		}
	}
	return -1
}

func indexSemi(ss []semiYAML, id string) int {
	for i, s := range ss {
		if s.ID == id {
			return i
		}
	}
	return -1
}

func mergeComponent(base, o componentYAML) componentYAML {
	base.DefectRate = pick(base.DefectRate, o.DefectRate)
	base.PurchaseCost = pick(base.PurchaseCost, o.PurchaseCost)
	base.InspectionCost = pick(base.InspectionCost, o.InspectionCost)
	base.Inspect = pick(base.Inspect, o.Inspect)
	return base
}

func mergeSemi(base, o semiYAML) semiYAML {
	if len(o.Inputs) > 0 {
		base.Inputs = o.Inputs
	}
	base.DefectRate = pick(base.DefectRate, o.DefectRate)
	base.AssemblyCost = pick(base.AssemblyCost, o.AssemblyCost)
	base.InspectionCost = pick(base.InspectionCost, o.InspectionCost)
	base.DisassemblyCost = pick(base.DisassemblyCost, o.DisassemblyCost)
	base.Inspect = pick(base.Inspect, o.Inspect)
	base.Disassemble = pick(base.Disassemble, o.Disassemble)
	return base
}

func mergeFinal(base, o finalYAML) finalYAML {
	if o.ID != "" {
		base.ID = o.ID
	}
	base.DefectRate = pick(base.DefectRate, o.DefectRate)
	base.AssemblyCost = pick(base.AssemblyCost, o.AssemblyCost)
	base.InspectionCost = pick(base.InspectionCost, o.InspectionCost)
	base.DisassemblyCost = pick(base.DisassemblyCost, o.DisassemblyCost)
	base.ReturnLoss = pick(base.ReturnLoss, o.ReturnLoss)
	base.MarketPrice = pick(base.MarketPrice, o.MarketPrice)
	base.Inspect = pick(base.Inspect, o.Inspect)
	base.Disassemble = pick(base.Disassemble, o.Disassemble)
	return base
}

func pick[T any](base, override *T) *T {
	if override != nil {
		return override
	}
	return base
}

func deref(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}

func derefBool(v *bool) bool {
	return v != nil && *v
}

// carryOverFromString maps the YAML carry_over value onto a policy. Empty
// selects discard; anything else is passed through for Validate to reject.
func carryOverFromString(s string) model.CarryOverPolicy {
	v := strings.ToLower(strings.TrimSpace(s))
	switch v {
	case "", "discard", "drop":
		return model.CarryOverDiscard
	case "retain", "keep":
		return model.CarryOverRetain
	default:
		return model.CarryOverPolicy(v)
	}
}
