package core

import "github.com/signalsfoundry/production-optimizer/model"

// singleStagePipeline is the two-part product used in the inspection tables:
// two components assembled straight into the product.
func singleStagePipeline(inspect bool) model.Pipeline {
	return model.Pipeline{
		Name:            "single-stage",
		InitialQuantity: 1000,
		Components: []model.ComponentSpec{
			{ID: "c1", DefectRate: 0.10, PurchaseCost: 4, InspectionCost: 2, Inspect: inspect},
			{ID: "c2", DefectRate: 0.10, PurchaseCost: 18, InspectionCost: 3, Inspect: inspect},
		},
		Final: model.FinalProductSpec{
			ID:              "product",
			DefectRate:      0.10,
			AssemblyCost:    6,
			InspectionCost:  3,
			DisassemblyCost: 5,
			ReturnLoss:      6,
			MarketPrice:     56,
			Inspect:         inspect,
		},
	}
}

// oneSemiPipeline feeds two components into a single semi-product.
func oneSemiPipeline() model.Pipeline {
	return model.Pipeline{
		Name:            "one-semi",
		InitialQuantity: 100,
		Components: []model.ComponentSpec{
			{ID: "c1", DefectRate: 0.1, PurchaseCost: 2, InspectionCost: 1},
			{ID: "c2", DefectRate: 0.2, PurchaseCost: 3, InspectionCost: 1},
		},
		SemiProducts: []model.SemiProductSpec{
			{ID: "s1", Inputs: []string{"c1", "c2"}, DefectRate: 0.1, AssemblyCost: 4, InspectionCost: 2, DisassemblyCost: 1},
		},
		Final: model.FinalProductSpec{
			ID:              "p",
			DefectRate:      0.1,
			AssemblyCost:    5,
			InspectionCost:  3,
			DisassemblyCost: 2,
			ReturnLoss:      10,
			MarketPrice:     50,
		},
	}
}

// threeSemiPipeline is the eight-component, three-semi-product line.
func threeSemiPipeline() model.Pipeline {
	comp := func(id string, purchase, inspect float64) model.ComponentSpec {
		return model.ComponentSpec{ID: id, DefectRate: 0.10, PurchaseCost: purchase, InspectionCost: inspect}
	}
	semi := func(id string, inputs ...string) model.SemiProductSpec {
		return model.SemiProductSpec{ID: id, Inputs: inputs, DefectRate: 0.10, AssemblyCost: 8, InspectionCost: 4, DisassemblyCost: 6}
	}
	return model.Pipeline{
		Name:            "three-semi",
		InitialQuantity: 1000,
		Components: []model.ComponentSpec{
			comp("c1", 2, 1), comp("c2", 8, 1), comp("c3", 12, 2), comp("c4", 2, 1),
			comp("c5", 8, 1), comp("c6", 12, 2), comp("c7", 8, 1), comp("c8", 12, 2),
		},
		SemiProducts: []model.SemiProductSpec{
			semi("s1", "c1", "c2", "c3"),
			semi("s2", "c4", "c5", "c6"),
			semi("s3", "c7", "c8"),
		},
		Final: model.FinalProductSpec{
			ID: "product", DefectRate: 0.10, AssemblyCost: 8, InspectionCost: 6,
			MarketPrice: 200, DisassemblyCost: 10, ReturnLoss: 40,
		},
	}
}
