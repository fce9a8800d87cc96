package core

import (
	"testing"

	"github.com/signalsfoundry/production-optimizer/model"
)

func newTestSemiStage(t *testing.T, p model.Pipeline, idx int) *SemiProductStage {
	t.Helper()
	if err := p.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	return newSemiProductStage(p.SemiProducts[idx], p)
}

func TestSemiProductStageWithoutInspectionPassesDefectsOn(t *testing.T) {
	p := oneSemiPipeline()
	s := newTestSemiStage(t, p, 0)

	inv := NewInventory()
	inv.Set("c1", 100)
	inv.Set("c2", 120)
	var l Ledger

	lot, err := s.Process(inv, &l)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	// yield = 0.9 * 0.8 * 0.9 = 0.648
	if lot.Qualified != 100 || lot.ActualQualified != 64 {
		t.Fatalf("lot = %+v, want {100 64}", lot)
	}
	if inv.Get("c1") != 0 || inv.Get("c2") != 20 {
		t.Fatalf("inventory = %v, want c1=0 c2=20", inv.Snapshot())
	}
	if l.Cost != 400 {
		t.Fatalf("cost = %v, want 400 (assembly only)", l.Cost)
	}
}

func TestSemiProductStageInspectAndDisassemble(t *testing.T) {
	p := oneSemiPipeline()
	p.SemiProducts[0].Inspect = true
	p.SemiProducts[0].Disassemble = true
	s := newTestSemiStage(t, p, 0)

	inv := NewInventory()
	inv.Set("c1", 100)
	inv.Set("c2", 100)
	var l Ledger

	lot, err := s.Process(inv, &l)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if lot.Qualified != 64 || lot.ActualQualified != 64 {
		t.Fatalf("lot = %+v, want {64 64}", lot)
	}
	// 36 defective units return to every input.
	if inv.Get("c1") != 36 || inv.Get("c2") != 36 {
		t.Fatalf("inventory = %v, want 36 each", inv.Snapshot())
	}
	// assembly 400 + inspection 200 + disassembly 36
	if l.Cost != 636 {
		t.Fatalf("cost = %v, want 636", l.Cost)
	}
}

func TestSemiProductStageInspectWithoutDisassemblyDiscards(t *testing.T) {
	p := oneSemiPipeline()
	p.SemiProducts[0].Inspect = true
	s := newTestSemiStage(t, p, 0)

	inv := NewInventory()
	inv.Set("c1", 100)
	inv.Set("c2", 100)
	var l Ledger

	if _, err := s.Process(inv, &l); err != nil {
		t.Fatalf("Process: %v", err)
	}
	if inv.Get("c1") != 0 || inv.Get("c2") != 0 {
		t.Fatalf("inventory = %v, want everything consumed", inv.Snapshot())
	}
	if l.Cost != 600 {
		t.Fatalf("cost = %v, want 600", l.Cost)
	}
}

func TestSemiProductStageInspectedInputsArePure(t *testing.T) {
	p := oneSemiPipeline()
	p.Components[0].Inspect = true
	p.Components[1].Inspect = true
	s := newTestSemiStage(t, p, 0)

	inv := NewInventory()
	inv.Set("c1", 50)
	inv.Set("c2", 50)
	var l Ledger

	lot, err := s.Process(inv, &l)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if lot.ActualQualified != 45 {
		t.Fatalf("ActualQualified = %d, want floor(50*0.9) = 45", lot.ActualQualified)
	}
}

func TestSemiProductStageCarryOverConsumesInputs(t *testing.T) {
	p := oneSemiPipeline()
	s := newTestSemiStage(t, p, 0)
	s.carry = 2

	inv := NewInventory()
	inv.Set("c1", 3)
	inv.Set("c2", 9)
	var l Ledger

	lot, err := s.Process(inv, &l)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if lot.Qualified != 5 {
		t.Fatalf("assembled = %d, want 3 + 2 carried", lot.Qualified)
	}
	if s.carry != 0 {
		t.Fatalf("carry = %d, want reset to 0", s.carry)
	}
	// Decrement is min(assembled, balance) per input.
	if inv.Get("c1") != 0 || inv.Get("c2") != 4 {
		t.Fatalf("inventory = %v, want c1=0 c2=4", inv.Snapshot())
	}
}

func TestInspectionDoesNotChangeTruncation(t *testing.T) {
	// yield = 0.9 * 0.8 * 0.9 = 0.648
	for qty, want := range map[int]int{0: 0, 1: 0, 7: 4, 99: 64, 100: 64, 1234: 799} {
		actual := make([]int, 2)
		for i, inspect := range []bool{false, true} {
			p := oneSemiPipeline()
			p.SemiProducts[0].Inspect = inspect
			s := newTestSemiStage(t, p, 0)
			inv := NewInventory()
			inv.Set("c1", qty)
			inv.Set("c2", qty)
			var l Ledger
			lot, err := s.Process(inv, &l)
			if err != nil {
				t.Fatalf("Process: %v", err)
			}
			actual[i] = lot.ActualQualified
		}
		if actual[0] != actual[1] {
			t.Fatalf("qty %d: actual qualified uninspected=%d inspected=%d", qty, actual[0], actual[1])
		}
		if actual[0] != want {
			t.Fatalf("qty %d: actual qualified = %d, want %d", qty, actual[0], want)
		}
	}
}

func TestSemiProductStageRetainMergesStock(t *testing.T) {
	p := oneSemiPipeline()
	s := newTestSemiStage(t, p, 0)

	s.retain(Lot{Qualified: 10, ActualQualified: 8}, 6)
	if s.stock != (Lot{Qualified: 4, ActualQualified: 4}) {
		t.Fatalf("stock = %+v, want {4 4}", s.stock)
	}

	inv := NewInventory()
	var l Ledger
	lot, err := s.Process(inv, &l)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if lot != (Lot{Qualified: 4, ActualQualified: 4}) {
		t.Fatalf("lot = %+v, want retained stock {4 4}", lot)
	}
	if s.stock != (Lot{}) {
		t.Fatalf("stock not cleared after merge: %+v", s.stock)
	}
}

func TestFinalProductStage(t *testing.T) {
	spec := model.FinalProductSpec{
		ID: "p", DefectRate: 0.1, AssemblyCost: 5, InspectionCost: 3,
		DisassemblyCost: 2, ReturnLoss: 10, MarketPrice: 50,
	}
	batches := []Batch{{Qualified: 100, Purity: 0.64}, {Qualified: 120, Purity: 1}}

	tests := []struct {
		name        string
		inspect     bool
		disassemble bool
		wantCost    float64
		wantOut     FinalOutcome
	}{
		// yield = 0.64 * 0.9 = 0.576 -> 57 good of 100
		{"sell blind", false, false, 500 + 430, FinalOutcome{Assembled: 100, Qualified: 57, Defective: 43, Returned: 43}},
		{"inspect", true, false, 500 + 300, FinalOutcome{Assembled: 100, Qualified: 57, Defective: 43}},
		{"inspect and rework", true, true, 500 + 300 + 86, FinalOutcome{Assembled: 100, Qualified: 57, Defective: 43, Reworked: 43}},
		{"rework returns", false, true, 500 + 430 + 86, FinalOutcome{Assembled: 100, Qualified: 57, Defective: 43, Returned: 43, Reworked: 43}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := spec
			s.Inspect = tt.inspect
			s.Disassemble = tt.disassemble
			f := &FinalProductStage{spec: s}
			var l Ledger
			out, err := f.Process(batches, &l)
			if err != nil {
				t.Fatalf("Process: %v", err)
			}
			if out != tt.wantOut {
				t.Fatalf("outcome = %+v, want %+v", out, tt.wantOut)
			}
			if l.Cost != tt.wantCost {
				t.Fatalf("cost = %v, want %v", l.Cost, tt.wantCost)
			}
			if l.Revenue != 57*50 {
				t.Fatalf("revenue = %v, want %v", l.Revenue, 57*50)
			}
		})
	}
}

func TestFinalProductStageEmptyBatchYieldsNothing(t *testing.T) {
	f := &FinalProductStage{spec: model.FinalProductSpec{ID: "p", MarketPrice: 10}}
	var l Ledger
	out, err := f.Process([]Batch{{Qualified: 0, Purity: Purity(0, 0)}, {Qualified: 5, Purity: 1}}, &l)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if out != (FinalOutcome{}) || l.Revenue != 0 || l.Cost != 0 {
		t.Fatalf("outcome = %+v ledger = %+v, want zero", out, l)
	}
}
