package core

import "testing"

func TestInventoryTakeIsCapped(t *testing.T) {
	inv := NewInventory()
	inv.Set("c1", 5)

	if got := inv.Take("c1", 3); got != 3 {
		t.Fatalf("Take(3) = %d, want 3", got)
	}
	if got := inv.Take("c1", 10); got != 2 {
		t.Fatalf("Take(10) = %d, want 2 (capped)", got)
	}
	if got := inv.Get("c1"); got != 0 {
		t.Fatalf("Get after draining = %d, want 0", got)
	}
	if got := inv.Take("missing", 4); got != 0 {
		t.Fatalf("Take on unknown id = %d, want 0", got)
	}
}

func TestInventoryNeverNegative(t *testing.T) {
	inv := NewInventory()
	inv.Set("c1", -4)
	inv.Add("c1", -2)
	if got := inv.Get("c1"); got != 0 {
		t.Fatalf("Get = %d, want 0", got)
	}
	inv.Add("c1", 7)
	if got := inv.Get("c1"); got != 7 {
		t.Fatalf("Get = %d, want 7", got)
	}
}

func TestInventoryMinAndSnapshot(t *testing.T) {
	inv := NewInventory()
	inv.Set("a", 9)
	inv.Set("b", 4)
	inv.Set("c", 6)

	if got := inv.Min([]string{"a", "b", "c"}); got != 4 {
		t.Fatalf("Min = %d, want 4", got)
	}
	if got := inv.Min(nil); got != 0 {
		t.Fatalf("Min(nil) = %d, want 0", got)
	}

	snap := inv.Snapshot()
	snap["a"] = 0
	if inv.Get("a") != 9 {
		t.Fatalf("Snapshot shares storage with inventory")
	}
	if ids := inv.IDs(); len(ids) != 3 || ids[0] != "a" || ids[2] != "c" {
		t.Fatalf("IDs() = %v, want sorted [a b c]", ids)
	}
}
