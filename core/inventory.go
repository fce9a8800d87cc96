package core

import "sort"

// Inventory maps entity IDs to unit counts. Counts never go negative: every
// decrement is capped at the current balance. Each simulation run owns its
// own Inventory; it is not safe for concurrent use.
type Inventory struct {
	units map[string]int
}

// NewInventory returns an empty inventory.
func NewInventory() *Inventory {
	return &Inventory{units: make(map[string]int)}
}

// Get returns the balance for id (0 if unknown).
func (inv *Inventory) Get(id string) int {
	return inv.units[id]
}

// Set overwrites the balance for id. Negative values are stored as 0.
func (inv *Inventory) Set(id string, n int) {
	if n < 0 {
		n = 0
	}
	inv.units[id] = n
}

// Add increases the balance for id by n. Negative n is ignored.
func (inv *Inventory) Add(id string, n int) {
	if n <= 0 {
		return
	}
	inv.units[id] += n
}

// Take removes up to n units from id and returns how many were removed.
func (inv *Inventory) Take(id string, n int) int {
	have := inv.units[id]
	if n > have {
		n = have
	}
	if n <= 0 {
		return 0
	}
	inv.units[id] = have - n
	return n
}

// Min returns the smallest balance across ids, or 0 when ids is empty.
func (inv *Inventory) Min(ids []string) int {
	if len(ids) == 0 {
		return 0
	}
	m := inv.units[ids[0]]
	for _, id := range ids[1:] {
		if v := inv.units[id]; v < m {
			m = v
		}
	}
	return m
}

// Snapshot returns a copy of all balances.
func (inv *Inventory) Snapshot() map[string]int {
	out := make(map[string]int, len(inv.units))
	for id, n := range inv.units {
		out[id] = n
	}
	return out
}

// IDs returns the known entity IDs in sorted order.
func (inv *Inventory) IDs() []string {
	ids := make([]string, 0, len(inv.units))
	for id := range inv.units {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
