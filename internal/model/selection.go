package model

import "slices"

// MaxSelectedBuses is the number of services a schedule can be narrowed to.
const MaxSelectedBuses = 5

// SlotFiller marks an unused bus slot in persisted schedules.
const SlotFiller = "None"

// BusSelection is an ordered set of at most MaxSelectedBuses service numbers,
// oldest first. An empty selection means every bus at the stop.
type BusSelection struct {
	buses []string
}

// NewBusSelection builds a selection by toggling each bus in order.
func NewBusSelection(buses ...string) BusSelection {
	var s BusSelection
	for _, b := range buses {
		s = s.Toggle(b)
	}
	return s
}

// SelectionFromSlots restores a selection from its persisted slot form.
// Empty and filler slots are skipped.
func SelectionFromSlots(slots [MaxSelectedBuses]string) BusSelection {
	var s BusSelection
	for _, b := range slots {
		if b == "" || b == SlotFiller || s.Contains(b) {
			continue
		}
		s.buses = append(s.buses, b)
	}
	return s
}

// Toggle removes bus if it is selected, otherwise appends it. Appending to a
// full selection evicts the oldest entry. The receiver is not modified.
func (s BusSelection) Toggle(bus string) BusSelection {
	if bus == "" || bus == SlotFiller {
		return s
	}
	if i := slices.Index(s.buses, bus); i >= 0 {
		return BusSelection{buses: slices.Delete(slices.Clone(s.buses), i, i+1)}
	}
	next := append(slices.Clone(s.buses), bus)
	if len(next) > MaxSelectedBuses {
		next = next[len(next)-MaxSelectedBuses:]
	}
	return BusSelection{buses: next}
}

// Contains reports whether bus is selected.
func (s BusSelection) Contains(bus string) bool {
	return slices.Contains(s.buses, bus)
}

// Buses returns the selected services, oldest first.
func (s BusSelection) Buses() []string {
	return slices.Clone(s.buses)
}

// Len returns the number of selected services.
func (s BusSelection) Len() int { return len(s.buses) }

// IsAll reports whether the selection means "every bus at the stop".
func (s BusSelection) IsAll() bool { return len(s.buses) == 0 }

// Includes reports whether a service passes the selection filter.
func (s BusSelection) Includes(bus string) bool {
	return s.IsAll() || s.Contains(bus)
}

// Slots pads the selection to the fixed persisted width.
func (s BusSelection) Slots() [MaxSelectedBuses]string {
	var out [MaxSelectedBuses]string
	for i := range out {
		out[i] = SlotFiller
	}
	copy(out[:], s.buses)
	return out
}

// Equal reports whether two selections hold the same buses in the same order.
func (s BusSelection) Equal(o BusSelection) bool {
	return slices.Equal(s.buses, o.buses)
}
