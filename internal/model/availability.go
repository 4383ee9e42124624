package model

// CapacityRule overrides the system-wide default capacity for one day.
// There is at most one rule per day; rules are upserted and never
// deleted in normal operation.
type CapacityRule struct {
	Day      Date `json:"day"`
	Capacity int  `json:"capacity"`
}

// DayAvailability is the derived capacity view of a single day.
// Remaining never goes below zero, even when an administrator lowered
// the capacity under what is already booked.
type DayAvailability struct {
	Date      Date `json:"date"`
	Capacity  int  `json:"capacity"`
	Used      int  `json:"used"`
	Remaining int  `json:"remaining"`
}

// NewDayAvailability builds the view and clamps Remaining at zero.
func NewDayAvailability(day Date, capacity, used int) DayAvailability {
	remaining := capacity - used
	if remaining < 0 {
		remaining = 0
	}
	return DayAvailability{Date: day, Capacity: capacity, Used: used, Remaining: remaining}
}
