package model

// SubmitReservationRequest is the inbound payload for a new booking,
// already authenticated and decoded by the HTTP layer.
type SubmitReservationRequest struct {
	VisitDate        Date         `json:"visit_date"`
	Identity         string       `json:"identity"`
	Holder           Holder       `json:"holder"`
	Party            PartyCounts  `json:"party"`
	Kind             VisitorKind  `json:"visitor_kind"`
	Institution      *Institution `json:"institution,omitempty"`
	Circuit          string       `json:"circuit,omitempty"`
	Notes            string       `json:"notes,omitempty"`
	ReducedMobility  int          `json:"reduced_mobility,omitempty"`
	Allergies        int          `json:"allergies,omitempty"`
	OriginLocation   string       `json:"origin_location,omitempty"`
	HowHeard         string       `json:"how_heard,omitempty"`
	AcceptedPolicies bool         `json:"accepted_policies"`
	Companions       []Companion  `json:"companions,omitempty"`
}

// CreateEventRequest is the administrative shortcut for a block
// allocation ("cupo") on a given day.
type CreateEventRequest struct {
	Title   string `json:"title"`
	Date    Date   `json:"date"`
	Circuit string `json:"circuit,omitempty"`
	Cupo    *int   `json:"cupo,omitempty"`
	Notes   string `json:"notes,omitempty"`
}

// UpsertCapacityRequest sets the capacity override of one day.
type UpsertCapacityRequest struct {
	Capacity int `json:"capacity"`
}

// ReservationFilter narrows the administrative listing and export.  All
// fields are optional; zero values mean "no constraint".
type ReservationFilter struct {
	Date     *Date
	Month    *Month
	Year     int
	Status   Status
	Kind     VisitorKind
	Identity string
	Name     string
}

// PageRequest is a zero-based page selector.
type PageRequest struct {
	Page int
	Size int
}

// ReservationPage is one page of the administrative listing.
type ReservationPage struct {
	Items []Reservation `json:"items"`
	Page  int           `json:"page"`
	Size  int           `json:"size"`
	Total int           `json:"total"`
}
