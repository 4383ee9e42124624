package model

import (
	"strings"
	"time"
	"unicode"
)

// Status is the lifecycle state of a reservation.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusConfirmed Status = "CONFIRMED"
	StatusCancelled Status = "CANCELLED"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusCancelled:
		return true
	}
	return false
}

// Active reports whether a reservation in status s still consumes
// capacity and still blocks another booking for the same identity.
func (s Status) Active() bool { return s != StatusCancelled }

// CanTransitionTo reports whether moving from s to next is a legal,
// state-changing transition.  CANCELLED is terminal and CONFIRMED never
// goes back to PENDING.
func (s Status) CanTransitionTo(next Status) bool {
	switch s {
	case StatusPending:
		return next == StatusConfirmed || next == StatusCancelled
	case StatusConfirmed:
		return next == StatusCancelled
	}
	return false
}

// VisitorKind classifies who is visiting.
type VisitorKind string

const (
	KindIndividual             VisitorKind = "INDIVIDUAL"
	KindEducationalInstitution VisitorKind = "EDUCATIONAL_INSTITUTION"
	KindEvent                  VisitorKind = "EVENT"
)

// Valid reports whether k is one of the known visitor kinds.
func (k VisitorKind) Valid() bool {
	switch k {
	case KindIndividual, KindEducationalInstitution, KindEvent:
		return true
	}
	return false
}

// Circuit is the guided route a visit takes.  It is informational only
// and does not influence capacity.
type Circuit string

const (
	CircuitA Circuit = "A"
	CircuitB Circuit = "B"
	CircuitC Circuit = "C"
	CircuitD Circuit = "D"
)

// ParseCircuit returns the circuit named by s (case-insensitive) and
// whether s named a known circuit.
func ParseCircuit(s string) (Circuit, bool) {
	c := Circuit(strings.ToUpper(strings.TrimSpace(s)))
	switch c {
	case CircuitA, CircuitB, CircuitC, CircuitD:
		return c, true
	}
	return "", false
}

// PartyCounts is the head-count of a reservation split by age bucket.
// Every bucket counts against the day's capacity.
type PartyCounts struct {
	Adults  int `json:"adults"`
	Minors  int `json:"minors"`
	Infants int `json:"infants"`
}

// Total returns the number of people in the party.
func (p PartyCounts) Total() int { return p.Adults + p.Minors + p.Infants }

// HasNegative reports whether any bucket is below zero.
func (p PartyCounts) HasNegative() bool {
	return p.Adults < 0 || p.Minors < 0 || p.Infants < 0
}

// Holder is the person responsible for the reservation and the contact
// used by notifications.
type Holder struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Phone     string `json:"phone"`
	Email     string `json:"email"`
}

// FullName joins first and last name.
func (h Holder) FullName() string {
	return strings.TrimSpace(h.FirstName + " " + h.LastName)
}

// Institution carries the fields required for EDUCATIONAL_INSTITUTION
// reservations.
type Institution struct {
	Name     string `json:"name"`
	Students int    `json:"students"`
}

// Companion is a person accompanying the holder.  Companions are listed
// individually but only counted through PartyCounts.
type Companion struct {
	FirstName string  `json:"first_name"`
	LastName  string  `json:"last_name"`
	Identity  string  `json:"identity"`
	Phone     *string `json:"phone,omitempty"`
}

// HowHeard records how the holder learned about the visits.
type HowHeard string

const (
	HowHeardSocial         HowHeard = "SOCIAL"
	HowHeardRecommendation HowHeard = "RECOMMENDATION"
	HowHeardWebsite        HowHeard = "WEBSITE"
	HowHeardAds            HowHeard = "ADS"
	HowHeardOther          HowHeard = "OTHER"
)

// ParseHowHeard returns the channel named by s (case-insensitive) and
// whether it is known.
func ParseHowHeard(s string) (HowHeard, bool) {
	h := HowHeard(strings.ToUpper(strings.TrimSpace(s)))
	switch h {
	case HowHeardSocial, HowHeardRecommendation, HowHeardWebsite, HowHeardAds, HowHeardOther:
		return h, true
	}
	return "", false
}

// Reservation is a booking for one visit date.
//
// Fields:
//
//	ID               – opaque unique identifier (uuid).
//	VisitDate        – the day of the visit.
//	Identity         – normalised national ID of the holder; the duplicate key.
//	Party            – head-count by age bucket.
//	Kind             – INDIVIDUAL, EDUCATIONAL_INSTITUTION or EVENT.
//	Status           – PENDING, CONFIRMED or CANCELLED.
//	Institution      – set only for EDUCATIONAL_INSTITUTION.
//	ReducedMobility  – people in the party with reduced mobility.
//	Allergies        – people in the party with allergies.
//	AcceptedPolicies – the holder accepted the privacy policies.
//	Companions       – ordered as submitted.
type Reservation struct {
	ID               string       `json:"id"`
	VisitDate        Date         `json:"visit_date"`
	Identity         string       `json:"identity"`
	Holder           Holder       `json:"holder"`
	Party            PartyCounts  `json:"party"`
	Kind             VisitorKind  `json:"visitor_kind"`
	Status           Status       `json:"status"`
	Institution      *Institution `json:"institution,omitempty"`
	Circuit          Circuit      `json:"circuit,omitempty"`
	Notes            string       `json:"notes,omitempty"`
	ReducedMobility  int          `json:"reduced_mobility"`
	Allergies        int          `json:"allergies"`
	OriginLocation   string       `json:"origin_location,omitempty"`
	HowHeard         HowHeard     `json:"how_heard,omitempty"`
	AcceptedPolicies bool         `json:"accepted_policies"`
	Companions       []Companion  `json:"companions"`
	CreatedAt        time.Time    `json:"created_at"`
	UpdatedAt        time.Time    `json:"updated_at"`
}

// NormalizeIdentity canonicalises a national ID: surrounding space is
// trimmed, separators (anything that is not a letter or digit) are
// dropped and letters are upper-cased, so "12.345.678", "12345678" and
// "12-345-678" all collide.
func NormalizeIdentity(raw string) string {
	raw = strings.TrimSpace(raw)
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToUpper(r))
		}
	}
	return b.String()
}
