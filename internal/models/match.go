package models

import (
	"slices"
	"time"
)

// MatchStatus is the lifecycle state of a match.
type MatchStatus string

const (
	MatchOpen      MatchStatus = "open"
	MatchClosed    MatchStatus = "closed"
	MatchFinished  MatchStatus = "finished"
	MatchCancelled MatchStatus = "cancelled"
)

// CanTransition reports whether a host may move a match from s to next.
func (s MatchStatus) CanTransition(next MatchStatus) bool {
	switch s {
	case MatchOpen:
		return next == MatchClosed || next == MatchFinished || next == MatchCancelled
	case MatchClosed:
		return next == MatchOpen || next == MatchFinished || next == MatchCancelled
	case MatchFinished, MatchCancelled:
		return false
	}
	return false
}

// Terminal reports whether the match is over and its roster frozen.
func (s MatchStatus) Terminal() bool {
	return s == MatchFinished || s == MatchCancelled
}

// VenueStatus tells whether a pitch has been booked yet.
type VenueStatus string

const (
	VenueBooked    VenueStatus = "booked"
	VenueSearching VenueStatus = "searching"
)

// Visibility controls whether a match shows up in public listings.
type Visibility string

const (
	VisibilityPublic  Visibility = "public"
	VisibilityPrivate Visibility = "private"
)

// Location is where a match is played. All fields are optional.
type Location struct {
	Province     string
	Locality     string
	Neighborhood string
	Address      string
	VenueName    string
	Lat          float64
	Lng          float64
}

// Cost holds the price of the pitch as entered by the host.
type Cost struct {
	Total     float64
	PerPlayer float64
}

// AdmissionFilters restrict who should apply to a match.
type AdmissionFilters struct {
	MinAge            int
	MaxAge            int
	SkillLevel        SkillLevel
	RequiredPositions []string
}

// ManualPlayer is an attendee without an account, added by the host.
type ManualPlayer struct {
	Name    string
	AddedBy string
	AddedAt time.Time
}

// ManualPlayerPrefix starts every synthetic manual player id.
const ManualPlayerPrefix = "manual_"

// Match is a scheduled game with its roster.
type Match struct {
	// ID is the unique identifier for the match (UUID format).
	ID string

	FormatName string
	Format     Format

	// MaxPlayers is derived from Format.
	MaxPlayers int

	// Players is the ordered roster. The host is always at index 0 and ids
	// are unique. Manual players appear here under their synthetic id.
	Players []string

	// AcceptedPlayers is the subset of Players confirmed by the host.
	AcceptedPlayers []string

	// Applicants are users waiting for the host's decision. Never overlaps Players.
	Applicants []string

	// ManualPlayers maps synthetic ids (see ManualPlayerPrefix) to their details.
	ManualPlayers map[string]ManualPlayer

	HostID   string
	HostName string

	// Date is YYYY-MM-DD, Time is HH:MM. Either may be empty.
	Date            string
	Time            string
	DurationMinutes int

	VenueStatus VenueStatus
	Location    Location
	Visibility  Visibility
	Cost        Cost
	Filters     AdmissionFilters
	Description string

	Status        MatchStatus
	IsAutoMatched bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Full reports whether the roster has reached MaxPlayers.
func (m *Match) Full() bool {
	return len(m.Players) >= m.MaxPlayers
}

// HasPlayer reports whether id is on the roster.
func (m *Match) HasPlayer(id string) bool {
	return slices.Contains(m.Players, id)
}

// HasApplicant reports whether id is waiting for a decision.
func (m *Match) HasApplicant(id string) bool {
	return slices.Contains(m.Applicants, id)
}
